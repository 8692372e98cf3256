package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey  string   `mapstructure:"JWT_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`

	// EnforceConflictsOnCreate controls whether Schedule rejects bookings that
	// overlap an existing active appointment for the same provider. The relaxed
	// mode (false) keeps conflict detection available through the explicit
	// check-conflicts operation and through reschedule, but lets bookings
	// double-book a provider.
	EnforceConflictsOnCreate bool `mapstructure:"ENFORCE_CONFLICTS_ON_CREATE"`

	SyncEnabled      bool   `mapstructure:"SYNC_ENABLED"`
	SyncBaseURL      string `mapstructure:"SYNC_BASE_URL"`
	SyncUsername     string `mapstructure:"SYNC_USERNAME"`
	SyncSecret       string `mapstructure:"SYNC_SECRET"`
	SyncRateLimitRPM int    `mapstructure:"SYNC_RATE_LIMIT_RPM"`
	SyncMaxRetries   int    `mapstructure:"SYNC_MAX_RETRIES"`
	SyncQueueSize    int    `mapstructure:"SYNC_QUEUE_SIZE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("ENFORCE_CONFLICTS_ON_CREATE", true)
	v.SetDefault("SYNC_ENABLED", false)
	v.SetDefault("SYNC_RATE_LIMIT_RPM", 60)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_QUEUE_SIZE", 256)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("ENFORCE_CONFLICTS_ON_CREATE")
	v.BindEnv("SYNC_ENABLED")
	v.BindEnv("SYNC_BASE_URL")
	v.BindEnv("SYNC_USERNAME")
	v.BindEnv("SYNC_SECRET")
	v.BindEnv("SYNC_RATE_LIMIT_RPM")
	v.BindEnv("SYNC_MAX_RETRIES")
	v.BindEnv("SYNC_QUEUE_SIZE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - Otherwise       → "jwt" (bearer tokens verified against AUTH_ISSUER/JWKS
//     or, for local setups, JWT_SIGNING_KEY)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. In non-development
// modes real JWT authentication must be configured. When the external sync
// adapter is enabled its endpoint and credentials are required.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.JWTSigningKey == "" {
		return fmt.Errorf(
			"one of AUTH_ISSUER, AUTH_JWKS_URL or JWT_SIGNING_KEY must be set when AUTH_MODE is \"jwt\" (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}

	if c.SyncEnabled {
		if c.SyncBaseURL == "" {
			return fmt.Errorf("SYNC_BASE_URL is required when SYNC_ENABLED is true")
		}
		if c.SyncUsername == "" || c.SyncSecret == "" {
			return fmt.Errorf("SYNC_USERNAME and SYNC_SECRET are required when SYNC_ENABLED is true")
		}
		if c.SyncRateLimitRPM <= 0 {
			return fmt.Errorf("SYNC_RATE_LIMIT_RPM must be positive, got %d", c.SyncRateLimitRPM)
		}
	}

	if !c.EnforceConflictsOnCreate && c.IsProduction() {
		log.Println("WARNING: ENFORCE_CONFLICTS_ON_CREATE=false — providers can be double-booked.")
	}

	return nil
}
