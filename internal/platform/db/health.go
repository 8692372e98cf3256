package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot reported by the health
// endpoint.
type PoolStats struct {
	TotalConns        int32  `json:"total_conns"`
	IdleConns         int32  `json:"idle_conns"`
	AcquiredConns     int32  `json:"acquired_conns"`
	MaxConns          int32  `json:"max_conns"`
	AcquireCount      int64  `json:"acquire_count"`
	EmptyAcquireCount int64  `json:"empty_acquire_count"`
	AcquireDuration   string `json:"acquire_duration"`
	Healthy           bool   `json:"healthy"`
}

// poolReady decides the Healthy flag: the pool must hold at least one
// connection and not be fully saturated.
func poolReady(total, acquired, max int32) bool {
	return total > 0 && acquired < max
}

// SnapshotPoolStats captures the pool's current counters.
func SnapshotPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:        stat.TotalConns(),
		IdleConns:         stat.IdleConns(),
		AcquiredConns:     stat.AcquiredConns(),
		MaxConns:          stat.MaxConns(),
		AcquireCount:      stat.AcquireCount(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
		AcquireDuration:   stat.AcquireDuration().String(),
		Healthy:           poolReady(stat.TotalConns(), stat.AcquiredConns(), stat.MaxConns()),
	}
}

// HealthHandler reports database reachability and pool pressure. The
// ping runs under its own 5s deadline so a stalled database cannot hang
// the health check.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		started := time.Now()
		err := pool.Ping(ctx)
		pingMS := time.Since(started).Milliseconds()
		stats := SnapshotPoolStats(pool)

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":  "unhealthy",
				"error":   err.Error(),
				"ping_ms": pingMS,
				"pool":    stats,
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"ping_ms": pingMS,
			"pool":    stats,
		})
	}
}
