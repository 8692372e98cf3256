// Package sync pushes practice records to the external medical records
// service and pulls remote state back. Delivery is best-effort: the
// dispatcher absorbs remote failures so API writes never block on, or
// fail because of, the remote side.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sync api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("sync api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// AppointmentRecord is the wire form the remote service uses for a
// booking. Patient and provider are referenced by the ids the remote
// system assigned to them, not ours.
type AppointmentRecord struct {
	PatientID       string    `json:"patient_id,omitempty"`
	ProviderID      string    `json:"provider_id,omitempty"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	ChiefComplaint  *string   `json:"chief_complaint,omitempty"`
	ReasonForVisit  *string   `json:"reason_for_visit,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	Location        *string   `json:"location,omitempty"`
	Room            *string   `json:"room,omitempty"`
	IsTelehealth    bool      `json:"is_telehealth"`
	TelehealthLink  *string   `json:"telehealth_link,omitempty"`
}

// PatientRecord is the wire form for patient demographics.
type PatientRecord struct {
	FirstName        string                  `json:"first_name"`
	MiddleName       *string                 `json:"middle_name,omitempty"`
	LastName         string                  `json:"last_name"`
	DateOfBirth      string                  `json:"date_of_birth"`
	Gender           string                  `json:"gender"`
	Email            *string                 `json:"email,omitempty"`
	Phone            *string                 `json:"phone,omitempty"`
	Address          *AddressRecord          `json:"address,omitempty"`
	EmergencyContact *EmergencyContactRecord `json:"emergency_contact,omitempty"`
}

type AddressRecord struct {
	Line1 *string `json:"line1,omitempty"`
	Line2 *string `json:"line2,omitempty"`
	City  *string `json:"city,omitempty"`
	State *string `json:"state,omitempty"`
	Zip   *string `json:"zip,omitempty"`
}

type EmergencyContactRecord struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// ClientConfig carries the connection settings for the remote service.
type ClientConfig struct {
	BaseURL           string
	Username          string
	Secret            string
	RequestsPerMinute int
	MaxRetries        int
}

// Client is a rate-limited HTTP client for the remote service. Requests
// that fail with 429, a 5xx, or a transport error are retried with
// exponential backoff up to MaxRetries; other failures return
// immediately.
type Client struct {
	baseURL    string
	username   string
	secret     string
	maxRetries int

	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    func(attempt int) time.Duration
	logger     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff overrides the retry backoff schedule.
func WithBackoff(f func(attempt int) time.Duration) ClientOption {
	return func(c *Client) { c.backoff = f }
}

// NewClient creates a client for the remote service.
func NewClient(cfg ClientConfig, logger zerolog.Logger, opts ...ClientOption) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		// Allow a full window up front, then refill at the per-minute rate.
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute))/60.0, cfg.RequestsPerMinute)
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		secret:     cfg.Secret,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
		logger: logger.With().Str("component", "sync-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping verifies connectivity and credentials against the remote health
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateAppointment pushes a new booking and returns the id the remote
// system assigned to it.
func (c *Client) CreateAppointment(ctx context.Context, rec *AppointmentRecord) (string, error) {
	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/appointments", rec, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("sync api: create appointment response missing id")
	}
	return out.ID, nil
}

// UpdateAppointment pushes the current state of an already-linked booking.
func (c *Client) UpdateAppointment(ctx context.Context, externalID string, rec *AppointmentRecord) error {
	return c.do(ctx, http.MethodPut, "/appointments/"+url.PathEscape(externalID), rec, nil)
}

// FetchAppointment pulls the remote copy of a booking.
func (c *Client) FetchAppointment(ctx context.Context, externalID string) (*AppointmentRecord, error) {
	var out AppointmentRecord
	if err := c.do(ctx, http.MethodGet, "/appointments/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePatient pushes new patient demographics and returns the remote id.
func (c *Client) CreatePatient(ctx context.Context, rec *PatientRecord) (string, error) {
	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/patients", rec, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("sync api: create patient response missing id")
	}
	return out.ID, nil
}

// UpdatePatient pushes updated demographics for an already-linked patient.
func (c *Client) UpdatePatient(ctx context.Context, externalID string, rec *PatientRecord) error {
	return c.do(ctx, http.MethodPut, "/patients/"+url.PathEscape(externalID), rec, nil)
}

// FetchPatient pulls the remote copy of a patient's demographics.
func (c *Client) FetchPatient(ctx context.Context, externalID string) (*PatientRecord, error) {
	var out PatientRecord
	if err := c.do(ctx, http.MethodGet, "/patients/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one request through the rate limiter and the retry loop.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.Warn().
				Str("method", method).
				Str("path", path).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying sync request")
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := c.attempt(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) (retryable bool, err error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.username, c.secret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return true, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
