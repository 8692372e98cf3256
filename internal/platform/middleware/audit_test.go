package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error // if set, RecordAccess returns this error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newAuditContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func withAuth(userID string, roles []string) func(*http.Request) {
	return func(req *http.Request) {
		ctx := req.Context()
		ctx = context.WithValue(ctx, auth.UserIDKey, userID)
		ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
		*req = *req.WithContext(ctx)
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_PatientRead(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newAuditContext(http.MethodGet,
		fmt.Sprintf("/api/patients/%s", patientID),
		withAuth("user-1", []string{"physician"}),
	)
	c.Set("request_id", "req-abc")

	mw := Audit(logger, rec)
	h := mw(okHandler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", entry.UserID)
	}
	if entry.Collection != "patients" {
		t.Errorf("expected collection 'patients', got %q", entry.Collection)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
	if entry.Action != "read" {
		t.Errorf("expected action 'read', got %q", entry.Action)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_AppointmentCreate(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newAuditContext(http.MethodPost,
		fmt.Sprintf("/api/appointments?patient_id=%s", patientID),
		withAuth("scheduler-1", []string{"scheduler"}),
	)

	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := rec.last()
	if entry.Collection != "appointments" {
		t.Errorf("expected collection 'appointments', got %q", entry.Collection)
	}
	if entry.Action != "create" {
		t.Errorf("expected action 'create', got %q", entry.Action)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id from query param, got %q", entry.PatientID)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newAuditContext(http.MethodGet, "/health")

	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.count() != 0 {
		t.Errorf("expected no audit entries for /health, got %d", rec.count())
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{err: errors.New("store unavailable")}

	c, httpRec := newAuditContext(http.MethodGet, "/api/providers",
		withAuth("user-2", []string{"admin"}),
	)

	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("expected request to succeed despite recorder error, got %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAudit_WithoutRecorder(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	c, _ := newAuditContext(http.MethodDelete, "/api/appointments/"+uuid.New().String())

	mw := Audit(logger)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{http.MethodGet, "read"},
		{http.MethodHead, "read"},
		{http.MethodPost, "create"},
		{http.MethodPut, "update"},
		{http.MethodPatch, "update"},
		{http.MethodDelete, "delete"},
		{"OPTIONS", "read"},
	}
	for _, tt := range tests {
		if got := httpMethodToAction(tt.method); got != tt.want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", tt.method, got, tt.want)
		}
	}
}

func TestExtractCollection(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/patients", "patients"},
		{"/api/patients/123", "patients"},
		{"/api/appointments/abc/cancel", "appointments"},
		{"/api/", "unknown"},
	}
	for _, tt := range tests {
		if got := extractCollection(tt.path); got != tt.want {
			t.Errorf("extractCollection(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestExtractPatientID_FromPath(t *testing.T) {
	id := uuid.New().String()
	c, _ := newAuditContext(http.MethodGet, "/api/patients/"+id)

	if got := extractPatientID(c); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

func TestExtractPatientID_NonUUIDPathSegment(t *testing.T) {
	c, _ := newAuditContext(http.MethodGet, "/api/patients/not-a-uuid")

	if got := extractPatientID(c); got != "" {
		t.Errorf("expected empty patient ID for non-UUID segment, got %q", got)
	}
}
