package insurance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func seedPolicy(t *testing.T, h *Handler) *Policy {
	t.Helper()
	p := newPolicy()
	if err := h.svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
	return p
}

func TestHandler_CreatePolicy(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","payer_name":"Cascade Health","member_id":"CH-1","copay_cents":2500}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreatePolicy(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.VerificationStatus != VerificationUnverified {
		t.Errorf("expected unverified, got %s", got.VerificationStatus)
	}
	if got.CopayCents == nil || *got.CopayCents != 2500 {
		t.Errorf("copay_cents not carried: %v", got.CopayCents)
	}
}

func TestHandler_CreatePolicy_MissingPayer(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","member_id":"CH-1"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreatePolicy(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing payer_name, got %v", err)
	}
}

func TestHandler_VerifyPolicy(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedPolicy(t, h)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.String())

	if err := h.VerifyPolicy(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Policy
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.VerificationStatus != VerificationVerified || got.VerifiedAt == nil {
		t.Errorf("unexpected verification state: %+v", got)
	}
}

func TestHandler_VerifyPolicy_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.VerifyPolicy(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListPatientPolicies(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedPolicy(t, h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.PatientID.String())

	if err := h.ListPatientPolicies(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Data  []Policy `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Total != 1 || len(got.Data) != 1 {
		t.Fatalf("expected 1 policy, got %d", got.Total)
	}
}
