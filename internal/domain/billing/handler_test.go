package billing

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

func seedSubmitted(t *testing.T, h *Handler) *Invoice {
	t.Helper()
	inv := newInvoice()
	if err := h.svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	submitted, err := h.svc.Submit(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("submit invoice: %v", err)
	}
	return submitted
}

func TestHandler_CreateInvoice(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","service_date":"2024-06-03T00:00:00Z",` +
		`"line_items":[{"code":"99213","description":"Office visit","units":1,"unit_price_cents":12500}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Status != StatusDraft || got.TotalCents != 12500 {
		t.Errorf("unexpected invoice state: status=%s total=%d", got.Status, got.TotalCents)
	}
	if !strings.HasPrefix(got.InvoiceNumber, "INV-") {
		t.Errorf("unexpected invoice number %q", got.InvoiceNumber)
	}
}

func TestHandler_CreateInvoice_NoLineItems(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.NewString() + `","service_date":"2024-06-03T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateInvoice(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty invoice, got %v", err)
	}
}

func TestHandler_SubmitInvoice(t *testing.T) {
	h, e := newTestHandler()
	inv := newInvoice()
	if err := h.svc.Create(context.Background(), inv); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.SubmitInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Status != StatusSubmitted || got.DueDate == nil {
		t.Errorf("unexpected invoice state: status=%s due=%v", got.Status, got.DueDate)
	}
}

func TestHandler_RecordPayment(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedSubmitted(t, h)

	body := `{"amount_cents":5000,"method":"check","reference":"chk 1042"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.String())

	if err := h.RecordPayment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Status != StatusPartiallyPaid || got.PaidCents != 5000 {
		t.Errorf("unexpected invoice state: status=%s paid=%d", got.Status, got.PaidCents)
	}
	if len(got.Payments) != 1 || got.Payments[0].Method != "check" {
		t.Errorf("payment not reflected: %+v", got.Payments)
	}
}

func TestHandler_RecordPayment_Overpayment(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedSubmitted(t, h)

	body := `{"amount_cents":999999,"method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.String())

	err := h.RecordPayment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overpayment, got %v", err)
	}
}

func TestHandler_RecordPayment_NotFound(t *testing.T) {
	h, e := newTestHandler()
	body := `{"amount_cents":100,"method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.RecordPayment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_DeleteInvoice_SubmittedRejected(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedSubmitted(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.String())

	err := h.DeleteInvoice(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting a submitted invoice, got %v", err)
	}
}

func TestHandler_ListInvoices_StatusFilter(t *testing.T) {
	h, e := newTestHandler()
	seeded := seedSubmitted(t, h)
	other := newInvoice()
	if err := h.svc.Create(context.Background(), other); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?status=submitted", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListInvoices(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Data  []Invoice `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Total != 1 || got.Data[0].ID != seeded.ID {
		t.Fatalf("expected only the submitted invoice, got %d", got.Total)
	}
}

func TestHandler_ListInvoices_BadStatus(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?status=settled", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.ListInvoices(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %v", err)
	}
}
