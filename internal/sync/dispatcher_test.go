package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
	"github.com/carebase/carebase/internal/domain/provider"
	"github.com/carebase/carebase/internal/domain/scheduling"
)

func strPtr(s string) *string { return &s }

type fakeApptStore struct {
	mu  sync.Mutex
	ids map[uuid.UUID]string
}

func newFakeApptStore() *fakeApptStore {
	return &fakeApptStore{ids: make(map[uuid.UUID]string)}
}

func (s *fakeApptStore) SetExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = externalID
	return nil
}

func (s *fakeApptStore) externalID(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

type fakePatientStore struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*patient.Patient
	ids      map[uuid.UUID]string
}

func newFakePatientStore() *fakePatientStore {
	return &fakePatientStore{
		patients: make(map[uuid.UUID]*patient.Patient),
		ids:      make(map[uuid.UUID]string),
	}
}

func (s *fakePatientStore) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePatientStore) SetExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = externalID
	return nil
}

func (s *fakePatientStore) externalID(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

type fakeProviderDir struct {
	providers map[uuid.UUID]*provider.Provider
}

func (s *fakeProviderDir) GetByID(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	pr, ok := s.providers[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

type syncFixture struct {
	dispatcher *Dispatcher
	appts      *fakeApptStore
	patients   *fakePatientStore
	providers  *fakeProviderDir
}

func newSyncFixture(t *testing.T, baseURL string, opts ...DispatcherOption) *syncFixture {
	t.Helper()
	f := &syncFixture{
		appts:     newFakeApptStore(),
		patients:  newFakePatientStore(),
		providers: &fakeProviderDir{providers: make(map[uuid.UUID]*provider.Provider)},
	}
	client := newTestClient(t, baseURL, 0)
	f.dispatcher = NewDispatcher(client, f.appts, f.patients, f.providers, 8, zerolog.Nop(),
		append([]DispatcherOption{WithRetryDelays([]time.Duration{0, 0, 0})}, opts...)...)
	return f
}

func testAppointment() *scheduling.Appointment {
	return &scheduling.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		ProviderID:      uuid.New(),
		StartTime:       time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		AppointmentType: "office_visit",
		Status:          scheduling.StatusScheduled,
	}
}

func TestProcessCreatesAndLinksAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/appointments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, `{"id": "ext-50"}`)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	a := testAppointment()
	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: a})

	if got := f.appts.externalID(a.ID); got != "ext-50" {
		t.Errorf("recorded external id = %q, want ext-50", got)
	}
}

func TestProcessUpdatesLinkedAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/appointments/ext-9" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	a := testAppointment()
	a.ExternalID = strPtr("ext-9")
	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: a})

	if got := f.appts.externalID(a.ID); got != "" {
		t.Errorf("update should not rewrite the external id, got %q", got)
	}
}

func TestProcessResolvesPartyExternalIDs(t *testing.T) {
	var got AppointmentRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"id": "ext-1"}`)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	a := testAppointment()
	f.patients.patients[a.PatientID] = &patient.Patient{ID: a.PatientID, ExternalID: strPtr("pat-1")}
	f.providers.providers[a.ProviderID] = &provider.Provider{ID: a.ProviderID, ExternalID: strPtr("doc-2")}

	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: a})

	if got.PatientID != "pat-1" || got.ProviderID != "doc-2" {
		t.Errorf("payload ids = %q/%q, want pat-1/doc-2", got.PatientID, got.ProviderID)
	}
}

func TestProcessPushesPatientDemographics(t *testing.T) {
	var got PatientRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/patients" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"id": "pat-77"}`)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	p := &patient.Patient{
		ID:           uuid.New(),
		FirstName:    "Dana",
		LastName:     "Reyes",
		DateOfBirth:  time.Date(1985, 2, 3, 0, 0, 0, 0, time.UTC),
		Gender:       "female",
		PhonePrimary: strPtr("555-0100"),
		City:         strPtr("Portland"),
	}
	f.dispatcher.process(context.Background(), task{kind: kindPatient, patient: p})

	if f.patients.externalID(p.ID) != "pat-77" {
		t.Errorf("recorded external id = %q, want pat-77", f.patients.externalID(p.ID))
	}
	if got.DateOfBirth != "1985-02-03" {
		t.Errorf("date_of_birth = %q, want 1985-02-03", got.DateOfBirth)
	}
	if got.Address == nil || got.Address.City == nil || *got.Address.City != "Portland" {
		t.Errorf("address not carried: %+v", got.Address)
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	d := NewDispatcher(client, newFakeApptStore(), newFakePatientStore(), &fakeProviderDir{}, 1, zerolog.Nop())

	d.EnqueueAppointmentPush(testAppointment())
	d.EnqueueAppointmentPush(testAppointment())

	if got := len(d.queue); got != 1 {
		t.Errorf("queue depth = %d, want 1 (second push dropped)", got)
	}
}

func TestEnqueueSnapshotsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	d := NewDispatcher(client, newFakeApptStore(), newFakePatientStore(), &fakeProviderDir{}, 8, zerolog.Nop())

	a := testAppointment()
	d.EnqueueAppointmentPush(a)
	a.Status = scheduling.StatusCancelled

	got := <-d.queue
	if got.appointment.Status != scheduling.StatusScheduled {
		t.Errorf("queued status = %s, want the state at enqueue time", got.appointment.Status)
	}
}

func TestFailedPushIsRequeuedWithBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: testAppointment()})

	select {
	case got := <-f.dispatcher.queue:
		if got.attempt != 1 {
			t.Errorf("requeued attempt = %d, want 1", got.attempt)
		}
	case <-time.After(time.Second):
		t.Fatal("failed push was not requeued")
	}
}

func TestGivesUpWhenRetryBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: testAppointment(), attempt: 3})

	select {
	case <-f.dispatcher.queue:
		t.Fatal("task requeued past its retry budget")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenCircuitShortCircuitsDelivery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL, WithBreaker(1, time.Hour))
	f.dispatcher.process(context.Background(), task{kind: kindAppointment, appointment: testAppointment()})

	var requeued task
	select {
	case requeued = <-f.dispatcher.queue:
	case <-time.After(time.Second):
		t.Fatal("failed push was not requeued")
	}

	// The breaker tripped on the first failure, so the retry must not
	// reach the remote.
	f.dispatcher.process(context.Background(), requeued)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
	select {
	case got := <-f.dispatcher.queue:
		if got.attempt != 2 {
			t.Errorf("requeued attempt = %d, want 2", got.attempt)
		}
	case <-time.After(time.Second):
		t.Fatal("short-circuited push was not requeued")
	}
}

func TestStartDeliversEnqueuedPushes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "ext-500"}`)
	}))
	defer srv.Close()

	f := newSyncFixture(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.dispatcher.Start(ctx)

	a := testAppointment()
	f.dispatcher.EnqueueAppointmentPush(a)

	deadline := time.Now().Add(2 * time.Second)
	for f.appts.externalID(a.ID) == "" {
		if time.Now().After(deadline) {
			t.Fatal("enqueued push was not delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
