package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebase/carebase/internal/domain/patient"
	"github.com/carebase/carebase/internal/domain/provider"
	"github.com/carebase/carebase/internal/domain/scheduling"
	"github.com/carebase/carebase/internal/platform/telemetry"
)

const (
	kindAppointment = "appointment"
	kindPatient     = "patient"
)

var errCircuitOpen = errors.New("sync circuit open")

// AppointmentStore is the slice of the scheduling repository the
// dispatcher needs: writing back the id the remote system assigned.
type AppointmentStore interface {
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error
}

// PatientStore resolves patients for push payloads and records their
// remote ids.
type PatientStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error
}

// ProviderDirectory resolves the providers referenced by a push.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
}

type task struct {
	kind        string
	appointment *scheduling.Appointment
	patient     *patient.Patient
	attempt     int
}

// Dispatcher queues record pushes and delivers them from a single
// worker. Enqueueing never blocks; when the queue is full the push is
// dropped and counted. Failed deliveries are retried on a fixed
// schedule, and a circuit breaker short-circuits delivery while the
// remote is down.
type Dispatcher struct {
	client    *Client
	appts     AppointmentStore
	patients  PatientStore
	providers ProviderDirectory

	queue       chan task
	retryDelays []time.Duration
	breaker     *breaker
	logger      zerolog.Logger
	metrics     *telemetry.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRetryDelays overrides the redelivery schedule.
func WithRetryDelays(delays []time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.retryDelays = delays }
}

// WithBreaker overrides the circuit breaker's failure threshold and
// cooldown.
func WithBreaker(threshold int, cooldown time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.breaker = newBreaker(threshold, cooldown) }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *telemetry.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds the push pipeline. Start must be running before
// enqueued work is delivered.
func NewDispatcher(client *Client, appts AppointmentStore, patients PatientStore, providers ProviderDirectory, queueSize int, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		client:      client,
		appts:       appts,
		patients:    patients,
		providers:   providers,
		queue:       make(chan task, queueSize),
		retryDelays: []time.Duration{1 * time.Second, 30 * time.Second, 5 * time.Minute},
		breaker:     newBreaker(5, 30*time.Second),
		logger:      logger.With().Str("component", "sync-dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnqueueAppointmentPush queues a push of the appointment's current
// state. The record is snapshotted, so the caller may keep mutating it.
func (d *Dispatcher) EnqueueAppointmentPush(a *scheduling.Appointment) {
	snapshot := *a
	d.enqueue(task{kind: kindAppointment, appointment: &snapshot})
}

// EnqueuePatientPush queues a push of the patient's current demographics.
func (d *Dispatcher) EnqueuePatientPush(p *patient.Patient) {
	snapshot := *p
	d.enqueue(task{kind: kindPatient, patient: &snapshot})
}

func (d *Dispatcher) enqueue(t task) {
	select {
	case d.queue <- t:
		d.metrics.SetSyncQueueDepth(len(d.queue))
	default:
		d.logger.Warn().Str("kind", t.kind).Msg("sync queue full, dropping push")
		d.metrics.SyncDelivery(t.kind, "dropped")
	}
}

// Start runs the delivery loop until ctx is cancelled. Call it once,
// from its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Int("queue_capacity", cap(d.queue)).Msg("sync dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Int("pending", len(d.queue)).Msg("sync dispatcher stopped")
			return
		case t := <-d.queue:
			d.metrics.SetSyncQueueDepth(len(d.queue))
			d.process(ctx, t)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, t task) {
	if !d.breaker.Allow(time.Now()) {
		d.retryLater(ctx, t, errCircuitOpen)
		return
	}
	err := d.deliver(ctx, t)
	if err == nil {
		d.breaker.RecordSuccess()
		d.metrics.SyncDelivery(t.kind, "success")
		return
	}
	if ctx.Err() != nil {
		return
	}
	d.breaker.RecordFailure(time.Now())
	d.retryLater(ctx, t, err)
}

// retryLater re-queues the task after the next delay in the schedule,
// or gives up once the schedule is exhausted.
func (d *Dispatcher) retryLater(ctx context.Context, t task, cause error) {
	if t.attempt >= len(d.retryDelays) {
		d.logger.Error().Err(cause).
			Str("kind", t.kind).
			Int("attempts", t.attempt+1).
			Msg("sync push failed, giving up")
		d.metrics.SyncDelivery(t.kind, "failed")
		return
	}
	delay := d.retryDelays[t.attempt]
	t.attempt++
	d.logger.Warn().Err(cause).
		Str("kind", t.kind).
		Int("attempt", t.attempt).
		Dur("retry_in", delay).
		Msg("sync push failed, will retry")
	d.metrics.SyncDelivery(t.kind, "retried")
	time.AfterFunc(delay, func() {
		select {
		case <-ctx.Done():
		case d.queue <- t:
			d.metrics.SetSyncQueueDepth(len(d.queue))
		default:
			d.logger.Warn().Str("kind", t.kind).Msg("sync queue full, dropping retry")
			d.metrics.SyncDelivery(t.kind, "dropped")
		}
	})
}

func (d *Dispatcher) deliver(ctx context.Context, t task) error {
	switch t.kind {
	case kindAppointment:
		return d.deliverAppointment(ctx, t.appointment)
	case kindPatient:
		return d.deliverPatient(ctx, t.patient)
	default:
		return fmt.Errorf("unknown sync task kind %q", t.kind)
	}
}

func (d *Dispatcher) deliverAppointment(ctx context.Context, a *scheduling.Appointment) error {
	rec := &AppointmentRecord{
		AppointmentDate: a.StartTime,
		DurationMinutes: a.DurationMinutes,
		Type:            a.AppointmentType,
		Status:          string(a.Status),
		ChiefComplaint:  a.ChiefComplaint,
		ReasonForVisit:  a.ReasonForVisit,
		Notes:           a.Notes,
		Location:        a.Location,
		Room:            a.RoomNumber,
		IsTelehealth:    a.IsTelehealth,
		TelehealthLink:  a.TelehealthLink,
	}
	// Unlinked references push without a remote id; the remote side
	// holds them unmatched until the counterpart record syncs.
	if p, err := d.patients.GetByID(ctx, a.PatientID); err == nil && p.ExternalID != nil {
		rec.PatientID = *p.ExternalID
	}
	if pr, err := d.providers.GetByID(ctx, a.ProviderID); err == nil && pr.ExternalID != nil {
		rec.ProviderID = *pr.ExternalID
	}

	if a.ExternalID != nil && *a.ExternalID != "" {
		return d.client.UpdateAppointment(ctx, *a.ExternalID, rec)
	}
	externalID, err := d.client.CreateAppointment(ctx, rec)
	if err != nil {
		return err
	}
	if err := d.appts.SetExternalID(ctx, a.ID, externalID); err != nil {
		return fmt.Errorf("record remote appointment id: %w", err)
	}
	d.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("external_id", externalID).
		Msg("appointment linked to remote record")
	return nil
}

func (d *Dispatcher) deliverPatient(ctx context.Context, p *patient.Patient) error {
	rec := patientRecord(p)
	if p.ExternalID != nil && *p.ExternalID != "" {
		return d.client.UpdatePatient(ctx, *p.ExternalID, rec)
	}
	externalID, err := d.client.CreatePatient(ctx, rec)
	if err != nil {
		return err
	}
	if err := d.patients.SetExternalID(ctx, p.ID, externalID); err != nil {
		return fmt.Errorf("record remote patient id: %w", err)
	}
	d.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("external_id", externalID).
		Msg("patient linked to remote record")
	return nil
}

func patientRecord(p *patient.Patient) *PatientRecord {
	rec := &PatientRecord{
		FirstName:   p.FirstName,
		MiddleName:  p.MiddleName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Gender:      p.Gender,
		Email:       p.Email,
		Phone:       p.PhonePrimary,
	}
	if p.AddressLine1 != nil || p.AddressLine2 != nil || p.City != nil || p.State != nil || p.PostalCode != nil {
		rec.Address = &AddressRecord{
			Line1: p.AddressLine1,
			Line2: p.AddressLine2,
			City:  p.City,
			State: p.State,
			Zip:   p.PostalCode,
		}
	}
	if p.EmergencyContactName != nil || p.EmergencyContactPhone != nil {
		rec.EmergencyContact = &EmergencyContactRecord{
			Name:  p.EmergencyContactName,
			Phone: p.EmergencyContactPhone,
		}
	}
	return rec
}
