package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebase/carebase/internal/domain/provider"
	"github.com/carebase/carebase/internal/platform/telemetry"
)

var validAppointmentTypes = map[string]bool{
	"consultation": true, "follow_up": true, "physical_exam": true,
	"procedure": true, "emergency": true, "telehealth": true,
	"vaccination": true, "lab_work": true, "imaging": true, "therapy": true,
}

var validUrgencies = map[string]bool{
	"low": true, "medium": true, "high": true, "urgent": true,
}

// Dispatcher receives appointments whose changes should propagate to the
// external system. Implementations must not block.
type Dispatcher interface {
	EnqueueAppointmentPush(a *Appointment)
}

type Service struct {
	repo      Repository
	providers ProviderDirectory

	sync    Dispatcher
	metrics *telemetry.Metrics

	enforceConflicts bool
	now              func() time.Time
}

func NewService(repo Repository, providers ProviderDirectory, enforceConflicts bool) *Service {
	return &Service{
		repo:             repo,
		providers:        providers,
		enforceConflicts: enforceConflicts,
		now:              time.Now,
	}
}

// SetSyncDispatcher attaches the external sync pipeline. Without one,
// changes stay local.
func (s *Service) SetSyncDispatcher(d Dispatcher) { s.sync = d }

// SetMetrics attaches Prometheus instrumentation.
func (s *Service) SetMetrics(m *telemetry.Metrics) { s.metrics = m }

func (s *Service) enqueueSync(a *Appointment) {
	if s.sync != nil {
		s.sync.EnqueueAppointmentPush(a)
	}
}

// Schedule validates and books a new appointment. When conflict
// enforcement is on, the booking runs inside a transaction holding the
// provider's calendar lock, so two concurrent requests for the same slot
// cannot both commit.
func (s *Service) Schedule(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return NewValidationError("patient_id is required")
	}
	if a.ProviderID == uuid.Nil {
		return NewValidationError("provider_id is required")
	}
	if a.StartTime.IsZero() {
		return NewValidationError("start_time is required")
	}
	if a.StartTime.Before(s.now()) {
		return NewValidationError("start_time cannot be in the past")
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if a.DurationMinutes < MinDurationMinutes || a.DurationMinutes > MaxDurationMinutes {
		return NewValidationError("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	if a.AppointmentType == "" {
		return NewValidationError("appointment_type is required")
	}
	if !validAppointmentTypes[a.AppointmentType] {
		return NewValidationError("invalid appointment_type: %s", a.AppointmentType)
	}
	if a.Urgency == "" {
		a.Urgency = "medium"
	}
	if !validUrgencies[a.Urgency] {
		return NewValidationError("invalid urgency: %s", a.Urgency)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	} else if _, err := ParseStatus(string(a.Status)); err != nil {
		return NewValidationError("%s", err)
	}

	if err := s.checkProvider(ctx, a); err != nil {
		return err
	}

	if !s.enforceConflicts {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
	} else {
		err := s.repo.InTx(ctx, func(ctx context.Context) error {
			if err := s.repo.LockProviderCalendar(ctx, a.ProviderID); err != nil {
				return err
			}
			conflicts, err := s.repo.ListOverlapping(ctx, a.ProviderID, a.StartTime, a.EndTime(), nil)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return NewConflictError(conflicts)
			}
			return s.repo.Create(ctx, a)
		})
		if err != nil {
			var ce *ConflictError
			if errors.As(err, &ce) {
				s.metrics.ConflictRejected()
			}
			return err
		}
	}

	s.metrics.AppointmentEvent("schedule")
	s.enqueueSync(a)
	return nil
}

// checkProvider verifies the target provider can take the booking. A
// provider who stopped accepting new patients can still see an
// established patient, one with at least one prior appointment on record.
func (s *Service) checkProvider(ctx context.Context, a *Appointment) error {
	p, err := s.providers.GetByID(ctx, a.ProviderID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return ErrProviderNotFound
		}
		return err
	}
	if p.Status != "active" {
		return NewValidationError("provider is not active")
	}
	if !p.AcceptingNewPatients {
		n, err := s.repo.CountByPatientAndProvider(ctx, a.PatientID, a.ProviderID)
		if err != nil {
			return err
		}
		if n == 0 {
			return NewValidationError("provider is not accepting new patients")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a full-record edit. The lifecycle endpoints own the state
// machine; this is for corrections to the booking details.
func (s *Service) Update(ctx context.Context, a *Appointment) error {
	if _, err := ParseStatus(string(a.Status)); err != nil {
		return NewValidationError("%s", err)
	}
	if !validAppointmentTypes[a.AppointmentType] {
		return NewValidationError("invalid appointment_type: %s", a.AppointmentType)
	}
	if !validUrgencies[a.Urgency] {
		return NewValidationError("invalid urgency: %s", a.Urgency)
	}
	if a.DurationMinutes < MinDurationMinutes || a.DurationMinutes > MaxDurationMinutes {
		return NewValidationError("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	s.metrics.AppointmentEvent("update")
	s.enqueueSync(a)
	return nil
}

func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, f ListFilter) ([]*Appointment, error) {
	return s.repo.ListByDateRange(ctx, from, to, f)
}

// Reschedule moves an appointment to a new start time. The conflict check
// always runs here, excluding the appointment itself so a booking can keep
// its own slot while changing duration.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, newDuration *int) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, EventReschedule) {
		return nil, NewValidationError("appointment in status %s cannot be rescheduled", a.Status)
	}
	if newStart.IsZero() {
		return nil, NewValidationError("start_time is required")
	}
	duration := a.DurationMinutes
	if newDuration != nil {
		duration = *newDuration
	}
	if duration < MinDurationMinutes || duration > MaxDurationMinutes {
		return nil, NewValidationError("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}

	end := newStart.Add(time.Duration(duration) * time.Minute)
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockProviderCalendar(ctx, a.ProviderID); err != nil {
			return err
		}
		conflicts, err := s.repo.ListOverlapping(ctx, a.ProviderID, newStart, end, &a.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return NewConflictError(conflicts)
		}
		a.StartTime = newStart
		a.DurationMinutes = duration
		a.Status = StatusRescheduled
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			s.metrics.ConflictRejected()
		}
		return nil, err
	}

	s.metrics.AppointmentEvent("reschedule")
	s.enqueueSync(a)
	return a, nil
}

// Cancel marks the appointment cancelled. Cancelling an already cancelled
// appointment is a no-op returning the record unchanged, so the original
// cancellation time and reason survive repeated calls.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	if !CanTransition(a.Status, EventCancel) {
		return nil, NewValidationError("appointment in status %s cannot be cancelled", a.Status)
	}
	a.Status = StatusCancelled
	now := s.now()
	a.CancelledAt = &now
	if reason != nil {
		a.CancellationReason = reason
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentEvent("cancel")
	s.enqueueSync(a)
	return a, nil
}

// CheckIn records patient arrival. The appointment must be confirmed and
// the clock must fall inside [start_time - 30m, end_time].
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, EventCheckIn) {
		return nil, NewValidationError("appointment must be confirmed before check-in")
	}
	now := s.now()
	if !a.CanCheckIn(now) {
		return nil, NewValidationError("appointment cannot be checked in at this time")
	}
	a.Status = StatusCheckedIn
	a.CheckInTime = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentEvent("check_in")
	s.enqueueSync(a)
	return a, nil
}

// Start moves the appointment to in_progress, stamping the actual start
// the first time only.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = StatusInProgress
	if a.ActualStartTime == nil {
		now := s.now()
		a.ActualStartTime = &now
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentEvent("start")
	s.enqueueSync(a)
	return a, nil
}

// Complete closes out the visit. Completion notes are appended to any
// existing notes rather than replacing them.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = StatusCompleted
	now := s.now()
	if a.ActualEndTime == nil {
		a.ActualEndTime = &now
	}
	if a.CheckOutTime == nil {
		a.CheckOutTime = &now
	}
	if notes != nil && *notes != "" {
		current := ""
		if a.Notes != nil {
			current = *a.Notes
		}
		combined := strings.TrimSpace(current + "\nCompletion Notes: " + *notes)
		a.Notes = &combined
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentEvent("complete")
	s.enqueueSync(a)
	return a, nil
}

// MarkNoShow records that the patient never arrived. Only the status
// changes, so the booked window stays on record for reporting.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = StatusNoShow
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.AppointmentEvent("no_show")
	s.enqueueSync(a)
	return a, nil
}

// CheckConflicts reports the occupying appointments colliding with the
// proposed window without booking anything.
func (s *Service) CheckConflicts(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, excludeID *uuid.UUID) ([]*Appointment, error) {
	if providerID == uuid.Nil {
		return nil, NewValidationError("provider_id is required")
	}
	if start.IsZero() {
		return nil, NewValidationError("start_time is required")
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return s.repo.ListOverlapping(ctx, providerID, start, end, excludeID)
}

// ComputeAvailability lists the open slots for a provider on one calendar
// date. An unknown or inactive provider yields an empty list, not an
// error.
func (s *Service) ComputeAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, slotMinutes int) ([]Window, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return []Window{}, nil
		}
		return nil, err
	}
	if p.Status != "active" {
		return []Window{}, nil
	}
	if slotMinutes <= 0 {
		slotMinutes = p.DefaultDurationMins
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	hours, ok := p.WorkingHours.ForWeekday(day.Weekday())
	if !ok {
		hours = provider.DefaultDayHours
	}
	bounds, err := resolveBounds(hours)
	if err != nil {
		return nil, err
	}

	busy, err := s.repo.ListOverlapping(ctx, providerID, day, day.Add(24*time.Hour), nil)
	if err != nil {
		return nil, err
	}
	return buildSlots(day, bounds, busy, time.Duration(slotMinutes)*time.Minute), nil
}

// resolveBounds converts wall-clock working hours into minute offsets
// from midnight.
func resolveBounds(h provider.DayHours) (dayBounds, error) {
	var b dayBounds
	var err error
	if b.startMin, err = h.Start.Minutes(); err != nil {
		return b, err
	}
	if b.endMin, err = h.End.Minutes(); err != nil {
		return b, err
	}
	if h.Break != nil {
		b.breakSet = true
		if b.breakStartMin, err = h.Break.Start.Minutes(); err != nil {
			return b, err
		}
		if b.breakEndMin, err = h.Break.End.Minutes(); err != nil {
			return b, err
		}
	}
	return b, nil
}

// Overview summarizes one day's calendar.
type Overview struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	Appointments []*Appointment `json:"appointments"`
}

// TodayOverview summarizes the current day's appointments, optionally
// narrowed to one provider. Every status appears in the count map even
// when zero.
func (s *Service) TodayOverview(ctx context.Context, providerID *uuid.UUID) (*Overview, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)

	appts, err := s.repo.ListByDateRange(ctx, from, to, ListFilter{ProviderID: providerID})
	if err != nil {
		return nil, err
	}
	ov := &Overview{Total: len(appts), ByStatus: make(map[Status]int, len(validStatuses)), Appointments: appts}
	for st := range validStatuses {
		ov.ByStatus[st] = 0
	}
	for _, a := range appts {
		ov.ByStatus[a.Status]++
	}
	return ov, nil
}
