package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebase/carebase/internal/platform/auth"
	"github.com/carebase/carebase/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar", "scheduler"))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/today/overview", h.TodayOverview)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.POST("/appointments/check-conflicts", h.CheckConflicts)
	readGroup.GET("/providers/:id/availability", h.GetAvailability)

	writeGroup := api.Group("", auth.RequireRole("admin", "registrar", "scheduler"))
	writeGroup.POST("/appointments", h.CreateAppointment)
	writeGroup.PUT("/appointments/:id", h.UpdateAppointment)
	writeGroup.DELETE("/appointments/:id", h.CancelAppointment)
	writeGroup.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	writeGroup.POST("/appointments/:id/cancel", h.CancelAppointment)
	writeGroup.POST("/appointments/:id/check-in", h.CheckInAppointment)
	writeGroup.POST("/appointments/:id/start", h.StartAppointment)
	writeGroup.POST("/appointments/:id/complete", h.CompleteAppointment)
	writeGroup.POST("/appointments/:id/no-show", h.NoShowAppointment)
}

// respondError maps service errors to HTTP statuses: validation failures
// are 400, slot conflicts 409 with the colliding windows in the body,
// unknown ids 404, anything else 500.
func respondError(c echo.Context, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     ce.Error(),
			"conflicts": ce.Windows,
		})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	if errors.Is(err, ErrProviderNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Schedule(c.Request().Context(), &a); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListAppointments requires an explicit date range and filters optionally
// by provider, patient and status. The service returns the full ordered
// range; the pagination window is applied here.
func (h *Handler) ListAppointments(c echo.Context) error {
	from, err := time.Parse(dateLayout, c.QueryParam("start_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_date is required (YYYY-MM-DD)")
	}
	end, err := time.Parse(dateLayout, c.QueryParam("end_date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end_date is required (YYYY-MM-DD)")
	}
	to := end.Add(24 * time.Hour)

	var f ListFilter
	if v := c.QueryParam("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
		f.ProviderID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = &st
	}

	items, err := h.svc.ListByDateRange(c.Request().Context(), from, to, f)
	if err != nil {
		return respondError(c, err)
	}
	pg := pagination.FromContext(c)
	page := pagination.Slice(items, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(items), pg.Limit, pg.Offset))
}

// UpdateAppointment binds the request body over the stored record, so
// fields absent from the payload keep their current values.
func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if err := c.Bind(a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), a); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		StartTime       time.Time `json:"start_time"`
		DurationMinutes *int      `json:"duration_minutes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Reschedule(c.Request().Context(), id, req.StartTime, req.DurationMinutes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason *string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CheckInAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) StartAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Notes *string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Complete(c.Request().Context(), id, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) NoShowAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.MarkNoShow(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// CheckConflicts probes a proposed slot and reports the collisions
// without booking. It always answers 200; the conflict outcome lives in
// the body.
func (h *Handler) CheckConflicts(c echo.Context) error {
	var req struct {
		ProviderID      uuid.UUID  `json:"provider_id"`
		StartTime       time.Time  `json:"start_time"`
		DurationMinutes int        `json:"duration_minutes"`
		ExcludeID       *uuid.UUID `json:"exclude_appointment_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conflicts, err := h.svc.CheckConflicts(c.Request().Context(), req.ProviderID, req.StartTime, req.DurationMinutes, req.ExcludeID)
	if err != nil {
		return respondError(c, err)
	}
	if conflicts == nil {
		conflicts = []*Appointment{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	})
}

func (h *Handler) GetAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	date, err := time.Parse(dateLayout, c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required (YYYY-MM-DD)")
	}
	slotMinutes, _ := strconv.Atoi(c.QueryParam("slot_minutes"))

	slots, err := h.svc.ComputeAvailability(c.Request().Context(), id, date, slotMinutes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"provider_id":  id,
		"date":         date.Format(dateLayout),
		"availability": slots,
	})
}

func (h *Handler) TodayOverview(c echo.Context) error {
	var providerID *uuid.UUID
	if v := c.QueryParam("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
		providerID = &id
	}
	ov, err := h.svc.TodayOverview(c.Request().Context(), providerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}
