// Package handlers exposes the scheduling tool endpoints the voice agent
// calls mid-conversation. Domain failures are returned as HTTP 200 bodies
// with success=false and a sentence the agent can speak; only infrastructure
// failures (missing org id, broken downstream) return non-2xx.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/internal/calendar"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/slots"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// bookingService runs the booking state machine.
type bookingService interface {
	Book(ctx context.Context, req appointments.BookRequest) (*appointments.BookResult, error)
	Cancel(ctx context.Context, req appointments.CancelRequest) (*appointments.CancelResult, error)
	Reschedule(ctx context.Context, req appointments.RescheduleRequest) (*appointments.RescheduleResult, error)
}

// orgDirectory resolves org settings.
type orgDirectory interface {
	Get(ctx context.Context, orgID string) (*org.Settings, error)
}

// availabilityCalendar is the external calendar surface availability checks
// need. Satisfied by *calendar.Gateway.
type availabilityCalendar interface {
	ValidAccessToken(ctx context.Context, orgID string) (string, bool)
	SelectedCalendarID(ctx context.Context, orgID string) string
	FetchEvents(ctx context.Context, token, calendarID string, from, to time.Time) []calendar.EventWindow
}

// busySource reads locally booked intervals.
type busySource interface {
	BusyIntervals(ctx context.Context, orgID string, from, to time.Time) ([]slots.Interval, error)
}

// searchMetrics observes availability searches. Nil-receiver safe.
type searchMetrics interface {
	ObserveSlotSearch(preference string, seconds float64)
}

// ToolsHandler serves the four scheduling tool endpoints.
type ToolsHandler struct {
	bookings bookingService
	orgs     orgDirectory
	calendar availabilityCalendar
	busy     busySource
	metrics  searchMetrics
	logger   *logging.Logger

	duration time.Duration
	maxSlots int
	now      func() time.Time
}

// ToolsHandlerConfig configures the ToolsHandler.
type ToolsHandlerConfig struct {
	Bookings        bookingService
	Orgs            orgDirectory
	Calendar        availabilityCalendar
	Busy            busySource
	Metrics         searchMetrics
	Logger          *logging.Logger
	DefaultDuration time.Duration
	MaxSlots        int
}

// NewToolsHandler creates a ToolsHandler.
func NewToolsHandler(cfg ToolsHandlerConfig) *ToolsHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 60 * time.Minute
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = slots.DefaultMaxSlots
	}
	return &ToolsHandler{
		bookings: cfg.Bookings,
		orgs:     cfg.Orgs,
		calendar: cfg.Calendar,
		busy:     cfg.Busy,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		duration: cfg.DefaultDuration,
		maxSlots: cfg.MaxSlots,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (h *ToolsHandler) WithClock(now func() time.Time) *ToolsHandler {
	h.now = now
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type checkAvailabilityRequest struct {
	OrganizationID  string `json:"organization_id"`
	DatePreference  string `json:"date_preference"`
	DurationMinutes int    `json:"duration_minutes"`
}

type availabilityResponse struct {
	AvailableSlots []slotPayload `json:"available_slots"`
	NextAvailable  string        `json:"next_available"`
	BusinessHours  string        `json:"business_hours"`
}

type slotPayload struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Display string `json:"display"`
}

// CheckAvailability handles POST /tools/check-availability.
func (h *ToolsHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	settings, err := h.orgs.Get(ctx, req.OrganizationID)
	if err == org.ErrNotFound {
		writeJSON(w, http.StatusOK, availabilityResponse{
			AvailableSlots: []slotPayload{},
			NextAvailable:  "I couldn't look up the business's schedule. Let me take down your preferred time and someone will confirm with you.",
			BusinessHours:  "",
		})
		return
	}
	if err != nil {
		h.logger.Error("org lookup failed", "error", err, "org_id", req.OrganizationID)
		writeError(w, http.StatusInternalServerError, "failed to load organization")
		return
	}

	loc := settings.Location()
	schedule := settings.Schedule()
	summary := schedule.Summary()

	token, connected := h.calendar.ValidAccessToken(ctx, req.OrganizationID)
	if !connected {
		writeJSON(w, http.StatusOK, availabilityResponse{
			AvailableSlots: []slotPayload{},
			NextAvailable:  "The calendar isn't connected yet, so I can't see live openings. What time works for you and I'll pass it along?",
			BusinessHours:  summary,
		})
		return
	}

	start, end := slots.RangeForPreference(req.DatePreference, h.now().In(loc), loc)

	duration := h.duration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	searchStart := time.Now()
	busy := h.busyIntervals(ctx, req.OrganizationID, token, start, end)
	found := slots.Find(start, end, schedule, busy, duration, loc, h.maxSlots)
	if h.metrics != nil {
		h.metrics.ObserveSlotSearch(req.DatePreference, time.Since(searchStart).Seconds())
	}

	resp := availabilityResponse{
		AvailableSlots: make([]slotPayload, 0, len(found)),
		BusinessHours:  summary,
	}
	for _, s := range found {
		resp.AvailableSlots = append(resp.AvailableSlots, slotPayload{
			Start:   s.Start.Format(time.RFC3339),
			End:     s.End.Format(time.RFC3339),
			Display: s.Display,
		})
	}
	if len(found) > 0 {
		resp.NextAvailable = found[0].Display
	} else {
		resp.NextAvailable = "I don't see any openings in that range. Would another day work?"
	}
	writeJSON(w, http.StatusOK, resp)
}

// busyIntervals merges the external calendar's timed events with locally
// booked intervals so a slot held in either system is never offered.
func (h *ToolsHandler) busyIntervals(ctx context.Context, orgID, token string, from, to time.Time) []slots.Interval {
	var busy []slots.Interval
	calendarID := h.calendar.SelectedCalendarID(ctx, orgID)
	for _, ev := range h.calendar.FetchEvents(ctx, token, calendarID, from, to) {
		busy = append(busy, slots.Interval{Start: ev.Start, End: ev.End})
	}
	if h.busy != nil {
		local, err := h.busy.BusyIntervals(ctx, orgID, from, to)
		if err != nil {
			h.logger.Warn("local busy lookup failed", "error", err, "org_id", orgID)
		} else {
			busy = append(busy, local...)
		}
	}
	return busy
}

type bookAppointmentRequest struct {
	OrganizationID      string `json:"organization_id"`
	CustomerName        string `json:"customer_name"`
	CustomerPhone       string `json:"customer_phone"`
	AppointmentDatetime string `json:"appointment_datetime"`
	DurationMinutes     int    `json:"duration_minutes"`
	ProviderID          string `json:"provider_id"`
	ServiceType         string `json:"service_type"`
	Notes               string `json:"notes"`
}

// BookAppointment handles POST /tools/book-appointment.
func (h *ToolsHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	result, err := h.bookings.Book(r.Context(), appointments.BookRequest{
		OrgID:           req.OrganizationID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Datetime:        req.AppointmentDatetime,
		DurationMinutes: req.DurationMinutes,
		ProviderID:      req.ProviderID,
		ServiceType:     req.ServiceType,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logger.Error("booking failed", "error", err, "org_id", req.OrganizationID)
		writeError(w, http.StatusInternalServerError, "booking failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cancelAppointmentRequest struct {
	OrganizationID      string `json:"organization_id"`
	CustomerPhone       string `json:"customer_phone"`
	AppointmentDatetime string `json:"appointment_datetime"`
}

// CancelAppointment handles POST /tools/cancel-appointment.
func (h *ToolsHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	result, err := h.bookings.Cancel(r.Context(), appointments.CancelRequest{
		OrgID:         req.OrganizationID,
		CustomerPhone: req.CustomerPhone,
		Datetime:      req.AppointmentDatetime,
	})
	if err != nil {
		h.logger.Error("cancellation failed", "error", err, "org_id", req.OrganizationID)
		writeError(w, http.StatusInternalServerError, "cancellation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rescheduleAppointmentRequest struct {
	OrganizationID             string `json:"organization_id"`
	CustomerPhone              string `json:"customer_phone"`
	CurrentAppointmentDatetime string `json:"current_appointment_datetime"`
	NewDatetime                string `json:"new_datetime"`
	NewDurationMinutes         int    `json:"new_duration_minutes"`
}

// RescheduleAppointment handles POST /tools/reschedule-appointment.
func (h *ToolsHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req rescheduleAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrganizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id is required")
		return
	}

	result, err := h.bookings.Reschedule(r.Context(), appointments.RescheduleRequest{
		OrgID:              req.OrganizationID,
		CustomerPhone:      req.CustomerPhone,
		CurrentDatetime:    req.CurrentAppointmentDatetime,
		NewDatetime:        req.NewDatetime,
		NewDurationMinutes: req.NewDurationMinutes,
	})
	if err != nil {
		h.logger.Error("reschedule failed", "error", err, "org_id", req.OrganizationID)
		writeError(w, http.StatusInternalServerError, "reschedule failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
