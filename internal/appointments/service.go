package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/frontdeskhq/receptionist-platform/internal/contacts"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/phone"
	"github.com/frontdeskhq/receptionist-platform/internal/providers"
	"github.com/frontdeskhq/receptionist-platform/internal/slots"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

var tracer = otel.Tracer("receptionist.internal.appointments")

// Sync actions enqueued for the external calendar deliverer.
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionCancel = "cancel"
)

// disambiguationWindow is how far a caller-supplied target time may sit from
// an appointment's start and still count as "the one they mean".
const disambiguationWindow = 30 * time.Minute

// maxCandidates caps how many matches are read back to the caller when
// disambiguating.
const maxCandidates = 5

// OrgDirectory resolves an org's settings. Satisfied by *org.Store.
type OrgDirectory interface {
	Get(ctx context.Context, orgID string) (*org.Settings, error)
}

// ContactWriter records callers who book. Satisfied by *contacts.Store.
type ContactWriter interface {
	Upsert(ctx context.Context, orgID, phone, name string) (*contacts.Contact, error)
}

// SyncEnqueuer hands a booking change to the external calendar push pipeline.
type SyncEnqueuer interface {
	EnqueuePush(ctx context.Context, orgID string, eventID uuid.UUID, action string) error
}

// Notifier dispatches outbound notifications about booking changes.
type Notifier interface {
	AppointmentBooked(ctx context.Context, event *CalendarEvent) error
	AppointmentCancelled(ctx context.Context, event *CalendarEvent) error
	AppointmentRescheduled(ctx context.Context, event *CalendarEvent) error
}

// Metrics observes booking outcomes. Implementations must tolerate a nil
// receiver.
type Metrics interface {
	ObserveBooking(operation, outcome string)
}

// Service runs the booking state machine. Domain failures come back as a
// result with Success=false and a sentence the voice agent can read aloud;
// only infrastructure failures return an error.
type Service struct {
	repo            Repository
	orgs            OrgDirectory
	providers       providers.Repository
	contacts        ContactWriter
	syncQueue       SyncEnqueuer
	notifier        Notifier
	metrics         Metrics
	logger          *logging.Logger
	defaultDuration time.Duration
	now             func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithContacts wires opportunistic contact upserts.
func WithContacts(w ContactWriter) ServiceOption {
	return func(s *Service) { s.contacts = w }
}

// WithSyncQueue wires fire-and-forget external calendar pushes.
func WithSyncQueue(q SyncEnqueuer) ServiceOption {
	return func(s *Service) { s.syncQueue = q }
}

// WithNotifier wires outbound booking notifications.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics wires booking outcome counters.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultDuration overrides the 60 minute default appointment length.
func WithDefaultDuration(d time.Duration) ServiceOption {
	return func(s *Service) { s.defaultDuration = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService constructs a booking service.
func NewService(repo Repository, orgs OrgDirectory, providerDir providers.Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if orgs == nil {
		panic("appointments: org directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:            repo,
		orgs:            orgs,
		providers:       providerDir,
		logger:          logger,
		defaultDuration: 60 * time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookRequest carries caller-supplied booking input. Datetime is the raw
// string from the voice agent; it is parsed in the org's timezone.
type BookRequest struct {
	OrgID           string
	CustomerName    string
	CustomerPhone   string
	Datetime        string
	DurationMinutes int
	ProviderID      string
	ServiceType     string
	Notes           string
}

// BookResult is the caller-facing outcome of a booking attempt.
type BookResult struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointment_id,omitempty"`
	ProviderName  string `json:"provider_name,omitempty"`
	Message       string `json:"message"`
}

// Candidate is one of several matching appointments a caller must pick from.
type Candidate struct {
	ID       string `json:"id"`
	Datetime string `json:"datetime"`
	Display  string `json:"display"`
}

// CancelRequest carries caller-supplied cancellation input.
type CancelRequest struct {
	OrgID         string
	CustomerPhone string
	Datetime      string
}

// CancelResult is the caller-facing outcome of a cancellation attempt.
type CancelResult struct {
	Success                bool        `json:"success"`
	CancelledAppointmentID string      `json:"cancelled_appointment_id,omitempty"`
	MultipleAppointments   bool        `json:"multiple_appointments,omitempty"`
	Appointments           []Candidate `json:"appointments,omitempty"`
	Message                string      `json:"message"`
}

// RescheduleRequest carries caller-supplied reschedule input.
type RescheduleRequest struct {
	OrgID              string
	CustomerPhone      string
	CurrentDatetime    string
	NewDatetime        string
	NewDurationMinutes int
}

// RescheduleResult is the caller-facing outcome of a reschedule attempt.
type RescheduleResult struct {
	Success              bool        `json:"success"`
	AppointmentID        string      `json:"appointment_id,omitempty"`
	MultipleAppointments bool        `json:"multiple_appointments,omitempty"`
	Appointments         []Candidate `json:"appointments,omitempty"`
	Message              string      `json:"message"`
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseDatetime parses a caller-supplied datetime. Layouts without a zone are
// interpreted in the org's timezone.
func parseDatetime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointments: unparseable datetime %q", raw)
}

func (s *Service) observe(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveBooking(operation, outcome)
	}
}

// Book creates a confirmed booking.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(attribute.String("frontdesk.org_id", req.OrgID))

	fail := func(msg string) (*BookResult, error) {
		s.observe("book", "rejected")
		return &BookResult{Success: false, Message: msg}, nil
	}

	if req.CustomerName == "" {
		return fail("I still need a name for the booking. Could you tell me who the appointment is for?")
	}
	if req.CustomerPhone == "" {
		return fail("I need a phone number to hold the appointment. What's the best number to reach you?")
	}
	if req.Datetime == "" {
		return fail("What day and time would you like to come in?")
	}

	settings, err := s.orgs.Get(ctx, req.OrgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: load org settings: %w", err)
	}
	loc := settings.Location()

	start, err := parseDatetime(req.Datetime, loc)
	if err != nil {
		return fail("I couldn't make out that date and time. Could you say it again, like March 3rd at 2 PM?")
	}
	if !start.After(s.now()) {
		return fail("That time has already passed. What other day and time works for you?")
	}

	duration := s.defaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}
	end := start.Add(duration)

	provider, result, err := s.resolveProvider(ctx, req, start, end)
	if err != nil {
		return nil, err
	}
	if result != nil {
		s.observe("book", "rejected")
		return result, nil
	}

	booking := &Booking{
		OrgID:         req.OrgID,
		CustomerName:  req.CustomerName,
		CustomerPhone: phone.Normalize(req.CustomerPhone),
		ServiceType:   req.ServiceType,
		Notes:         req.Notes,
		StartTime:     start,
		EndTime:       end,
	}
	if provider != nil {
		booking.ProviderID = &provider.ID
	}

	event, appt, err := s.repo.CreateBooking(ctx, booking)
	if err == ErrSlotTaken {
		return fail("I'm sorry, that time was just taken. Would you like to hear other openings?")
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.observe("book", "booked")

	s.afterBooking(ctx, event, SyncActionCreate)
	s.logger.Info("appointment booked",
		"org_id", req.OrgID, "event_id", event.ID, "appointment_id", appt.ID,
		"start", start, "provider_assigned", provider != nil)

	display := slots.Display(start.In(loc))
	msg := fmt.Sprintf("You're all set, %s. I've booked you for %s.", req.CustomerName, display)
	result = &BookResult{Success: true, AppointmentID: appt.ID.String(), Message: msg}
	if provider != nil {
		result.ProviderName = provider.Name
		result.Message = fmt.Sprintf("You're all set, %s. I've booked you with %s for %s.", req.CustomerName, provider.Name, display)
	}
	return result, nil
}

// resolveProvider picks the provider for a booking. A non-nil *BookResult
// means a caller-facing rejection; a nil provider with nil result means the
// booking proceeds provider-less.
func (s *Service) resolveProvider(ctx context.Context, req BookRequest, start, end time.Time) (*providers.Provider, *BookResult, error) {
	if s.providers == nil {
		return nil, nil, nil
	}

	if req.ProviderID != "" {
		pid, err := uuid.Parse(req.ProviderID)
		if err != nil {
			return nil, &BookResult{Success: false, Message: "I couldn't find that staff member. Would anyone available work?"}, nil
		}
		p, err := s.providers.GetForOrg(ctx, req.OrgID, pid)
		if err == providers.ErrProviderNotFound {
			return nil, &BookResult{Success: false, Message: "I couldn't find that staff member. Would anyone available work?"}, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if !p.Active {
			return nil, &BookResult{Success: false, Message: fmt.Sprintf("%s isn't taking appointments right now. Would anyone available work?", p.Name)}, nil
		}
		busy, err := s.repo.ProviderHasConflict(ctx, req.OrgID, p.ID, start, end, uuid.Nil)
		if err != nil {
			return nil, nil, err
		}
		if busy {
			return nil, &BookResult{Success: false, Message: fmt.Sprintf("%s already has an appointment at that time. Would a different time or staff member work?", p.Name)}, nil
		}
		return p, nil, nil
	}

	// No specific provider requested: first free active provider matching
	// the service type wins. Nobody free is fine, booking proceeds
	// provider-less.
	active, err := s.providers.ListActive(ctx, req.OrgID, req.ServiceType)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range active {
		busy, err := s.repo.ProviderHasConflict(ctx, req.OrgID, p.ID, start, end, uuid.Nil)
		if err != nil {
			return nil, nil, err
		}
		if !busy {
			return p, nil, nil
		}
	}
	return nil, nil, nil
}

// afterBooking runs the best-effort side effects of a committed state
// transition. Failures are logged and swallowed.
func (s *Service) afterBooking(ctx context.Context, event *CalendarEvent, action string) {
	if s.contacts != nil && action != SyncActionCancel {
		if _, err := s.contacts.Upsert(ctx, event.OrgID, event.CustomerPhone, event.CustomerName); err != nil {
			s.logger.Warn("contact upsert failed", "org_id", event.OrgID, "error", err)
		}
	}
	if s.syncQueue != nil {
		if err := s.syncQueue.EnqueuePush(ctx, event.OrgID, event.ID, action); err != nil {
			s.logger.Warn("calendar sync enqueue failed", "org_id", event.OrgID, "event_id", event.ID, "error", err)
		}
	}
	if s.notifier != nil {
		var err error
		switch action {
		case SyncActionCreate:
			err = s.notifier.AppointmentBooked(ctx, event)
		case SyncActionCancel:
			err = s.notifier.AppointmentCancelled(ctx, event)
		case SyncActionUpdate:
			err = s.notifier.AppointmentRescheduled(ctx, event)
		}
		if err != nil {
			s.logger.Warn("notification dispatch failed", "org_id", event.OrgID, "event_id", event.ID, "error", err)
		}
	}
}

// findMatches looks up future confirmed events by phone, optionally narrowed
// to a window around a caller-supplied target time.
func (s *Service) findMatches(ctx context.Context, orgID, rawPhone, rawTarget string, loc *time.Location) ([]*CalendarEvent, bool, error) {
	events, err := s.repo.FindFutureConfirmedByPhone(ctx, orgID, phone.Variants(rawPhone), s.now())
	if err != nil {
		return nil, false, err
	}
	if rawTarget == "" {
		return events, false, nil
	}
	target, err := parseDatetime(rawTarget, loc)
	if err != nil {
		return events, false, nil
	}
	var narrowed []*CalendarEvent
	for _, e := range events {
		diff := e.StartTime.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= disambiguationWindow {
			narrowed = append(narrowed, e)
		}
	}
	return narrowed, true, nil
}

func candidatesFor(events []*CalendarEvent, loc *time.Location) []Candidate {
	n := len(events)
	if n > maxCandidates {
		n = maxCandidates
	}
	out := make([]Candidate, 0, n)
	for _, e := range events[:n] {
		local := e.StartTime.In(loc)
		out = append(out, Candidate{
			ID:       e.ID.String(),
			Datetime: local.Format(time.RFC3339),
			Display:  slots.Display(local),
		})
	}
	return out
}

// Cancel cancels a caller's appointment, disambiguating when the phone
// matches more than one.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("frontdesk.org_id", req.OrgID))

	if req.CustomerPhone == "" {
		s.observe("cancel", "rejected")
		return &CancelResult{Success: false, Message: "What phone number was the appointment booked under?"}, nil
	}

	settings, err := s.orgs.Get(ctx, req.OrgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: load org settings: %w", err)
	}
	loc := settings.Location()

	matches, narrowed, err := s.findMatches(ctx, req.OrgID, req.CustomerPhone, req.Datetime, loc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case len(matches) == 0:
		s.observe("cancel", "no_match")
		return &CancelResult{Success: false, Message: "I couldn't find an upcoming appointment under that number. Could you double-check the phone number or the time?"}, nil
	case len(matches) > 1 && !narrowed:
		s.observe("cancel", "disambiguation")
		return &CancelResult{
			Success:              false,
			MultipleAppointments: true,
			Appointments:         candidatesFor(matches, loc),
			Message:              "You have more than one upcoming appointment. Which one would you like to cancel?",
		}, nil
	case len(matches) > 1:
		s.observe("cancel", "disambiguation")
		return &CancelResult{
			Success:              false,
			MultipleAppointments: true,
			Appointments:         candidatesFor(matches, loc),
			Message:              "I found a few appointments near that time. Which one would you like to cancel?",
		}, nil
	}

	event, err := s.repo.Cancel(ctx, req.OrgID, matches[0].ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.observe("cancel", "cancelled")
	s.afterBooking(ctx, event, SyncActionCancel)
	s.logger.Info("appointment cancelled", "org_id", req.OrgID, "event_id", event.ID)

	id := event.ID.String()
	if event.AppointmentID != nil {
		id = event.AppointmentID.String()
	}
	return &CancelResult{
		Success:                true,
		CancelledAppointmentID: id,
		Message:                fmt.Sprintf("Your appointment for %s has been cancelled. Is there anything else I can help with?", slots.Display(event.StartTime.In(loc))),
	}, nil
}

// Reschedule moves a caller's appointment to a new time, reusing Cancel's
// lookup and disambiguation.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*RescheduleResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("frontdesk.org_id", req.OrgID))

	fail := func(msg string) (*RescheduleResult, error) {
		s.observe("reschedule", "rejected")
		return &RescheduleResult{Success: false, Message: msg}, nil
	}

	if req.CustomerPhone == "" {
		return fail("What phone number was the appointment booked under?")
	}
	if req.NewDatetime == "" {
		return fail("What day and time would you like to move it to?")
	}

	settings, err := s.orgs.Get(ctx, req.OrgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: load org settings: %w", err)
	}
	loc := settings.Location()

	matches, narrowed, err := s.findMatches(ctx, req.OrgID, req.CustomerPhone, req.CurrentDatetime, loc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case len(matches) == 0:
		s.observe("reschedule", "no_match")
		return &RescheduleResult{Success: false, Message: "I couldn't find an upcoming appointment under that number. Could you double-check the phone number or the time?"}, nil
	case len(matches) > 1:
		s.observe("reschedule", "disambiguation")
		msg := "You have more than one upcoming appointment. Which one would you like to move?"
		if narrowed {
			msg = "I found a few appointments near that time. Which one would you like to move?"
		}
		return &RescheduleResult{
			Success:              false,
			MultipleAppointments: true,
			Appointments:         candidatesFor(matches, loc),
			Message:              msg,
		}, nil
	}
	current := matches[0]

	newStart, err := parseDatetime(req.NewDatetime, loc)
	if err != nil {
		return fail("I couldn't make out that new date and time. Could you say it again, like March 3rd at 2 PM?")
	}
	if !newStart.After(s.now()) {
		return fail("That time has already passed. What other day and time works for you?")
	}

	duration := current.EndTime.Sub(current.StartTime)
	if req.NewDurationMinutes > 0 {
		duration = time.Duration(req.NewDurationMinutes) * time.Minute
	}
	newEnd := newStart.Add(duration)

	if current.ProviderID != nil {
		busy, err := s.repo.ProviderHasConflict(ctx, req.OrgID, *current.ProviderID, newStart, newEnd, current.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if busy {
			return fail("Your provider already has an appointment at that time. Would a different time work?")
		}
	}

	event, err := s.repo.Reschedule(ctx, req.OrgID, current.ID, newStart, newEnd)
	if err == ErrSlotTaken {
		return fail("I'm sorry, that time was just taken. Would you like to hear other openings?")
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.observe("reschedule", "rescheduled")
	s.afterBooking(ctx, event, SyncActionUpdate)
	s.logger.Info("appointment rescheduled", "org_id", req.OrgID, "event_id", event.ID, "start", newStart)

	id := event.ID.String()
	if event.AppointmentID != nil {
		id = event.AppointmentID.String()
	}
	return &RescheduleResult{
		Success:       true,
		AppointmentID: id,
		Message:       fmt.Sprintf("Done. You're rescheduled for %s.", slots.Display(newStart.In(loc))),
	}, nil
}
