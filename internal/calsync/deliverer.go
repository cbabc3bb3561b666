package calsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/internal/calendar"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// Outbox is the pending-push source the deliverer drains.
type Outbox interface {
	FetchPending(ctx context.Context, limit int32) ([]Entry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Pusher is the external calendar surface the deliverer needs. Satisfied by
// *calendar.Gateway.
type Pusher interface {
	ValidAccessToken(ctx context.Context, orgID string) (string, bool)
	SelectedCalendarID(ctx context.Context, orgID string) string
	CreateEvent(ctx context.Context, token, calendarID string, ev calendar.PushEvent) (string, error)
	UpdateEvent(ctx context.Context, token, calendarID, externalID string, ev calendar.PushEvent) error
	CancelEvent(ctx context.Context, token, calendarID, externalID string) error
}

// EventSource reads and annotates local booking events. Satisfied by
// appointments.Repository.
type EventSource interface {
	GetEvent(ctx context.Context, orgID string, id uuid.UUID) (*appointments.CalendarEvent, error)
	MarkSyncStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error
}

// PushMetrics records push outcomes. Satisfied by *metrics.BookingMetrics.
type PushMetrics interface {
	ObserveCalendarPush(action, result string)
}

// Deliverer polls the outbox and mirrors each change to the external
// calendar. A push failure flips the event's sync status to failed and the
// entry is consumed; there is no automatic retry.
type Deliverer struct {
	outbox    Outbox
	pusher    Pusher
	events    EventSource
	logger    *logging.Logger
	metrics   PushMetrics
	batchSize int32
	interval  time.Duration
}

// NewDeliverer constructs a deliverer with a 2 second poll interval.
func NewDeliverer(outbox Outbox, pusher Pusher, events EventSource, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		outbox:    outbox,
		pusher:    pusher,
		events:    events,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

// WithBatchSize overrides how many entries are drained per tick.
func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

// WithInterval overrides the poll interval.
func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithMetrics attaches push outcome metrics.
func (d *Deliverer) WithMetrics(m PushMetrics) *Deliverer {
	d.metrics = m
	return d
}

// Start polls until the context is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.outbox == nil || d.pusher == nil || d.events == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain processes one batch of pending entries.
func (d *Deliverer) Drain(ctx context.Context) {
	entries, err := d.outbox.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		d.deliver(ctx, entry)
		if ok, err := d.outbox.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "entry_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox entry consumed", "entry_id", entry.ID, "action", entry.Action)
		}
	}
}

func (d *Deliverer) deliver(ctx context.Context, entry Entry) {
	event, err := d.events.GetEvent(ctx, entry.OrgID, entry.EventID)
	if err != nil {
		d.logger.Error("calendar push skipped, event unavailable", "error", err, "event_id", entry.EventID)
		return
	}

	token, ok := d.pusher.ValidAccessToken(ctx, entry.OrgID)
	if !ok {
		// No calendar connected: nothing to mirror, sync status stays as is.
		d.logger.Debug("calendar push skipped, no connection", "org_id", entry.OrgID, "event_id", entry.EventID)
		return
	}
	calendarID := d.pusher.SelectedCalendarID(ctx, entry.OrgID)

	push := calendar.PushEvent{
		Title:       event.Title,
		Description: event.Description,
		Start:       event.StartTime,
		End:         event.EndTime,
	}

	switch entry.Action {
	case appointments.SyncActionCreate:
		externalID, err := d.pusher.CreateEvent(ctx, token, calendarID, push)
		d.finish(ctx, entry.Action, event, err, &externalID)
	case appointments.SyncActionUpdate:
		if event.ExternalID == nil {
			// Never mirrored; create instead of update.
			externalID, err := d.pusher.CreateEvent(ctx, token, calendarID, push)
			d.finish(ctx, entry.Action, event, err, &externalID)
			return
		}
		err := d.pusher.UpdateEvent(ctx, token, calendarID, *event.ExternalID, push)
		d.finish(ctx, entry.Action, event, err, nil)
	case appointments.SyncActionCancel:
		if event.ExternalID == nil {
			return
		}
		err := d.pusher.CancelEvent(ctx, token, calendarID, *event.ExternalID)
		d.finish(ctx, entry.Action, event, err, nil)
	default:
		d.logger.Error("unknown outbox action", "action", entry.Action, "entry_id", entry.ID)
	}
}

func (d *Deliverer) finish(ctx context.Context, action string, event *appointments.CalendarEvent, pushErr error, externalID *string) {
	status := appointments.SyncSynced
	result := "success"
	if pushErr != nil {
		status = appointments.SyncFailed
		result = "failure"
		externalID = nil
		d.logger.Error("calendar push failed", "error", pushErr, "org_id", event.OrgID, "event_id", event.ID)
	}
	if d.metrics != nil {
		d.metrics.ObserveCalendarPush(action, result)
	}
	if err := d.events.MarkSyncStatus(ctx, event.ID, status, externalID); err != nil {
		d.logger.Error("failed to record sync status", "error", err, "event_id", event.ID)
	}
}
