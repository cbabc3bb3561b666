package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// Notification kinds.
const (
	KindBooked      = "booked"
	KindCancelled   = "cancelled"
	KindRescheduled = "rescheduled"
)

// notification is the queue payload.
type notification struct {
	Kind          string    `json:"kind"`
	OrgID         string    `json:"org_id"`
	EventID       string    `json:"event_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// Service enqueues booking notifications. It satisfies the booking service's
// notifier; each call is a single queue write, the worker does the rest.
type Service struct {
	queue  queueClient
	logger *logging.Logger
}

// NewService constructs a notification producer.
func NewService(queue queueClient, logger *logging.Logger) *Service {
	if queue == nil {
		panic("notify: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{queue: queue, logger: logger}
}

// NewSQSService constructs a producer backed by SQS.
func NewSQSService(queue *SQSQueue, logger *logging.Logger) *Service {
	return NewService(queue, logger)
}

// NewMemoryService constructs a producer backed by an in-memory queue, for
// local runs. The returned queue is shared with the worker.
func NewMemoryService(queue *MemoryQueue, logger *logging.Logger) *Service {
	return NewService(queue, logger)
}

func (s *Service) publish(ctx context.Context, kind string, event *appointments.CalendarEvent) error {
	payload := notification{
		Kind:          kind,
		OrgID:         event.OrgID,
		EventID:       event.ID.String(),
		CustomerName:  event.CustomerName,
		CustomerPhone: event.CustomerPhone,
		StartTime:     event.StartTime,
		EndTime:       event.EndTime,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	if err := s.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	s.logger.Debug("notification enqueued", "kind", kind, "org_id", event.OrgID, "event_id", event.ID)
	return nil
}

// AppointmentBooked enqueues a booked notification.
func (s *Service) AppointmentBooked(ctx context.Context, event *appointments.CalendarEvent) error {
	return s.publish(ctx, KindBooked, event)
}

// AppointmentCancelled enqueues a cancelled notification.
func (s *Service) AppointmentCancelled(ctx context.Context, event *appointments.CalendarEvent) error {
	return s.publish(ctx, KindCancelled, event)
}

// AppointmentRescheduled enqueues a rescheduled notification.
func (s *Service) AppointmentRescheduled(ctx context.Context, event *appointments.CalendarEvent) error {
	return s.publish(ctx, KindRescheduled, event)
}

var _ appointments.Notifier = (*Service)(nil)
