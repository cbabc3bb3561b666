package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/slots"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// OrgDirectory resolves notification preferences. Satisfied by *org.Store.
type OrgDirectory interface {
	Get(ctx context.Context, orgID string) (*org.Settings, error)
}

// Worker drains the notification queue and emails the business according to
// its preferences. Failures are logged; the message is deleted either way, a
// notification is not worth redelivering late.
type Worker struct {
	queue  queueClient
	orgs   OrgDirectory
	email  EmailSender
	logger *logging.Logger
}

// NewWorker constructs a notification worker.
func NewWorker(queue queueClient, orgs OrgDirectory, email EmailSender, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("notify: queue required")
	}
	if orgs == nil {
		panic("notify: org directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Worker{queue: queue, orgs: orgs, email: email, logger: logger}
}

// Start consumes until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		messages, err := w.queue.Receive(ctx, 10, 2)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("notification receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range messages {
			w.handle(ctx, msg.Body)
			if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
				w.logger.Error("notification delete failed", "error", err, "message_id", msg.ID)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, body string) {
	var n notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		w.logger.Error("malformed notification dropped", "error", err)
		return
	}

	settings, err := w.orgs.Get(ctx, n.OrgID)
	if err != nil {
		w.logger.Error("notification skipped, org unavailable", "error", err, "org_id", n.OrgID)
		return
	}
	prefs := settings.Notifications
	if !prefs.EmailEnabled || len(prefs.EmailRecipients) == 0 {
		return
	}
	switch n.Kind {
	case KindBooked, KindRescheduled:
		if !prefs.NotifyOnBooking {
			return
		}
	case KindCancelled:
		if !prefs.NotifyOnCancel {
			return
		}
	default:
		w.logger.Error("unknown notification kind dropped", "kind", n.Kind)
		return
	}

	msg := w.compose(settings, n)
	for _, recipient := range prefs.EmailRecipients {
		msg.To = recipient
		if err := w.email.Send(ctx, msg); err != nil {
			w.logger.Error("notification email failed", "error", err, "org_id", n.OrgID, "to", recipient)
		}
	}
}

func (w *Worker) compose(settings *org.Settings, n notification) EmailMessage {
	when := slots.Display(n.StartTime.In(settings.Location()))
	var subject, body string
	switch n.Kind {
	case KindBooked:
		subject = fmt.Sprintf("New appointment: %s, %s", n.CustomerName, when)
		body = fmt.Sprintf("%s (%s) booked an appointment for %s.", n.CustomerName, n.CustomerPhone, when)
	case KindRescheduled:
		subject = fmt.Sprintf("Appointment moved: %s, %s", n.CustomerName, when)
		body = fmt.Sprintf("%s (%s) moved their appointment to %s.", n.CustomerName, n.CustomerPhone, when)
	case KindCancelled:
		subject = fmt.Sprintf("Appointment cancelled: %s", n.CustomerName)
		body = fmt.Sprintf("%s (%s) cancelled their appointment for %s.", n.CustomerName, n.CustomerPhone, when)
	}
	return EmailMessage{ToName: settings.Name, Subject: subject, Body: body}
}
