// Package appointments owns the booking lifecycle: creating, cancelling and
// rescheduling the CalendarEvent/Appointment pair that records a caller's
// booking, plus the conflict checks that keep confirmed events from
// overlapping.
package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event statuses. Cancelled is terminal; reschedules mutate times in place.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment statuses mirror the event's lifecycle with an extra initial
// state for records created before confirmation.
const (
	ApptStatusScheduled = "scheduled"
	ApptStatusConfirmed = "confirmed"
	ApptStatusCancelled = "cancelled"
)

// Sync statuses track whether a local change has been mirrored to the org's
// external calendar. pending_push means a mirror is owed; failed means the
// last attempt did not land and reconciliation is needed out of band.
const (
	SyncPendingPush = "pending_push"
	SyncSynced      = "synced"
	SyncFailed      = "failed"
)

// Event sources.
const (
	SourceNative   = "native"
	SourceExternal = "external"
)

// ErrSlotTaken is returned when a conflicting confirmed event already holds
// the requested interval.
var ErrSlotTaken = errors.New("appointments: slot already taken")

// ErrEventNotFound is returned when an event id does not exist in the org.
var ErrEventNotFound = errors.New("appointments: event not found")

// CalendarEvent is the authoritative local booking record.
type CalendarEvent struct {
	ID            uuid.UUID  `json:"id"`
	OrgID         string     `json:"org_id"`
	ProviderID    *uuid.UUID `json:"provider_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	Source        string     `json:"source"`
	ExternalID    *string    `json:"external_id,omitempty"`
	SyncStatus    string     `json:"sync_status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Appointment is the business-facing projection of a CalendarEvent. The two
// are distinct rows with independent update paths; every mutation to one
// mirrors onto the other.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	OrgID           string     `json:"org_id"`
	ProviderID      *uuid.UUID `json:"provider_id,omitempty"`
	CalendarEventID uuid.UUID  `json:"calendar_event_id"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	ServiceType     string     `json:"service_type"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Booking bundles the fields needed to create an event/appointment pair.
type Booking struct {
	OrgID         string
	ProviderID    *uuid.UUID
	CustomerName  string
	CustomerPhone string
	ServiceType   string
	Notes         string
	StartTime     time.Time
	EndTime       time.Time
}
