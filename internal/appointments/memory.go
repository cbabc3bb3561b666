package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frontdeskhq/receptionist-platform/internal/slots"
)

// MemoryRepository is a mutex-guarded in-memory Repository for tests and
// local runs. The single lock gives it the same no-overlap guarantee under
// concurrent writers as the advisory-locked Postgres implementation.
type MemoryRepository struct {
	mu           sync.Mutex
	events       map[uuid.UUID]*CalendarEvent
	appointments map[uuid.UUID]*Appointment
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		events:       make(map[uuid.UUID]*CalendarEvent),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *MemoryRepository) overlapsLocked(orgID string, providerID *uuid.UUID, start, end time.Time, exclude uuid.UUID) bool {
	for _, e := range r.events {
		if e.OrgID != orgID || e.Status != StatusConfirmed || e.ID == exclude {
			continue
		}
		if providerID != nil {
			if e.ProviderID == nil || *e.ProviderID != *providerID {
				continue
			}
		}
		if start.Before(e.EndTime) && end.After(e.StartTime) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateBooking(ctx context.Context, b *Booking) (*CalendarEvent, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overlapsLocked(b.OrgID, b.ProviderID, b.StartTime, b.EndTime, uuid.Nil) {
		return nil, nil, ErrSlotTaken
	}

	now := time.Now()
	event := &CalendarEvent{
		ID:            uuid.New(),
		OrgID:         b.OrgID,
		ProviderID:    b.ProviderID,
		Title:         "Appointment: " + b.CustomerName,
		Description:   b.Notes,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        StatusConfirmed,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		Source:        SourceNative,
		SyncStatus:    SyncPendingPush,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	appt := &Appointment{
		ID:              uuid.New(),
		OrgID:           b.OrgID,
		ProviderID:      b.ProviderID,
		CalendarEventID: event.ID,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		ServiceType:     b.ServiceType,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Status:          ApptStatusConfirmed,
		Notes:           b.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	event.AppointmentID = &appt.ID
	r.events[event.ID] = event
	r.appointments[appt.ID] = appt
	return event, appt, nil
}

func (r *MemoryRepository) FindFutureConfirmedByPhone(ctx context.Context, orgID string, phones []string, after time.Time) ([]*CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match := func(p string) bool {
		for _, v := range phones {
			if v == p {
				return true
			}
		}
		return false
	}
	var out []*CalendarEvent
	for _, e := range r.events {
		if e.OrgID == orgID && e.Status == StatusConfirmed && e.StartTime.After(after) && match(e.CustomerPhone) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) GetEvent(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.OrgID != orgID {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (r *MemoryRepository) Cancel(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.OrgID != orgID {
		return nil, ErrEventNotFound
	}
	e.Status = StatusCancelled
	e.SyncStatus = SyncPendingPush
	e.UpdatedAt = time.Now()
	if e.AppointmentID != nil {
		if a, ok := r.appointments[*e.AppointmentID]; ok {
			a.Status = ApptStatusCancelled
			a.UpdatedAt = e.UpdatedAt
		}
	}
	return e, nil
}

func (r *MemoryRepository) Reschedule(ctx context.Context, orgID string, id uuid.UUID, start, end time.Time) (*CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.OrgID != orgID {
		return nil, ErrEventNotFound
	}
	if r.overlapsLocked(orgID, e.ProviderID, start, end, id) {
		return nil, ErrSlotTaken
	}
	e.StartTime, e.EndTime = start, end
	e.SyncStatus = SyncPendingPush
	e.UpdatedAt = time.Now()
	if e.AppointmentID != nil {
		if a, ok := r.appointments[*e.AppointmentID]; ok {
			a.StartTime, a.EndTime = start, end
			a.UpdatedAt = e.UpdatedAt
		}
	}
	return e, nil
}

func (r *MemoryRepository) ProviderHasConflict(ctx context.Context, orgID string, providerID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlapsLocked(orgID, &providerID, start, end, exclude), nil
}

func (r *MemoryRepository) BusyIntervals(ctx context.Context, orgID string, from, to time.Time) ([]slots.Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []slots.Interval
	for _, e := range r.events {
		if e.OrgID == orgID && e.Status == StatusConfirmed && e.StartTime.Before(to) && e.EndTime.After(from) {
			out = append(out, slots.Interval{Start: e.StartTime, End: e.EndTime})
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkSyncStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		e.SyncStatus = status
		if externalID != nil {
			e.ExternalID = externalID
		}
	}
	return nil
}

// Appointment returns the linked appointment for an event, for tests.
func (r *MemoryRepository) Appointment(id uuid.UUID) *Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appointments[id]
}

var _ Repository = (*MemoryRepository)(nil)
