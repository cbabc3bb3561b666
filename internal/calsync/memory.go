package calsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryOutbox is an in-memory Outbox for tests and local runs.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries []Entry
	done    map[uuid.UUID]bool
}

// NewMemoryOutbox creates an empty in-memory outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{done: make(map[uuid.UUID]bool)}
}

func (m *MemoryOutbox) EnqueuePush(ctx context.Context, orgID string, eventID uuid.UUID, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{
		ID:        uuid.New(),
		OrgID:     orgID,
		EventID:   eventID,
		Action:    action,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemoryOutbox) FetchPending(ctx context.Context, limit int32) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if m.done[e.ID] {
			continue
		}
		out = append(out, e)
		if int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done[id] {
		return false, nil
	}
	m.done[id] = true
	return true, nil
}
