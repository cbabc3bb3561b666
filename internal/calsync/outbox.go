// Package calsync mirrors committed booking changes to the org's external
// calendar. Changes are written to an outbox row in the same database as the
// booking, then pushed by a background deliverer, so the caller-facing
// response never waits on the external calendar and a failed push only shows
// up as the event's sync status.
package calsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Entry is one pending calendar push.
type Entry struct {
	ID        uuid.UUID
	OrgID     string
	EventID   uuid.UUID
	Action    string
	CreatedAt time.Time
}

type outboxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OutboxStore persists pending pushes for reliable pickup.
type OutboxStore struct {
	db outboxQuerier
}

// NewOutboxStore creates an outbox store backed by a pgx pool.
func NewOutboxStore(db outboxQuerier) *OutboxStore {
	if db == nil {
		panic("calsync: db required")
	}
	return &OutboxStore{db: db}
}

// EnqueuePush records that a booking change needs mirroring. Satisfies the
// booking service's enqueuer.
func (s *OutboxStore) EnqueuePush(ctx context.Context, orgID string, eventID uuid.UUID, action string) error {
	query := `
		INSERT INTO calendar_outbox (id, org_id, event_id, action)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), orgID, eventID, action); err != nil {
		return fmt.Errorf("calsync: insert outbox: %w", err)
	}
	return nil
}

// FetchPending returns undelivered entries, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]Entry, error) {
	query := `
		SELECT id, org_id, event_id, action, created_at
		FROM calendar_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("calsync: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.EventID, &entry.Action, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("calsync: scan outbox: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDelivered stamps an entry as handled. An entry is marked delivered even
// when the push failed; the event's sync status carries the failure, and
// reconciliation happens out of band rather than by re-delivering.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE calendar_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("calsync: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
