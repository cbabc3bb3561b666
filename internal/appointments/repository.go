package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/frontdeskhq/receptionist-platform/internal/slots"
)

// Repository persists the event/appointment pair. Every query is org-scoped.
type Repository interface {
	// CreateBooking inserts a confirmed event and its linked appointment
	// atomically, failing with ErrSlotTaken when a conflicting confirmed
	// event already holds the interval.
	CreateBooking(ctx context.Context, b *Booking) (*CalendarEvent, *Appointment, error)
	// FindFutureConfirmedByPhone returns the org's future confirmed events
	// whose customer phone matches any of the given dialable forms.
	FindFutureConfirmedByPhone(ctx context.Context, orgID string, phones []string, after time.Time) ([]*CalendarEvent, error)
	GetEvent(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error)
	// Cancel marks the event cancelled and mirrors the status onto the
	// linked appointment.
	Cancel(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error)
	// Reschedule moves the event and its appointment to a new interval,
	// re-running the conflict check with the event itself excluded.
	Reschedule(ctx context.Context, orgID string, id uuid.UUID, start, end time.Time) (*CalendarEvent, error)
	// ProviderHasConflict reports whether another confirmed event assigned
	// to the provider overlaps [start, end). exclude skips one event id,
	// uuid.Nil to skip none.
	ProviderHasConflict(ctx context.Context, orgID string, providerID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error)
	// BusyIntervals returns the org's confirmed event intervals overlapping
	// [from, to), for feeding the slot search.
	BusyIntervals(ctx context.Context, orgID string, from, to time.Time) ([]slots.Interval, error)
	// MarkSyncStatus records the outcome of an external calendar push.
	MarkSyncStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error
}

// pgxPool is satisfied by *pgxpool.Pool and pgxmock.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores bookings in Postgres. Conflict checks run inside
// a transaction holding an advisory lock keyed by (org, provider), which
// closes the window where two concurrent bookings both pass the check before
// either inserts.
type PostgresRepository struct {
	db pgxPool
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(db pgxPool) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

const eventColumns = `id, org_id, provider_id, appointment_id, title, description,
		start_time, end_time, status, customer_name, customer_phone,
		source, external_id, sync_status, created_at, updated_at`

func scanEvent(row pgx.Row) (*CalendarEvent, error) {
	var e CalendarEvent
	err := row.Scan(
		&e.ID, &e.OrgID, &e.ProviderID, &e.AppointmentID, &e.Title, &e.Description,
		&e.StartTime, &e.EndTime, &e.Status, &e.CustomerName, &e.CustomerPhone,
		&e.Source, &e.ExternalID, &e.SyncStatus, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// lockKey serializes concurrent conflict checks for the same org and
// provider. Provider-less bookings contend on the org-wide key.
func lockKey(orgID string, providerID *uuid.UUID) string {
	if providerID != nil {
		return orgID + "/" + providerID.String()
	}
	return orgID + "/-"
}

func acquireBookingLock(ctx context.Context, tx pgx.Tx, orgID string, providerID *uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(orgID, providerID))
	if err != nil {
		return fmt.Errorf("appointments: advisory lock failed: %w", err)
	}
	return nil
}

func hasOverlap(ctx context.Context, tx pgx.Tx, orgID string, providerID *uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	query := `
		SELECT count(*) FROM calendar_events
		WHERE org_id = $1 AND status = 'confirmed'
		  AND start_time < $2 AND end_time > $3
	`
	args := []any{orgID, end, start}
	if providerID != nil {
		args = append(args, *providerID)
		query += fmt.Sprintf(` AND provider_id = $%d`, len(args))
	}
	if exclude != uuid.Nil {
		args = append(args, exclude)
		query += fmt.Sprintf(` AND id <> $%d`, len(args))
	}
	var count int
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("appointments: conflict check failed: %w", err)
	}
	return count > 0, nil
}

// CreateBooking inserts the event/appointment pair inside one transaction.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *Booking) (*CalendarEvent, *Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := acquireBookingLock(ctx, tx, b.OrgID, b.ProviderID); err != nil {
		return nil, nil, err
	}
	taken, err := hasOverlap(ctx, tx, b.OrgID, b.ProviderID, b.StartTime, b.EndTime, uuid.Nil)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, ErrSlotTaken
	}

	eventID := uuid.New()
	title := "Appointment: " + b.CustomerName
	event, err := scanEvent(tx.QueryRow(ctx, `
		INSERT INTO calendar_events (
			id, org_id, provider_id, title, description, start_time, end_time,
			status, customer_name, customer_phone, source, sync_status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'confirmed', $8, $9, 'native', 'pending_push', now(), now())
		RETURNING `+eventColumns,
		eventID, b.OrgID, b.ProviderID, title, b.Notes, b.StartTime, b.EndTime,
		b.CustomerName, b.CustomerPhone,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: insert event failed: %w", err)
	}

	appt := &Appointment{
		ID:              uuid.New(),
		OrgID:           b.OrgID,
		ProviderID:      b.ProviderID,
		CalendarEventID: eventID,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		ServiceType:     b.ServiceType,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Status:          ApptStatusConfirmed,
		Notes:           b.Notes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, org_id, provider_id, calendar_event_id, customer_name,
			customer_phone, service_type, start_time, end_time, status, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING created_at, updated_at`,
		appt.ID, appt.OrgID, appt.ProviderID, appt.CalendarEventID,
		appt.CustomerName, appt.CustomerPhone, appt.ServiceType,
		appt.StartTime, appt.EndTime, appt.Status, appt.Notes,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: insert appointment failed: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE calendar_events SET appointment_id = $1 WHERE id = $2`, appt.ID, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: link appointment failed: %w", err)
	}
	event.AppointmentID = &appt.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("appointments: commit failed: %w", err)
	}
	return event, appt, nil
}

// FindFutureConfirmedByPhone matches any dialable form of the number.
func (r *PostgresRepository) FindFutureConfirmedByPhone(ctx context.Context, orgID string, phones []string, after time.Time) ([]*CalendarEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE org_id = $1 AND status = 'confirmed'
		  AND start_time > $2 AND customer_phone = ANY($3)
		ORDER BY start_time`,
		orgID, after, phones,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: phone lookup failed: %w", err)
	}
	defer rows.Close()

	var out []*CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetEvent(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE id = $1 AND org_id = $2`,
		id, orgID,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select event failed: %w", err)
	}
	return e, nil
}

// Cancel marks the pair cancelled.
func (r *PostgresRepository) Cancel(ctx context.Context, orgID string, id uuid.UUID) (*CalendarEvent, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	event, err := scanEvent(tx.QueryRow(ctx, `
		UPDATE calendar_events
		SET status = 'cancelled', sync_status = 'pending_push', updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING `+eventColumns,
		id, orgID,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: cancel event failed: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments SET status = 'cancelled', updated_at = now()
		WHERE calendar_event_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: cancel appointment failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit failed: %w", err)
	}
	return event, nil
}

// Reschedule moves the pair to a new interval.
func (r *PostgresRepository) Reschedule(ctx context.Context, orgID string, id uuid.UUID, start, end time.Time) (*CalendarEvent, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanEvent(tx.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE id = $1 AND org_id = $2`,
		id, orgID,
	))
	if err == pgx.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select event failed: %w", err)
	}

	if err := acquireBookingLock(ctx, tx, orgID, current.ProviderID); err != nil {
		return nil, err
	}
	taken, err := hasOverlap(ctx, tx, orgID, current.ProviderID, start, end, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	event, err := scanEvent(tx.QueryRow(ctx, `
		UPDATE calendar_events
		SET start_time = $1, end_time = $2, sync_status = 'pending_push', updated_at = now()
		WHERE id = $3 AND org_id = $4
		RETURNING `+eventColumns,
		start, end, id, orgID,
	))
	if err != nil {
		return nil, fmt.Errorf("appointments: update event failed: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments SET start_time = $1, end_time = $2, updated_at = now()
		WHERE calendar_event_id = $3`,
		start, end, id,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: update appointment failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit failed: %w", err)
	}
	return event, nil
}

func (r *PostgresRepository) ProviderHasConflict(ctx context.Context, orgID string, providerID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	query := `
		SELECT count(*) FROM calendar_events
		WHERE org_id = $1 AND status = 'confirmed' AND provider_id = $2
		  AND start_time < $3 AND end_time > $4
	`
	args := []any{orgID, providerID, end, start}
	if exclude != uuid.Nil {
		args = append(args, exclude)
		query += ` AND id <> $5`
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("appointments: provider conflict check failed: %w", err)
	}
	return count > 0, nil
}

func (r *PostgresRepository) BusyIntervals(ctx context.Context, orgID string, from, to time.Time) ([]slots.Interval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_time, end_time FROM calendar_events
		WHERE org_id = $1 AND status = 'confirmed'
		  AND start_time < $2 AND end_time > $3`,
		orgID, to, from,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: busy intervals failed: %w", err)
	}
	defer rows.Close()

	var out []slots.Interval
	for rows.Next() {
		var iv slots.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkSyncStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error {
	var err error
	if externalID != nil {
		_, err = r.db.Exec(ctx, `
			UPDATE calendar_events SET sync_status = $1, external_id = $2, updated_at = now()
			WHERE id = $3`,
			status, *externalID, id,
		)
	} else {
		_, err = r.db.Exec(ctx, `
			UPDATE calendar_events SET sync_status = $1, updated_at = now()
			WHERE id = $2`,
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("appointments: mark sync status failed: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
