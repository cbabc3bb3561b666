// Package contacts keeps a per-org record of every caller who has ever
// booked. Records are keyed by normalized phone number so repeat callers
// update in place rather than duplicating.
package contacts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frontdeskhq/receptionist-platform/internal/phone"
)

// Contact statuses. A lead has called but never completed a booking; the
// first confirmed booking promotes them to customer.
const (
	StatusLead     = "lead"
	StatusCustomer = "customer"
)

// Contact is a caller known to an org.
type Contact struct {
	ID           uuid.UUID  `json:"id"`
	OrgID        string     `json:"org_id"`
	Phone        string     `json:"phone"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Address      string     `json:"address,omitempty"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	LastBookedAt *time.Time `json:"last_booked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

const contactColumns = `id, org_id, phone, name, email, address, status, notes, last_booked_at, created_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.OrgID, &c.Phone, &c.Name, &c.Email, &c.Address,
		&c.Status, &c.Notes, &c.LastBookedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists contacts.
type Store struct {
	db pgxQuerier
}

// NewStore creates a contact store backed by a pgx pool.
func NewStore(db pgxQuerier) *Store {
	if db == nil {
		panic("contacts: db required")
	}
	return &Store{db: db}
}

// Upsert records that a caller booked. The phone number is normalized before
// writing so +1 (415) 555-0134 and 4155550134 map to the same row. A repeat
// caller refreshes name, status and last_booked_at on the existing record;
// a booking always promotes the contact to customer.
func (s *Store) Upsert(ctx context.Context, orgID, rawPhone, name string) (*Contact, error) {
	normalized := phone.Normalize(rawPhone)
	query := `
		INSERT INTO contacts (id, org_id, phone, name, status, last_booked_at, created_at)
		VALUES ($1, $2, $3, $4, 'customer', now(), now())
		ON CONFLICT (org_id, phone)
		DO UPDATE SET name = EXCLUDED.name, status = 'customer', last_booked_at = now()
		RETURNING ` + contactColumns
	c, err := scanContact(s.db.QueryRow(ctx, query, uuid.New(), orgID, normalized, name))
	if err != nil {
		return nil, fmt.Errorf("contacts: upsert failed: %w", err)
	}
	return c, nil
}

// FindByPhone looks up a contact by any dialable form of the number.
func (s *Store) FindByPhone(ctx context.Context, orgID, rawPhone string) (*Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE org_id = $1 AND phone = ANY($2)
	`
	c, err := scanContact(s.db.QueryRow(ctx, query, orgID, phone.Variants(rawPhone)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contacts: select failed: %w", err)
	}
	return c, nil
}
