// Package providers is the staff directory: people who can be assigned to an
// appointment. Provider lifecycle is independent from bookings; appointments
// reference providers by id only.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrProviderNotFound is returned when a provider does not exist in the org.
var ErrProviderNotFound = errors.New("providers: not found")

// Provider is a staff member.
type Provider struct {
	ID     uuid.UUID `json:"id"`
	OrgID  string    `json:"org_id"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	Active bool      `json:"active"`
}

// Repository reads the provider directory. Every query is org-scoped.
type Repository interface {
	GetForOrg(ctx context.Context, orgID string, id uuid.UUID) (*Provider, error)
	ListActive(ctx context.Context, orgID string, role string) ([]*Provider, error)
}

// pgxQuerier is satisfied by *pgxpool.Pool and pgxmock.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository reads providers from the relational store.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(db pgxQuerier) *PostgresRepository {
	if db == nil {
		panic("providers: db required")
	}
	return &PostgresRepository{db: db}
}

// GetForOrg returns a provider scoped to the org.
func (r *PostgresRepository) GetForOrg(ctx context.Context, orgID string, id uuid.UUID) (*Provider, error) {
	query := `
		SELECT id, org_id, name, role, active
		FROM providers
		WHERE id = $1 AND org_id = $2
	`
	var p Provider
	err := r.db.QueryRow(ctx, query, id, orgID).Scan(&p.ID, &p.OrgID, &p.Name, &p.Role, &p.Active)
	if err == pgx.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("providers: select failed: %w", err)
	}
	return &p, nil
}

// ListActive returns the org's active providers, optionally filtered by role.
func (r *PostgresRepository) ListActive(ctx context.Context, orgID string, role string) ([]*Provider, error) {
	query := `
		SELECT id, org_id, name, role, active
		FROM providers
		WHERE org_id = $1 AND active = true
	`
	args := []any{orgID}
	if role != "" {
		query += ` AND role = $2`
		args = append(args, role)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("providers: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Role, &p.Active); err != nil {
			return nil, fmt.Errorf("providers: scan failed: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// InMemoryRepository is a map-backed Repository for tests and local runs.
type InMemoryRepository struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]*Provider
}

// NewInMemoryRepository creates an empty in-memory directory.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{providers: make(map[uuid.UUID]*Provider)}
}

// Add stores a provider.
func (r *InMemoryRepository) Add(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.providers[p.ID] = p
}

// GetForOrg returns a provider scoped to the org.
func (r *InMemoryRepository) GetForOrg(ctx context.Context, orgID string, id uuid.UUID) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok || p.OrgID != orgID {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

// ListActive returns active providers, optionally filtered by role.
func (r *InMemoryRepository) ListActive(ctx context.Context, orgID string, role string) ([]*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Provider
	for _, p := range r.providers {
		if p.OrgID != orgID || !p.Active {
			continue
		}
		if role != "" && p.Role != role {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*InMemoryRepository)(nil)
)
