// Package calendar integrates a tenant's connected external calendar: OAuth
// credential refresh, event listing for availability, and fire-and-forget
// propagation of booking changes.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotConnected is returned when a tenant has no stored calendar connection.
var ErrNotConnected = errors.New("calendar: not connected")

// Connection is a tenant's stored OAuth link to the external calendar.
type Connection struct {
	OrgID          string
	Provider       string
	CalendarID     string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	UpdatedAt      time.Time
}

// connectionQuerier is the pgx surface the store needs; *pgxpool.Pool and
// pgxmock both satisfy it.
type connectionQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ConnectionStore persists calendar connections.
type ConnectionStore struct {
	db connectionQuerier
}

// NewConnectionStore creates a store backed by a pgx pool.
func NewConnectionStore(db connectionQuerier) *ConnectionStore {
	if db == nil {
		panic("calendar: db required")
	}
	return &ConnectionStore{db: db}
}

// Get loads the connection for an org.
func (s *ConnectionStore) Get(ctx context.Context, orgID string) (*Connection, error) {
	query := `
		SELECT org_id, provider, calendar_id, access_token, refresh_token, token_expires_at, updated_at
		FROM calendar_connections
		WHERE org_id = $1
	`
	var conn Connection
	err := s.db.QueryRow(ctx, query, orgID).Scan(
		&conn.OrgID,
		&conn.Provider,
		&conn.CalendarID,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.TokenExpiresAt,
		&conn.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: load connection: %w", err)
	}
	return &conn, nil
}

// SaveToken persists a refreshed access token and expiry.
func (s *ConnectionStore) SaveToken(ctx context.Context, orgID, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE calendar_connections
		SET access_token = $2, token_expires_at = $3, updated_at = now()
		WHERE org_id = $1
	`
	if _, err := s.db.Exec(ctx, query, orgID, accessToken, expiresAt); err != nil {
		return fmt.Errorf("calendar: save token: %w", err)
	}
	return nil
}
