// Package org holds per-tenant settings: name, timezone, weekly business
// hours, and notification preferences.
package org

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frontdeskhq/receptionist-platform/internal/hours"
)

// ErrNotFound is returned when an organization has no stored settings and
// callers need to distinguish "unknown tenant" from defaults.
var ErrNotFound = errors.New("org: not found")

// NotificationPrefs controls the best-effort owner notifications.
type NotificationPrefs struct {
	EmailEnabled    bool     `json:"email_enabled"`
	EmailRecipients []string `json:"email_recipients,omitempty"`
	NotifyOnBooking bool     `json:"notify_on_booking"`
	NotifyOnCancel  bool     `json:"notify_on_cancel"`
}

// Settings is the tenant settings document. Hours is nil when the tenant has
// never configured a schedule; the hours package resolves the default.
type Settings struct {
	OrgID         string                `json:"org_id"`
	Name          string                `json:"name"`
	Timezone      string                `json:"timezone"`
	Hours         *hours.WeeklySchedule `json:"business_hours,omitempty"`
	Notifications NotificationPrefs     `json:"notifications"`
	UpdatedAt     time.Time             `json:"updated_at,omitempty"`
}

// Location resolves the tenant timezone, falling back to UTC when the stored
// value is empty or invalid.
func (s *Settings) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Schedule returns the tenant schedule with the nil fallback applied.
func (s *Settings) Schedule() *hours.WeeklySchedule {
	return hours.Resolve(s.Hours)
}

// Store persists tenant settings in redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a settings store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(orgID string) string {
	return fmt.Sprintf("org:settings:%s", orgID)
}

// Get retrieves tenant settings. Unknown orgs return ErrNotFound.
func (s *Store) Get(ctx context.Context, orgID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("org: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("org: unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Put saves tenant settings.
func (s *Store) Put(ctx context.Context, settings *Settings) error {
	if settings == nil || settings.OrgID == "" {
		return fmt.Errorf("org: settings org_id required")
	}
	settings.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("org: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.OrgID), data, 0).Err(); err != nil {
		return fmt.Errorf("org: set settings: %w", err)
	}
	return nil
}
