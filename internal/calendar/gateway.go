package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

// OAuthConfig holds the client credentials for the external calendar vendor.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// EventWindow is a timed busy interval from the external calendar.
type EventWindow struct {
	Start time.Time
	End   time.Time
}

// Gateway talks to the external calendar REST API. Lookups degrade to
// sentinel empties on expected absence; only the push methods (used by the
// sync deliverer) return errors.
type Gateway struct {
	oauth      OAuthConfig
	apiBaseURL string
	store      *ConnectionStore
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGateway creates a calendar gateway.
func NewGateway(oauth OAuthConfig, apiBaseURL string, store *ConnectionStore, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		oauth:      oauth,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client, used by tests.
func (g *Gateway) WithHTTPClient(client *http.Client) *Gateway {
	if client != nil {
		g.httpClient = client
	}
	return g
}

// ValidAccessToken returns a usable access token for the org's calendar
// connection, refreshing it first when the stored expiry has passed. The
// second return is false when the tenant has no connection or the refresh
// fails; callers treat that as "calendar not connected" and degrade.
func (g *Gateway) ValidAccessToken(ctx context.Context, orgID string) (string, bool) {
	conn, err := g.store.Get(ctx, orgID)
	if err != nil {
		if err != ErrNotConnected {
			g.logger.Error("calendar connection lookup failed", "org_id", orgID, "error", err)
		}
		return "", false
	}

	if time.Now().Before(conn.TokenExpiresAt) {
		return conn.AccessToken, true
	}

	token, expiresAt, err := g.refreshToken(ctx, conn.RefreshToken)
	if err != nil {
		g.logger.Warn("calendar token refresh failed", "org_id", orgID, "error", err)
		return "", false
	}
	if err := g.store.SaveToken(ctx, orgID, token, expiresAt); err != nil {
		g.logger.Error("failed to persist refreshed calendar token", "org_id", orgID, "error", err)
	}
	return token, true
}

// SelectedCalendarID returns the tenant's chosen calendar, defaulting to
// "primary" when none is selected.
func (g *Gateway) SelectedCalendarID(ctx context.Context, orgID string) string {
	conn, err := g.store.Get(ctx, orgID)
	if err != nil || conn.CalendarID == "" {
		return "primary"
	}
	return conn.CalendarID
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (g *Gateway) refreshToken(ctx context.Context, refreshToken string) (string, time.Time, error) {
	data := url.Values{
		"client_id":     {g.oauth.ClientID},
		"client_secret": {g.oauth.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.oauth.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("calendar: create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("calendar: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("calendar: read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("calendar: refresh failed: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("calendar: parse refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("calendar: refresh response missing access token")
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return tr.AccessToken, time.Now().Add(time.Duration(expiresIn) * time.Second), nil
}

type apiEvent struct {
	ID          string       `json:"id,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status,omitempty"`
	Start       apiEventTime `json:"start"`
	End         apiEventTime `json:"end"`
}

type apiEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventListResponse struct {
	Items []apiEvent `json:"items"`
}

// FetchEvents lists timed events in [from, to). All-day events (date-only
// start) are filtered out — they do not participate in conflict detection.
// Any non-2xx status yields an empty list rather than an error.
func (g *Gateway) FetchEvents(ctx context.Context, token, calendarID string, from, to time.Time) []EventWindow {
	endpoint := fmt.Sprintf("%s/calendars/%s/events?timeMin=%s&timeMax=%s&singleEvents=true",
		g.apiBaseURL,
		url.PathEscape(calendarID),
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		g.logger.Error("calendar list request build failed", "error", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("calendar list request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("calendar list returned non-2xx", "status", resp.StatusCode)
		return nil
	}

	var list eventListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		g.logger.Warn("calendar list decode failed", "error", err)
		return nil
	}

	windows := make([]EventWindow, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Start.DateTime == "" || item.End.DateTime == "" {
			continue // all-day event
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		windows = append(windows, EventWindow{Start: start, End: end})
	}
	return windows
}

// PushEvent describes a booking change being mirrored to the external calendar.
type PushEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// CreateEvent mirrors a new booking and returns the external event id.
func (g *Gateway) CreateEvent(ctx context.Context, token, calendarID string, ev PushEvent) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", g.apiBaseURL, url.PathEscape(calendarID))
	payload := apiEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       apiEventTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         apiEventTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	var created apiEvent
	if err := g.doJSON(ctx, http.MethodPost, endpoint, token, payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateEvent mirrors a reschedule onto an existing external event.
func (g *Gateway) UpdateEvent(ctx context.Context, token, calendarID, externalID string, ev PushEvent) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", g.apiBaseURL, url.PathEscape(calendarID), url.PathEscape(externalID))
	payload := apiEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       apiEventTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         apiEventTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	return g.doJSON(ctx, http.MethodPatch, endpoint, token, payload, nil)
}

// CancelEvent deletes the mirrored external event.
func (g *Gateway) CancelEvent(ctx context.Context, token, calendarID, externalID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", g.apiBaseURL, url.PathEscape(calendarID), url.PathEscape(externalID))
	return g.doJSON(ctx, http.MethodDelete, endpoint, token, nil, nil)
}

func (g *Gateway) doJSON(ctx context.Context, method, endpoint, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("calendar: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calendar: %s %s returned %d: %s", method, endpoint, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("calendar: decode response: %w", err)
		}
	}
	return nil
}
