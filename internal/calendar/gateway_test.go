package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

func connectionRows(mock pgxmock.PgxPoolIface, expiresAt time.Time) *pgxmock.Rows {
	return mock.NewRows([]string{"org_id", "provider", "calendar_id", "access_token", "refresh_token", "token_expires_at", "updated_at"}).
		AddRow("org-1", "google", "primary", "stale-token", "refresh-1", expiresAt, time.Now())
}

func TestValidAccessTokenUsesStoredTokenWhenFresh(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT org_id").WithArgs("org-1").
		WillReturnRows(connectionRows(mock, time.Now().Add(time.Hour)))

	gw := NewGateway(OAuthConfig{}, "https://api.example.com", NewConnectionStore(mock), logging.Default())

	token, ok := gw.ValidAccessToken(context.Background(), "org-1")
	if !ok || token != "stale-token" {
		t.Fatalf("expected stored token, got %q ok=%v", token, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestValidAccessTokenRefreshesExpiredToken(t *testing.T) {
	var refreshCalls int
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected refresh form: %v", r.Form)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh-token", "expires_in": 3600})
	}))
	defer vendor.Close()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT org_id").WithArgs("org-1").
		WillReturnRows(connectionRows(mock, time.Now().Add(-time.Minute)))
	mock.ExpectExec("UPDATE calendar_connections").
		WithArgs("org-1", "fresh-token", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	gw := NewGateway(OAuthConfig{TokenURL: vendor.URL, ClientID: "cid", ClientSecret: "secret"},
		"https://api.example.com", NewConnectionStore(mock), logging.Default())

	token, ok := gw.ValidAccessToken(context.Background(), "org-1")
	if !ok || token != "fresh-token" {
		t.Fatalf("expected refreshed token, got %q ok=%v", token, ok)
	}
	if refreshCalls != 1 {
		t.Errorf("expected 1 refresh call, got %d", refreshCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestValidAccessTokenNoConnection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT org_id").WithArgs("org-x").WillReturnError(errNoRowsForTest())

	gw := NewGateway(OAuthConfig{}, "https://api.example.com", NewConnectionStore(mock), logging.Default())
	if _, ok := gw.ValidAccessToken(context.Background(), "org-x"); ok {
		t.Fatal("expected no token for unconnected org")
	}
}

func TestValidAccessTokenRefreshFailureDegrades(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	}))
	defer vendor.Close()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT org_id").WithArgs("org-1").
		WillReturnRows(connectionRows(mock, time.Now().Add(-time.Hour)))

	gw := NewGateway(OAuthConfig{TokenURL: vendor.URL}, "https://api.example.com", NewConnectionStore(mock), logging.Default())
	if _, ok := gw.ValidAccessToken(context.Background(), "org-1"); ok {
		t.Fatal("expected refresh failure to report not connected")
	}
}

func TestFetchEventsFiltersAllDayEvents(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":    "timed",
					"start": map[string]string{"dateTime": "2026-03-02T10:00:00Z"},
					"end":   map[string]string{"dateTime": "2026-03-02T11:00:00Z"},
				},
				{
					"id":    "allday",
					"start": map[string]string{"date": "2026-03-02"},
					"end":   map[string]string{"date": "2026-03-03"},
				},
			},
		})
	}))
	defer vendor.Close()

	gw := newGatewayWithoutStore(vendor.URL)
	got := gw.FetchEvents(context.Background(), "tok", "primary",
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))

	if len(got) != 1 {
		t.Fatalf("expected 1 timed event, got %d", len(got))
	}
	if got[0].Start.Hour() != 10 || got[0].End.Hour() != 11 {
		t.Errorf("unexpected window: %+v", got[0])
	}
}

func TestFetchEventsNon2xxReturnsEmpty(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer vendor.Close()

	gw := newGatewayWithoutStore(vendor.URL)
	got := gw.FetchEvents(context.Background(), "tok", "primary", time.Now(), time.Now().Add(time.Hour))
	if len(got) != 0 {
		t.Fatalf("expected empty list on non-2xx, got %v", got)
	}
}

func TestCreateEventReturnsExternalID(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev apiEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Fatal(err)
		}
		if ev.Summary != "Appointment: Jane" {
			t.Errorf("unexpected summary %q", ev.Summary)
		}
		ev.ID = "ext-42"
		_ = json.NewEncoder(w).Encode(ev)
	}))
	defer vendor.Close()

	gw := newGatewayWithoutStore(vendor.URL)
	id, err := gw.CreateEvent(context.Background(), "tok", "primary", PushEvent{
		Title: "Appointment: Jane",
		Start: time.Now(),
		End:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != "ext-42" {
		t.Errorf("expected ext-42, got %q", id)
	}
}

func TestCancelEventPropagatesFailure(t *testing.T) {
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer vendor.Close()

	gw := newGatewayWithoutStore(vendor.URL)
	if err := gw.CancelEvent(context.Background(), "tok", "primary", "ext-42"); err == nil {
		t.Fatal("expected error on non-2xx cancel")
	}
}

func newGatewayWithoutStore(baseURL string) *Gateway {
	mock, _ := pgxmock.NewPool()
	return NewGateway(OAuthConfig{}, baseURL, NewConnectionStore(mock), logging.Default())
}

func errNoRowsForTest() error {
	return pgx.ErrNoRows
}
