package org

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

func testMonday() time.Time {
	return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
}

func newSettingsRouter(store *Store) http.Handler {
	h := NewHandler(store, logging.Default())
	r := chi.NewRouter()
	r.Get("/orgs/{orgID}/settings", h.GetSettings)
	r.Put("/orgs/{orgID}/settings", h.UpdateSettings)
	return r
}

func TestUpdateThenGetSettings(t *testing.T) {
	store := newTestStore(t)
	router := newSettingsRouter(store)

	body, _ := json.Marshal(Settings{Name: "North Clinic", Timezone: "America/Denver"})
	req := httptest.NewRequest(http.MethodPut, "/orgs/org-9/settings", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/orgs/org-9/settings", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status %d", w.Code)
	}
	var got Settings
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrgID != "org-9" || got.Name != "North Clinic" {
		t.Errorf("unexpected settings: %+v", got)
	}
}

func TestGetSettingsUnknownOrg(t *testing.T) {
	store := newTestStore(t)
	router := newSettingsRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/orgs/ghost/settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateSettingsRejectsBadTimezone(t *testing.T) {
	store := newTestStore(t)
	router := newSettingsRouter(store)

	body, _ := json.Marshal(Settings{Timezone: "Mars/OlympusMons"})
	req := httptest.NewRequest(http.MethodPut, "/orgs/org-9/settings", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if _, err := store.Get(context.Background(), "org-9"); err == nil {
		t.Fatal("settings should not have been saved")
	}
}
