package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/internal/calendar"
	"github.com/frontdeskhq/receptionist-platform/internal/http/handlers"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/providers"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, mock pgxmock.PgxPoolIface) http.Handler {
	t.Helper()
	logger := logging.New("error")

	mr := miniredis.RunT(t)
	store := org.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, store.Put(t.Context(), &org.Settings{OrgID: "org-1", Name: "Front Desk Test", Timezone: "UTC"}))

	repo := appointments.NewMemoryRepository()
	svc := appointments.NewService(repo, store, providers.NewInMemoryRepository(), logger)

	gateway := calendar.NewGateway(calendar.OAuthConfig{}, "https://calendar.example.com", calendar.NewConnectionStore(mock), logger)

	tools := handlers.NewToolsHandler(handlers.ToolsHandlerConfig{
		Bookings: svc,
		Orgs:     store,
		Calendar: gateway,
		Busy:     repo,
		Logger:   logger,
	})

	return New(&Config{
		Logger:          logger,
		Tools:           tools,
		OrgHandler:      org.NewHandler(store, logger),
		AdminAuthSecret: testSecret,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newTestRouter(t, mock)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestToolsRequireOrgHeader(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newTestRouter(t, mock)
	req := httptest.NewRequest(http.MethodPost, "/tools/check-availability", strings.NewReader(`{"organization_id":"org-1"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAvailabilityNoCalendarConnection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("SELECT org_id, provider, calendar_id").
		WithArgs("org-1").
		WillReturnError(pgx.ErrNoRows)

	r := newTestRouter(t, mock)
	body, _ := json.Marshal(map[string]string{"organization_id": "org-1", "date_preference": "tomorrow"})
	req := httptest.NewRequest(http.MethodPost, "/tools/check-availability", bytes.NewReader(body))
	req.Header.Set("X-Org-Id", "org-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AvailableSlots []any  `json:"available_slots"`
		NextAvailable  string `json:"next_available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.AvailableSlots)
	assert.NotEmpty(t, resp.NextAvailable)
}

func TestAdminSettingsRequireJWT(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newTestRouter(t, mock)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orgs/org-1/settings", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := newTestRouter(t, mock)
	token := adminToken(t)

	body, _ := json.Marshal(map[string]any{"name": "Updated Name", "timezone": "America/Chicago"})
	req := httptest.NewRequest(http.MethodPut, "/admin/orgs/org-1/settings", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/orgs/org-1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings org.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "Updated Name", settings.Name)
	assert.Equal(t, "America/Chicago", settings.Timezone)
}
