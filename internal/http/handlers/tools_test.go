package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdeskhq/receptionist-platform/internal/appointments"
	"github.com/frontdeskhq/receptionist-platform/internal/calendar"
	"github.com/frontdeskhq/receptionist-platform/internal/org"
	"github.com/frontdeskhq/receptionist-platform/internal/providers"
	"github.com/frontdeskhq/receptionist-platform/pkg/logging"
)

type stubOrgs struct {
	settings map[string]*org.Settings
}

func (s *stubOrgs) Get(ctx context.Context, orgID string) (*org.Settings, error) {
	if st, ok := s.settings[orgID]; ok {
		return st, nil
	}
	return nil, org.ErrNotFound
}

type stubCalendar struct {
	connected bool
	events    []calendar.EventWindow
}

func (s *stubCalendar) ValidAccessToken(ctx context.Context, orgID string) (string, bool) {
	if !s.connected {
		return "", false
	}
	return "token", true
}

func (s *stubCalendar) SelectedCalendarID(ctx context.Context, orgID string) string {
	return "primary"
}

func (s *stubCalendar) FetchEvents(ctx context.Context, token, calendarID string, from, to time.Time) []calendar.EventWindow {
	return s.events
}

type toolsFixture struct {
	handler *ToolsHandler
	repo    *appointments.MemoryRepository
	cal     *stubCalendar
	loc     *time.Location
}

// Monday, March 2 2026, 8 AM Eastern.
func newToolsFixture(t *testing.T) *toolsFixture {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, loc)

	repo := appointments.NewMemoryRepository()
	orgs := &stubOrgs{settings: map[string]*org.Settings{
		"org-1": {OrgID: "org-1", Name: "Front Desk Test", Timezone: "America/New_York"},
	}}
	svc := appointments.NewService(repo, orgs, providers.NewInMemoryRepository(), logging.New("error"),
		appointments.WithClock(func() time.Time { return now }))
	cal := &stubCalendar{connected: true}

	h := NewToolsHandler(ToolsHandlerConfig{
		Bookings: svc,
		Orgs:     orgs,
		Calendar: cal,
		Busy:     repo,
		Logger:   logging.New("error"),
	}).WithClock(func() time.Time { return now })

	return &toolsFixture{handler: h, repo: repo, cal: cal, loc: loc}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCheckAvailabilityTomorrow(t *testing.T) {
	f := newToolsFixture(t)

	rec := postJSON(t, f.handler.CheckAvailability, map[string]any{
		"organization_id":  "org-1",
		"date_preference":  "tomorrow",
		"duration_minutes": 30,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AvailableSlots)
	assert.LessOrEqual(t, len(resp.AvailableSlots), 5)
	assert.Contains(t, resp.AvailableSlots[0].Display, "Tuesday")
	assert.Equal(t, resp.AvailableSlots[0].Display, resp.NextAvailable)
	assert.Equal(t, "9 AM – 5 PM weekdays", resp.BusinessHours)

	first, err := time.Parse(time.RFC3339, resp.AvailableSlots[0].Start)
	require.NoError(t, err)
	hour := first.In(f.loc).Hour()
	assert.GreaterOrEqual(t, hour, 9)
	assert.LessOrEqual(t, hour, 16)
}

func TestCheckAvailabilityIdempotent(t *testing.T) {
	f := newToolsFixture(t)
	body := map[string]any{"organization_id": "org-1", "date_preference": "this_week"}

	first := postJSON(t, f.handler.CheckAvailability, body)
	second := postJSON(t, f.handler.CheckAvailability, body)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCheckAvailabilityExcludesExternalEvents(t *testing.T) {
	f := newToolsFixture(t)
	f.cal.events = []calendar.EventWindow{{
		Start: time.Date(2026, 3, 3, 10, 0, 0, 0, f.loc),
		End:   time.Date(2026, 3, 3, 11, 0, 0, 0, f.loc),
	}}

	rec := postJSON(t, f.handler.CheckAvailability, map[string]any{
		"organization_id": "org-1",
		"date_preference": "tomorrow",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, s := range resp.AvailableSlots {
		start, err := time.Parse(time.RFC3339, s.Start)
		require.NoError(t, err)
		assert.NotEqual(t, 10, start.In(f.loc).Hour())
	}
}

func TestCheckAvailabilityNoConnection(t *testing.T) {
	f := newToolsFixture(t)
	f.cal.connected = false

	rec := postJSON(t, f.handler.CheckAvailability, map[string]any{"organization_id": "org-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.AvailableSlots)
	assert.NotEmpty(t, resp.NextAvailable)
	assert.NotEmpty(t, resp.BusinessHours)
}

func TestCheckAvailabilityUnknownOrg(t *testing.T) {
	f := newToolsFixture(t)

	rec := postJSON(t, f.handler.CheckAvailability, map[string]any{"organization_id": "nope"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.AvailableSlots)
	assert.NotEmpty(t, resp.NextAvailable)
}

func TestCheckAvailabilityMissingOrgID(t *testing.T) {
	f := newToolsFixture(t)
	rec := postJSON(t, f.handler.CheckAvailability, map[string]any{"date_preference": "today"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAppointmentSuccess(t *testing.T) {
	f := newToolsFixture(t)

	rec := postJSON(t, f.handler.BookAppointment, map[string]any{
		"organization_id":      "org-1",
		"customer_name":        "Jane Doe",
		"customer_phone":       "415-555-0134",
		"appointment_datetime": "2026-03-03T14:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp appointments.BookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.AppointmentID)
	assert.Contains(t, resp.Message, "Tuesday at 2 PM")
}

func TestBookAppointmentPastTimeIsSpokenFailure(t *testing.T) {
	f := newToolsFixture(t)

	rec := postJSON(t, f.handler.BookAppointment, map[string]any{
		"organization_id":      "org-1",
		"customer_name":        "Jane Doe",
		"customer_phone":       "415-555-0134",
		"appointment_datetime": "2026-03-01T14:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp appointments.BookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestBookAppointmentMissingOrgID(t *testing.T) {
	f := newToolsFixture(t)
	rec := postJSON(t, f.handler.BookAppointment, map[string]any{"customer_name": "Jane Doe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAppointmentDisambiguates(t *testing.T) {
	f := newToolsFixture(t)

	for _, dt := range []string{"2026-03-03T10:00:00", "2026-03-04T15:00:00"} {
		rec := postJSON(t, f.handler.BookAppointment, map[string]any{
			"organization_id":      "org-1",
			"customer_name":        "Jane Doe",
			"customer_phone":       "415-555-0134",
			"appointment_datetime": dt,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, f.handler.CancelAppointment, map[string]any{
		"organization_id": "org-1",
		"customer_phone":  "4155550134",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp appointments.CancelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.True(t, resp.MultipleAppointments)
	require.Len(t, resp.Appointments, 2)
	for _, c := range resp.Appointments {
		assert.NotEmpty(t, c.Display)
	}
}

func TestRescheduleAppointmentEndToEnd(t *testing.T) {
	f := newToolsFixture(t)

	rec := postJSON(t, f.handler.BookAppointment, map[string]any{
		"organization_id":      "org-1",
		"customer_name":        "Jane Doe",
		"customer_phone":       "415-555-0134",
		"appointment_datetime": "2026-03-03T10:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, f.handler.RescheduleAppointment, map[string]any{
		"organization_id": "org-1",
		"customer_phone":  "4155550134",
		"new_datetime":    "2026-03-04T15:00:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp appointments.RescheduleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "Wednesday at 3 PM")

	// The moved slot frees up the original time.
	avail := postJSON(t, f.handler.CheckAvailability, map[string]any{
		"organization_id": "org-1",
		"date_preference": "tomorrow",
	})
	var availResp availabilityResponse
	require.NoError(t, json.Unmarshal(avail.Body.Bytes(), &availResp))
	found := false
	for _, s := range availResp.AvailableSlots {
		start, err := time.Parse(time.RFC3339, s.Start)
		require.NoError(t, err)
		if start.In(f.loc).Hour() == 10 {
			found = true
		}
	}
	assert.True(t, found, fmt.Sprintf("expected 10 AM slot to be free again, got %+v", availResp.AvailableSlots))
}
