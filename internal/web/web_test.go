package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bindays/internal/address"
	"bindays/internal/config"
	"bindays/internal/lookup"
	"bindays/internal/model"
)

type fakeLooker struct {
	mu    sync.Mutex
	calls int
	refs  []time.Time
	err   error
}

func (f *fakeLooker) Lookup(_ context.Context, postcode, house string, ref time.Time) (lookup.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return lookup.Result{}, f.err
	}
	next := ref
	for next.Weekday() != time.Friday {
		next = next.AddDate(0, 0, 1)
	}
	return lookup.Result{
		Address: address.Candidate{address.FieldDisplayName: "12 High St", address.FieldUniqueID: "100121"},
		Entries: []model.CollectionEntry{
			{Service: "Refuse", Day: "Friday", Message: "Friday", Date: next, Weekly: true},
			{Service: "Recycling", Day: "Route A"},
		},
		Reference: ref,
	}, nil
}

func newTestServer(t *testing.T, looker Looker, now time.Time) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Postcode = "SN1 2JG"
	cfg.HouseNumber = "12"
	cfg.Timezone = "UTC"
	s := NewServer(cfg, looker)
	s.now = func() time.Time { return now }
	return s
}

// 2025-06-04 is a Wednesday.
var wednesdayNoon = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)
	w := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestCollections(t *testing.T) {
	looker := &fakeLooker{}
	s := newTestServer(t, looker, wednesdayNoon)

	w := get(t, s.Handler(), "/api/collections")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "12 High St", body["address"])
	assert.Equal(t, "100121", body["uprn"])
	assert.Equal(t, "2025-06-04", body["reference_date"])

	collections := body["collections"].([]any)
	require.Len(t, collections, 2)
	first := collections[0].(map[string]any)
	assert.Equal(t, "2025-06-06", first["date"])
	second := collections[1].(map[string]any)
	assert.Equal(t, "Route A", second["day"])
	assert.Nil(t, second["message"])
	assert.Nil(t, second["date"])

	// Second request is served from the snapshot.
	get(t, s.Handler(), "/api/collections")
	assert.Equal(t, 1, looker.calls)
	assert.Equal(t, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), looker.refs[0])
}

func TestSnapshotRefreshesOnNewDay(t *testing.T) {
	looker := &fakeLooker{}
	s := newTestServer(t, looker, wednesdayNoon)

	get(t, s.Handler(), "/api/collections")
	s.now = func() time.Time { return wednesdayNoon.Add(24 * time.Hour) }
	get(t, s.Handler(), "/api/collections")

	require.Equal(t, 2, looker.calls)
	assert.Equal(t, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), looker.refs[1])
}

func TestCollectionsLookupFailure(t *testing.T) {
	s := newTestServer(t, &fakeLooker{err: errors.New("council down")}, wednesdayNoon)

	w := get(t, s.Handler(), "/api/collections")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "failed to load collection schedule")
}

func TestStaleSnapshotServedWhenRefreshFails(t *testing.T) {
	looker := &fakeLooker{}
	s := newTestServer(t, looker, wednesdayNoon)
	require.NoError(t, s.Refresh(context.Background()))

	looker.err = errors.New("council down")
	s.now = func() time.Time { return wednesdayNoon.Add(24 * time.Hour) }

	w := get(t, s.Handler(), "/api/collections")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reference_date":"2025-06-04"`)
}

func TestUpcoming(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)

	w := get(t, s.Handler(), "/api/upcoming?weeks=2")
	require.Equal(t, http.StatusOK, w.Code)

	var body upcomingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2025-06-04", body.From)
	assert.Equal(t, 2, body.Weeks)
	require.Len(t, body.Occurrences, 2)
	assert.Equal(t, "2025-06-06", body.Occurrences[0].Date)
	assert.Equal(t, "Friday", body.Occurrences[0].Weekday)
	assert.Equal(t, "2025-06-13", body.Occurrences[1].Date)
	assert.True(t, body.Occurrences[1].Recurring)
}

func TestUpcomingRejectsBadWeeks(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/upcoming?weeks=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/upcoming?weeks=53").Code)
}

func TestCalendar(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)

	w := get(t, s.Handler(), "/calendar.ics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))

	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "X-WR-CALNAME:Bin days - 12 High St")
	assert.Contains(t, body, "UID:2025-06-06-refuse@bindays")
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)

	req := httptest.NewRequest(http.MethodPost, "/api/collections", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/collections").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	req.SetBasicAuth("admin", "wrong!")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRequiresPostcode(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)
	s.cfg.Postcode = ""
	assert.Error(t, s.Refresh(context.Background()))
}

func TestStartRefresherRejectsBadCron(t *testing.T) {
	s := newTestServer(t, &fakeLooker{}, wednesdayNoon)
	s.cfg.RefreshCron = "not a cron"

	_, err := s.StartRefresher(context.Background())
	assert.Error(t, err)
}
