package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bindays/internal/config"
	"bindays/internal/ics"
	"bindays/internal/lookup"
	appLog "bindays/internal/log"
	"bindays/internal/model"
)

// Looker resolves an address to its schedule. *lookup.Service implements it.
type Looker interface {
	Lookup(ctx context.Context, postcode, houseNumber string, ref time.Time) (lookup.Result, error)
}

// Server serves the schedule of the configured address over HTTP.
type Server struct {
	cfg    *config.Config
	looker Looker
	loc    *time.Location
	now    func() time.Time
	mux    *http.ServeMux

	// snapMu guards snap, the last successful lookup.
	snapMu sync.RWMutex
	snap   *snapshot

	// refreshMu serializes lookups so cron and request-driven refreshes do
	// not hit the council twice at once.
	refreshMu sync.Mutex
}

type snapshot struct {
	result    lookup.Result
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, looker Looker) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:    cfg,
		looker: looker,
		loc:    loc,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="bindays", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer runs the HTTP server and the cron refresher until ctx is
// canceled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, looker Looker) error {
	s := NewServer(cfg, looker)

	stopCron, err := s.StartRefresher(ctx)
	if err != nil {
		return err
	}
	defer stopCron()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartRefresher schedules Refresh on cfg.RefreshCron and runs one refresh
// immediately in the background. The returned func stops the scheduler and
// waits for a running job.
func (s *Server) StartRefresher(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("refresh scheduler started", "cron", s.cfg.RefreshCron, "timezone", s.loc.String())

	go func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}()

	return func() { <-c.Stop().Done() }, nil
}

// Refresh looks up the configured address again and replaces the snapshot.
// On failure the previous snapshot is kept.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Server) refreshLocked(ctx context.Context) error {
	if s.cfg.Postcode == "" {
		return errors.New("no postcode configured")
	}
	res, err := s.looker.Lookup(ctx, s.cfg.Postcode, s.cfg.HouseNumber, s.today())
	if err != nil {
		return err
	}

	s.snapMu.Lock()
	s.snap = &snapshot{result: res, updatedAt: s.now()}
	s.snapMu.Unlock()

	appLog.Info("schedule refreshed", "entries", len(res.Entries), "reference_date", res.Reference.Format(time.DateOnly))
	return nil
}

func (s *Server) today() time.Time {
	return lookup.Today(s.now(), s.loc)
}

// current returns a snapshot whose reference date is today, refreshing when
// the cached one is missing or from an earlier day.
func (s *Server) current(ctx context.Context) (*snapshot, error) {
	today := s.today()

	s.snapMu.RLock()
	snap := s.snap
	s.snapMu.RUnlock()
	if snap != nil && snap.result.Reference.Equal(today) {
		return snap, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another request may have refreshed while we waited.
	s.snapMu.RLock()
	snap = s.snap
	s.snapMu.RUnlock()
	if snap != nil && snap.result.Reference.Equal(today) {
		return snap, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		if snap != nil {
			appLog.Error("refresh failed; serving previous snapshot", err)
			return snap, nil
		}
		return nil, err
	}

	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/collections", s.handleCollections)
	s.mux.HandleFunc("/api/upcoming", s.handleUpcoming)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// collectionsResponse is the JSON response shape for /api/collections.
type collectionsResponse struct {
	Address       string          `json:"address"`
	UPRN          string          `json:"uprn"`
	ReferenceDate string          `json:"reference_date"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Collections   []collectionDTO `json:"collections"`
}

// collectionDTO reports undeterminable fields as null.
type collectionDTO struct {
	Service string  `json:"service"`
	Day     *string `json:"day"`
	Message *string `json:"message"`
	Date    *string `json:"date"`
}

type upcomingResponse struct {
	From        string          `json:"from"`
	Weeks       int             `json:"weeks"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type occurrenceDTO struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	Service   string `json:"service"`
	Recurring bool   `json:"recurring"`
}

// handleCollections returns the normalized schedule.
//
// GET /api/collections
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("api collections: lookup failed", err)
		writeError(w, http.StatusBadGateway, "failed to load collection schedule")
		return
	}

	res := snap.result
	dtos := make([]collectionDTO, 0, len(res.Entries))
	for _, e := range res.Entries {
		dtos = append(dtos, collectionDTO{
			Service: e.Service,
			Day:     nullable(e.Day),
			Message: nullable(e.Message),
			Date:    nullable(e.DateString()),
		})
	}

	writeJSON(w, http.StatusOK, collectionsResponse{
		Address:       res.Address.DisplayName(),
		UPRN:          res.Address.UniqueID(),
		ReferenceDate: res.Reference.Format(time.DateOnly),
		UpdatedAt:     snap.updatedAt,
		Collections:   dtos,
	})
}

// handleUpcoming expands weekly entries over a horizon.
//
// GET /api/upcoming?weeks=4
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), s.cfg.HorizonWeeks)
	if weeks <= 0 || weeks > ics.MaxHorizonWeeks {
		writeError(w, http.StatusBadRequest, "weeks must be between 1 and "+strconv.Itoa(ics.MaxHorizonWeeks))
		return
	}

	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("api upcoming: lookup failed", err)
		writeError(w, http.StatusBadGateway, "failed to load collection schedule")
		return
	}

	from := snap.result.Reference
	occ := ics.ExpandUpcoming(snap.result.Entries, from, weeks)
	writeJSON(w, http.StatusOK, upcomingResponse{
		From:        from.Format(time.DateOnly),
		Weeks:       weeks,
		Occurrences: toOccurrenceDTOs(occ),
	})
}

// handleCalendar serves the schedule as an ICS subscription feed.
//
// GET /calendar.ics
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("calendar: lookup failed", err)
		http.Error(w, "failed to load collection schedule", http.StatusBadGateway)
		return
	}

	name := "Bin days"
	if dn := snap.result.Address.DisplayName(); dn != "" {
		name += " - " + dn
	}
	cal := ics.BuildCalendar(name, snap.result.Entries, snap.updatedAt)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

func toOccurrenceDTOs(occ []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		out = append(out, occurrenceDTO{
			Date:      o.Date.Format(time.DateOnly),
			Weekday:   o.Date.Weekday().String(),
			Service:   o.Service,
			Recurring: o.Recurring,
		})
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
