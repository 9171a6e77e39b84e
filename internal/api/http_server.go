package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"venueboard/internal/config"
	"venueboard/internal/metrics"
	"venueboard/internal/models"
	"venueboard/internal/reconcile"
	"venueboard/internal/snapshot"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the board's read API plus the thin booking
// pass-through. All reads come from the in-memory snapshot store; no
// request triggers a refetch.
type HTTPServer struct {
	cfg    config.BoardConfig
	store  *snapshot.Store
	venues []models.Venue
	slots  []string
	intake Intake
	logger *zerolog.Logger
	server *http.Server
	auth   *HTTPAuth
	now    func() time.Time
}

// Intake accepts a new booking row; nil disables /api/book.
type Intake interface {
	Append(ctx context.Context, rec models.BookingRecord) error
}

func NewHTTPServer(cfg config.BoardConfig, store *snapshot.Store, venues []models.Venue, slots []string, intake Intake, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		store:  store,
		venues: venues,
		slots:  slots,
		intake: intake,
		logger: logger,
		now:    time.Now,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/availability", srv.handleAvailability)
	mux.HandleFunc("/api/book", srv.handleBook)
	mux.HandleFunc("/api/venues", srv.handleVenues)
	mux.HandleFunc("/api/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("board API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("availability")

	sel, err := s.parseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, loaded := s.store.Records()
	statuses := reconcile.Reconcile(records, sel, s.venues)

	resp := map[string]any{
		"date":            sel.Date,
		"slot":            sel.Slot,
		"snapshot_loaded": loaded,
		"venues":          statuses,
	}
	if loaded {
		resp["fetched_at"] = s.store.FetchedAt().UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("book")

	if s.intake == nil {
		writeError(w, http.StatusServiceUnavailable, "booking intake is not configured")
		return
	}

	type request struct {
		LocationID string `json:"location_id"`
		SlotID     string `json:"slot_id"`
		Date       string `json:"date"`
		EventName  string `json:"event_name"`
		Club       string `json:"club"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := time.Parse(models.DateLayout, body.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	if !s.knownVenue(body.LocationID) {
		writeError(w, http.StatusBadRequest, "unknown location_id")
		return
	}
	if !s.knownSlot(body.SlotID) {
		writeError(w, http.StatusBadRequest, "unknown slot_id")
		return
	}
	if strings.TrimSpace(body.EventName) == "" {
		writeError(w, http.StatusBadRequest, "event_name is required")
		return
	}

	records, _ := s.store.Records()
	sel := reconcile.Selection{Date: body.Date, Slot: body.SlotID}
	for _, rec := range records {
		if reconcile.Matches(rec, body.LocationID, sel) {
			writeError(w, http.StatusConflict, "Slot already taken")
			return
		}
	}

	// Best-effort daily cap per club, judged from the last snapshot.
	// The source of truth stays the remote store; this only rejects
	// requests the board can already see are over the limit.
	if body.Club != "" && s.cfg.ClubDailyLimit > 0 {
		count := 0
		for _, rec := range records {
			if rec.Club == body.Club && rec.Date == body.Date {
				count++
			}
		}
		if count >= s.cfg.ClubDailyLimit {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Daily limit reached (%d slots max)", s.cfg.ClubDailyLimit))
			return
		}
	}

	rec := models.BookingRecord{
		Date:       body.Date,
		Slot:       body.SlotID,
		LocationID: body.LocationID,
		Club:       body.Club,
		Event:      body.EventName,
		Timestamp:  s.now(),
	}
	if err := s.intake.Append(r.Context(), rec); err != nil {
		s.logger.Error().Err(err).Msg("intake append failed")
		writeError(w, http.StatusBadGateway, "could not record booking request")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Booking request recorded"})
}

func (s *HTTPServer) handleVenues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("venues")

	writeJSON(w, http.StatusOK, map[string]any{
		"venues": s.venues,
		"slots":  s.slots,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, loaded := s.store.Records()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"snapshot_loaded": loaded,
	})
}

func (s *HTTPServer) parseSelection(r *http.Request) (reconcile.Selection, error) {
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		return reconcile.Selection{}, fmt.Errorf("date is required")
	}
	if _, err := time.Parse(models.DateLayout, dateStr); err != nil {
		return reconcile.Selection{}, fmt.Errorf("invalid date format; expected YYYY-MM-DD")
	}

	slot := strings.TrimSpace(r.URL.Query().Get("slot_id"))
	if slot == "" {
		return reconcile.Selection{}, fmt.Errorf("slot_id is required")
	}

	return reconcile.Selection{Date: dateStr, Slot: slot}, nil
}

func (s *HTTPServer) knownVenue(id string) bool {
	for _, v := range s.venues {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (s *HTTPServer) knownSlot(slot string) bool {
	for _, candidate := range s.slots {
		if candidate == slot {
			return true
		}
	}
	return false
}

// HTTPAuth provides API-key auth and per-key rate limiting.
type HTTPAuth struct {
	cfg      config.BoardConfig
	keys     map[string]bool
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.BoardConfig) *HTTPAuth {
	m := make(map[string]bool, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k] = true
	}
	return &HTTPAuth{cfg: cfg, keys: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled && r.URL.Path != "/healthz" {
			if err := a.checkAuth(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = "x-api-key"
	}

	apiKey := strings.TrimSpace(r.Header.Get(header))
	if apiKey == "" {
		return fmt.Errorf("missing api key header")
	}

	for known := range a.keys {
		if subtle.ConstantTimeCompare([]byte(known), []byte(apiKey)) == 1 {
			return nil
		}
	}
	return fmt.Errorf("invalid api key")
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = "x-api-key"
	}
	if apiKey := strings.TrimSpace(r.Header.Get(header)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
