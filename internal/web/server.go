// Package web provides an HTTP status server for the fluxcap daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

const (
	defaultTripLimit = 20
	maxTripLimit     = 500
	tripQueryTimeout = 3 * time.Second
)

// TripLog lists logged trips.
type TripLog interface {
	RecentTrips(ctx context.Context, limit int) ([]store.Trip, error)
	CountTrips(ctx context.Context) (int, error)
}

// TripsJSON is the response of /trips.json.
type TripsJSON struct {
	Total int        `json:"total"`
	Trips []TripJSON `json:"trips"`
}

// TripJSON is one logged trip.
type TripJSON struct {
	ID        string `json:"id"`
	StartedAt string `json:"started_at"`
	Source    string `json:"source"`
	Mode      string `json:"mode"`
	Aborted   bool   `json:"aborted"`
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	trips      TripLog
	log        *logger.Logger
}

// New creates a Server that reads state from the given tracker and the trip
// log. trips may be nil.
func New(addr string, tracker *status.Tracker, trips TripLog, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{tracker: tracker, trips: trips, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/trips.json", s.handleTrips)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Warnw("render status page failed", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleTrips lists the newest trips; ?limit=N selects how many.
func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	if s.trips == nil {
		http.NotFound(w, r)
		return
	}
	limit := defaultTripLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxTripLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), tripQueryTimeout)
	defer cancel()

	total, err := s.trips.CountTrips(ctx)
	if err != nil {
		s.log.Warnw("count trips failed", "err", err)
		http.Error(w, "trip log unavailable", http.StatusInternalServerError)
		return
	}
	trips, err := s.trips.RecentTrips(ctx, limit)
	if err != nil {
		s.log.Warnw("list trips failed", "err", err)
		http.Error(w, "trip log unavailable", http.StatusInternalServerError)
		return
	}

	out := TripsJSON{Total: total, Trips: make([]TripJSON, 0, len(trips))}
	for _, t := range trips {
		out.Trips = append(out.Trips, TripJSON{
			ID:        t.ID,
			StartedAt: t.StartedAt.UTC().Format(time.RFC3339),
			Source:    t.Source,
			Mode:      t.Mode,
			Aborted:   t.Aborted,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(out, "", "  ")
	w.Write(data)
}
