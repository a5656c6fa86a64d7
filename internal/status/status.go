// Package status exposes a small HTTP surface over a running watcher: the
// current phase for polling indicators, and a server-sent event stream for
// push consumers. The server is itself a sink, so it plugs into the same
// fan-out router as stdout and webhook delivery.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/typewatch/typewatch/internal/journal"
	"github.com/typewatch/typewatch/phase"
)

// State is the poll snapshot served on /phase.
type State struct {
	Phase       phase.Phase `json:"phase"`
	TrackedPath string      `json:"tracked_path"`
	PageURL     string      `json:"page_url"`
	PageID      string      `json:"page_id"`
}

// StateFunc returns the current watcher state. Called per request.
type StateFunc func() State

// Querier serves the journal read endpoints. Implemented by
// *journal.Journal.
type Querier interface {
	Recent(ctx context.Context, pageID string, limit int) ([]phase.Event, error)
	Stats(ctx context.Context, pageID string) (*journal.SessionStats, error)
}

// Option configures optional server features.
type Option func(*Server)

// WithJournal serves /journal/events and /journal/stats from j.
func WithJournal(j Querier) Option {
	return func(s *Server) { s.journal = j }
}

// Server serves /phase, /healthz and the /events SSE stream, plus the
// journal read endpoints when a journal is attached.
type Server struct {
	addr    string
	state   StateFunc
	logger  *slog.Logger
	journal Querier

	srv *http.Server

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// New creates a status server bound to addr.
func New(addr string, state StateFunc, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:   addr,
		state:  state,
		logger: logger,
		subs:   make(map[chan []byte]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/phase", s.handlePhase)
	r.Get("/events", s.handleEvents)
	r.Get("/journal/events", s.handleJournalEvents)
	r.Get("/journal/stats", s.handleJournalStats)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. It returns immediately; serve errors other than
// graceful shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status: listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status: serve failed", "error", err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handlePhase(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state()); err != nil {
		s.logger.Warn("status: encode state failed", "error", err)
	}
}

// handleJournalEvents serves recent journalled phase events for a page,
// newest first. Defaults to the watched page; ?page= and ?limit= override.
func (s *Server) handleJournalEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		pageID = s.state().PageID
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.journal.Recent(r.Context(), pageID, limit)
	if err != nil {
		s.logger.Warn("status: journal query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []phase.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.logger.Warn("status: encode journal events failed", "error", err)
	}
}

// handleJournalStats serves aggregate journal counters for a page.
func (s *Server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		pageID = s.state().PageID
	}

	stats, err := s.journal.Stats(r.Context(), pageID)
	if err != nil {
		s.logger.Warn("status: journal stats failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Warn("status: encode journal stats failed", "error", err)
	}
}

// handleEvents streams phase and pick events as SSE frames. Slow clients
// get dropped frames, never backpressure on the detection path.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// broadcast fans a pre-rendered SSE frame to all subscribers, dropping for
// any subscriber whose buffer is full.
func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func sseFrame(event string, data []byte) []byte {
	return []byte("event: " + event + "\ndata: " + string(data) + "\n\n")
}

// SendPhase implements the sink interface: one SSE frame per phase event.
func (s *Server) SendPhase(_ context.Context, ev phase.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("status: marshal phase event: %w", err)
	}
	s.broadcast(sseFrame("phase", data))
	return nil
}

// SendPick implements the sink interface for picker events.
func (s *Server) SendPick(_ context.Context, ev phase.PickEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("status: marshal pick event: %w", err)
	}
	s.broadcast(sseFrame("pick", data))
	return nil
}

// Close shuts the HTTP server down gracefully.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
