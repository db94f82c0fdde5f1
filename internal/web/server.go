// Package web provides an HTTP status server for the featurestate daemon.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/featurestate/internal/history"
	"github.com/sweeney/featurestate/internal/status"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// HistoryReader returns stored transitions, newest first.
// An empty feature selects every feature.
type HistoryReader interface {
	Recent(feature string, limit int) ([]history.Record, error)
	Counts() (map[string]int, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    HistoryReader
}

// New creates a Server that reads state from the given tracker. hist may
// be nil, in which case /history.json returns 404.
func New(addr string, tracker *status.Tracker, hist HistoryReader) *Server {
	s := &Server{tracker: tracker, history: hist}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
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
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	data, err := status.FormatJSON(s.tracker.Snapshot())
	if err != nil {
		log.Printf("web: %v", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// HistoryJSON is the response body of /history.json. Counts holds the
// stored transitions per feature, initial states excluded.
type HistoryJSON struct {
	Feature     string           `json:"feature,omitempty"`
	Counts      map[string]int   `json:"counts"`
	Transitions []TransitionJSON `json:"transitions"`
}

// TransitionJSON is one stored state change.
type TransitionJSON struct {
	ID      string  `json:"id"`
	RunID   string  `json:"run_id"`
	Feature string  `json:"feature"`
	From    string  `json:"from,omitempty"`
	To      string  `json:"to"`
	Sample  float64 `json:"sample"`
	At      string  `json:"at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	feature := q.Get("feature")
	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.Recent(feature, limit)
	if err != nil {
		log.Printf("web: history: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	counts, err := s.history.Counts()
	if err != nil {
		log.Printf("web: history counts: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := HistoryJSON{
		Feature:     feature,
		Counts:      counts,
		Transitions: make([]TransitionJSON, len(records)),
	}
	for i, rec := range records {
		out.Transitions[i] = TransitionJSON{
			ID:      rec.ID,
			RunID:   rec.RunID,
			Feature: rec.Feature,
			From:    string(rec.From),
			To:      string(rec.To),
			Sample:  rec.Sample,
			At:      rec.At.UTC().Format(time.RFC3339Nano),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
