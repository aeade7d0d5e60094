// Package httpapi serves a read-only JSON view of the coordinator, the sync
// journal and the metrics registry.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/virgil28labs/timesync/coordinator"
	"github.com/virgil28labs/timesync/logger"
	"github.com/virgil28labs/timesync/models"
	"github.com/virgil28labs/timesync/store"
	"github.com/virgil28labs/timesync/timeutil"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000

	// An update older than this is reported as not fresh.
	freshWindow = 3 * time.Second
)

// Status is the part of the coordinator the API reads.
type Status interface {
	SelfID() string
	LeaderID() string
	IsLeader() bool
	State() coordinator.State
	SyncEnabled() bool
	Peers() []models.PeerRecord
	Latest() models.TimeUpdate
	MonotonicTimestamp() time.Duration
}

// Journal is the part of the store the API reads.
type Journal interface {
	ListEventsSince(ctx context.Context, cutoff time.Time, limit int) ([]models.SyncEvent, error)
	CountEventsByKindSince(ctx context.Context, cutoff time.Time) ([]store.CountRow, error)
}

type Params struct {
	Status   Status
	Journal  Journal
	Metrics  http.Handler
	Relay    http.Handler
	Location *time.Location
	Logger   logger.Logger
}

// Server routes the API. It is an http.Handler.
type Server struct {
	status   Status
	journal  Journal
	location *time.Location
	logger   logger.Logger
	now      func() time.Time
	mux      *http.ServeMux
}

func New(p Params) *Server {
	s := &Server{
		status:   p.Status,
		journal:  p.Journal,
		location: p.Location,
		logger:   logger.OrNop(p.Logger),
		now:      time.Now,
		mux:      http.NewServeMux(),
	}
	if s.location == nil {
		s.location = time.Local
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /peers", s.handlePeers)
	s.mux.HandleFunc("GET /time", s.handleTime)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /events/summary", s.handleSummary)
	if p.Metrics != nil {
		s.mux.Handle("GET /metrics", p.Metrics)
	}
	if p.Relay != nil {
		s.mux.Handle("/relay", p.Relay)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	PeerID string `json:"peerId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.status.State()
	resp := healthResponse{Status: "ok", State: state.String(), PeerID: s.status.SelfID()}
	code := http.StatusOK
	if state != coordinator.StateSolo && state != coordinator.StateCoordinating {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	peers := s.status.Peers()
	if peers == nil {
		peers = []models.PeerRecord{}
	}
	s.writeJSON(w, http.StatusOK, peers)
}

type timeResponse struct {
	models.TimeUpdate
	Fresh       bool   `json:"fresh"`
	IsLeader    bool   `json:"isLeader"`
	LeaderID    string `json:"leaderId"`
	State       string `json:"state"`
	SyncEnabled bool   `json:"syncEnabled"`
	MonotonicMS int64  `json:"monotonicMs"`
}

func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	u := s.status.Latest()
	s.writeJSON(w, http.StatusOK, timeResponse{
		TimeUpdate:  u,
		Fresh:       timeutil.WithinLastAt(u.Instant, freshWindow, s.now()),
		IsLeader:    s.status.IsLeader(),
		LeaderID:    s.status.LeaderID(),
		State:       s.status.State().String(),
		SyncEnabled: s.status.SyncEnabled(),
		MonotonicMS: s.status.MonotonicTimestamp().Milliseconds(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	since, err := s.parseSince(r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.journal.ListEventsSince(r.Context(), since, limit)
	if err != nil {
		s.logger.ErrorW("list events", "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to list events"))
		return
	}
	if events == nil {
		events = []models.SyncEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

type summaryRow struct {
	Kind  models.EventKind `json:"kind"`
	Count int64            `json:"count"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	since, err := s.parseSince(r.URL.Query().Get("since"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	counts, err := s.journal.CountEventsByKindSince(r.Context(), since)
	if err != nil {
		s.logger.ErrorW("count events", "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to count events"))
		return
	}
	rows := make([]summaryRow, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, summaryRow{Kind: c.Kind, Count: c.Count})
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// parseSince accepts an RFC 3339 timestamp or one of "today", "yesterday"
// and "week" (since Monday). The default is the last 24 hours.
func (s *Server) parseSince(value string) (time.Time, error) {
	now := s.now()
	switch value {
	case "":
		return now.Add(-24 * time.Hour), nil
	case "today":
		return timeutil.StartOfDay(now, s.location), nil
	case "yesterday":
		return timeutil.StartOfDay(timeutil.AddDays(now, -1, s.location), s.location), nil
	case "week":
		return timeutil.StartOfWeek(now, time.Monday, s.location), nil
	}
	t, err := timeutil.ParseRFC3339(value)
	if err != nil {
		return time.Time{}, errors.New("since must be RFC 3339, today, yesterday or week")
	}
	return t, nil
}

func parseLimit(value string) (int, error) {
	if value == "" {
		return defaultEventLimit, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxEventLimit {
		n = maxEventLimit
	}
	return n, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WarnW("write response", "error", err)
	}
}
