// Package api exposes the coordinator over JSON HTTP.
//
// Intake:
//
//	POST /submit                      plan and enqueue a transfer (rate limited)
//	GET  /tasks/{trackingId}/status   aggregate status
//	GET  /tasks/{trackingId}          per-fragment detail
//
// Dispatch (used by worker nodes):
//
//	POST /nodes/register
//	POST /nodes/heartbeat
//	GET  /tasks/next?nodeId=...
//	POST /tasks/report
//
// Operations:
//
//	GET  /nodes
//	GET  /health
//
// Every error response is {"error": "..."} with a status derived from the
// error: validation 400, unknown ids 404, ownership and duplicate conflicts
// 409, rate limiting 429, anything else 500.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/xvoid/internal/cluster"
	"github.com/dreamware/xvoid/internal/coordinator"
	"github.com/dreamware/xvoid/internal/routing"
	"github.com/dreamware/xvoid/internal/throughput"
)

// MinRecipientLength is the shortest accepted recipient address.
const MinRecipientLength = 32

const maxBodyBytes = 1 << 20

// Server holds the coordinator's collaborators and serves its HTTP API.
type Server struct {
	store   *coordinator.TaskStore
	planner *routing.Planner
	tps     *throughput.Monitor
	limiter *RateLimiter
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Server.
type Option func(*Server)

// WithThroughput supplies the throughput hint used when planning.
func WithThroughput(m *throughput.Monitor) Option {
	return func(s *Server) { s.tps = m }
}

// WithRateLimiter limits POST /submit per client address.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithIDGenerator replaces the tracking id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Server) { s.newID = f }
}

// NewServer returns a server for store and planner.
func NewServer(store *coordinator.TaskStore, planner *routing.Planner, opts ...Option) *Server {
	s := &Server{
		store:   store,
		planner: planner,
		logger:  slog.Default().With("component", "api"),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var submit http.Handler = http.HandlerFunc(s.handleSubmit)
	if s.limiter != nil {
		submit = s.limiter.Middleware(submit)
	}
	mux.Handle("POST /submit", submit)

	mux.HandleFunc("POST /nodes/register", s.handleRegister)
	mux.HandleFunc("POST /nodes/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("GET /tasks/next", s.handleFetchNext)
	mux.HandleFunc("POST /tasks/report", s.handleReport)
	mux.HandleFunc("GET /tasks/{trackingId}/status", s.handleTaskStatus)
	mux.HandleFunc("GET /tasks/{trackingId}", s.handleTask)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.logRequests(mux)
}

// handleSubmit validates a transfer request, plans it against the live
// roster and enqueues the fragments.
//
// Endpoint: POST /submit
//
// Request body:
//
//	{"recipient": "...", "amount": 1000000, "privacyLevel": "medium"}
//
// Response:
//   - 202 Accepted: {"trackingId": "...", "fragments": 4}
//   - 400 Bad Request: invalid fields or no live nodes
//   - 429 Too Many Requests: client rate limited
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req cluster.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}

	req.Recipient = strings.TrimSpace(req.Recipient)
	if len(req.Recipient) < MinRecipientLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("recipient must be at least %d characters", MinRecipientLength))
		return
	}
	if req.Amount <= 0 {
		s.fail(w, routing.ErrInvalidAmount)
		return
	}
	tier, err := cluster.ParseTier(strings.ToLower(req.PrivacyLevel))
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %q", routing.ErrUnknownTier, req.PrivacyLevel))
		return
	}

	roster := s.store.Roster()
	if len(roster) == 0 {
		s.fail(w, routing.ErrNoNodes)
		return
	}

	trackingID := s.newID()
	specs, err := s.planner.Plan(trackingID, req.Amount, tier, roster, s.tps.Hint(r.Context()))
	if err != nil {
		s.fail(w, err)
		return
	}

	if _, err := s.store.CreateTask(coordinator.NewTask{
		TrackingID: trackingID,
		Recipient:  req.Recipient,
		Amount:     req.Amount,
		Tier:       tier,
		Fragments:  specs,
	}); err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, cluster.SubmitResponse{TrackingID: trackingID, Fragments: len(specs)})
}

// handleRegister upserts a worker node.
//
// Endpoint: POST /nodes/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.store.RegisterNode(req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHeartbeat refreshes a node's liveness.
//
// Endpoint: POST /nodes/heartbeat
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req cluster.HeartbeatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "missing nodeId")
		return
	}
	rec, err := s.store.Heartbeat(req.NodeID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster.HeartbeatResponse{OK: true, Load: rec.Load})
}

func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Nodes())
}

// handleFetchNext dispatches the next fragment for a node. "No work" is a
// normal 200 with a null task.
//
// Endpoint: GET /tasks/next?nodeId=node-1
func (s *Server) handleFetchNext(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("nodeId")
	if nodeID == "" {
		writeError(w, http.StatusBadRequest, "missing nodeId query parameter")
		return
	}
	order, err := s.store.FetchNext(nodeID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cluster.FetchResponse{Task: order})
}

// handleReport applies a fragment outcome and returns the task aggregate.
//
// Endpoint: POST /tasks/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req cluster.ReportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.NodeID == "" || req.FragmentID == "" {
		writeError(w, http.StatusBadRequest, "missing nodeId or fragmentId")
		return
	}
	summary, err := s.store.ReportFragment(req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.TaskStatus(r.PathValue("trackingId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Task(r.PathValue("trackingId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	coordinator.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Stats: s.store.Stats()})
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// fail maps err to a status, logging server-side failures.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, routing.ErrInvalidAmount),
		errors.Is(err, routing.ErrUnknownTier),
		errors.Is(err, routing.ErrNoNodes),
		errors.Is(err, coordinator.ErrInvalidNode),
		errors.Is(err, coordinator.ErrInvalidTask),
		errors.Is(err, coordinator.ErrInvalidReport):
		return http.StatusBadRequest
	case errors.Is(err, coordinator.ErrNodeNotFound),
		errors.Is(err, coordinator.ErrTaskNotFound),
		errors.Is(err, coordinator.ErrFragmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrFragmentNotAssigned),
		errors.Is(err, coordinator.ErrDuplicateTask):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, cluster.ErrorResponse{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs each request at debug, and client or server errors at
// warn.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
