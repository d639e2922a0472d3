// Package http exposes a catalog of graphs over a JSON API built on chi.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/internal/logging"
	presentation "github.com/aretw0/stategraph/internal/presentation/graph"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
	"github.com/aretw0/stategraph/pkg/session"
)

// Server serves the graphs of a catalog.
type Server struct {
	catalog  ports.Catalog
	sessions *session.Manager
	streams  *StreamManager
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions enables session_id on run requests.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithStreams enables GET /events. Feed the manager with its Hooks.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a catalog.
func NewHandler(catalog ports.Catalog, opts ...Option) http.Handler {
	s := &Server{catalog: catalog, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Route("/graphs", func(r chi.Router) {
		r.Get("/", s.ListGraphs)
		r.Get("/{name}", s.DescribeGraph)
		r.Get("/{name}/mermaid", s.GetMermaid)
		r.Post("/{name}/runs", s.RunGraph)
	})
	if s.streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunRequest is the body of POST /graphs/{name}/runs.
type RunRequest struct {
	Initial   map[string]any `json:"initial"`
	SessionID string         `json:"session_id,omitempty"`
}

// RunResponse is the outcome of a run.
type RunResponse struct {
	RunID       string                 `json:"run_id"`
	Status      domain.ExecutionStatus `json:"status"`
	State       domain.State           `json:"state"`
	Path        []string               `json:"path"`
	Steps       int                    `json:"steps"`
	Transitions []domain.StatusChange  `json:"transitions"`
	Error       string                 `json:"error,omitempty"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "stategraph-http",
		"version": strings.TrimSpace(stategraph.Version),
		"graphs":  len(s.catalog.Names()),
	}, s.logger)
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Names(), s.logger)
}

// DescribeGraph handles GET /graphs/{name}.
func (s *Server) DescribeGraph(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.runner(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, runner.Graph().Describe(), s.logger)
}

// GetMermaid handles GET /graphs/{name}/mermaid.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.runner(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, presentation.GenerateMermaid(runner.Graph(), nil))
}

// RunGraph handles POST /graphs/{name}/runs. Failed runs answer 422 with the
// result, invalid input answers 400.
func (s *Server) RunGraph(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.runner(w, r)
	if !ok {
		return
	}

	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("RunGraph: invalid request body", "error", err)
		return
	}
	initial, err := domain.DecodeValues(runner.Graph().Schema(), body.Initial)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid initial state: %v", err), http.StatusBadRequest)
		return
	}

	var res *domain.Result
	switch {
	case body.SessionID == "":
		res, err = runner.Run(r.Context(), initial)
	case s.sessions == nil:
		http.Error(w, "Sessions are not enabled", http.StatusBadRequest)
		return
	default:
		res, err = s.sessions.Continue(r.Context(), body.SessionID, runner, initial)
	}

	if res == nil {
		http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
		s.logger.Error("RunGraph failed", "graph", runner.Graph().Name(), "error", err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
		if errors.Is(err, domain.ErrBuild) {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, newRunResponse(res), s.logger)
}

func newRunResponse(res *domain.Result) RunResponse {
	out := RunResponse{
		RunID:       res.RunID,
		Status:      res.Status,
		State:       res.State,
		Path:        res.Path,
		Steps:       res.Steps,
		Transitions: res.Transitions,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (s *Server) runner(w http.ResponseWriter, r *http.Request) (ports.Runner, bool) {
	name := chi.URLParam(r, "name")
	runner, ok := s.catalog.Runner(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Graph %q not found", name), http.StatusNotFound)
		return nil, false
	}
	return runner, true
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
