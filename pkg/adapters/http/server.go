package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/observability"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RunIDHeader carries the id of the execution in every rule response.
const RunIDHeader = "X-Run-ID"

// ContextFactory builds the execution context of a request. body is the
// decoded JSON object of the request, or nil when it was empty.
type ContextFactory func(r *http.Request, body map[string]any) (domain.Context, error)

// Server executes the rules of a RuleSource per request.
type Server struct {
	Rules ports.RuleSource

	logger   *slog.Logger
	debug    *slog.Logger
	factory  ContextFactory
	store    ports.RunStore
	recorder *observability.Recorder
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDebug attaches a debug subscriber logging to logger for the duration
// of every execution.
func WithDebug(logger *slog.Logger) Option {
	return func(s *Server) {
		s.debug = logger
	}
}

// WithContextFactory replaces the default request-to-context mapping.
func WithContextFactory(fn ContextFactory) Option {
	return func(s *Server) {
		s.factory = fn
	}
}

// WithStore records every execution into store and serves the records
// under /runs.
func WithStore(store ports.RunStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// NewHandler creates the HTTP handler serving rules.
func NewHandler(rules ports.RuleSource, opts ...Option) http.Handler {
	s := &Server{
		Rules:   rules,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		factory: DefaultContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = observability.NewRecorder(s.store, observability.WithRecorderLogger(s.logger))

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/rules", s.ListRules)
	r.Post("/rules/{id}", s.ExecuteRule)
	r.Get("/runs", s.ListRuns)
	r.Get("/runs/{runID}", s.GetRun)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RunIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RunIDHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>ruleflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// DefaultContext puts the request under "request" and the body under "data".
func DefaultContext(r *http.Request, body map[string]any) (domain.Context, error) {
	query := make(map[string]any, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		query[key] = strings.Join(values, ",")
	}
	headers := make(map[string]any, len(r.Header))
	for key, values := range r.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ",")
	}

	var data any
	if body != nil {
		data = body
	}
	return domain.Context{
		"request": map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   query,
			"headers": headers,
		},
		"data": data,
	}, nil
}

// ExecuteRule handles the POST /rules/{id} request.
func (s *Server) ExecuteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.Rules.Get(id)
	if errors.Is(err, domain.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Rule '%s' not found", id), nil, "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Rule '%s' unavailable", id), err, "")
		s.logger.Error("Rule lookup failed", "rule", id, "err", err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, "")
		s.logger.Warn("ExecuteRule: Invalid request body", "rule", id, "err", err)
		return
	}
	data, err := s.factory(r, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err, "")
		return
	}

	runID := uuid.NewString()
	w.Header().Set(RunIDHeader, runID)

	result, err := s.execute(r, p, runID, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Rule '%s' execute error", id), err, runID)
		s.logger.Error("Rule execution failed", "rule", id, "run", runID, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) execute(r *http.Request, p *pipeline.Pipeline, runID string, data domain.Context) (domain.Context, error) {
	if s.debug != nil {
		d := observability.Attach(p, s.debug, "http", observability.ForRun(runID))
		defer d.Detach()
	}
	result, _, err := s.recorder.Execute(observability.WithRunID(r.Context(), runID), p, data)
	return result, err
}

// decodeBody reads an optional JSON object. An empty body yields nil.
func decodeBody(r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return body, nil
}

// ListRules handles the GET /rules request.
func (s *Server) ListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Rules.IDs(), s.logger)
}

// ListRuns handles the GET /runs request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "Run recording is disabled", nil, "")
		return
	}
	ids, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "List runs error", err, "")
		s.logger.Error("List runs failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids, s.logger)
}

// GetRun handles the GET /runs/{runID} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "Run recording is disabled", nil, "")
		return
	}
	runID := chi.URLParam(r, "runID")
	run, err := s.store.Load(r.Context(), runID)
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Run '%s' not found", runID), nil, runID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Load run error", err, runID)
		s.logger.Error("Load run failed", "run", runID, "err", err)
		return
	}
	writeJSON(w, http.StatusOK, run, s.logger)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ruleflow-http",
		"api_version": apiVersion,
	}, s.logger)
}

type errorBody struct {
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, cause error, runID string) {
	body := errorBody{Error: msg, RunID: runID}
	if cause != nil {
		body.Cause = cause.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
