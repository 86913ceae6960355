package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/ruleflow/internal/presentation/graph"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/observability"
	"github.com/aretw0/ruleflow/pkg/ports"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// ResourcePrefix is the URI prefix of the rule graph resources.
const ResourcePrefix = "ruleflow://rules/"

// ListRulesResult is the structured output of list_rules.
type ListRulesResult struct {
	Rules []string `json:"rules" jsonschema_description:"Ids of the loaded rules"`
}

// ExecuteResult is the structured output of execute_rule.
type ExecuteResult struct {
	RunID   string         `json:"run_id" jsonschema_description:"Id of the recorded run"`
	Context map[string]any `json:"context" jsonschema_description:"Final execution context"`
}

type executeArgs struct {
	ID      string `json:"id"`
	Context string `json:"context"`
}

// Server exposes a RuleSource as an MCP server.
type Server struct {
	rules     ports.RuleSource
	store     ports.RunStore
	logger    *slog.Logger
	recorder  *observability.Recorder
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStore records every execution into store.
func WithStore(store ports.RunStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(rules ports.RuleSource, version string, opts ...Option) *Server {
	s := &Server{
		rules:  rules,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = observability.NewRecorder(s.store, observability.WithRecorderLogger(s.logger))
	s.mcpServer = server.NewMCPServer("ruleflow-mcp", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, true),
	)
	s.registerTools()
	s.Refresh()
	return s
}

// MCPServer returns the underlying server, for embedding in other transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// SSEHandler serves the MCP session endpoints /sse and /message. baseURL is
// the externally visible address announced to clients.
func (s *Server) SSEHandler(baseURL string) http.Handler {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	return mux
}

// ServeSSE listens on addr until ctx is done, then shuts down with a 5s
// grace period.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.SSEHandler(baseURL),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_rules
	s.mcpServer.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List the ids of the rules that can be executed."),
		mcp.WithOutputSchema[ListRulesResult](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (ListRulesResult, error) {
		return ListRulesResult{Rules: s.rules.IDs()}, nil
	}))

	// TOOL: execute_rule
	s.mcpServer.AddTool(mcp.NewTool("execute_rule",
		mcp.WithDescription("Execute a rule once and return the final context."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Rule id")),
		mcp.WithString("context", mcp.Description("JSON object used as the initial context (optional)")),
		mcp.WithOutputSchema[ExecuteResult](),
	), mcp.NewTypedToolHandler(s.handleExecute))
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest, args executeArgs) (*mcp.CallToolResult, error) {
	p, err := s.rules.Get(args.ID)
	if errors.Is(err, domain.ErrRuleNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Rule '%s' not found", args.ID)), nil
	}
	if err != nil {
		return nil, err
	}

	data := domain.Context{}
	if args.Context != "" {
		if err := json.Unmarshal([]byte(args.Context), &data); err != nil {
			return mcp.NewToolResultErrorFromErr("context must be a JSON object", err), nil
		}
	}

	runID := uuid.NewString()
	result, _, err := s.recorder.Execute(observability.WithRunID(ctx, runID), p, data)
	if err != nil {
		s.logger.Error("MCP Execute: Rule failed", "rule", args.ID, "run", runID, "err", err)
		return mcp.NewToolResultErrorFromErr(fmt.Sprintf("Rule '%s' execute error (run %s)", args.ID, runID), err), nil
	}

	out := ExecuteResult{RunID: runID, Context: result}
	text, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultStructured(out, string(text)), nil
}

// Refresh replaces the rule resources with the rules currently in the
// source. Call it after the source reloads.
func (s *Server) Refresh() {
	ids := s.rules.IDs()
	resources := make([]server.ServerResource, 0, len(ids))
	for _, id := range ids {
		uri := ResourcePrefix + id
		resources = append(resources, server.ServerResource{
			Resource: mcp.NewResource(uri, id,
				mcp.WithResourceDescription(fmt.Sprintf("Mermaid graph of rule %q", id)),
				mcp.WithMIMEType("text/vnd.mermaid"),
			),
			Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				p, err := s.rules.Get(id)
				if err != nil {
					return nil, err
				}
				return []mcp.ResourceContents{
					mcp.TextResourceContents{
						URI:      uri,
						MIMEType: "text/vnd.mermaid",
						Text:     graph.GenerateMermaid(p, nil),
					},
				}, nil
			},
		})
	}
	s.mcpServer.SetResources(resources...)
}
