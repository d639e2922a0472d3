// Package mcp exposes a catalog of graphs as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/internal/logging"
	presentation "github.com/aretw0/stategraph/internal/presentation/graph"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
	"github.com/aretw0/stategraph/pkg/session"
)

// GraphList is the output of list_graphs.
type GraphList struct {
	Graphs []string `json:"graphs" jsonschema_description:"Names of the runnable graphs"`
}

// RunOutput is the output of run_graph. A failed run is reported through
// Status and Error rather than as a tool error.
type RunOutput struct {
	RunID  string                 `json:"run_id" jsonschema_description:"Identifier of the run"`
	Status domain.ExecutionStatus `json:"status" jsonschema_description:"done or failed"`
	State  map[string]any         `json:"state" jsonschema_description:"Final state values"`
	Path   []string               `json:"path" jsonschema_description:"Visited nodes in order"`
	Steps  int                    `json:"steps"`
	Error  string                 `json:"error,omitempty"`
}

type describeArgs struct {
	Name string `json:"name"`
}

type runArgs struct {
	Name      string         `json:"name"`
	Initial   map[string]any `json:"initial"`
	SessionID string         `json:"session_id"`
}

// Option configures the Server.
type Option func(*Server)

// WithSessions enables session_id on run_graph.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server exposes a ports.Catalog as an MCP server.
type Server struct {
	catalog   ports.Catalog
	sessions  *session.Manager
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(catalog ports.Catalog, opts ...Option) *Server {
	s := &Server{
		catalog:   catalog,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("stategraph-mcp", strings.TrimSpace(stategraph.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the graphs that can be run."),
		mcp.WithOutputSchema[GraphList](),
	), mcp.NewStructuredToolHandler(s.handleListGraphs))

	s.mcpServer.AddTool(mcp.NewTool("describe_graph",
		mcp.WithDescription("Describe the nodes, edges and state fields of a graph."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Graph name")),
		mcp.WithOutputSchema[domain.GraphInfo](),
	), mcp.NewStructuredToolHandler(s.handleDescribeGraph))

	s.mcpServer.AddTool(mcp.NewTool("run_graph",
		mcp.WithDescription("Run a graph to completion from the given initial state."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Graph name")),
		mcp.WithObject("initial", mcp.Description("Initial values of declared state fields")),
		mcp.WithString("session_id", mcp.Description("Continue from the state stored under this session")),
		mcp.WithOutputSchema[RunOutput](),
	), mcp.NewStructuredToolHandler(s.handleRunGraph))
}

func (s *Server) handleListGraphs(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (GraphList, error) {
	return GraphList{Graphs: s.catalog.Names()}, nil
}

func (s *Server) handleDescribeGraph(ctx context.Context, request mcp.CallToolRequest, args describeArgs) (domain.GraphInfo, error) {
	runner, err := s.runner(args.Name)
	if err != nil {
		return domain.GraphInfo{}, err
	}
	return runner.Graph().Describe(), nil
}

func (s *Server) handleRunGraph(ctx context.Context, request mcp.CallToolRequest, args runArgs) (RunOutput, error) {
	runner, err := s.runner(args.Name)
	if err != nil {
		return RunOutput{}, err
	}
	initial, err := domain.DecodeValues(runner.Graph().Schema(), args.Initial)
	if err != nil {
		return RunOutput{}, fmt.Errorf("invalid initial state: %w", err)
	}

	var res *domain.Result
	switch {
	case args.SessionID == "":
		res, err = runner.Run(ctx, initial)
	case s.sessions == nil:
		return RunOutput{}, fmt.Errorf("sessions are not enabled")
	default:
		res, err = s.sessions.Continue(ctx, args.SessionID, runner, initial)
	}
	if res == nil {
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("MCP run_graph: run failed", "graph", args.Name, "run_id", res.RunID, "error", err)
	}

	out := RunOutput{
		RunID:  res.RunID,
		Status: res.Status,
		State:  res.State.Values(),
		Path:   res.Path,
		Steps:  res.Steps,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out, nil
}

func (s *Server) runner(name string) (ports.Runner, error) {
	runner, ok := s.catalog.Runner(name)
	if !ok {
		return nil, fmt.Errorf("graph %q not found", name)
	}
	return runner, nil
}

// registerResources exposes stategraph://graphs/<name> (JSON) and
// stategraph://graphs/<name>/mermaid for every graph.
func (s *Server) registerResources() {
	for _, name := range s.catalog.Names() {
		runner, ok := s.catalog.Runner(name)
		if !ok {
			continue
		}
		g := runner.Graph()
		uri := "stategraph://graphs/" + name

		s.mcpServer.AddResource(mcp.NewResource(uri, "Graph "+name,
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			b, err := json.Marshal(g.Describe())
			if err != nil {
				return nil, fmt.Errorf("failed to describe graph: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(b)},
			}, nil
		})

		s.mcpServer.AddResource(mcp.NewResource(uri+"/mermaid", "Graph "+name+" (Mermaid)",
			mcp.WithMIMEType("text/plain"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri + "/mermaid", MIMEType: "text/plain", Text: presentation.GenerateMermaid(g, nil)},
			}, nil
		})
	}
}
