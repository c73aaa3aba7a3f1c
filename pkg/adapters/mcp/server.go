// Package mcp exposes a scene to MCP clients: tools to inspect and evaluate
// nodes, and the scene graph as a resource.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SceneURI is the resource holding the scene graph.
const SceneURI = "theatre://scene"

// Scene is the part of *theatre.Scene the MCP server drives.
type Scene interface {
	Nodes() []domain.NodeInfo
	Evaluate(ctx context.Context, id string) (*domain.Output, error)
	EvaluateTrace(ctx context.Context, id string) ([]theatre.TraceStep, error)
	MarkDirty(id string) error
	Spec() *domain.SceneSpec
}

// NodesResponse is the result of list_nodes.
type NodesResponse struct {
	Nodes []domain.NodeInfo `json:"nodes" jsonschema_description:"Every node of the scene with its evaluation status"`
}

// EvaluateResponse is the result of evaluate_node.
type EvaluateResponse struct {
	ID     string         `json:"id" jsonschema_description:"The evaluated node or delta"`
	Output *domain.Output `json:"output" jsonschema_description:"Either the resulting state or the failure"`
}

// TraceResponse is the result of get_trace.
type TraceResponse struct {
	Steps []theatre.TraceStep `json:"steps" jsonschema_description:"Outputs from the root down to the node; evaluation stops at the first failure"`
}

// NodeArgs names a node (or a delta as <node>#<delta>).
type NodeArgs struct {
	NodeID string `json:"node_id"`
}

var _ Scene = (*theatre.Scene)(nil)

// Server wraps a scene and exposes it as an MCP server.
type Server struct {
	scene     Scene
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(scene Scene, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		scene:     scene,
		mcpServer: server.NewMCPServer("theatre-mcp", strings.TrimSpace(theatre.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the nodes of the scene with their status (fresh, dirty, invalid, custom)."),
		mcp.WithOutputSchema[NodesResponse](),
	), mcp.NewStructuredToolHandler(s.handleListNodes))

	s.mcpServer.AddTool(mcp.NewTool("evaluate_node",
		mcp.WithDescription("Evaluate a node, or a delta given as <node>#<delta>, recomputing stale ancestors."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node or delta id")),
		mcp.WithOutputSchema[EvaluateResponse](),
	), mcp.NewStructuredToolHandler(s.handleEvaluate))

	s.mcpServer.AddTool(mcp.NewTool("get_trace",
		mcp.WithDescription("Evaluate the chain of nodes from the nearest root down to a node."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node or delta id")),
		mcp.WithOutputSchema[TraceResponse](),
	), mcp.NewStructuredToolHandler(s.handleTrace))

	s.mcpServer.AddTool(mcp.NewTool("mark_dirty",
		mcp.WithDescription("Invalidate a node and everything downstream of it."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node or delta id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("node_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.scene.MarkDirty(id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mark dirty failed: %v", err)), nil
		}
		return mcp.NewToolResultText("ok"), nil
	})
}

func (s *Server) handleListNodes(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (NodesResponse, error) {
	return NodesResponse{Nodes: s.scene.Nodes()}, nil
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest, args NodeArgs) (EvaluateResponse, error) {
	out, err := s.scene.Evaluate(ctx, args.NodeID)
	if err != nil {
		return EvaluateResponse{}, fmt.Errorf("evaluate failed: %w", err)
	}
	if out.Failed() {
		s.logger.Warn("MCP evaluate: node failed", "node", args.NodeID, "kind", out.Failure.Kind)
	}
	return EvaluateResponse{ID: args.NodeID, Output: out}, nil
}

func (s *Server) handleTrace(ctx context.Context, request mcp.CallToolRequest, args NodeArgs) (TraceResponse, error) {
	steps, err := s.scene.EvaluateTrace(ctx, args.NodeID)
	if err != nil {
		return TraceResponse{}, fmt.Errorf("trace failed: %w", err)
	}
	return TraceResponse{Steps: steps}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SceneURI, "Current Scene",
		mcp.WithResourceDescription("Nodes, edges, deltas and custom values of the scene"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.scene.Spec())
		if err != nil {
			return nil, fmt.Errorf("failed to encode scene: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SceneURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
