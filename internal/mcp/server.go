// Package mcp serves the task tools over the Model Context Protocol, on stdio
// or on the streamable HTTP transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/telemetry"
	"github.com/tasq/tasqmcp/internal/tools"
)

const (
	serverName = "tasqmcp"

	// EndpointPath is where the streamable HTTP transport accepts requests.
	EndpointPath = "/mcp"

	instructions = "Task management for the current project via the tasq CLI. Tools auto-detect the nearest directory containing .tasq unless project_dir is given."
)

var readOnlyTools = map[string]bool{
	tools.ToolListTasks:        true,
	tools.ToolGetNextTask:      true,
	tools.ToolGetProjectStatus: true,
	tools.ToolOpenTaskUI:       true,
}

type ctxKey string

const ctxKeyCall ctxKey = "tool_call"

// callInfo carries per-call state between the observing middleware and the
// tool handler.
type callInfo struct {
	traceID string
	err     error
	warning bool
}

// TraceID returns the trace ID of the tool call running in ctx, if any.
func TraceID(ctx context.Context) string {
	if info, ok := ctx.Value(ctxKeyCall).(*callInfo); ok {
		return info.traceID
	}
	return ""
}

type Server struct {
	mcpServer *server.MCPServer
	tools     *tools.Service
	addr      string
	logger    *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	httpSrv *http.Server
	closed  bool
}

// NewServer registers every tool the service allows. Tools filtered out by
// the service policy are never registered, so clients cannot call them.
func NewServer(addr string, svc *tools.Service, version string, logger *slog.Logger) (*Server, error) {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		tools:  svc,
		addr:   addr,
		logger: logger,
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithToolHandlerMiddleware(s.observe),
	)

	for _, def := range svc.Definitions() {
		name, _ := def["name"].(string)
		desc, _ := def["description"].(string)
		schema, err := json.Marshal(def["inputSchema"])
		if err != nil {
			return nil, fmt.Errorf("tool %s: encode input schema: %w", name, err)
		}
		tool := mcp.NewToolWithRawSchema(name, desc, schema)
		tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(readOnlyTools[name])
		tool.Annotations.OpenWorldHint = mcp.ToBoolPtr(false)
		s.mcpServer.AddTool(tool, s.handleTool)
	}
	return s, nil
}

// ServeStdio serves one session on r/w until r is exhausted or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, r, w)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HTTPHandler returns the streamable HTTP transport. Sessions are stateless
// since every tool call is independent.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
}

// ListenAndServe serves the streamable HTTP transport at EndpointPath on addr.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, s.HTTPHandler())
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.ln = ln
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("mcp server starting", "transport", "streamable-http", "addr", ln.Addr().String(), "path", EndpointPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address once ListenAndServe is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, _ := ctx.Value(ctxKeyCall).(*callInfo)

	var raw json.RawMessage
	if req.Params.Arguments != nil {
		data, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		raw = data
	}

	result, err := s.tools.Call(ctx, req.Params.Name, raw)
	if err != nil {
		if info != nil {
			info.err = err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if info != nil {
		info.warning = result.Warning != ""
	}
	return mcp.NewToolResultText(result.String()), nil
}

// observe assigns a trace ID to each tool call and records its outcome in
// metrics and logs.
func (s *Server) observe(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info := &callInfo{traceID: uuid.New().String()}
		ctx = context.WithValue(ctx, ctxKeyCall, info)
		name := req.Params.Name

		start := time.Now()
		res, err := next(ctx, req)
		duration := time.Since(start)
		telemetry.ObserveToolDuration(name, duration)

		failure := err
		if failure == nil {
			failure = info.err
		}
		if failure != nil {
			mapped := core.MapError(failure, 500)
			telemetry.IncToolCall(name, mapped.Code)
			s.logger.Error("tool call failed",
				"trace_id", info.traceID,
				"tool_name", name,
				"code", mapped.Code,
				"duration_ms", duration.Milliseconds(),
				"err", failure,
			)
			return res, err
		}

		telemetry.IncToolCall(name, "ok")
		s.logger.Info("tool call completed",
			"trace_id", info.traceID,
			"tool_name", name,
			"duration_ms", duration.Milliseconds(),
			"warning", info.warning,
		)
		return res, nil
	}
}
