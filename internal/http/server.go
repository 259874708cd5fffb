package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/telemetry"
	"github.com/tasq/tasqmcp/internal/tools"
)

const maxRequestBodyBytes = 1 << 20

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
}

type Server struct {
	tools  *tools.Service
	srv    *http.Server
	logger *slog.Logger
	build  BuildInfo

	mu sync.Mutex
	ln net.Listener
}

type toolResponse struct {
	OK     bool        `json:"ok"`
	Result *toolResult `json:"result,omitempty"`
	Error  *toolError  `json:"error,omitempty"`
}

type toolResult struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

type toolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer builds the router. Callers serving MCP on stdio must put gin in
// release mode first so route debug output stays off stdout.
func NewServer(addr string, svc *tools.Service, logger *slog.Logger, build BuildInfo) *Server {
	s := &Server{
		tools:  svc,
		logger: logger,
		build:  build,
	}

	router := gin.New()
	router.Use(gin.Recovery(), withLogging(logger))

	router.GET("/healthz", s.handleHealthz)
	router.GET("/version", s.handleVersion)
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/tools", s.handleListTools)
		api.POST("/tools/:name", s.handleCallTool)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("http server starting", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    s.build.Version,
		"git_commit": s.build.GitCommit,
		"build_time": s.build.BuildTime,
	})
}

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.tools.Definitions()})
}

func (s *Server) handleCallTool(c *gin.Context) {
	name := c.Param("name")

	raw, err := readBody(c)
	if err != nil {
		writeErr(c, core.MapError(errors.New("invalid json: "+err.Error()), http.StatusBadRequest))
		return
	}

	start := time.Now()
	result, err := s.tools.Call(c.Request.Context(), name, raw)
	duration := time.Since(start)

	if err != nil {
		mapped := core.MapError(err, http.StatusInternalServerError)
		if errors.Is(err, tools.ErrUnknownTool) || errors.Is(err, core.ErrToolNotAllowed) {
			telemetry.IncToolCall("_rejected", mapped.Code)
		} else {
			telemetry.ObserveToolDuration(name, duration)
			telemetry.IncToolCall(name, mapped.Code)
		}
		s.logger.Error("tool call failed",
			"trace_id", c.GetString(traceIDKey),
			"tool_name", name,
			"code", mapped.Code,
			"duration_ms", duration.Milliseconds(),
			"err", err,
		)
		writeErr(c, mapped)
		return
	}

	telemetry.ObserveToolDuration(name, duration)
	telemetry.IncToolCall(name, "ok")
	c.JSON(http.StatusOK, toolResponse{
		OK:     true,
		Result: &toolResult{Text: result.Text, Warning: result.Warning},
	})
}

func readBody(c *gin.Context) (json.RawMessage, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) || !strings.HasPrefix(trimmed, "{") {
		return nil, errors.New("request body must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

func writeErr(c *gin.Context, info core.ErrorInfo) {
	c.JSON(info.HTTPStatus, toolResponse{
		OK:    false,
		Error: &toolError{Code: info.Code, Message: info.Message},
	})
}

const traceIDKey = "trace_id"

func withLogging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		traceID := c.GetHeader("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceIDKey, traceID)
		c.Header("X-Trace-Id", traceID)

		c.Next()

		logger.Info("http request",
			"trace_id", traceID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
