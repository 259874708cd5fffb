package main

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tasq/tasqmcp/internal/config"
	"github.com/tasq/tasqmcp/internal/core"
	httpsvr "github.com/tasq/tasqmcp/internal/http"
	"github.com/tasq/tasqmcp/internal/logging"
	mcpsvr "github.com/tasq/tasqmcp/internal/mcp"
	"github.com/tasq/tasqmcp/internal/project"
	"github.com/tasq/tasqmcp/internal/tasq"
	"github.com/tasq/tasqmcp/internal/tools"
)

const shutdownTimeout = 15 * time.Second

// errSessionEnded stops the group when the stdio client hangs up.
var errSessionEnded = errors.New("stdio session ended")

func newServeCmd(opts *rootOptions) *cobra.Command {
	var mcpListen, httpListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task tools over MCP (stdio by default) and optionally HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mcp-listen") {
				cfg.MCP.Listen = mcpListen
			}
			if cmd.Flags().Changed("http-listen") {
				cfg.HTTP.Listen = httpListen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&mcpListen, "mcp-listen", "", "serve MCP over streamable HTTP on this address instead of stdio")
	cmd.Flags().StringVar(&httpListen, "http-listen", "", "also serve the HTTP API on this address")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) error {
	logger, err := logging.New(errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	runner := tasq.NewRunner(tasq.Config{
		Program:    cfg.Tasq.Program,
		SearchPath: cfg.Tasq.SearchPath,
		Logger:     logger,
	})
	svc := tools.NewService(project.NewResolver(cfg.Project.Marker), runner, logger).
		WithPolicy(core.NewToolPolicy(cfg.Tools.Allow))

	logger.Info("effective config",
		"tasq_program", cfg.Tasq.Program,
		"project_marker", cfg.Project.Marker,
		"mcp_listen", cfg.MCP.Listen,
		"http_listen", cfg.HTTP.Listen,
		"tools_allow", cfg.Tools.Allow,
	)

	g, gctx := errgroup.WithContext(ctx)

	mcpServer, err := mcpsvr.NewServer(cfg.MCP.Listen, svc, version, logger)
	if err != nil {
		return err
	}
	if cfg.MCP.Listen != "" {
		g.Go(mcpServer.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(mcpServer.Shutdown)
		})
	} else {
		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- mcpServer.ServeStdio(gctx, in, out) }()
			select {
			case err := <-done:
				if gctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				return errSessionEnded
			case <-gctx.Done():
				return nil
			}
		})
	}

	if cfg.HTTP.Listen != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer := httpsvr.NewServer(cfg.HTTP.Listen, svc, logger, httpsvr.BuildInfo{
			Version:   version,
			GitCommit: gitCommit,
			BuildTime: buildTime,
		})
		g.Go(httpServer.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(httpServer.Shutdown)
		})
	}

	err = g.Wait()
	if errors.Is(err, errSessionEnded) {
		err = nil
	}
	if err != nil {
		logger.Error("server error", "err", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func shutdown(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return fn(ctx)
}
