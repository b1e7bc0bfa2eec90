package main

import (
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/foresight/internal/httpapi"
	"github.com/nvandessel/foresight/internal/mcp"
	"github.com/nvandessel/foresight/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the simulation API over HTTP until interrupted.

Endpoints:
  GET    /api/health
  GET    /api/field
  POST   /api/simulate
  POST   /api/step
  POST   /api/battle
  GET    /api/futures
  POST   /api/futures
  PATCH  /api/futures/:id
  DELETE /api/futures/:id
  GET    /metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.Config.Server.ListenAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
			defer stop()

			srv := httpapi.NewServer(httpapi.Options{
				Service:   a.Service,
				Store:     a.Store,
				Metrics:   a.Metrics,
				Logger:    a.Logger.With("component", "http"),
				Version:   version,
				RateLimit: a.Config.Server.RateLimit,
				Burst:     a.Config.Server.Burst,
			})
			if err := srv.Run(ctx, addr); err != nil {
				return fmt.Errorf("http api: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config, e.g. :10001)")
	return cmd
}

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as an MCP server over stdio",
		Long: `Expose foresight to AI agents through the Model Context Protocol.

Tools: foresight_simulate, foresight_step, foresight_battle, foresight_field,
foresight_scenarios. Tool calls are audited to .foresight/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
			defer stop()

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "foresight",
				Version:  version,
				Service:  a.Service,
				Store:    a.Store,
				Metrics:  a.Metrics,
				Logger:   a.Logger.With("component", "mcp"),
				AuditDir: store.LocalDir(root),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(ctx)
		},
	}
}
