package mcp

import (
	"context"
	"errors"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/ratelimit"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

// Server wraps the MCP SDK server and exposes the simulation service as tools.
type Server struct {
	server       *sdk.Server
	svc          *simulate.Service
	store        store.ScenarioStore
	metrics      *metrics.Metrics
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "foresight")
	Version string // Server version

	Service *simulate.Service
	Store   store.ScenarioStore // optional; foresight_scenarios reports an error without it
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// AuditDir is where audit.jsonl is written. Empty disables auditing.
	AuditDir string
}

// NewServer creates a new MCP server with foresight tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Service == nil {
		return nil, errors.New("mcp server requires a simulation service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		svc:          cfg.Service,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the audit log. The store and service belong to the caller.
func (s *Server) Close() error {
	err := s.auditLogger.Close()
	s.auditLogger = nil
	return err
}

// checkLimit enforces the per-tool rate limit and counts rejections.
func (s *Server) checkLimit(tool string) error {
	if err := ratelimit.CheckLimit(s.toolLimiters, tool); err != nil {
		s.metrics.ObserveRateLimited("mcp")
		return err
	}
	return nil
}
