// Package httpapi exposes the simulation service and the scenario catalog
// over HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/ratelimit"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "Foresight"

	// limiterIdle is how long a client bucket may sit unused before pruning.
	limiterIdle = 10 * time.Minute

	shutdownTimeout = 10 * time.Second
)

// Options wires a Server.
type Options struct {
	Service *simulate.Service
	Store   store.ScenarioStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Version string

	// RateLimit and Burst configure the per-client limiter. A non-positive
	// Burst disables rate limiting.
	RateLimit float64
	Burst     int
}

// Server is the HTTP API.
type Server struct {
	svc     *simulate.Service
	store   store.ScenarioStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	version string
	limiter *ratelimit.Limiter
	router  *gin.Engine
}

// NewServer builds the router and registers all routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		svc:     opts.Service,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger,
		version: opts.Version,
	}
	if opts.Burst > 0 {
		s.limiter = ratelimit.NewLimiter(opts.RateLimit, opts.Burst)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.observe(), cors())
	s.registerRoutes(router)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	limited := api.Group("", s.rateLimit())
	limited.GET("/field", s.handleField)
	limited.POST("/simulate", s.handleSimulate)
	limited.POST("/step", s.handleStep)
	limited.POST("/battle", s.handleBattle)

	futures := limited.Group("/futures")
	futures.GET("", s.handleListFutures)
	futures.POST("", s.handleCreateFuture)
	futures.PATCH("/:id", s.handleToggleFuture)
	futures.DELETE("/:id", s.handleDeleteFuture)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		go s.pruneLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http api stopped")
	return nil
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterIdle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(limiterIdle); n > 0 {
				s.logger.Debug("pruned idle rate limit buckets", "count", n)
			}
		}
	}
}
