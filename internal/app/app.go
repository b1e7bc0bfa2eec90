// Package app wires the catalog, field fetcher, translator, metrics and
// decision log into a simulation service for one project root. The CLI,
// the HTTP API and the MCP server all start from an App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nvandessel/foresight/internal/config"
	"github.com/nvandessel/foresight/internal/field"
	"github.com/nvandessel/foresight/internal/logging"
	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
	"github.com/nvandessel/foresight/internal/translate"
)

// App holds the long-lived components of a foresight process.
type App struct {
	Root      string
	Config    *config.Config
	Store     *store.SQLiteStore
	Fetcher   *field.Fetcher
	Service   *simulate.Service
	Metrics   *metrics.Metrics
	Decisions *logging.DecisionLogger
	Logger    *slog.Logger
}

// Open prepares the .foresight directory under root, opens and seeds the
// scenario catalog, and builds the service. Close must be called when done.
func Open(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir, err := store.EnsureDir(root)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(root)
	if err != nil {
		return nil, fmt.Errorf("opening scenario catalog: %w", err)
	}
	if n, err := st.SeedDefaults(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("seeding default scenarios: %w", err)
	} else if n > 0 {
		logger.Debug("seeded default scenarios", "count", n)
	}

	a := &App{
		Root:      root,
		Config:    cfg,
		Store:     st,
		Metrics:   metrics.New(),
		Decisions: logging.NewDecisionLogger(dir, cfg.Logging.Level),
		Logger:    logger,
	}

	var src simulate.FieldSource
	if cfg.Field.Enabled {
		a.Fetcher = field.NewFetcher(cfg.Field, &http.Client{}, logger.With("component", "field"))
		src = a.Fetcher
	}

	a.Service = simulate.New(simulate.Options{
		Store:      st,
		Field:      src,
		MaxFeeds:   cfg.Field.MaxFeeds,
		Translator: translate.New(cfg.Translation, logger),
		Metrics:    a.Metrics,
		Decisions:  a.Decisions,
		Logger:     logger.With("component", "simulate"),
		Engine:     cfg.Engine,
	})
	return a, nil
}

// Close releases the catalog and the decision log.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.Decisions.Close()
	return a.Store.Close()
}
