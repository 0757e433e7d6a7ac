// Package app provides the top-level application lifecycle for the betting
// engine. It wires together all dependencies (archive, caches, oracle
// runtime, ledger, HTTP server) and runs them under one errgroup.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xfraan/leverbet/internal/config"
	"github.com/0xfraan/leverbet/internal/server"
	"github.com/0xfraan/leverbet/internal/server/handler"
	"github.com/0xfraan/leverbet/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the oracle
// runtime sinks, the WebSocket hub, the HTTP server, and the archive sweep,
// then blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub bridging the event bus to clients.
	hub := ws.NewHub(deps.EventBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// HTTP API.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		}, server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Bets:   handler.NewBetHandler(deps.Ledger, a.logger),
			Engine: handler.NewEngineHandler(deps.Ledger, a.logger),
		}, hub, deps.RateLimiter, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	// Periodic cold-storage sweep of terminal bets.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	err = g.Wait()

	// Let in-flight oracle executions finish delivering before cleanup tears
	// down their sinks.
	deps.Oracle.Wait()

	return err
}

// archiveLoop uploads terminal bets older than the retention window to S3 on
// a fixed interval.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			count, err := deps.Archiver.ArchiveBets(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archived terminal bets",
					slog.Int64("count", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
