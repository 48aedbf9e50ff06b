package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qajybay/offchain-arbitrage/internal/server"
	"github.com/qajybay/offchain-arbitrage/internal/server/handler"
)

// ScanMode runs the scan pipeline without the HTTP API. It blocks until the
// context is cancelled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "scan mode: pipeline only")
	return deps.Orchestrator.Run(ctx)
}

// OnceMode executes a single scan cycle and exits. Useful for cron-style
// deployments and smoke testing a new configuration.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "once mode: single scan cycle")

	stats, err := deps.Scanner.RunCycle(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "cycle finished",
		slog.Int("pools", stats.PoolsScanned),
		slog.Int("discovered", stats.Discovered),
		slog.Int("verified", stats.Verified),
		slog.Duration("took", stats.Duration),
	)
	return nil
}

// MonitorMode serves the HTTP API over existing data without running the
// scan pipeline. Trigger requests queue on the orchestrator but are not
// consumed until a scanning mode runs.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "monitor mode: api only")
	return a.serveHTTP(ctx, deps)
}

// FullMode runs the scan pipeline and the HTTP API together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "full mode: pipeline and api")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})
	g.Go(func() error {
		return a.serveHTTP(ctx, deps)
	})

	return g.Wait()
}

// serveHTTP builds and runs the HTTP server until the context is cancelled.
func (a *App) serveHTTP(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Pools:         handler.NewPoolHandler(deps.PoolStore, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.OpportunityStore, a.logger),
		Scan:          handler.NewScanHandler(deps.Orchestrator, a.logger),
		Verifier:      handler.NewVerifierHandler(deps.Verifier, a.logger),
		Archives:      handler.NewArchiveHandler(deps.BlobReader, a.logger),
	}, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
