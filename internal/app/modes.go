package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxelspace/spacemarket/internal/server"
	"github.com/voxelspace/spacemarket/internal/server/handler"
	"github.com/voxelspace/spacemarket/internal/server/ws"
	"github.com/voxelspace/spacemarket/internal/service"
)

// ServerMode runs the HTTP and WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the periodic export of settled history to blob
// storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: blob storage is not configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveWorker(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the archive worker together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if deps.Archiver != nil {
		a.startArchiveWorker(ctx, g, deps)
	} else if a.cfg.Archive.Enabled {
		a.logger.WarnContext(ctx, "archive.enabled is true but blob storage is not wired; archiving disabled")
	}

	return g.Wait()
}

// startHTTPServer adds the WebSocket hub and HTTP server goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Listings:     handler.NewListingHandler(deps.MarketSvc, a.logger),
		Auctions:     handler.NewAuctionHandler(deps.MarketSvc, a.logger),
		Valuations:   handler.NewValuationHandler(deps.ValuationSvc, a.logger),
		Stats:        handler.NewStatsHandler(deps.ValuationSvc, a.logger),
		Transactions: handler.NewTransactionHandler(deps.MarketSvc, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AuthToken:   a.cfg.Server.AuthToken,
		Limiter:     deps.Limiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// startArchiveWorker adds the periodic archive goroutine to the errgroup.
func (a *App) startArchiveWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	worker := service.NewArchiveWorker(
		deps.Archiver,
		a.cfg.Archive.Interval.Duration,
		a.cfg.Archive.RetentionDays,
		a.logger,
	)
	g.Go(func() error {
		return worker.Run(ctx)
	})
}
