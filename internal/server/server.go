// Package server assembles the HTTP API for the marketplace.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/server/handler"
	"github.com/voxelspace/spacemarket/internal/server/middleware"
	"github.com/voxelspace/spacemarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AuthToken   string // if empty, authentication is disabled

	// Limiter enables per-client-IP rate limiting when non-nil and
	// RateLimit is positive.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Listings     *handler.ListingHandler
	Auctions     *handler.AuctionHandler
	Valuations   *handler.ValuationHandler
	Stats        *handler.StatsHandler
	Transactions *handler.TransactionHandler

	// Archives is optional; archive routes are registered only when the
	// deployment has blob storage configured.
	Archives *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server for the marketplace.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Listing endpoints.
	mux.HandleFunc("GET /api/listings", handlers.Listings.ListListings)
	mux.HandleFunc("POST /api/listings", handlers.Listings.CreateListing)
	mux.HandleFunc("GET /api/listings/{id}", handlers.Listings.GetListing)
	mux.HandleFunc("PUT /api/listings/{id}/price", handlers.Listings.UpdatePrice)
	mux.HandleFunc("DELETE /api/listings/{id}", handlers.Listings.CancelListing)
	mux.HandleFunc("POST /api/listings/{id}/buy", handlers.Listings.BuyListing)
	mux.HandleFunc("GET /api/listings/{id}/transactions", handlers.Transactions.ListByListing)

	// Auction endpoints.
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("POST /api/auctions", handlers.Auctions.CreateAuction)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("POST /api/auctions/{id}/bids", handlers.Auctions.PlaceBid)
	mux.HandleFunc("POST /api/auctions/{id}/end", handlers.Auctions.EndAuction)

	// Asset endpoints.
	mux.HandleFunc("GET /api/assets/{id}/listed", handlers.Listings.IsListed)
	mux.HandleFunc("GET /api/assets/{id}/valuation", handlers.Valuations.Appraise)
	mux.HandleFunc("DELETE /api/assets/{id}/valuation", handlers.Valuations.Invalidate)

	// Market stats endpoints.
	mux.HandleFunc("GET /api/stats", handlers.Stats.ListStats)
	mux.HandleFunc("GET /api/stats/{category}", handlers.Stats.GetStats)

	// Transaction and fee endpoints.
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListRecent)
	mux.HandleFunc("GET /api/fees", handlers.Transactions.GetFeeRate)
	mux.HandleFunc("PUT /api/fees", handlers.Transactions.SetFeeRate)

	// Archive endpoints, present only when blob storage is configured.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.List)
		mux.HandleFunc("GET /api/archives/{kind}/{month}", handlers.Archives.Download)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.AuthToken)(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
