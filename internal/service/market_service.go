// Package service composes the marketplace and valuation engines with
// caching, rate limiting, auditing, and event publishing.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/market"
)

// EventChannel is the pub/sub channel for marketplace events.
const EventChannel = "market"

// SettlementStream is the durable stream that records settlement events for
// downstream consumers such as the archiver.
const SettlementStream = "market:settlements"

// writeLockTTL caps how long a replica may hold a record's write lock. A
// replica that dies mid-operation frees the record after this long.
const writeLockTTL = 10 * time.Second

// SettlementNotifier delivers operator alerts for completed sales.
type SettlementNotifier interface {
	NotifySettlement(ctx context.Context, event string, rec domain.TransactionRecord) error
}

// MarketService wraps the marketplace engine with per-actor rate limiting,
// audit logging, and event publishing.
type MarketService struct {
	engine   *market.Engine
	listings domain.ListingStore
	auctions domain.AuctionStore
	txs      domain.TransactionStore
	limiter  domain.RateLimiter
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier SettlementNotifier
	logger   *slog.Logger

	writeLimit  int
	writeWindow time.Duration
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	engine *market.Engine,
	listings domain.ListingStore,
	auctions domain.AuctionStore,
	txs domain.TransactionStore,
	limiter domain.RateLimiter,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
	writeLimit int,
	writeWindow time.Duration,
) *MarketService {
	if writeLimit <= 0 {
		writeLimit = 30
	}
	if writeWindow <= 0 {
		writeWindow = time.Minute
	}
	return &MarketService{
		engine:      engine,
		listings:    listings,
		auctions:    auctions,
		txs:         txs,
		limiter:     limiter,
		locks:       locks,
		bus:         bus,
		audit:       audit,
		logger:      logger,
		writeLimit:  writeLimit,
		writeWindow: writeWindow,
	}
}

// SetNotifier attaches an optional settlement notifier. Alerts are
// best-effort; delivery failures are logged and never affect settlement.
func (s *MarketService) SetNotifier(n SettlementNotifier) {
	s.notifier = n
}

// lockRecord serializes mutations on one record across replicas. The
// engine's in-process locks cover this instance only; the lock manager
// extends the guarantee to every replica sharing the stores. Contention
// surfaces as domain.ErrLockHeld so the caller can retry.
func (s *MarketService) lockRecord(ctx context.Context, kind, id string) (func(), error) {
	release, err := s.locks.Acquire(ctx, kind+":"+id, writeLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("market_service: %s %s busy: %w", kind, id, domain.ErrLockHeld)
		}
		return nil, fmt.Errorf("market_service: lock %s %s: %w", kind, id, err)
	}
	return release, nil
}

// allowWrite applies the per-actor rate limit to mutating operations.
func (s *MarketService) allowWrite(ctx context.Context, actor string) error {
	allowed, err := s.limiter.Allow(ctx, "market:"+actor, s.writeLimit, s.writeWindow)
	if err != nil {
		return fmt.Errorf("market_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

// publish sends an event on the market channel. Failures are logged, never
// propagated; events are best-effort.
func (s *MarketService) publish(ctx context.Context, event string, fields map[string]string) {
	payload := map[string]string{"event": event}
	for k, v := range fields {
		payload[k] = v
	}
	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, EventChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog writes an audit entry. Failures are logged, never propagated.
func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// recordSettlement appends the settlement to the durable stream and publishes
// the ephemeral event.
func (s *MarketService) recordSettlement(ctx context.Context, event string, rec domain.TransactionRecord) {
	payload, _ := json.Marshal(map[string]any{
		"event":      event,
		"tx_id":      rec.ID,
		"listing_id": rec.ListingID,
		"asset_id":   rec.AssetID,
		"seller":     rec.Seller,
		"buyer":      rec.Buyer,
		"price":      rec.Price,
		"fee":        rec.Fee,
		"category":   rec.Category,
		"ts":         rec.Timestamp.Format(time.RFC3339Nano),
	})
	if err := s.bus.StreamAppend(ctx, SettlementStream, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: stream append failed",
			slog.String("tx_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish settlement failed",
			slog.String("tx_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySettlement(ctx, event, rec); err != nil {
			s.logger.WarnContext(ctx, "market_service: settlement alert failed",
				slog.String("tx_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// CreateListing lists an asset at a fixed price.
func (s *MarketService) CreateListing(ctx context.Context, assetID, seller string, price int64) (domain.Listing, error) {
	if err := s.allowWrite(ctx, seller); err != nil {
		return domain.Listing{}, err
	}
	release, err := s.lockRecord(ctx, "asset", assetID)
	if err != nil {
		return domain.Listing{}, err
	}
	defer release()

	l, err := s.engine.CreateListing(ctx, assetID, seller, price)
	if err != nil {
		return domain.Listing{}, err
	}

	s.publish(ctx, "listing_created", map[string]string{
		"listing_id": l.ID,
		"asset_id":   l.AssetID,
		"seller":     l.Seller,
	})
	s.auditLog(ctx, "listing_created", map[string]any{
		"listing_id": l.ID,
		"asset_id":   l.AssetID,
		"seller":     l.Seller,
		"price":      l.Price,
		"appraised":  l.AppraisedValue,
		"category":   l.Category,
	})
	return l, nil
}

// UpdateListingPrice changes the asking price of an active listing.
func (s *MarketService) UpdateListingPrice(ctx context.Context, listingID string, newPrice int64, caller string) (domain.Listing, error) {
	if err := s.allowWrite(ctx, caller); err != nil {
		return domain.Listing{}, err
	}
	release, err := s.lockRecord(ctx, "listing", listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	defer release()

	l, err := s.engine.UpdateListingPrice(ctx, listingID, newPrice, caller)
	if err != nil {
		return domain.Listing{}, err
	}

	s.publish(ctx, "listing_updated", map[string]string{
		"listing_id": l.ID,
	})
	s.auditLog(ctx, "listing_updated", map[string]any{
		"listing_id": l.ID,
		"price":      l.Price,
		"caller":     caller,
	})
	return l, nil
}

// CancelListing withdraws an active listing.
func (s *MarketService) CancelListing(ctx context.Context, listingID, caller string) error {
	if err := s.allowWrite(ctx, caller); err != nil {
		return err
	}
	release, err := s.lockRecord(ctx, "listing", listingID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.engine.CancelListing(ctx, listingID, caller); err != nil {
		return err
	}

	s.publish(ctx, "listing_cancelled", map[string]string{
		"listing_id": listingID,
	})
	s.auditLog(ctx, "listing_cancelled", map[string]any{
		"listing_id": listingID,
		"caller":     caller,
	})
	return nil
}

// BuyListing purchases a fixed-price listing.
func (s *MarketService) BuyListing(ctx context.Context, listingID, buyer string, payment int64) (domain.TransactionRecord, error) {
	if err := s.allowWrite(ctx, buyer); err != nil {
		return domain.TransactionRecord{}, err
	}
	release, err := s.lockRecord(ctx, "listing", listingID)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	defer release()

	rec, err := s.engine.BuyListing(ctx, listingID, buyer, payment)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	s.recordSettlement(ctx, "listing_settled", rec)
	s.auditLog(ctx, "listing_settled", map[string]any{
		"tx_id":      rec.ID,
		"listing_id": rec.ListingID,
		"buyer":      rec.Buyer,
		"price":      rec.Price,
		"fee":        rec.Fee,
	})
	return rec, nil
}

// CreateAuction lists an asset for auction.
func (s *MarketService) CreateAuction(ctx context.Context, assetID, seller string, startPrice, reservePrice int64, duration time.Duration) (domain.Listing, domain.Auction, error) {
	if err := s.allowWrite(ctx, seller); err != nil {
		return domain.Listing{}, domain.Auction{}, err
	}
	release, err := s.lockRecord(ctx, "asset", assetID)
	if err != nil {
		return domain.Listing{}, domain.Auction{}, err
	}
	defer release()

	l, a, err := s.engine.CreateAuction(ctx, assetID, seller, startPrice, reservePrice, duration)
	if err != nil {
		return domain.Listing{}, domain.Auction{}, err
	}

	s.publish(ctx, "auction_created", map[string]string{
		"listing_id": l.ID,
		"asset_id":   l.AssetID,
		"seller":     l.Seller,
	})
	s.auditLog(ctx, "auction_created", map[string]any{
		"listing_id":    l.ID,
		"asset_id":      l.AssetID,
		"seller":        l.Seller,
		"start_price":   a.StartPrice,
		"reserve_price": a.ReservePrice,
		"end_time":      a.EndTime,
	})
	return l, a, nil
}

// PlaceBid places a bid on an active auction.
func (s *MarketService) PlaceBid(ctx context.Context, listingID, bidder string, amount int64) (domain.Auction, error) {
	if err := s.allowWrite(ctx, bidder); err != nil {
		return domain.Auction{}, err
	}
	release, err := s.lockRecord(ctx, "listing", listingID)
	if err != nil {
		return domain.Auction{}, err
	}
	defer release()

	a, err := s.engine.PlaceBid(ctx, listingID, bidder, amount)
	if err != nil {
		return domain.Auction{}, err
	}

	s.publish(ctx, "bid_placed", map[string]string{
		"listing_id": listingID,
		"bidder":     bidder,
	})
	s.auditLog(ctx, "bid_placed", map[string]any{
		"listing_id": listingID,
		"bidder":     bidder,
		"amount":     amount,
	})
	return a, nil
}

// EndAuction finalizes an auction. A zero-value record with an empty ID is
// returned when the auction closed without a sale.
func (s *MarketService) EndAuction(ctx context.Context, listingID, caller string) (domain.TransactionRecord, error) {
	if err := s.allowWrite(ctx, caller); err != nil {
		return domain.TransactionRecord{}, err
	}
	release, err := s.lockRecord(ctx, "listing", listingID)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	defer release()

	rec, err := s.engine.EndAuction(ctx, listingID, caller)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	if rec.ID != "" {
		s.recordSettlement(ctx, "auction_settled", rec)
		s.auditLog(ctx, "auction_settled", map[string]any{
			"tx_id":      rec.ID,
			"listing_id": rec.ListingID,
			"buyer":      rec.Buyer,
			"price":      rec.Price,
			"fee":        rec.Fee,
		})
	} else {
		s.publish(ctx, "auction_closed", map[string]string{
			"listing_id": listingID,
		})
		s.auditLog(ctx, "auction_closed", map[string]any{
			"listing_id": listingID,
			"caller":     caller,
		})
	}
	return rec, nil
}

// SetFeeRate changes the marketplace fee rate. Only the configured operator
// may call it.
func (s *MarketService) SetFeeRate(ctx context.Context, bps int, caller string) error {
	if caller != s.engine.Operator() {
		return domain.ErrUnauthorized
	}
	if err := s.engine.SetFeeRate(bps); err != nil {
		return err
	}

	s.auditLog(ctx, "fee_rate_changed", map[string]any{
		"fee_rate_bps": bps,
		"caller":       caller,
	})
	s.logger.InfoContext(ctx, "market_service: fee rate changed",
		slog.Int("fee_rate_bps", bps),
	)
	return nil
}

// FeeRateBps returns the current fee rate in basis points.
func (s *MarketService) FeeRateBps() int {
	return s.engine.FeeRateBps()
}

// GetListing retrieves a listing by ID.
func (s *MarketService) GetListing(ctx context.Context, listingID string) (domain.Listing, error) {
	return s.engine.GetListing(ctx, listingID)
}

// GetAuction retrieves the auction attached to a listing.
func (s *MarketService) GetAuction(ctx context.Context, listingID string) (domain.Auction, error) {
	return s.engine.GetAuction(ctx, listingID)
}

// IsListed reports whether an asset currently has an active listing.
func (s *MarketService) IsListed(ctx context.Context, assetID string) (bool, error) {
	return s.engine.IsListed(ctx, assetID)
}

// ListActiveListings returns active listings with pagination.
func (s *MarketService) ListActiveListings(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error) {
	listings, err := s.listings.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active listings: %w", err)
	}
	return listings, nil
}

// ListActiveAuctions returns active auctions, soonest ending first.
func (s *MarketService) ListActiveAuctions(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	auctions, err := s.auctions.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active auctions: %w", err)
	}
	return auctions, nil
}

// GetTransactionHistory returns the settlement history for a listing.
func (s *MarketService) GetTransactionHistory(ctx context.Context, listingID string) ([]domain.TransactionRecord, error) {
	return s.engine.GetTransactionHistory(ctx, listingID)
}

// ListRecentTransactions returns settlements newest first with pagination.
func (s *MarketService) ListRecentTransactions(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	recs, err := s.txs.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list recent transactions: %w", err)
	}
	return recs, nil
}
