// Package market implements the marketplace engine: the listing and auction
// state machine, escrow and refund rules, fee distribution, and settlement.
// The engine owns listing and auction records exclusively; asset ownership
// lives in the external registry and funds in the ledger collaborator.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Appraiser produces a price estimate for a space under current market
// statistics. Declared locally so the engine does not depend on the concrete
// valuation implementation.
type Appraiser interface {
	Assess(attrs domain.SpaceAttributes, stats domain.MarketStats) domain.ValuationResult
}

// Stats is the engine's view of the market statistics store: it reads
// category snapshots for appraisal and feeds settlements and supply changes
// back, closing the valuation feedback loop.
type Stats interface {
	Get(category string) domain.MarketStats
	RecordSettlement(evt domain.SettlementEvent)
	AddActiveSupply(category string, delta int)
}

// Config holds the marketplace policy parameters. Rates are basis points.
type Config struct {
	FeeRateBps         int           // platform fee at settlement time
	MaxFeeRateBps      int           // upper bound for SetFeeRate
	MinIncrementBps    int           // minimum bid increment over the highest bid
	VerifiedPremiumBps int           // appraisal premium over price for verified assets
	MinAuctionDuration time.Duration
	MaxAuctionDuration time.Duration
	RegistryTimeout    time.Duration
	Operator           string // platform operator account
}

// DefaultConfig returns the standard marketplace policy.
func DefaultConfig() Config {
	return Config{
		FeeRateBps:         250, // 2.5%
		MaxFeeRateBps:      500, // 5%
		MinIncrementBps:    500, // 5%
		VerifiedPremiumBps: 1000,
		MinAuctionDuration: time.Hour,
		MaxAuctionDuration: 7 * 24 * time.Hour,
		RegistryTimeout:    5 * time.Second,
		Operator:           "operator",
	}
}

// Engine is the marketplace engine. All state-changing operations on a
// listing execute under that listing's lock; listing creation holds a
// dedicated create lock so the at-most-one-active-listing-per-asset
// invariant is checked and set as a single atomic step.
type Engine struct {
	listings  domain.ListingStore
	auctions  domain.AuctionStore
	txns      domain.TransactionStore
	registry  domain.AssetRegistry
	ledger    domain.Ledger
	appraiser Appraiser
	stats     Stats
	logger    *slog.Logger

	cfg        Config
	feeRateBps atomic.Int64

	locks    *keyLocks
	createMu sync.Mutex

	now func() time.Time
}

// NewEngine creates an Engine with all required dependencies.
func NewEngine(
	listings domain.ListingStore,
	auctions domain.AuctionStore,
	txns domain.TransactionStore,
	registry domain.AssetRegistry,
	ledger domain.Ledger,
	appraiser Appraiser,
	stats Stats,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		listings:  listings,
		auctions:  auctions,
		txns:      txns,
		registry:  registry,
		ledger:    ledger,
		appraiser: appraiser,
		stats:     stats,
		logger:    logger.With(slog.String("component", "market")),
		cfg:       cfg,
		locks:     newKeyLocks(),
		now:       time.Now,
	}
	e.feeRateBps.Store(int64(cfg.FeeRateBps))
	return e
}

// WithClock replaces the engine's time source. Used by tests to control
// auction deadlines.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// FeeRateBps returns the current platform fee rate.
func (e *Engine) FeeRateBps() int {
	return int(e.feeRateBps.Load())
}

// Operator returns the account permitted to run administrative operations.
func (e *Engine) Operator() string {
	return e.cfg.Operator
}

// SetFeeRate updates the platform fee rate. The rate is a platform
// parameter, not a per-listing snapshot: fees are computed from the current
// rate at settlement time, so changing it never rewrites the economics of a
// record that already settled.
func (e *Engine) SetFeeRate(bps int) error {
	if bps < 0 || bps > e.cfg.MaxFeeRateBps {
		return fmt.Errorf("market: fee rate %d bps outside [0, %d]: %w",
			bps, e.cfg.MaxFeeRateBps, domain.ErrInvalidPrice)
	}
	e.feeRateBps.Store(int64(bps))
	return nil
}

// CreateListing creates a fixed-price listing for an asset. The seller must
// own the asset and the asset must not already have an active listing.
// The appraised value is snapshotted from the valuation engine at creation
// time; verified assets instead carry a fixed premium over the asking price.
func (e *Engine) CreateListing(ctx context.Context, assetID, seller string, price int64) (domain.Listing, error) {
	if price <= 0 {
		return domain.Listing{}, fmt.Errorf("market: create listing for %q: %w", assetID, domain.ErrInvalidPrice)
	}
	if err := e.checkOwner(ctx, assetID, seller); err != nil {
		return domain.Listing{}, err
	}

	appraised, category := e.appraise(ctx, assetID, price)

	l := domain.Listing{
		ID:             uuid.New().String(),
		AssetID:        assetID,
		Seller:         seller,
		Kind:           domain.ListingKindFixed,
		Category:       category,
		Price:          price,
		AppraisedValue: appraised,
		Status:         domain.ListingStatusActive,
		CreatedAt:      e.now().UTC(),
		UpdatedAt:      e.now().UTC(),
	}

	if err := e.insertListing(ctx, l); err != nil {
		return domain.Listing{}, err
	}

	e.logger.InfoContext(ctx, "market: listing created",
		slog.String("listing_id", l.ID),
		slog.String("asset_id", assetID),
		slog.String("seller", seller),
		slog.Int64("price", price),
		slog.Int64("appraised", appraised),
	)
	return l, nil
}

// insertListing performs the atomic check-and-set of the per-asset listed
// flag: the active-listing lookup and the insert happen under one lock so
// concurrent creates for the same asset cannot both succeed.
func (e *Engine) insertListing(ctx context.Context, l domain.Listing) error {
	e.createMu.Lock()
	defer e.createMu.Unlock()

	_, err := e.listings.GetActiveByAsset(ctx, l.AssetID)
	switch {
	case err == nil:
		return fmt.Errorf("market: create listing for %q: %w", l.AssetID, domain.ErrAlreadyListed)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("market: check active listing for %q: %w", l.AssetID, err)
	}

	if err := e.listings.Create(ctx, l); err != nil {
		return fmt.Errorf("market: create listing for %q: %w", l.AssetID, err)
	}

	e.stats.AddActiveSupply(l.Category, 1)
	return nil
}

// UpdateListingPrice changes the asking price of an active fixed-price
// listing. Only the seller may reprice.
func (e *Engine) UpdateListingPrice(ctx context.Context, listingID string, newPrice int64, caller string) (domain.Listing, error) {
	unlock := e.locks.lock(listingID)
	defer unlock()

	l, err := e.getListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	if !l.Active() {
		return domain.Listing{}, fmt.Errorf("market: update price of %q: %w", listingID, domain.ErrNotActive)
	}
	if caller != l.Seller {
		return domain.Listing{}, fmt.Errorf("market: update price of %q: %w", listingID, domain.ErrNotSeller)
	}
	if newPrice <= 0 {
		return domain.Listing{}, fmt.Errorf("market: update price of %q: %w", listingID, domain.ErrInvalidPrice)
	}

	l.Price = newPrice
	l.UpdatedAt = e.now().UTC()
	if err := e.listings.Update(ctx, l); err != nil {
		return domain.Listing{}, fmt.Errorf("market: update price of %q: %w", listingID, err)
	}

	e.logger.InfoContext(ctx, "market: listing repriced",
		slog.String("listing_id", listingID),
		slog.Int64("price", newPrice),
	)
	return l, nil
}

// CancelListing cancels an active listing. The seller or the platform
// operator may cancel. For auction listings any held bid is refunded first.
func (e *Engine) CancelListing(ctx context.Context, listingID, caller string) error {
	unlock := e.locks.lock(listingID)
	defer unlock()

	l, err := e.getListing(ctx, listingID)
	if err != nil {
		return err
	}
	if !l.Active() {
		return fmt.Errorf("market: cancel %q: %w", listingID, domain.ErrNotActive)
	}
	if caller != l.Seller && caller != e.cfg.Operator {
		return fmt.Errorf("market: cancel %q: %w", listingID, domain.ErrUnauthorized)
	}

	txn := newSettlementTxn(e.logger)

	if l.Kind == domain.ListingKindAuction {
		a, err := e.auctions.GetByListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("market: cancel %q: load auction: %w", listingID, err)
		}
		if err := e.refundHighestBid(ctx, txn, &a); err != nil {
			txn.rollback()
			return fmt.Errorf("market: cancel %q: %w", listingID, err)
		}
		a.Status = domain.AuctionStatusSettled
		if err := e.updateAuction(ctx, txn, a); err != nil {
			txn.rollback()
			return fmt.Errorf("market: cancel %q: %w", listingID, err)
		}
	}

	if err := e.transitionListing(ctx, txn, l, domain.ListingStatusCancelled); err != nil {
		txn.rollback()
		return fmt.Errorf("market: cancel %q: %w", listingID, err)
	}
	txn.commit()

	e.stats.AddActiveSupply(l.Category, -1)

	e.logger.InfoContext(ctx, "market: listing cancelled",
		slog.String("listing_id", listingID),
		slog.String("caller", caller),
	)
	return nil
}

// BuyListing purchases a fixed-price listing. The payment covers the asking
// price; any overpayment is refunded. The fee split, seller payout, refund,
// ownership transfer, state transition, and transaction record are atomic:
// a failure in any step rolls back every prior effect and the listing stays
// active.
func (e *Engine) BuyListing(ctx context.Context, listingID, buyer string, payment int64) (domain.TransactionRecord, error) {
	unlock := e.locks.lock(listingID)
	defer unlock()

	l, err := e.getListing(ctx, listingID)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if !l.Active() {
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: %w", listingID, domain.ErrNotActive)
	}
	if l.Kind == domain.ListingKindAuction {
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: auction listings settle via EndAuction: %w", listingID, domain.ErrUnauthorized)
	}
	if buyer == l.Seller {
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: %w", listingID, domain.ErrSelfPurchase)
	}
	if payment < l.Price {
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: paid %d for price %d: %w",
			listingID, payment, l.Price, domain.ErrInsufficientPayment)
	}
	if err := e.guardUnsettled(ctx, listingID); err != nil {
		return domain.TransactionRecord{}, err
	}

	txn := newSettlementTxn(e.logger)

	// Move the full payment into escrow, then settle out of escrow.
	if err := txn.step(ctx, "hold payment",
		func(ctx context.Context) error { return e.ledger.Pay(ctx, buyer, domain.EscrowAccount, payment) },
		func(ctx context.Context) error { return e.ledger.Refund(ctx, buyer, payment) },
	); err != nil {
		txn.rollback()
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: %w", listingID, err)
	}

	rec, err := e.settle(ctx, txn, l, nil, buyer, l.Price, payment-l.Price)
	if err != nil {
		txn.rollback()
		return domain.TransactionRecord{}, fmt.Errorf("market: buy %q: %w", listingID, err)
	}
	txn.commit()

	e.finishSettlement(ctx, l, rec)
	return rec, nil
}

// guardUnsettled rejects a settlement attempt for a listing that already has
// a transaction record. This state is an internal invariant violation, not a
// caller mistake: it is logged as fatal and the operation aborts with no
// effects.
func (e *Engine) guardUnsettled(ctx context.Context, listingID string) error {
	recs, err := e.txns.ListByListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("market: settlement guard for %q: %w", listingID, err)
	}
	if len(recs) > 0 {
		e.logger.ErrorContext(ctx, "market: double settlement attempt",
			slog.String("listing_id", listingID),
			slog.Int("existing_records", len(recs)),
		)
		return fmt.Errorf("market: settle %q: %w", listingID, domain.ErrDoubleSettlement)
	}
	return nil
}

// settle runs the common fund-split, transfer, transition, and record path
// shared by BuyListing and EndAuction. The sale funds must already sit in
// escrow. auction, when non-nil, is transitioned to settled alongside the
// listing. Steps execute inside txn; the caller commits or rolls back.
func (e *Engine) settle(
	ctx context.Context,
	txn *settlementTxn,
	l domain.Listing,
	auction *domain.Auction,
	buyer string,
	price, overpayment int64,
) (domain.TransactionRecord, error) {
	fee := price * e.feeRateBps.Load() / 10_000
	proceeds := price - fee

	if err := txn.step(ctx, "pay seller",
		func(ctx context.Context) error { return e.ledger.Pay(ctx, domain.EscrowAccount, l.Seller, proceeds) },
		func(ctx context.Context) error { return e.ledger.Pay(ctx, l.Seller, domain.EscrowAccount, proceeds) },
	); err != nil {
		return domain.TransactionRecord{}, err
	}

	if err := txn.step(ctx, "pay platform fee",
		func(ctx context.Context) error {
			return e.ledger.Pay(ctx, domain.EscrowAccount, domain.PlatformAccount, fee)
		},
		func(ctx context.Context) error {
			return e.ledger.Pay(ctx, domain.PlatformAccount, domain.EscrowAccount, fee)
		},
	); err != nil {
		return domain.TransactionRecord{}, err
	}

	if overpayment > 0 {
		if err := txn.step(ctx, "refund overpayment",
			func(ctx context.Context) error { return e.ledger.Refund(ctx, buyer, overpayment) },
			func(ctx context.Context) error { return e.ledger.Pay(ctx, buyer, domain.EscrowAccount, overpayment) },
		); err != nil {
			return domain.TransactionRecord{}, err
		}
	}

	if err := txn.step(ctx, "transfer asset",
		func(ctx context.Context) error { return e.transferAsset(ctx, l.AssetID, l.Seller, buyer) },
		func(ctx context.Context) error { return e.transferAsset(ctx, l.AssetID, buyer, l.Seller) },
	); err != nil {
		return domain.TransactionRecord{}, err
	}

	if err := e.transitionListing(ctx, txn, l, domain.ListingStatusSold); err != nil {
		return domain.TransactionRecord{}, err
	}

	if auction != nil {
		a := *auction
		a.Status = domain.AuctionStatusSettled
		if err := e.updateAuction(ctx, txn, a); err != nil {
			return domain.TransactionRecord{}, err
		}
	}

	rec := domain.TransactionRecord{
		ID:        uuid.New().String(),
		ListingID: l.ID,
		AssetID:   l.AssetID,
		Seller:    l.Seller,
		Buyer:     buyer,
		Price:     price,
		Fee:       fee,
		Category:  l.Category,
		Timestamp: e.now().UTC(),
	}
	// Final step: the append-only record. No undo; if it fails the caller
	// rolls back everything before it.
	if err := txn.step(ctx, "append transaction",
		func(ctx context.Context) error { return e.txns.Append(ctx, rec) },
		nil,
	); err != nil {
		return domain.TransactionRecord{}, err
	}

	return rec, nil
}

// finishSettlement applies the post-commit effects of a sale: the settlement
// event feeds the market statistics store exactly once, and the category's
// active supply drops by one.
func (e *Engine) finishSettlement(ctx context.Context, l domain.Listing, rec domain.TransactionRecord) {
	e.stats.RecordSettlement(domain.SettlementEvent{
		Category:  rec.Category,
		Price:     rec.Price,
		Timestamp: rec.Timestamp,
	})
	e.stats.AddActiveSupply(rec.Category, -1)

	e.logger.InfoContext(ctx, "market: listing settled",
		slog.String("listing_id", l.ID),
		slog.String("asset_id", l.AssetID),
		slog.String("buyer", rec.Buyer),
		slog.Int64("price", rec.Price),
		slog.Int64("fee", rec.Fee),
	)
}

// transitionListing updates the listing status inside the transaction, with
// an undo that restores the previous record.
func (e *Engine) transitionListing(ctx context.Context, txn *settlementTxn, l domain.Listing, status domain.ListingStatus) error {
	prev := l
	l.Status = status
	l.UpdatedAt = e.now().UTC()
	return txn.step(ctx, "transition listing",
		func(ctx context.Context) error { return e.listings.Update(ctx, l) },
		func(ctx context.Context) error { return e.listings.Update(ctx, prev) },
	)
}

// updateAuction updates the auction record inside the transaction.
func (e *Engine) updateAuction(ctx context.Context, txn *settlementTxn, a domain.Auction) error {
	prev, err := e.auctions.GetByListing(ctx, a.ListingID)
	if err != nil {
		return fmt.Errorf("load auction %q: %w", a.ListingID, err)
	}
	return txn.step(ctx, "update auction",
		func(ctx context.Context) error { return e.auctions.Update(ctx, a) },
		func(ctx context.Context) error { return e.auctions.Update(ctx, prev) },
	)
}

// transferAsset requests an ownership transfer from the registry, bounded by
// the configured timeout. Expiry surfaces as ErrRegistryUnavailable so the
// caller can roll back and retry.
func (e *Engine) transferAsset(ctx context.Context, assetID, from, to string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RegistryTimeout)
	defer cancel()

	if err := e.registry.Transfer(ctx, assetID, from, to); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("transfer %q: %w", assetID, domain.ErrRegistryUnavailable)
		}
		return err
	}
	return nil
}

// checkOwner verifies the seller owns the asset, with the registry call
// bounded by the configured timeout.
func (e *Engine) checkOwner(ctx context.Context, assetID, seller string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RegistryTimeout)
	defer cancel()

	owner, err := e.registry.OwnerOf(ctx, assetID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("market: owner check for %q: %w", assetID, domain.ErrRegistryUnavailable)
		}
		return fmt.Errorf("market: owner check for %q: %w", assetID, err)
	}
	if owner != seller {
		return fmt.Errorf("market: owner check for %q: %w", assetID, domain.ErrNotOwner)
	}
	return nil
}

// appraise snapshots the valuation engine's estimate for the asset and the
// asset's market category. A verified asset carries the fixed premium over
// the asking price instead; verification is read as a typed attribute,
// never probed by trial and error. Appraisal never blocks a listing: if the
// registry cannot provide attributes the engine values a bare attribute set.
func (e *Engine) appraise(ctx context.Context, assetID string, price int64) (int64, string) {
	attrs, err := e.attributesOf(ctx, assetID)
	if err != nil {
		e.logger.WarnContext(ctx, "market: attributes unavailable, appraising bare asset",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		attrs = domain.SpaceAttributes{AssetID: assetID}
	}

	if attrs.Verified {
		return price + price*int64(e.cfg.VerifiedPremiumBps)/10_000, attrs.Category()
	}

	res := e.appraiser.Assess(attrs, e.stats.Get(attrs.Category()))
	return res.Value, attrs.Category()
}

func (e *Engine) attributesOf(ctx context.Context, assetID string) (domain.SpaceAttributes, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RegistryTimeout)
	defer cancel()
	return e.registry.Attributes(ctx, assetID)
}

// getListing loads a listing, mapping ErrNotFound through unchanged.
func (e *Engine) getListing(ctx context.Context, listingID string) (domain.Listing, error) {
	l, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, fmt.Errorf("market: listing %q: %w", listingID, domain.ErrNotFound)
		}
		return domain.Listing{}, fmt.Errorf("market: listing %q: %w", listingID, err)
	}
	return l, nil
}

// GetListing returns a listing by ID.
func (e *Engine) GetListing(ctx context.Context, listingID string) (domain.Listing, error) {
	return e.getListing(ctx, listingID)
}

// GetAuction returns the auction attached to a listing.
func (e *Engine) GetAuction(ctx context.Context, listingID string) (domain.Auction, error) {
	a, err := e.auctions.GetByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Auction{}, fmt.Errorf("market: auction for %q: %w", listingID, domain.ErrNoAuction)
		}
		return domain.Auction{}, fmt.Errorf("market: auction for %q: %w", listingID, err)
	}
	return a, nil
}

// GetTransactionHistory returns the settlement records for a listing.
func (e *Engine) GetTransactionHistory(ctx context.Context, listingID string) ([]domain.TransactionRecord, error) {
	recs, err := e.txns.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("market: history for %q: %w", listingID, err)
	}
	return recs, nil
}

// IsListed reports whether the asset currently has an active listing.
func (e *Engine) IsListed(ctx context.Context, assetID string) (bool, error) {
	_, err := e.listings.GetActiveByAsset(ctx, assetID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("market: is listed %q: %w", assetID, err)
	}
}
