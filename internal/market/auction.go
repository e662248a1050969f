package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// CreateAuction creates an auction-backed listing. The listing starts active
// at the start price; the auction runs until now + duration.
func (e *Engine) CreateAuction(ctx context.Context, assetID, seller string, startPrice, reservePrice int64, duration time.Duration) (domain.Listing, domain.Auction, error) {
	if startPrice <= 0 || reservePrice < startPrice {
		return domain.Listing{}, domain.Auction{}, fmt.Errorf("market: create auction for %q: reserve %d below start %d: %w",
			assetID, reservePrice, startPrice, domain.ErrInvalidPrice)
	}
	if duration < e.cfg.MinAuctionDuration || duration > e.cfg.MaxAuctionDuration {
		return domain.Listing{}, domain.Auction{}, fmt.Errorf("market: create auction for %q: duration %s outside [%s, %s]: %w",
			assetID, duration, e.cfg.MinAuctionDuration, e.cfg.MaxAuctionDuration, domain.ErrInvalidDuration)
	}
	if err := e.checkOwner(ctx, assetID, seller); err != nil {
		return domain.Listing{}, domain.Auction{}, err
	}

	appraised, category := e.appraise(ctx, assetID, startPrice)
	now := e.now().UTC()

	l := domain.Listing{
		ID:             uuid.New().String(),
		AssetID:        assetID,
		Seller:         seller,
		Kind:           domain.ListingKindAuction,
		Category:       category,
		Price:          startPrice,
		AppraisedValue: appraised,
		Status:         domain.ListingStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	a := domain.Auction{
		ListingID:    l.ID,
		StartPrice:   startPrice,
		ReservePrice: reservePrice,
		EndTime:      now.Add(duration),
		Status:       domain.AuctionStatusActive,
	}

	if err := e.insertListing(ctx, l); err != nil {
		return domain.Listing{}, domain.Auction{}, err
	}
	if err := e.auctions.Create(ctx, a); err != nil {
		// Undo the paired listing so the asset is not stuck listed.
		txn := newSettlementTxn(e.logger)
		if terr := e.transitionListing(ctx, txn, l, domain.ListingStatusCancelled); terr != nil {
			e.logger.ErrorContext(ctx, "market: orphaned auction listing",
				slog.String("listing_id", l.ID),
				slog.String("error", terr.Error()),
			)
		}
		txn.commit()
		e.stats.AddActiveSupply(l.Category, -1)
		return domain.Listing{}, domain.Auction{}, fmt.Errorf("market: create auction for %q: %w", assetID, err)
	}

	e.logger.InfoContext(ctx, "market: auction created",
		slog.String("listing_id", l.ID),
		slog.String("asset_id", assetID),
		slog.Int64("start_price", startPrice),
		slog.Int64("reserve_price", reservePrice),
		slog.Time("end_time", a.EndTime),
	)
	return l, a, nil
}

// PlaceBid places a bid on an active auction. The first bid must meet the
// start price; each later bid must exceed the highest bid by the minimum
// increment. The previous highest bid is refunded in full before the new
// bid is recorded, so an outbid bidder's funds are never held past being
// outbid. Bid funds are held in escrow until settlement or refund.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidder string, amount int64) (domain.Auction, error) {
	unlock := e.locks.lock(listingID)
	defer unlock()

	l, err := e.getListing(ctx, listingID)
	if err != nil {
		return domain.Auction{}, err
	}
	if !l.Active() {
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, domain.ErrNotActive)
	}
	a, err := e.GetAuction(ctx, listingID)
	if err != nil {
		return domain.Auction{}, err
	}
	if a.Status != domain.AuctionStatusActive {
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, domain.ErrNotActive)
	}
	if a.Ended(e.now()) {
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, domain.ErrAuctionEnded)
	}
	if bidder == l.Seller {
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, domain.ErrSelfBid)
	}
	if amount < e.minNextBid(a) {
		return domain.Auction{}, fmt.Errorf("market: bid %d on %q below minimum %d: %w",
			amount, listingID, e.minNextBid(a), domain.ErrBidTooLow)
	}

	txn := newSettlementTxn(e.logger)

	// Refund-before-accept: release the outbid deposit first.
	if err := e.refundHighestBid(ctx, txn, &a); err != nil {
		txn.rollback()
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, err)
	}

	if err := txn.step(ctx, "hold bid",
		func(ctx context.Context) error { return e.ledger.Hold(ctx, bidder, amount) },
		func(ctx context.Context) error { return e.ledger.Refund(ctx, bidder, amount) },
	); err != nil {
		txn.rollback()
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, err)
	}

	a.HighestBid = amount
	a.HighestBidder = bidder
	if err := e.updateAuction(ctx, txn, a); err != nil {
		txn.rollback()
		return domain.Auction{}, fmt.Errorf("market: bid on %q: %w", listingID, err)
	}
	txn.commit()

	e.logger.InfoContext(ctx, "market: bid placed",
		slog.String("listing_id", listingID),
		slog.String("bidder", bidder),
		slog.Int64("amount", amount),
	)
	return a, nil
}

// minNextBid returns the smallest acceptable bid: the start price for the
// first bid, otherwise the highest bid grown by the minimum increment,
// rounded up so the increment is never undercut by integer division.
func (e *Engine) minNextBid(a domain.Auction) int64 {
	if a.HighestBid == 0 {
		return a.StartPrice
	}
	grown := a.HighestBid * (10_000 + int64(e.cfg.MinIncrementBps))
	return (grown + 9_999) / 10_000
}

// refundHighestBid releases the current highest bid, if any, back to its
// bidder and clears the bid fields on a. Runs inside txn so a later failure
// re-holds the deposit.
func (e *Engine) refundHighestBid(ctx context.Context, txn *settlementTxn, a *domain.Auction) error {
	if a.HighestBidder == "" {
		return nil
	}
	prevBidder, prevBid := a.HighestBidder, a.HighestBid

	if err := txn.step(ctx, "refund outbid deposit",
		func(ctx context.Context) error { return e.ledger.Refund(ctx, prevBidder, prevBid) },
		func(ctx context.Context) error { return e.ledger.Hold(ctx, prevBidder, prevBid) },
	); err != nil {
		return err
	}
	a.HighestBid = 0
	a.HighestBidder = ""
	return nil
}

// EndAuction closes an auction. Before the end time only the platform
// operator may force-end. If the reserve is met the auction settles exactly
// like a fixed-price sale at the highest bid; otherwise the highest bid is
// refunded, no transaction is recorded, and the listing is cancelled. Both
// paths leave the auction settled.
func (e *Engine) EndAuction(ctx context.Context, listingID, caller string) (domain.TransactionRecord, error) {
	unlock := e.locks.lock(listingID)
	defer unlock()

	l, err := e.getListing(ctx, listingID)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if !l.Active() {
		return domain.TransactionRecord{}, fmt.Errorf("market: end auction %q: %w", listingID, domain.ErrNotActive)
	}
	a, err := e.GetAuction(ctx, listingID)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if a.Status != domain.AuctionStatusActive {
		return domain.TransactionRecord{}, fmt.Errorf("market: end auction %q: %w", listingID, domain.ErrNotActive)
	}
	if !a.Ended(e.now()) && caller != e.cfg.Operator {
		return domain.TransactionRecord{}, fmt.Errorf("market: end auction %q: %w", listingID, domain.ErrTooEarly)
	}

	if a.ReserveMet() {
		return e.settleAuction(ctx, l, a)
	}
	return domain.TransactionRecord{}, e.closeUnsoldAuction(ctx, l, a)
}

// settleAuction settles a reserve-met auction: the winning bid already sits
// in escrow, so the fund split, transfer, transitions, and record run on the
// shared settlement path.
func (e *Engine) settleAuction(ctx context.Context, l domain.Listing, a domain.Auction) (domain.TransactionRecord, error) {
	if err := e.guardUnsettled(ctx, l.ID); err != nil {
		return domain.TransactionRecord{}, err
	}

	txn := newSettlementTxn(e.logger)
	rec, err := e.settle(ctx, txn, l, &a, a.HighestBidder, a.HighestBid, 0)
	if err != nil {
		txn.rollback()
		return domain.TransactionRecord{}, fmt.Errorf("market: end auction %q: %w", l.ID, err)
	}
	txn.commit()

	e.finishSettlement(ctx, l, rec)
	return rec, nil
}

// closeUnsoldAuction ends an auction whose reserve was not met: any held
// bid is refunded, the listing is cancelled, the asset is left unlisted,
// and no transaction is recorded.
func (e *Engine) closeUnsoldAuction(ctx context.Context, l domain.Listing, a domain.Auction) error {
	txn := newSettlementTxn(e.logger)

	refundedBidder, refundedAmount := a.HighestBidder, a.HighestBid
	if err := e.refundHighestBid(ctx, txn, &a); err != nil {
		txn.rollback()
		return fmt.Errorf("market: end auction %q: %w", l.ID, err)
	}

	a.Status = domain.AuctionStatusSettled
	if err := e.updateAuction(ctx, txn, a); err != nil {
		txn.rollback()
		return fmt.Errorf("market: end auction %q: %w", l.ID, err)
	}
	if err := e.transitionListing(ctx, txn, l, domain.ListingStatusCancelled); err != nil {
		txn.rollback()
		return fmt.Errorf("market: end auction %q: %w", l.ID, err)
	}
	txn.commit()

	e.stats.AddActiveSupply(l.Category, -1)

	e.logger.InfoContext(ctx, "market: auction closed without sale",
		slog.String("listing_id", l.ID),
		slog.String("refunded_bidder", refundedBidder),
		slog.Int64("refunded_amount", refundedAmount),
	)
	return nil
}
