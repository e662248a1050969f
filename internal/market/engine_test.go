package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/funds"
	"github.com/voxelspace/spacemarket/internal/marketstats"
	"github.com/voxelspace/spacemarket/internal/registry"
	"github.com/voxelspace/spacemarket/internal/store/memory"
	"github.com/voxelspace/spacemarket/internal/valuation"
)

// flakyRegistry wraps the static registry with injectable transfer failures.
type flakyRegistry struct {
	domain.AssetRegistry
	failTransfer bool
}

func (r *flakyRegistry) Transfer(ctx context.Context, assetID, from, to string) error {
	if r.failTransfer {
		return errors.New("registry offline")
	}
	return r.AssetRegistry.Transfer(ctx, assetID, from, to)
}

type testEnv struct {
	reg      *flakyRegistry
	ledger   *funds.Ledger
	stats    *marketstats.Store
	listings *memory.ListingStore
	auctions *memory.AuctionStore
	txs      *memory.TransactionStore
	now      time.Time
}

func newTestEngine(t *testing.T) (*Engine, *testEnv) {
	t.Helper()
	env := &testEnv{
		reg:      &flakyRegistry{AssetRegistry: registry.NewStatic()},
		ledger:   funds.NewLedger(),
		stats:    marketstats.New(0),
		listings: memory.NewListingStore(),
		auctions: memory.NewAuctionStore(),
		txs:      memory.NewTransactionStore(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := NewEngine(
		env.listings, env.auctions, env.txs,
		env.reg, env.ledger,
		valuation.NewEngine(valuation.DefaultConfig()),
		env.stats,
		DefaultConfig(),
		logger,
	)
	eng.WithClock(func() time.Time { return env.now })
	return eng, env
}

func (env *testEnv) mint(t *testing.T, owner string) string {
	t.Helper()
	id, err := env.reg.Mint(context.Background(), owner, domain.SpaceAttributes{
		Style:      domain.StyleModern,
		Dimensions: domain.Dimensions{Width: 20, Height: 5, Depth: 20},
	})
	if err != nil {
		t.Fatalf("mint asset: %v", err)
	}
	return id
}

func (env *testEnv) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := env.ledger.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return b
}

func TestCreateListing(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	l, err := eng.CreateListing(ctx, asset, "alice", 50_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if l.Status != domain.ListingStatusActive {
		t.Fatalf("expected active status, got %s", l.Status)
	}
	if l.Kind != domain.ListingKindFixed {
		t.Fatalf("expected fixed kind, got %s", l.Kind)
	}
	if l.Category != string(domain.StyleModern) {
		t.Fatalf("expected modern category, got %s", l.Category)
	}
	if l.AppraisedValue <= 0 {
		t.Fatalf("expected positive appraised value, got %d", l.AppraisedValue)
	}

	listed, err := eng.IsListed(ctx, asset)
	if err != nil {
		t.Fatalf("is listed: %v", err)
	}
	if !listed {
		t.Fatal("expected asset to be listed")
	}
}

func TestCreateListingRejections(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	if _, err := eng.CreateListing(ctx, asset, "alice", 0); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := eng.CreateListing(ctx, asset, "mallory", 10_000); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	if _, err := eng.CreateListing(ctx, asset, "alice", 10_000); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := eng.CreateListing(ctx, asset, "alice", 20_000); !errors.Is(err, domain.ErrAlreadyListed) {
		t.Fatalf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestCreateListingConcurrentSingleWinner(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.CreateListing(ctx, asset, "alice", 10_000)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrAlreadyListed):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 successful create, got %d", created)
	}
}

func TestUpdateListingPrice(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	l, err := eng.CreateListing(ctx, asset, "alice", 10_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	if _, err := eng.UpdateListingPrice(ctx, l.ID, 12_000, "mallory"); !errors.Is(err, domain.ErrNotSeller) {
		t.Fatalf("expected ErrNotSeller, got %v", err)
	}
	if _, err := eng.UpdateListingPrice(ctx, l.ID, -5, "alice"); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}

	updated, err := eng.UpdateListingPrice(ctx, l.ID, 12_000, "alice")
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if updated.Price != 12_000 {
		t.Fatalf("expected price 12000, got %d", updated.Price)
	}
}

func TestCancelListing(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()

	t.Run("by seller", func(t *testing.T) {
		asset := env.mint(t, "alice")
		l, _ := eng.CreateListing(ctx, asset, "alice", 10_000)
		if err := eng.CancelListing(ctx, l.ID, "alice"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		listed, _ := eng.IsListed(ctx, asset)
		if listed {
			t.Fatal("expected asset unlisted after cancel")
		}
		// A second cancel finds the listing no longer active.
		if err := eng.CancelListing(ctx, l.ID, "alice"); !errors.Is(err, domain.ErrNotActive) {
			t.Fatalf("expected ErrNotActive, got %v", err)
		}
	})

	t.Run("by operator", func(t *testing.T) {
		asset := env.mint(t, "alice")
		l, _ := eng.CreateListing(ctx, asset, "alice", 10_000)
		if err := eng.CancelListing(ctx, l.ID, "operator"); err != nil {
			t.Fatalf("operator cancel: %v", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		asset := env.mint(t, "alice")
		l, _ := eng.CreateListing(ctx, asset, "alice", 10_000)
		if err := eng.CancelListing(ctx, l.ID, "mallory"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestBuyListingFeeSplit(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	l, err := eng.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	rec, err := eng.BuyListing(ctx, l.ID, "bob", 100_000)
	if err != nil {
		t.Fatalf("buy listing: %v", err)
	}

	// 2.5% of 100000 cents.
	if rec.Fee != 2_500 {
		t.Fatalf("expected fee 2500, got %d", rec.Fee)
	}
	if got := env.balance(t, "alice"); got != 97_500 {
		t.Fatalf("expected seller proceeds 97500, got %d", got)
	}
	if got := env.balance(t, domain.PlatformAccount); got != 2_500 {
		t.Fatalf("expected platform fee 2500, got %d", got)
	}
	if got := env.balance(t, "bob"); got != 0 {
		t.Fatalf("expected buyer balance 0, got %d", got)
	}
	if got := env.balance(t, domain.EscrowAccount); got != 0 {
		t.Fatalf("expected empty escrow, got %d", got)
	}

	owner, err := env.reg.OwnerOf(ctx, asset)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != "bob" {
		t.Fatalf("expected bob to own asset, got %s", owner)
	}

	got, err := eng.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Status != domain.ListingStatusSold {
		t.Fatalf("expected sold status, got %s", got.Status)
	}

	hist, err := eng.GetTransactionHistory(ctx, l.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 record, got %d", len(hist))
	}
}

func TestBuyListingOverpaymentRefunded(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 150_000)

	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)
	rec, err := eng.BuyListing(ctx, l.ID, "bob", 150_000)
	if err != nil {
		t.Fatalf("buy listing: %v", err)
	}
	if rec.Price != 100_000 {
		t.Fatalf("expected record price 100000, got %d", rec.Price)
	}
	if got := env.balance(t, "bob"); got != 50_000 {
		t.Fatalf("expected overpayment refunded, buyer balance 50000, got %d", got)
	}
}

func TestBuyListingRejections(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)

	if _, err := eng.BuyListing(ctx, l.ID, "alice", 100_000); !errors.Is(err, domain.ErrSelfPurchase) {
		t.Fatalf("expected ErrSelfPurchase, got %v", err)
	}
	if _, err := eng.BuyListing(ctx, l.ID, "bob", 99_999); !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if _, err := eng.BuyListing(ctx, "missing", "bob", 100_000); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuyListingInsufficientFunds(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 10)

	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)
	if _, err := eng.BuyListing(ctx, l.ID, "bob", 100_000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, _ := eng.GetListing(ctx, l.ID)
	if got.Status != domain.ListingStatusActive {
		t.Fatalf("expected listing still active, got %s", got.Status)
	}
}

func TestBuyListingRollbackOnTransferFailure(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)

	env.reg.failTransfer = true
	if _, err := eng.BuyListing(ctx, l.ID, "bob", 100_000); err == nil {
		t.Fatal("expected buy to fail on transfer error")
	}

	// Every prior effect rolls back: funds restored, listing untouched,
	// no record appended.
	if got := env.balance(t, "bob"); got != 100_000 {
		t.Fatalf("expected buyer refunded in full, got %d", got)
	}
	if got := env.balance(t, "alice"); got != 0 {
		t.Fatalf("expected seller unpaid after rollback, got %d", got)
	}
	if got := env.balance(t, domain.EscrowAccount); got != 0 {
		t.Fatalf("expected empty escrow after rollback, got %d", got)
	}
	listing, _ := eng.GetListing(ctx, l.ID)
	if listing.Status != domain.ListingStatusActive {
		t.Fatalf("expected listing still active, got %s", listing.Status)
	}
	hist, _ := eng.GetTransactionHistory(ctx, l.ID)
	if len(hist) != 0 {
		t.Fatalf("expected no transaction record, got %d", len(hist))
	}

	// Retry succeeds once the registry recovers.
	env.reg.failTransfer = false
	if _, err := eng.BuyListing(ctx, l.ID, "bob", 100_000); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestSetFeeRate(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()

	if err := eng.SetFeeRate(501); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected rejection above max, got %v", err)
	}
	if err := eng.SetFeeRate(-1); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected rejection below zero, got %v", err)
	}

	// The fee is computed from the current rate at settlement time, not the
	// rate at listing time.
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)
	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)

	if err := eng.SetFeeRate(500); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	rec, err := eng.BuyListing(ctx, l.ID, "bob", 100_000)
	if err != nil {
		t.Fatalf("buy listing: %v", err)
	}
	if rec.Fee != 5_000 {
		t.Fatalf("expected fee 5000 at 5%%, got %d", rec.Fee)
	}
}

func TestCreateAuctionRejections(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	if _, _, err := eng.CreateAuction(ctx, asset, "alice", 0, 100, 2*time.Hour); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero start, got %v", err)
	}
	if _, _, err := eng.CreateAuction(ctx, asset, "alice", 1_000, 500, 2*time.Hour); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for reserve below start, got %v", err)
	}
	if _, _, err := eng.CreateAuction(ctx, asset, "alice", 1_000, 1_000, time.Minute); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for short auction, got %v", err)
	}
	if _, _, err := eng.CreateAuction(ctx, asset, "alice", 1_000, 1_000, 30*24*time.Hour); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for long auction, got %v", err)
	}
}

func TestPlaceBidRefundBeforeAccept(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 10_000)
	env.ledger.Deposit("carol", 20_000)

	l, _, err := eng.CreateAuction(ctx, asset, "alice", 10_000, 10_000, 2*time.Hour)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}

	// First bid below start price.
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 9_999); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow, got %v", err)
	}

	a, err := eng.PlaceBid(ctx, l.ID, "bob", 10_000)
	if err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if a.HighestBid != 10_000 || a.HighestBidder != "bob" {
		t.Fatalf("unexpected auction state: %+v", a)
	}
	if got := env.balance(t, "bob"); got != 0 {
		t.Fatalf("expected bob's deposit held, balance %d", got)
	}

	// Next bid must clear the 5% increment.
	if _, err := eng.PlaceBid(ctx, l.ID, "carol", 10_400); !errors.Is(err, domain.ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow under increment, got %v", err)
	}

	a, err = eng.PlaceBid(ctx, l.ID, "carol", 10_500)
	if err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if a.HighestBidder != "carol" {
		t.Fatalf("expected carol highest, got %s", a.HighestBidder)
	}
	// Bob is refunded the moment he is outbid.
	if got := env.balance(t, "bob"); got != 10_000 {
		t.Fatalf("expected bob refunded in full, got %d", got)
	}
	if got := env.balance(t, domain.EscrowAccount); got != 10_500 {
		t.Fatalf("expected only carol's bid in escrow, got %d", got)
	}
}

func TestPlaceBidRejections(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 50_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 10_000, 2*time.Hour)

	if _, err := eng.PlaceBid(ctx, l.ID, "alice", 10_000); !errors.Is(err, domain.ErrSelfBid) {
		t.Fatalf("expected ErrSelfBid, got %v", err)
	}

	env.now = env.now.Add(3 * time.Hour)
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 10_000); !errors.Is(err, domain.ErrAuctionEnded) {
		t.Fatalf("expected ErrAuctionEnded, got %v", err)
	}
}

func TestEndAuctionReserveMet(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 20_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 12_000, 2*time.Hour)
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 12_000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// Too early for a non-operator.
	if _, err := eng.EndAuction(ctx, l.ID, "alice"); !errors.Is(err, domain.ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}

	env.now = env.now.Add(3 * time.Hour)
	rec, err := eng.EndAuction(ctx, l.ID, "alice")
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if rec.Price != 12_000 {
		t.Fatalf("expected settlement at 12000, got %d", rec.Price)
	}
	if rec.Fee != 300 {
		t.Fatalf("expected fee 300, got %d", rec.Fee)
	}
	if got := env.balance(t, "alice"); got != 11_700 {
		t.Fatalf("expected seller proceeds 11700, got %d", got)
	}

	owner, _ := env.reg.OwnerOf(ctx, asset)
	if owner != "bob" {
		t.Fatalf("expected bob to own asset, got %s", owner)
	}
	a, err := eng.GetAuction(ctx, l.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if a.Status != domain.AuctionStatusSettled {
		t.Fatalf("expected settled auction, got %s", a.Status)
	}
}

func TestEndAuctionReserveNotMet(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 20_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 15_000, 2*time.Hour)
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 10_000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	env.now = env.now.Add(3 * time.Hour)
	rec, err := eng.EndAuction(ctx, l.ID, "alice")
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if rec.ID != "" {
		t.Fatalf("expected no settlement record, got %+v", rec)
	}

	// The held bid is refunded, the listing is cancelled, the asset stays
	// with the seller.
	if got := env.balance(t, "bob"); got != 20_000 {
		t.Fatalf("expected bob refunded, got %d", got)
	}
	owner, _ := env.reg.OwnerOf(ctx, asset)
	if owner != "alice" {
		t.Fatalf("expected alice to keep asset, got %s", owner)
	}
	listing, _ := eng.GetListing(ctx, l.ID)
	if listing.Status != domain.ListingStatusCancelled {
		t.Fatalf("expected cancelled listing, got %s", listing.Status)
	}
	listed, _ := eng.IsListed(ctx, asset)
	if listed {
		t.Fatal("expected asset unlisted after unsold close")
	}
}

func TestEndAuctionOperatorForceEnd(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 20_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 10_000, 2*time.Hour)
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 10_000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// The operator may force-end before the deadline.
	rec, err := eng.EndAuction(ctx, l.ID, "operator")
	if err != nil {
		t.Fatalf("operator end: %v", err)
	}
	if rec.Buyer != "bob" {
		t.Fatalf("expected bob as buyer, got %s", rec.Buyer)
	}
}

func TestCancelAuctionRefundsHeldBid(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 10_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 10_000, 2*time.Hour)
	if _, err := eng.PlaceBid(ctx, l.ID, "bob", 10_000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := eng.CancelListing(ctx, l.ID, "alice"); err != nil {
		t.Fatalf("cancel auction listing: %v", err)
	}
	if got := env.balance(t, "bob"); got != 10_000 {
		t.Fatalf("expected held bid refunded on cancel, got %d", got)
	}
}

func TestBuyRejectsAuctionListing(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 20_000)

	l, _, _ := eng.CreateAuction(ctx, asset, "alice", 10_000, 10_000, 2*time.Hour)
	if _, err := eng.BuyListing(ctx, l.ID, "bob", 10_000); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected direct purchase of auction rejected, got %v", err)
	}
}

func TestMinNextBidRoundsUp(t *testing.T) {
	eng, _ := newTestEngine(t)

	tests := []struct {
		name    string
		auction domain.Auction
		want    int64
	}{
		{name: "no bids yet", auction: domain.Auction{StartPrice: 500}, want: 500},
		{name: "exact increment", auction: domain.Auction{StartPrice: 500, HighestBid: 10_000}, want: 10_500},
		{name: "rounds up", auction: domain.Auction{StartPrice: 500, HighestBid: 101}, want: 107},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.minNextBid(tt.auction); got != tt.want {
				t.Fatalf("expected min next bid %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCreateListingVerifiedPremium(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()

	asset, err := env.reg.Mint(ctx, "alice", domain.SpaceAttributes{
		Style:    domain.StyleCyberpunk,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	l, err := eng.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	// Verified assets carry a fixed 10% premium over the asking price.
	if l.AppraisedValue != 110_000 {
		t.Fatalf("expected appraised 110000, got %d", l.AppraisedValue)
	}
}

func TestSettlementFeedsMarketStats(t *testing.T) {
	eng, env := newTestEngine(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	l, _ := eng.CreateListing(ctx, asset, "alice", 100_000)

	stats := env.stats.Get(string(domain.StyleModern))
	if stats.ActiveSupply != 1 {
		t.Fatalf("expected active supply 1 after listing, got %d", stats.ActiveSupply)
	}

	if _, err := eng.BuyListing(ctx, l.ID, "bob", 100_000); err != nil {
		t.Fatalf("buy: %v", err)
	}

	stats = env.stats.Get(string(domain.StyleModern))
	if stats.SampleCount != 1 {
		t.Fatalf("expected 1 settlement sample, got %d", stats.SampleCount)
	}
	if stats.ActiveSupply != 0 {
		t.Fatalf("expected active supply back to 0, got %d", stats.ActiveSupply)
	}
	if stats.AveragePrice != 100_000 {
		t.Fatalf("expected average price 100000, got %f", stats.AveragePrice)
	}
}
