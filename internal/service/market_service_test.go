package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/funds"
	"github.com/voxelspace/spacemarket/internal/market"
	"github.com/voxelspace/spacemarket/internal/marketstats"
	"github.com/voxelspace/spacemarket/internal/registry"
	"github.com/voxelspace/spacemarket/internal/store/memory"
	"github.com/voxelspace/spacemarket/internal/valuation"
)

// stubLimiter answers every Allow call with a fixed verdict.
type stubLimiter struct {
	allow bool
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, nil
}

// stubNotifier records settlement alerts.
type stubNotifier struct {
	events []string
	recs   []domain.TransactionRecord
	err    error
}

func (n *stubNotifier) NotifySettlement(_ context.Context, event string, rec domain.TransactionRecord) error {
	n.events = append(n.events, event)
	n.recs = append(n.recs, rec)
	return n.err
}

// recordingLocks wraps the in-process lock manager and records every key.
type recordingLocks struct {
	domain.LockManager
	keys []string
	held error
}

func (l *recordingLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.keys = append(l.keys, key)
	if l.held != nil {
		return nil, l.held
	}
	return l.LockManager.Acquire(ctx, key, ttl)
}

type serviceEnv struct {
	reg    *registry.Static
	ledger *funds.Ledger
	limit  *stubLimiter
	locks  *recordingLocks
	bus    *memory.SignalBus
	audit  *memory.AuditStore
}

func newTestService(t *testing.T) (*MarketService, *serviceEnv) {
	t.Helper()
	env := &serviceEnv{
		reg:    registry.NewStatic(),
		ledger: funds.NewLedger(),
		limit:  &stubLimiter{allow: true},
		locks:  &recordingLocks{LockManager: memory.NewLockManager()},
		bus:    memory.NewSignalBus(0),
		audit:  memory.NewAuditStore(),
	}
	listings := memory.NewListingStore()
	auctions := memory.NewAuctionStore()
	txs := memory.NewTransactionStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := market.NewEngine(
		listings, auctions, txs,
		env.reg, env.ledger,
		valuation.NewEngine(valuation.DefaultConfig()),
		marketstats.New(0),
		market.DefaultConfig(),
		logger,
	)
	svc := NewMarketService(eng, listings, auctions, txs,
		env.limit, env.locks, env.bus, env.audit, logger, 30, time.Minute)
	return svc, env
}

func (env *serviceEnv) mint(t *testing.T, owner string) string {
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

func (env *serviceEnv) auditEvents(t *testing.T) []string {
	t.Helper()
	entries, err := env.audit.List(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	events := make([]string, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}
	return events
}

func TestWritesAreRateLimited(t *testing.T) {
	svc, env := newTestService(t)
	env.limit.allow = false
	ctx := context.Background()

	if _, err := svc.CreateListing(ctx, "a1", "alice", 1000); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := svc.BuyListing(ctx, "l1", "bob", 1000); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(env.limit.keys) != 2 || env.limit.keys[0] != "market:alice" || env.limit.keys[1] != "market:bob" {
		t.Fatalf("expected per-actor limiter keys, got %v", env.limit.keys)
	}
}

func TestWritesTakeDistributedLocks(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	l, err := svc.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := svc.BuyListing(ctx, l.ID, "bob", 100_000); err != nil {
		t.Fatalf("buy listing: %v", err)
	}

	want := []string{"asset:" + asset, "listing:" + l.ID}
	if len(env.locks.keys) != 2 || env.locks.keys[0] != want[0] || env.locks.keys[1] != want[1] {
		t.Fatalf("expected lock keys %v, got %v", want, env.locks.keys)
	}
}

func TestHeldLockRejectsWrite(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	l, err := svc.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	// Another replica holds the listing's lock.
	env.locks.held = domain.ErrLockHeld
	if _, err := svc.BuyListing(ctx, l.ID, "bob", 100_000); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	if err := svc.CancelListing(ctx, l.ID, "alice"); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	// The listing is untouched once the lock clears.
	env.locks.held = nil
	got, err := svc.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Status != domain.ListingStatusActive {
		t.Fatalf("expected listing still active, got %s", got.Status)
	}
}

func TestCreateListingPublishesAndAudits(t *testing.T) {
	svc, env := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asset := env.mint(t, "alice")

	events, err := env.bus.Subscribe(ctx, EventChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	l, err := svc.CreateListing(ctx, asset, "alice", 50_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}

	select {
	case payload := <-events:
		var evt map[string]string
		if err := json.Unmarshal(payload, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if evt["event"] != "listing_created" || evt["listing_id"] != l.ID {
			t.Fatalf("unexpected event payload: %v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected listing_created event")
	}

	got := env.auditEvents(t)
	if len(got) != 1 || got[0] != "listing_created" {
		t.Fatalf("expected listing_created audit entry, got %v", got)
	}
}

func TestBuyListingRecordsSettlement(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	notifier := &stubNotifier{}
	svc.SetNotifier(notifier)

	l, err := svc.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	rec, err := svc.BuyListing(ctx, l.ID, "bob", 100_000)
	if err != nil {
		t.Fatalf("buy listing: %v", err)
	}

	msgs, err := env.bus.StreamRead(ctx, SettlementStream, "", 10)
	if err != nil {
		t.Fatalf("stream read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 settlement stream entry, got %d", len(msgs))
	}
	var evt map[string]any
	if err := json.Unmarshal(msgs[0].Payload, &evt); err != nil {
		t.Fatalf("unmarshal settlement: %v", err)
	}
	if evt["event"] != "listing_settled" || evt["tx_id"] != rec.ID {
		t.Fatalf("unexpected settlement payload: %v", evt)
	}

	if len(notifier.events) != 1 || notifier.events[0] != "listing_settled" {
		t.Fatalf("expected one listing_settled alert, got %v", notifier.events)
	}
	if notifier.recs[0].ID != rec.ID {
		t.Fatalf("expected alert for tx %s, got %s", rec.ID, notifier.recs[0].ID)
	}
}

func TestNotifierFailureDoesNotFailSettlement(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")
	env.ledger.Deposit("bob", 100_000)

	svc.SetNotifier(&stubNotifier{err: errors.New("webhook down")})

	l, err := svc.CreateListing(ctx, asset, "alice", 100_000)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := svc.BuyListing(ctx, l.ID, "bob", 100_000); err != nil {
		t.Fatalf("expected settlement to succeed despite alert failure, got %v", err)
	}
}

func TestSetFeeRateRequiresOperator(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()

	if err := svc.SetFeeRate(ctx, 300, "mallory"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.SetFeeRate(ctx, 300, "operator"); err != nil {
		t.Fatalf("operator fee change: %v", err)
	}
	if got := svc.FeeRateBps(); got != 300 {
		t.Fatalf("expected fee rate 300, got %d", got)
	}

	events := env.auditEvents(t)
	if len(events) != 1 || events[0] != "fee_rate_changed" {
		t.Fatalf("expected fee_rate_changed audit entry, got %v", events)
	}
}

func TestEndAuctionWithoutSaleAuditsClosure(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	asset := env.mint(t, "alice")

	l, _, err := svc.CreateAuction(ctx, asset, "alice", 10_000, 50_000, 2*time.Hour)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}

	// Operator force-end before any bid; no settlement is recorded.
	rec, err := svc.EndAuction(ctx, l.ID, "operator")
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if rec.ID != "" {
		t.Fatalf("expected no settlement record, got %s", rec.ID)
	}

	msgs, err := env.bus.StreamRead(ctx, SettlementStream, "", 10)
	if err != nil {
		t.Fatalf("stream read: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty settlement stream, got %d entries", len(msgs))
	}

	events := env.auditEvents(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 audit entries, got %v", events)
	}
	closed := false
	for _, e := range events {
		if e == "auction_closed" {
			closed = true
		}
	}
	if !closed {
		t.Fatalf("expected auction_closed audit entry, got %v", events)
	}
}
