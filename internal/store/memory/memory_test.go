package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

func TestListingStoreLifecycle(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()

	l := domain.Listing{
		ID:        "l1",
		AssetID:   "a1",
		Seller:    "alice",
		Status:    domain.ListingStatusActive,
		Category:  "modern",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Create(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetByID(ctx, "l1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Seller != "alice" {
		t.Fatalf("expected seller alice, got %s", got.Seller)
	}

	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	active, err := s.GetActiveByAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("get active by asset: %v", err)
	}
	if active.ID != "l1" {
		t.Fatalf("expected listing l1, got %s", active.ID)
	}

	l.Status = domain.ListingStatusSold
	if err := s.Update(ctx, l); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.GetActiveByAsset(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no active listing after sale, got %v", err)
	}

	if err := s.Update(ctx, domain.Listing{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing listing, got %v", err)
	}
}

func TestListingStoreCountActiveByCategory(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()

	for i, cat := range []string{"modern", "modern", "fantasy"} {
		l := domain.Listing{
			ID:       string(rune('a' + i)),
			AssetID:  string(rune('x' + i)),
			Category: cat,
			Status:   domain.ListingStatusActive,
		}
		if err := s.Create(ctx, l); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	n, err := s.CountActiveByCategory(ctx, "modern")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active modern listings, got %d", n)
	}
}

func TestListActivePagination(t *testing.T) {
	s := NewListingStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l := domain.Listing{
			ID:        string(rune('a' + i)),
			AssetID:   string(rune('v' + i)),
			Status:    domain.ListingStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Create(ctx, l); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := s.ListActive(ctx, domain.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page))
	}
	// Newest first; offset 1 skips the newest.
	if page[0].ID != "d" {
		t.Fatalf("expected listing d first, got %s", page[0].ID)
	}
}

func TestTransactionStoreTimeWindow(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		rec := domain.TransactionRecord{
			ID:        string(rune('a' + i)),
			ListingID: "l1",
			Timestamp: base.AddDate(0, i, 0),
		}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	cutoff := base.AddDate(0, 2, 0)
	old, err := s.ListRecent(ctx, domain.ListOpts{Until: &cutoff})
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(old) != 2 {
		t.Fatalf("expected 2 records before cutoff, got %d", len(old))
	}
	for _, r := range old {
		if !r.Timestamp.Before(cutoff) {
			t.Fatalf("record %s at %s not before cutoff", r.ID, r.Timestamp)
		}
	}

	recent, err := s.ListRecent(ctx, domain.ListOpts{Since: &cutoff})
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records from cutoff, got %d", len(recent))
	}
	// Newest first.
	if recent[0].Timestamp.Before(recent[1].Timestamp) {
		t.Fatal("expected newest-first ordering")
	}

	byListing, err := s.ListByListing(ctx, "l1")
	if err != nil {
		t.Fatalf("list by listing: %v", err)
	}
	if len(byListing) != 4 {
		t.Fatalf("expected all 4 records, got %d", len(byListing))
	}
}

func TestAuditStoreAssignsIDs(t *testing.T) {
	s := NewAuditStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Log(ctx, "listing_created", map[string]any{"n": i}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	entries, err := s.List(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	seen := map[int64]bool{}
	for _, e := range entries {
		if seen[e.ID] {
			t.Fatalf("duplicate audit id %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAuctionStoreListActiveOrder(t *testing.T) {
	s := NewAuctionStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, offset := range []int{3, 1, 2} {
		a := domain.Auction{
			ListingID: string(rune('a' + i)),
			Status:    domain.AuctionStatusActive,
			EndTime:   base.Add(time.Duration(offset) * time.Hour),
		}
		if err := s.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := s.ListActive(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 auctions, got %d", len(active))
	}
	// Soonest ending first.
	if active[0].ListingID != "b" || active[2].ListingID != "a" {
		t.Fatalf("unexpected order: %s %s %s", active[0].ListingID, active[1].ListingID, active[2].ListingID)
	}
}
