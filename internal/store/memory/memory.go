// Package memory implements the domain store interfaces on an in-process
// key-value map. It backs standalone mode and tests; the postgres package
// provides the durable implementation of the same interfaces.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// ListingStore implements domain.ListingStore in memory.
type ListingStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Listing
}

// NewListingStore creates an empty listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{byID: make(map[string]domain.Listing)}
}

// Create inserts a new listing.
func (s *ListingStore) Create(_ context.Context, l domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[l.ID] = l
	return nil
}

// Update replaces an existing listing.
func (s *ListingStore) Update(_ context.Context, l domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[l.ID]; !ok {
		return domain.ErrNotFound
	}
	s.byID[l.ID] = l
	return nil
}

// GetByID retrieves a listing.
func (s *ListingStore) GetByID(_ context.Context, id string) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

// GetActiveByAsset returns the active listing for an asset, if any.
func (s *ListingStore) GetActiveByAsset(_ context.Context, assetID string) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.byID {
		if l.AssetID == assetID && l.Active() {
			return l, nil
		}
	}
	return domain.Listing{}, domain.ErrNotFound
}

// ListActive returns active listings, newest first.
func (s *ListingStore) ListActive(_ context.Context, opts domain.ListOpts) ([]domain.Listing, error) {
	s.mu.RLock()
	var active []domain.Listing
	for _, l := range s.byID {
		if l.Active() {
			active = append(active, l)
		}
	}
	s.mu.RUnlock()

	active = filterByTime(active, opts, func(l domain.Listing) time.Time { return l.CreatedAt })
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return paginate(active, opts), nil
}

// CountActiveByCategory counts active listings in the given category.
func (s *ListingStore) CountActiveByCategory(_ context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.byID {
		if l.Active() && l.Category == category {
			n++
		}
	}
	return n, nil
}

// AuctionStore implements domain.AuctionStore in memory.
type AuctionStore struct {
	mu        sync.RWMutex
	byListing map[string]domain.Auction
}

// NewAuctionStore creates an empty auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{byListing: make(map[string]domain.Auction)}
}

// Create inserts a new auction.
func (s *AuctionStore) Create(_ context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byListing[a.ListingID] = a
	return nil
}

// Update replaces an existing auction.
func (s *AuctionStore) Update(_ context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byListing[a.ListingID]; !ok {
		return domain.ErrNotFound
	}
	s.byListing[a.ListingID] = a
	return nil
}

// GetByListing retrieves the auction attached to a listing.
func (s *AuctionStore) GetByListing(_ context.Context, listingID string) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byListing[listingID]
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

// ListActive returns active auctions ordered by end time.
func (s *AuctionStore) ListActive(_ context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	var active []domain.Auction
	for _, a := range s.byListing {
		if a.Status == domain.AuctionStatusActive {
			active = append(active, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		return active[i].EndTime.Before(active[j].EndTime)
	})
	return paginate(active, opts), nil
}

// TransactionStore implements domain.TransactionStore in memory. Appends
// only; records are never mutated or deleted.
type TransactionStore struct {
	mu   sync.RWMutex
	recs []domain.TransactionRecord
}

// NewTransactionStore creates an empty transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{}
}

// Append adds a settlement record to the history.
func (s *TransactionStore) Append(_ context.Context, rec domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// ListByListing returns the records for one listing, oldest first.
func (s *TransactionStore) ListByListing(_ context.Context, listingID string) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TransactionRecord
	for _, r := range s.recs {
		if r.ListingID == listingID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecent returns recent records, newest first.
func (s *TransactionStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	out := make([]domain.TransactionRecord, len(s.recs))
	copy(out, s.recs)
	s.mu.RUnlock()

	out = filterByTime(out, opts, func(r domain.TransactionRecord) time.Time { return r.Timestamp })
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return paginate(out, opts), nil
}

// AuditStore implements domain.AuditStore in memory.
type AuditStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{nextID: 1}
}

// Log appends an audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	out := make([]domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	s.mu.Unlock()

	out = filterByTime(out, opts, func(e domain.AuditEntry) time.Time { return e.CreatedAt })
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

// filterByTime keeps entries within the half-open window [Since, Until).
func filterByTime[T any](xs []T, opts domain.ListOpts, at func(T) time.Time) []T {
	if opts.Since == nil && opts.Until == nil {
		return xs
	}
	out := xs[:0]
	for _, x := range xs {
		t := at(x)
		if opts.Since != nil && t.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && !t.Before(*opts.Until) {
			continue
		}
		out = append(out, x)
	}
	return out
}

// paginate applies ListOpts limit/offset to a sorted slice.
func paginate[T any](xs []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(xs) {
			return nil
		}
		xs = xs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(xs) {
		xs = xs[:opts.Limit]
	}
	return xs
}

// Compile-time interface checks.
var (
	_ domain.ListingStore     = (*ListingStore)(nil)
	_ domain.AuctionStore     = (*AuctionStore)(nil)
	_ domain.TransactionStore = (*TransactionStore)(nil)
	_ domain.AuditStore       = (*AuditStore)(nil)
)
