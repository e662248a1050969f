package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore persists listings.
type ListingStore interface {
	Create(ctx context.Context, l Listing) error
	Update(ctx context.Context, l Listing) error
	GetByID(ctx context.Context, id string) (Listing, error)
	// GetActiveByAsset returns the active listing for an asset, or
	// ErrNotFound when the asset is unlisted.
	GetActiveByAsset(ctx context.Context, assetID string) (Listing, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Listing, error)
	CountActiveByCategory(ctx context.Context, category string) (int, error)
}

// AuctionStore persists auctions, keyed by their listing ID.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	Update(ctx context.Context, a Auction) error
	GetByListing(ctx context.Context, listingID string) (Auction, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Auction, error)
}

// TransactionStore persists the append-only settlement history.
type TransactionStore interface {
	Append(ctx context.Context, rec TransactionRecord) error
	ListByListing(ctx context.Context, listingID string) ([]TransactionRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]TransactionRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
