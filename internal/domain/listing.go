package domain

import "time"

// ListingStatus tracks the listing lifecycle. Sold and Cancelled are terminal.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// ListingKind distinguishes fixed-price listings from auction-backed ones.
type ListingKind string

const (
	ListingKindFixed   ListingKind = "fixed"
	ListingKindAuction ListingKind = "auction"
)

// Listing is an offer to sell a space token. Prices are integer cents.
// An asset has at most one active listing at any time across both kinds.
type Listing struct {
	ID             string        `json:"id"`
	AssetID        string        `json:"asset_id"`
	Seller         string        `json:"seller"`
	Kind           ListingKind   `json:"kind"`
	Category       string        `json:"category"`
	Price          int64         `json:"price"`
	AppraisedValue int64         `json:"appraised_value"`
	Status         ListingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Active reports whether the listing can still transact.
func (l Listing) Active() bool {
	return l.Status == ListingStatusActive
}

// AuctionStatus tracks the auction lifecycle. Settled is terminal.
type AuctionStatus string

const (
	AuctionStatusActive  AuctionStatus = "active"
	AuctionStatusSettled AuctionStatus = "settled"
)

// Auction is a time-boxed bidding process attached to a listing.
// Invariants: ReservePrice >= StartPrice; HighestBid is monotonically
// non-decreasing while active; HighestBidder is set iff HighestBid > 0.
type Auction struct {
	ListingID     string        `json:"listing_id"`
	StartPrice    int64         `json:"start_price"`
	ReservePrice  int64         `json:"reserve_price"`
	HighestBid    int64         `json:"highest_bid"`
	HighestBidder string        `json:"highest_bidder,omitempty"`
	EndTime       time.Time     `json:"end_time"`
	Status        AuctionStatus `json:"status"`
}

// Ended reports whether the auction's bidding window has passed.
func (a Auction) Ended(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// ReserveMet reports whether the highest bid qualifies for settlement.
func (a Auction) ReserveMet() bool {
	return a.HighestBidder != "" && a.HighestBid >= a.ReservePrice
}
