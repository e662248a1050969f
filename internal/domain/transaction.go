package domain

import "time"

// TransactionRecord is an immutable record of a completed sale or auction
// settlement. Records form the audit trail and the market statistics input;
// they are appended exactly once per settlement and never mutated.
type TransactionRecord struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AssetID   string    `json:"asset_id"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer"`
	Price     int64     `json:"price"`
	Fee       int64     `json:"fee"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// SettlementEvent is emitted exactly once per completed sale and consumed by
// the market statistics store to update category averages and trends.
type SettlementEvent struct {
	Category  string    `json:"category"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
