package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Create inserts a new auction keyed by its listing ID.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (
			listing_id, start_price, reserve_price,
			highest_bid, highest_bidder, end_time, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.ListingID, a.StartPrice, a.ReservePrice,
		a.HighestBid, a.HighestBidder, a.EndTime, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create auction %s: %w", a.ListingID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing auction.
func (s *AuctionStore) Update(ctx context.Context, a domain.Auction) error {
	const query = `
		UPDATE auctions
		SET highest_bid = $1, highest_bidder = $2, status = $3
		WHERE listing_id = $4`

	tag, err := s.pool.Exec(ctx, query,
		a.HighestBid, a.HighestBidder, string(a.Status), a.ListingID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update auction %s: %w", a.ListingID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const auctionSelectCols = `listing_id, start_price, reserve_price,
	highest_bid, highest_bidder, end_time, status`

func scanAuctionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Auction, error) {
	var a domain.Auction
	var status string

	err := scanner.Scan(
		&a.ListingID, &a.StartPrice, &a.ReservePrice,
		&a.HighestBid, &a.HighestBidder, &a.EndTime, &status,
	)
	if err != nil {
		return domain.Auction{}, err
	}

	a.Status = domain.AuctionStatus(status)
	return a, nil
}

// GetByListing retrieves the auction attached to a listing.
func (s *AuctionStore) GetByListing(ctx context.Context, listingID string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE listing_id = $1`, listingID)

	a, err := scanAuctionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", listingID, err)
	}
	return a, nil
}

// ListActive returns auctions that have not been settled yet, soonest ending
// first, with pagination.
func (s *AuctionStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions
		WHERE status = 'active' ORDER BY end_time ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active auctions: %w", err)
	}
	defer rows.Close()

	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuctionFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active auctions: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active auctions rows: %w", err)
	}
	return auctions, nil
}
