package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
// The transactions table is append-only; settled records are never updated.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given
// connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Append records a settled transaction.
func (s *TransactionStore) Append(ctx context.Context, rec domain.TransactionRecord) error {
	const query = `
		INSERT INTO transactions (
			id, listing_id, asset_id, seller, buyer,
			price, fee, category, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.ListingID, rec.AssetID, rec.Seller, rec.Buyer,
		rec.Price, rec.Fee, rec.Category, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append transaction %s: %w", rec.ID, err)
	}
	return nil
}

const transactionSelectCols = `id, listing_id, asset_id, seller, buyer,
	price, fee, category, ts`

func scanTransactionRows(rows pgx.Rows) ([]domain.TransactionRecord, error) {
	var recs []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		err := rows.Scan(
			&rec.ID, &rec.ListingID, &rec.AssetID, &rec.Seller, &rec.Buyer,
			&rec.Price, &rec.Fee, &rec.Category, &rec.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ListByListing returns all transactions recorded for a listing, oldest first.
func (s *TransactionStore) ListByListing(ctx context.Context, listingID string) ([]domain.TransactionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions
		 WHERE listing_id = $1 ORDER BY ts ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for listing %s: %w", listingID, err)
	}
	defer rows.Close()

	recs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions for listing %s: %w", listingID, err)
	}
	return recs, nil
}

// ListRecent returns transactions newest first with pagination and optional
// time filtering.
func (s *TransactionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	query := `SELECT ` + transactionSelectCols + ` FROM transactions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts DESC"

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
		return nil, fmt.Errorf("postgres: list recent transactions: %w", err)
	}
	defer rows.Close()

	recs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent transactions: %w", err)
	}
	return recs, nil
}
