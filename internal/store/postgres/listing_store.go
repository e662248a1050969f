package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Create inserts a new listing. The partial unique index on active listings
// rejects a second active row for the same asset; that violation is mapped
// to ErrAlreadyListed.
func (s *ListingStore) Create(ctx context.Context, l domain.Listing) error {
	const query = `
		INSERT INTO listings (
			id, asset_id, seller, kind, price, appraised_value,
			status, category, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.AssetID, l.Seller, string(l.Kind),
		l.Price, l.AppraisedValue,
		string(l.Status), l.Category, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyListed
		}
		return fmt.Errorf("postgres: create listing %s: %w", l.ID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing listing.
func (s *ListingStore) Update(ctx context.Context, l domain.Listing) error {
	const query = `
		UPDATE listings
		SET price = $1, appraised_value = $2, status = $3, updated_at = $4
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query,
		l.Price, l.AppraisedValue, string(l.Status), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const listingSelectCols = `id, asset_id, seller, kind, price, appraised_value,
	status, category, created_at, updated_at`

func scanListingFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Listing, error) {
	var l domain.Listing
	var kind, status string

	err := scanner.Scan(
		&l.ID, &l.AssetID, &l.Seller, &kind,
		&l.Price, &l.AppraisedValue,
		&status, &l.Category, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	l.Kind = domain.ListingKind(kind)
	l.Status = domain.ListingStatus(status)
	return l, nil
}

func scanListingRows(rows pgx.Rows) ([]domain.Listing, error) {
	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListingFromRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetByID retrieves a single listing by ID.
func (s *ListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM listings WHERE id = $1`, id)

	l, err := scanListingFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s: %w", id, err)
	}
	return l, nil
}

// GetActiveByAsset retrieves the active listing for an asset, if any.
func (s *ListingStore) GetActiveByAsset(ctx context.Context, assetID string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE asset_id = $1 AND status = 'active'`, assetID)

	l, err := scanListingFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get active listing for asset %s: %w", assetID, err)
	}
	return l, nil
}

// ListActive returns active listings with pagination and optional time filtering.
func (s *ListingStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error) {
	query := `SELECT ` + listingSelectCols + ` FROM listings WHERE status = 'active'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list active listings: %w", err)
	}
	defer rows.Close()

	listings, err := scanListingRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active listings: %w", err)
	}
	return listings, nil
}

// CountActiveByCategory counts active listings in the given category.
func (s *ListingStore) CountActiveByCategory(ctx context.Context, category string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE status = 'active' AND category = $1`,
		category,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count active listings in %s: %w", category, err)
	}
	return n, nil
}
