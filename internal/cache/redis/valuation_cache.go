package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxelspace/spacemarket/internal/domain"
)

const valuationTTL = 5 * time.Minute

// ValuationCache implements domain.ValuationCache using Redis strings with
// JSON-serialized ValuationResult data and a 5-minute TTL. A stale estimate
// is cheap; a recomputed one hits the registry and the market stats on every
// request.
type ValuationCache struct {
	rdb *redis.Client
}

// NewValuationCache creates a ValuationCache backed by the given Client.
func NewValuationCache(c *Client) *ValuationCache {
	return &ValuationCache{rdb: c.Underlying()}
}

func valuationKey(assetID string) string { return namespaced("valuation", assetID) }

// Set stores a valuation result for an asset with the default TTL.
func (vc *ValuationCache) Set(ctx context.Context, assetID string, res domain.ValuationResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal valuation %s: %w", assetID, err)
	}

	if err := vc.rdb.Set(ctx, valuationKey(assetID), data, valuationTTL).Err(); err != nil {
		return fmt.Errorf("redis: set valuation %s: %w", assetID, err)
	}
	return nil
}

// Get retrieves a cached valuation result for an asset.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (vc *ValuationCache) Get(ctx context.Context, assetID string) (domain.ValuationResult, error) {
	data, err := vc.rdb.Get(ctx, valuationKey(assetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ValuationResult{}, domain.ErrNotFound
		}
		return domain.ValuationResult{}, fmt.Errorf("redis: get valuation %s: %w", assetID, err)
	}

	var res domain.ValuationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.ValuationResult{}, fmt.Errorf("redis: unmarshal valuation %s: %w", assetID, err)
	}
	return res, nil
}

// Invalidate removes a cached valuation, forcing the next request to
// recompute. Called after settlements shift the market stats for an asset's
// category.
func (vc *ValuationCache) Invalidate(ctx context.Context, assetID string) error {
	if err := vc.rdb.Del(ctx, valuationKey(assetID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate valuation %s: %w", assetID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ValuationCache = (*ValuationCache)(nil)
