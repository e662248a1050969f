package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/marketstats"
	"github.com/voxelspace/spacemarket/internal/valuation"
)

// ValuationService answers appraisal requests, caching results so bursts of
// requests for the same asset do not hit the registry repeatedly.
type ValuationService struct {
	engine   *valuation.Engine
	registry domain.AssetRegistry
	cache    domain.ValuationCache
	stats    *marketstats.Store
	logger   *slog.Logger
	timeout  time.Duration
}

// NewValuationService creates a ValuationService. cache may be nil, in which
// case every request recomputes the estimate.
func NewValuationService(
	engine *valuation.Engine,
	registry domain.AssetRegistry,
	cache domain.ValuationCache,
	stats *marketstats.Store,
	logger *slog.Logger,
	timeout time.Duration,
) *ValuationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ValuationService{
		engine:   engine,
		registry: registry,
		cache:    cache,
		stats:    stats,
		logger:   logger,
		timeout:  timeout,
	}
}

// Appraise estimates the value of an asset from its attributes and the
// current market stats for its category.
func (s *ValuationService) Appraise(ctx context.Context, assetID string) (domain.ValuationResult, error) {
	if s.cache != nil {
		res, err := s.cache.Get(ctx, assetID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "valuation_service: cache read failed",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
		}
	}

	attrs, err := s.attributesOf(ctx, assetID)
	if err != nil {
		return domain.ValuationResult{}, err
	}

	res := s.engine.Assess(attrs, s.stats.Get(attrs.Category()))

	if s.cache != nil {
		if err := s.cache.Set(ctx, assetID, res); err != nil {
			s.logger.WarnContext(ctx, "valuation_service: cache write failed",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

// attributesOf fetches asset attributes from the registry, bounded by the
// configured timeout.
func (s *ValuationService) attributesOf(ctx context.Context, assetID string) (domain.SpaceAttributes, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	attrs, err := s.registry.Attributes(ctx, assetID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.SpaceAttributes{}, fmt.Errorf("valuation_service: attributes %q: %w", assetID, domain.ErrRegistryUnavailable)
		}
		return domain.SpaceAttributes{}, fmt.Errorf("valuation_service: attributes %q: %w", assetID, err)
	}
	return attrs, nil
}

// Invalidate drops a cached estimate, forcing recomputation on the next
// request. No-op without a cache.
func (s *ValuationService) Invalidate(ctx context.Context, assetID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, assetID)
}

// MarketStats returns the current stats snapshot for a category.
func (s *ValuationService) MarketStats(category string) domain.MarketStats {
	return s.stats.Get(category)
}

// AllStats returns stats snapshots for every category seen so far.
func (s *ValuationService) AllStats() []domain.MarketStats {
	cats := s.stats.Categories()
	out := make([]domain.MarketStats, 0, len(cats))
	for _, c := range cats {
		out = append(out, s.stats.Get(c))
	}
	return out
}
