package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
	"github.com/voxelspace/spacemarket/internal/marketstats"
	"github.com/voxelspace/spacemarket/internal/registry"
	"github.com/voxelspace/spacemarket/internal/store/memory"
	"github.com/voxelspace/spacemarket/internal/valuation"
)

// countingRegistry tracks attribute lookups and can simulate a registry that
// never answers before the caller's deadline.
type countingRegistry struct {
	domain.AssetRegistry
	attrCalls int
	hang      bool
}

func (r *countingRegistry) Attributes(ctx context.Context, assetID string) (domain.SpaceAttributes, error) {
	r.attrCalls++
	if r.hang {
		<-ctx.Done()
		return domain.SpaceAttributes{}, ctx.Err()
	}
	return r.AssetRegistry.Attributes(ctx, assetID)
}

func newValuationService(t *testing.T, reg *countingRegistry, cache domain.ValuationCache, timeout time.Duration) *ValuationService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewValuationService(
		valuation.NewEngine(valuation.DefaultConfig()),
		reg, cache, marketstats.New(0), logger, timeout,
	)
}

func TestAppraiseCachesResult(t *testing.T) {
	reg := &countingRegistry{AssetRegistry: registry.NewStatic()}
	svc := newValuationService(t, reg, memory.NewValuationCache(time.Minute), 0)
	ctx := context.Background()

	asset, err := reg.Mint(ctx, "alice", domain.SpaceAttributes{
		Style:      domain.StyleModern,
		Dimensions: domain.Dimensions{Width: 20, Height: 5, Depth: 20},
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	first, err := svc.Appraise(ctx, asset)
	if err != nil {
		t.Fatalf("appraise: %v", err)
	}
	second, err := svc.Appraise(ctx, asset)
	if err != nil {
		t.Fatalf("appraise cached: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical cached result, got %+v vs %+v", first, second)
	}
	if reg.attrCalls != 1 {
		t.Fatalf("expected 1 registry lookup, got %d", reg.attrCalls)
	}

	// Invalidation forces a fresh lookup.
	if err := svc.Invalidate(ctx, asset); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.Appraise(ctx, asset); err != nil {
		t.Fatalf("appraise after invalidate: %v", err)
	}
	if reg.attrCalls != 2 {
		t.Fatalf("expected 2 registry lookups after invalidate, got %d", reg.attrCalls)
	}
}

func TestAppraiseWithoutCacheRecomputes(t *testing.T) {
	reg := &countingRegistry{AssetRegistry: registry.NewStatic()}
	svc := newValuationService(t, reg, nil, 0)
	ctx := context.Background()

	asset, err := reg.Mint(ctx, "alice", domain.SpaceAttributes{Style: domain.StyleModern})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Appraise(ctx, asset); err != nil {
			t.Fatalf("appraise: %v", err)
		}
	}
	if reg.attrCalls != 3 {
		t.Fatalf("expected 3 registry lookups without cache, got %d", reg.attrCalls)
	}
}

func TestAppraiseRegistryTimeout(t *testing.T) {
	reg := &countingRegistry{AssetRegistry: registry.NewStatic(), hang: true}
	svc := newValuationService(t, reg, nil, 20*time.Millisecond)

	_, err := svc.Appraise(context.Background(), "a1")
	if !errors.Is(err, domain.ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestAppraiseUnknownAsset(t *testing.T) {
	reg := &countingRegistry{AssetRegistry: registry.NewStatic()}
	svc := newValuationService(t, reg, nil, 0)

	_, err := svc.Appraise(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllStatsCoversSeenCategories(t *testing.T) {
	reg := &countingRegistry{AssetRegistry: registry.NewStatic()}
	stats := marketstats.New(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewValuationService(
		valuation.NewEngine(valuation.DefaultConfig()),
		reg, nil, stats, logger, 0,
	)

	stats.RecordTransaction("modern", 100)
	stats.RecordTransaction("cyberpunk", 200)

	all := svc.AllStats()
	if len(all) != 2 {
		t.Fatalf("expected stats for 2 categories, got %d", len(all))
	}
	if svc.MarketStats("modern").SampleCount != 1 {
		t.Fatalf("expected 1 modern sample, got %d", svc.MarketStats("modern").SampleCount)
	}
}
