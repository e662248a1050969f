package domain

import (
	"context"
	"time"
)

// ValuationCache provides short-lived caching of valuation results so bursts
// of appraisal requests for the same asset do not recompute the estimate.
type ValuationCache interface {
	Set(ctx context.Context, assetID string, res ValuationResult) error
	Get(ctx context.Context, assetID string) (ValuationResult, error)
	Invalidate(ctx context.Context, assetID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for market events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
