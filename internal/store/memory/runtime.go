package memory

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a per-key sliding window of
// timestamps. It is process-local; the redis implementation provides the
// distributed equivalent.
type RateLimiter struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	clock func() time.Time
}

// NewRateLimiter creates an in-process rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		hits:  make(map[string][]time.Time),
		clock: time.Now,
	}
}

// Allow records a hit for key and reports whether it stays within limit per
// window.
func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	cutoff := now.Add(-window)

	kept := r.hits[key][:0]
	for _, t := range r.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		r.hits[key] = kept
		return false, nil
	}
	r.hits[key] = append(kept, now)
	return true, nil
}

// LockManager implements domain.LockManager with per-key mutexes. TTL is
// ignored; an in-process holder always releases explicitly.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates an in-process lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the lock for key is held and returns its release
// function. The release function is idempotent.
func (m *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	var once sync.Once
	return func() { once.Do(l.Unlock) }, nil
}

// ValuationCache implements domain.ValuationCache on a map with per-entry
// expiry.
type ValuationCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedValuation
}

type cachedValuation struct {
	res     domain.ValuationResult
	expires time.Time
}

// NewValuationCache creates an in-process valuation cache. A zero ttl
// defaults to five minutes.
func NewValuationCache(ttl time.Duration) *ValuationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ValuationCache{
		ttl:     ttl,
		entries: make(map[string]cachedValuation),
	}
}

// Set stores a valuation result.
func (c *ValuationCache) Set(_ context.Context, assetID string, res domain.ValuationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assetID] = cachedValuation{res: res, expires: time.Now().Add(c.ttl)}
	return nil
}

// Get retrieves a cached result, or domain.ErrNotFound when absent or
// expired.
func (c *ValuationCache) Get(_ context.Context, assetID string) (domain.ValuationResult, error) {
	c.mu.RLock()
	e, ok := c.entries[assetID]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return domain.ValuationResult{}, domain.ErrNotFound
	}
	return e.res, nil
}

// Invalidate drops a cached result.
func (c *ValuationCache) Invalidate(_ context.Context, assetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, assetID)
	return nil
}

// SignalBus implements domain.SignalBus in process. Publish fans out to all
// matching subscribers; streams are append-only slices capped at maxLen.
type SignalBus struct {
	mu      sync.Mutex
	subs    []*memSub
	streams map[string][]domain.StreamMessage
	nextSeq map[string]int64
	maxLen  int
}

type memSub struct {
	pattern string
	ch      chan []byte
	done    <-chan struct{}
}

// NewSignalBus creates an in-process signal bus.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &SignalBus{
		streams: make(map[string][]domain.StreamMessage),
		nextSeq: make(map[string]int64),
		maxLen:  maxLen,
	}
}

// Publish delivers the payload to every subscriber whose pattern matches the
// channel. Slow subscribers drop messages rather than block the publisher.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[:0]
	for _, s := range b.subs {
		select {
		case <-s.done:
			close(s.ch)
			continue
		default:
		}
		kept = append(kept, s)
		if !channelMatches(s.pattern, channel) {
			continue
		}
		select {
		case s.ch <- payload:
		default:
		}
	}
	b.subs = kept
	return nil
}

// Subscribe returns a channel receiving payloads published to the given
// channel name or glob pattern. The channel is closed after ctx is done.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &memSub{
		pattern: channel,
		ch:      make(chan []byte, 64),
		done:    ctx.Done(),
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s.ch, nil
}

// StreamAppend appends the payload to a durable stream, trimming to maxLen.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq[stream]++
	msg := domain.StreamMessage{
		ID:      fmt.Sprintf("%d-0", b.nextSeq[stream]),
		Payload: payload,
	}
	entries := append(b.streams[stream], msg)
	if len(entries) > b.maxLen {
		entries = entries[len(entries)-b.maxLen:]
	}
	b.streams[stream] = entries
	return nil
}

// StreamRead returns up to count entries with IDs after lastID. An empty or
// "0" lastID reads from the beginning; nil is returned when nothing is newer.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	// "$" means only entries newer than the read; nothing qualifies yet.
	if lastID == "$" {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	after := streamSeq(lastID)
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if streamSeq(m.ID) <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}

// channelMatches reports whether a subscription pattern matches a channel
// name. Patterns without glob metacharacters compare exactly.
func channelMatches(pattern, channel string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == channel
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// streamSeq extracts the numeric sequence from a "seq-0" stream ID.
func streamSeq(id string) int64 {
	if id == "" || id == "0" {
		return 0
	}
	seq, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Compile-time interface checks.
var (
	_ domain.RateLimiter    = (*RateLimiter)(nil)
	_ domain.LockManager    = (*LockManager)(nil)
	_ domain.ValuationCache = (*ValuationCache)(nil)
	_ domain.SignalBus      = (*SignalBus)(nil)
)
