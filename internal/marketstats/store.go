// Package marketstats maintains rolling per-category market statistics:
// bounded recent-transaction windows, incrementally updated averages, and
// trend coefficients. The store is an injectable instance created at engine
// start; there is no ambient singleton.
package marketstats

import (
	"sync"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

const (
	// DefaultWindowCap bounds the recent-transaction window per category.
	// Oldest entries are evicted FIFO.
	DefaultWindowCap = 100
	// trendMinSamples is the minimum window size before a trend is
	// reported; below it the trend is 0 (neutral), never an error.
	trendMinSamples = 10
	// trendSpan is the number of entries in each of the two means the
	// trend compares.
	trendSpan = 5
)

type categoryStats struct {
	recent       []int64 // most recent last
	sum          int64
	activeSupply int
	updatedAt    time.Time
}

// Store tracks rolling statistics per asset category. All methods are safe
// for concurrent use.
type Store struct {
	mu        sync.RWMutex
	windowCap int
	byCat     map[string]*categoryStats
}

// New creates a Store with the given recent-window capacity. A capacity of
// zero or less falls back to DefaultWindowCap.
func New(windowCap int) *Store {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Store{
		windowCap: windowCap,
		byCat:     make(map[string]*categoryStats),
	}
}

// RecordTransaction folds a settlement price into the category's rolling
// window and running average, evicting the oldest entry once the window is
// full.
func (s *Store) RecordTransaction(category string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.category(category)
	if len(cs.recent) == s.windowCap {
		cs.sum -= cs.recent[0]
		cs.recent = cs.recent[1:]
	}
	cs.recent = append(cs.recent, price)
	cs.sum += price
	cs.updatedAt = time.Now().UTC()
}

// RecordSettlement consumes a settlement event emitted by the marketplace
// engine. This is the feedback loop: completed sales reshape the statistics
// that future valuations read.
func (s *Store) RecordSettlement(evt domain.SettlementEvent) {
	s.RecordTransaction(evt.Category, evt.Price)
}

// SetActiveSupply updates the count of active listings for a category. The
// valuation engine reads it as the supply side of the market adjustment.
func (s *Store) SetActiveSupply(category string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.category(category)
	if count < 0 {
		count = 0
	}
	cs.activeSupply = count
}

// AddActiveSupply adjusts the active listing count by delta (listing
// created: +1, sold or cancelled: -1).
func (s *Store) AddActiveSupply(category string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.category(category)
	cs.activeSupply += delta
	if cs.activeSupply < 0 {
		cs.activeSupply = 0
	}
}

// Get returns a snapshot of the statistics for a category. Unknown
// categories return a zero-sample snapshot with neutral trend.
func (s *Store) Get(category string) domain.MarketStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.byCat[category]
	if !ok {
		return domain.MarketStats{Category: category}
	}

	stats := domain.MarketStats{
		Category:     category,
		SampleCount:  len(cs.recent),
		Trend:        trend(cs.recent),
		ActiveSupply: cs.activeSupply,
		UpdatedAt:    cs.updatedAt,
	}
	if n := len(cs.recent); n > 0 {
		stats.AveragePrice = float64(cs.sum) / float64(n)
	}
	return stats
}

// Trend returns the signed fractional price trend for a category: the
// change between the mean of the most recent trendSpan entries and the mean
// of the trendSpan entries before them.
func (s *Store) Trend(category string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.byCat[category]
	if !ok {
		return 0
	}
	return trend(cs.recent)
}

// Categories returns every category that has recorded at least one
// transaction or listing, in no particular order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byCat))
	for cat := range s.byCat {
		out = append(out, cat)
	}
	return out
}

// category returns the stats bucket for a category, creating it on first
// use. Callers must hold s.mu.
func (s *Store) category(cat string) *categoryStats {
	cs, ok := s.byCat[cat]
	if !ok {
		cs = &categoryStats{}
		s.byCat[cat] = cs
	}
	return cs
}

// trend computes the signed fraction between the two most recent
// trendSpan-sized means. Fewer than trendMinSamples entries yield 0.
func trend(recent []int64) float64 {
	if len(recent) < trendMinSamples {
		return 0
	}

	n := len(recent)
	latest := mean(recent[n-trendSpan:])
	previous := mean(recent[n-2*trendSpan : n-trendSpan])
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous
}

func mean(xs []int64) float64 {
	var sum int64
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
