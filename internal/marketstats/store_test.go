package marketstats

import (
	"math"
	"testing"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

func TestGetUnknownCategory(t *testing.T) {
	s := New(0)
	stats := s.Get("modern")
	if stats.Category != "modern" {
		t.Fatalf("expected category modern, got %s", stats.Category)
	}
	if stats.SampleCount != 0 || stats.AveragePrice != 0 || stats.Trend != 0 {
		t.Fatalf("expected zero snapshot, got %+v", stats)
	}
}

func TestRecordTransactionAverage(t *testing.T) {
	s := New(0)
	s.RecordTransaction("modern", 100)
	s.RecordTransaction("modern", 200)
	s.RecordTransaction("modern", 300)

	stats := s.Get("modern")
	if stats.SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", stats.SampleCount)
	}
	if stats.AveragePrice != 200 {
		t.Fatalf("expected average 200, got %f", stats.AveragePrice)
	}
}

func TestWindowEviction(t *testing.T) {
	s := New(5)
	for i := 1; i <= 8; i++ {
		s.RecordTransaction("modern", int64(i*100))
	}

	stats := s.Get("modern")
	if stats.SampleCount != 5 {
		t.Fatalf("expected window capped at 5, got %d", stats.SampleCount)
	}
	// Window holds 400..800; average is 600.
	if stats.AveragePrice != 600 {
		t.Fatalf("expected average 600 after eviction, got %f", stats.AveragePrice)
	}
}

func TestTrendNeedsMinimumSamples(t *testing.T) {
	s := New(0)
	for i := 0; i < 9; i++ {
		s.RecordTransaction("modern", 100)
	}
	if got := s.Trend("modern"); got != 0 {
		t.Fatalf("expected neutral trend under 10 samples, got %f", got)
	}
}

func TestTrendComparesRecentMeans(t *testing.T) {
	s := New(0)
	// Five settlements at 100, then five at 150: trend is +0.5.
	for i := 0; i < 5; i++ {
		s.RecordTransaction("modern", 100)
	}
	for i := 0; i < 5; i++ {
		s.RecordTransaction("modern", 150)
	}

	got := s.Trend("modern")
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected trend 0.5, got %f", got)
	}

	stats := s.Get("modern")
	if math.Abs(stats.Trend-0.5) > 1e-9 {
		t.Fatalf("expected snapshot trend 0.5, got %f", stats.Trend)
	}
}

func TestTrendDecline(t *testing.T) {
	s := New(0)
	for i := 0; i < 5; i++ {
		s.RecordTransaction("modern", 200)
	}
	for i := 0; i < 5; i++ {
		s.RecordTransaction("modern", 100)
	}
	if got := s.Trend("modern"); math.Abs(got+0.5) > 1e-9 {
		t.Fatalf("expected trend -0.5, got %f", got)
	}
}

func TestActiveSupplyFloorsAtZero(t *testing.T) {
	s := New(0)
	s.AddActiveSupply("modern", 2)
	s.AddActiveSupply("modern", -5)
	if got := s.Get("modern").ActiveSupply; got != 0 {
		t.Fatalf("expected supply floored at 0, got %d", got)
	}

	s.SetActiveSupply("modern", -3)
	if got := s.Get("modern").ActiveSupply; got != 0 {
		t.Fatalf("expected set supply floored at 0, got %d", got)
	}
}

func TestRecordSettlementEvent(t *testing.T) {
	s := New(0)
	s.RecordSettlement(domain.SettlementEvent{
		Category:  "fantasy",
		Price:     5_000,
		Timestamp: time.Now().UTC(),
	})

	stats := s.Get("fantasy")
	if stats.SampleCount != 1 {
		t.Fatalf("expected 1 sample, got %d", stats.SampleCount)
	}
	if stats.AveragePrice != 5_000 {
		t.Fatalf("expected average 5000, got %f", stats.AveragePrice)
	}
}

func TestCategories(t *testing.T) {
	s := New(0)
	s.RecordTransaction("modern", 100)
	s.AddActiveSupply("fantasy", 1)

	cats := s.Categories()
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d: %v", len(cats), cats)
	}
}
