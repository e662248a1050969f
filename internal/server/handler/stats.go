package handler

import (
	"log/slog"
	"net/http"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// StatsService defines the methods the stats handler requires from the
// service layer. Stats snapshots are in-process reads, so no context is
// needed.
type StatsService interface {
	MarketStats(category string) domain.MarketStats
	AllStats() []domain.MarketStats
}

// StatsHandler serves market statistics HTTP endpoints.
type StatsHandler struct {
	stats  StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler with the given service and logger.
func NewStatsHandler(stats StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger,
	}
}

// listStatsResponse wraps the list endpoint output.
type listStatsResponse struct {
	Stats []domain.MarketStats `json:"stats"`
}

// ListStats returns stats snapshots for every category seen so far.
// GET /api/stats
func (h *StatsHandler) ListStats(w http.ResponseWriter, r *http.Request) {
	stats := h.stats.AllStats()
	if stats == nil {
		stats = []domain.MarketStats{}
	}
	writeJSON(w, http.StatusOK, listStatsResponse{Stats: stats})
}

// GetStats returns the current stats snapshot for one category. Categories
// with no recorded activity return a zero-valued snapshot, not a 404.
// GET /api/stats/{category}
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "missing category")
		return
	}

	writeJSON(w, http.StatusOK, h.stats.MarketStats(category))
}
