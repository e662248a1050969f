package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// ValuationService defines the methods the valuation handler requires from
// the service layer.
type ValuationService interface {
	Appraise(ctx context.Context, assetID string) (domain.ValuationResult, error)
	Invalidate(ctx context.Context, assetID string) error
}

// ValuationHandler serves appraisal HTTP endpoints.
type ValuationHandler struct {
	valuations ValuationService
	logger     *slog.Logger
}

// NewValuationHandler creates a ValuationHandler with the given service and
// logger.
func NewValuationHandler(valuations ValuationService, logger *slog.Logger) *ValuationHandler {
	return &ValuationHandler{
		valuations: valuations,
		logger:     logger,
	}
}

// Appraise estimates the value of an asset.
// GET /api/assets/{id}/valuation
func (h *ValuationHandler) Appraise(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	res, err := h.valuations.Appraise(r.Context(), id)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: appraise failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to appraise asset")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Invalidate drops the cached estimate for an asset.
// DELETE /api/assets/{id}/valuation
func (h *ValuationHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	if err := h.valuations.Invalidate(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: invalidate valuation failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to invalidate valuation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "invalidated",
		"asset_id": id,
	})
}
