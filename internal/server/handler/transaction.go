package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// TransactionService defines the methods the transaction handler requires
// from the service layer.
type TransactionService interface {
	GetTransactionHistory(ctx context.Context, listingID string) ([]domain.TransactionRecord, error)
	ListRecentTransactions(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error)
	FeeRateBps() int
	SetFeeRate(ctx context.Context, bps int, caller string) error
}

// TransactionHandler serves settlement history and fee administration
// endpoints.
type TransactionHandler struct {
	txs    TransactionService
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler with the given service
// and logger.
func NewTransactionHandler(txs TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		txs:    txs,
		logger: logger,
	}
}

// listTransactionsResponse wraps the list endpoint output with metadata.
type listTransactionsResponse struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// ListRecent returns settlements newest first with pagination.
// GET /api/transactions?limit=50&offset=0
func (h *TransactionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	recs, err := h.txs.ListRecentTransactions(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transactions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if recs == nil {
		recs = []domain.TransactionRecord{}
	}

	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Transactions: recs,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	})
}

// ListByListing returns the settlement history for a listing.
// GET /api/listings/{id}/transactions
func (h *TransactionHandler) ListByListing(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	recs, err := h.txs.GetTransactionHistory(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: transaction history failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get transaction history")
		return
	}
	if recs == nil {
		recs = []domain.TransactionRecord{}
	}

	writeJSON(w, http.StatusOK, listTransactionsResponse{Transactions: recs})
}

// GetFeeRate returns the current platform fee rate.
// GET /api/fees
func (h *TransactionHandler) GetFeeRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"fee_rate_bps": h.txs.FeeRateBps(),
	})
}

// setFeeRateRequest is the body for PUT /api/fees.
type setFeeRateRequest struct {
	FeeRateBps int    `json:"fee_rate_bps"`
	Caller     string `json:"caller"`
}

// SetFeeRate changes the platform fee rate. Operator only.
// PUT /api/fees
func (h *TransactionHandler) SetFeeRate(w http.ResponseWriter, r *http.Request) {
	var req setFeeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	if err := h.txs.SetFeeRate(r.Context(), req.FeeRateBps, req.Caller); err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: set fee rate failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set fee rate")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"fee_rate_bps": req.FeeRateBps,
	})
}
