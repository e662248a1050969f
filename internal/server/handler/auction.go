package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// AuctionService defines the methods the auction handler requires from the
// service layer.
type AuctionService interface {
	CreateAuction(ctx context.Context, assetID, seller string, startPrice, reservePrice int64, duration time.Duration) (domain.Listing, domain.Auction, error)
	PlaceBid(ctx context.Context, listingID, bidder string, amount int64) (domain.Auction, error)
	EndAuction(ctx context.Context, listingID, caller string) (domain.TransactionRecord, error)
	GetAuction(ctx context.Context, listingID string) (domain.Auction, error)
	ListActiveAuctions(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error)
}

// AuctionHandler serves auction-related HTTP endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given service and logger.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		logger:   logger,
	}
}

// createAuctionRequest is the body for POST /api/auctions.
type createAuctionRequest struct {
	AssetID      string `json:"asset_id"`
	Seller       string `json:"seller"`
	StartPrice   int64  `json:"start_price"`
	ReservePrice int64  `json:"reserve_price"`
	Duration     string `json:"duration"`
}

// createAuctionResponse bundles the listing and its auction.
type createAuctionResponse struct {
	Listing domain.Listing `json:"listing"`
	Auction domain.Auction `json:"auction"`
}

// CreateAuction lists an asset for auction.
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AssetID == "" || req.Seller == "" {
		writeError(w, http.StatusBadRequest, "asset_id and seller are required")
		return
	}

	dur, err := time.ParseDuration(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration: "+req.Duration)
		return
	}

	l, a, err := h.auctions.CreateAuction(r.Context(), req.AssetID, req.Seller, req.StartPrice, req.ReservePrice, dur)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create auction failed",
			slog.String("asset_id", req.AssetID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create auction")
		return
	}

	writeJSON(w, http.StatusCreated, createAuctionResponse{Listing: l, Auction: a})
}

// listAuctionsResponse wraps the list endpoint output with metadata.
type listAuctionsResponse struct {
	Auctions []domain.Auction `json:"auctions"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListAuctions returns active auctions, soonest ending first.
// GET /api/auctions?limit=50&offset=0
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	auctions, err := h.auctions.ListActiveAuctions(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list auctions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}

	writeJSON(w, http.StatusOK, listAuctionsResponse{
		Auctions: auctions,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// GetAuction returns the auction attached to a listing.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	a, err := h.auctions.GetAuction(r.Context(), id)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, "auction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get auction failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get auction")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// placeBidRequest is the body for POST /api/auctions/{id}/bids.
type placeBidRequest struct {
	Bidder string `json:"bidder"`
	Amount int64  `json:"amount"`
}

// PlaceBid places a bid on an active auction.
// POST /api/auctions/{id}/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Bidder == "" {
		writeError(w, http.StatusBadRequest, "bidder is required")
		return
	}

	a, err := h.auctions.PlaceBid(r.Context(), id, req.Bidder, req.Amount)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place bid failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place bid")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// endAuctionRequest is the body for POST /api/auctions/{id}/end.
type endAuctionRequest struct {
	Caller string `json:"caller"`
}

// EndAuction finalizes an auction after its deadline (or early, for the
// operator). The response carries the settlement record when the reserve was
// met, or a closed status otherwise.
// POST /api/auctions/{id}/end
func (h *AuctionHandler) EndAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req endAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	rec, err := h.auctions.EndAuction(r.Context(), id, req.Caller)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: end auction failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to end auction")
		return
	}

	if rec.ID == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "closed",
			"listing_id": id,
		})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
