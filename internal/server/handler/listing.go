package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// ListingService defines the methods the listing handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type ListingService interface {
	CreateListing(ctx context.Context, assetID, seller string, price int64) (domain.Listing, error)
	UpdateListingPrice(ctx context.Context, listingID string, newPrice int64, caller string) (domain.Listing, error)
	CancelListing(ctx context.Context, listingID, caller string) error
	BuyListing(ctx context.Context, listingID, buyer string, payment int64) (domain.TransactionRecord, error)
	GetListing(ctx context.Context, listingID string) (domain.Listing, error)
	IsListed(ctx context.Context, assetID string) (bool, error)
	ListActiveListings(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error)
}

// ListingHandler serves listing-related HTTP endpoints.
type ListingHandler struct {
	listings ListingService
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler with the given service and logger.
func NewListingHandler(listings ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		logger:   logger,
	}
}

// createListingRequest is the body for POST /api/listings.
type createListingRequest struct {
	AssetID string `json:"asset_id"`
	Seller  string `json:"seller"`
	Price   int64  `json:"price"`
}

// CreateListing lists an asset at a fixed price.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AssetID == "" || req.Seller == "" {
		writeError(w, http.StatusBadRequest, "asset_id and seller are required")
		return
	}

	l, err := h.listings.CreateListing(r.Context(), req.AssetID, req.Seller, req.Price)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create listing failed",
			slog.String("asset_id", req.AssetID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}

	writeJSON(w, http.StatusCreated, l)
}

// listListingsResponse wraps the list endpoint output with metadata.
type listListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListListings returns active listings with pagination.
// GET /api/listings?limit=50&offset=0
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	listings, err := h.listings.ListActiveListings(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list listings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	writeJSON(w, http.StatusOK, listListingsResponse{
		Listings: listings,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// GetListing returns a single listing by its ID.
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	l, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, "listing not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get listing failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}

	writeJSON(w, http.StatusOK, l)
}

// updatePriceRequest is the body for PUT /api/listings/{id}/price.
type updatePriceRequest struct {
	Price  int64  `json:"price"`
	Caller string `json:"caller"`
}

// UpdatePrice changes the asking price of an active listing.
// PUT /api/listings/{id}/price
func (h *ListingHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	l, err := h.listings.UpdateListingPrice(r.Context(), id, req.Price, req.Caller)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update price failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update price")
		return
	}

	writeJSON(w, http.StatusOK, l)
}

// cancelListingRequest is the body for DELETE /api/listings/{id}.
type cancelListingRequest struct {
	Caller string `json:"caller"`
}

// CancelListing withdraws an active listing.
// DELETE /api/listings/{id}
func (h *ListingHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req cancelListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	if err := h.listings.CancelListing(r.Context(), id, req.Caller); err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel listing failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel listing")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "cancelled",
		"listing_id": id,
	})
}

// buyListingRequest is the body for POST /api/listings/{id}/buy.
type buyListingRequest struct {
	Buyer   string `json:"buyer"`
	Payment int64  `json:"payment"`
}

// BuyListing purchases a fixed-price listing.
// POST /api/listings/{id}/buy
func (h *ListingHandler) BuyListing(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req buyListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Buyer == "" {
		writeError(w, http.StatusBadRequest, "buyer is required")
		return
	}

	rec, err := h.listings.BuyListing(r.Context(), id, req.Buyer, req.Payment)
	if err != nil {
		if status := domainStatus(err); status != 0 {
			writeError(w, status, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: buy listing failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to buy listing")
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// IsListed reports whether an asset currently has an active listing.
// GET /api/assets/{id}/listed
func (h *ListingHandler) IsListed(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing asset id")
		return
	}

	listed, err := h.listings.IsListed(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: is listed failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to check listing status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": id,
		"listed":   listed,
	})
}
