package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxelspace/spacemarket/internal/domain"
)

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoAuction, http.StatusNotFound},
		{domain.ErrInvalidPrice, http.StatusBadRequest},
		{domain.ErrInvalidDuration, http.StatusBadRequest},
		{domain.ErrBidTooLow, http.StatusBadRequest},
		{domain.ErrSelfPurchase, http.StatusBadRequest},
		{domain.ErrSelfBid, http.StatusBadRequest},
		{domain.ErrInsufficientPayment, http.StatusPaymentRequired},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{domain.ErrNotOwner, http.StatusForbidden},
		{domain.ErrNotSeller, http.StatusForbidden},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrAlreadyListed, http.StatusConflict},
		{domain.ErrNotActive, http.StatusConflict},
		{domain.ErrAuctionEnded, http.StatusConflict},
		{domain.ErrTooEarly, http.StatusConflict},
		{domain.ErrDoubleSettlement, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrRegistryUnavailable, http.StatusBadGateway},
		{errors.New("something else"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := domainStatus(tt.err); got != tt.want {
				t.Fatalf("domainStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDomainStatusUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("market: buy %q: %w", "l1", domain.ErrNotActive)
	if got := domainStatus(err); got != http.StatusConflict {
		t.Fatalf("expected 409 for wrapped ErrNotActive, got %d", got)
	}
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"limit=10&offset=5", 10, 5},
		{"limit=9999", 500, 0},
		{"limit=-3&offset=-1", 50, 0},
		{"limit=abc", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/listings?"+tt.query, nil)
			opts := parseListOpts(r)
			if opts.Limit != tt.wantLimit || opts.Offset != tt.wantOffset {
				t.Fatalf("got limit=%d offset=%d, want limit=%d offset=%d",
					opts.Limit, opts.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "invalid price")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := w.Body.String(); body != `{"error":"invalid price"}` {
		t.Fatalf("unexpected body %q", body)
	}
}
