package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidDuration     = errors.New("invalid auction duration")
	ErrAlreadyListed       = errors.New("asset already listed")
	ErrNotOwner            = errors.New("seller does not own asset")
	ErrNotActive           = errors.New("listing not active")
	ErrNotSeller           = errors.New("caller is not the seller")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientPayment = errors.New("payment below listing price")
	ErrSelfPurchase        = errors.New("buyer is the seller")
	ErrSelfBid             = errors.New("bidder is the seller")
	ErrAuctionEnded        = errors.New("auction has ended")
	ErrTooEarly            = errors.New("auction has not ended yet")
	ErrBidTooLow           = errors.New("bid below minimum increment")
	ErrNoAuction           = errors.New("listing has no auction")
	ErrRegistryUnavailable = errors.New("asset registry unavailable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDoubleSettlement    = errors.New("listing already settled")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
)
