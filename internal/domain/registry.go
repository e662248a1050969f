package domain

import "context"

// AssetRegistry is the external ownership registry for space tokens. The
// marketplace never mutates ownership directly; it only queries owners and
// requests transfers. Implementations must bound every call by the context
// deadline; expiry surfaces as ErrRegistryUnavailable and leaves marketplace
// state unchanged.
type AssetRegistry interface {
	Mint(ctx context.Context, owner string, attrs SpaceAttributes) (assetID string, err error)
	OwnerOf(ctx context.Context, assetID string) (owner string, err error)
	Transfer(ctx context.Context, assetID, from, to string) error
	// Attributes returns the space attributes recorded for an asset.
	Attributes(ctx context.Context, assetID string) (SpaceAttributes, error)
}
