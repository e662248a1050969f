package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Static is an in-process asset registry for standalone mode and tests. It
// implements the same contract as the HTTP client without a network hop.
type Static struct {
	mu     sync.RWMutex
	owners map[string]string
	attrs  map[string]domain.SpaceAttributes
}

// NewStatic creates an empty in-process registry.
func NewStatic() *Static {
	return &Static{
		owners: make(map[string]string),
		attrs:  make(map[string]domain.SpaceAttributes),
	}
}

// Mint creates a new asset owned by the given account.
func (r *Static) Mint(_ context.Context, owner string, attrs domain.SpaceAttributes) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	attrs.AssetID = id
	r.owners[id] = owner
	r.attrs[id] = attrs
	return id, nil
}

// OwnerOf returns the current owner of an asset.
func (r *Static) OwnerOf(_ context.Context, assetID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[assetID]
	if !ok {
		return "", fmt.Errorf("registry: owner of %q: %w", assetID, domain.ErrNotFound)
	}
	return owner, nil
}

// Transfer moves ownership of an asset. The from account must be the
// current owner.
func (r *Static) Transfer(_ context.Context, assetID, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[assetID]
	if !ok {
		return fmt.Errorf("registry: transfer %q: %w", assetID, domain.ErrNotFound)
	}
	if owner != from {
		return fmt.Errorf("registry: transfer %q: %w", assetID, domain.ErrNotOwner)
	}
	r.owners[assetID] = to
	return nil
}

// Attributes returns the space attributes recorded for an asset.
func (r *Static) Attributes(_ context.Context, assetID string) (domain.SpaceAttributes, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attrs, ok := r.attrs[assetID]
	if !ok {
		return domain.SpaceAttributes{}, fmt.Errorf("registry: attributes of %q: %w", assetID, domain.ErrNotFound)
	}
	return attrs, nil
}

// Compile-time interface check.
var _ domain.AssetRegistry = (*Static)(nil)
