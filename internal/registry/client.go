// Package registry provides clients for the external space token registry,
// the collaborator that owns minting and ownership. The marketplace queries
// owners and requests transfers; it never mutates ownership itself.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// Client is an HTTP client for a remote asset registry. Every call is
// bounded by the configured timeout; expiry or transport failure surfaces as
// domain.ErrRegistryUnavailable so callers can treat it as retryable.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a registry client for the given base URL. A zero
// timeout defaults to 5 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Mint requests a new space token for the given owner.
func (c *Client) Mint(ctx context.Context, owner string, attrs domain.SpaceAttributes) (string, error) {
	var resp struct {
		AssetID string `json:"asset_id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/assets", map[string]any{
		"owner":      owner,
		"attributes": attrs,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("registry: mint for %q: %w", owner, err)
	}
	return resp.AssetID, nil
}

// OwnerOf returns the current owner of an asset.
func (c *Client) OwnerOf(ctx context.Context, assetID string) (string, error) {
	var resp struct {
		Owner string `json:"owner"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/assets/"+assetID+"/owner", nil, &resp); err != nil {
		return "", fmt.Errorf("registry: owner of %q: %w", assetID, err)
	}
	return resp.Owner, nil
}

// Transfer requests an ownership transfer of an asset.
func (c *Client) Transfer(ctx context.Context, assetID, from, to string) error {
	err := c.do(ctx, http.MethodPost, "/v1/assets/"+assetID+"/transfer", map[string]any{
		"from": from,
		"to":   to,
	}, nil)
	if err != nil {
		return fmt.Errorf("registry: transfer %q: %w", assetID, err)
	}
	return nil
}

// Attributes returns the space attributes recorded for an asset.
func (c *Client) Attributes(ctx context.Context, assetID string) (domain.SpaceAttributes, error) {
	var attrs domain.SpaceAttributes
	if err := c.do(ctx, http.MethodGet, "/v1/assets/"+assetID, nil, &attrs); err != nil {
		return domain.SpaceAttributes{}, fmt.Errorf("registry: attributes of %q: %w", assetID, err)
	}
	return attrs, nil
}

// do performs a single registry request with the client timeout applied on
// top of the caller's context. Timeouts and transport errors map to
// domain.ErrRegistryUnavailable.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.ErrRegistryUnavailable
		}
		return fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrRegistryUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry rejected request: status %d: %s", resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AssetRegistry = (*Client)(nil)
