package core

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by FetchUsage when the required credential
// is missing. Aggregation treats it as "skip", not as a provider failure.
var ErrNotConfigured = errors.New("collector not configured")

// ErrProviderNotFound marks a lookup for a provider id that is not
// registered or not enabled.
var ErrProviderNotFound = errors.New("provider not found")

// CollectorConfig is the per-provider runtime configuration resolved by the
// host for each invocation. It is never cached by the core.
type CollectorConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"` // custom API base URL
	Enabled bool   `json:"enabled"`
}

type ProviderInfo struct {
	Name         string   // e.g. "OpenAI", "Moonshot"
	Capabilities []string // "usage_endpoint", "balance_endpoint", "credits_endpoint", ...
	DocURL       string   // link to the vendor's usage/billing documentation
}

// Collector translates one provider's API into the canonical usage model.
//
// FetchUsage returns a fully populated ProviderUsage (zero-filled where data
// is unavailable) or an error for genuine failures: missing credential,
// transport failure, auth rejection, fatal malformed payload. Optional
// sub-endpoints that fail degrade to zero/absent fields instead of aborting
// the fetch, with the failure recorded in ProviderUsage.Raw.
type Collector interface {
	ID() string

	Describe() ProviderInfo

	// IsConfigured is a pure predicate with no I/O.
	IsConfigured(cfg CollectorConfig) bool

	FetchUsage(ctx context.Context, cfg CollectorConfig) (ProviderUsage, error)
}

// ConnectionTester is optionally implemented by collectors with a cheaper
// probe than a full fetch.
type ConnectionTester interface {
	TestConnection(ctx context.Context, cfg CollectorConfig) error
}

// TestConnection probes c, using its ConnectionTester implementation when
// present and discarding a full FetchUsage result otherwise.
func TestConnection(ctx context.Context, c Collector, cfg CollectorConfig) error {
	if t, ok := c.(ConnectionTester); ok {
		return t.TestConnection(ctx, cfg)
	}
	_, err := c.FetchUsage(ctx, cfg)
	return err
}

// ConfigResolver maps a provider id to its runtime configuration. Supplied
// by the host (env vars, credentials file, or both).
type ConfigResolver func(providerID string) CollectorConfig
