// Package openrouter implements a core.Collector for the OpenRouter API.
//
//	GET /api/v1/key           usage-to-date and optional credit limit
//	GET /api/v1/activity      per-generation token/cost entries, paged
//
// Balance is limit - usage when the key has a limit; unlimited plans leave
// it absent. The activity query is best-effort: its failure degrades token
// counts and cost to zero without failing the fetch.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/collectors/httpx"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"

	activityPageSize = 100
	maxActivityPages = 5
)

type keyResponse struct {
	Data keyData `json:"data"`
}

type keyData struct {
	Label          string   `json:"label"`
	Usage          float64  `json:"usage"`
	Limit          *float64 `json:"limit"`
	LimitRemaining *float64 `json:"limit_remaining"`
	IsFreeTier     bool     `json:"is_free_tier"`
}

type activityResponse struct {
	Data []activityEntry `json:"data"`
}

type activityEntry struct {
	Model            string  `json:"model"`
	TotalCost        float64 `json:"total_cost"`
	PromptTokens     int64   `json:"tokens_prompt"`
	CompletionTokens int64   `json:"tokens_completion"`
	NativeCached     int64   `json:"native_tokens_cached"`
	CreatedAt        string  `json:"created_at"`
}

// Collector implements core.Collector for OpenRouter.
type Collector struct {
	client *http.Client
}

func New() *Collector { return &Collector{} }

func (c *Collector) ID() string { return "openrouter" }

func (c *Collector) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:         "OpenRouter",
		Capabilities: []string{"credits_endpoint", "activity_endpoint"},
		DocURL:       "https://openrouter.ai/docs/api-reference/api-keys/get-current-key",
	}
}

func (c *Collector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}

func (c *Collector) FetchUsage(ctx context.Context, cfg core.CollectorConfig) (core.ProviderUsage, error) {
	if cfg.APIKey == "" {
		return core.ProviderUsage{}, fmt.Errorf("openrouter: %w", core.ErrNotConfigured)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	usage := core.ProviderUsage{
		Provider:  c.ID(),
		Timestamp: time.Now(),
		Raw:       make(map[string]string),
	}

	// 1. Credits: usage-to-date and the optional key limit.
	if err := c.fetchCredits(ctx, baseURL, cfg.APIKey, &usage); err != nil {
		return core.ProviderUsage{}, fmt.Errorf("openrouter: %w", err)
	}

	// 2. Activity: best-effort per-generation sums.
	if err := c.fetchActivity(ctx, baseURL, cfg.APIKey, &usage); err != nil {
		usage.Raw["activity_error"] = err.Error()
	}

	return usage, nil
}

func (c *Collector) fetchCredits(ctx context.Context, baseURL, apiKey string, usage *core.ProviderUsage) error {
	req, err := httpx.NewRequest(ctx, baseURL+"/key", apiKey, nil)
	if err != nil {
		return err
	}

	status, body, err := httpx.Do(c.client, req)
	if err != nil {
		return err
	}
	if httpx.IsAuthStatus(status) {
		return fmt.Errorf("HTTP %d: API key rejected", status)
	}
	if status != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", status, httpx.TruncateBody(body))
	}

	var resp keyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing key response: %w", err)
	}

	data := resp.Data
	if data.Limit != nil {
		usage.CreditLimitUSD = data.Limit
		remaining := *data.Limit - data.Usage
		if data.LimitRemaining != nil {
			remaining = *data.LimitRemaining
		}
		usage.BalanceUSD = core.Float64Ptr(remaining)
	}
	// No limit on the key means an unlimited plan: balance stays absent.

	usage.Raw["key_body"] = httpx.TruncateBody(body)
	usage.Raw["usage_to_date"] = fmt.Sprintf("%.6f", data.Usage)
	if data.Label != "" {
		usage.Raw["key_label"] = data.Label
	}
	if data.IsFreeTier {
		usage.Raw["tier"] = "free"
	}
	return nil
}

func (c *Collector) fetchActivity(ctx context.Context, baseURL, apiKey string, usage *core.ProviderUsage) error {
	entries := 0
	for page := 0; page < maxActivityPages; page++ {
		url := fmt.Sprintf("%s/activity?offset=%d&limit=%d", baseURL, page*activityPageSize, activityPageSize)
		req, err := httpx.NewRequest(ctx, url, apiKey, nil)
		if err != nil {
			return err
		}

		status, body, err := httpx.Do(c.client, req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("HTTP %d", status)
		}

		var resp activityResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parsing activity response: %w", err)
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, e := range resp.Data {
			usage.InputTokens += e.PromptTokens
			usage.OutputTokens += e.CompletionTokens
			usage.CacheReadTokens += e.NativeCached
			usage.CostUSD += e.TotalCost
		}
		entries += len(resp.Data)

		if len(resp.Data) < activityPageSize {
			break
		}
	}

	usage.Raw["activity_entries"] = fmt.Sprintf("%d", entries)
	return nil
}
