// Package anthropic implements a core.Collector for the Anthropic admin
// usage API.
//
//	GET /v1/organizations/usage_report/messages?starting_at=&ending_at=
//
// One query over the current calendar month; input/output/cache-read/
// cache-write tokens and cost are summed across the returned entries.
// Anthropic exposes no balance endpoint, so BalanceUSD stays absent. Keys
// without admin scope get HTTP 403/404 here; that degrades to all-zero
// usage instead of failing the fetch.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/collectors/httpx"
	"github.com/janekbaraniewski/tokendash/internal/core"
	"github.com/janekbaraniewski/tokendash/internal/pricing"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type usageReportResponse struct {
	Data []usageBucket `json:"data"`
}

type usageBucket struct {
	StartingAt string        `json:"starting_at"`
	EndingAt   string        `json:"ending_at"`
	Results    []usageResult `json:"results"`
}

type usageResult struct {
	Model                    string  `json:"model"`
	UncachedInputTokens      int64   `json:"uncached_input_tokens"`
	OutputTokens             int64   `json:"output_tokens"`
	CacheReadInputTokens     int64   `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64   `json:"cache_creation_input_tokens"`
	CostUSD                  float64 `json:"cost_usd"`
}

// Collector implements core.Collector for Anthropic.
type Collector struct {
	client *http.Client
}

func New() *Collector { return &Collector{} }

func (c *Collector) ID() string { return "anthropic" }

func (c *Collector) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:         "Anthropic",
		Capabilities: []string{"usage_endpoint"},
		DocURL:       "https://docs.anthropic.com/en/api/usage-cost-api",
	}
}

func (c *Collector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}

func (c *Collector) FetchUsage(ctx context.Context, cfg core.CollectorConfig) (core.ProviderUsage, error) {
	if cfg.APIKey == "" {
		return core.ProviderUsage{}, fmt.Errorf("anthropic: %w", core.ErrNotConfigured)
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

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	url := fmt.Sprintf("%s/v1/organizations/usage_report/messages?starting_at=%s&ending_at=%s",
		baseURL, monthStart.Format(time.RFC3339), now.Format(time.RFC3339))

	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
		"Content-Type":      "application/json",
		"Authorization":     "", // x-api-key replaces the bearer default
	}

	req, err := httpx.NewRequest(ctx, url, cfg.APIKey, headers)
	if err != nil {
		return core.ProviderUsage{}, fmt.Errorf("anthropic: %w", err)
	}

	status, body, err := httpx.Do(c.client, req)
	if err != nil {
		return core.ProviderUsage{}, fmt.Errorf("anthropic: %w", err)
	}

	switch {
	case status == http.StatusUnauthorized:
		return core.ProviderUsage{}, fmt.Errorf("anthropic: HTTP %d: API key rejected", status)
	case status == http.StatusForbidden || status == http.StatusNotFound:
		// Key lacks admin scope for the usage report. Zero usage, not an error.
		usage.Raw["usage_error"] = fmt.Sprintf("HTTP %d: usage report unavailable for this key", status)
		return usage, nil
	case status != http.StatusOK:
		return core.ProviderUsage{}, fmt.Errorf("anthropic: HTTP %d: %s", status, httpx.TruncateBody(body))
	}

	var report usageReportResponse
	if err := json.Unmarshal(body, &report); err != nil {
		return core.ProviderUsage{}, fmt.Errorf("anthropic: parsing usage report: %w", err)
	}

	var lastModel string
	var results int
	for _, bucket := range report.Data {
		for _, r := range bucket.Results {
			usage.InputTokens += r.UncachedInputTokens
			usage.OutputTokens += r.OutputTokens
			usage.CacheReadTokens += r.CacheReadInputTokens
			usage.CacheWriteTokens += r.CacheCreationInputTokens
			usage.CostUSD += r.CostUSD
			if r.Model != "" {
				lastModel = r.Model
			}
			results++
		}
	}

	if usage.CostUSD == 0 && usage.InputTokens+usage.OutputTokens > 0 {
		usage.CostUSD = pricing.EstimateCostUSD(lastModel, usage.InputTokens, usage.OutputTokens)
		usage.Raw["cost_estimated"] = "true"
	}

	usage.Raw["usage_body"] = httpx.TruncateBody(body)
	usage.Raw["usage_results"] = fmt.Sprintf("%d", results)
	usage.Raw["usage_window"] = monthStart.Format("2006-01-02") + " .. " + now.Format("2006-01-02")
	return usage, nil
}
