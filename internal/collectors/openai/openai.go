// Package openai implements a core.Collector for the OpenAI billing APIs.
//
// Three sub-queries are combined into one ProviderUsage:
//
//	GET /v1/usage?start_date=&end_date=&page=      token counts, paged; the
//	    envelope carries total_usage in cents (divide by 100 for USD)
//	GET /dashboard/billing/subscription            hard_limit_usd → credit limit
//	GET /dashboard/billing/credit_grants           Σ(grant_amount - used_amount) → balance
//
// Each sub-query may fail independently; a failing one degrades its fields
// to zero/absent and is recorded in Raw. The fetch as a whole fails only
// when the key is missing, the usage query is rejected as unauthorized, or
// every sub-query fails.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/collectors/httpx"
	"github.com/janekbaraniewski/tokendash/internal/core"
	"github.com/janekbaraniewski/tokendash/internal/pricing"
)

const (
	defaultBaseURL = "https://api.openai.com"

	maxUsagePages = 20
)

type usageResponse struct {
	Data       []usageEntry `json:"data"`
	HasMore    bool         `json:"has_more"`
	TotalUsage float64      `json:"total_usage"` // smallest currency unit (cents)
}

type usageEntry struct {
	AggregationTimestamp int64  `json:"aggregation_timestamp"`
	SnapshotID           string `json:"snapshot_id"`
	ContextTokens        int64  `json:"n_context_tokens_total"`
	GeneratedTokens      int64  `json:"n_generated_tokens_total"`
	CachedContextTokens  int64  `json:"n_cached_context_tokens_total"`
}

type subscriptionResponse struct {
	HardLimitUSD float64 `json:"hard_limit_usd"`
	Plan         struct {
		ID string `json:"id"`
	} `json:"plan"`
}

type creditGrantsResponse struct {
	Data []creditGrant `json:"data"`
}

type creditGrant struct {
	GrantAmount float64 `json:"grant_amount"`
	UsedAmount  float64 `json:"used_amount"`
	ExpiresAt   float64 `json:"expires_at"`
}

// Collector implements core.Collector for OpenAI.
type Collector struct {
	client *http.Client
}

func New() *Collector { return &Collector{} }

func (c *Collector) ID() string { return "openai" }

func (c *Collector) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:         "OpenAI",
		Capabilities: []string{"usage_endpoint", "subscription_endpoint", "credit_grants_endpoint"},
		DocURL:       "https://platform.openai.com/docs/api-reference/usage",
	}
}

func (c *Collector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}

func (c *Collector) FetchUsage(ctx context.Context, cfg core.CollectorConfig) (core.ProviderUsage, error) {
	if cfg.APIKey == "" {
		return core.ProviderUsage{}, fmt.Errorf("openai: %w", core.ErrNotConfigured)
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

	// 1. Monthly usage: tokens from paged entries, cost from total_usage cents.
	usageErr := c.fetchMonthlyUsage(ctx, baseURL, cfg.APIKey, &usage)
	if usageErr != nil {
		usage.Raw["usage_error"] = usageErr.Error()
	}

	// 2. Subscription: credit limit.
	subErr := c.fetchSubscription(ctx, baseURL, cfg.APIKey, &usage)
	if subErr != nil {
		usage.Raw["subscription_error"] = subErr.Error()
	}

	// 3. Credit grants: remaining balance.
	grantsErr := c.fetchCreditGrants(ctx, baseURL, cfg.APIKey, &usage)
	if grantsErr != nil {
		usage.Raw["credit_grants_error"] = grantsErr.Error()
	}

	var auth *authError
	if errors.As(usageErr, &auth) {
		return core.ProviderUsage{}, fmt.Errorf("openai: %s", auth.Error())
	}
	if usageErr != nil && subErr != nil && grantsErr != nil {
		return core.ProviderUsage{}, fmt.Errorf("openai: all queries failed: %v", usageErr)
	}

	return usage, nil
}

type authError struct{ status int }

func (e *authError) Error() string { return fmt.Sprintf("HTTP %d: API key rejected", e.status) }

func (c *Collector) fetchMonthlyUsage(ctx context.Context, baseURL, apiKey string, usage *core.ProviderUsage) error {
	now := time.Now().UTC()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	endDate := now.Format("2006-01-02")

	var (
		totalUsageCents float64
		lastModel       string
		entries         int
	)

	for page := 0; page < maxUsagePages; page++ {
		url := fmt.Sprintf("%s/v1/usage?start_date=%s&end_date=%s&page=%d", baseURL, startDate, endDate, page)
		req, err := httpx.NewRequest(ctx, url, apiKey, nil)
		if err != nil {
			return err
		}

		status, body, err := httpx.Do(c.client, req)
		if err != nil {
			return err
		}
		if httpx.IsAuthStatus(status) {
			return &authError{status: status}
		}
		if status != http.StatusOK {
			return fmt.Errorf("HTTP %d: %s", status, httpx.TruncateBody(body))
		}

		var resp usageResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parsing usage response: %w", err)
		}

		for _, e := range resp.Data {
			usage.InputTokens += e.ContextTokens
			usage.OutputTokens += e.GeneratedTokens
			usage.CacheReadTokens += e.CachedContextTokens
			if e.SnapshotID != "" {
				lastModel = e.SnapshotID
			}
		}
		entries += len(resp.Data)
		totalUsageCents = resp.TotalUsage

		if page == 0 {
			usage.Raw["usage_body"] = httpx.TruncateBody(body)
		}
		if !resp.HasMore {
			break
		}
	}

	// Provider reports month-to-date cost in the smallest currency unit.
	usage.CostUSD = totalUsageCents / 100

	if usage.CostUSD == 0 && usage.InputTokens+usage.OutputTokens > 0 {
		usage.CostUSD = pricing.EstimateCostUSD(lastModel, usage.InputTokens, usage.OutputTokens)
		usage.Raw["cost_estimated"] = "true"
	}

	usage.Raw["usage_entries"] = fmt.Sprintf("%d", entries)
	usage.Raw["usage_window"] = startDate + " .. " + endDate
	return nil
}

func (c *Collector) fetchSubscription(ctx context.Context, baseURL, apiKey string, usage *core.ProviderUsage) error {
	req, err := httpx.NewRequest(ctx, baseURL+"/dashboard/billing/subscription", apiKey, nil)
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

	var sub subscriptionResponse
	if err := json.Unmarshal(body, &sub); err != nil {
		return fmt.Errorf("parsing subscription response: %w", err)
	}

	if sub.HardLimitUSD > 0 {
		usage.CreditLimitUSD = core.Float64Ptr(sub.HardLimitUSD)
	}
	if sub.Plan.ID != "" {
		usage.Raw["plan"] = sub.Plan.ID
	}
	return nil
}

func (c *Collector) fetchCreditGrants(ctx context.Context, baseURL, apiKey string, usage *core.ProviderUsage) error {
	req, err := httpx.NewRequest(ctx, baseURL+"/dashboard/billing/credit_grants", apiKey, nil)
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

	var grants creditGrantsResponse
	if err := json.Unmarshal(body, &grants); err != nil {
		return fmt.Errorf("parsing credit grants response: %w", err)
	}

	var balance float64
	for _, g := range grants.Data {
		balance += g.GrantAmount - g.UsedAmount
	}
	usage.BalanceUSD = core.Float64Ptr(balance)
	usage.Raw["credit_grants"] = fmt.Sprintf("%d", len(grants.Data))
	return nil
}
