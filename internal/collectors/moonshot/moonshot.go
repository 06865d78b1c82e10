// Package moonshot implements a core.Collector for the Moonshot AI
// (Kimi) platform.
//
//	GET /v1/users/me/balance
//	Response: {"code": 0, "data": {"available_balance": ..., "voucher_balance": ...,
//	           "cash_balance": ...}, "scode": "0x...", "status": true}
//
// Moonshot is balance-only: no usage history is obtainable, so token counts
// and cost are always 0. The body embeds its own status flag; status:false
// or a non-zero code with HTTP 200 is a hard failure, not zero usage.
package moonshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/collectors/httpx"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

const defaultBaseURL = "https://api.moonshot.ai"

type balanceResponse struct {
	Code   int         `json:"code"`
	Data   balanceData `json:"data"`
	SCode  string      `json:"scode"`
	Status bool        `json:"status"`
}

type balanceData struct {
	AvailableBalance float64 `json:"available_balance"`
	VoucherBalance   float64 `json:"voucher_balance"`
	CashBalance      float64 `json:"cash_balance"`
}

// Collector implements core.Collector for Moonshot.
type Collector struct {
	client *http.Client
}

func New() *Collector { return &Collector{} }

func (c *Collector) ID() string { return "moonshot" }

func (c *Collector) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:         "Moonshot",
		Capabilities: []string{"balance_endpoint"},
		DocURL:       "https://platform.moonshot.ai/docs/api/misc#balance-inquiry",
	}
}

func (c *Collector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}

func (c *Collector) FetchUsage(ctx context.Context, cfg core.CollectorConfig) (core.ProviderUsage, error) {
	if cfg.APIKey == "" {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: %w", core.ErrNotConfigured)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	req, err := httpx.NewRequest(ctx, baseURL+"/v1/users/me/balance", cfg.APIKey, nil)
	if err != nil {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: %w", err)
	}

	status, body, err := httpx.Do(c.client, req)
	if err != nil {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: %w", err)
	}
	if httpx.IsAuthStatus(status) {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: HTTP %d: API key rejected", status)
	}
	if status != http.StatusOK {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: HTTP %d: %s", status, httpx.TruncateBody(body))
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: parsing balance response: %w", err)
	}
	if !resp.Status || resp.Code != 0 {
		return core.ProviderUsage{}, fmt.Errorf("moonshot: balance query rejected (code=%d, scode=%s)", resp.Code, resp.SCode)
	}

	usage := core.ProviderUsage{
		Provider:   c.ID(),
		Timestamp:  time.Now(),
		BalanceUSD: core.Float64Ptr(resp.Data.AvailableBalance),
		Raw: map[string]string{
			"balance_body":    httpx.TruncateBody(body),
			"voucher_balance": fmt.Sprintf("%.4f", resp.Data.VoucherBalance),
			"cash_balance":    fmt.Sprintf("%.4f", resp.Data.CashBalance),
		},
	}
	return usage, nil
}
