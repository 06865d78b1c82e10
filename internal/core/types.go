package core

import "time"

type AlertKind string

const (
	AlertLowBalance AlertKind = "low_balance"
	AlertHighSpend  AlertKind = "high_spend"
	AlertError      AlertKind = "error"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ProviderUsage is one snapshot of a provider's consumption. Token counts
// are 0 (not absent) when a provider exposes no usage API, and CostUSD is 0
// when unknown, so downstream arithmetic stays total.
type ProviderUsage struct {
	Provider         string            `json:"provider"`
	Timestamp        time.Time         `json:"timestamp"`
	InputTokens      int64             `json:"input_tokens"`
	OutputTokens     int64             `json:"output_tokens"`
	CacheReadTokens  int64             `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64             `json:"cache_write_tokens,omitempty"`
	CostUSD          float64           `json:"cost_usd"`
	BalanceUSD       *float64          `json:"balance_usd,omitempty"`
	CreditLimitUSD   *float64          `json:"credit_limit_usd,omitempty"`
	Raw              map[string]string `json:"raw,omitempty"` // redacted diagnostics
}

func (u ProviderUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheWriteTokens
}

// BurnRate is a derived consumption rate. No provider exposes it directly;
// it is reserved for a forecasting step layered on top of the aggregator.
// Nothing computes it today.
type BurnRate struct {
	TokensPerHour  float64  `json:"tokens_per_hour"`
	TokensPerDay   float64  `json:"tokens_per_day"`
	CostPerHourUSD float64  `json:"cost_per_hour_usd"`
	CostPerDayUSD  float64  `json:"cost_per_day_usd"`
	RunwayHours    *float64 `json:"runway_hours,omitempty"`
	RunwayDays     *float64 `json:"runway_days,omitempty"`
}

// ProviderStatus is the per-provider view in a dashboard summary. It is
// built fresh on every aggregation pass and never mutated afterwards.
type ProviderStatus struct {
	Provider    string         `json:"provider"`
	Name        string         `json:"name"`
	Configured  bool           `json:"configured"`
	Reachable   bool           `json:"reachable"`
	LastChecked time.Time      `json:"last_checked"`
	Error       string         `json:"error,omitempty"`
	Usage       *ProviderUsage `json:"usage,omitempty"`
	BurnRate    *BurnRate      `json:"burn_rate,omitempty"`
}

// DashboardSummary is the result of one aggregation pass. Providers keeps
// registration order. TotalBalanceUSD is nil iff no provider reported a
// balance.
type DashboardSummary struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	Providers         []ProviderStatus `json:"providers"`
	TotalBalanceUSD   *float64         `json:"total_balance_usd,omitempty"`
	TotalDailyCostUSD float64          `json:"total_daily_cost_usd"`
	Alerts            []UsageAlert     `json:"alerts"`
}

// ProviderStatusFor returns the status for the given provider id.
func (s *DashboardSummary) ProviderStatusFor(id string) (ProviderStatus, bool) {
	for _, st := range s.Providers {
		if st.Provider == id {
			return st, true
		}
	}
	return ProviderStatus{}, false
}

// UsageAlert is recomputed on every aggregation pass and never persisted
// or deduplicated across passes.
type UsageAlert struct {
	Provider  string    `json:"provider"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

func Float64Ptr(v float64) *float64 { return &v }
