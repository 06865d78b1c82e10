package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janekbaraniewski/tokendash/internal/core"
)

func TestFetchUsage_SumsMonthlyReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("bearer header should not be sent to Anthropic")
		}
		w.Write([]byte(`{"data": [
			{"starting_at": "2026-08-01T00:00:00Z", "results": [
				{"model": "claude-sonnet-4", "uncached_input_tokens": 1000, "output_tokens": 400, "cache_read_input_tokens": 300, "cache_creation_input_tokens": 100, "cost_usd": 0.25}
			]},
			{"starting_at": "2026-08-02T00:00:00Z", "results": [
				{"model": "claude-sonnet-4", "uncached_input_tokens": 2000, "output_tokens": 600, "cost_usd": 0.5}
			]}
		]}`))
	}))
	defer server.Close()

	c := New()
	usage, err := c.FetchUsage(context.Background(), core.CollectorConfig{APIKey: "sk-ant-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("FetchUsage() error: %v", err)
	}

	if usage.InputTokens != 3000 {
		t.Errorf("InputTokens = %d, want 3000", usage.InputTokens)
	}
	if usage.OutputTokens != 1000 {
		t.Errorf("OutputTokens = %d, want 1000", usage.OutputTokens)
	}
	if usage.CacheReadTokens != 300 || usage.CacheWriteTokens != 100 {
		t.Errorf("cache tokens = %d/%d, want 300/100", usage.CacheReadTokens, usage.CacheWriteTokens)
	}
	if usage.CostUSD != 0.75 {
		t.Errorf("CostUSD = %v, want 0.75", usage.CostUSD)
	}
	if usage.BalanceUSD != nil {
		t.Error("BalanceUSD should stay absent, Anthropic has no balance endpoint")
	}
}

func TestFetchUsage_InsufficientPrivilegeDegradesToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New()
	usage, err := c.FetchUsage(context.Background(), core.CollectorConfig{APIKey: "sk-ant-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("FetchUsage() should degrade on 403, got: %v", err)
	}
	if usage.TotalTokens() != 0 || usage.CostUSD != 0 {
		t.Error("degraded fetch should report zero usage")
	}
	if usage.Raw["usage_error"] == "" {
		t.Error("degradation should be recorded in Raw")
	}
}

func TestFetchUsage_UnauthorizedFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New()
	if _, err := c.FetchUsage(context.Background(), core.CollectorConfig{APIKey: "sk-bad", BaseURL: server.URL}); err == nil {
		t.Fatal("FetchUsage() should fail on HTTP 401")
	}
}

func TestFetchUsage_EstimatesCostFromTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": [{"results": [
			{"model": "claude-3-5-sonnet", "uncached_input_tokens": 1000000, "output_tokens": 1000000}
		]}]}`))
	}))
	defer server.Close()

	c := New()
	usage, err := c.FetchUsage(context.Background(), core.CollectorConfig{APIKey: "sk-ant-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("FetchUsage() error: %v", err)
	}
	if usage.CostUSD != 18.00 {
		t.Errorf("estimated CostUSD = %v, want 18.00", usage.CostUSD)
	}
	if usage.Raw["cost_estimated"] != "true" {
		t.Error("estimated cost should be flagged in Raw")
	}
}
