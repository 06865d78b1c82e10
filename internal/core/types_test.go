package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProviderUsage_TotalTokens(t *testing.T) {
	u := ProviderUsage{
		InputTokens:      100,
		OutputTokens:     50,
		CacheReadTokens:  25,
		CacheWriteTokens: 5,
	}
	if got := u.TotalTokens(); got != 180 {
		t.Errorf("TotalTokens() = %d, want 180", got)
	}
}

func TestDashboardSummary_ProviderStatusFor(t *testing.T) {
	summary := DashboardSummary{
		GeneratedAt: time.Now(),
		Providers: []ProviderStatus{
			{Provider: "openai", Configured: true},
			{Provider: "moonshot", Configured: false},
		},
	}

	st, ok := summary.ProviderStatusFor("moonshot")
	if !ok {
		t.Fatal("ProviderStatusFor(moonshot) not found")
	}
	if st.Configured {
		t.Error("moonshot should be unconfigured")
	}

	if _, ok := summary.ProviderStatusFor("mistral"); ok {
		t.Error("ProviderStatusFor(mistral) should not be found")
	}
}

type fakeCollector struct {
	fetchErr error
	fetched  int
}

func (f *fakeCollector) ID() string                            { return "fake" }
func (f *fakeCollector) Describe() ProviderInfo                { return ProviderInfo{Name: "Fake"} }
func (f *fakeCollector) IsConfigured(cfg CollectorConfig) bool { return cfg.APIKey != "" }

func (f *fakeCollector) FetchUsage(_ context.Context, _ CollectorConfig) (ProviderUsage, error) {
	f.fetched++
	if f.fetchErr != nil {
		return ProviderUsage{}, f.fetchErr
	}
	return ProviderUsage{Provider: "fake", Timestamp: time.Now()}, nil
}

func TestTestConnection_DefaultsToFetch(t *testing.T) {
	c := &fakeCollector{}
	if err := TestConnection(context.Background(), c, CollectorConfig{APIKey: "k"}); err != nil {
		t.Fatalf("TestConnection() error: %v", err)
	}
	if c.fetched != 1 {
		t.Errorf("fetched = %d, want 1", c.fetched)
	}

	c.fetchErr = errors.New("boom")
	if err := TestConnection(context.Background(), c, CollectorConfig{APIKey: "k"}); err == nil {
		t.Error("TestConnection() should propagate fetch failure")
	}
}
