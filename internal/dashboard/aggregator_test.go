package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

type fakeCollector struct {
	id      string
	usage   core.ProviderUsage
	err     error
	panics  bool
	delay   time.Duration
	fetches atomic.Int64
}

func (f *fakeCollector) ID() string { return f.id }

func (f *fakeCollector) Describe() core.ProviderInfo {
	return core.ProviderInfo{Name: f.id}
}

func (f *fakeCollector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}

func (f *fakeCollector) FetchUsage(ctx context.Context, cfg core.CollectorConfig) (core.ProviderUsage, error) {
	f.fetches.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return core.ProviderUsage{}, ctx.Err()
		}
	}
	if f.err != nil {
		return core.ProviderUsage{}, f.err
	}
	u := f.usage
	u.Provider = f.id
	return u, nil
}

func resolverWithKeys(keys map[string]string) core.ConfigResolver {
	return func(id string) core.CollectorConfig {
		return core.CollectorConfig{APIKey: keys[id], Enabled: keys[id] != ""}
	}
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	alpha := &fakeCollector{id: "alpha", usage: core.ProviderUsage{
		BalanceUSD: core.Float64Ptr(3.0),
		CostUSD:    1.25,
	}}
	beta := &fakeCollector{id: "beta"} // no key: must never be fetched
	gamma := &fakeCollector{id: "gamma", err: errors.New("GET /usage: status 500")}

	cfg := config.Config{
		FetchTimeoutSeconds: 5,
		Thresholds: map[string]config.ThresholdRule{
			"alpha": {BalanceUSD: 10},
		},
	}
	resolver := resolverWithKeys(map[string]string{"alpha": "ka", "gamma": "kg"})

	agg := NewAggregator([]core.Collector{alpha, beta, gamma}, resolver, cfg, NewCache(), nil)

	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Providers) != 3 {
		t.Fatalf("len(Providers) = %d, want 3", len(summary.Providers))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if summary.Providers[i].Provider != want {
			t.Errorf("Providers[%d] = %s, want %s", i, summary.Providers[i].Provider, want)
		}
	}

	a, _ := summary.ProviderStatusFor("alpha")
	if !a.Configured || !a.Reachable || a.Usage == nil {
		t.Fatalf("alpha status = %+v", a)
	}

	b, _ := summary.ProviderStatusFor("beta")
	if b.Configured || b.Reachable || b.Usage != nil {
		t.Errorf("beta status = %+v, want unconfigured", b)
	}
	if beta.fetches.Load() != 0 {
		t.Errorf("beta fetched %d times, want 0", beta.fetches.Load())
	}

	g, _ := summary.ProviderStatusFor("gamma")
	if !g.Configured || g.Reachable {
		t.Errorf("gamma status = %+v, want configured and unreachable", g)
	}
	if g.Error == "" {
		t.Error("gamma should carry the fetch error")
	}

	if summary.TotalBalanceUSD == nil || *summary.TotalBalanceUSD != 3.0 {
		t.Errorf("TotalBalanceUSD = %v, want 3.0", summary.TotalBalanceUSD)
	}
	if summary.TotalDailyCostUSD != 1.25 {
		t.Errorf("TotalDailyCostUSD = %v, want 1.25", summary.TotalDailyCostUSD)
	}

	// One error alert for gamma and one critical low-balance alert for
	// alpha: $3 is below half of the $10 threshold. Nothing for beta.
	var errAlerts, lowAlerts int
	for _, al := range summary.Alerts {
		switch al.Kind {
		case core.AlertError:
			errAlerts++
			if al.Provider != "gamma" {
				t.Errorf("error alert for %s, want gamma", al.Provider)
			}
		case core.AlertLowBalance:
			lowAlerts++
			if al.Provider != "alpha" {
				t.Errorf("low-balance alert for %s, want alpha", al.Provider)
			}
			if al.Severity != core.SeverityCritical {
				t.Errorf("low-balance severity = %s, want critical", al.Severity)
			}
		}
	}
	if errAlerts != 1 || lowAlerts != 1 {
		t.Errorf("alerts = %d error + %d low-balance, want 1 + 1", errAlerts, lowAlerts)
	}
}

func TestRun_PublishesToCache(t *testing.T) {
	alpha := &fakeCollector{id: "alpha", usage: core.ProviderUsage{CostUSD: 2}}
	cache := NewCache()
	agg := NewAggregator([]core.Collector{alpha}, resolverWithKeys(map[string]string{"alpha": "k"}), config.Config{}, cache, nil)

	if _, ok := cache.Get(); ok {
		t.Fatal("cache should be empty before the first pass")
	}
	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cached, ok := cache.Get()
	if !ok || cached != summary {
		t.Errorf("cache.Get() = %v, %v; want the published summary", cached, ok)
	}
}

func TestRun_NoBalancesMeansNoTotal(t *testing.T) {
	alpha := &fakeCollector{id: "alpha", usage: core.ProviderUsage{InputTokens: 10}}
	agg := NewAggregator([]core.Collector{alpha}, resolverWithKeys(map[string]string{"alpha": "k"}), config.Config{}, NewCache(), nil)

	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.TotalBalanceUSD != nil {
		t.Errorf("TotalBalanceUSD = %v, want nil when no provider reports a balance", *summary.TotalBalanceUSD)
	}
}

func TestRun_CollectorPanicIsContained(t *testing.T) {
	bad := &fakeCollector{id: "bad", panics: true}
	good := &fakeCollector{id: "good", usage: core.ProviderUsage{CostUSD: 1}}

	agg := NewAggregator(
		[]core.Collector{bad, good},
		resolverWithKeys(map[string]string{"bad": "k", "good": "k"}),
		config.Config{}, NewCache(), nil,
	)

	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, _ := summary.ProviderStatusFor("bad")
	if b.Reachable || b.Error == "" {
		t.Errorf("panicking collector status = %+v, want unreachable with error", b)
	}
	g, _ := summary.ProviderStatusFor("good")
	if !g.Reachable {
		t.Errorf("good collector should be unaffected, got %+v", g)
	}
}

func TestRun_RespectsEnabledProviders(t *testing.T) {
	alpha := &fakeCollector{id: "alpha"}
	beta := &fakeCollector{id: "beta"}

	cfg := config.Config{EnabledProviders: []string{"beta"}}
	agg := NewAggregator(
		[]core.Collector{alpha, beta},
		resolverWithKeys(map[string]string{"alpha": "k", "beta": "k"}),
		cfg, NewCache(), nil,
	)

	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Providers) != 1 || summary.Providers[0].Provider != "beta" {
		t.Errorf("Providers = %+v, want only beta", summary.Providers)
	}
	if alpha.fetches.Load() != 0 {
		t.Error("disabled provider must not be fetched")
	}
}

func TestRun_FetchTimeout(t *testing.T) {
	slow := &fakeCollector{id: "slow", delay: 2 * time.Second}

	cfg := config.Config{FetchTimeoutSeconds: 1}
	agg := NewAggregator([]core.Collector{slow}, resolverWithKeys(map[string]string{"slow": "k"}), cfg, NewCache(), nil)

	start := time.Now()
	summary, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("pass took %v, timeout not applied", elapsed)
	}
	st, _ := summary.ProviderStatusFor("slow")
	if st.Reachable || st.Error == "" {
		t.Errorf("slow provider status = %+v, want timeout failure", st)
	}
}
