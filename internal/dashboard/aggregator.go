// Package dashboard owns the collection-and-aggregation pipeline: one
// aggregation pass fans out to the registered collectors, isolates
// per-provider failures, evaluates alert thresholds and publishes the
// resulting summary to the cache.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

// Aggregator runs aggregation passes over the collector registry. It is the
// only writer of the Cache and the only constructor of DashboardSummary
// values.
type Aggregator struct {
	registry []core.Collector
	resolver core.ConfigResolver
	cache    *Cache
	log      *zap.Logger

	mu  sync.RWMutex
	cfg config.Config
}

func NewAggregator(registry []core.Collector, resolver core.ConfigResolver, cfg config.Config, cache *Cache, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		registry: registry,
		resolver: resolver,
		cfg:      cfg,
		cache:    cache,
		log:      log,
	}
}

func (a *Aggregator) Cache() *Cache { return a.cache }

func (a *Aggregator) Registry() []core.Collector { return a.registry }

func (a *Aggregator) Resolver() core.ConfigResolver { return a.resolver }

// UpdateConfig swaps the operator configuration (thresholds, allow-list,
// poll interval). Used by the daemon's hot-reload path.
func (a *Aggregator) UpdateConfig(cfg config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

func (a *Aggregator) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Run executes one aggregation pass: every enabled collector is fetched
// with per-provider isolation, the summary is assembled in registration
// order, alerts are evaluated and the cache slot is replaced. A provider
// failure never fails the pass; only context cancellation does.
func (a *Aggregator) Run(ctx context.Context) (*core.DashboardSummary, error) {
	cfg := a.Config()
	started := time.Now()
	a.log.Info("aggregation pass starting")

	enabled := lo.Filter(a.registry, func(c core.Collector, _ int) bool {
		return cfg.ProviderEnabled(c.ID())
	})

	statuses := make([]core.ProviderStatus, len(enabled))
	var wg sync.WaitGroup

	for i, col := range enabled {
		ccfg := a.resolver(col.ID())
		info := col.Describe()

		if !col.IsConfigured(ccfg) {
			// Absence of credentials is not an error: no fetch, no alert.
			statuses[i] = core.ProviderStatus{
				Provider:    col.ID(),
				Name:        info.Name,
				Configured:  false,
				Reachable:   false,
				LastChecked: time.Now(),
			}
			continue
		}

		wg.Add(1)
		go func(i int, col core.Collector, ccfg core.CollectorConfig, name string) {
			defer wg.Done()
			statuses[i] = a.fetchOne(ctx, col, ccfg, name, cfg.FetchTimeout())
		}(i, col, ccfg, info.Name)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation cancelled: %w", err)
	}

	now := time.Now()

	alerts := lo.FilterMap(statuses, func(st core.ProviderStatus, _ int) (core.UsageAlert, bool) {
		if !st.Configured || st.Reachable {
			return core.UsageAlert{}, false
		}
		return core.UsageAlert{
			Provider:  st.Provider,
			Kind:      core.AlertError,
			Message:   fmt.Sprintf("%s unreachable: %s", st.Provider, st.Error),
			Severity:  core.SeverityWarning,
			Timestamp: now,
		}, true
	})
	alerts = append(alerts, EvaluateAlerts(statuses, cfg.Thresholds, now)...)

	summary := &core.DashboardSummary{
		GeneratedAt: now,
		Providers:   statuses,
		TotalDailyCostUSD: lo.SumBy(statuses, func(st core.ProviderStatus) float64 {
			if st.Usage == nil {
				return 0
			}
			return st.Usage.CostUSD
		}),
		Alerts: alerts,
	}

	withBalance := lo.Filter(statuses, func(st core.ProviderStatus, _ int) bool {
		return st.Usage != nil && st.Usage.BalanceUSD != nil
	})
	if len(withBalance) > 0 {
		total := lo.SumBy(withBalance, func(st core.ProviderStatus) float64 {
			return *st.Usage.BalanceUSD
		})
		summary.TotalBalanceUSD = core.Float64Ptr(total)
	}

	a.cache.Set(summary)

	AggregationRunsTotal.Inc()
	for _, sev := range []core.Severity{core.SeverityInfo, core.SeverityWarning, core.SeverityCritical} {
		count := lo.CountBy(alerts, func(al core.UsageAlert) bool { return al.Severity == sev })
		AlertsActive.WithLabelValues(string(sev)).Set(float64(count))
	}

	a.log.Info("aggregation pass complete",
		zap.Int("providers", len(statuses)),
		zap.Int("alerts", len(alerts)),
		zap.Duration("elapsed", time.Since(started)))

	return summary, nil
}

// FetchProvider runs an isolated fetch for one provider, bypassing the
// cache. Returns false when the provider is not registered or not enabled.
func (a *Aggregator) FetchProvider(ctx context.Context, id string) (core.ProviderStatus, bool) {
	cfg := a.Config()
	if !cfg.ProviderEnabled(id) {
		return core.ProviderStatus{}, false
	}
	col, ok := lo.Find(a.registry, func(c core.Collector) bool { return c.ID() == id })
	if !ok {
		return core.ProviderStatus{}, false
	}

	ccfg := a.resolver(id)
	info := col.Describe()
	if !col.IsConfigured(ccfg) {
		return core.ProviderStatus{
			Provider:    id,
			Name:        info.Name,
			Configured:  false,
			Reachable:   false,
			LastChecked: time.Now(),
		}, true
	}
	return a.fetchOne(ctx, col, ccfg, info.Name, cfg.FetchTimeout()), true
}

// fetchOne isolates a single provider fetch: bounded timeout, panic
// containment, metrics. Whatever happens inside the collector surfaces as
// a ProviderStatus, never as a failure of the pass.
func (a *Aggregator) fetchOne(ctx context.Context, col core.Collector, ccfg core.CollectorConfig, name string, timeout time.Duration) (st core.ProviderStatus) {
	st = core.ProviderStatus{
		Provider:   col.ID(),
		Name:       name,
		Configured: true,
	}

	defer func() {
		st.LastChecked = time.Now()
		if r := recover(); r != nil {
			st.Reachable = false
			st.Error = fmt.Sprintf("collector panic: %v", r)
			st.Usage = nil
			FetchErrorsTotal.WithLabelValues(col.ID()).Inc()
			a.log.Error("collector panicked", zap.String("provider", col.ID()), zap.Any("panic", r))
		}
	}()

	fetchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	usage, err := col.FetchUsage(fetchCtx, ccfg)
	FetchDuration.WithLabelValues(col.ID()).Observe(time.Since(started).Seconds())

	if err != nil {
		st.Reachable = false
		st.Error = err.Error()
		FetchErrorsTotal.WithLabelValues(col.ID()).Inc()
		a.log.Warn("provider fetch failed", zap.String("provider", col.ID()), zap.Error(err))
		return st
	}

	st.Reachable = true
	st.Usage = &usage
	if usage.BalanceUSD != nil {
		ProviderBalanceUSD.WithLabelValues(col.ID()).Set(*usage.BalanceUSD)
	}
	return st
}
