package dashboard

import "github.com/prometheus/client_golang/prometheus"

// Aggregation Prometheus metrics, exposed on the daemon's /metrics.
var (
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokendash",
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider usage fetch duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokendash",
			Name:      "provider_fetch_errors_total",
			Help:      "Total provider fetch failures",
		},
		[]string{"provider"},
	)

	ProviderBalanceUSD = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tokendash",
			Name:      "provider_balance_usd",
			Help:      "Last reported provider balance in USD",
		},
		[]string{"provider"},
	)

	AggregationRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tokendash",
			Name:      "aggregation_runs_total",
			Help:      "Total aggregation passes",
		},
	)

	AlertsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tokendash",
			Name:      "alerts_active",
			Help:      "Alerts raised by the last aggregation pass",
		},
		[]string{"severity"},
	)
)

var metricsRegistered bool

// RegisterMetrics registers the aggregation metrics. Called once by the daemon.
func RegisterMetrics() {
	if metricsRegistered {
		return
	}
	prometheus.MustRegister(
		FetchDuration,
		FetchErrorsTotal,
		ProviderBalanceUSD,
		AggregationRunsTotal,
		AlertsActive,
	)
	metricsRegistered = true
}
