package dashboard

import (
	"fmt"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

// EvaluateAlerts computes threshold alerts for one aggregation pass. It is
// pure: the same statuses, thresholds and timestamp always produce the same
// alerts. Providers without a reported balance or without a configured
// balance threshold are skipped. The daily-spend threshold is accepted in
// configuration but not evaluated here.
func EvaluateAlerts(statuses []core.ProviderStatus, thresholds map[string]config.ThresholdRule, now time.Time) []core.UsageAlert {
	var alerts []core.UsageAlert

	for _, st := range statuses {
		rule, ok := thresholds[st.Provider]
		if !ok || rule.BalanceUSD <= 0 {
			continue
		}
		if st.Usage == nil || st.Usage.BalanceUSD == nil {
			continue
		}

		balance := *st.Usage.BalanceUSD
		if balance >= rule.BalanceUSD {
			continue
		}

		severity := core.SeverityWarning
		if balance < rule.BalanceUSD/2 {
			severity = core.SeverityCritical
		}

		alerts = append(alerts, core.UsageAlert{
			Provider:  st.Provider,
			Kind:      core.AlertLowBalance,
			Message:   fmt.Sprintf("%s balance $%.2f is below the $%.2f threshold", st.Provider, balance, rule.BalanceUSD),
			Severity:  severity,
			Timestamp: now,
		})
	}

	return alerts
}
