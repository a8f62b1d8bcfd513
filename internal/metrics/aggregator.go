package metrics

import (
	"time"

	"github.com/smsgate/pulse-core/internal/models"
)

// Aggregate rolls the per-provider metric sets up into the platform summary.
// Pure and deterministic; no I/O.
func Aggregate(now time.Time, windowMinutes int, providers []models.ProviderMetrics, snaps []Snapshot) models.SystemMetrics {
	sys := models.SystemMetrics{
		CalculatedAt:      now,
		TimeWindowMinutes: windowMinutes,
		Providers:         providers,
	}
	if len(providers) == 0 {
		return sys
	}

	var health, compliance, margin float64
	for _, p := range providers {
		health += p.ReliabilityScore.Value
		compliance += p.SlaComplianceRate.Value
		margin += p.MarginPerService.Value
	}
	n := float64(len(providers))
	sys.Aggregate.OverallHealthScore = round2(health / n)
	sys.Aggregate.PlatformSlaCompliance = round2(compliance / n)
	sys.Aggregate.AvgMargin = round2(margin / n)

	var revenue float64
	total := 0
	for _, s := range snaps {
		total += len(s.Transactions)
		for _, tx := range s.Transactions {
			if tx.Amount > 0 {
				revenue += tx.Amount
			}
		}
	}
	sys.Aggregate.TotalTransactions = total
	sys.Aggregate.TotalRevenue = round2(revenue)
	return sys
}
