package metrics

import (
	"testing"
	"time"

	"github.com/smsgate/pulse-core/internal/models"
)

func TestAggregateMeansAndTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	providers := []models.ProviderMetrics{
		{
			ProviderID:       "acme",
			ReliabilityScore: models.MetricValue{Value: 90},
			SlaComplianceRate: models.MetricValue{Value: 96},
			MarginPerService: models.MetricValue{Value: 30},
		},
		{
			ProviderID:       "zen",
			ReliabilityScore: models.MetricValue{Value: 70},
			SlaComplianceRate: models.MetricValue{Value: 88},
			MarginPerService: models.MetricValue{Value: 10},
		},
	}
	snaps := []Snapshot{
		{Transactions: []models.TransactionRecord{{Amount: 5.0}, {Amount: 2.5}, {Amount: -1.0}}},
		{Transactions: []models.TransactionRecord{{Amount: 4.0}}},
	}

	sys := Aggregate(now, 60, providers, snaps)
	if sys.Aggregate.OverallHealthScore != 80.0 {
		t.Errorf("overallHealthScore = %v, want 80.0", sys.Aggregate.OverallHealthScore)
	}
	if sys.Aggregate.PlatformSlaCompliance != 92.0 {
		t.Errorf("platformSlaCompliance = %v, want 92.0", sys.Aggregate.PlatformSlaCompliance)
	}
	if sys.Aggregate.AvgMargin != 20.0 {
		t.Errorf("avgMargin = %v, want 20.0", sys.Aggregate.AvgMargin)
	}
	if sys.Aggregate.TotalTransactions != 4 {
		t.Errorf("totalTransactions = %d, want 4", sys.Aggregate.TotalTransactions)
	}
	// Refunds (negative amounts) are excluded from revenue.
	if sys.Aggregate.TotalRevenue != 11.5 {
		t.Errorf("totalRevenue = %v, want 11.5", sys.Aggregate.TotalRevenue)
	}
	if sys.TimeWindowMinutes != 60 || !sys.CalculatedAt.Equal(now) {
		t.Errorf("window/timestamp not carried through: %+v", sys)
	}
}

func TestAggregateEmptyProviderSet(t *testing.T) {
	sys := Aggregate(time.Now(), 60, nil, nil)
	if sys.Aggregate != (models.SystemAggregate{}) {
		t.Errorf("empty provider set must yield zero aggregate, got %+v", sys.Aggregate)
	}
	if sys.Providers != nil {
		t.Errorf("providers should be nil, got %v", sys.Providers)
	}
}
