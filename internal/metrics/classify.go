package metrics

import (
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/models"
)

// statusHigherBetter classifies a higher-is-better value against a ladder:
// value at or above Excellent is excellent, and so on down.
func statusHigherBetter(v float64, l config.Ladder) models.MetricStatus {
	switch {
	case v >= l.Excellent:
		return models.StatusExcellent
	case v >= l.Good:
		return models.StatusGood
	case v >= l.Warning:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// statusLowerBetter classifies a lower-is-better value (failure rates,
// retry ratios, saturation). Boundaries are inclusive, so a value sitting
// exactly on Good classifies as good.
func statusLowerBetter(v float64, l config.Ladder) models.MetricStatus {
	switch {
	case v <= l.Excellent:
		return models.StatusExcellent
	case v <= l.Good:
		return models.StatusGood
	case v <= l.Warning:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// statusRelativeToSLA classifies a rate against an SLA target:
// rate >= t excellent, >= 0.9t good, >= 0.7t warning, else critical.
func statusRelativeToSLA(rate, threshold float64) models.MetricStatus {
	switch {
	case rate >= threshold:
		return models.StatusExcellent
	case rate >= 0.9*threshold:
		return models.StatusGood
	case rate >= 0.7*threshold:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}

// statusLatency is the inverse of statusRelativeToSLA for lower-is-better
// latency targets: measured <= t excellent, <= t/0.9 good, <= t/0.7 warning.
func statusLatency(measured, target float64) models.MetricStatus {
	switch {
	case measured <= target:
		return models.StatusExcellent
	case measured <= target/0.9:
		return models.StatusGood
	case measured <= target/0.7:
		return models.StatusWarning
	default:
		return models.StatusCritical
	}
}
