package metrics

import (
	"reflect"
	"testing"
	"time"

	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/models"
)

func testSLA() config.SLAConfig {
	return config.SLAConfig{
		SuccessRatePct:        95.0,
		P95LatencyMs:          2000.0,
		P99LatencyMs:          5000.0,
		CompletionTimeSeconds: 120.0,
		CostFallbackRatio:     0.70,
		DegradationGapPoints:  20.0,
		Score:                 config.Ladder{Excellent: 90, Good: 75, Warning: 50},
		FailureRate:           config.Ladder{Excellent: 1, Good: 5, Warning: 10},
		Ratio:                 config.Ladder{Excellent: 10, Good: 25, Warning: 50},
		Saturation:            config.Ladder{Excellent: 20, Good: 50, Warning: 80},
		Margin:                config.Ladder{Excellent: 30, Good: 20, Warning: 10},
	}
}

func baseSnapshot() Snapshot {
	return Snapshot{
		Provider:      models.Provider{ID: "acme", Name: "AcmeSMS"},
		Circuit:       models.CircuitHealth{ProviderID: "acme", State: models.CircuitClosed},
		Now:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WindowMinutes: 60,
	}
}

func outcomes(success, failure int, latencyMs int64) []models.RequestOutcome {
	out := make([]models.RequestOutcome, 0, success+failure)
	for i := 0; i < success; i++ {
		out = append(out, models.RequestOutcome{ProviderID: "acme", Success: true, LatencyMs: latencyMs})
	}
	for i := 0; i < failure; i++ {
		out = append(out, models.RequestOutcome{ProviderID: "acme", Success: false, LatencyMs: latencyMs})
	}
	return out
}

func TestEmptyWindowDefaultsAreGood(t *testing.T) {
	calc := NewCalculator(testSLA())
	m := calc.Compute(baseSnapshot())

	// Every data-driven metric reports its documented default with status
	// good, never critical, NaN, or a panic.
	checks := map[string]struct {
		got  models.MetricValue
		want float64
	}{
		"adjustedSuccessRate":        {m.AdjustedSuccessRate, 100},
		"effectiveCompletionRate":    {m.EffectiveCompletionRate, 100},
		"lateResolutionRatio":        {m.LateResolutionRatio, 0},
		"strictFailureRate":          {m.StrictFailureRate, 0},
		"slaComplianceRate":          {m.SlaComplianceRate, 100},
		"reliabilityScore":           {m.ReliabilityScore, 100},
		"firstAttemptSuccessRate":    {m.FirstAttemptSuccessRate, 100},
		"recoverySuccessRate":        {m.RecoverySuccessRate, 100},
		"permanentFailureRatio":      {m.PermanentFailureRatio, 0},
		"latencyEfficiencyScore":     {m.LatencyEfficiencyScore, 100},
		"retryImpactRatio":           {m.RetryImpactRatio, 0},
		"timeoutBreachRate":          {m.TimeoutBreachRate, 0},
		"p95LatencyCompliance":       {m.P95LatencyCompliance, 0},
		"p99LatencyCompliance":       {m.P99LatencyCompliance, 0},
		"countryStabilityIndex":      {m.CountryStabilityIndex, 100},
		"regionalDegradationIndex":   {m.RegionalDegradationIndex, 0},
		"operationalIntegrityScore":  {m.OperationalIntegrityScore, 100},
		"workerFailureRate":          {m.WorkerFailureRate, 0},
		"queueSaturationRatio":       {m.QueueSaturationRatio, 0},
		"idempotencyViolationRate":   {m.IdempotencyViolationRate, 0},
		"callbackCompletionRate":     {m.CallbackCompletionRate, 100},
		"costPerSuccessfulOperation": {m.CostPerSuccessfulOperation, 0},
		"revenuePerSuccessfulOp":     {m.RevenuePerSuccessfulOperation, 0},
		"marginPerService":           {m.MarginPerService, 0},
	}
	for name, c := range checks {
		if c.got.Value != c.want {
			t.Errorf("%s: value = %v, want %v", name, c.got.Value, c.want)
		}
		if c.got.Status != models.StatusGood {
			t.Errorf("%s: status = %s, want good", name, c.got.Status)
		}
	}
	// Availability has circuit data even in an empty window.
	if m.ProviderAvailabilityRate.Value != 100 {
		t.Errorf("providerAvailabilityRate = %v, want 100", m.ProviderAvailabilityRate.Value)
	}
}

func TestStrictFailureRateLadder(t *testing.T) {
	calc := NewCalculator(testSLA())

	cases := []struct {
		failures int
		want     float64
		status   models.MetricStatus
	}{
		{1, 1.0, models.StatusExcellent},
		{4, 4.0, models.StatusGood},
		{5, 5.0, models.StatusGood}, // boundary is inclusive
		{6, 6.0, models.StatusWarning},
		{10, 10.0, models.StatusWarning},
		{11, 11.0, models.StatusCritical},
	}
	for _, c := range cases {
		snap := baseSnapshot()
		snap.Outcomes = outcomes(100-c.failures, c.failures, 800)
		m := calc.Compute(snap)
		if m.StrictFailureRate.Value != c.want {
			t.Errorf("%d failures: value = %v, want %v", c.failures, m.StrictFailureRate.Value, c.want)
		}
		if m.StrictFailureRate.Status != c.status {
			t.Errorf("%d failures: status = %s, want %s", c.failures, m.StrictFailureRate.Status, c.status)
		}
	}
}

func TestPercentileMonotonic(t *testing.T) {
	samples := [][]int64{
		{100},
		{100, 200},
		{5, 5, 5, 5, 5},
		{900, 100, 400, 250, 3000, 120, 88, 4100, 77, 650},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
	}
	for i, s := range samples {
		median := percentileOf(s, 0.5)
		p95 := percentileOf(s, 0.95)
		p99 := percentileOf(s, 0.99)
		if p99 < p95 || p95 < median {
			t.Errorf("case %d: p99 %v >= p95 %v >= median %v violated", i, p99, p95, median)
		}
	}
	if percentileOf(nil, 0.95) != 0 {
		t.Error("empty samples should yield 0")
	}
}

func TestPercentileIndexClamped(t *testing.T) {
	// floor(4 * 0.99) = 3, the last element; p = 1.0 would index past the
	// end and must clamp.
	s := []int64{10, 20, 30, 40}
	if got := percentileOf(s, 0.99); got != 40 {
		t.Errorf("p99 = %v, want 40", got)
	}
	if got := percentileOf(s, 1.0); got != 40 {
		t.Errorf("p100 = %v, want 40", got)
	}
	if got := percentileOf(s, 0.5); got != 30 {
		t.Errorf("p50 = %v, want 30 (floor(4*0.5)=2)", got)
	}
}

func TestFirstAttemptOrdersByCreatedAt(t *testing.T) {
	calc := NewCalculator(testSLA())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Completed record appears first in the slice, but the earliest attempt
	// by createdAt was Failed. The group must not count as first-attempt
	// success.
	snap := baseSnapshot()
	snap.Activations = []models.ActivationRecord{
		{ID: "a3", IdempotencyKey: "op-1", State: models.ActivationCompleted, CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "a1", IdempotencyKey: "op-1", State: models.ActivationFailed, CreatedAt: now.Add(-15 * time.Minute)},
		{ID: "a2", IdempotencyKey: "op-1", State: models.ActivationFailed, CreatedAt: now.Add(-10 * time.Minute)},
	}
	m := calc.Compute(snap)
	if m.FirstAttemptSuccessRate.Value != 0 {
		t.Errorf("firstAttemptSuccessRate = %v, want 0 (earliest attempt failed)", m.FirstAttemptSuccessRate.Value)
	}
	// The group did recover: a later attempt delivered.
	if m.RecoverySuccessRate.Value != 100 {
		t.Errorf("recoverySuccessRate = %v, want 100", m.RecoverySuccessRate.Value)
	}
	// Three records under one key is a retried group.
	if m.RetryImpactRatio.Value != 100 {
		t.Errorf("retryImpactRatio = %v, want 100", m.RetryImpactRatio.Value)
	}
}

func TestRetryImpactAndIdempotencyViolationShareSignal(t *testing.T) {
	calc := NewCalculator(testSLA())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := baseSnapshot()
	snap.Activations = []models.ActivationRecord{
		{ID: "a1", IdempotencyKey: "op-1", State: models.ActivationCompleted, CreatedAt: now},
		{ID: "a2", IdempotencyKey: "op-1", State: models.ActivationFailed, CreatedAt: now.Add(-time.Minute)},
		{ID: "b1", IdempotencyKey: "op-2", State: models.ActivationCompleted, CreatedAt: now},
		{ID: "c1", IdempotencyKey: "op-3", State: models.ActivationCompleted, CreatedAt: now},
		{ID: "d1", State: models.ActivationCompleted, CreatedAt: now}, // no key, own group
	}
	m := calc.Compute(snap)
	if m.RetryImpactRatio.Value != 25.0 {
		t.Errorf("retryImpactRatio = %v, want 25.0 (1 of 4 groups retried)", m.RetryImpactRatio.Value)
	}
	if m.IdempotencyViolationRate.Value != m.RetryImpactRatio.Value {
		t.Errorf("idempotencyViolationRate %v != retryImpactRatio %v", m.IdempotencyViolationRate.Value, m.RetryImpactRatio.Value)
	}
}

func TestRegionalDegradation(t *testing.T) {
	calc := NewCalculator(testSLA())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Countries a and b at 1.0, country c at 0.5. Average 0.833; c is more
	// than 20pp below it.
	snap := baseSnapshot()
	snap.Activations = []models.ActivationRecord{
		{ID: "1", CountryCode: "a", State: models.ActivationCompleted, CreatedAt: now, IdempotencyKey: "k1"},
		{ID: "2", CountryCode: "a", State: models.ActivationCompleted, CreatedAt: now, IdempotencyKey: "k2"},
		{ID: "3", CountryCode: "b", State: models.ActivationCompleted, CreatedAt: now, IdempotencyKey: "k3"},
		{ID: "4", CountryCode: "b", State: models.ActivationCompleted, CreatedAt: now, IdempotencyKey: "k4"},
		{ID: "5", CountryCode: "c", State: models.ActivationCompleted, CreatedAt: now, IdempotencyKey: "k5"},
		{ID: "6", CountryCode: "c", State: models.ActivationFailed, CreatedAt: now, IdempotencyKey: "k6"},
	}
	m := calc.Compute(snap)
	if m.RegionalDegradationIndex.Value != 33.33 {
		t.Errorf("regionalDegradationIndex = %v, want 33.33", m.RegionalDegradationIndex.Value)
	}
	// Variance of [1, 1, 0.5] is 0.0556; stability = 100 - 5.56.
	if m.CountryStabilityIndex.Value != 94.44 {
		t.Errorf("countryStabilityIndex = %v, want 94.44", m.CountryStabilityIndex.Value)
	}
}

func TestMarginIsPureAndIdempotent(t *testing.T) {
	calc := NewCalculator(testSLA())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := baseSnapshot()
	snap.Activations = []models.ActivationRecord{
		{ID: "1", State: models.ActivationCompleted, CreatedAt: now, Price: 10, ProviderCost: 6, IdempotencyKey: "k1"},
		{ID: "2", State: models.ActivationSmsReceived, CreatedAt: now, Price: 20, IdempotencyKey: "k2"}, // cost estimated at 70%
	}
	first := calc.Compute(snap)
	second := calc.Compute(snap)
	if !reflect.DeepEqual(first.MarginPerService, second.MarginPerService) {
		t.Errorf("marginPerService not idempotent: %+v vs %+v", first.MarginPerService, second.MarginPerService)
	}
	// revenue 30, cost 6 + 14 = 20, margin 33.33%.
	if first.MarginPerService.Value != 33.33 {
		t.Errorf("marginPerService = %v, want 33.33", first.MarginPerService.Value)
	}
	if first.MarginPerService.Status != models.StatusExcellent {
		t.Errorf("marginPerService status = %s, want excellent", first.MarginPerService.Status)
	}
	if first.CostPerSuccessfulOperation.Value != 10.0 {
		t.Errorf("costPerSuccessfulOperation = %v, want 10.0", first.CostPerSuccessfulOperation.Value)
	}
	if first.RevenuePerSuccessfulOperation.Value != 15.0 {
		t.Errorf("revenuePerSuccessfulOperation = %v, want 15.0", first.RevenuePerSuccessfulOperation.Value)
	}
}

func TestLatencyComplianceStatuses(t *testing.T) {
	calc := NewCalculator(testSLA())

	snap := baseSnapshot()
	snap.Outcomes = outcomes(100, 0, 800)
	m := calc.Compute(snap)
	if m.P95LatencyCompliance.Value != 800 {
		t.Errorf("p95 = %v, want 800", m.P95LatencyCompliance.Value)
	}
	if m.P95LatencyCompliance.Status != models.StatusExcellent {
		t.Errorf("p95 status = %s, want excellent (800ms under 2000ms target)", m.P95LatencyCompliance.Status)
	}

	snap.Outcomes = outcomes(100, 0, 6000)
	m = calc.Compute(snap)
	if m.P99LatencyCompliance.Status == models.StatusExcellent {
		t.Errorf("p99 at 6000ms must not be excellent against a 5000ms target")
	}
}

func TestReliabilityScorePenalties(t *testing.T) {
	calc := NewCalculator(testSLA())

	snap := baseSnapshot()
	snap.Outcomes = outcomes(95, 5, 800)
	snap.Circuit = models.CircuitHealth{ProviderID: "acme", State: models.CircuitOpen, ConsecutiveFailures: 5}
	m := calc.Compute(snap)
	// 95 - 2*5 - 30 = 55.
	if m.ReliabilityScore.Value != 55.0 {
		t.Errorf("reliabilityScore = %v, want 55.0", m.ReliabilityScore.Value)
	}
	if m.ReliabilityScore.Status != models.StatusWarning {
		t.Errorf("reliabilityScore status = %s, want warning", m.ReliabilityScore.Status)
	}
	if m.ProviderAvailabilityRate.Value != 0 {
		t.Errorf("availability with open circuit = %v, want 0", m.ProviderAvailabilityRate.Value)
	}
	if m.ProviderAvailabilityRate.Status != models.StatusCritical {
		t.Errorf("availability status = %s, want critical", m.ProviderAvailabilityRate.Status)
	}
}

func TestQueueMetricsPassThrough(t *testing.T) {
	calc := NewCalculator(testSLA())

	snap := baseSnapshot()
	snap.Queue = models.QueueDepth{Waiting: 30, Active: 70, Failed: 2, Completed: 98}
	m := calc.Compute(snap)
	if m.QueueSaturationRatio.Value != 30.0 {
		t.Errorf("queueSaturationRatio = %v, want 30.0", m.QueueSaturationRatio.Value)
	}
	if m.WorkerFailureRate.Value != 2.0 {
		t.Errorf("workerFailureRate = %v, want 2.0", m.WorkerFailureRate.Value)
	}
}

func TestSetSLATakesEffect(t *testing.T) {
	calc := NewCalculator(testSLA())
	snap := baseSnapshot()
	snap.Outcomes = outcomes(94, 6, 800)

	if got := calc.Compute(snap).StrictFailureRate.Status; got != models.StatusWarning {
		t.Fatalf("status before reload = %s, want warning", got)
	}
	relaxed := testSLA()
	relaxed.FailureRate = config.Ladder{Excellent: 5, Good: 10, Warning: 20}
	calc.SetSLA(relaxed)
	if got := calc.Compute(snap).StrictFailureRate.Status; got != models.StatusGood {
		t.Fatalf("status after reload = %s, want good", got)
	}
}
