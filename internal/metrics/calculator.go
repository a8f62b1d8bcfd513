package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/models"
)

// Snapshot is the complete read set for one provider's computation pass. All
// fields are immutable copies; computing metrics never touches live state.
type Snapshot struct {
	Provider     models.Provider
	Outcomes     []models.RequestOutcome
	Activations  []models.ActivationRecord
	Transactions []models.TransactionRecord
	Queue        models.QueueDepth
	Circuit      models.CircuitHealth

	Now           time.Time
	WindowMinutes int
}

// Calculator derives the per-provider metric set from a Snapshot. It holds no
// state beyond the injected SLA thresholds, which can be swapped at runtime
// when the config file changes.
type Calculator struct {
	mu  sync.RWMutex
	sla config.SLAConfig
}

func NewCalculator(sla config.SLAConfig) *Calculator {
	return &Calculator{sla: sla}
}

// SetSLA replaces the threshold set. Passes already in flight keep the
// thresholds they started with.
func (c *Calculator) SetSLA(sla config.SLAConfig) {
	c.mu.Lock()
	c.sla = sla
	c.mu.Unlock()
}

func (c *Calculator) SLA() config.SLAConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sla
}

// attemptGroup collects the retries of one logical operation, oldest first.
type attemptGroup struct {
	key      string
	attempts []models.ActivationRecord
}

// derived holds intermediates shared across metric functions so each metric
// stays a small pure transform.
type derived struct {
	total     int
	successes int
	failures  int
	// rawSuccessRate is a percentage; only meaningful when total > 0.
	rawSuccessRate float64

	latencies  []int64
	avgLatency float64

	terminalCount int
	successEq     []models.ActivationRecord

	groups []attemptGroup

	// countryRates maps country code to success-equivalent fraction (0..1)
	// over terminal activations.
	countryRates map[string]float64
}

func derive(snap Snapshot) derived {
	d := derived{countryRates: map[string]float64{}}

	d.total = len(snap.Outcomes)
	d.latencies = make([]int64, 0, d.total)
	for _, o := range snap.Outcomes {
		if o.Success {
			d.successes++
		} else {
			d.failures++
		}
		d.latencies = append(d.latencies, o.LatencyMs)
	}
	if d.total > 0 {
		d.rawSuccessRate = float64(d.successes) / float64(d.total) * 100
	}
	d.avgLatency = meanInt64(d.latencies)

	byKey := map[string][]models.ActivationRecord{}
	terminalByCountry := map[string]int{}
	successByCountry := map[string]int{}
	for _, a := range snap.Activations {
		key := a.IdempotencyKey
		if key == "" {
			// No key means no retries are possible; the record is its own group.
			key = "id:" + a.ID
		}
		byKey[key] = append(byKey[key], a)

		if a.State.IsTerminal() {
			d.terminalCount++
			terminalByCountry[a.CountryCode]++
			if a.State.IsSuccessEquivalent() {
				successByCountry[a.CountryCode]++
			}
		}
		if a.State.IsSuccessEquivalent() {
			d.successEq = append(d.successEq, a)
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attempts := byKey[k]
		sort.Slice(attempts, func(i, j int) bool { return attempts[i].CreatedAt.Before(attempts[j].CreatedAt) })
		d.groups = append(d.groups, attemptGroup{key: k, attempts: attempts})
	}

	for country, terminal := range terminalByCountry {
		d.countryRates[country] = float64(successByCountry[country]) / float64(terminal)
	}
	return d
}

// Compute derives the full metric set for one provider. Pure given its
// inputs; safe to call concurrently.
func (c *Calculator) Compute(snap Snapshot) models.ProviderMetrics {
	sla := c.SLA()
	d := derive(snap)

	m := models.ProviderMetrics{
		ProviderID:        snap.Provider.ID,
		ProviderName:      snap.Provider.Name,
		CalculatedAt:      snap.Now,
		TimeWindowMinutes: snap.WindowMinutes,
	}

	m.AdjustedSuccessRate = adjustedSuccessRate(d, sla)
	m.EffectiveCompletionRate = effectiveCompletionRate(d, sla)
	m.LateResolutionRatio = lateResolutionRatio(d, sla)
	m.StrictFailureRate = strictFailureRate(d, sla)
	m.SlaComplianceRate = slaComplianceRate(snap, d, sla)
	m.ReliabilityScore = reliabilityScore(snap, d, sla)
	m.FirstAttemptSuccessRate = firstAttemptSuccessRate(d, sla)
	m.RecoverySuccessRate = recoverySuccessRate(d, sla)
	m.PermanentFailureRatio = permanentFailureRatio(d, sla)

	m.LatencyEfficiencyScore = latencyEfficiencyScore(d, sla)
	retried := retriedGroupsPct(d)
	m.RetryImpactRatio = retryImpactRatio(d, retried, sla)
	m.TimeoutBreachRate = timeoutBreachRate(snap, sla)
	m.P95LatencyCompliance = latencyCompliance(d, 0.95, sla.P95LatencyMs, "p95")
	m.P99LatencyCompliance = latencyCompliance(d, 0.99, sla.P99LatencyMs, "p99")

	m.CountryStabilityIndex = countryStabilityIndex(d, sla)
	m.RegionalDegradationIndex = regionalDegradationIndex(d, sla)

	m.OperationalIntegrityScore = operationalIntegrityScore(snap, d, sla)
	m.WorkerFailureRate = workerFailureRate(snap, sla)
	m.QueueSaturationRatio = queueSaturationRatio(snap, sla)
	m.IdempotencyViolationRate = idempotencyViolationRate(d, retried, sla)
	m.ProviderAvailabilityRate = providerAvailabilityRate(snap, sla)
	m.CallbackCompletionRate = callbackCompletionRate(snap, d, sla)

	m.CostPerSuccessfulOperation = costPerSuccessfulOperation(d, sla)
	m.RevenuePerSuccessfulOperation = revenuePerSuccessfulOperation(d)
	m.MarginPerService = marginPerService(d, sla)

	return m
}

// noData is the uniform empty-window result: a polarity-appropriate default,
// status good, and a description flagging the emptiness. Never an error.
func noData(value float64, unit, what string) models.MetricValue {
	return models.MetricValue{
		Value:       value,
		Unit:        unit,
		Status:      models.StatusGood,
		Description: what + ": no data in window",
	}
}

func adjustedSuccessRate(d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 && d.terminalCount == 0 {
		return noData(100, "%", "adjusted success rate")
	}
	// Raw request success blended with lifecycle-terminal completions at half
	// weight. A smoothing heuristic, not a strict ratio.
	var num, den float64
	if d.total > 0 {
		num += d.rawSuccessRate
		den += 1
	}
	if d.terminalCount > 0 {
		termRate := float64(len(terminalSuccess(d))) / float64(d.terminalCount) * 100
		num += 0.5 * termRate
		den += 0.5
	}
	v := round2(num / den)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: fmt.Sprintf("blended request/lifecycle success over %d requests, %d terminal activations", d.total, d.terminalCount),
	}
}

func terminalSuccess(d derived) []models.ActivationRecord {
	out := make([]models.ActivationRecord, 0, len(d.successEq))
	for _, a := range d.successEq {
		if a.State.IsTerminal() {
			out = append(out, a)
		}
	}
	return out
}

func effectiveCompletionRate(d derived, sla config.SLAConfig) models.MetricValue {
	if d.terminalCount == 0 {
		return noData(100, "%", "effective completion rate")
	}
	v := round2(float64(len(terminalSuccess(d))) / float64(d.terminalCount) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: fmt.Sprintf("%d of %d terminal activations delivered", len(terminalSuccess(d)), d.terminalCount),
	}
}

func lateResolutionRatio(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.successEq) == 0 {
		return noData(0, "%", "late resolution ratio")
	}
	late := 0
	for _, a := range d.successEq {
		if a.UpdatedAt.Sub(a.CreatedAt).Seconds() > sla.CompletionTimeSeconds {
			late++
		}
	}
	v := round2(float64(late) / float64(len(d.successEq)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.Ratio),
		Description: fmt.Sprintf("%d of %d completions exceeded %.0fs", late, len(d.successEq), sla.CompletionTimeSeconds),
	}
}

func strictFailureRate(d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 {
		return noData(0, "%", "strict failure rate")
	}
	v := round2(float64(d.failures) / float64(d.total) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.FailureRate),
		Description: fmt.Sprintf("%d hard failures over %d requests", d.failures, d.total),
	}
}

func slaComplianceRate(snap Snapshot, d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 {
		return noData(100, "%", "SLA compliance rate")
	}
	compliant := 0
	for _, o := range snap.Outcomes {
		if o.Success && float64(o.LatencyMs) <= sla.P95LatencyMs {
			compliant++
		}
	}
	v := round2(float64(compliant) / float64(d.total) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: fmt.Sprintf("%d of %d requests succeeded under %.0fms", compliant, d.total, sla.P95LatencyMs),
	}
}

func reliabilityScore(snap Snapshot, d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 {
		return noData(100, "score", "reliability score")
	}
	penalty := float64(snap.Circuit.ConsecutiveFailures) * 2
	switch snap.Circuit.State {
	case models.CircuitOpen:
		penalty += 30
	case models.CircuitHalfOpen:
		penalty += 15
	}
	v := round2(clamp(d.rawSuccessRate-penalty, 0, 100))
	return models.MetricValue{
		Value:       v,
		Unit:        "score",
		Status:      statusHigherBetter(v, sla.Score),
		Description: fmt.Sprintf("success rate %.1f%% with circuit %s, %d consecutive failures", d.rawSuccessRate, snap.Circuit.State, snap.Circuit.ConsecutiveFailures),
	}
}

func firstAttemptSuccessRate(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.groups) == 0 {
		return noData(100, "%", "first attempt success rate")
	}
	firstOK := 0
	for _, g := range d.groups {
		if g.attempts[0].State.IsSuccessEquivalent() {
			firstOK++
		}
	}
	v := round2(float64(firstOK) / float64(len(d.groups)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: fmt.Sprintf("%d of %d operations delivered on the earliest attempt", firstOK, len(d.groups)),
	}
}

func isFailureState(s models.ActivationState) bool {
	return s == models.ActivationFailed || s == models.ActivationExpired || s == models.ActivationCancelled
}

func recoverySuccessRate(d derived, sla config.SLAConfig) models.MetricValue {
	failedGroups, recovered := 0, 0
	for _, g := range d.groups {
		hadFailure, hadSuccess := false, false
		for _, a := range g.attempts {
			if isFailureState(a.State) {
				hadFailure = true
			}
			if a.State.IsSuccessEquivalent() {
				hadSuccess = true
			}
		}
		if hadFailure {
			failedGroups++
			if hadSuccess {
				recovered++
			}
		}
	}
	if failedGroups == 0 {
		return noData(100, "%", "recovery success rate")
	}
	v := round2(float64(recovered) / float64(failedGroups) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusHigherBetter(v, sla.Score),
		Description: fmt.Sprintf("%d of %d failed operations later delivered", recovered, failedGroups),
	}
}

func permanentFailureRatio(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.groups) == 0 {
		return noData(0, "%", "permanent failure ratio")
	}
	permanent := 0
	for _, g := range d.groups {
		allTerminal, anySuccess := true, false
		for _, a := range g.attempts {
			if !a.State.IsTerminal() {
				allTerminal = false
			}
			if a.State.IsSuccessEquivalent() {
				anySuccess = true
			}
		}
		if allTerminal && !anySuccess {
			permanent++
		}
	}
	v := round2(float64(permanent) / float64(len(d.groups)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.Ratio),
		Description: fmt.Sprintf("%d of %d operations ended with no delivery", permanent, len(d.groups)),
	}
}

func latencyEfficiencyScore(d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 {
		return noData(100, "score", "latency efficiency score")
	}
	v := round2(clamp(100-(d.avgLatency/sla.P95LatencyMs*100), 0, 100))
	return models.MetricValue{
		Value:       v,
		Unit:        "score",
		Status:      statusHigherBetter(v, sla.Score),
		Description: fmt.Sprintf("average latency %.0fms against %.0fms p95 target", d.avgLatency, sla.P95LatencyMs),
	}
}

// retriedGroupsPct is the shared signal behind both retryImpactRatio and
// idempotencyViolationRate. Negative means no groups in window.
func retriedGroupsPct(d derived) float64 {
	if len(d.groups) == 0 {
		return -1
	}
	retried := 0
	for _, g := range d.groups {
		if len(g.attempts) > 1 {
			retried++
		}
	}
	return round2(float64(retried) / float64(len(d.groups)) * 100)
}

func retryImpactRatio(d derived, retriedPct float64, sla config.SLAConfig) models.MetricValue {
	if retriedPct < 0 {
		return noData(0, "%", "retry impact ratio")
	}
	return models.MetricValue{
		Value:       retriedPct,
		Unit:        "%",
		Status:      statusLowerBetter(retriedPct, sla.Ratio),
		Description: fmt.Sprintf("share of %d operations needing more than one attempt", len(d.groups)),
	}
}

func idempotencyViolationRate(d derived, retriedPct float64, sla config.SLAConfig) models.MetricValue {
	if retriedPct < 0 {
		return noData(0, "%", "idempotency violation rate")
	}
	return models.MetricValue{
		Value:       retriedPct,
		Unit:        "%",
		Status:      statusLowerBetter(retriedPct, sla.Ratio),
		Description: fmt.Sprintf("share of %d idempotency keys with duplicate records", len(d.groups)),
	}
}

func timeoutBreachRate(snap Snapshot, sla config.SLAConfig) models.MetricValue {
	if len(snap.Activations) == 0 {
		return noData(0, "%", "timeout breach rate")
	}
	expired := 0
	for _, a := range snap.Activations {
		if a.State == models.ActivationExpired {
			expired++
		}
	}
	v := round2(float64(expired) / float64(len(snap.Activations)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.FailureRate),
		Description: fmt.Sprintf("%d of %d activations expired unresolved", expired, len(snap.Activations)),
	}
}

func latencyCompliance(d derived, p, targetMs float64, label string) models.MetricValue {
	if d.total == 0 {
		return noData(0, "ms", label+" latency")
	}
	v := percentileOf(d.latencies, p)
	return models.MetricValue{
		Value:       v,
		Unit:        "ms",
		Status:      statusLatency(v, targetMs),
		Description: fmt.Sprintf("%s latency over %d requests, target %.0fms", label, d.total, targetMs),
	}
}

func countryStabilityIndex(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.countryRates) == 0 {
		return noData(100, "score", "country stability index")
	}
	var sum float64
	for _, r := range d.countryRates {
		sum += r
	}
	mean := sum / float64(len(d.countryRates))
	var variance float64
	for _, r := range d.countryRates {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(d.countryRates))
	v := round2(clamp(100-100*variance, 0, 100))
	return models.MetricValue{
		Value:       v,
		Unit:        "score",
		Status:      statusHigherBetter(v, sla.Score),
		Description: fmt.Sprintf("success-rate variance across %d countries", len(d.countryRates)),
	}
}

func regionalDegradationIndex(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.countryRates) == 0 {
		return noData(0, "%", "regional degradation index")
	}
	var sum float64
	for _, r := range d.countryRates {
		sum += r
	}
	mean := sum / float64(len(d.countryRates))
	gap := sla.DegradationGapPoints / 100
	degraded := 0
	for _, r := range d.countryRates {
		if r < mean-gap {
			degraded++
		}
	}
	v := round2(float64(degraded) / float64(len(d.countryRates)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.Ratio),
		Description: fmt.Sprintf("%d of %d countries more than %.0fpp below average", degraded, len(d.countryRates), sla.DegradationGapPoints),
	}
}

func operationalIntegrityScore(snap Snapshot, d derived, sla config.SLAConfig) models.MetricValue {
	if d.total == 0 && snap.Circuit.State == models.CircuitClosed {
		return noData(100, "score", "operational integrity score")
	}
	successPart := 100.0
	if d.total > 0 {
		successPart = d.rawSuccessRate
	}
	circuitBonus := 0.0
	switch snap.Circuit.State {
	case models.CircuitClosed:
		circuitBonus = 100
	case models.CircuitHalfOpen:
		circuitBonus = 50
	}
	v := round2(0.6*successPart + 0.4*circuitBonus)
	return models.MetricValue{
		Value:       v,
		Unit:        "score",
		Status:      statusHigherBetter(v, sla.Score),
		Description: fmt.Sprintf("60%% success rate, 40%% circuit position (%s)", snap.Circuit.State),
	}
}

func workerFailureRate(snap Snapshot, sla config.SLAConfig) models.MetricValue {
	done := snap.Queue.Failed + snap.Queue.Completed
	if done == 0 {
		return noData(0, "%", "worker failure rate")
	}
	v := round2(float64(snap.Queue.Failed) / float64(done) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.FailureRate),
		Description: fmt.Sprintf("%d failed of %d finished jobs", snap.Queue.Failed, done),
	}
}

func queueSaturationRatio(snap Snapshot, sla config.SLAConfig) models.MetricValue {
	inFlight := snap.Queue.Waiting + snap.Queue.Active
	if inFlight == 0 {
		return noData(0, "%", "queue saturation ratio")
	}
	v := round2(float64(snap.Queue.Waiting) / float64(inFlight) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusLowerBetter(v, sla.Saturation),
		Description: fmt.Sprintf("%d waiting against %d in flight", snap.Queue.Waiting, inFlight),
	}
}

func providerAvailabilityRate(snap Snapshot, sla config.SLAConfig) models.MetricValue {
	v := 100.0
	if snap.Circuit.State == models.CircuitOpen {
		v = 0
	}
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: snap.Circuit.State.Description(),
	}
}

func callbackCompletionRate(snap Snapshot, d derived, sla config.SLAConfig) models.MetricValue {
	if len(snap.Activations) == 0 {
		return noData(100, "%", "callback completion rate")
	}
	v := round2(float64(len(d.successEq)) / float64(len(snap.Activations)) * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusRelativeToSLA(v, sla.SuccessRatePct),
		Description: fmt.Sprintf("%d of %d activations reached delivery", len(d.successEq), len(snap.Activations)),
	}
}

// costOf prefers the recorded provider cost and falls back to the configured
// fraction of price when upstream never populated it.
func costOf(a models.ActivationRecord, sla config.SLAConfig) (cost float64, estimated bool) {
	if a.ProviderCost > 0 {
		return a.ProviderCost, false
	}
	return a.Price * sla.CostFallbackRatio, true
}

func costPerSuccessfulOperation(d derived, sla config.SLAConfig) models.MetricValue {
	if len(d.successEq) == 0 {
		return noData(0, "USD", "cost per successful operation")
	}
	var total float64
	estimated := 0
	for _, a := range d.successEq {
		c, est := costOf(a, sla)
		total += c
		if est {
			estimated++
		}
	}
	v := round2(total / float64(len(d.successEq)))
	desc := fmt.Sprintf("mean provider cost over %d delivered activations", len(d.successEq))
	if estimated > 0 {
		desc = fmt.Sprintf("%s (%d estimated at %.0f%% of price)", desc, estimated, sla.CostFallbackRatio*100)
	}
	return models.MetricValue{Value: v, Unit: "USD", Status: models.StatusGood, Description: desc}
}

func revenuePerSuccessfulOperation(d derived) models.MetricValue {
	if len(d.successEq) == 0 {
		return noData(0, "USD", "revenue per successful operation")
	}
	var total float64
	for _, a := range d.successEq {
		total += a.Price
	}
	v := round2(total / float64(len(d.successEq)))
	return models.MetricValue{
		Value:       v,
		Unit:        "USD",
		Status:      models.StatusGood,
		Description: fmt.Sprintf("mean price over %d delivered activations", len(d.successEq)),
	}
}

func marginPerService(d derived, sla config.SLAConfig) models.MetricValue {
	var revenue, cost float64
	for _, a := range d.successEq {
		revenue += a.Price
		c, _ := costOf(a, sla)
		cost += c
	}
	if revenue == 0 {
		return noData(0, "%", "margin per service")
	}
	v := round2((revenue - cost) / revenue * 100)
	return models.MetricValue{
		Value:       v,
		Unit:        "%",
		Status:      statusHigherBetter(v, sla.Margin),
		Description: fmt.Sprintf("%.2f revenue against %.2f cost", revenue, cost),
	}
}
