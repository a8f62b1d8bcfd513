package models

import "time"

// MetricStatus classifies a metric value against its thresholds.
type MetricStatus string

const (
	StatusExcellent MetricStatus = "excellent"
	StatusGood      MetricStatus = "good"
	StatusWarning   MetricStatus = "warning"
	StatusCritical  MetricStatus = "critical"
)

// Trend is an optional direction hint for dashboards.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// MetricValue is one derived metric. Values are recomputed on every query and
// never persisted by this engine.
type MetricValue struct {
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	Status      MetricStatus `json:"status"`
	Trend       Trend        `json:"trend,omitempty"`
	Description string       `json:"description"`
}

// ProviderMetrics bundles the full derived metric set for one provider.
type ProviderMetrics struct {
	ProviderID        string    `json:"providerId"`
	ProviderName      string    `json:"providerName"`
	CalculatedAt      time.Time `json:"calculatedAt"`
	TimeWindowMinutes int       `json:"timeWindowMinutes"`

	// Success & reliability
	AdjustedSuccessRate     MetricValue `json:"adjustedSuccessRate"`
	EffectiveCompletionRate MetricValue `json:"effectiveCompletionRate"`
	LateResolutionRatio     MetricValue `json:"lateResolutionRatio"`
	StrictFailureRate       MetricValue `json:"strictFailureRate"`
	SlaComplianceRate       MetricValue `json:"slaComplianceRate"`
	ReliabilityScore        MetricValue `json:"reliabilityScore"`
	FirstAttemptSuccessRate MetricValue `json:"firstAttemptSuccessRate"`
	RecoverySuccessRate     MetricValue `json:"recoverySuccessRate"`
	PermanentFailureRatio   MetricValue `json:"permanentFailureRatio"`

	// Latency & performance
	LatencyEfficiencyScore MetricValue `json:"latencyEfficiencyScore"`
	RetryImpactRatio       MetricValue `json:"retryImpactRatio"`
	TimeoutBreachRate      MetricValue `json:"timeoutBreachRate"`
	P95LatencyCompliance   MetricValue `json:"p95LatencyCompliance"`
	P99LatencyCompliance   MetricValue `json:"p99LatencyCompliance"`

	// Regional
	CountryStabilityIndex    MetricValue `json:"countryStabilityIndex"`
	RegionalDegradationIndex MetricValue `json:"regionalDegradationIndex"`

	// Operational
	OperationalIntegrityScore MetricValue `json:"operationalIntegrityScore"`
	WorkerFailureRate         MetricValue `json:"workerFailureRate"`
	QueueSaturationRatio      MetricValue `json:"queueSaturationRatio"`
	IdempotencyViolationRate  MetricValue `json:"idempotencyViolationRate"`
	ProviderAvailabilityRate  MetricValue `json:"providerAvailabilityRate"`
	CallbackCompletionRate    MetricValue `json:"callbackCompletionRate"`

	// Financial
	CostPerSuccessfulOperation    MetricValue `json:"costPerSuccessfulOperation"`
	RevenuePerSuccessfulOperation MetricValue `json:"revenuePerSuccessfulOperation"`
	MarginPerService              MetricValue `json:"marginPerService"`
}

// SystemAggregate is the platform-wide rollup of per-provider metrics.
type SystemAggregate struct {
	OverallHealthScore   float64 `json:"overallHealthScore"`
	PlatformSlaCompliance float64 `json:"platformSlaCompliance"`
	TotalTransactions    int     `json:"totalTransactions"`
	TotalRevenue         float64 `json:"totalRevenue"`
	AvgMargin            float64 `json:"avgMargin"`
}

// SystemMetrics is the full response of one metrics computation pass.
type SystemMetrics struct {
	CalculatedAt      time.Time         `json:"calculatedAt"`
	TimeWindowMinutes int               `json:"timeWindowMinutes"`
	Providers         []ProviderMetrics `json:"providers"`
	Aggregate         SystemAggregate   `json:"aggregate"`
}
