package models

import "time"

// RequestOutcome is one normalized upstream call result. Outcomes are
// append-only; the log layer prunes them outside the retention window.
type RequestOutcome struct {
	ProviderID  string `json:"providerId"`
	TimestampMs int64  `json:"timestampMs"`
	Success     bool   `json:"success"`
	LatencyMs   int64  `json:"latencyMs"`
}

// Timestamp converts the wire millisecond timestamp to time.Time.
func (o RequestOutcome) Timestamp() time.Time {
	return time.UnixMilli(o.TimestampMs)
}

// CircuitState is the per-provider breaker state reported to upstream
// traffic gates. This engine never blocks traffic itself.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// Description returns the operator-facing explanation of a state.
func (s CircuitState) Description() string {
	switch s {
	case CircuitOpen:
		return "circuit open: provider is failing, requests are short-circuited upstream"
	case CircuitHalfOpen:
		return "circuit half-open: cooldown elapsed, next outcome decides recovery"
	default:
		return "circuit closed: provider is operating normally"
	}
}

// CircuitHealth is an immutable snapshot of a provider's breaker. The breaker
// owns the live record; readers only ever see copies.
type CircuitHealth struct {
	ProviderID          string       `json:"providerId"`
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastTransitionAt    time.Time    `json:"lastTransitionAt"`
	LatencySamplesMs    []int64      `json:"lastLatencySamples"`
}

// ActivationState is the lifecycle state of an activation record. Lifecycle
// transitions are owned by the external lifecycle manager.
type ActivationState string

const (
	ActivationActive      ActivationState = "ACTIVE"
	ActivationCompleted   ActivationState = "COMPLETED"
	ActivationSmsReceived ActivationState = "SMS_RECEIVED"
	ActivationFailed      ActivationState = "FAILED"
	ActivationExpired     ActivationState = "EXPIRED"
	ActivationCancelled   ActivationState = "CANCELLED"
)

// IsTerminal reports whether no further lifecycle transition occurs.
func (s ActivationState) IsTerminal() bool {
	switch s {
	case ActivationCompleted, ActivationSmsReceived, ActivationFailed, ActivationExpired, ActivationCancelled:
		return true
	}
	return false
}

// IsSuccessEquivalent reports whether the state counts as a delivered
// activation for completion and first-attempt metrics.
func (s ActivationState) IsSuccessEquivalent() bool {
	return s == ActivationCompleted || s == ActivationSmsReceived
}

// ActivationRecord is a read-only projection of the lifecycle store's row.
type ActivationRecord struct {
	ID             string          `json:"id"`
	ProviderID     string          `json:"providerId"`
	State          ActivationState `json:"state"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	CountryCode    string          `json:"countryCode"`
	Price          float64         `json:"price"`
	ProviderCost   float64         `json:"providerCost"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// TransactionRecord is a read-only wallet ledger row. Provider attribution is
// a substring match on Description; see the financial metrics for the caveat.
type TransactionRecord struct {
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description"`
}

// QueueDepth carries queue counters read from the external job broker.
type QueueDepth struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
}

// Provider is a registry entry for an active upstream SMS provider.
type Provider struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PriceMultiplier float64 `json:"priceMultiplier"`
	FixedMarkup     float64 `json:"fixedMarkup"`
}
