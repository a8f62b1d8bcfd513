package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	CORS       CORSConfig       `mapstructure:"cors" yaml:"cors"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Breaker    BreakerConfig    `mapstructure:"breaker" yaml:"breaker"`
	OutcomeLog OutcomeLogConfig `mapstructure:"outcome_log" yaml:"outcome_log"`
	SLA        SLAConfig        `mapstructure:"sla" yaml:"sla"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket" yaml:"websocket"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
}

// CacheConfig handles the Valkey keyspace holding all ephemeral engine state
// (outcome logs, circuit snapshots, queue counters, registry entries).
type CacheConfig struct {
	Nodes    []string `mapstructure:"nodes" yaml:"nodes"`
	TTL      int      `mapstructure:"ttl" yaml:"ttl"` // seconds
	Password string   `mapstructure:"password" yaml:"password"`
	DB       int      `mapstructure:"db" yaml:"db"`
}

// CORSConfig handles Cross-Origin Resource Sharing for the dashboard UI.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// EngineConfig tunes the metrics computation pass.
type EngineConfig struct {
	// DefaultWindowMinutes is used when callers omit the window parameter.
	DefaultWindowMinutes int `mapstructure:"default_window_minutes" yaml:"default_window_minutes"`
	// MaxWindowMinutes bounds caller-supplied windows and drives log retention.
	MaxWindowMinutes int `mapstructure:"max_window_minutes" yaml:"max_window_minutes"`
	// ProviderConcurrency caps the per-provider fan-out of a computation pass.
	ProviderConcurrency int `mapstructure:"provider_concurrency" yaml:"provider_concurrency"`
	// FetchTimeoutMs bounds each external read; reads past it degrade to empty.
	FetchTimeoutMs int `mapstructure:"fetch_timeout_ms" yaml:"fetch_timeout_ms"`
	// ResultCacheTTLSeconds is how long a computed SystemMetrics payload is
	// served from cache before recomputation. Zero disables caching.
	ResultCacheTTLSeconds int `mapstructure:"result_cache_ttl_seconds" yaml:"result_cache_ttl_seconds"`
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold  int `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	CooldownSeconds   int `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
	LatencySampleSize int `mapstructure:"latency_sample_size" yaml:"latency_sample_size"`
}

// OutcomeLogConfig bounds the per-provider request outcome log.
type OutcomeLogConfig struct {
	MaxEntriesPerProvider int `mapstructure:"max_entries_per_provider" yaml:"max_entries_per_provider"`
	RetentionMinutes      int `mapstructure:"retention_minutes" yaml:"retention_minutes"`
}

// Ladder holds three classification boundaries. Interpretation depends on the
// metric's polarity: for higher-is-better metrics a value at or above
// Excellent classifies as excellent; for lower-is-better metrics a value at
// or below Excellent does.
type Ladder struct {
	Excellent float64 `mapstructure:"excellent" yaml:"excellent"`
	Good      float64 `mapstructure:"good" yaml:"good"`
	Warning   float64 `mapstructure:"warning" yaml:"warning"`
}

// SLAConfig is the single injected threshold structure for the metrics
// calculator. Operators tune alerting sensitivity here, never in code.
type SLAConfig struct {
	// SuccessRatePct is the SLA success-rate target used by the relative
	// ladder (>=t excellent, >=0.9t good, >=0.7t warning, else critical).
	SuccessRatePct float64 `mapstructure:"success_rate_pct" yaml:"success_rate_pct"`
	// P95LatencyMs / P99LatencyMs are the latency compliance targets.
	P95LatencyMs float64 `mapstructure:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs float64 `mapstructure:"p99_latency_ms" yaml:"p99_latency_ms"`
	// CompletionTimeSeconds bounds activation resolution time; completions
	// past it count as late resolutions.
	CompletionTimeSeconds float64 `mapstructure:"completion_time_seconds" yaml:"completion_time_seconds"`
	// CostFallbackRatio estimates provider cost as a fraction of price when
	// the activation carries no providerCost. Approximation; remove once
	// upstream cost data is always populated.
	CostFallbackRatio float64 `mapstructure:"cost_fallback_ratio" yaml:"cost_fallback_ratio"`
	// DegradationGapPoints is how many percentage points below the
	// cross-country average a country must fall to count as degraded.
	DegradationGapPoints float64 `mapstructure:"degradation_gap_points" yaml:"degradation_gap_points"`

	// Score classifies 0-100 higher-is-better composite scores.
	Score Ladder `mapstructure:"score" yaml:"score"`
	// FailureRate classifies lower-is-better failure percentages.
	FailureRate Ladder `mapstructure:"failure_rate" yaml:"failure_rate"`
	// Ratio classifies lower-is-better percentage ratios (retries,
	// idempotency violations, late resolutions).
	Ratio Ladder `mapstructure:"ratio" yaml:"ratio"`
	// Saturation classifies lower-is-better queue saturation percentages.
	Saturation Ladder `mapstructure:"saturation" yaml:"saturation"`
	// Margin classifies higher-is-better margin percentages.
	Margin Ladder `mapstructure:"margin" yaml:"margin"`
}

// WebSocketConfig handles the live circuit-transition stream.
type WebSocketConfig struct {
	Enabled             bool `mapstructure:"enabled" yaml:"enabled"`
	PingIntervalSeconds int  `mapstructure:"ping_interval_seconds" yaml:"ping_interval_seconds"`
	WriteBufferSize     int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	ReadBufferSize      int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
}

// MonitoringConfig handles self-monitoring configuration.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}
