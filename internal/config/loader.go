package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// usedConfigFile remembers which file Load resolved, for the SLA watcher.
var usedConfigFile string

// UsedConfigFile returns the path of the config file the last Load read, or
// empty when booting on env vars and defaults alone.
func UsedConfigFile() string {
	return usedConfigFile
}

// Load loads configuration from various sources with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/pulse/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PULSE")

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough to boot.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	usedConfigFile = v.ConfigFileUsed()

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Cache defaults (Valkey)
	v.SetDefault("cache.nodes", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", 300) // 5 minutes
	v.SetDefault("cache.db", 0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// Engine defaults
	v.SetDefault("engine.default_window_minutes", 60)
	v.SetDefault("engine.max_window_minutes", 1440) // 24h, drives log retention
	v.SetDefault("engine.provider_concurrency", 8)
	v.SetDefault("engine.fetch_timeout_ms", 1500)
	v.SetDefault("engine.result_cache_ttl_seconds", 15)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_seconds", 60)
	v.SetDefault("breaker.latency_sample_size", 100)

	// Outcome log defaults
	v.SetDefault("outcome_log.max_entries_per_provider", 10000)
	v.SetDefault("outcome_log.retention_minutes", 1440)

	// SLA thresholds
	v.SetDefault("sla.success_rate_pct", 95.0)
	v.SetDefault("sla.p95_latency_ms", 2000.0)
	v.SetDefault("sla.p99_latency_ms", 5000.0)
	v.SetDefault("sla.completion_time_seconds", 120.0)
	v.SetDefault("sla.cost_fallback_ratio", 0.70)
	v.SetDefault("sla.degradation_gap_points", 20.0)
	v.SetDefault("sla.score.excellent", 90.0)
	v.SetDefault("sla.score.good", 75.0)
	v.SetDefault("sla.score.warning", 50.0)
	v.SetDefault("sla.failure_rate.excellent", 1.0)
	v.SetDefault("sla.failure_rate.good", 5.0)
	v.SetDefault("sla.failure_rate.warning", 10.0)
	v.SetDefault("sla.ratio.excellent", 10.0)
	v.SetDefault("sla.ratio.good", 25.0)
	v.SetDefault("sla.ratio.warning", 50.0)
	v.SetDefault("sla.saturation.excellent", 20.0)
	v.SetDefault("sla.saturation.good", 50.0)
	v.SetDefault("sla.saturation.warning", 80.0)
	v.SetDefault("sla.margin.excellent", 30.0)
	v.SetDefault("sla.margin.good", 20.0)
	v.SetDefault("sla.margin.warning", 10.0)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.ping_interval_seconds", 30)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

// overrideWithEnvVars explicitly handles environment variable overrides
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Valkey cache nodes
	if cacheNodes := os.Getenv("VALKEY_NODES"); cacheNodes != "" {
		nodes := strings.Split(cacheNodes, ",")
		for i, node := range nodes {
			nodes[i] = strings.TrimSpace(node)
		}
		v.Set("cache.nodes", nodes)
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if ttl, err := strconv.Atoi(cacheTTL); err == nil {
			v.Set("cache.ttl", ttl)
		}
	}

	if threshold := os.Getenv("BREAKER_FAILURE_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			v.Set("breaker.failure_threshold", t)
		}
	}

	if cooldown := os.Getenv("BREAKER_COOLDOWN_SECONDS"); cooldown != "" {
		if c, err := strconv.Atoi(cooldown); err == nil {
			v.Set("breaker.cooldown_seconds", c)
		}
	}

	if window := os.Getenv("METRICS_WINDOW_MINUTES"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			v.Set("engine.default_window_minutes", w)
		}
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if len(config.Cache.Nodes) == 0 {
		return fmt.Errorf("at least one Valkey cache node is required")
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Cache.TTL < 1 {
		return fmt.Errorf("cache TTL must be at least 1 second")
	}

	if config.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}

	if config.Breaker.CooldownSeconds < 1 {
		return fmt.Errorf("breaker cooldown must be at least 1 second")
	}

	if config.Breaker.LatencySampleSize < 1 {
		return fmt.Errorf("breaker latency sample size must be at least 1")
	}

	if config.Engine.DefaultWindowMinutes < 1 {
		return fmt.Errorf("default metrics window must be at least 1 minute")
	}

	if config.Engine.MaxWindowMinutes < config.Engine.DefaultWindowMinutes {
		return fmt.Errorf("max metrics window (%d) must not be smaller than the default window (%d)",
			config.Engine.MaxWindowMinutes, config.Engine.DefaultWindowMinutes)
	}

	if config.Engine.ProviderConcurrency < 1 {
		return fmt.Errorf("provider concurrency must be at least 1")
	}

	if config.OutcomeLog.MaxEntriesPerProvider < 1 {
		return fmt.Errorf("outcome log cap must be at least 1 entry per provider")
	}

	if config.SLA.SuccessRatePct <= 0 || config.SLA.SuccessRatePct > 100 {
		return fmt.Errorf("SLA success rate must be in (0, 100], got %v", config.SLA.SuccessRatePct)
	}

	if config.SLA.CostFallbackRatio < 0 || config.SLA.CostFallbackRatio > 1 {
		return fmt.Errorf("cost fallback ratio must be in [0, 1], got %v", config.SLA.CostFallbackRatio)
	}

	if config.SLA.P95LatencyMs <= 0 || config.SLA.P99LatencyMs <= 0 {
		return fmt.Errorf("SLA latency thresholds must be positive")
	}

	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
