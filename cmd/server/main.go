package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smsgate/pulse-core/internal/api"
	"github.com/smsgate/pulse-core/internal/breaker"
	"github.com/smsgate/pulse-core/internal/config"
	"github.com/smsgate/pulse-core/internal/metrics"
	"github.com/smsgate/pulse-core/internal/outcomelog"
	"github.com/smsgate/pulse-core/internal/services"
	"github.com/smsgate/pulse-core/internal/stores"
	"github.com/smsgate/pulse-core/pkg/cache"
	"github.com/smsgate/pulse-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting pulse-core", "environment", cfg.Environment)

	valkey := connectValkey(cfg, logger)

	circuitBreaker := breaker.New(breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		Cooldown:          time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		LatencySampleSize: cfg.Breaker.LatencySampleSize,
	}, logger, valkey)

	outcomeLog := outcomelog.New(outcomelog.Config{
		MaxEntriesPerProvider: cfg.OutcomeLog.MaxEntriesPerProvider,
		Retention:             time.Duration(cfg.OutcomeLog.RetentionMinutes) * time.Minute,
	}, valkey, logger)

	calculator := metrics.NewCalculator(cfg.SLA)

	engine := services.NewHealthEngine(cfg.Engine, calculator, services.HealthEngineDeps{
		Breaker:      circuitBreaker,
		Outcomes:     outcomeLog,
		Activations:  stores.NewValkeyActivationStore(valkey, logger),
		Transactions: stores.NewValkeyTransactionStore(valkey, logger),
		Queues:       stores.NewValkeyQueueDepthSource(valkey, logger),
		Registry:     stores.NewValkeyProviderRegistry(valkey, logger),
		Cache:        valkey,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload SLA thresholds on config file changes.
	if path := config.UsedConfigFile(); path != "" {
		watcher := config.NewSLAWatcher(path, logger)
		watcher.OnChange(calculator.SetSLA)
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("SLA watcher stopped", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(cfg, logger, valkey, engine, circuitBreaker)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	logger.Info("pulse-core shutdown complete")
}

// connectValkey dials the keyspace, preferring cluster mode when several
// nodes are configured. When the backend is down at boot the engine starts
// on the in-memory fallback and swaps to the real client once it comes up.
func connectValkey(cfg *config.Config, log logger.Logger) cache.Valkey {
	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	dial := func() (cache.Valkey, error) {
		if len(cfg.Cache.Nodes) > 1 {
			return cache.NewValkeyCluster(cfg.Cache.Nodes, cfg.Cache.Password, ttl)
		}
		addr := "localhost:6379"
		if len(cfg.Cache.Nodes) == 1 {
			addr = cfg.Cache.Nodes[0]
		}
		return cache.NewValkeySingle(addr, cfg.Cache.DB, cfg.Cache.Password, ttl)
	}

	valkey, err := dial()
	if err == nil {
		log.Info("Valkey connected", "nodes", len(cfg.Cache.Nodes))
		return valkey
	}
	log.Warn("Valkey unavailable, starting on in-memory fallback", "error", err)
	return cache.NewAutoSwapValkey(cache.NewNoopValkey(log), log, dial)
}
