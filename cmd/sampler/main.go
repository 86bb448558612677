// Command sampler runs the periodic price-sampling job as its own process.
//
// Each sweep appends one jittered observation per active flight, publishes
// the resulting events to Kafka in batches, and uses Redis to stay idempotent
// across replicas. A small HTTP server exposes liveness and readiness.
//
// Usage:
//
//	go run ./cmd/sampler [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farescout/farescout/internal/analytics/collector"
	"github.com/farescout/farescout/internal/sampler"
	"github.com/farescout/farescout/internal/store"
	"github.com/farescout/farescout/pkg/config"
	"github.com/farescout/farescout/pkg/health"
	"github.com/farescout/farescout/pkg/kafka"
	"github.com/farescout/farescout/pkg/logger"
	"github.com/farescout/farescout/pkg/metrics"
	"github.com/farescout/farescout/pkg/middleware"
	"github.com/farescout/farescout/pkg/postgres"
	pkgredis "github.com/farescout/farescout/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting sampler",
		"interval", cfg.Sampler.Interval,
		"workers", cfg.Sampler.Workers,
		"store", cfg.Store.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var recordStore store.Store
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		recordStore = store.NewPostgres(pgClient)
	default:
		recordStore = store.NewMemory()
		slog.Warn("in-memory store: sampled observations will not outlive this process")
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, replicas may double-sample", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("dedupe register connected", "addr", cfg.Redis.Addr)
		}
	}

	var batch *collector.BatchCollector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ObservationEvents)
		defer producer.Close()
		batch = collector.NewBatchCollector(producer, m, 100, 5*time.Second)
		batch.Start(ctx)
		defer batch.Close()
		slog.Info("observation events enabled", "topic", cfg.Kafka.Topics.ObservationEvents)
	}

	job, err := sampler.New(recordStore, redisClient, batch, cfg.Sampler, m)
	if err != nil {
		slog.Error("failed to create sampler", "error", err)
		os.Exit(1)
	}
	defer job.Close()

	go job.Run(ctx)

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(recordStore.Ping))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping))
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID()(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("sampler health endpoint listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("sampler stopped")
}
