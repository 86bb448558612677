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

	"github.com/farescout/farescout/internal/analytics"
	"github.com/farescout/farescout/internal/analytics/aggregator"
	"github.com/farescout/farescout/internal/api"
	"github.com/farescout/farescout/internal/auth/apikey"
	"github.com/farescout/farescout/internal/auth/ratelimit"
	"github.com/farescout/farescout/internal/search"
	"github.com/farescout/farescout/internal/store"
	"github.com/farescout/farescout/pkg/config"
	"github.com/farescout/farescout/pkg/health"
	"github.com/farescout/farescout/pkg/kafka"
	"github.com/farescout/farescout/pkg/logger"
	"github.com/farescout/farescout/pkg/metrics"
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
	slog.Info("starting api server",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"auth", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		recordStore store.Store
		pgClient    *postgres.Client
	)
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		recordStore = store.NewPostgres(pgClient)
		slog.Info("postgres store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	default:
		recordStore = store.NewMemory()
		slog.Info("in-memory store ready")
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process fallbacks", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	engine := search.NewEngine(recordStore, cfg.Engine, m)

	var (
		collector    *analytics.Collector
		statsHandler *analytics.Handler
	)
	if cfg.Analytics.Enabled {
		agg := analytics.NewAggregator()

		var producer *kafka.Producer
		if cfg.Kafka.Enabled {
			producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
			defer producer.Close()

			// Observation events arrive from the sampler process; search
			// events are recorded locally before publishing, so the server
			// only consumes the observation topic.
			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ObservationEvents, analytics.HandleEvent(agg))
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("observation consumer error", "error", err)
				}
			}()
			slog.Info("observation consumer started", "topic", cfg.Kafka.Topics.ObservationEvents)
		}

		collector = analytics.NewCollector(agg, producer, cfg.Analytics.BufferSize, m)
		collector.Start(ctx)
		defer collector.Close()

		var snapshots *aggregator.SnapshotStore
		if pgClient != nil {
			snapshots = aggregator.NewSnapshotStore(pgClient)
			go snapshots.RunPeriodic(ctx, 0, func() any { return agg.Stats() })
			slog.Info("analytics snapshots enabled")
		}
		statsHandler = analytics.NewHandler(agg, snapshots)
	}

	var (
		validator *apikey.Validator
		limiter   *ratelimit.WindowLimiter
	)
	if cfg.Auth.Enabled {
		var keyCache *pkgredis.Client
		if cfg.Auth.CacheKeyLookup {
			keyCache = redisClient
		}
		validator = apikey.NewValidator(apikey.NewPostgresStore(pgClient), keyCache)
		limiter = ratelimit.NewWindowLimiter(redisClient, cfg.Auth.RateWindow)
		defer limiter.Close()
		slog.Info("api key auth enabled", "rate_window", cfg.Auth.RateWindow)
	}

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

	traceRate := 0.0
	if cfg.Tracing.Enabled {
		traceRate = cfg.Tracing.SampleRate
	}

	h := api.New(recordStore, engine, collector)
	router := api.NewRouter(h, statsHandler, checker, validator, limiter, m, cfg.Server.RequestTimeout, traceRate)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
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

	slog.Info("api server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("api server stopped")
}
