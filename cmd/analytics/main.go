// Command analytics starts the standalone lyric analytics service.
//
// It consumes find and recommend events from Kafka, aggregates them in memory
// (match rate, latency percentiles, cache hit rate, top songs, unmatched
// queries) and serves them at GET /api/v1/analytics. When PostgreSQL is
// reachable, periodic snapshots are persisted and listed at
// GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
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

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP port (defaults to server.port)")
	snapshotEvery := flag.Duration("snapshot-interval", time.Minute, "how often to persist aggregate snapshots")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format,
		logger.WithFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups))
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	var history analytics.History
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshot history disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		if latest, err := store.LatestSnapshot(ctx); err == nil && latest != nil {
			slog.Info("previous snapshot found", "captured_at", latest.CapturedAt, "total_finds", latest.Stats.TotalFinds)
		}
		saved := store.StartPeriodicSave(ctx, agg, *snapshotEvery)
		defer func() { <-saved }()
		history = store
		checker.Register("postgres", health.Ping(db.Ping, true))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, history).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(cfg.HTTP.CORSAllowedOrigins)(chain)
	chain = middleware.RequestID(chain)

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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
