package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format,
		logger.WithFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups))
	slog.Info("starting lyric search service", "port", cfg.Server.Port, "index_dir", cfg.Index.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths := index.PathsFromConfig(cfg.Index)
	var idx *index.Index
	err = resilience.Retry(ctx, "index-load", resilience.RetryConfig{
		MaxAttempts:  cfg.Index.LoadAttempts,
		InitialDelay: cfg.Index.LoadInitialDelay,
		Permanent: func(err error) bool {
			return apperrors.IsLoadFailure(err) && !errors.Is(err, apperrors.ErrArtifactMissing)
		},
	}, func() error {
		var loadErr error
		idx, loadErr = index.Load(paths)
		return loadErr
	})
	if err != nil {
		slog.Error("failed to load index", "error", err, "vectorizer", paths.Vectorizer, "matrix", paths.Matrix, "catalog", paths.Catalog)
		os.Exit(1)
	}
	info := idx.Info()
	slog.Info("index loaded", "build_id", info.BuildID, "songs", info.Songs, "dim", info.Dim, "nnz", info.NNZ)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("build %s, %d songs", info.BuildID, info.Songs)}
	})

	deps := executor.Deps{Metrics: m, Tracing: cfg.Tracing.Enabled}

	if cfg.Cache.Enabled {
		var remote cache.Remote
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using local cache only", "error", err)
		} else {
			defer redisClient.Close()
			remote = redisClient
			checker.Register("redis", health.Ping(redisClient.Ping, true))
		}
		cacheCfg := cache.Config{
			LocalSize: cfg.Cache.LocalSize,
			LocalTTL:  cfg.Cache.LocalTTL,
			RemoteTTL: cfg.Redis.CacheTTL,
		}
		cacheCfg.Namespace = "find"
		deps.FindCache = cache.New[proto.FindSongResponse](idx.BuildID, remote, cacheCfg, m)
		cacheCfg.Namespace = "recommend"
		deps.RecommendCache = cache.New[proto.RecommendResponse](idx.BuildID, remote, cacheCfg, m)
		slog.Info("result cache enabled", "local_size", cfg.Cache.LocalSize, "remote", remote != nil)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topics.AnalyticsEvents != "" {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collectorCfg := analytics.CollectorConfig{
			BatchSize:     cfg.Kafka.BatchSize,
			FlushInterval: cfg.Kafka.FlushInterval,
		}
		if m != nil {
			collectorCfg.OnDrop = m.AnalyticsDropped.Inc
		}
		collector := analytics.NewCollector(producer, collectorCfg)
		collector.Start(ctx)
		defer collector.Close()
		deps.Tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	exec := executor.New(idx, cfg.Search, deps)
	h := handler.New(exec, cfg.Search.MoodSampleSize)

	if cfg.RPC.Enabled {
		rpcServer := rpc.NewServer()
		handler.RegisterRPC(rpcServer, exec)
		go func() {
			if err := rpcServer.ListenAndServe(cfg.RPC.Addr); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
		defer rpcServer.Stop()
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)(chain)
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

	slog.Info("lyric search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lyric search service stopped")
}
