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

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/warmup"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/shardcache"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/store"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/termshard/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "cache_dir", cfg.Cache.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.NewRegistry())
	if cfg.Metrics.Enabled {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		wait := metrics.StartServer(metricsCtx, m, cfg.Metrics.Port)
		defer func() {
			stopMetrics()
			wait()
		}()
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to backing store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	backing := store.New(db, cfg.Index.WriteBatchSize)

	compression, err := segment.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		slog.Error("invalid cache compression", "error", err)
		os.Exit(1)
	}
	partitions := shardcache.New(backing, shardcache.NewDir(cfg.Cache.Dir, compression), shardcache.Options{
		LoadTimeout: cfg.Cache.LoadTimeout,
		Retry:       resilience.RetryConfig{MaxAttempts: cfg.Cache.LoadAttempts},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Cache.BreakerThreshold,
			ResetTimeout:     cfg.Cache.BreakerResetTimeout,
		},
		WarmConcurrency: cfg.Cache.WarmConcurrency,
	}, m)

	normalizer, err := analysis.New(cfg.Index.Normalizer)
	if err != nil {
		slog.Error("invalid normalizer", "error", err)
		os.Exit(1)
	}
	mode, err := ranker.ParseMode(cfg.Search.RankMode)
	if err != nil {
		slog.Error("invalid rank mode", "error", err)
		os.Exit(1)
	}
	exec := executor.New(
		engine.New(partitions, m),
		ranker.New(ranker.Options{TopN: cfg.Search.TopN, MaxCandidates: cfg.Search.MaxCandidates}, m),
		normalizer,
		executor.Options{
			FallbackThreshold: cfg.Search.FallbackThreshold,
			MaxCandidates:     cfg.Search.MaxCandidates,
			Mode:              mode,
		},
		m,
	)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var eventPublisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, true)
		defer producer.Close()
		eventPublisher = producer
	}
	collector := analytics.NewCollector(eventPublisher, aggregator, 500, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()

	if cfg.Kafka.Enabled {
		var invalidator warmup.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		rebuilds := warmup.New(partitions, invalidator, cfg.Cache.RefreshOnRebuild)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ShardRebuilt, rebuilds.HandleMessage)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("rebuild consumer error", "error", err)
			}
		}()
		slog.Info("listening for shard rebuilds", "topic", cfg.Kafka.Topics.ShardRebuilt)
	}

	if cfg.Cache.WarmOnStart {
		go func() {
			if err := partitions.WarmAll(ctx); err != nil {
				slog.Warn("warm-up incomplete, remaining partitions load on demand", "error", err)
			}
		}()
	}

	checker := health.NewChecker(3 * time.Second)
	checker.Register("postgres", db.HealthCheck())
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return redisClient.HealthCheck()(ctx)
	})

	h := handler.New(exec, queryCache, collector, partitions, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	analyticsH := analytics.NewHandler(collector)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/shards", h.Shards)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m, "/api/v1/search", "/api/v1/shards", "/api/v1/cache", "/api/v1/analytics", "/health")(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
