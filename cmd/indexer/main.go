package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/store"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "JSON array of records to load into the content store before building")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build", "normalizer", cfg.Index.Normalizer, "corpus", *corpusPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *corpusPath); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, corpusPath string) error {
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
		return fmt.Errorf("connecting to backing store: %w", err)
	}
	defer db.Close()
	backing := store.New(db, cfg.Index.WriteBatchSize)
	if err := backing.EnsureSchema(ctx); err != nil {
		return err
	}

	normalizer, err := analysis.New(cfg.Index.Normalizer)
	if err != nil {
		return err
	}

	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ShardRebuilt, false)
		defer producer.Close()
		publisher = producer
	}

	eng := indexer.NewEngine(backing, publisher, indexer.Options{
		Normalizer:  normalizer,
		BatchSize:   cfg.Index.BatchSize,
		Concurrency: cfg.Index.BuildConcurrency,
	}, m)

	if corpusPath != "" {
		f, err := os.Open(corpusPath)
		if err != nil {
			return fmt.Errorf("opening corpus: %w", err)
		}
		_, err = eng.LoadCorpus(ctx, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	report, err := eng.Build(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	return err
}
