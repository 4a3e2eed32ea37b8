// Package indexer orchestrates the offline build: load the corpus into the
// content store, build the inverted index from it, and rebuild every shard
// partition of the backing store.
package indexer

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the backing store the build reads from and writes to.
type Store interface {
	ReplaceDocuments(ctx context.Context, docs []ingestion.Document) error
	ScanDocuments(ctx context.Context, pageSize int, fn func([]ingestion.Record) error) error
	UpdateTotalTerms(ctx context.Context, docs []ingestion.Document) error
	RebuildShard(ctx context.Context, id string, entries []index.TermEntry) error
}

type Options struct {
	Normalizer  analysis.Normalizer
	BatchSize   int
	Concurrency int
}

// Report summarizes a build.
type Report struct {
	BuildID       string         `json:"build_id"`
	Documents     int            `json:"documents"`
	Terms         int            `json:"terms"`
	FailedBatches int            `json:"failed_batches"`
	ShardTerms    map[string]int `json:"shard_terms"`
	FailedShards  []string       `json:"failed_shards,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

type Engine struct {
	store     Store
	publisher kafka.Publisher
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine creates an Engine. publisher and m may be nil.
func NewEngine(store Store, publisher kafka.Publisher, opts Options, m *metrics.Metrics) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = analysis.Standard{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		opts:      opts,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// LoadCorpus replaces the content store with the JSON array of records read
// from r. The whole corpus is validated before anything is written.
func (e *Engine) LoadCorpus(ctx context.Context, r io.Reader) (int, error) {
	var records []ingestion.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decoding corpus: %w: %w", apperrors.ErrValidation, err)
	}
	if err := validator.ValidateBatch(records); err != nil {
		return 0, fmt.Errorf("validating corpus: %w", err)
	}
	docs := make([]ingestion.Document, len(records))
	for i, rec := range records {
		docs[i] = ingestion.Document{DocID: rec.DocID, Title: rec.Title, URL: rec.URL, Content: rec.Content}
	}
	if err := e.store.ReplaceDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("loading content store: %w", err)
	}
	e.logger.Info("corpus loaded", "documents", len(docs))
	return len(docs), nil
}

// Build indexes the content store page by page and rebuilds every partition.
// A page that fails validation is skipped without affecting earlier pages.
// A partition whose rebuild fails is reported in the returned error and in
// Report.FailedShards; the others are still rebuilt.
func (e *Engine) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{BuildID: uuid.NewString(), ShardTerms: make(map[string]int, shard.Count)}
	log := e.logger.With("build_id", report.BuildID)
	log.Info("index build started", "normalizer", e.opts.Normalizer.Name(), "batch_size", e.opts.BatchSize)

	builder := index.NewBuilder(e.opts.Normalizer)
	var docs []ingestion.Document
	err := e.store.ScanDocuments(ctx, e.opts.BatchSize, func(page []ingestion.Record) error {
		batch, err := builder.AddBatch(page)
		if errors.Is(err, apperrors.ErrValidation) {
			report.FailedBatches++
			log.Warn("skipping invalid batch", "first_doc_id", page[0].DocID, "size", len(page), "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		docs = append(docs, batch...)
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.Add(float64(len(batch)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading content store: %w", err)
	}
	if err := e.store.UpdateTotalTerms(ctx, docs); err != nil {
		return nil, fmt.Errorf("recording document lengths: %w", err)
	}
	report.Documents = len(docs)
	report.Terms = builder.TermCount()

	failed, err := e.rebuildShards(ctx, shard.Partition(builder.Snapshot()), report)
	report.FailedShards = failed
	report.Duration = time.Since(start)
	e.publish(ctx, report)

	log.Info("index build finished",
		"documents", report.Documents,
		"terms", report.Terms,
		"failed_batches", report.FailedBatches,
		"failed_shards", len(failed),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, err
}

func (e *Engine) rebuildShards(ctx context.Context, parts map[string][]index.TermEntry, report *Report) ([]string, error) {
	var (
		mu     sync.Mutex
		failed []string
		errs   []error
		g      errgroup.Group
	)
	g.SetLimit(e.opts.Concurrency)
	for _, id := range shard.All() {
		entries := parts[id]
		g.Go(func() error {
			err := e.store.RebuildShard(ctx, id, entries)
			status := "success"
			mu.Lock()
			if err != nil {
				status = "error"
				failed = append(failed, id)
				errs = append(errs, fmt.Errorf("rebuilding shard %s: %w", id, err))
			} else {
				report.ShardTerms[id] = len(entries)
			}
			mu.Unlock()
			if e.metrics != nil {
				e.metrics.ShardRebuildsTotal.WithLabelValues(status).Inc()
				if err == nil {
					e.metrics.ShardTermCount.WithLabelValues(id).Set(float64(len(entries)))
				}
			}
			e.logger.Debug("shard rebuilt", "shard", id, "terms", len(entries), "status", status)
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		return sortedIDs(failed), errors.Join(errs...)
	}
	return nil, nil
}

// publish announces the content partition followed by every rebuilt term
// partition, so a refreshing searcher holds the documents before postings
// that reference them. Failures are logged only.
func (e *Engine) publish(ctx context.Context, report *Report) {
	if e.publisher == nil {
		return
	}
	now := time.Now().UTC()
	events := make([]kafka.Event, 0, len(report.ShardTerms)+1)
	events = append(events, kafka.Event{Key: shard.Content, Value: ShardRebuilt{
		BuildID:   report.BuildID,
		ShardID:   shard.Content,
		Documents: report.Documents,
		Timestamp: now,
	}})
	for _, id := range shard.All() {
		terms, ok := report.ShardTerms[id]
		if !ok {
			continue
		}
		events = append(events, kafka.Event{Key: id, Value: ShardRebuilt{
			BuildID:   report.BuildID,
			ShardID:   id,
			Terms:     terms,
			Documents: report.Documents,
			Timestamp: now,
		}})
	}
	if err := e.publisher.PublishBatch(ctx, events); err != nil {
		e.logger.Warn("failed to announce rebuilt shards", "build_id", report.BuildID, "error", err)
	}
}

func sortedIDs(ids []string) []string {
	order := make(map[string]int, shard.Count)
	for i, id := range shard.All() {
		order[id] = i
	}
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b string) int { return cmp.Compare(order[a], order[b]) })
	return out
}
