// Package shardcache keeps index partitions and the content store resident
// in memory. Each partition is loaded on first use, from its disk cache file
// when present and otherwise from the backing store, after which the disk
// file is written. Concurrent first uses of a partition share one load.
package shardcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// ContentPartition names the content store in states, metrics and logs.
const ContentPartition = shard.Content

const (
	sourceDisk    = "disk"
	sourceBacking = "backing"
)

// Backend is the authoritative store partitions are materialized from.
type Backend interface {
	FetchShard(ctx context.Context, id string) ([]index.TermEntry, error)
	FetchContent(ctx context.Context) ([]ingestion.Document, error)
}

// Options bound backing-store loads.
type Options struct {
	LoadTimeout     time.Duration
	Retry           resilience.RetryConfig
	Breaker         resilience.CircuitBreakerConfig
	WarmConcurrency int
}

// Content is the resident content store keyed by doc_id.
type Content map[string]ingestion.Document

// Manager owns the state table for every term partition plus content.
type Manager struct {
	backend  Backend
	disk     DiskCache
	opts     Options
	breakers map[string]*resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger

	shards  map[string]*entry[index.Shard]
	content *entry[Content]
}

// New creates a Manager with every partition unloaded. m may be nil.
func New(backend Backend, disk DiskCache, opts Options, m *metrics.Metrics) *Manager {
	if opts.WarmConcurrency <= 0 {
		opts.WarmConcurrency = 8
	}
	breakerCfg := opts.Breaker
	if m != nil {
		next := breakerCfg.OnStateChange
		breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
			if next != nil {
				next(name, from, to)
			}
		}
	}
	mgr := &Manager{
		backend:  backend,
		disk:     disk,
		opts:     opts,
		breakers: make(map[string]*resilience.CircuitBreaker, shard.Count+1),
		metrics:  m,
		logger:   slog.Default().With("component", "shard-cache"),
		shards:   make(map[string]*entry[index.Shard], shard.Count),
		content:  &entry[Content]{name: ContentPartition},
	}
	for _, id := range shard.All() {
		mgr.shards[id] = &entry[index.Shard]{name: id}
		mgr.breakers[id] = resilience.NewCircuitBreaker("backing-"+id, breakerCfg)
	}
	mgr.breakers[ContentPartition] = resilience.NewCircuitBreaker("backing-"+ContentPartition, breakerCfg)
	return mgr
}

// Postings returns the postings of term, loading its partition if needed. A
// term absent from a loaded partition yields nil and no error.
func (m *Manager) Postings(ctx context.Context, term string) (index.PostingMap, error) {
	s, err := m.Shard(ctx, shard.ID(term))
	if err != nil {
		return nil, err
	}
	return s[term], nil
}

// Shard returns the resident partition id.
func (m *Manager) Shard(ctx context.Context, id string) (index.Shard, error) {
	e, ok := m.shards[id]
	if !ok {
		return nil, fmt.Errorf("shard %q: %w", id, apperrors.ErrInvalidInput)
	}
	s, loaded, err := e.get(ctx, func(ctx context.Context) (index.Shard, error) {
		return m.loadShard(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if loaded && m.metrics != nil {
		m.metrics.ShardsLoaded.Inc()
		m.metrics.ShardTermCount.WithLabelValues(id).Set(float64(len(s)))
	}
	return s, nil
}

// Content returns the resident content store.
func (m *Manager) Content(ctx context.Context) (Content, error) {
	c, loaded, err := m.content.get(ctx, m.loadContent)
	if err != nil {
		return nil, err
	}
	if loaded && m.metrics != nil {
		m.metrics.ShardsLoaded.Inc()
	}
	return c, nil
}

// Document looks up one document.
func (m *Manager) Document(ctx context.Context, docID string) (ingestion.Document, bool, error) {
	c, err := m.Content(ctx)
	if err != nil {
		return ingestion.Document{}, false, err
	}
	d, ok := c[docID]
	return d, ok, nil
}

// State reports the lifecycle of partition id or ContentPartition.
func (m *Manager) State(id string) State {
	if id == ContentPartition {
		return m.content.State()
	}
	if e, ok := m.shards[id]; ok {
		return e.State()
	}
	return StateUnloaded
}

// States snapshots every partition's state.
func (m *Manager) States() map[string]State {
	out := make(map[string]State, len(m.shards)+1)
	for id, e := range m.shards {
		out[id] = e.State()
	}
	out[ContentPartition] = m.content.State()
	return out
}

// OpenBreakers reports the partitions whose backing-store breaker is not
// closed, with their current run of consecutive load failures.
func (m *Manager) OpenBreakers() map[string]int {
	out := make(map[string]int)
	for id, cb := range m.breakers {
		if cb.GetState() != resilience.StateClosed {
			out[id] = cb.Failures()
		}
	}
	return out
}

// WarmAll loads every partition and the content store in parallel. Each
// partition is attempted regardless of the others; the first failure is
// returned.
func (m *Manager) WarmAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(m.opts.WarmConcurrency)
	g.Go(func() error {
		_, err := m.Content(ctx)
		return err
	})
	for _, id := range shard.All() {
		g.Go(func() error {
			_, err := m.Shard(ctx, id)
			return err
		})
	}
	start := time.Now()
	err := g.Wait()
	m.logger.Info("warm-up finished", "duration", time.Since(start), "error", err)
	return err
}

// Warm loads partition id (or ContentPartition) if it is not resident.
func (m *Manager) Warm(ctx context.Context, id string) error {
	if id == ContentPartition {
		_, err := m.Content(ctx)
		return err
	}
	_, err := m.Shard(ctx, id)
	return err
}

// Refresh reloads partition id from the backing store, rewrites its disk
// file and swaps the resident copy. Readers holding the previous map keep a
// consistent view of it.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	if id == ContentPartition {
		return m.content.replace(ctx, func(ctx context.Context) (Content, error) {
			docs, err := fetchBacking(ctx, m, id, func(ctx context.Context) ([]ingestion.Document, error) {
				return m.backend.FetchContent(ctx)
			})
			if err != nil {
				return nil, err
			}
			m.writeDisk(id, func() error { return m.disk.WriteContent(docs) })
			return contentFromDocs(docs), nil
		})
	}
	e, ok := m.shards[id]
	if !ok {
		return fmt.Errorf("shard %q: %w", id, apperrors.ErrInvalidInput)
	}
	return e.replace(ctx, func(ctx context.Context) (index.Shard, error) {
		entries, err := fetchBacking(ctx, m, id, func(ctx context.Context) ([]index.TermEntry, error) {
			return m.backend.FetchShard(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		m.writeDisk(id, func() error { return m.disk.WriteShard(id, entries) })
		return index.ShardFromEntries(entries), nil
	})
}

func (m *Manager) loadShard(ctx context.Context, id string) (index.Shard, error) {
	start := time.Now()
	entries, err := m.disk.ReadShard(id)
	if err == nil {
		m.observe(id, sourceDisk, "ok", start)
		m.logger.Info("shard loaded", "shard", id, "source", sourceDisk, "terms", len(entries), "duration", time.Since(start))
		return index.ShardFromEntries(entries), nil
	}
	m.logDiskMiss(id, err)

	start = time.Now()
	entries, err = fetchBacking(ctx, m, id, func(ctx context.Context) ([]index.TermEntry, error) {
		return m.backend.FetchShard(ctx, id)
	})
	if err != nil {
		m.observe(id, sourceBacking, "error", start)
		return nil, err
	}
	m.observe(id, sourceBacking, "ok", start)
	m.writeDisk(id, func() error { return m.disk.WriteShard(id, entries) })
	m.logger.Info("shard loaded", "shard", id, "source", sourceBacking, "terms", len(entries), "duration", time.Since(start))
	return index.ShardFromEntries(entries), nil
}

func (m *Manager) loadContent(ctx context.Context) (Content, error) {
	start := time.Now()
	docs, err := m.disk.ReadContent()
	if err == nil {
		m.observe(ContentPartition, sourceDisk, "ok", start)
		m.logger.Info("content loaded", "source", sourceDisk, "docs", len(docs), "duration", time.Since(start))
		return contentFromDocs(docs), nil
	}
	m.logDiskMiss(ContentPartition, err)

	start = time.Now()
	docs, err = fetchBacking(ctx, m, ContentPartition, func(ctx context.Context) ([]ingestion.Document, error) {
		return m.backend.FetchContent(ctx)
	})
	if err != nil {
		m.observe(ContentPartition, sourceBacking, "error", start)
		return nil, err
	}
	m.observe(ContentPartition, sourceBacking, "ok", start)
	m.writeDisk(ContentPartition, func() error { return m.disk.WriteContent(docs) })
	m.logger.Info("content loaded", "source", sourceBacking, "docs", len(docs), "duration", time.Since(start))
	return contentFromDocs(docs), nil
}

// fetchBacking wraps a backing-store read in timeout, the partition's circuit
// breaker and bounded retry. Failures are reported as
// ErrBackingStoreUnavailable for the named partition only.
func fetchBacking[T any](ctx context.Context, m *Manager, id string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := resilience.Retry(ctx, "load-"+id, m.opts.Retry, func(ctx context.Context) error {
		return m.breakers[id].Execute(ctx, func(ctx context.Context) error {
			var got T
			err := resilience.WithTimeout(ctx, m.opts.LoadTimeout, "fetch "+id, func(ctx context.Context) error {
				var err error
				got, err = fetch(ctx)
				return err
			})
			if err == nil {
				result = got
			}
			return err
		})
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("loading partition %s: %w: %w", id, apperrors.ErrBackingStoreUnavailable, err)
	}
	return result, nil
}

func (m *Manager) logDiskMiss(id string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug("no disk cache file", "partition", id)
		return
	}
	m.logger.Warn("disk cache unreadable, reloading from backing store", "partition", id, "error", err)
}

// writeDisk persists a freshly fetched partition. Failure only costs the
// next process a backing-store load, so it is logged and not returned.
func (m *Manager) writeDisk(id string, write func() error) {
	if err := write(); err != nil {
		m.logger.Warn("writing disk cache failed", "partition", id, "error", err)
	}
}

func (m *Manager) observe(id, source, status string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.ShardLoadsTotal.WithLabelValues(id, source, status).Inc()
	m.metrics.ShardLoadDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func contentFromDocs(docs []ingestion.Document) Content {
	c := make(Content, len(docs))
	for _, d := range docs {
		c[d.DocID] = d
	}
	return c
}
