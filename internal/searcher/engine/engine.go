// Package engine evaluates OR, AND and PHRASE primitives and composite
// boolean expressions against the resident index.
//
// OR treats a partition that fails to load as empty and reports it in
// Result.DegradedShards. AND, PHRASE and composite evaluation return the
// load error instead. A content store that fails to load fails every query.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
)

// Index is the read side of the shard cache.
type Index interface {
	Postings(ctx context.Context, term string) (index.PostingMap, error)
	Document(ctx context.Context, docID string) (ingestion.Document, bool, error)
}

// Engine evaluates queries. It is safe for concurrent use.
type Engine struct {
	idx     Index
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Engine over idx. m may be nil.
func New(idx Index, m *metrics.Metrics) *Engine {
	return &Engine{
		idx:     idx,
		metrics: m,
		logger:  slog.Default().With("component", "query-engine"),
	}
}

// Or returns the union of the postings of terms.
func (e *Engine) Or(ctx context.Context, terms []string) (*Result, error) {
	start := time.Now()
	res, err := e.or(ctx, terms, true)
	e.observe("or", start, res, err)
	return res, err
}

// And returns the documents containing every one of terms.
func (e *Engine) And(ctx context.Context, terms []string) (*Result, error) {
	start := time.Now()
	res, err := e.and(ctx, terms)
	e.observe("and", start, res, err)
	return res, err
}

// Phrase returns the documents in which terms occur at consecutive positions.
func (e *Engine) Phrase(ctx context.Context, terms []string) (*Result, error) {
	start := time.Now()
	res, err := e.phrase(ctx, terms)
	e.observe("phrase", start, res, err)
	return res, err
}

// Evaluate evaluates a boolean expression. A nil expression yields
// OutcomeNoTerms.
func (e *Engine) Evaluate(ctx context.Context, expr query.Expr) (*Result, error) {
	start := time.Now()
	res, err := e.eval(ctx, expr, true)
	e.observe(kindOf(expr), start, res, err)
	return res, err
}

func (e *Engine) eval(ctx context.Context, expr query.Expr, top bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := expr.(type) {
	case nil:
		return noResult(OutcomeNoTerms, msgNoTerms, nil), nil
	case *query.Term:
		return e.or(ctx, []string{n.Value}, top)
	case *query.Phrase:
		return e.phrase(ctx, n.Terms)
	case *query.And:
		if terms, ok := query.TermsOf(n.Children); ok {
			return e.and(ctx, terms)
		}
		return e.intersect(ctx, n.Children)
	case *query.Or:
		if terms, ok := query.TermsOf(n.Children); ok {
			return e.or(ctx, terms, top)
		}
		return e.union(ctx, n.Children)
	case *query.AndNot:
		return e.exclude(ctx, n)
	default:
		return nil, fmt.Errorf("evaluating %T: %w", expr, apperrors.ErrInvalidInput)
	}
}

// postings loads the postings of term. With failOpen set, a partition that
// cannot be loaded yields nil postings and its shard id.
func (e *Engine) postings(ctx context.Context, term string, failOpen bool) (index.PostingMap, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	pm, err := e.idx.Postings(ctx, term)
	if err == nil {
		return pm, "", nil
	}
	if failOpen && ctx.Err() == nil && errors.Is(err, apperrors.ErrBackingStoreUnavailable) {
		id := shard.ID(term)
		e.logger.Warn("treating unavailable shard as empty", "shard", id, "term", term, "error", err)
		return nil, id, nil
	}
	return nil, "", fmt.Errorf("loading postings for %q: %w", term, err)
}

// materialize attaches document payloads to accumulated hits. Documents
// absent from the content store are dropped.
func (e *Engine) materialize(ctx context.Context, acc map[string]*Hit) ([]Hit, error) {
	hits := make([]Hit, 0, len(acc))
	for docID, h := range acc {
		doc, ok, err := e.idx.Document(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("loading document %s: %w", docID, err)
		}
		if !ok {
			continue
		}
		h.Title = doc.Title
		h.URL = doc.URL
		h.Content = doc.Content
		hits = append(hits, *h)
	}
	return hits, nil
}

func (e *Engine) observe(kind string, start time.Time, res *Result, err error) {
	outcome := "error"
	if err == nil {
		outcome = string(res.Outcome)
	}
	if e.metrics != nil {
		e.metrics.QueriesTotal.WithLabelValues(kind, outcome).Inc()
		e.metrics.QueryLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.Error("query evaluation failed", "kind", kind, "error", err)
		return
	}
	e.logger.Debug("query evaluated",
		"kind", kind,
		"outcome", outcome,
		"results", len(res.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func kindOf(expr query.Expr) string {
	switch n := expr.(type) {
	case *query.Term:
		return "or"
	case *query.Phrase:
		return "phrase"
	case *query.And:
		if _, ok := query.TermsOf(n.Children); ok {
			return "and"
		}
	case *query.Or:
		if _, ok := query.TermsOf(n.Children); ok {
			return "or"
		}
	}
	return "boolean"
}
