// Package executor runs a search request end to end: parse and normalize the
// query, evaluate it, optionally fall back to a broader OR, cap the candidate
// set and rank it.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/tracing"
)

// Evaluator is satisfied by *engine.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, expr query.Expr) (*engine.Result, error)
	Or(ctx context.Context, terms []string) (*engine.Result, error)
}

// Ranker is satisfied by *ranker.Ranker.
type Ranker interface {
	Rank(ctx context.Context, mode ranker.Mode, hits []engine.Hit, terms []string) ([]ranker.Scored, error)
}

// Options configures an Executor.
type Options struct {
	// FallbackThreshold enables the broader OR re-query when the primary
	// result has fewer hits. Zero disables it.
	FallbackThreshold int
	MaxCandidates     int
	Mode              ranker.Mode
}

// Request is one search.
type Request struct {
	Query string
	// Mode overrides Options.Mode when set.
	Mode  ranker.Mode
	Limit int
}

// SearchResult is the ranked response to a Request.
type SearchResult struct {
	Query          string             `json:"query"`
	Expression     string             `json:"expression,omitempty"`
	Keywords       []string           `json:"keywords"`
	FoundTerms     []string           `json:"found_terms"`
	TotalHits      int                `json:"total_hits"`
	Results        []ranker.Scored    `json:"results"`
	Message        string             `json:"message,omitempty"`
	Outcome        engine.Outcome     `json:"outcome"`
	DegradedShards []string           `json:"degraded_shards,omitempty"`
	FallbackUsed   bool               `json:"fallback_used"`
	RankMode       ranker.Mode        `json:"rank_mode"`
	Timings        map[string]float64 `json:"timings_ms,omitempty"`
}

type Executor struct {
	eval       Evaluator
	rank       Ranker
	normalizer analysis.Normalizer
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Executor. m may be nil.
func New(eval Evaluator, rank Ranker, normalizer analysis.Normalizer, opts Options, m *metrics.Metrics) *Executor {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = ranker.DefaultMaxCandidates
	}
	if opts.Mode == "" {
		opts.Mode = ranker.ModeFast
	}
	return &Executor{
		eval:       eval,
		rank:       rank,
		normalizer: normalizer,
		opts:       opts,
		metrics:    m,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

// Execute runs req. Malformed queries fail with an error wrapping
// apperrors.ErrInvalidInput; no-match outcomes are returned as results.
func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	ctx, root := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	fail := func(err error) (*SearchResult, error) {
		root.SetAttr("error", err.Error())
		root.End()
		root.Log(logger.FromContext(ctx))
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = e.opts.Mode
	}

	_, span := tracing.StartChildSpan(ctx, "parse")
	expr, err := query.Parse(req.Query)
	expr = query.Normalize(expr, e.normalizer)
	span.End()
	if err != nil {
		return fail(fmt.Errorf("parsing query: %w", err))
	}
	keywords := query.Terms(expr)
	if keywords == nil {
		keywords = []string{}
	}

	evalCtx, span := tracing.StartChildSpan(ctx, "evaluate")
	res, err := e.eval.Evaluate(evalCtx, expr)
	span.End()
	if err != nil {
		return fail(fmt.Errorf("evaluating %s: %w", exprString(expr), err))
	}

	fallback := false
	if e.wantsFallback(expr, res, keywords) {
		fbCtx, span := tracing.StartChildSpan(ctx, "fallback")
		res, fallback = e.fallback(fbCtx, res, keywords)
		span.SetAttr("replaced", fallback)
		span.End()
	}

	hits := res.Results
	total := len(hits)
	if len(hits) > e.opts.MaxCandidates {
		hits = hits[:e.opts.MaxCandidates]
	}

	rankCtx, span := tracing.StartChildSpan(ctx, "rank")
	span.SetAttr("candidates", len(hits))
	scored, err := e.rank.Rank(rankCtx, mode, hits, res.FoundTerms)
	span.End()
	if err != nil {
		return fail(fmt.Errorf("ranking: %w", err))
	}
	if req.Limit > 0 && len(scored) > req.Limit {
		scored = scored[:req.Limit]
	}
	root.End()

	result := &SearchResult{
		Query:          req.Query,
		Expression:     exprString(expr),
		Keywords:       keywords,
		FoundTerms:     res.FoundTerms,
		TotalHits:      total,
		Results:        scored,
		Message:        res.Message,
		Outcome:        res.Outcome,
		DegradedShards: res.DegradedShards,
		FallbackUsed:   fallback,
		RankMode:       mode,
		Timings:        root.Timings(),
	}
	root.Log(logger.FromContext(ctx))
	e.logger.Info("query executed",
		"query", req.Query,
		"outcome", res.Outcome,
		"total_hits", total,
		"returned", len(scored),
		"fallback", fallback,
		"mode", mode,
	)
	return result, nil
}

func (e *Executor) wantsFallback(expr query.Expr, res *engine.Result, keywords []string) bool {
	if e.opts.FallbackThreshold <= 0 || len(keywords) == 0 {
		return false
	}
	if len(res.Results) >= e.opts.FallbackThreshold {
		return false
	}
	if or, ok := expr.(*query.Or); ok {
		if _, plain := query.TermsOf(or.Children); plain {
			return false
		}
	}
	_, single := expr.(*query.Term)
	return !single
}

// fallback re-runs keywords as a plain OR and keeps it only when it finds
// strictly more documents.
func (e *Executor) fallback(ctx context.Context, primary *engine.Result, keywords []string) (*engine.Result, bool) {
	broader, err := e.eval.Or(ctx, keywords)
	if err != nil {
		logger.FromContext(ctx).Warn("fallback query failed", "error", err)
		return primary, false
	}
	replaced := len(broader.Results) > len(primary.Results)
	if e.metrics != nil {
		e.metrics.FallbacksTotal.WithLabelValues(strconv.FormatBool(replaced)).Inc()
	}
	if !replaced {
		return primary, false
	}
	return broader, true
}

func exprString(expr query.Expr) string {
	if expr == nil {
		return ""
	}
	return expr.String()
}
