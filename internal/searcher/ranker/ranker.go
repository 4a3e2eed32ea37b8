// Package ranker orders query results. The full scorer blends TF-IDF, BM25
// and raw occurrence counts; the fast scorer is a cheap in-memory heuristic
// used on the serving path.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
)

const (
	DefaultTopN          = 300
	DefaultMaxCandidates = 5000
)

// Mode selects a scorer.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeFull Mode = "full"
)

// ParseMode converts a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeFast, "":
		return ModeFast, nil
	case ModeFull:
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown rank mode %q: %w", s, apperrors.ErrInvalidInput)
	}
}

// Scored is a hit with its ranking score.
type Scored struct {
	engine.Hit
	Score float64 `json:"score"`
}

// Options configures a Ranker. Zero values select the defaults.
type Options struct {
	TopN          int
	MaxCandidates int
}

// Ranker applies the full or fast scorer and records ranking metrics.
type Ranker struct {
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Ranker. m may be nil.
func New(opts Options, m *metrics.Metrics) *Ranker {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Ranker{
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "ranker"),
	}
}

// Rank scores hits against terms with the given mode and returns at most
// TopN of them, best first.
func (r *Ranker) Rank(ctx context.Context, mode Mode, hits []engine.Hit, terms []string) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	var out []Scored
	switch mode {
	case ModeFull:
		out = Full(hits, terms, r.opts.TopN)
	case ModeFast, "":
		mode = ModeFast
		out = Fast(hits, terms, r.opts.TopN, r.opts.MaxCandidates)
	default:
		return nil, fmt.Errorf("ranking with mode %q: %w", mode, apperrors.ErrInvalidInput)
	}
	if r.metrics != nil {
		r.metrics.RankLatency.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
		r.metrics.RankCandidates.Observe(float64(len(hits)))
	}
	r.logger.Debug("ranked candidates",
		"mode", mode,
		"candidates", len(hits),
		"returned", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
