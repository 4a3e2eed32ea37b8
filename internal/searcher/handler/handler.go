// Package handler exposes search over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/shardcache"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/middleware"
)

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// StateReporter is satisfied by *shardcache.Manager.
type StateReporter interface {
	States() map[string]shardcache.State
	OpenBreakers() map[string]int
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	collector    *analytics.Collector
	states       StateReporter
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. queryCache, collector and states may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, states StateReporter, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		collector:    collector,
		states:       states,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=...&limit=...&mode=fast|full.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	var mode ranker.Mode
	if modeStr := r.URL.Query().Get("mode"); modeStr != "" {
		parsed, err := ranker.ParseMode(modeStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "mode must be fast or full")
			return
		}
		mode = parsed
	}

	req := executor.Request{Query: q, Mode: mode, Limit: limit}
	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("search execution failed", "query", q, "error", err)
		h.track(ctx, analytics.SearchEvent{Type: analytics.EventFailed, Query: q, LatencyMs: latencyMs})
		status := apperrors.HTTPStatusCode(err)
		h.writeError(w, status, errorMessage(status, err))
		return
	}

	log.Info("search completed",
		"query", q,
		"outcome", result.Outcome,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	eventType := analytics.EventSearch
	if result.TotalHits == 0 {
		eventType = analytics.EventZeroResult
	}
	h.track(ctx, analytics.SearchEvent{
		Type:           eventType,
		Query:          q,
		Expression:     result.Expression,
		Outcome:        string(result.Outcome),
		Keywords:       result.Keywords,
		TotalHits:      result.TotalHits,
		Returned:       len(result.Results),
		LatencyMs:      latencyMs,
		CacheHit:       cacheHit,
		FallbackUsed:   result.FallbackUsed,
		RankMode:       string(result.RankMode),
		DegradedShards: result.DegradedShards,
	})

	h.writeJSON(w, http.StatusOK, present(result, cacheHit))
}

// Response is the JSON body of a search.
type Response struct {
	executor.SearchResult
	Count    int  `json:"count"`
	CacheHit bool `json:"cache_hit"`
}

// present copies result for rendering, completing scheme-less URLs.
func present(result *executor.SearchResult, cacheHit bool) Response {
	out := Response{SearchResult: *result, Count: len(result.Results), CacheHit: cacheHit}
	out.Results = slices.Clone(result.Results)
	if out.Results == nil {
		out.Results = []ranker.Scored{}
	}
	for i := range out.Results {
		out.Results[i].URL = NormalizeURL(out.Results[i].URL)
	}
	return out
}

// NormalizeURL prefixes https:// to URLs without an http or https scheme.
func NormalizeURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + strings.TrimLeft(u, "/")
}

// Shards serves the load state of every cache partition.
func (h *Handler) Shards(w http.ResponseWriter, r *http.Request) {
	if h.states == nil {
		h.writeError(w, http.StatusServiceUnavailable, "shard cache is not attached")
		return
	}
	states := h.states.States()
	out := make(map[string]string, len(states))
	loaded := 0
	for id, s := range states {
		out[id] = s.String()
		if s == shardcache.StateLoaded {
			loaded++
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"partitions":    out,
		"loaded":        loaded,
		"total":         len(states),
		"open_breakers": h.states.OpenBreakers(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(event)
}

func errorMessage(status int, err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, apperrors.ErrBackingStoreUnavailable):
		return "index partition unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return "search timed out"
	case status >= http.StatusInternalServerError:
		return "search failed"
	default:
		return err.Error()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
