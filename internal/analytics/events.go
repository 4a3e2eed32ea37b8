package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventFailed     EventType = "search_failed"
)

// SearchEvent describes one served search.
type SearchEvent struct {
	Type           EventType `json:"type"`
	Query          string    `json:"query"`
	Expression     string    `json:"expression,omitempty"`
	Outcome        string    `json:"outcome"`
	Keywords       []string  `json:"keywords"`
	TotalHits      int       `json:"total_hits"`
	Returned       int       `json:"returned"`
	LatencyMs      int64     `json:"latency_ms"`
	CacheHit       bool      `json:"cache_hit"`
	FallbackUsed   bool      `json:"fallback_used"`
	RankMode       string    `json:"rank_mode"`
	DegradedShards []string  `json:"degraded_shards,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
}
