package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Snapshot is the stats endpoint body: the running aggregate plus the number
// of events still waiting to be published.
type Snapshot struct {
	Stats
	PendingEvents int `json:"pending_events"`
}

type Handler struct {
	collector *Collector
	logger    *slog.Logger
}

func NewHandler(collector *Collector) *Handler {
	return &Handler{collector: collector, logger: slog.Default().With("component", "analytics")}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{PendingEvents: h.collector.BufferLen()}
	if h.collector.aggregator != nil {
		snap.Stats = h.collector.aggregator.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Warn("writing stats response failed", "error", err)
	}
}
