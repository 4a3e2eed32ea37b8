// Package warmup reacts to ShardRebuilt notices from the indexer by loading
// or reloading the named partition in the searcher's shard cache.
package warmup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/kafka"
)

// Partitions is the part of the shard cache a rebuild notice touches.
type Partitions interface {
	Warm(ctx context.Context, id string) error
	Refresh(ctx context.Context, id string) error
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	partitions  Partitions
	invalidator Invalidator
	refresh     bool
	logger      *slog.Logger
}

// New creates a Handler. With refresh set a rebuilt partition that is
// already resident is reloaded; otherwise it is only loaded if absent.
// invalidator may be nil.
func New(partitions Partitions, invalidator Invalidator, refresh bool) *Handler {
	return &Handler{
		partitions:  partitions,
		invalidator: invalidator,
		refresh:     refresh,
		logger:      slog.Default().With("component", "warmup"),
	}
}

// HandleMessage satisfies kafka.MessageHandler. Notices name a term
// partition or the content partition; any other id is logged and
// acknowledged so a bad notice is not redelivered forever.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	ev, err := kafka.DecodeJSON[indexer.ShardRebuilt](value)
	if err != nil {
		h.logger.Warn("dropping undecodable rebuild notice", "key", string(key), "error", err)
		return nil
	}
	if err := validPartition(ev.ShardID); err != nil {
		h.logger.Warn("dropping rebuild notice for unknown shard", "shard", ev.ShardID, "build_id", ev.BuildID)
		return nil
	}

	if h.refresh {
		err = h.partitions.Refresh(ctx, ev.ShardID)
	} else {
		err = h.partitions.Warm(ctx, ev.ShardID)
	}
	if err != nil {
		return fmt.Errorf("loading rebuilt shard %s: %w", ev.ShardID, err)
	}

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx); err != nil {
			h.logger.Warn("result cache invalidation failed", "shard", ev.ShardID, "error", err)
		}
	}
	h.logger.Info("rebuilt shard loaded",
		"shard", ev.ShardID,
		"build_id", ev.BuildID,
		"terms", ev.Terms,
		"refresh", h.refresh,
	)
	return nil
}

func validPartition(id string) error {
	if id == shard.Content {
		return nil
	}
	return shard.Validate(id)
}
