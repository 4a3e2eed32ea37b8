package indexer

import "time"

// ShardRebuilt announces that a partition's backing table was repopulated.
// Searchers use it to warm or refresh their cached copy.
type ShardRebuilt struct {
	BuildID   string    `json:"build_id"`
	ShardID   string    `json:"shard_id"`
	Terms     int       `json:"terms"`
	Documents int       `json:"documents"`
	Timestamp time.Time `json:"timestamp"`
}
