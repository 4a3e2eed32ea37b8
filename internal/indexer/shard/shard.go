// Package shard assigns terms to index partitions by their leading byte.
// There are 36 partitions named "a".."z" and "0".."9", plus the overflow
// partition "_" for every term that does not start with one of those bytes.
package shard

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
)

// Overflow is the partition for terms with no [a-z0-9] leading byte,
// including the empty term.
const Overflow = "_"

// Content names the document content partition, which is loaded and
// announced alongside the term partitions but never holds terms.
const Content = "content"

// Count is the number of term partitions, overflow included.
const Count = 37

// ID returns the partition owning term.
func ID(term string) string {
	if term == "" {
		return Overflow
	}
	c := term[0]
	if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
		return string(c)
	}
	return Overflow
}

// All lists every partition id: letters, digits, then overflow.
func All() []string {
	ids := make([]string, 0, Count)
	for c := byte('a'); c <= 'z'; c++ {
		ids = append(ids, string(c))
	}
	for c := byte('0'); c <= '9'; c++ {
		ids = append(ids, string(c))
	}
	return append(ids, Overflow)
}

// Valid reports whether id names a partition.
func Valid(id string) bool {
	if id == Overflow {
		return true
	}
	return len(id) == 1 && ID(id) == id
}

// Validate returns an error for an unknown partition id.
func Validate(id string) error {
	if !Valid(id) {
		return fmt.Errorf("unknown shard %q", id)
	}
	return nil
}

// TableName is the backing-store table holding partition id.
func TableName(id string) string {
	if id == Overflow {
		return "postings_overflow"
	}
	return "postings_" + id
}

// Partition groups term entries by owning partition. Every partition id is
// present in the result, and each partition's entries keep term order.
func Partition(entries []index.TermEntry) map[string][]index.TermEntry {
	out := make(map[string][]index.TermEntry, Count)
	for _, id := range All() {
		out[id] = nil
	}
	for _, e := range entries {
		id := ID(e.Term)
		out[id] = append(out[id], e)
	}
	for _, rows := range out {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Term < rows[j].Term })
	}
	return out
}
