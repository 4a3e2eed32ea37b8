package index

import "sort"

// Posting records one term's occurrences in one document. Positions are the
// 1-based offsets of the term in the document's normalized term sequence, so
// TF always equals len(Positions). TotalTerms is the owning document's length.
type Posting struct {
	TF         int   `json:"tf"`
	Positions  []int `json:"positions"`
	TotalTerms int   `json:"total_terms"`
}

// PostingMap maps doc_id to the term's posting in that document.
type PostingMap map[string]Posting

// DocIDs returns the map's doc ids in ascending order.
func (m PostingMap) DocIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TermEntry is one row of a shard partition: a term and all its postings.
type TermEntry struct {
	Term     string     `json:"term"`
	Postings PostingMap `json:"data"`
}

// Shard is a resident partition of the inverted index: term to postings.
type Shard map[string]PostingMap

// Entries returns the shard's rows sorted by term.
func (s Shard) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(s))
	for term, postings := range s {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// ShardFromEntries rebuilds a resident shard from persisted rows.
func ShardFromEntries(entries []TermEntry) Shard {
	s := make(Shard, len(entries))
	for _, e := range entries {
		s[e.Term] = e.Postings
	}
	return s
}
