package ranker

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
)

const (
	lengthEpsilon   = 1e-9
	totalTFWeight   = 0.3
	pseudoTitleDocs = 5
	pseudoTermLimit = 10
)

type candidate struct {
	idx   int
	score float64
}

// Fast truncates hits to maxCandidates in their given order, then scores
// each one by the number of distinct terms its content contains times a
// document-length factor, plus 0.3 times its total_tf. When more than topN
// remain, the top topN are selected without a full sort and then sorted.
// Ties break by doc_id ascending. With no terms, pseudo-terms are taken from
// the leading title words or the first document's content.
func Fast(hits []engine.Hit, terms []string, topN, maxCandidates int) []Scored {
	if maxCandidates > 0 && len(hits) > maxCandidates {
		hits = hits[:maxCandidates]
	}
	if len(hits) == 0 {
		return []Scored{}
	}
	if len(terms) == 0 {
		terms = pseudoTerms(hits)
	}
	lowered := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		lowered = append(lowered, t)
	}

	lengths := make([]float64, len(hits))
	var total float64
	for i, h := range hits {
		lengths[i] = float64(len(strings.Fields(h.Content)))
		total += lengths[i]
	}
	avg := total / float64(len(hits))
	if avg == 0 {
		avg = 1
	}

	cands := make([]candidate, len(hits))
	for i, h := range hits {
		content := strings.ToLower(h.Content)
		present := 0
		for _, t := range lowered {
			if strings.Contains(content, t) {
				present++
			}
		}
		factor := 1 / (0.5 + 0.5*(lengths[i]/avg) + lengthEpsilon)
		cands[i] = candidate{
			idx:   i,
			score: float64(present)*factor + totalTFWeight*float64(h.TotalTF),
		}
	}

	before := func(a, b candidate) bool {
		if a.score != b.score {
			return a.score > b.score
		}
		if hits[a.idx].DocID != hits[b.idx].DocID {
			return hits[a.idx].DocID < hits[b.idx].DocID
		}
		return a.idx < b.idx
	}
	if topN > 0 && len(cands) > topN {
		selectTop(cands, topN, before)
		cands = cands[:topN]
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if before(a, b) {
			return -1
		}
		if before(b, a) {
			return 1
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]Scored, len(cands))
	for i, c := range cands {
		out[i] = Scored{Hit: hits[c.idx], Score: c.score}
	}
	return out
}

// selectTop rearranges c so that its first k elements are the k that rank
// first under before, in no particular order. before must be a strict total
// order.
func selectTop(c []candidate, k int, before func(a, b candidate) bool) {
	lo, hi := 0, len(c)-1
	for lo < hi {
		p := partition(c, lo, hi, before)
		switch {
		case p == k:
			return
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partition places a median-of-three pivot at its final position within
// c[lo:hi+1] and returns that position.
func partition(c []candidate, lo, hi int, before func(a, b candidate) bool) int {
	mid := lo + (hi-lo)/2
	if before(c[mid], c[lo]) {
		c[mid], c[lo] = c[lo], c[mid]
	}
	if before(c[hi], c[lo]) {
		c[hi], c[lo] = c[lo], c[hi]
	}
	if before(c[mid], c[hi]) {
		c[mid], c[hi] = c[hi], c[mid]
	}
	pivot := c[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if before(c[j], pivot) {
			c[i], c[j] = c[j], c[i]
			i++
		}
	}
	c[i], c[hi] = c[hi], c[i]
	return i
}

func pseudoTerms(hits []engine.Hit) []string {
	titles := make([]string, 0, pseudoTitleDocs)
	for _, h := range hits[:min(pseudoTitleDocs, len(hits))] {
		titles = append(titles, h.Title)
	}
	words := strings.Fields(strings.Join(titles, " "))
	if len(words) == 0 {
		words = strings.Fields(hits[0].Content)
	}
	return words[:min(pseudoTermLimit, len(words))]
}
