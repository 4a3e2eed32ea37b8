package engine

import (
	"context"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/query"
)

// intersect evaluates each conjunct on its own and keeps the documents every
// conjunct matched. Payloads are merged by doc_id: term maps are unioned,
// total_tf is recomputed and phrase matches are summed.
func (e *Engine) intersect(ctx context.Context, children []query.Expr) (*Result, error) {
	var (
		merged map[string]*Hit
		found  []string
	)
	for i, child := range children {
		res, err := e.eval(ctx, child, false)
		if err != nil {
			return nil, err
		}
		found = appendUnique(found, res.FoundTerms...)
		if !res.OK() {
			return noResult(res.Outcome, res.Message, found), nil
		}
		if i == 0 {
			merged = make(map[string]*Hit, len(res.Results))
			for _, h := range res.Results {
				merged[h.DocID] = cloneHit(h)
			}
			continue
		}
		next := make(map[string]*Hit, min(len(merged), len(res.Results)))
		for _, h := range res.Results {
			if dst, ok := merged[h.DocID]; ok {
				mergeHit(dst, h)
				next[h.DocID] = dst
			}
		}
		merged = next
		if len(merged) == 0 {
			return noCommonDocuments(query.Terms(&query.And{Children: children}), found), nil
		}
	}
	return collect(merged, found), nil
}

// union evaluates each disjunct on its own and merges every matched document.
// Disjuncts without results contribute nothing.
func (e *Engine) union(ctx context.Context, children []query.Expr) (*Result, error) {
	merged := make(map[string]*Hit)
	var found []string
	allNoTerms := true
	for _, child := range children {
		res, err := e.eval(ctx, child, false)
		if err != nil {
			return nil, err
		}
		found = appendUnique(found, res.FoundTerms...)
		if res.Outcome != OutcomeNoTerms {
			allNoTerms = false
		}
		if !res.OK() {
			continue
		}
		for _, h := range res.Results {
			if dst, ok := merged[h.DocID]; ok {
				mergeHit(dst, h)
			} else {
				merged[h.DocID] = cloneHit(h)
			}
		}
	}
	if len(merged) == 0 {
		if allNoTerms {
			return noResult(OutcomeNoTerms, msgNoTerms, found), nil
		}
		return noResult(OutcomeTermsNotFound, msgTermsNotFound, found), nil
	}
	return collect(merged, found), nil
}

// exclude removes from the left operand's results every document the right
// operand matches. A right operand without results excludes nothing.
func (e *Engine) exclude(ctx context.Context, n *query.AndNot) (*Result, error) {
	left, err := e.eval(ctx, n.Left, false)
	if err != nil || !left.OK() {
		return left, err
	}
	if n.Right == nil {
		return left, nil
	}
	right, err := e.eval(ctx, n.Right, false)
	if err != nil {
		return nil, err
	}
	if !right.OK() {
		return left, nil
	}
	drop := make(map[string]struct{}, len(right.Results))
	for _, h := range right.Results {
		drop[h.DocID] = struct{}{}
	}
	kept := left.Results[:0:0]
	for _, h := range left.Results {
		if _, ok := drop[h.DocID]; !ok {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return noResult(OutcomeAllExcluded, msgAllExcluded, left.FoundTerms), nil
	}
	left.Results = kept
	return left, nil
}

func collect(merged map[string]*Hit, found []string) *Result {
	hits := make([]Hit, 0, len(merged))
	for _, h := range merged {
		hits = append(hits, *h)
	}
	sortHits(hits, byTotalTF)
	return &Result{Results: hits, FoundTerms: found, Outcome: OutcomeOK}
}

func cloneHit(h Hit) *Hit {
	c := h
	c.TermFrequencies = make(map[string]int, len(h.TermFrequencies))
	c.TermPositions = make(map[string][]int, len(h.TermPositions))
	c.PhraseMatches = nil
	mergeHit(&c, h)
	return &c
}

func mergeHit(dst *Hit, src Hit) {
	for term, tf := range src.TermFrequencies {
		dst.TermFrequencies[term] = tf
	}
	for term, pos := range src.TermPositions {
		dst.TermPositions[term] = pos
	}
	if src.PhraseMatches != nil {
		sum := *src.PhraseMatches
		if dst.PhraseMatches != nil {
			sum += *dst.PhraseMatches
		}
		dst.PhraseMatches = &sum
	}
	dst.TotalTF = 0
	for _, tf := range dst.TermFrequencies {
		dst.TotalTF += tf
	}
	if dst.Title == "" && dst.URL == "" && dst.Content == "" {
		dst.Title, dst.URL, dst.Content = src.Title, src.URL, src.Content
	}
}

func appendUnique(dst []string, terms ...string) []string {
	for _, t := range terms {
		if !slices.Contains(dst, t) {
			dst = append(dst, t)
		}
	}
	return dst
}
