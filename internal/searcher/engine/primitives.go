package engine

import (
	"context"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
)

func (e *Engine) or(ctx context.Context, terms []string, failOpen bool) (*Result, error) {
	terms = dedupe(terms)
	if len(terms) == 0 {
		return noResult(OutcomeNoTerms, msgNoTerms, nil), nil
	}

	acc := make(map[string]*Hit)
	found := make([]string, 0, len(terms))
	var degraded []string
	for _, term := range terms {
		pm, failed, err := e.postings(ctx, term, failOpen)
		if err != nil {
			return nil, err
		}
		if failed != "" && !slices.Contains(degraded, failed) {
			degraded = append(degraded, failed)
		}
		if len(pm) == 0 {
			continue
		}
		found = append(found, term)
		for docID, p := range pm {
			addPosting(acc, docID, term, p)
		}
	}
	if len(found) == 0 {
		res := noResult(OutcomeTermsNotFound, msgTermsNotFound, found)
		res.DegradedShards = degraded
		return res, nil
	}

	hits, err := e.materialize(ctx, acc)
	if err != nil {
		return nil, err
	}
	sortHits(hits, byTotalTF)
	return &Result{Results: hits, FoundTerms: found, Outcome: OutcomeOK, DegradedShards: degraded}, nil
}

func (e *Engine) and(ctx context.Context, terms []string) (*Result, error) {
	terms = dedupe(terms)
	switch len(terms) {
	case 0:
		return noResult(OutcomeNoTerms, msgNoTerms, nil), nil
	case 1:
		return e.or(ctx, terms, false)
	}

	lists := make(map[string]index.PostingMap, len(terms))
	found := make([]string, 0, len(terms))
	var missing []string
	for _, term := range terms {
		pm, _, err := e.postings(ctx, term, false)
		if err != nil {
			return nil, err
		}
		if len(pm) == 0 {
			missing = append(missing, term)
			continue
		}
		lists[term] = pm
		found = append(found, term)
	}
	switch {
	case len(found) == 0:
		return noResult(OutcomeTermsNotFound, msgTermsNotFound, found), nil
	case len(missing) > 0:
		return someTermsMissing(missing, found), nil
	}

	common := intersectDocs(terms, lists)
	if len(common) == 0 {
		return noCommonDocuments(terms, found), nil
	}
	acc := make(map[string]*Hit, len(common))
	for _, docID := range common {
		for _, term := range terms {
			addPosting(acc, docID, term, lists[term][docID])
		}
	}
	hits, err := e.materialize(ctx, acc)
	if err != nil {
		return nil, err
	}
	sortHits(hits, byTotalTF)
	return &Result{Results: hits, FoundTerms: found, Outcome: OutcomeOK}, nil
}

func (e *Engine) phrase(ctx context.Context, terms []string) (*Result, error) {
	ordered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) < 2 {
		return noResult(OutcomePhraseTooShort, msgPhraseTooShort, nil), nil
	}

	distinct := dedupe(ordered)
	lists := make(map[string]index.PostingMap, len(distinct))
	found := make([]string, 0, len(distinct))
	for _, term := range distinct {
		pm, _, err := e.postings(ctx, term, false)
		if err != nil {
			return nil, err
		}
		if len(pm) == 0 {
			continue
		}
		lists[term] = pm
		found = append(found, term)
	}
	if len(found) == 0 {
		return noResult(OutcomeTermsNotFound, msgPhraseNotInIdx, found), nil
	}
	if len(found) < len(distinct) {
		return phraseNotFound(ordered, found), nil
	}

	acc := make(map[string]*Hit)
	positions := make(map[string][]int, len(distinct))
	for _, docID := range intersectDocs(distinct, lists) {
		for _, term := range distinct {
			positions[term] = lists[term][docID].Positions
		}
		matches := phraseMatches(ordered, positions)
		if matches == 0 {
			continue
		}
		for _, term := range distinct {
			addPosting(acc, docID, term, lists[term][docID])
		}
		acc[docID].PhraseMatches = &matches
	}
	if len(acc) == 0 {
		return phraseNotFound(ordered, found), nil
	}
	hits, err := e.materialize(ctx, acc)
	if err != nil {
		return nil, err
	}
	sortHits(hits, byPhraseMatches)
	return &Result{Results: hits, FoundTerms: found, Outcome: OutcomeOK}, nil
}

// phraseMatches counts the positions of terms[0] at which every terms[k]
// occurs at offset k. positions lists must be ascending.
func phraseMatches(terms []string, positions map[string][]int) int {
	matches := 0
	for _, p := range positions[terms[0]] {
		ok := true
		for k := 1; k < len(terms); k++ {
			if !containsSorted(positions[terms[k]], p+k) {
				ok = false
				break
			}
		}
		if ok {
			matches++
		}
	}
	return matches
}

func containsSorted(list []int, v int) bool {
	i := sort.SearchInts(list, v)
	return i < len(list) && list[i] == v
}

// intersectDocs returns the doc_ids present in the postings of every term,
// walking the shortest list.
func intersectDocs(terms []string, lists map[string]index.PostingMap) []string {
	shortest := terms[0]
	for _, t := range terms[1:] {
		if len(lists[t]) < len(lists[shortest]) {
			shortest = t
		}
	}
	var common []string
	for docID := range lists[shortest] {
		all := true
		for _, t := range terms {
			if _, ok := lists[t][docID]; !ok {
				all = false
				break
			}
		}
		if all {
			common = append(common, docID)
		}
	}
	slices.Sort(common)
	return common
}

func addPosting(acc map[string]*Hit, docID, term string, p index.Posting) {
	h, ok := acc[docID]
	if !ok {
		h = newHit(docID)
		acc[docID] = h
	}
	h.TotalTF += p.TF
	h.TermFrequencies[term] = p.TF
	h.TermPositions[term] = p.Positions
}
