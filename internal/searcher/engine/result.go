package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
)

// Outcome classifies an evaluation. Every outcome other than OutcomeOK is a
// successful lookup that produced no results.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeNoTerms           Outcome = "no_terms"
	OutcomeTermsNotFound     Outcome = "terms_not_found"
	OutcomeSomeTermsMissing  Outcome = "some_terms_missing"
	OutcomeNoCommonDocuments Outcome = "no_common_documents"
	OutcomePhraseTooShort    Outcome = "phrase_too_short"
	OutcomePhraseNotFound    Outcome = "phrase_not_found"
	OutcomeAllExcluded       Outcome = "all_excluded"
)

// Err maps a no-result outcome onto the error taxonomy. It returns nil for
// OutcomeOK.
func (o Outcome) Err() error {
	switch o {
	case OutcomeOK:
		return nil
	case OutcomeNoTerms, OutcomeTermsNotFound, OutcomePhraseTooShort:
		return fmt.Errorf("%s: %w", o, apperrors.ErrTermsNotFound)
	default:
		return fmt.Errorf("%s: %w", o, apperrors.ErrPartialMatch)
	}
}

// Hit is one matching document with its per-term evidence.
type Hit struct {
	DocID           string           `json:"doc_id"`
	Title           string           `json:"title"`
	URL             string           `json:"url"`
	Content         string           `json:"content"`
	TotalTF         int              `json:"total_tf"`
	TermFrequencies map[string]int   `json:"term_frequencies"`
	TermPositions   map[string][]int `json:"term_positions"`
	PhraseMatches   *int             `json:"phrase_matches,omitempty"`
}

// Result is the outcome of evaluating a primitive or an expression. When
// Outcome is not OutcomeOK, Results is empty and Message explains why.
type Result struct {
	Results        []Hit    `json:"results,omitempty"`
	FoundTerms     []string `json:"found_terms"`
	Message        string   `json:"message,omitempty"`
	Outcome        Outcome  `json:"outcome"`
	DegradedShards []string `json:"degraded_shards,omitempty"`
}

// OK reports whether the evaluation produced results.
func (r *Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// DocIDs returns the doc_ids of the results in result order.
func (r *Result) DocIDs() []string {
	ids := make([]string, len(r.Results))
	for i, h := range r.Results {
		ids[i] = h.DocID
	}
	return ids
}

const (
	msgNoTerms         = "No valid search terms after removing stop words."
	msgTermsNotFound   = "None of the search terms were found in the index."
	msgPhraseTooShort  = "Phrase search requires at least two non-stop words."
	msgPhraseNotInIdx  = "None of the phrase terms were found in the index."
	msgAllExcluded     = "Every matching document was excluded by a NOT clause."
	msgSomeTermsPrefix = "Some terms were not found: "
)

func noResult(outcome Outcome, message string, found []string) *Result {
	if found == nil {
		found = []string{}
	}
	return &Result{FoundTerms: found, Message: message, Outcome: outcome}
}

func someTermsMissing(missing, found []string) *Result {
	return noResult(OutcomeSomeTermsMissing, msgSomeTermsPrefix+strings.Join(missing, ", "), found)
}

func noCommonDocuments(terms, found []string) *Result {
	return noResult(OutcomeNoCommonDocuments, "No documents contain all the terms: "+strings.Join(terms, ", "), found)
}

func phraseNotFound(terms, found []string) *Result {
	return noResult(OutcomePhraseNotFound, fmt.Sprintf("The phrase '%s' was not found in any document.", strings.Join(terms, " ")), found)
}

// sortHits orders hits by key descending, then doc_id ascending.
func sortHits(hits []Hit, key func(*Hit) int) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(key(&b), key(&a)); c != 0 {
			return c
		}
		return strings.Compare(a.DocID, b.DocID)
	})
}

func byTotalTF(h *Hit) int { return h.TotalTF }

func byPhraseMatches(h *Hit) int {
	if h.PhraseMatches == nil {
		return 0
	}
	return *h.PhraseMatches
}

// dedupe drops empty and repeated terms, keeping first occurrences in order.
func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func newHit(docID string) *Hit {
	return &Hit{
		DocID:           docID,
		TermFrequencies: make(map[string]int),
		TermPositions:   make(map[string][]int),
	}
}
