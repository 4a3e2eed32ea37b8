// Package analysis turns raw text into the normalized term sequences that
// documents are indexed under and queries are matched against. The same
// Normalizer must be used at build time and at query time.
package analysis

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalizer maps text to an ordered term sequence. A term's position is its
// 1-based index in the returned slice.
type Normalizer interface {
	Name() string
	Terms(text string) []string
}

// New returns the normalizer registered under name.
func New(name string) (Normalizer, error) {
	switch name {
	case "passthrough":
		return Passthrough{}, nil
	case "standard", "":
		return Standard{}, nil
	default:
		return nil, fmt.Errorf("unknown normalizer %q", name)
	}
}

// Passthrough treats input as already normalized and splits on whitespace.
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Terms(text string) []string {
	return strings.Fields(text)
}

// Standard lower-cases text, splits on non-alphanumeric runes, drops
// single-rune words and stop-words, and applies a suffix stemmer.
type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if stemmed := Stem(word); stemmed != "" {
			terms = append(terms, stemmed)
		}
	}
	return terms
}

// IsStopWord reports whether word (already lower-cased) is dropped by Standard.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}
