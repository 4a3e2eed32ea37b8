// Package index builds the positional inverted index from corpus records.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion/validator"
)

// Builder accumulates postings batch by batch. A batch that fails validation
// leaves everything built from earlier batches untouched.
type Builder struct {
	mu         sync.RWMutex
	normalizer analysis.Normalizer
	postings   map[string]PostingMap
	docs       map[string]int
	size       int64
}

func NewBuilder(normalizer analysis.Normalizer) *Builder {
	return &Builder{
		normalizer: normalizer,
		postings:   make(map[string]PostingMap),
		docs:       make(map[string]int),
	}
}

// AddBatch validates the whole batch, then normalizes and indexes each
// record. It returns the content-store documents for the batch in input
// order.
func (b *Builder) AddBatch(records []ingestion.Record) ([]ingestion.Document, error) {
	if err := validator.ValidateBatch(records); err != nil {
		return nil, err
	}
	b.mu.RLock()
	for _, rec := range records {
		if _, dup := b.docs[rec.DocID]; dup {
			b.mu.RUnlock()
			return nil, &validator.ValidationError{Fields: map[string]string{
				"doc_id": fmt.Sprintf("%s already indexed by an earlier batch", rec.DocID),
			}}
		}
	}
	b.mu.RUnlock()

	docs := make([]ingestion.Document, 0, len(records))
	for _, rec := range records {
		terms := b.normalizer.Terms(rec.Content)
		b.AddTerms(rec.DocID, terms)
		docs = append(docs, ingestion.Document{
			DocID:      rec.DocID,
			Title:      rec.Title,
			URL:        rec.URL,
			Content:    rec.Content,
			TotalTerms: len(terms),
		})
	}
	return docs, nil
}

// AddTerms indexes a document whose content is already a normalized term
// sequence. Doc ids must be unique across calls; AddBatch enforces this.
func (b *Builder) AddTerms(docID string, terms []string) {
	local := make(map[string]*Posting)
	for i, term := range terms {
		p, ok := local[term]
		if !ok {
			p = &Posting{Positions: make([]int, 0, 4), TotalTerms: len(terms)}
			local[term] = p
		}
		p.TF++
		p.Positions = append(p.Positions, i+1)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for term, p := range local {
		docs, ok := b.postings[term]
		if !ok {
			docs = make(PostingMap)
			b.postings[term] = docs
		}
		docs[docID] = *p
		b.size += int64(len(term) + len(docID) + len(p.Positions)*8 + 48)
	}
	b.docs[docID] = len(terms)
}

// Lookup returns the postings for term, or nil.
func (b *Builder) Lookup(term string) PostingMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.postings[term]
}

// Snapshot returns every term's postings sorted by term.
func (b *Builder) Snapshot() []TermEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]TermEntry, 0, len(b.postings))
	for term, docs := range b.postings {
		entries = append(entries, TermEntry{Term: term, Postings: docs})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (b *Builder) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

func (b *Builder) TermCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.postings)
}

// Size is a rough estimate of resident bytes.
func (b *Builder) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postings = make(map[string]PostingMap)
	b.docs = make(map[string]int)
	b.size = 0
}
