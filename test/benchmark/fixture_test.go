package benchmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
)

var vocabulary = strings.Fields(`distributed search engine process queries across multiple
shards achieve horizontal scalability each shard maintains inverted index responds
independently results merged global ranking algorithm accounts term frequency inverse
document corpus architecture enables latency billions documents spread hundreds nodes
python machine learning compiler optimization database caching phrase positional`)

// corpus generates n deterministic records of roughly words terms each.
func corpus(n, words int) []ingestion.Record {
	r := rand.New(rand.NewPCG(42, uint64(n)))
	out := make([]ingestion.Record, n)
	for i := range out {
		var sb strings.Builder
		for w := range words {
			if w > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(vocabulary[r.IntN(len(vocabulary))])
		}
		out[i] = ingestion.Record{
			DocID:   fmt.Sprintf("doc-%06d", i),
			Title:   fmt.Sprintf("Document %d", i),
			URL:     fmt.Sprintf("example.com/%d", i),
			Content: sb.String(),
		}
	}
	return out
}

// memIndex serves postings and documents from a finished in-memory build.
type memIndex struct {
	builder *index.Builder
	docs    map[string]ingestion.Document
}

func buildIndex(records []ingestion.Record) *memIndex {
	b := index.NewBuilder(analysis.Standard{})
	docs, err := b.AddBatch(records)
	if err != nil {
		panic(err)
	}
	idx := &memIndex{builder: b, docs: make(map[string]ingestion.Document, len(docs))}
	for _, d := range docs {
		idx.docs[d.DocID] = d
	}
	return idx
}

func (m *memIndex) Postings(ctx context.Context, term string) (index.PostingMap, error) {
	return m.builder.Lookup(term), nil
}

func (m *memIndex) Document(ctx context.Context, docID string) (ingestion.Document, bool, error) {
	d, ok := m.docs[docID]
	return d, ok, nil
}
