package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/analysis"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Distributed search engines process queries across multiple shards to achieve
        horizontal scalability. Each shard maintains its own inverted index and responds
        to queries independently.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming and stop word
        removal to normalize text into searchable terms. The inverted index maps each
        term to the documents containing it, along with positional information for phrase
        queries. `, 20),
}

func BenchmarkNormalize(b *testing.B) {
	normalizers := []analysis.Normalizer{analysis.Passthrough{}, analysis.Standard{}}
	for _, n := range normalizers {
		for name, text := range sampleTexts {
			b.Run(n.Name()+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for b.Loop() {
					_ = n.Terms(text)
				}
			})
		}
	}
}

func BenchmarkStem(b *testing.B) {
	words := []string{"running", "searches", "indexing", "optimization", "distributed", "learning"}
	b.ReportAllocs()
	for b.Loop() {
		for _, w := range words {
			_ = analysis.Stem(w)
		}
	}
}
