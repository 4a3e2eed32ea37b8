package ranker

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
)

// Weights blends the three full-scorer signals.
type Weights struct {
	TFIDF float64
	BM25  float64
	Count float64
}

// DefaultWeights favours raw occurrence counts.
var DefaultWeights = Weights{TFIDF: 0.1, BM25: 0.1, Count: 0.8}

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Full scores every hit with DefaultWeights over the sum-normalized TF-IDF,
// BM25 and raw count signals and returns the best topN. Equal scores keep
// their input order.
func Full(hits []engine.Hit, terms []string, topN int) []Scored {
	return FullWeighted(hits, terms, topN, DefaultWeights)
}

// FullWeighted is Full with explicit weights.
func FullWeighted(hits []engine.Hit, terms []string, topN int, w Weights) []Scored {
	if len(hits) == 0 {
		return []Scored{}
	}
	tfidf := normalizeSum(tfidfScores(hits, terms))
	bm25 := normalizeSum(bm25Scores(hits, terms))
	count := normalizeSum(countScores(hits, terms))

	out := make([]Scored, len(hits))
	for i, h := range hits {
		out[i] = Scored{
			Hit:   h,
			Score: w.TFIDF*tfidf[i] + w.BM25*bm25[i] + w.Count*count[i],
		}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// tfidfScores sums, per document, the cosine similarity between each query
// term and the document. Vectors use raw term counts, smoothed idf
// ln((1+n)/(1+df))+1 and L2 normalization.
func tfidfScores(hits []engine.Hit, terms []string) []float64 {
	n := len(hits)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, h := range hits {
		c := make(map[string]int)
		for _, tok := range wordTokens(h.Content) {
			c[tok]++
		}
		for tok := range c {
			df[tok]++
		}
		counts[i] = c
	}
	idf := make(map[string]float64, len(df))
	for tok, d := range df {
		idf[tok] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	norms := make([]float64, n)
	for i, c := range counts {
		var sq float64
		for tok, tf := range c {
			v := float64(tf) * idf[tok]
			sq += v * v
		}
		norms[i] = math.Sqrt(sq)
	}

	scores := make([]float64, n)
	for _, term := range terms {
		q := queryVector(term, idf)
		if q == nil {
			continue
		}
		for i, c := range counts {
			if norms[i] == 0 {
				continue
			}
			var dot float64
			for tok, qw := range q {
				if tf, ok := c[tok]; ok {
					dot += qw * float64(tf) * idf[tok] / norms[i]
				}
			}
			scores[i] += dot
		}
	}
	return scores
}

func queryVector(term string, idf map[string]float64) map[string]float64 {
	q := make(map[string]float64)
	for _, tok := range wordTokens(term) {
		if w, ok := idf[tok]; ok {
			q[tok] += w
		}
	}
	var sq float64
	for _, v := range q {
		sq += v * v
	}
	if sq == 0 {
		return nil
	}
	norm := math.Sqrt(sq)
	for tok := range q {
		q[tok] /= norm
	}
	return q
}

// bm25Scores is Okapi BM25 over whitespace tokens. Negative idf values are
// floored to epsilon times the mean idf.
func bm25Scores(hits []engine.Hit, terms []string) []float64 {
	n := len(hits)
	docs := make([]map[string]int, n)
	lengths := make([]float64, n)
	df := make(map[string]int)
	var total float64
	for i, h := range hits {
		fields := strings.Fields(strings.ToLower(h.Content))
		c := make(map[string]int, len(fields))
		for _, f := range fields {
			c[f]++
		}
		for f := range c {
			df[f]++
		}
		docs[i] = c
		lengths[i] = float64(len(fields))
		total += lengths[i]
	}
	avgdl := total / float64(n)

	idf := make(map[string]float64, len(df))
	var idfSum float64
	var negative []string
	for tok, d := range df {
		v := math.Log((float64(n-d) + 0.5) / (float64(d) + 0.5))
		idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(idf) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(idf))
		for _, tok := range negative {
			idf[tok] = floor
		}
	}

	scores := make([]float64, n)
	for _, term := range terms {
		for _, q := range strings.Fields(strings.ToLower(term)) {
			w := idf[q]
			for i, c := range docs {
				tf := float64(c[q])
				if tf == 0 || avgdl == 0 {
					continue
				}
				scores[i] += w * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*lengths[i]/avgdl))
			}
		}
	}
	return scores
}

// countScores counts case-insensitive substring occurrences of every term.
func countScores(hits []engine.Hit, terms []string) []float64 {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(t); t != "" {
			lowered = append(lowered, t)
		}
	}
	scores := make([]float64, len(hits))
	for i, h := range hits {
		content := strings.ToLower(h.Content)
		for _, t := range lowered {
			scores[i] += float64(strings.Count(content, t))
		}
	}
	return scores
}

func normalizeSum(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return v
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}

// wordTokens lowercases s and splits it into runs of at least two letters,
// digits or underscores.
func wordTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
