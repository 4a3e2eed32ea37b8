package ranker

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vocabulary = []string{"cat", "dog", "bird", "fish", "lion", "wolf", "bear", "deer"}

func randomHits(n int, seed uint64) []engine.Hit {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	hits := make([]engine.Hit, n)
	for i := range hits {
		words := make([]string, 5+rng.IntN(40))
		for j := range words {
			words[j] = vocabulary[rng.IntN(len(vocabulary))]
		}
		hits[i] = engine.Hit{
			DocID:   fmt.Sprintf("doc-%05d", i),
			Title:   words[0],
			Content: strings.Join(words, " "),
			TotalTF: rng.IntN(4),
		}
	}
	return hits
}

func docIDs(scored []Scored) []string {
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.DocID
	}
	return ids
}

func TestFastIsIdempotent(t *testing.T) {
	hits := randomHits(2000, 7)
	terms := []string{"cat", "wolf"}

	first := Fast(slices.Clone(hits), terms, 300, DefaultMaxCandidates)
	second := Fast(slices.Clone(hits), terms, 300, DefaultMaxCandidates)
	require.Len(t, first, 300)
	assert.Equal(t, first, second)
}

func TestFastSelectionMatchesFullSort(t *testing.T) {
	hits := randomHits(1500, 11)
	terms := []string{"bear", "deer", "fish"}

	selected := Fast(hits, terms, 100, DefaultMaxCandidates)
	sorted := Fast(hits, terms, len(hits), DefaultMaxCandidates)
	require.Len(t, selected, 100)
	assert.Equal(t, docIDs(sorted[:100]), docIDs(selected))
	for i := 1; i < len(selected); i++ {
		assert.GreaterOrEqual(t, selected[i-1].Score, selected[i].Score)
	}
}

func TestFastCandidateCapBoundary(t *testing.T) {
	star := engine.Hit{DocID: "star", Content: "cat cat cat", TotalTF: 1000}

	exact := append(randomHits(DefaultMaxCandidates-1, 3), star)
	require.Len(t, exact, 5000)
	out := Fast(exact, []string{"cat"}, 10, DefaultMaxCandidates)
	assert.Equal(t, "star", out[0].DocID)

	over := append(randomHits(DefaultMaxCandidates, 3), star)
	require.Len(t, over, 5001)
	out = Fast(over, []string{"cat"}, len(over), DefaultMaxCandidates)
	assert.Len(t, out, DefaultMaxCandidates)
	assert.NotContains(t, docIDs(out), "star")
}

func TestFastLengthFactorAndTotalTF(t *testing.T) {
	hits := []engine.Hit{
		{DocID: "long", Content: "cat " + strings.Repeat("filler ", 30)},
		{DocID: "short", Content: "cat sat"},
		{DocID: "none", Content: "dog sat"},
	}
	out := Fast(hits, []string{"CAT"}, 10, DefaultMaxCandidates)
	assert.Equal(t, []string{"short", "long", "none"}, docIDs(out))
	assert.Zero(t, out[2].Score)

	hits[2].TotalTF = 10
	out = Fast(hits, []string{"cat"}, 10, DefaultMaxCandidates)
	assert.Equal(t, "none", out[0].DocID)
	assert.InDelta(t, 3.0, out[0].Score, 1e-9)
}

func TestFastCountsDistinctTerms(t *testing.T) {
	hits := []engine.Hit{
		{DocID: "a", Content: "cat dog"},
		{DocID: "b", Content: "cat cat"},
	}
	out := Fast(hits, []string{"cat", "cat", "dog"}, 10, DefaultMaxCandidates)
	assert.Equal(t, []string{"a", "b"}, docIDs(out))
	assert.InDelta(t, 2*out[1].Score, out[0].Score, 1e-9)
}

func TestFastTieBreaksByDocID(t *testing.T) {
	hits := []engine.Hit{
		{DocID: "c", Content: "cat"},
		{DocID: "a", Content: "cat"},
		{DocID: "b", Content: "cat"},
	}
	out := Fast(hits, []string{"cat"}, 2, DefaultMaxCandidates)
	assert.Equal(t, []string{"a", "b"}, docIDs(out))
}

func TestFastPseudoTerms(t *testing.T) {
	hits := []engine.Hit{
		{DocID: "a", Title: "Wolf", Content: "a lone wolf"},
		{DocID: "b", Title: "", Content: "nothing here"},
	}
	assert.Equal(t, []string{"Wolf"}, pseudoTerms(hits))
	out := Fast(hits, nil, 10, DefaultMaxCandidates)
	assert.Equal(t, "a", out[0].DocID)
	assert.Positive(t, out[0].Score)

	untitled := []engine.Hit{{DocID: "x", Content: "one two three four five six seven eight nine ten eleven"}}
	assert.Len(t, pseudoTerms(untitled), 10)
}

func TestFastEmpty(t *testing.T) {
	assert.Empty(t, Fast(nil, []string{"cat"}, 10, DefaultMaxCandidates))
}

func TestSelectTopPartitions(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := make([]candidate, 500)
	for i := range c {
		c[i] = candidate{idx: i, score: float64(rng.IntN(50))}
	}
	before := func(a, b candidate) bool {
		if a.score != b.score {
			return a.score > b.score
		}
		return a.idx < b.idx
	}
	want := slices.Clone(c)
	slices.SortFunc(want, func(a, b candidate) int {
		if before(a, b) {
			return -1
		}
		return 1
	})

	selectTop(c, 37, before)
	top := slices.Clone(c[:37])
	slices.SortFunc(top, func(a, b candidate) int {
		if before(a, b) {
			return -1
		}
		return 1
	})
	assert.Equal(t, want[:37], top)
}

func TestFullPrefersRawCounts(t *testing.T) {
	hits := []engine.Hit{
		{DocID: "once", Content: "the cat sat on the mat"},
		{DocID: "thrice", Content: "cat cat cat and a dog"},
		{DocID: "never", Content: "a dog barked"},
	}
	out := Full(hits, []string{"cat"}, DefaultTopN)
	assert.Equal(t, []string{"thrice", "once", "never"}, docIDs(out))
	assert.Zero(t, out[2].Score)

	var sum float64
	for _, s := range out {
		sum += s.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "each signal sums to one and weights sum to one")
}

func TestFullKeepsInputOrderWithoutSignal(t *testing.T) {
	hits := []engine.Hit{{DocID: "b", Content: "x"}, {DocID: "a", Content: "y"}}
	out := Full(hits, []string{"zebra"}, DefaultTopN)
	assert.Equal(t, []string{"b", "a"}, docIDs(out))
	assert.Zero(t, out[0].Score)
}

func TestFullTruncatesToTopN(t *testing.T) {
	out := Full(randomHits(400, 5), []string{"cat"}, DefaultTopN)
	assert.Len(t, out, 300)
}

func TestTFIDFCosine(t *testing.T) {
	scores := tfidfScores([]engine.Hit{{Content: "Cat dog"}}, []string{"cat"})
	assert.InDelta(t, 1/math.Sqrt2, scores[0], 1e-9)
}

func TestBM25FloorsNegativeIDF(t *testing.T) {
	hits := []engine.Hit{
		{Content: "cat dog"},
		{Content: "cat bird"},
		{Content: "cat fish"},
	}
	scores := bm25Scores(hits, []string{"cat", "dog"})
	for _, s := range scores {
		assert.False(t, math.IsNaN(s))
	}
	assert.Greater(t, scores[0], scores[1])
}

func TestNormalizeSum(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, normalizeSum([]float64{0, 0}))
	assert.Equal(t, []float64{0.25, 0.75}, normalizeSum([]float64{1, 3}))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("FULL")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFast, m)
	_, err = ParseMode("slow")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRankerRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := New(Options{TopN: 5}, m)

	out, err := r.Rank(context.Background(), ModeFast, randomHits(20, 9), []string{"cat"})
	require.NoError(t, err)
	assert.Len(t, out, 5)
	out, err = r.Rank(context.Background(), ModeFull, randomHits(20, 9), []string{"cat"})
	require.NoError(t, err)
	assert.Len(t, out, 5)

	assert.Equal(t, 2, testutil.CollectAndCount(m.RankLatency))
	_, err = r.Rank(context.Background(), Mode("slow"), nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
