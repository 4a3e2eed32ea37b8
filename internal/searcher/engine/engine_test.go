package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/termshard/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/termshard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	mu          sync.Mutex
	postings    map[string]index.PostingMap
	docs        map[string]ingestion.Document
	downShards  map[string]bool
	contentDown bool
	lookups     []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		postings:   make(map[string]index.PostingMap),
		docs:       make(map[string]ingestion.Document),
		downShards: make(map[string]bool),
	}
}

func (f *fakeIndex) Postings(ctx context.Context, term string) (index.PostingMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, term)
	if f.downShards[shard.ID(term)] {
		return nil, fmt.Errorf("loading partition %s: %w", shard.ID(term), apperrors.ErrBackingStoreUnavailable)
	}
	return f.postings[term], nil
}

func (f *fakeIndex) Document(ctx context.Context, docID string) (ingestion.Document, bool, error) {
	if f.contentDown {
		return ingestion.Document{}, false, fmt.Errorf("loading partition content: %w", apperrors.ErrBackingStoreUnavailable)
	}
	d, ok := f.docs[docID]
	return d, ok, nil
}

func (f *fakeIndex) add(term, docID string, positions ...int) {
	pm, ok := f.postings[term]
	if !ok {
		pm = make(index.PostingMap)
		f.postings[term] = pm
	}
	pm[docID] = index.Posting{TF: len(positions), Positions: positions, TotalTerms: 100}
	if _, ok := f.docs[docID]; !ok {
		f.docs[docID] = ingestion.Document{DocID: docID, Title: "title " + docID, URL: "https://example.com/" + docID, Content: "content " + docID}
	}
}

// catDog builds {"cat": {"d1": tf=2}, "dog": {"d1": tf=1, "d2": tf=3}}.
func catDog() *fakeIndex {
	f := newFakeIndex()
	f.add("cat", "d1", 1, 4)
	f.add("dog", "d1", 2)
	f.add("dog", "d2", 1, 5, 9)
	return f
}

func TestOrUnionWithDocIDTieBreak(t *testing.T) {
	e := New(catDog(), nil)
	res, err := e.Or(context.Background(), []string{"cat", "dog"})
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Equal(t, []string{"d1", "d2"}, res.DocIDs())
	assert.Equal(t, 3, res.Results[0].TotalTF)
	assert.Equal(t, 3, res.Results[1].TotalTF)
	assert.Equal(t, map[string]int{"cat": 2, "dog": 1}, res.Results[0].TermFrequencies)
	assert.Equal(t, map[string][]int{"cat": {1, 4}, "dog": {2}}, res.Results[0].TermPositions)
	assert.Equal(t, "title d1", res.Results[0].Title)
	assert.Nil(t, res.Results[0].PhraseMatches)
	assert.Equal(t, []string{"cat", "dog"}, res.FoundTerms)
}

func TestOrOrdersByTotalTF(t *testing.T) {
	f := catDog()
	f.add("dog", "d3", 1, 2, 3, 4)
	res, err := New(f, nil).Or(context.Background(), []string{"dog", "cat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d3", "d1", "d2"}, res.DocIDs())
	assert.Equal(t, []string{"dog", "cat"}, res.FoundTerms)
}

func TestOrSkipsAbsentTerms(t *testing.T) {
	res, err := New(catDog(), nil).Or(context.Background(), []string{"zebra", "cat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
	assert.Equal(t, []string{"cat"}, res.FoundTerms)
}

func TestOrNoneFound(t *testing.T) {
	res, err := New(catDog(), nil).Or(context.Background(), []string{"zebra", "yak"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTermsNotFound, res.Outcome)
	assert.Equal(t, "None of the search terms were found in the index.", res.Message)
	assert.Empty(t, res.Results)
	assert.ErrorIs(t, res.Outcome.Err(), apperrors.ErrTermsNotFound)
}

func TestNoTerms(t *testing.T) {
	e := New(catDog(), nil)
	for _, terms := range [][]string{nil, {""}} {
		res, err := e.Or(context.Background(), terms)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoTerms, res.Outcome)
		assert.Equal(t, "No valid search terms after removing stop words.", res.Message)

		res, err = e.And(context.Background(), terms)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoTerms, res.Outcome)
	}
	res, err := e.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoTerms, res.Outcome)
}

func TestAndIntersection(t *testing.T) {
	res, err := New(catDog(), nil).And(context.Background(), []string{"cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
	assert.Equal(t, 3, res.Results[0].TotalTF)
}

func TestAndSingleTermDegradesToOr(t *testing.T) {
	res, err := New(catDog(), nil).And(context.Background(), []string{"dog", "dog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "d1"}, res.DocIDs())
}

func TestAndFailureShapesAreDistinct(t *testing.T) {
	f := catDog()
	f.add("bird", "d9", 1)
	e := New(f, nil)

	missing, err := e.And(context.Background(), []string{"cat", "zebra"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSomeTermsMissing, missing.Outcome)
	assert.Equal(t, "Some terms were not found: zebra", missing.Message)
	assert.Equal(t, []string{"cat"}, missing.FoundTerms)

	disjoint, err := e.And(context.Background(), []string{"cat", "bird"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCommonDocuments, disjoint.Outcome)
	assert.Equal(t, "No documents contain all the terms: cat, bird", disjoint.Message)

	none, err := e.And(context.Background(), []string{"zebra", "yak"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTermsNotFound, none.Outcome)

	assert.ErrorIs(t, missing.Outcome.Err(), apperrors.ErrPartialMatch)
	assert.ErrorIs(t, disjoint.Outcome.Err(), apperrors.ErrPartialMatch)
	assert.NoError(t, OutcomeOK.Err())
}

func TestPhraseMatchCounting(t *testing.T) {
	f := newFakeIndex()
	f.add("machine", "d1", 5, 20)
	f.add("learning", "d1", 6)
	f.add("machine", "d2", 5)
	f.add("learning", "d2", 7)
	e := New(f, nil)

	res, err := e.Phrase(context.Background(), []string{"machine", "learning"})
	require.NoError(t, err)
	require.Equal(t, []string{"d1"}, res.DocIDs())
	require.NotNil(t, res.Results[0].PhraseMatches)
	assert.Equal(t, 1, *res.Results[0].PhraseMatches)
	assert.Equal(t, 3, res.Results[0].TotalTF)
}

func TestPhraseNonAdjacentExcluded(t *testing.T) {
	f := newFakeIndex()
	f.add("machine", "d2", 5)
	f.add("learning", "d2", 7)

	res, err := New(f, nil).Phrase(context.Background(), []string{"machine", "learning"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePhraseNotFound, res.Outcome)
	assert.Equal(t, "The phrase 'machine learning' was not found in any document.", res.Message)
	assert.Equal(t, []string{"machine", "learning"}, res.FoundTerms)
}

func TestPhraseOrdersByMatches(t *testing.T) {
	f := newFakeIndex()
	f.add("new", "a", 1)
	f.add("york", "a", 2)
	f.add("new", "b", 1, 10, 30)
	f.add("york", "b", 2, 11, 40)
	f.add("new", "c", 3)
	f.add("york", "c", 4)

	res, err := New(f, nil).Phrase(context.Background(), []string{"new", "york"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, res.DocIDs())
	assert.Equal(t, 2, *res.Results[0].PhraseMatches)
}

func TestPhraseRepeatedTerm(t *testing.T) {
	f := newFakeIndex()
	f.add("bora", "d1", 3, 4)
	f.add("bora", "d2", 3, 5)

	res, err := New(f, nil).Phrase(context.Background(), []string{"bora", "bora"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
	assert.Equal(t, []string{"bora"}, res.FoundTerms)
}

func TestPhraseFailureShapes(t *testing.T) {
	f := newFakeIndex()
	f.add("machine", "d1", 1)
	e := New(f, nil)

	short, err := e.Phrase(context.Background(), []string{"machine", ""})
	require.NoError(t, err)
	assert.Equal(t, OutcomePhraseTooShort, short.Outcome)
	assert.Equal(t, "Phrase search requires at least two non-stop words.", short.Message)

	none, err := e.Phrase(context.Background(), []string{"deep", "learning"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTermsNotFound, none.Outcome)
	assert.Equal(t, "None of the phrase terms were found in the index.", none.Message)

	partial, err := e.Phrase(context.Background(), []string{"machine", "learning"})
	require.NoError(t, err)
	assert.Equal(t, OutcomePhraseNotFound, partial.Outcome)
	assert.Equal(t, []string{"machine"}, partial.FoundTerms)
}

func TestPhraseMatchesHelper(t *testing.T) {
	pos := map[string][]int{"a": {1, 5, 9}, "b": {2, 6, 11}, "c": {3, 12}}
	assert.Equal(t, 1, phraseMatches([]string{"a", "b", "c"}, pos))
	assert.Equal(t, 2, phraseMatches([]string{"a", "b"}, pos))
	assert.Equal(t, 0, phraseMatches([]string{"c", "a"}, pos))
}

func TestMissingDocumentsAreOmitted(t *testing.T) {
	f := catDog()
	delete(f.docs, "d2")
	res, err := New(f, nil).Or(context.Background(), []string{"dog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
}

func TestOrFailsOpenOnUnavailableShard(t *testing.T) {
	f := catDog()
	f.downShards["c"] = true
	res, err := New(f, nil).Or(context.Background(), []string{"cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "d1"}, res.DocIDs())
	assert.Equal(t, []string{"c"}, res.DegradedShards)
	assert.Equal(t, []string{"dog"}, res.FoundTerms)

	res, err = New(f, nil).Or(context.Background(), []string{"cat", "cow"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTermsNotFound, res.Outcome)
	assert.Equal(t, []string{"c"}, res.DegradedShards)
}

func TestAndPhraseAndCompositeFailClosed(t *testing.T) {
	f := catDog()
	f.downShards["c"] = true
	e := New(f, nil)

	_, err := e.And(context.Background(), []string{"cat", "dog"})
	assert.ErrorIs(t, err, apperrors.ErrBackingStoreUnavailable)

	_, err = e.Phrase(context.Background(), []string{"dog", "cat"})
	assert.ErrorIs(t, err, apperrors.ErrBackingStoreUnavailable)

	_, err = e.Evaluate(context.Background(), &query.And{Children: []query.Expr{
		&query.Term{Value: "dog"},
		&query.Phrase{Terms: []string{"cat", "dog"}},
	}})
	assert.ErrorIs(t, err, apperrors.ErrBackingStoreUnavailable)
}

func TestContentFailureFailsClosed(t *testing.T) {
	f := catDog()
	f.contentDown = true
	_, err := New(f, nil).Or(context.Background(), []string{"cat"})
	assert.ErrorIs(t, err, apperrors.ErrBackingStoreUnavailable)
}

func TestCancelledContextStopsEvaluation(t *testing.T) {
	f := catDog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(f, nil).Or(ctx, []string{"cat", "dog"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.lookups)
}

// Composite payloads are merged across conjuncts rather than taken from the
// conjunct evaluated last.
func TestCompositeAndMergesPayloads(t *testing.T) {
	f := newFakeIndex()
	f.add("python", "d1", 1, 9)
	f.add("python", "d2", 4)
	f.add("machine", "d1", 3)
	f.add("learning", "d1", 4)
	f.add("machine", "d3", 1)
	f.add("learning", "d3", 2)

	expr := &query.And{Children: []query.Expr{
		&query.Term{Value: "python"},
		&query.Phrase{Terms: []string{"machine", "learning"}},
	}}
	res, err := New(f, nil).Evaluate(context.Background(), expr)
	require.NoError(t, err)
	require.Equal(t, []string{"d1"}, res.DocIDs())

	hit := res.Results[0]
	assert.Equal(t, map[string]int{"python": 2, "machine": 1, "learning": 1}, hit.TermFrequencies)
	assert.Equal(t, []int{1, 9}, hit.TermPositions["python"])
	assert.Equal(t, []int{3}, hit.TermPositions["machine"])
	assert.Equal(t, 4, hit.TotalTF)
	require.NotNil(t, hit.PhraseMatches)
	assert.Equal(t, 1, *hit.PhraseMatches)
	assert.Equal(t, "title d1", hit.Title)
	assert.Equal(t, []string{"python", "machine", "learning"}, res.FoundTerms)
}

func TestCompositeAndNoCommonDocuments(t *testing.T) {
	f := newFakeIndex()
	f.add("python", "d2", 4)
	f.add("machine", "d1", 3)
	f.add("learning", "d1", 4)

	res, err := New(f, nil).Evaluate(context.Background(), &query.And{Children: []query.Expr{
		&query.Term{Value: "python"},
		&query.Phrase{Terms: []string{"machine", "learning"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCommonDocuments, res.Outcome)
	assert.Equal(t, "No documents contain all the terms: python, machine, learning", res.Message)
}

func TestCompositeAndPropagatesConjunctFailure(t *testing.T) {
	f := newFakeIndex()
	f.add("python", "d1", 1)

	res, err := New(f, nil).Evaluate(context.Background(), &query.And{Children: []query.Expr{
		&query.Term{Value: "python"},
		&query.Phrase{Terms: []string{"deep", "learning"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTermsNotFound, res.Outcome)
	assert.Equal(t, []string{"python"}, res.FoundTerms)
}

func TestCompositeOrUnion(t *testing.T) {
	f := newFakeIndex()
	f.add("python", "d2", 4)
	f.add("machine", "d1", 3)
	f.add("learning", "d1", 4)

	res, err := New(f, nil).Evaluate(context.Background(), &query.Or{Children: []query.Expr{
		&query.Term{Value: "python"},
		&query.Phrase{Terms: []string{"machine", "learning"}},
		&query.Term{Value: "zebra"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, res.DocIDs())
	assert.Equal(t, []string{"python", "machine", "learning"}, res.FoundTerms)
}

func TestAndNotExcludes(t *testing.T) {
	e := New(catDog(), nil)

	res, err := e.Evaluate(context.Background(), &query.AndNot{
		Left:  &query.Term{Value: "dog"},
		Right: &query.Term{Value: "cat"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, res.DocIDs())
	assert.Equal(t, []string{"dog"}, res.FoundTerms)

	res, err = e.Evaluate(context.Background(), &query.AndNot{
		Left:  &query.Term{Value: "cat"},
		Right: &query.Term{Value: "dog"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllExcluded, res.Outcome)

	res, err = e.Evaluate(context.Background(), &query.AndNot{
		Left:  &query.Term{Value: "cat"},
		Right: &query.Term{Value: "zebra"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
}

func TestEvaluateBuiltQuery(t *testing.T) {
	e := New(catDog(), nil)
	expr, err := query.Parse("cat dog")
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), expr)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, res.DocIDs())

	expr, err = query.Parse("(cat) AND (dog)")
	require.NoError(t, err)
	res, err = e.Evaluate(context.Background(), expr)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, res.DocIDs())
}

func TestEvaluateRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := New(catDog(), m)

	_, err := e.Evaluate(context.Background(), &query.And{Children: []query.Expr{&query.Term{Value: "cat"}, &query.Term{Value: "dog"}}})
	require.NoError(t, err)
	_, err = e.Phrase(context.Background(), []string{"zebra", "yak"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("and", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("phrase", "terms_not_found")))
}

func TestConcurrentEvaluation(t *testing.T) {
	e := New(catDog(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.And(context.Background(), []string{"cat", "dog"})
			assert.NoError(t, err)
			assert.Equal(t, []string{"d1"}, res.DocIDs())
		}()
	}
	wg.Wait()
}
