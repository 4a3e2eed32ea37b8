package shard

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/termshard/internal/indexer/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	cases := map[string]string{
		"cat":    "c",
		"zebra":  "z",
		"42nd":   "4",
		"0day":   "0",
		"":       Overflow,
		"Cat":    Overflow,
		"-dash":  Overflow,
		"éclair": Overflow,
		"_under": Overflow,
	}
	for term, want := range cases {
		assert.Equal(t, want, ID(term), term)
	}
}

func TestAllIsTotalAndUnique(t *testing.T) {
	ids := All()
	require.Len(t, ids, Count)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], id)
		seen[id] = true
		assert.True(t, Valid(id))
		assert.NoError(t, Validate(id))
	}
	assert.False(t, Valid("ab"))
	assert.False(t, Valid("A"))
	assert.Error(t, Validate(""))
}

func TestEveryByteMapsToExactlyOnePartition(t *testing.T) {
	for b := 0; b < 256; b++ {
		term := string([]byte{byte(b), 'x'})
		id := ID(term)
		assert.True(t, Valid(id))
		assert.Equal(t, id, ID(term), "deterministic")
		if id != Overflow {
			assert.Equal(t, term[:1], id)
		}
	}
}

func TestPartitionIsDeterministic(t *testing.T) {
	entries := []index.TermEntry{
		{Term: "dog"}, {Term: "cat"}, {Term: "car"}, {Term: "9lives"}, {Term: "Über"},
	}
	first := Partition(entries)
	second := Partition([]index.TermEntry{entries[4], entries[3], entries[2], entries[1], entries[0]})
	assert.Equal(t, first, second)

	assert.Len(t, first, Count)
	assert.Equal(t, []index.TermEntry{{Term: "car"}, {Term: "cat"}}, first["c"])
	assert.Equal(t, []index.TermEntry{{Term: "9lives"}}, first["9"])
	assert.Equal(t, []index.TermEntry{{Term: "Über"}}, first[Overflow])
	assert.Empty(t, first["x"])
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "postings_a", TableName("a"))
	assert.Equal(t, "postings_7", TableName("7"))
	assert.Equal(t, "postings_overflow", TableName(Overflow))
}
