package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthroughKeepsTermsVerbatim(t *testing.T) {
	assert.Equal(t, []string{"cat", "dog", "cat"}, Passthrough{}.Terms("cat  dog\tcat\n"))
	assert.Empty(t, Passthrough{}.Terms("   "))
}

func TestStandardNormalizes(t *testing.T) {
	terms := Standard{}.Terms("The Cats were RUNNING, and a dog-house!")
	assert.Equal(t, []string{"cat", "runn", "dog", "house"}, terms)
}

func TestStandardFoldsInflections(t *testing.T) {
	first := Standard{}.Terms("quick brown foxes jumped")
	again := Standard{}.Terms("quick brown fox jump")
	assert.Equal(t, first, again)
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"relational": "relate",
		"ponies":     "pony",
		"class":      "class",
		"cats":       "cat",
		"is":         "is",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestNew(t *testing.T) {
	n, err := New("passthrough")
	require.NoError(t, err)
	assert.Equal(t, "passthrough", n.Name())

	n, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "standard", n.Name())

	_, err = New("snowball")
	assert.Error(t, err)
	assert.True(t, IsStopWord("the"))
}
