package bm25

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"neural", "networks", "learn"}, Tokenize("Neural Networks learn"))
	assert.Equal(t, []string{"foo", "bar", "42"}, Tokenize("foo-bar...42!"))
	assert.Empty(t, Tokenize("...---..."))
	assert.Empty(t, Tokenize(""))
}

func TestQueryBasic(t *testing.T) {
	idx := New([]string{
		"the quick brown fox",
		"jumped over the lazy dog",
		"quick brown dogs",
		"fox and dog",
	})
	assert.Equal(t, 4, idx.Len())

	got := idx.QueryText("fox", 10)
	require.Len(t, got, 2)
	found := map[uint32]bool{}
	for _, c := range got {
		found[c.Index] = true
		assert.Greater(t, c.Score, float32(0))
	}
	assert.True(t, found[0])
	assert.True(t, found[3])
}

func TestSparseSemantics(t *testing.T) {
	idx := New([]string{"alpha beta", "gamma delta"})

	// Zero-overlap documents are absent, not zero-scored.
	got := idx.QueryText("alpha", 10)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(0), got[0].Index)
}

func TestEmptyQuery(t *testing.T) {
	idx := New([]string{"some text", "other text"})

	assert.Empty(t, idx.QueryText("", 10))
	assert.Empty(t, idx.QueryText("???", 10))
	assert.Empty(t, idx.QueryText("unknownterm", 10))
	assert.Empty(t, idx.Query(nil, 10))
}

func TestOrderingAndTruncation(t *testing.T) {
	idx := New([]string{
		"apple apple apple",
		"apple banana",
		"apple",
		"banana",
	})

	got := idx.QueryText("apple", 2)
	require.Len(t, got, 2)
	// Highest raw term frequency wins; length normalization keeps the
	// single-term doc competitive but repetition dominates here.
	assert.Equal(t, uint32(0), got[0].Index)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestTieBreakAscendingPosition(t *testing.T) {
	// Identical documents produce identical scores.
	idx := New([]string{"same text", "same text", "same text"})

	got := idx.QueryText("same", 10)
	require.Len(t, got, 3)
	assert.Equal(t, uint32(0), got[0].Index)
	assert.Equal(t, uint32(1), got[1].Index)
	assert.Equal(t, uint32(2), got[2].Index)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestLengthNormalization(t *testing.T) {
	long := "target " + strings.Repeat("filler ", 50)
	idx := New([]string{"target", long})

	got := idx.QueryText("target", 10)
	require.Len(t, got, 2)
	// Same tf, but the shorter document scores higher.
	assert.Equal(t, uint32(0), got[0].Index)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestCustomParameters(t *testing.T) {
	docs := []string{"word word word word", "word"}

	// With b=0 there is no length normalization; higher tf wins outright.
	idx := New(docs, func(o *Options) { o.B = 0 })
	got := idx.QueryText("word", 10)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(0), got[0].Index)
}

func TestEmptyCorpus(t *testing.T) {
	idx := New(nil)
	assert.Empty(t, idx.QueryText("anything", 10))
}
