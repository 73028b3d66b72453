package flat

import (
	"context"
	"testing"

	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	f := New()

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
		{0, 0, 1},
	}
	require.NoError(t, f.Build(ctx, vectors))
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, 3, f.Dimensions())

	got, err := f.Query(ctx, []float32{1, 0, 0}, 2, index.SearchParams{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(0), got[0].Index)
	assert.Equal(t, uint32(2), got[1].Index)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestBuildTwiceRejected(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Build(ctx, [][]float32{{1, 0}}))

	err := f.Build(ctx, [][]float32{{0, 1}})
	assert.ErrorIs(t, err, index.ErrAlreadyBuilt)
}

func TestQueryBeforeBuild(t *testing.T) {
	f := New()
	_, err := f.Query(context.Background(), []float32{1, 0}, 1, index.SearchParams{})
	assert.ErrorIs(t, err, index.ErrNotBuilt)
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Build(ctx, [][]float32{{1, 0}, {0, 1}}))

	_, err := f.Query(ctx, []float32{1, 0}, 0, index.SearchParams{})
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = f.Query(ctx, []float32{1, 0, 0}, 1, index.SearchParams{})
	var dm *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	err = New().Build(ctx, nil)
	assert.ErrorIs(t, err, index.ErrEmptyBuild)
}

func TestKLargerThanCorpus(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Build(ctx, [][]float32{{1, 0}, {0, 1}}))

	got, err := f.Query(ctx, []float32{1, 0}, 100, index.SearchParams{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestZeroQueryVectorIsTotal(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Build(ctx, [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}))

	// All scores are 0; ordering falls back to ascending index.
	got, err := f.Query(ctx, []float32{0, 0}, 3, index.SearchParams{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint32(0), got[0].Index)
	assert.Equal(t, uint32(1), got[1].Index)
	assert.Equal(t, uint32(2), got[2].Index)
}

func TestTieBreakAscendingIndex(t *testing.T) {
	ctx := context.Background()
	f := New()
	// Duplicate vectors produce identical scores.
	require.NoError(t, f.Build(ctx, [][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}}))

	got, err := f.Query(ctx, []float32{1, 0}, 3, index.SearchParams{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint32(1), got[0].Index)
	assert.Equal(t, uint32(2), got[1].Index)
	assert.Equal(t, uint32(3), got[2].Index)
}

func TestDeterministicAcrossCalls(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Build(ctx, testutil.RandomUnitVectors(200, 16, 42)))

	q := testutil.RandomUnitVectors(1, 16, 7)[0]
	first, err := f.Query(ctx, q, 10, index.SearchParams{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.Query(ctx, q, 10, index.SearchParams{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
