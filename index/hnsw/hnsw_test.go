package hnsw

import (
	"context"
	"testing"

	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/index/flat"
	"github.com/fusego/fusego/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	h := New()

	vectors := testutil.RandomUnitVectors(500, 16, 42)
	require.NoError(t, h.Build(ctx, vectors))
	assert.Equal(t, 500, h.Len())
	assert.Equal(t, 16, h.Dimensions())

	// Querying with an indexed vector must return it first.
	got, err := h.Query(ctx, vectors[123], 10, index.SearchParams{})
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, uint32(123), got[0].Index)
	assert.InDelta(t, 1.0, got[0].Score, 1e-5)
}

func TestRecallAgainstExact(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.RandomUnitVectors(1000, 24, 1)
	queries := testutil.RandomUnitVectors(20, 24, 2)

	exact := flat.New()
	require.NoError(t, exact.Build(ctx, vectors))

	h := New(func(o *Options) {
		o.M = 16
		o.EFConstruction = 200
	})
	require.NoError(t, h.Build(ctx, vectors))

	const k = 10
	var hits, total int
	for _, q := range queries {
		truth, err := exact.Query(ctx, q, k, index.SearchParams{})
		require.NoError(t, err)
		got, err := h.Query(ctx, q, k, index.SearchParams{EFSearch: 200})
		require.NoError(t, err)

		truthSet := map[uint32]bool{}
		for _, c := range truth {
			truthSet[c.Index] = true
		}
		for _, c := range got {
			if truthSet[c.Index] {
				hits++
			}
		}
		total += k
	}

	recall := float64(hits) / float64(total)
	assert.Greater(t, recall, 0.8, "recall@10 too low: %f", recall)
}

func TestDeterministicBuildWithSeed(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.RandomUnitVectors(300, 12, 3)
	q := testutil.RandomUnitVectors(1, 12, 4)[0]

	build := func() []index.Candidate {
		h := New(func(o *Options) { o.Seed = 99 })
		require.NoError(t, h.Build(ctx, vectors))
		got, err := h.Query(ctx, q, 10, index.SearchParams{EFSearch: 50})
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, build(), build())
}

func TestEFSearchIsPerCall(t *testing.T) {
	ctx := context.Background()
	h := New()
	require.NoError(t, h.Build(ctx, testutil.RandomUnitVectors(400, 16, 5)))

	q := testutil.RandomUnitVectors(1, 16, 6)[0]

	// Different per-call depths must both work against the same instance;
	// no rebuild, no shared mutable state.
	shallow, err := h.Query(ctx, q, 5, index.SearchParams{EFSearch: 5})
	require.NoError(t, err)
	deep, err := h.Query(ctx, q, 5, index.SearchParams{EFSearch: 400})
	require.NoError(t, err)
	assert.Len(t, shallow, 5)
	assert.Len(t, deep, 5)

	// And the same depth twice is reproducible.
	again, err := h.Query(ctx, q, 5, index.SearchParams{EFSearch: 400})
	require.NoError(t, err)
	assert.Equal(t, deep, again)
}

func TestConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	h := New()
	vectors := testutil.RandomUnitVectors(300, 16, 7)
	require.NoError(t, h.Build(ctx, vectors))

	queries := testutil.RandomUnitVectors(50, 16, 8)
	done := make(chan error, len(queries))
	for _, q := range queries {
		go func(q []float32) {
			_, err := h.Query(ctx, q, 10, index.SearchParams{EFSearch: 64})
			done <- err
		}(q)
	}
	for range queries {
		require.NoError(t, <-done)
	}
}

func TestLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	h := New()

	_, err := h.Query(ctx, []float32{1, 0}, 1, index.SearchParams{})
	assert.ErrorIs(t, err, index.ErrNotBuilt)

	require.NoError(t, h.Build(ctx, [][]float32{{1, 0}, {0, 1}}))
	assert.ErrorIs(t, h.Build(ctx, [][]float32{{1, 0}}), index.ErrAlreadyBuilt)

	_, err = h.Query(ctx, []float32{1, 0}, 0, index.SearchParams{})
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = h.Query(ctx, []float32{1, 0, 0}, 1, index.SearchParams{})
	var dm *index.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	_, err = h.Query(ctx, []float32{1, 0}, 1, index.SearchParams{EFSearch: -1})
	var sp *index.ErrInvalidSearchParam
	assert.ErrorAs(t, err, &sp)

	assert.ErrorIs(t, New().Build(ctx, nil), index.ErrEmptyBuild)
}

func TestSmallMCoerced(t *testing.T) {
	ctx := context.Background()
	h := New(func(o *Options) { o.M = 1 })
	require.NoError(t, h.Build(ctx, testutil.RandomUnitVectors(50, 8, 9)))

	got, err := h.Query(ctx, testutil.RandomUnitVectors(1, 8, 10)[0], 5, index.SearchParams{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestMemoryEstimate(t *testing.T) {
	ctx := context.Background()
	h := New()
	require.NoError(t, h.Build(ctx, testutil.RandomUnitVectors(100, 8, 11)))

	// At least the raw vector table.
	assert.GreaterOrEqual(t, h.MemoryEstimate(), int64(100*8*4))
}
