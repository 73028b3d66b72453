package fusego

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fusego/fusego/blobstore"
	"github.com/fusego/fusego/cache"
	"github.com/fusego/fusego/fusion"
	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/index/flat"
	"github.com/fusego/fusego/index/ivf"
	"github.com/fusego/fusego/model"
	"github.com/fusego/fusego/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus() []model.Document {
	return []model.Document{
		{ID: "go", Text: "golang is a compiled language with goroutines and channels", Metadata: map[string]string{"topic": "programming", "lang": "en"}},
		{ID: "py", Text: "python is an interpreted language popular for machine learning", Metadata: map[string]string{"topic": "programming", "lang": "en"}},
		{ID: "espresso", Text: "espresso is brewed by forcing hot water through ground coffee", Metadata: map[string]string{"topic": "coffee", "lang": "en"}},
		{ID: "filter", Text: "filter coffee extracts slowly through a paper cone", Metadata: map[string]string{"topic": "coffee", "lang": "en"}},
		{ID: "tee", Text: "gruener tee wird bei niedriger temperatur aufgebrueht", Metadata: map[string]string{"topic": "tea", "lang": "de"}},
	}
}

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()

	e, err := New(&testutil.FakeEmbedder{Dim: 32}, optFns...)
	require.NoError(t, err)

	return e
}

func TestSearchBeforeIndex(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), "coffee", 3)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestIndexOnlyOnce(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	require.NoError(t, e.Index(ctx, testCorpus()))
	assert.ErrorIs(t, e.Index(ctx, testCorpus()), ErrAlreadyIndexed)
}

func TestIndexEmptyCorpus(t *testing.T) {
	e := newTestEngine(t)

	var ip *ErrInvalidParameter
	require.ErrorAs(t, e.Index(context.Background(), nil), &ip)
	assert.Equal(t, "documents", ip.Param)
}

func TestIndexRetryAfterEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	emb := &testutil.FakeEmbedder{Dim: 32, Err: errors.New("provider down")}

	e, err := New(emb)
	require.NoError(t, err)

	err = e.Index(ctx, testCorpus())
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	// A failed build leaves the engine unindexed and retryable.
	emb.Err = nil
	require.NoError(t, e.Index(ctx, testCorpus()))
	assert.Equal(t, len(testCorpus()), e.Len())
}

type zeroEmbedder struct {
	testutil.FakeEmbedder
	zeroText string
}

func (z *zeroEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == z.zeroText {
		return make([]float32, z.Dim), nil
	}
	return z.FakeEmbedder.Embed(ctx, text)
}

func TestIndexZeroNormEmbedding(t *testing.T) {
	ctx := context.Background()
	emb := &zeroEmbedder{
		FakeEmbedder: testutil.FakeEmbedder{Dim: 32},
		zeroText:     testCorpus()[2].Text,
	}

	e, err := New(emb)
	require.NoError(t, err)

	// A degenerate all-zero vector cannot be normalized and is reported
	// as an embedder failure, not a dimension mismatch.
	err = e.Index(ctx, testCorpus())
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "zero-norm")

	emb.zeroText = ""
	require.NoError(t, e.Index(ctx, testCorpus()))
}

func TestHybridSearch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	results, err := e.Search(ctx, "hot coffee brewed with water", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Lexical and semantic evidence both point at the espresso doc.
	assert.Equal(t, "espresso", results[0].Document.ID)

	for i := 1; i < len(results); i++ {
		if results[i-1].Score == results[i].Score {
			assert.Less(t, results[i-1].Index, results[i].Index)
		} else {
			assert.Greater(t, results[i-1].Score, results[i].Score)
		}
	}
}

func TestNeuralCorpusRanking(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	require.NoError(t, e.Index(ctx, []model.Document{
		{ID: "nn", Text: "neural networks learn"},
		{ID: "pydata", Text: "python for data science"},
		{ID: "dl", Text: "deep learning and neural nets"},
		{ID: "pasta", Text: "cooking pasta recipes"},
		{ID: "tf", Text: "transformers power modern AI"},
	}))

	results, err := e.Search(ctx, "neural networks", 3, func(o *SearchOptions) {
		o.Strategy = fusion.NewWeighted(0.7, 0.3)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	rank := make(map[string]int, len(results))
	for i, r := range results {
		rank[r.Document.ID] = i
	}

	// Both neural docs outrank the data-science doc; the pasta doc
	// never makes the cut.
	assert.Zero(t, rank["nn"])
	dl, ok := rank["dl"]
	require.True(t, ok)
	if py, ok := rank["pydata"]; ok {
		assert.Less(t, dl, py)
	}
	assert.NotContains(t, rank, "pasta")

	// A filter no document satisfies yields an empty list, not an error.
	results, err = e.Search(ctx, "neural networks", 3, func(o *SearchOptions) {
		o.Filter = map[string]string{"category": "AI"}
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchInvalidK(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	var ip *ErrInvalidParameter
	_, err := e.Search(ctx, "coffee", 0)
	require.ErrorAs(t, err, &ip)
	assert.Equal(t, "k", ip.Param)
}

func TestSearchKLargerThanCorpus(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	results, err := e.Search(ctx, "language", 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), len(testCorpus()))
	assert.NotEmpty(t, results)
}

func TestMetadataFilter(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	results, err := e.Search(ctx, "language", 5, func(o *SearchOptions) {
		o.Filter = map[string]string{"topic": "programming"}
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "programming", r.Document.Metadata["topic"])
	}

	// Multiple pairs intersect.
	results, err = e.Search(ctx, "tee", 5, func(o *SearchOptions) {
		o.Filter = map[string]string{"topic": "tea", "lang": "de"}
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tee", results[0].Document.ID)

	// A pair no document carries matches nothing.
	results, err = e.Search(ctx, "language", 5, func(o *SearchOptions) {
		o.Filter = map[string]string{"topic": "cooking"}
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOversamplingNeverShrinksFilteredResults(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	// Under a restrictive filter, raising the candidate multiplier can
	// only surface more matching documents, never fewer.
	prev := -1
	for _, factor := range []int{1, 2, 5, 20} {
		results, err := e.Search(ctx, "language", 2, func(o *SearchOptions) {
			o.Filter = map[string]string{"topic": "coffee"}
			o.Oversampling = factor
		})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(results), prev, "factor %d", factor)
		for _, r := range results {
			assert.Equal(t, "coffee", r.Document.Metadata["topic"])
		}
		prev = len(results)
	}

	// A wide enough net finds every document the filter admits.
	results, err := e.Search(ctx, "language", 5, func(o *SearchOptions) {
		o.Filter = map[string]string{"topic": "coffee"}
		o.Oversampling = 20
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFilterPreservesFusedOrder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	all, err := e.Search(ctx, "coffee language", 5)
	require.NoError(t, err)

	filtered, err := e.Search(ctx, "coffee language", 5, func(o *SearchOptions) {
		o.Filter = map[string]string{"topic": "coffee"}
	})
	require.NoError(t, err)

	// The filtered ranking is the unfiltered ranking minus non-matches.
	var want []string
	for _, r := range all {
		if r.Document.Metadata["topic"] == "coffee" {
			want = append(want, r.Document.ID)
		}
	}

	var got []string
	for _, r := range filtered {
		got = append(got, r.Document.ID)
	}

	assert.Equal(t, want, got)
}

func TestFusionStrategies(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	for _, strategy := range []fusion.Strategy{
		fusion.NewWeighted(0.5, 0.5),
		fusion.NewRRF(0),
		&fusion.CombMNZ{},
	} {
		results, err := e.Search(ctx, "hot coffee brewed with water", 3, func(o *SearchOptions) {
			o.Strategy = strategy
		})
		require.NoError(t, err, strategy.Name())
		assert.NotEmpty(t, results, strategy.Name())
	}
}

func TestPerCallSearchParams(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithVectorIndex(ivf.New(func(o *ivf.Options) { o.NLists = 2 })))
	require.NoError(t, e.Index(ctx, testCorpus()))

	_, err := e.Search(ctx, "coffee", 3, func(o *SearchOptions) {
		o.Params = index.SearchParams{NProbe: 2}
	})
	require.NoError(t, err)

	var ip *ErrInvalidParameter
	_, err = e.Search(ctx, "coffee", 3, func(o *SearchOptions) {
		o.Params = index.SearchParams{NProbe: -1}
	})
	require.ErrorAs(t, err, &ip)
	assert.Equal(t, "nprobe", ip.Param)
}

func TestEmbeddingCacheReuse(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()

	first := &BasicMetricsCollector{}
	e1, err := New(&testutil.FakeEmbedder{Dim: 32},
		WithEmbeddingCache(store, time.Hour),
		WithMetricsCollector(first))
	require.NoError(t, err)
	require.NoError(t, e1.Index(ctx, testCorpus()))
	assert.Zero(t, first.GetStats().EmbedCacheHits)

	// A second engine over the same corpus hits the shared cache.
	second := &BasicMetricsCollector{}
	e2, err := New(&testutil.FakeEmbedder{Dim: 32},
		WithEmbeddingCache(store, time.Hour),
		WithMetricsCollector(second))
	require.NoError(t, err)
	require.NoError(t, e2.Index(ctx, testCorpus()))
	assert.Equal(t, int64(len(testCorpus())), second.GetStats().EmbedCacheHits)
}

func TestDeterministicResults(t *testing.T) {
	ctx := context.Background()

	run := func() []Result {
		e := newTestEngine(t)
		require.NoError(t, e.Index(ctx, testCorpus()))

		results, err := e.Search(ctx, "interpreted language", 5)
		require.NoError(t, err)

		return results
	}

	assert.Equal(t, run(), run())
}

func TestConcurrentSearches(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Index(ctx, testCorpus()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for range 50 {
				results, err := e.Search(ctx, "coffee", 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, results)
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	e := newTestEngine(t, WithVectorIndex(flat.New()))
	require.NoError(t, e.Index(ctx, testCorpus()))

	assert.ErrorIs(t, newTestEngine(t).Snapshot(ctx, store, "snap"), ErrNotIndexed)
	require.NoError(t, e.Snapshot(ctx, store, "snap"))

	restored, err := Load(ctx, store, "snap", &testutil.FakeEmbedder{Dim: 32}, WithVectorIndex(flat.New()))
	require.NoError(t, err)
	assert.Equal(t, e.Len(), restored.Len())

	want, err := e.Search(ctx, "hot coffee brewed with water", 3)
	require.NoError(t, err)
	got, err := restored.Search(ctx, "hot coffee brewed with water", 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(ctx, store, "missing", &testutil.FakeEmbedder{Dim: 32})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestNewRequiresEmbedder(t *testing.T) {
	_, err := New(nil)

	var ip *ErrInvalidParameter
	assert.ErrorAs(t, err, &ip)
}
