package fusego

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fusego/fusego/blobstore"
	"github.com/fusego/fusego/cache"
	"github.com/fusego/fusego/distance"
	"github.com/fusego/fusego/fusion"
	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/index/hnsw"
	"github.com/fusego/fusego/lexical/bm25"
	"github.com/fusego/fusego/model"
	"github.com/fusego/fusego/persistence"
	"golang.org/x/sync/errgroup"
)

// Result is a single hybrid search hit.
type Result struct {
	// Index is the position of the document in the indexed corpus.
	Index uint32 `json:"index"`

	// Score is the fused score. Comparable only within one response.
	Score float64 `json:"score"`

	Document model.Document `json:"document"`
}

// SearchOptions represents the per-call options for Search.
type SearchOptions struct {
	// Strategy selects how the semantic and lexical rankings merge.
	// Defaults to weighted fusion with DefaultSemanticWeight.
	Strategy fusion.Strategy

	// Filter restricts results to documents whose metadata contains
	// every given key/value pair. An empty map matches everything.
	Filter map[string]string

	// Oversampling overrides the engine-level candidate multiplier for
	// this call. Zero keeps the engine default.
	Oversampling int

	// Params tunes the vector index probe for this call without
	// affecting concurrent searches.
	Params index.SearchParams
}

// Engine is a hybrid retrieval engine over a frozen document corpus. The
// corpus is indexed exactly once; afterwards the engine is safe for
// concurrent searches.
type Engine struct {
	embedder model.Embedder
	opts     options

	building atomic.Bool
	built    atomic.Bool

	docs    []model.Document
	vectors [][]float32
	vector  index.Index
	lexical *bm25.Index
	labels  map[string]*roaring.Bitmap
}

// New creates a new Engine. The embedder is required; everything else has
// defaults.
func New(embedder model.Embedder, optFns ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, &ErrInvalidParameter{Param: "embedder", Reason: "must not be nil"}
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		embedder: embedder,
		opts:     opts,
	}, nil
}

// Index embeds and indexes the document corpus. It can only succeed once;
// concurrent and repeated calls return ErrAlreadyIndexed. On failure the
// engine stays unindexed and Index may be retried.
func (e *Engine) Index(ctx context.Context, docs []model.Document) error {
	start := time.Now()

	cacheHits, err := e.doIndex(ctx, docs)
	e.opts.metrics.RecordIndex(len(docs), time.Since(start), err)
	e.opts.logger.LogIndex(ctx, len(docs), cacheHits, time.Since(start), err)

	return translateError(err)
}

func (e *Engine) doIndex(ctx context.Context, docs []model.Document) (int, error) {
	if len(docs) == 0 {
		return 0, &ErrInvalidParameter{Param: "documents", Reason: "must not be empty"}
	}
	if !e.building.CompareAndSwap(false, true) {
		return 0, index.ErrAlreadyBuilt
	}

	vectors := make([][]float32, len(docs))
	var hits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.embedConcurrency)
	for i := range docs {
		g.Go(func() error {
			vec, hit, err := e.embed(gctx, docs[i].Text)
			if err != nil {
				return err
			}
			if hit {
				hits.Add(1)
			}
			vectors[i] = vec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.building.Store(false)

		return int(hits.Load()), err
	}

	if err := e.buildFrom(ctx, docs, vectors); err != nil {
		e.building.Store(false)

		return int(hits.Load()), err
	}

	return int(hits.Load()), nil
}

// buildFrom builds all index structures from an already embedded corpus.
// Caller holds the building flag.
func (e *Engine) buildFrom(ctx context.Context, docs []model.Document, vectors [][]float32) error {
	vidx := e.opts.vectorIndex
	if vidx == nil {
		vidx = hnsw.New()
	}

	if err := vidx.Build(ctx, vectors); err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	labels := make(map[string]*roaring.Bitmap)
	for i, doc := range docs {
		for k, v := range doc.Metadata {
			key := labelKey(k, v)
			bm, ok := labels[key]
			if !ok {
				bm = roaring.New()
				labels[key] = bm
			}
			bm.Add(uint32(i))
		}
	}

	e.docs = docs
	e.vectors = vectors
	e.vector = vidx
	e.lexical = bm25.New(texts, e.opts.bm25Options...)
	e.labels = labels
	e.built.Store(true)

	return nil
}

// embed resolves a text to a unit vector, consulting the embedding cache
// first. Only actual embedder calls count against the rate limit.
func (e *Engine) embed(ctx context.Context, text string) (vec []float32, cacheHit bool, err error) {
	start := time.Now()
	defer func() {
		e.opts.metrics.RecordEmbed(cacheHit, time.Since(start), err)
	}()

	key := ""
	if e.opts.cache != nil {
		key = cache.Key(e.embedder.Model(), text)
		if b, ok := e.opts.cache.Get(ctx, key); ok {
			if cached, ok := cache.DecodeVector(b); ok && len(cached) == e.embedder.Dimensions() {
				return cached, true, nil
			}
		}
	}

	if e.opts.embedLimiter != nil {
		if err := e.opts.embedLimiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	raw, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	if len(raw) != e.embedder.Dimensions() {
		return nil, false, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingUnavailable, len(raw), e.embedder.Dimensions())
	}

	// Unit vectors let the dot product stand in for cosine similarity.
	vec, ok := distance.NormalizeL2Copy(raw)
	if !ok {
		return nil, false, fmt.Errorf("%w: model %q returned a zero-norm embedding", ErrEmbeddingUnavailable, e.embedder.Model())
	}

	if e.opts.cache != nil {
		if err := e.opts.cache.Set(ctx, key, cache.EncodeVector(vec), e.opts.cacheTTL); err != nil {
			e.opts.logger.LogCacheSetFailure(ctx, err)
		}
	}

	return vec, false, nil
}

// Search runs a hybrid query: semantic and lexical retrieval in parallel,
// fused, filtered, and truncated to k. Results come back in descending
// fused score order, ties broken by ascending corpus index.
func (e *Engine) Search(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) ([]Result, error) {
	start := time.Now()

	sopts := SearchOptions{}
	for _, fn := range optFns {
		fn(&sopts)
	}
	if sopts.Strategy == nil {
		sopts.Strategy = fusion.NewWeighted(DefaultSemanticWeight, DefaultLexicalWeight)
	}

	results, err := e.doSearch(ctx, query, k, sopts)
	e.opts.metrics.RecordSearch(k, sopts.Strategy.Name(), time.Since(start), err)
	e.opts.logger.LogSearch(ctx, k, len(results), sopts.Strategy.Name(), err)

	return results, translateError(err)
}

func (e *Engine) doSearch(ctx context.Context, query string, k int, sopts SearchOptions) ([]Result, error) {
	if !e.built.Load() {
		return nil, index.ErrNotBuilt
	}
	if k < 1 {
		return nil, index.ErrInvalidK
	}

	oversampling := sopts.Oversampling
	if oversampling < 1 {
		oversampling = e.opts.oversampling
	}

	fetch := k * oversampling
	if fetch > len(e.docs) {
		fetch = len(e.docs)
	}

	qvec, _, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var semantic, lexical []index.Candidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semantic, err = e.vector.Query(gctx, qvec, fetch, sopts.Params)

		return err
	})
	g.Go(func() error {
		lexical = e.lexical.QueryText(query, fetch)

		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := sopts.Strategy.Fuse(semantic, lexical)

	var allowed *roaring.Bitmap
	if len(sopts.Filter) > 0 {
		allowed = e.filterBitmap(sopts.Filter)
	}

	results := make([]Result, 0, k)
	for _, r := range fused {
		if allowed != nil && !allowed.Contains(r.Index) {
			continue
		}

		results = append(results, Result{
			Index:    r.Index,
			Score:    r.Score,
			Document: e.docs[r.Index],
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// filterBitmap intersects the label bitmaps for every filter pair. A pair
// no document carries yields an empty bitmap.
func (e *Engine) filterBitmap(filter map[string]string) *roaring.Bitmap {
	allowed := roaring.New()

	first := true
	for k, v := range filter {
		bm, ok := e.labels[labelKey(k, v)]
		if !ok {
			return roaring.New()
		}

		if first {
			allowed.Or(bm)
			first = false
		} else {
			allowed.And(bm)
		}
	}

	return allowed
}

// Snapshot persists the corpus and embedding table to the blob store.
// Index structures are not written; Load rebuilds them from the table
// with whatever build options the caller configures.
func (e *Engine) Snapshot(ctx context.Context, store blobstore.Store, name string) error {
	start := time.Now()

	err := e.doSnapshot(ctx, store, name)
	e.opts.metrics.RecordSnapshot("save", time.Since(start), err)
	e.opts.logger.LogSnapshot(ctx, "save", name, err)

	return translateError(err)
}

func (e *Engine) doSnapshot(ctx context.Context, store blobstore.Store, name string) error {
	if !e.built.Load() {
		return index.ErrNotBuilt
	}

	snap := &persistence.Snapshot{
		Documents: e.docs,
		Vectors:   e.vectors,
	}

	return persistence.Save(ctx, store, name, snap, e.opts.compression)
}

// Load restores an engine from a snapshot, rebuilding the vector and
// lexical indexes from the persisted table. The snapshot does not record
// build options: pass the same WithVectorIndex (and the same embedder)
// the snapshot was created with to reproduce identical results.
func Load(ctx context.Context, store blobstore.Store, name string, embedder model.Embedder, optFns ...Option) (*Engine, error) {
	start := time.Now()

	e, err := doLoad(ctx, store, name, embedder, optFns...)

	var metrics MetricsCollector = NoopMetricsCollector{}
	logger := NoopLogger()
	if e != nil {
		metrics = e.opts.metrics
		logger = e.opts.logger
	}
	metrics.RecordSnapshot("load", time.Since(start), err)
	logger.LogSnapshot(ctx, "load", name, err)

	return e, translateError(err)
}

func doLoad(ctx context.Context, store blobstore.Store, name string, embedder model.Embedder, optFns ...Option) (*Engine, error) {
	e, err := New(embedder, optFns...)
	if err != nil {
		return nil, err
	}

	snap, err := persistence.Load(ctx, store, name)
	if err != nil {
		return e, err
	}

	e.building.Store(true)
	if err := e.buildFrom(ctx, snap.Documents, snap.Vectors); err != nil {
		e.building.Store(false)

		return e, err
	}

	return e, nil
}

// Len returns the number of indexed documents, zero before Index.
func (e *Engine) Len() int {
	if !e.built.Load() {
		return 0
	}

	return len(e.docs)
}

// Dimensions returns the embedding dimensionality.
func (e *Engine) Dimensions() int {
	return e.embedder.Dimensions()
}

func labelKey(k, v string) string {
	return k + "\x00" + v
}
