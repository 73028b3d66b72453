// Package fusego provides an embedded hybrid retrieval engine for Go.
//
// Fusego indexes a frozen document corpus twice: a BM25 inverted index over
// the raw text and a vector index over embeddings. Queries run both
// retrievers in parallel and merge the rankings with a pluggable fusion
// strategy (weighted score combination, reciprocal rank fusion, or CombMNZ).
//
// # Quick Start
//
//	ctx := context.Background()
//	engine, _ := fusego.New(embedder)
//	_ = engine.Index(ctx, docs)
//
//	results, _ := engine.Search(ctx, "how do goroutines work", 10)
//	for _, r := range results {
//	    fmt.Println(r.Document.ID, r.Score)
//	}
//
// # Tuning a Search
//
// Per-call options select the fusion strategy, restrict results by
// metadata, and tune the vector probe without affecting concurrent
// searches:
//
//	results, _ := engine.Search(ctx, query, 10, func(o *fusego.SearchOptions) {
//	    o.Strategy = fusion.NewRRF(60)
//	    o.Filter = map[string]string{"lang": "en"}
//	    o.Params = index.SearchParams{EFSearch: 200}
//	})
//
// # Index Variants
//
// The vector side defaults to HNSW; exact flat search and IVF are
// available for small corpora and recall/latency trade-off studies:
//
//	engine, _ := fusego.New(embedder, fusego.WithVectorIndex(flat.New()))
//
// The bench subpackage measures recall against exact ground truth and
// latency percentiles across parameter grids.
//
// # Lifecycle
//
// A corpus is indexed exactly once. After Index succeeds the engine is
// read-only and safe for concurrent searches. Engines persist to a
// blobstore.Store (local disk, S3, MinIO) and restore with Load.
package fusego
