// Package index provides the contract and shared types for vector search
// indexes.
//
// All indexes follow the same lifecycle: a one-shot Build over a frozen,
// position-aligned vector table, then unlimited concurrent read-only
// queries. Query-time tuning knobs travel in SearchParams on every call;
// indexes hold no mutable query state.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotBuilt is returned when an index is queried before Build completed.
	ErrNotBuilt = errors.New("index not built")

	// ErrAlreadyBuilt is returned when Build is called a second time, or while
	// another Build is in flight. Indexes are build-once; a new corpus version
	// requires a new index instance.
	ErrAlreadyBuilt = errors.New("index already built")

	// ErrEmptyBuild is returned when Build is called with no vectors.
	ErrEmptyBuild = errors.New("build requires at least one vector")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidSearchParam indicates an out-of-range query-time parameter.
type ErrInvalidSearchParam struct {
	Param  string
	Value  int
	Reason string
}

func (e *ErrInvalidSearchParam) Error() string {
	return fmt.Sprintf("invalid search param %s=%d: %s", e.Param, e.Value, e.Reason)
}

// Candidate is a scored match. Index is the position in the vector table
// handed to Build; Score is the inner product against the query (higher is
// better). Scores from different retrieval paths are not comparable without
// normalization.
type Candidate struct {
	Index uint32
	Score float32
}

// SearchParams carries per-call query-time parameters for approximate
// variants. The zero value selects each variant's defaults. Passing params
// per call (instead of mutating index fields) is what keeps built indexes
// safe for unlimited concurrent reads.
type SearchParams struct {
	// EFSearch is the HNSW dynamic candidate list size. Larger values trade
	// latency for recall. Ignored by other variants.
	EFSearch int

	// NProbe is the number of IVF partitions probed per query. Must be >= 1
	// when set. Ignored by other variants.
	NProbe int
}

// Index is a build-once, read-many vector index over unit-normalized
// vectors, scored by inner product.
//
// Vectors must be pre-normalized by the caller; the index does not
// renormalize. A zero query vector yields a defined but meaningless
// ranking, not an error.
type Index interface {
	// Build indexes the vector table. It may be called exactly once per
	// instance; later or concurrent calls fail with ErrAlreadyBuilt.
	Build(ctx context.Context, vectors [][]float32) error

	// Query returns the top k candidates ordered by descending score,
	// ties broken by ascending index.
	Query(ctx context.Context, q []float32, k int, params SearchParams) ([]Candidate, error)

	// Name identifies the variant ("flat", "hnsw", "ivf").
	Name() string

	// Len returns the number of indexed vectors (0 before Build).
	Len() int

	// Dimensions returns the vector dimensionality (0 before Build).
	Dimensions() int

	// MemoryEstimate returns the approximate resident size in bytes.
	MemoryEstimate() int64
}

// SortCandidates orders candidates canonically: score descending, ties
// broken by ascending index. Every index variant and the lexical path use
// this ordering so fused output is deterministic.
func SortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Index < cs[j].Index
	})
}
