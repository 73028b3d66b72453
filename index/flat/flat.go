// Package flat provides the exact, brute-force inner-product index.
// It scans every stored vector per query (O(N*D)) and serves as the
// ground truth for the approximate variants.
package flat

import (
	"context"
	"sync/atomic"

	"github.com/fusego/fusego/distance"
	"github.com/fusego/fusego/index"
)

// Compile-time check to ensure Index satisfies the index contract.
var _ index.Index = (*Index)(nil)

// Index is the exact flat index. The zero value is unbuilt; use New.
type Index struct {
	building atomic.Bool
	built    atomic.Bool

	// Immutable after Build.
	data []float32 // row-major, len = count*dim
	dim  int
	n    int
}

// New creates an unbuilt flat index.
func New() *Index {
	return &Index{}
}

// Name implements index.Index.
func (*Index) Name() string { return "flat" }

// Build stores the vector table row-major. One-shot; a second or
// concurrent call fails with index.ErrAlreadyBuilt.
func (f *Index) Build(ctx context.Context, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return index.ErrEmptyBuild
	}
	if !f.building.CompareAndSwap(false, true) {
		return index.ErrAlreadyBuilt
	}

	dim := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dim)
	for _, v := range vectors {
		if len(v) != dim {
			f.building.Store(false)
			return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		data = append(data, v...)
	}

	f.data = data
	f.dim = dim
	f.n = len(vectors)
	f.built.Store(true)
	return nil
}

// Query performs the exact scan. SearchParams is accepted for interface
// symmetry and ignored.
func (f *Index) Query(ctx context.Context, q []float32, k int, _ index.SearchParams) ([]index.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.built.Load() {
		return nil, index.ErrNotBuilt
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != f.dim {
		return nil, &index.ErrDimensionMismatch{Expected: f.dim, Actual: len(q)}
	}

	if k > f.n {
		k = f.n
	}
	top := index.NewTopK(k)
	for i := 0; i < f.n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		top.Offer(index.Candidate{Index: uint32(i), Score: distance.Dot(q, row)})
	}
	return top.Results(), nil
}

// Len implements index.Index.
func (f *Index) Len() int {
	if !f.built.Load() {
		return 0
	}
	return f.n
}

// Dimensions implements index.Index.
func (f *Index) Dimensions() int {
	if !f.built.Load() {
		return 0
	}
	return f.dim
}

// MemoryEstimate implements index.Index.
func (f *Index) MemoryEstimate() int64 {
	return int64(len(f.data)) * 4
}
