// Package ivf provides the partition-based approximate variant: an
// inverted-file index that clusters vectors with k-means at build time and
// scans only the nprobe closest partitions per query.
package ivf

import (
	"context"
	"sync/atomic"

	"github.com/fusego/fusego/distance"
	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/internal/kmeans"
)

// Compile-time check to ensure Index satisfies the index contract.
var _ index.Index = (*Index)(nil)

// DefaultNProbe is the number of partitions probed when SearchParams
// leaves NProbe unset.
const DefaultNProbe = 8

// Options represents the build-time options for the IVF index.
type Options struct {
	// NLists is the number of k-means partitions. Effective partition
	// count is capped at the corpus size.
	NLists int

	// MaxIter bounds the k-means training iterations.
	MaxIter int

	// Seed drives centroid initialization. A fixed seed makes the build
	// deterministic for a given vector table.
	Seed int64
}

// DefaultOptions contains the default build-time options.
var DefaultOptions = Options{
	NLists:  100,
	MaxIter: 25,
	Seed:    1,
}

// Index is the IVF index. The zero value is unbuilt; use New.
type Index struct {
	building atomic.Bool
	built    atomic.Bool

	opts Options

	// Immutable after Build.
	data      []float32 // row-major vector table
	centroids []float32 // nlists * dim
	lists     [][]uint32
	dim       int
	n         int
}

// New creates an unbuilt IVF index.
func New(optFns ...func(o *Options)) *Index {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.NLists < 1 {
		opts.NLists = 1
	}
	if opts.MaxIter < 1 {
		opts.MaxIter = 1
	}

	return &Index{opts: opts}
}

// Name implements index.Index.
func (*Index) Name() string { return "ivf" }

// Build trains the partitions and assigns every vector. One-shot; a
// second or concurrent call fails with index.ErrAlreadyBuilt.
func (iv *Index) Build(ctx context.Context, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return index.ErrEmptyBuild
	}
	if !iv.building.CompareAndSwap(false, true) {
		return index.ErrAlreadyBuilt
	}

	dim := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dim)
	for _, v := range vectors {
		if len(v) != dim {
			iv.building.Store(false)
			return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		data = append(data, v...)
	}

	centroids := kmeans.Train(data, dim, iv.opts.NLists, iv.opts.MaxIter, iv.opts.Seed)
	nlists := len(centroids) / dim

	lists := make([][]uint32, nlists)
	for i := 0; i < len(vectors); i++ {
		c := kmeans.Assign(data[i*dim:(i+1)*dim], centroids, dim)
		lists[c] = append(lists[c], uint32(i))
	}

	iv.data = data
	iv.centroids = centroids
	iv.lists = lists
	iv.dim = dim
	iv.n = len(vectors)
	iv.built.Store(true)
	return nil
}

// Query scans the params.NProbe partitions closest to q. NProbe defaults
// to DefaultNProbe; zero or negative explicit values are invalid.
func (iv *Index) Query(ctx context.Context, q []float32, k int, params index.SearchParams) ([]index.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !iv.built.Load() {
		return nil, index.ErrNotBuilt
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != iv.dim {
		return nil, &index.ErrDimensionMismatch{Expected: iv.dim, Actual: len(q)}
	}

	nprobe := params.NProbe
	if nprobe == 0 {
		nprobe = DefaultNProbe
	}
	if nprobe < 1 {
		return nil, &index.ErrInvalidSearchParam{Param: "nprobe", Value: params.NProbe, Reason: "must be >= 1"}
	}

	if k > iv.n {
		k = iv.n
	}
	top := index.NewTopK(k)
	for _, list := range kmeans.Nearest(q, iv.centroids, iv.dim, nprobe) {
		for _, id := range iv.lists[list] {
			row := iv.data[int(id)*iv.dim : (int(id)+1)*iv.dim]
			top.Offer(index.Candidate{Index: id, Score: distance.Dot(q, row)})
		}
	}
	return top.Results(), nil
}

// Len implements index.Index.
func (iv *Index) Len() int {
	if !iv.built.Load() {
		return 0
	}
	return iv.n
}

// Dimensions implements index.Index.
func (iv *Index) Dimensions() int {
	if !iv.built.Load() {
		return 0
	}
	return iv.dim
}

// MemoryEstimate implements index.Index.
func (iv *Index) MemoryEstimate() int64 {
	est := int64(len(iv.data)) * 4
	est += int64(len(iv.centroids)) * 4
	for _, list := range iv.lists {
		est += int64(len(list)) * 4
	}
	return est
}
