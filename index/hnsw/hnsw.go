// Package hnsw provides the graph-based approximate variant: a
// Hierarchical Navigable Small World index over unit vectors, scored by
// inner product.
//
// Build-time shape (M, EFConstruction, Seed) is fixed per instance; the
// query-time search depth (efSearch) is a per-call parameter so a built
// graph can serve concurrent readers with different recall/latency
// trade-offs.
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"github.com/fusego/fusego/distance"
	"github.com/fusego/fusego/index"
)

// Compile-time check to ensure Index satisfies the index contract.
var _ index.Index = (*Index)(nil)

// DefaultEFSearch is the query-time candidate list size used when
// SearchParams leaves EFSearch unset.
const DefaultEFSearch = 100

// Options represents the build-time options for the HNSW graph.
type Options struct {
	// M is the number of established connections per element during
	// construction. The range 12-48 works for most use cases; higher
	// intrinsic dimensionality wants higher M.
	M int

	// EFConstruction is the size of the dynamic candidate list during
	// build. Larger values improve graph quality at build-time cost.
	EFConstruction int

	// Heuristic selects the neighbor-diversity heuristic instead of the
	// naive closest-M selection.
	Heuristic bool

	// Seed drives level generation. A fixed seed makes the build
	// deterministic for a given vector table.
	Seed int64
}

// DefaultOptions contains the default build-time options.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	Heuristic:      true,
	Seed:           1,
}

type node struct {
	connections [][]uint32
	layer       int
}

// Index is the HNSW graph index. The zero value is unbuilt; use New.
type Index struct {
	building atomic.Bool
	built    atomic.Bool

	opts  Options
	mmax  int     // max connections per node per layer
	mmax0 int     // max for layer 0
	ml    float64 // level generation normalization factor

	// Immutable after Build.
	vectors  [][]float32
	nodes    []node
	ep       uint32
	maxLevel int
	dim      int
}

// New creates an unbuilt HNSW index.
func New(optFns ...func(o *Options)) *Index {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would divide by zero in the level normalization factor.
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}

	return &Index{
		opts:  opts,
		mmax:  opts.M,
		mmax0: 2 * opts.M,
		ml:    1 / math.Log(float64(opts.M)),
	}
}

// Name implements index.Index.
func (*Index) Name() string { return "hnsw" }

// Build constructs the graph by sequential insertion. One-shot; a second
// or concurrent call fails with index.ErrAlreadyBuilt.
func (h *Index) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return index.ErrEmptyBuild
	}
	if !h.building.CompareAndSwap(false, true) {
		return index.ErrAlreadyBuilt
	}

	dim := len(vectors[0])
	rng := rand.New(rand.NewSource(h.opts.Seed)) //nolint:gosec // deterministic build, not crypto

	h.dim = dim
	h.vectors = make([][]float32, 0, len(vectors))
	h.nodes = make([]node, 0, len(vectors))

	for i, v := range vectors {
		if err := ctx.Err(); err != nil {
			h.reset()
			return err
		}
		if len(v) != dim {
			h.reset()
			return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		h.insert(uint32(i), v, rng)
	}

	h.built.Store(true)
	return nil
}

func (h *Index) reset() {
	h.vectors = nil
	h.nodes = nil
	h.ep = 0
	h.maxLevel = 0
	h.building.Store(false)
}

func (h *Index) dist(a, b []float32) float32 {
	return distance.CosineDistance(a, b)
}

// insert adds vector v as node id. Callers guarantee ids are dense and
// ascending (Build's loop).
func (h *Index) insert(id uint32, v []float32, rng *rand.Rand) {
	layer := int(math.Floor(-math.Log(rng.Float64()) * h.ml))

	n := node{
		layer:       layer,
		connections: make([][]uint32, layer+1),
	}
	h.vectors = append(h.vectors, v)

	if len(h.nodes) == 0 {
		// First node becomes the entry point.
		h.nodes = append(h.nodes, n)
		h.ep = id
		h.maxLevel = layer
		return
	}

	// Greedy descent through layers above the new node's top layer.
	curr := h.ep
	currDist := h.dist(h.vectors[curr], v)
	for level := h.maxLevel; level > layer; level-- {
		curr, currDist = h.greedyStep(v, curr, currDist, level)
	}

	// Link on every shared layer from the top down.
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		candidates := h.searchLayer(v, curr, currDist, h.opts.EFConstruction, level)

		maxConns := h.mmax
		if level == 0 {
			maxConns = h.mmax0
		}
		neighbors := h.selectNeighbors(v, candidates, h.opts.M)
		n.connections[level] = neighbors

		for _, nb := range neighbors {
			h.link(nb, id, level, maxConns)
		}

		// Restart the next layer's search from the best neighbor found.
		if len(neighbors) > 0 {
			curr = neighbors[0]
			currDist = h.dist(h.vectors[curr], v)
		}
	}

	h.nodes = append(h.nodes, n)

	if layer > h.maxLevel {
		h.ep = id
		h.maxLevel = layer
	}
}

// greedyStep walks level connections until no closer node remains.
func (h *Index) greedyStep(q []float32, curr uint32, currDist float32, level int) (uint32, float32) {
	for changed := true; changed; {
		changed = false
		conns := h.connectionsAt(curr, level)
		for _, nb := range conns {
			d := h.dist(h.vectors[nb], q)
			if d < currDist {
				curr, currDist = nb, d
				changed = true
			}
		}
	}
	return curr, currDist
}

func (h *Index) connectionsAt(id uint32, level int) []uint32 {
	n := h.nodes[id]
	if level >= len(n.connections) {
		return nil
	}
	return n.connections[level]
}

// searchLayer performs the beam search on one layer, returning up to ef
// candidates ordered ascending by distance.
func (h *Index) searchLayer(q []float32, entry uint32, entryDist float32, ef int, level int) []pqItem {
	var visited bitset.BitSet
	visited.Set(uint(entry))

	candidates := newQueue(false) // min-heap: explore closest first
	results := newQueue(true)     // max-heap: evict farthest when over ef

	start := pqItem{node: entry, dist: entryDist}
	heap.Push(candidates, start)
	heap.Push(results, start)

	for candidates.Len() > 0 {
		curr := heap.Pop(candidates).(pqItem)
		if curr.dist > results.top().dist {
			break
		}

		for _, nb := range h.connectionsAt(curr.node, level) {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			d := h.dist(q, h.vectors[nb])
			item := pqItem{node: nb, dist: d}

			if results.Len() < ef {
				heap.Push(results, item)
				heap.Push(candidates, item)
			} else if d < results.top().dist {
				heap.Pop(results)
				heap.Push(results, item)
				heap.Push(candidates, item)
			}
		}
	}

	out := make([]pqItem, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(pqItem)
	}
	return out
}

// selectNeighbors picks up to m connection targets from candidates
// (ascending by distance).
func (h *Index) selectNeighbors(q []float32, candidates []pqItem, m int) []uint32 {
	if !h.opts.Heuristic || len(candidates) <= m {
		if len(candidates) > m {
			candidates = candidates[:m]
		}
		out := make([]uint32, len(candidates))
		for i, c := range candidates {
			out[i] = c.node
		}
		return out
	}

	// Diversity heuristic: keep a candidate only if it is closer to the
	// query than to every neighbor already selected.
	selected := make([]uint32, 0, m)
	parked := make([]uint32, 0, len(candidates))
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if h.dist(h.vectors[c.node], h.vectors[s]) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.node)
		} else {
			parked = append(parked, c.node)
		}
	}
	for _, p := range parked {
		if len(selected) >= m {
			break
		}
		selected = append(selected, p)
	}
	return selected
}

// link adds a back-edge from nb to id on the given level, pruning to
// maxConns with the configured selection policy.
func (h *Index) link(nb, id uint32, level, maxConns int) {
	n := &h.nodes[nb]
	for len(n.connections) <= level {
		n.connections = append(n.connections, nil)
	}
	n.connections[level] = append(n.connections[level], id)
	if len(n.connections[level]) <= maxConns {
		return
	}

	items := make([]pqItem, 0, len(n.connections[level]))
	for _, c := range n.connections[level] {
		items = append(items, pqItem{node: c, dist: h.dist(h.vectors[nb], h.vectors[c])})
	}
	sortItems(items)
	n.connections[level] = h.selectNeighbors(h.vectors[nb], items, maxConns)
}

// Query performs a k-nearest search. params.EFSearch defaults to
// max(k, DefaultEFSearch).
func (h *Index) Query(ctx context.Context, q []float32, k int, params index.SearchParams) ([]index.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.built.Load() {
		return nil, index.ErrNotBuilt
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != h.dim {
		return nil, &index.ErrDimensionMismatch{Expected: h.dim, Actual: len(q)}
	}
	if params.EFSearch < 0 {
		return nil, &index.ErrInvalidSearchParam{Param: "efSearch", Value: params.EFSearch, Reason: "must be >= 0"}
	}

	ef := params.EFSearch
	if ef == 0 {
		ef = DefaultEFSearch
	}
	if ef < k {
		ef = k
	}

	// Descend to layer 0 from the entry point.
	curr := h.ep
	currDist := h.dist(h.vectors[curr], q)
	for level := h.maxLevel; level > 0; level-- {
		curr, currDist = h.greedyStep(q, curr, currDist, level)
	}

	found := h.searchLayer(q, curr, currDist, ef, 0)

	if k > len(found) {
		k = len(found)
	}
	out := make([]index.Candidate, 0, k)
	for _, item := range found {
		out = append(out, index.Candidate{Index: item.node, Score: 1 - item.dist})
	}
	index.SortCandidates(out)
	return out[:k], nil
}

// Len implements index.Index.
func (h *Index) Len() int {
	if !h.built.Load() {
		return 0
	}
	return len(h.nodes)
}

// Dimensions implements index.Index.
func (h *Index) Dimensions() int {
	if !h.built.Load() {
		return 0
	}
	return h.dim
}

// MemoryEstimate implements index.Index.
func (h *Index) MemoryEstimate() int64 {
	var est int64
	est += int64(len(h.vectors)) * int64(h.dim) * 4
	for i := range h.nodes {
		for _, conns := range h.nodes[i].connections {
			est += int64(len(conns)) * 4
		}
	}
	return est
}
