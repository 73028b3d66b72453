package hnsw

import (
	"container/heap"
	"sort"
)

// pqItem is a graph node with its distance to the current query.
type pqItem struct {
	node uint32
	dist float32
}

// pqueue implements heap.Interface over pqItems. Value-based storage, no
// pointer indirection.
type pqueue struct {
	max   bool // true: farthest on top (result eviction), false: closest on top (exploration)
	items []pqItem
}

// Compile time check to ensure pqueue satisfies the heap interface.
var _ heap.Interface = (*pqueue)(nil)

func newQueue(max bool) *pqueue {
	return &pqueue{max: max}
}

func (pq *pqueue) Len() int { return len(pq.items) }

func (pq *pqueue) Less(i, j int) bool {
	if pq.max {
		return pq.items[i].dist > pq.items[j].dist
	}
	return pq.items[i].dist < pq.items[j].dist
}

func (pq *pqueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *pqueue) Push(x any) { pq.items = append(pq.items, x.(pqItem)) }

func (pq *pqueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// top returns the root without removing it. Callers must check Len first.
func (pq *pqueue) top() pqItem { return pq.items[0] }

// sortItems orders items ascending by distance, ties by node id for
// deterministic pruning.
func sortItems(items []pqItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].node < items[j].node
	})
}
