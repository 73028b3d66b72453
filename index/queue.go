package index

import "container/heap"

// Compile time check to ensure TopK satisfies the heap interface.
var _ heap.Interface = (*TopK)(nil)

// TopK is a bounded collector for the k best candidates. Internally a
// min-heap keyed by score, so the current worst candidate sits on top and
// is evicted first. Among equal scores the larger index is treated as
// worse, matching the canonical ordering.
type TopK struct {
	k     int
	items []Candidate
}

// NewTopK creates a collector that retains the k highest-scoring candidates.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make([]Candidate, 0, k)}
}

func (t *TopK) Len() int { return len(t.items) }

func (t *TopK) Less(i, j int) bool {
	if t.items[i].Score != t.items[j].Score {
		return t.items[i].Score < t.items[j].Score
	}
	return t.items[i].Index > t.items[j].Index
}

func (t *TopK) Swap(i, j int) { t.items[i], t.items[j] = t.items[j], t.items[i] }

func (t *TopK) Push(x any) { t.items = append(t.items, x.(Candidate)) }

func (t *TopK) Pop() any {
	old := t.items
	n := len(old)
	item := old[n-1]
	t.items = old[:n-1]
	return item
}

// Offer adds a candidate, evicting the current worst when full.
func (t *TopK) Offer(c Candidate) {
	if len(t.items) < t.k {
		heap.Push(t, c)
		return
	}
	worst := t.items[0]
	if c.Score > worst.Score || (c.Score == worst.Score && c.Index < worst.Index) {
		t.items[0] = c
		heap.Fix(t, 0)
	}
}

// Results drains the collector into canonical order (score descending,
// index ascending). The collector is empty afterwards.
func (t *TopK) Results() []Candidate {
	out := make([]Candidate, len(t.items))
	for i := len(t.items) - 1; i >= 0; i-- {
		out[i] = heap.Pop(t).(Candidate)
	}
	return out
}
