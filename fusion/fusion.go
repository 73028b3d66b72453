// Package fusion merges a semantic and a lexical ranked list into a single
// ranking. The strategies differ in how much they trust raw scores:
// Weighted and CombMNZ combine scores directly, RRF discards them and uses
// ranks only.
//
// Semantic scores are assumed cosine-style, already bounded in [-1, 1].
// Lexical scores are unbounded BM25 values and are normalized by the
// maximum score in the candidate set, which makes Weighted and CombMNZ
// fused scores comparable only within a single query.
package fusion

import (
	"sort"

	"github.com/fusego/fusego/index"
)

// DefaultRRFK is the rank smoothing constant used when none is given.
const DefaultRRFK = 60

// Ranked is a fused result. Index refers to the position of the item in the
// indexed corpus.
type Ranked struct {
	Index uint32  `json:"index"`
	Score float64 `json:"score"`
}

// Strategy merges two ranked candidate lists. Implementations must be safe
// for concurrent use.
type Strategy interface {
	// Fuse merges the semantic and lexical lists. The output is ordered by
	// descending score, ties broken by ascending index, and contains every
	// item that appears in at least one input list.
	Fuse(semantic, lexical []index.Candidate) []Ranked

	// Name returns a short identifier for logging and benchmark reports.
	Name() string
}

// Compile time checks.
var (
	_ Strategy = (*Weighted)(nil)
	_ Strategy = (*RRF)(nil)
	_ Strategy = (*CombMNZ)(nil)
)

// Weighted combines raw semantic scores and max-normalized lexical scores
// with fixed weights. An item missing from one list contributes nothing
// from that list.
type Weighted struct {
	SemanticWeight float64
	LexicalWeight  float64
}

// NewWeighted creates a weighted strategy. Negative weights are clamped to
// zero; if both end up zero the strategy falls back to an even split.
func NewWeighted(semantic, lexical float64) *Weighted {
	semantic = max(semantic, 0)
	lexical = max(lexical, 0)
	if semantic == 0 && lexical == 0 {
		semantic, lexical = 0.5, 0.5
	}

	return &Weighted{SemanticWeight: semantic, LexicalWeight: lexical}
}

// Fuse implements the Strategy interface.
func (w *Weighted) Fuse(semantic, lexical []index.Candidate) []Ranked {
	scores := make(map[uint32]float64, len(semantic)+len(lexical))
	for _, c := range semantic {
		scores[c.Index] += w.SemanticWeight * float64(c.Score)
	}

	for i, s := range maxNormalize(lexical) {
		scores[lexical[i].Index] += w.LexicalWeight * s
	}

	return sortRanked(scores)
}

// Name implements the Strategy interface.
func (w *Weighted) Name() string {
	return "weighted"
}

// RRF is reciprocal rank fusion. Each list contributes 1/(k+rank) per item,
// with rank starting at 1; items absent from a list contribute 0 from it.
// Raw scores are ignored, which makes the strategy robust against
// incomparable score scales.
type RRF struct {
	K int
}

// NewRRF creates an RRF strategy. A non-positive k falls back to DefaultRRFK.
func NewRRF(k int) *RRF {
	if k <= 0 {
		k = DefaultRRFK
	}

	return &RRF{K: k}
}

// Fuse implements the Strategy interface.
func (r *RRF) Fuse(semantic, lexical []index.Candidate) []Ranked {
	scores := make(map[uint32]float64, len(semantic)+len(lexical))
	for rank, c := range semantic {
		scores[c.Index] += 1.0 / float64(r.K+rank+1)
	}

	for rank, c := range lexical {
		scores[c.Index] += 1.0 / float64(r.K+rank+1)
	}

	return sortRanked(scores)
}

// Name implements the Strategy interface.
func (r *RRF) Name() string {
	return "rrf"
}

// CombMNZ sums raw semantic and max-normalized lexical scores, then
// multiplies by the number of lists the item appears in with a nonzero
// score, boosting items both retrievers agree on.
type CombMNZ struct{}

// Fuse implements the Strategy interface.
func (c *CombMNZ) Fuse(semantic, lexical []index.Candidate) []Ranked {
	sums := make(map[uint32]float64, len(semantic)+len(lexical))
	hits := make(map[uint32]int, len(semantic)+len(lexical))

	add := func(idx uint32, s float64) {
		if _, ok := sums[idx]; !ok {
			sums[idx] = 0
		}
		sums[idx] += s
		if s != 0 {
			hits[idx]++
		}
	}

	for _, cand := range semantic {
		add(cand.Index, float64(cand.Score))
	}

	for i, s := range maxNormalize(lexical) {
		add(lexical[i].Index, s)
	}

	scores := make(map[uint32]float64, len(sums))
	for idx, sum := range sums {
		scores[idx] = sum * float64(hits[idx])
	}

	return sortRanked(scores)
}

// Name implements the Strategy interface.
func (c *CombMNZ) Name() string {
	return "combmnz"
}

// maxNormalize divides every score by the maximum score in the list. An
// all-zero list contributes 0 uniformly instead of dividing by zero.
func maxNormalize(candidates []index.Candidate) []float64 {
	out := make([]float64, len(candidates))

	var hi float32
	for _, c := range candidates {
		hi = max(hi, c.Score)
	}
	if hi == 0 {
		return out
	}

	for i, c := range candidates {
		out[i] = float64(c.Score) / float64(hi)
	}

	return out
}

// sortRanked flattens the score map into the canonical order: descending
// score, ascending index on ties.
func sortRanked(scores map[uint32]float64) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for idx, s := range scores {
		out = append(out, Ranked{Index: idx, Score: s})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}

		return out[i].Index < out[j].Index
	})

	return out
}
