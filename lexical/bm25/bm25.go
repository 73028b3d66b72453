// Package bm25 provides the sparse lexical retrieval path: an in-memory
// BM25 inverted index built once from a frozen corpus snapshot.
package bm25

import (
	"math"
	"strings"
	"unicode"

	"github.com/fusego/fusego/index"
)

// Conventional BM25 defaults.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Options contains configuration options for the BM25 index.
type Options struct {
	// K1 controls term-frequency saturation.
	K1 float64

	// B controls document-length normalization.
	B float64
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	K1: DefaultK1,
	B:  DefaultB,
}

type posting struct {
	doc uint32 // position in the corpus
	tf  uint32 // term frequency in that document
}

// Index is a frozen BM25 inverted index. It is immutable after New and
// safe for unlimited concurrent queries.
type Index struct {
	inverted   map[string][]posting
	docLengths []int
	avgDocLen  float64
	opts       Options
}

// Tokenize lowercases text and splits it on non-alphanumeric boundaries,
// dropping empty tokens. Both corpus documents and queries go through the
// same tokenizer.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// New builds an index over the document texts. Document position in docs is
// the identifier reported in candidates.
func New(docs []string, optFns ...func(o *Options)) *Index {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	idx := &Index{
		inverted:   make(map[string][]posting),
		docLengths: make([]int, len(docs)),
		opts:       opts,
	}

	var totalLen int64
	for i, text := range docs {
		tokens := Tokenize(text)
		idx.docLengths[i] = len(tokens)
		totalLen += int64(len(tokens))

		tf := make(map[string]uint32, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t, count := range tf {
			idx.inverted[t] = append(idx.inverted[t], posting{doc: uint32(i), tf: count})
		}
	}

	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	return idx
}

// Query scores the given tokens against the corpus and returns up to topK
// candidates ordered by descending score, ties broken by ascending document
// position. Documents with zero term overlap are absent from the result,
// not scored as zero. An empty or all-unknown token list yields an empty
// list, not an error.
func (idx *Index) Query(tokens []string, topK int) []index.Candidate {
	if topK <= 0 || len(tokens) == 0 || len(idx.docLengths) == 0 {
		return nil
	}

	scores := make(map[uint32]float64)
	for _, t := range tokens {
		postings, ok := idx.inverted[t]
		if !ok {
			continue
		}

		idf := idx.idf(len(postings))
		for _, p := range postings {
			tf := float64(p.tf)
			docLen := float64(idx.docLengths[p.doc])

			num := tf * (idx.opts.K1 + 1)
			denom := tf + idx.opts.K1*(1-idx.opts.B+idx.opts.B*(docLen/idx.avgDocLen))
			scores[p.doc] += idf * (num / denom)
		}
	}

	if len(scores) == 0 {
		return nil
	}

	candidates := make([]index.Candidate, 0, len(scores))
	for doc, score := range scores {
		candidates = append(candidates, index.Candidate{Index: doc, Score: float32(score)})
	}
	index.SortCandidates(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// QueryText tokenizes text and runs Query.
func (idx *Index) QueryText(text string, topK int) []index.Candidate {
	return idx.Query(Tokenize(text), topK)
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docLengths)
}

// idf computes log(1 + (N - n + 0.5) / (n + 0.5)).
func (idx *Index) idf(df int) float64 {
	N := float64(len(idx.docLengths))
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}
