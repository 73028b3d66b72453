// Package testutil provides deterministic test fixtures: seeded random
// unit vectors and a fake embedder that needs no external model.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/fusego/fusego/distance"
	"github.com/fusego/fusego/lexical/bm25"
)

// RandomUnitVectors generates num unit-normalized vectors of the given
// dimensionality from a seeded source. The same seed always yields the
// same vectors.
func RandomUnitVectors(num, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))

	vectors := make([][]float32, num)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		if !distance.NormalizeL2InPlace(v) {
			v[0] = 1 // NormFloat64 yielding an all-zero vector is practically unreachable
		}
		vectors[i] = v
	}
	return vectors
}

// FakeEmbedder is a deterministic model.Embedder for tests. It hashes each
// token into a dimension bucket and L2-normalizes the result, so texts
// sharing tokens get correlated vectors without any external model.
type FakeEmbedder struct {
	// Dim is the output dimensionality (required, > 0).
	Dim int

	// Err, when set, is returned by every Embed call. Used to exercise
	// embedding-failure paths.
	Err error
}

// Embed implements model.Embedder.
func (e *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}

	v := make([]float32, e.Dim)
	for _, token := range bm25.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[int(h.Sum32())%e.Dim] += 1
	}
	if !distance.NormalizeL2InPlace(v) {
		// No tokens at all; return a fixed unit vector to keep Embed total.
		v[0] = 1
	}
	return v, nil
}

// Dimensions implements model.Embedder.
func (e *FakeEmbedder) Dimensions() int { return e.Dim }

// Model implements model.Embedder.
func (e *FakeEmbedder) Model() string { return fmt.Sprintf("fake-hash-%d", e.Dim) }
