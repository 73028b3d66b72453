// Package kmeans implements Lloyd's algorithm for training IVF partition
// centroids.
package kmeans

import (
	"math"
	"math/rand"

	"github.com/fusego/fusego/distance"
)

// Train trains k centroids from the given vectors. Vectors are flattened
// row-major (n * dim). It returns the flattened centroids (k * dim).
// A fixed seed makes training deterministic. If fewer than k vectors are
// available the centroid count is reduced to n.
func Train(vectors []float32, dim, k, maxIter int, seed int64) []float32 {
	n := len(vectors) / dim
	if k > n {
		k = n
	}
	if k == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic clustering, not crypto

	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// Assignment step
		for i := 0; i < n; i++ {
			vec := vectors[i*dim : (i+1)*dim]
			best := Assign(vec, centroids, dim)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		// Update step
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := vectors[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += vec[d]
			}
			counts[c]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * scale
				}
			} else {
				// Re-seed an empty cluster from a deterministic point.
				idx := rng.Intn(n)
				copy(centroids[j*dim:(j+1)*dim], vectors[idx*dim:(idx+1)*dim])
			}
		}
	}

	return centroids
}

// Assign returns the index of the closest centroid (squared L2).
func Assign(vec, centroids []float32, dim int) int {
	k := len(centroids) / dim
	best := -1
	minDist := float32(math.MaxFloat32)
	for j := 0; j < k; j++ {
		d := distance.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < minDist {
			minDist = d
			best = j
		}
	}
	return best
}

// Nearest returns up to nprobe centroid indexes ordered by ascending
// distance to vec.
func Nearest(vec, centroids []float32, dim, nprobe int) []int {
	k := len(centroids) / dim
	if nprobe > k {
		nprobe = k
	}

	type cd struct {
		idx  int
		dist float32
	}
	all := make([]cd, k)
	for j := 0; j < k; j++ {
		all[j] = cd{idx: j, dist: distance.SquaredL2(vec, centroids[j*dim:(j+1)*dim])}
	}
	// Selection by partial sort; k (nlist) is small relative to corpus size.
	for i := 0; i < nprobe; i++ {
		best := i
		for j := i + 1; j < k; j++ {
			if all[j].dist < all[best].dist || (all[j].dist == all[best].dist && all[j].idx < all[best].idx) {
				best = j
			}
		}
		all[i], all[best] = all[best], all[i]
	}

	out := make([]int, nprobe)
	for i := 0; i < nprobe; i++ {
		out[i] = all[i].idx
	}
	return out
}
