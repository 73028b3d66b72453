// Package cache defines the embedding cache used to avoid recomputing
// vectors for text the engine has already embedded.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"
)

// Store is a byte-oriented cache keyed by embedding identity. A miss is
// never an error; implementations backed by remote systems must degrade
// unavailability to a miss on Get and a no-op on Set where possible.
// Returned slices must be treated as read-only.
type Store interface {
	// Get returns a cached value. ok=false if missing.
	Get(ctx context.Context, key string) (b []byte, ok bool)

	// Set caches a value. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, b []byte, ttl time.Duration) error
}

// Key derives a stable cache key from the embedding model identifier and
// the input text. The separator byte keeps (model, text) pairs from
// colliding across models.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))

	return hex.EncodeToString(h.Sum(nil))
}

// EncodeVector serializes an embedding for storage. Little-endian IEEE 754
// keeps the format portable across processes.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}

	return b
}

// DecodeVector deserializes an embedding. ok=false if the payload length
// is not a multiple of four bytes.
func DecodeVector(b []byte) (vec []float32, ok bool) {
	if len(b)%4 != 0 {
		return nil, false
	}

	vec = make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}

	return vec, true
}
