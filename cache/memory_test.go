package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestKeySeparatesModels(t *testing.T) {
	assert.NotEqual(t, Key("model-a", "text"), Key("model-b", "text"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Equal(t, Key("m", "t"), Key("m", "t"))
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1, 0, 3.5}

	got, ok := DecodeVector(EncodeVector(vec))
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = DecodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}
