package persistence

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/fusego/fusego/blobstore"
	"github.com/fusego/fusego/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Documents: []model.Document{
			{ID: "a", Text: "the quick brown fox", Metadata: map[string]string{"lang": "en"}},
			{ID: "b", Text: "jumps over the lazy dog"},
			{ID: "c", Text: "pack my box with five dozen liquor jugs"},
		},
		Vectors: [][]float32{
			{0.1, 0.2, 0.3, 0.4},
			{-1, 0, 1, 0.5},
			{0, 0, 0, 1},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		snap := testSnapshot()

		data, err := snap.Encode(compression)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, snap.Documents, got.Documents)
		assert.Equal(t, snap.Vectors, got.Vectors)
	}
}

func TestEmptySnapshot(t *testing.T) {
	snap := &Snapshot{}

	data, err := snap.Encode(CompressionZSTD)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, got.Documents)
	assert.Empty(t, got.Vectors)
}

func TestEncodeValidation(t *testing.T) {
	_, err := (&Snapshot{
		Documents: []model.Document{{ID: "a"}},
		Vectors:   nil,
	}).Encode(CompressionNone)
	assert.Error(t, err)

	_, err = (&Snapshot{
		Documents: []model.Document{{ID: "a"}, {ID: "b"}},
		Vectors:   [][]float32{{1, 2}, {1, 2, 3}},
	}).Encode(CompressionNone)
	assert.Error(t, err)
}

func TestDecodeCorruption(t *testing.T) {
	data, err := testSnapshot().Encode(CompressionLZ4)
	require.NoError(t, err)

	// Truncated blob.
	_, err = Decode(data[:10])
	assert.ErrorIs(t, err, ErrCorrupt)

	// Flipped payload byte breaks the checksum.
	flipped := append([]byte(nil), data...)
	flipped[headerSize+1] ^= 0xFF
	_, err = Decode(flipped)
	assert.ErrorIs(t, err, ErrCorrupt)

	// Bad magic, checksum recomputed so only the magic check fires.
	bad := append([]byte(nil), data...)
	bad[0] = 'X'
	bad = rechecksum(bad)
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCorrupt)

	// Future version.
	ver := append([]byte(nil), data...)
	ver[4] = 99
	ver = rechecksum(ver)
	_, err = Decode(ver)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func rechecksum(data []byte) []byte {
	body := data[:len(data)-trailerSize]

	out := append([]byte(nil), body...)

	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	snap := testSnapshot()

	require.NoError(t, Save(ctx, store, "snapshots/engine", snap, CompressionZSTD))

	got, err := Load(ctx, store, "snapshots/engine")
	require.NoError(t, err)
	assert.Equal(t, snap.Documents, got.Documents)

	_, err = Load(ctx, store, "snapshots/missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
