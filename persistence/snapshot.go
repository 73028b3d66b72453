// Package persistence implements the binary snapshot format for engine
// state. A snapshot holds the document corpus and its embedding table
// only; index structures are not serialized. The loader rebuilds them
// from the table, and a seeded approximate index reproduces its original
// graph as long as the caller supplies the same build options it was
// saved with.
package persistence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/fusego/fusego/blobstore"
	"github.com/fusego/fusego/model"
)

const (
	// MagicNumber identifies snapshot blobs (ASCII: "FSG1").
	MagicNumber = 0x46534731
	// Version is the current snapshot format version.
	Version = 1

	headerSize  = 32
	trailerSize = 4 // CRC32
)

var (
	// ErrCorrupt is returned when a snapshot fails structural or checksum
	// validation.
	ErrCorrupt = errors.New("corrupt snapshot")

	// ErrInvalidVersion is returned for snapshots written by an
	// incompatible format version.
	ErrInvalidVersion = errors.New("unsupported snapshot version")
)

// Snapshot is the persisted engine state: one embedding per document, in
// corpus order.
type Snapshot struct {
	Documents []model.Document
	Vectors   [][]float32
}

// Encode serializes the snapshot. Layout:
//
//	[magic u32][version u32][compression u8, pad 3][dim u32][count u64]
//	[vecBlockLen u64][vector block][document block][crc32 u32]
//
// Both blocks use the self-describing compressed block format. The CRC
// covers everything before the trailer.
func (s *Snapshot) Encode(compression Compression) ([]byte, error) {
	if !compression.valid() {
		return nil, fmt.Errorf("unknown compression type %d", compression)
	}
	if len(s.Documents) != len(s.Vectors) {
		return nil, fmt.Errorf("document count %d does not match vector count %d", len(s.Documents), len(s.Vectors))
	}

	dim := 0
	if len(s.Vectors) > 0 {
		dim = len(s.Vectors[0])
	}

	raw := make([]byte, 0, len(s.Vectors)*dim*4)
	buf := make([]byte, 4)
	for i, vec := range s.Vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			raw = append(raw, buf...)
		}
	}

	vecBlock, err := compressBlock(raw, compression)
	if err != nil {
		return nil, err
	}

	docsJSON, err := json.Marshal(s.Documents)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}

	docBlock, err := compressBlock(docsJSON, compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize, headerSize+len(vecBlock)+len(docBlock)+trailerSize)
	binary.LittleEndian.PutUint32(out[0:], MagicNumber)
	binary.LittleEndian.PutUint32(out[4:], Version)
	out[8] = byte(compression)
	binary.LittleEndian.PutUint32(out[12:], uint32(dim))
	binary.LittleEndian.PutUint64(out[16:], uint64(len(s.Documents)))
	binary.LittleEndian.PutUint64(out[24:], uint64(len(vecBlock)))

	out = append(out, vecBlock...)
	out = append(out, docBlock...)

	sum := crc32.ChecksumIEEE(out)
	out = binary.LittleEndian.AppendUint32(out, sum)

	return out, nil
}

// Decode deserializes a snapshot, verifying the checksum and every
// structural invariant of the format.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: blob too small", ErrCorrupt)
	}

	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch: expected 0x%08x, got 0x%08x", ErrCorrupt, want, got)
	}

	if binary.LittleEndian.Uint32(body[0:]) != MagicNumber {
		return nil, fmt.Errorf("%w: invalid magic number", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(body[4:]); v != Version {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidVersion, v)
	}

	compression := Compression(body[8])
	if !compression.valid() {
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrCorrupt, compression)
	}

	dim := int(binary.LittleEndian.Uint32(body[12:]))
	count := binary.LittleEndian.Uint64(body[16:])
	vecBlockLen := binary.LittleEndian.Uint64(body[24:])

	rest := body[headerSize:]
	if uint64(len(rest)) < vecBlockLen {
		return nil, fmt.Errorf("%w: vector block truncated", ErrCorrupt)
	}

	raw, err := decompressBlock(rest[:vecBlockLen], compression)
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) != count*uint64(dim)*4 {
		return nil, fmt.Errorf("%w: vector table size mismatch", ErrCorrupt)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		for d := range vec {
			off := (i*dim + d) * 4
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		}
		vectors[i] = vec
	}

	docsJSON, err := decompressBlock(rest[vecBlockLen:], compression)
	if err != nil {
		return nil, err
	}

	var documents []model.Document
	if err := json.Unmarshal(docsJSON, &documents); err != nil {
		return nil, fmt.Errorf("%w: document block: %v", ErrCorrupt, err)
	}
	if uint64(len(documents)) != count {
		return nil, fmt.Errorf("%w: document count mismatch", ErrCorrupt)
	}

	return &Snapshot{Documents: documents, Vectors: vectors}, nil
}

// Save encodes the snapshot and writes it to the blob store.
func Save(ctx context.Context, store blobstore.Store, name string, snap *Snapshot, compression Compression) error {
	data, err := snap.Encode(compression)
	if err != nil {
		return err
	}

	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}

	return nil
}

// Load reads a snapshot blob and decodes it.
func Load(ctx context.Context, store blobstore.Store, name string) (*Snapshot, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return Decode(data)
}
