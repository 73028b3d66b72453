// Package blobstore abstracts where engine snapshots live. Snapshots are
// immutable whole blobs, written once and read back fully, so the interface
// is deliberately byte-slice oriented rather than streaming.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for storing immutable snapshot blobs.
type Store interface {
	// Put writes a blob atomically. An existing blob with the same name
	// is replaced.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob fully. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
