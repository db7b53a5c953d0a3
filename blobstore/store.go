// Package blobstore abstracts where snapshot files live: record batches,
// manifests, and the CURRENT pointer. Snapshots are written and read whole,
// so the interface deals in complete byte slices rather than streams.
//
// Built-in implementations:
//
//   - LocalStore: local filesystem with atomic temp-write-then-rename
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Implementations must be safe for concurrent use.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist. Implementations return
// an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// Store reads and writes whole blobs by name.
type Store interface {
	// Put writes a blob atomically, replacing any existing blob of the
	// same name. A reader never observes a partially written blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the complete contents of a blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is a no-op.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
