package docvec

import (
	"errors"
	"fmt"

	"github.com/grapedb/docvec/blobstore"
	"github.com/grapedb/docvec/embedding"
	"github.com/grapedb/docvec/hnsw"
	"github.com/grapedb/docvec/persistence"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidK is returned when a result limit is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmbeddingUnavailable is returned when the embedding backend could
	// not produce vectors. Writes and queries degrade instead of failing,
	// so callers rarely see it directly.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStorageIO is returned when durable storage could not be read or
	// written. The affected Save or Load fails; in-memory state is intact.
	ErrStorageIO = errors.New("storage I/O failure")

	// ErrSerialization is returned when persisted data is corrupt or its
	// format version is unsupported. Load fails closed rather than
	// returning a partially reconstructed store.
	ErrSerialization = errors.New("serialization failure")
)

// ErrDimensionMismatch indicates a vector whose length violates the store's
// fixed dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError normalizes subsystem errors into the store's taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	var ue *embedding.UnavailableError
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	var ve *persistence.VersionError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	var ce *persistence.CorruptError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}

	return err
}
