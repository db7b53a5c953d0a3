// Package embedding turns text into fixed-dimension vectors. A Backend talks
// to an embedding provider; the Vectorizer adds content-addressed caching and
// batch scheduling on top of any backend.
package embedding

import (
	"context"
	"fmt"
)

// Backend produces embeddings for text. Implementations must be safe for
// concurrent use and must return vectors of exactly Dimension() components.
type Backend interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimensionality this backend produces.
	Dimension() int
}

// FailureKind classifies why a backend could not produce embeddings.
type FailureKind uint8

const (
	// FailureUnknown covers errors that fit no other kind.
	FailureUnknown FailureKind = iota
	// FailureAuth means the provider rejected the credentials.
	FailureAuth
	// FailureRateLimited means the provider throttled the request.
	FailureRateLimited
	// FailureNetwork means the provider was unreachable or returned a
	// server-side error.
	FailureNetwork
	// FailureMalformed means the provider answered with an unusable payload.
	FailureMalformed
)

// String returns a human-readable kind name.
func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureRateLimited:
		return "rate limited"
	case FailureNetwork:
		return "network"
	case FailureMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// UnavailableError is returned when a backend cannot produce embeddings.
// Callers treat every kind the same way (the write proceeds without a
// vector); the kind exists for logging and retry policy.
type UnavailableError struct {
	Backend string
	Kind    FailureKind
	Err     error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding backend %s unavailable (%s): %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("embedding backend %s unavailable (%s)", e.Backend, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}
