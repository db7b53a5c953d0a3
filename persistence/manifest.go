// Package persistence saves and loads store snapshots through a blob store.
//
// Layout: each save writes one records file under records/ and one manifest
// under manifest/, then repoints the CURRENT blob at the new manifest. A
// crash between any two steps leaves CURRENT pointing at the previous,
// complete generation. The manifest names the codec and compression used for
// its records file, so a newer engine opens old files with whatever wrote
// them, and rejects layouts newer than it understands.
package persistence

import (
	"errors"
	"fmt"
	"time"
)

const (
	// FormatVersion is the snapshot layout version this engine writes.
	// Loading a manifest with a different version fails closed.
	FormatVersion = 1

	// CurrentBlobName is the pointer blob naming the live manifest.
	CurrentBlobName = "CURRENT"

	manifestPrefix = "manifest/"
	recordsPrefix  = "records/"
)

// ErrNoSnapshot is returned by Load when the store holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot present")

// CorruptError marks a snapshot whose contents failed to decode. Load
// fails closed on it; nothing partial is returned.
type CorruptError struct {
	Err error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt snapshot: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *CorruptError) Unwrap() error { return e.Err }

// VersionError is returned when a persisted manifest declares a layout
// version this engine does not support.
type VersionError struct {
	Found     int
	Supported int
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	return fmt.Sprintf("snapshot format version %d, supported %d", e.Found, e.Supported)
}

// Manifest describes one complete snapshot generation.
type Manifest struct {
	Version     int       `json:"version"`
	ID          uint64    `json:"id"`
	Dimension   int       `json:"dimension"`
	RecordCount int       `json:"record_count"`
	Codec       string    `json:"codec"`
	Compression string    `json:"compression"`
	RecordsFile string    `json:"records_file"`
	SavedAt     time.Time `json:"saved_at"`
}

func manifestBlobName(id uint64) string {
	return fmt.Sprintf("%sMANIFEST-%06d.json", manifestPrefix, id)
}

func recordsBlobName(id uint64) string {
	return fmt.Sprintf("%s%06d.rec", recordsPrefix, id)
}
