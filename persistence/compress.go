package persistence

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Compression transforms record payloads before they hit the blob store.
// The manifest records the compression name, so files are self-describing.
type Compression interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// CompressionByName returns a built-in compression by its stable name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "none":
		return Identity{}, true
	case "gzip":
		return Gzip{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// DefaultCompression is used for newly-written snapshots.
var DefaultCompression Compression = Gzip{}

// Identity is the no-op compression.
type Identity struct{}

// Compress returns the data unchanged.
func (Identity) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns the data unchanged.
func (Identity) Decompress(data []byte) ([]byte, error) { return data, nil }

// Name returns "none".
func (Identity) Name() string { return "none" }

// Gzip compresses with gzip at the default level.
type Gzip struct{}

// Compress gzips the data.
func (Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress gunzips the data.
func (Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Name returns "gzip".
func (Gzip) Name() string { return "gzip" }

// LZ4 compresses with the lz4 frame format. It trades a little ratio for
// much faster decompression on load.
type LZ4 struct{}

// Compress lz4-frames the data.
func (LZ4) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress reads an lz4 frame.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }
