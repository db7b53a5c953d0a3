package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grapedb/docvec/blobstore"
	"github.com/grapedb/docvec/codec"
)

// ManagerOptions configures a snapshot manager.
type ManagerOptions struct {
	// Codec encodes the records payload.
	Codec codec.Codec

	// Compression transforms the encoded payload.
	Compression Compression

	// KeepGenerations is the number of old snapshot generations retained
	// after a successful save. The live generation is always kept.
	KeepGenerations int
}

// DefaultManagerOptions contains the default manager options.
var DefaultManagerOptions = ManagerOptions{
	Codec:           codec.Default,
	Compression:     DefaultCompression,
	KeepGenerations: 1,
}

// SaveInfo carries the store metadata recorded alongside the records.
type SaveInfo struct {
	Dimension   int
	RecordCount int
}

// Manager writes and reads snapshot generations. Saves are serialized;
// loads may run concurrently with each other.
type Manager struct {
	store blobstore.Store
	opts  ManagerOptions

	mu sync.Mutex
}

// NewManager creates a snapshot manager over the given blob store.
func NewManager(store blobstore.Store, optFns ...func(o *ManagerOptions)) *Manager {
	opts := DefaultManagerOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Compression == nil {
		opts.Compression = DefaultCompression
	}

	return &Manager{store: store, opts: opts}
}

// Save writes a new snapshot generation containing the payload and repoints
// CURRENT at it. The previous generation stays intact until the new one is
// fully durable.
func (m *Manager) Save(ctx context.Context, info SaveInfo, payload any) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, err := m.loadCurrent(ctx)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	var id uint64 = 1
	if prev != nil {
		id = prev.ID + 1
	}

	encoded, err := m.opts.Codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	compressed, err := m.opts.Compression.Compress(encoded)
	if err != nil {
		return nil, fmt.Errorf("compress records: %w", err)
	}

	manifest := &Manifest{
		Version:     FormatVersion,
		ID:          id,
		Dimension:   info.Dimension,
		RecordCount: info.RecordCount,
		Codec:       m.opts.Codec.Name(),
		Compression: m.opts.Compression.Name(),
		RecordsFile: recordsBlobName(id),
		SavedAt:     time.Now().UTC(),
	}

	if err := m.store.Put(ctx, manifest.RecordsFile, compressed); err != nil {
		return nil, err
	}

	// The manifest itself is always plain JSON so it can be inspected and
	// decoded before any codec selection happens.
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}

	manifestName := manifestBlobName(id)
	if err := m.store.Put(ctx, manifestName, manifestData); err != nil {
		return nil, err
	}

	if err := m.store.Put(ctx, CurrentBlobName, []byte(manifestName)); err != nil {
		return nil, err
	}

	m.prune(ctx, id)

	return manifest, nil
}

// Load reads the live snapshot generation into payload and returns its
// manifest. A corrupt or version-mismatched snapshot fails closed without
// touching payload semantics the caller can rely on.
func (m *Manager) Load(ctx context.Context, payload any) (*Manifest, error) {
	manifest, err := m.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(manifest.Codec)
	if !ok {
		return nil, &CorruptError{Err: fmt.Errorf("unknown codec %q", manifest.Codec)}
	}

	comp, ok := CompressionByName(manifest.Compression)
	if !ok {
		return nil, &CorruptError{Err: fmt.Errorf("unknown compression %q", manifest.Compression)}
	}

	compressed, err := m.store.Get(ctx, manifest.RecordsFile)
	if err != nil {
		return nil, err
	}

	encoded, err := comp.Decompress(compressed)
	if err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("decompress records: %w", err)}
	}

	if err := c.Unmarshal(encoded, payload); err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("decode records: %w", err)}
	}

	return manifest, nil
}

// loadCurrent resolves CURRENT to its manifest and validates the version.
func (m *Manager) loadCurrent(ctx context.Context) (*Manifest, error) {
	pointer, err := m.store.Get(ctx, CurrentBlobName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}

	manifestName := strings.TrimSpace(string(pointer))

	data, err := m.store.Get(ctx, manifestName)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("decode manifest: %w", err)}
	}

	if manifest.Version != FormatVersion {
		return nil, &VersionError{Found: manifest.Version, Supported: FormatVersion}
	}

	return &manifest, nil
}

// prune deletes generations older than the retention window. Failures are
// ignored; stale blobs are garbage, not corruption.
func (m *Manager) prune(ctx context.Context, liveID uint64) {
	if m.opts.KeepGenerations < 0 {
		return
	}

	var cutoff uint64
	if keep := uint64(m.opts.KeepGenerations); liveID > keep+1 {
		cutoff = liveID - keep - 1
	} else {
		return
	}

	for id := cutoff; id >= 1; id-- {
		manifestName := manifestBlobName(id)
		if _, err := m.store.Get(ctx, manifestName); err != nil {
			break
		}

		_ = m.store.Delete(ctx, recordsBlobName(id))
		_ = m.store.Delete(ctx, manifestName)
	}
}
