package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapedb/docvec/blobstore"
	"github.com/grapedb/docvec/codec"
)

type testRecord struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func testRecords() []testRecord {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []testRecord{
		{ID: "a", Content: "first", Embedding: []float32{0.1, 0.2}, CreatedAt: now},
		{ID: "b", Content: "second", CreatedAt: now},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	in := testRecords()

	saved, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: len(in)}, in)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), saved.ID)
	assert.Equal(t, FormatVersion, saved.Version)
	assert.Equal(t, 2, saved.Dimension)
	assert.Equal(t, len(in), saved.RecordCount)
	assert.False(t, saved.SavedAt.IsZero())

	var out []testRecord
	loaded, err := m.Load(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, loaded.ID)
	assert.Equal(t, in, out)
}

func TestLoadWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	var out []testRecord
	_, err := m.Load(ctx, &out)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveIncrementsGeneration(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore())

	first, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: 1}, testRecords()[:1])
	require.NoError(t, err)

	second, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: 2}, testRecords())
	require.NoError(t, err)

	assert.Equal(t, first.ID+1, second.ID)

	// Load sees the latest generation.
	var out []testRecord
	loaded, err := m.Load(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, second.ID, loaded.ID)
	assert.Len(t, out, 2)
}

func TestLoadRejectsNewerFormat(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	_, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: 2}, testRecords())
	require.NoError(t, err)

	// Rewrite the live manifest claiming a future layout version.
	pointer, err := store.Get(ctx, CurrentBlobName)
	require.NoError(t, err)

	data, err := store.Get(ctx, string(pointer))
	require.NoError(t, err)

	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	manifest.Version = FormatVersion + 1

	data, err = json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, string(pointer), data))

	var out []testRecord
	_, err = m.Load(ctx, &out)

	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FormatVersion+1, verr.Found)
	assert.Empty(t, out)
}

func TestLoadFailsClosedOnCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	saved, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: 2}, testRecords())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, saved.RecordsFile, []byte("not a snapshot")))

	var out []testRecord
	_, err = m.Load(ctx, &out)

	var cerr *CorruptError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, out)
}

func TestCompressionRoundtrips(t *testing.T) {
	payload := []byte(`{"repeated": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)

	for _, name := range []string{"none", "gzip", "lz4"} {
		comp, ok := CompressionByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, comp.Name())

		compressed, err := comp.Compress(payload)
		require.NoError(t, err, name)

		out, err := comp.Decompress(compressed)
		require.NoError(t, err, name)
		assert.Equal(t, payload, out, name)
	}

	_, ok := CompressionByName("zstd")
	assert.False(t, ok)
}

func TestManagerWithExplicitStack(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blobstore.NewMemoryStore(), func(o *ManagerOptions) {
		o.Codec = codec.JSON{}
		o.Compression = LZ4{}
	})

	in := testRecords()

	saved, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: len(in)}, in)
	require.NoError(t, err)
	assert.Equal(t, "json", saved.Codec)
	assert.Equal(t, "lz4", saved.Compression)

	var out []testRecord
	_, err = m.Load(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPruneKeepsRetentionWindow(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, func(o *ManagerOptions) {
		o.KeepGenerations = 1
	})

	for i := 0; i < 4; i++ {
		_, err := m.Save(ctx, SaveInfo{Dimension: 2, RecordCount: 2}, testRecords())
		require.NoError(t, err)
	}

	manifests, err := store.List(ctx, "manifest/")
	require.NoError(t, err)
	assert.Len(t, manifests, 2)

	records, err := store.List(ctx, "records/")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// The live generation still loads.
	var out []testRecord
	loaded, err := m.Load(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), loaded.ID)
}
