package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	// Missing blob.
	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	// Write and read back.
	require.NoError(t, store.Put(ctx, "manifest/000001.json", []byte("v1")))

	data, err := store.Get(ctx, "manifest/000001.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// Replace is atomic from the reader's perspective; at minimum the new
	// content wins.
	require.NoError(t, store.Put(ctx, "manifest/000001.json", []byte("v2")))

	data, err = store.Get(ctx, "manifest/000001.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// List with prefix.
	require.NoError(t, store.Put(ctx, "records/000001.bin", []byte("r")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("manifest/000001.json")))

	names, err := store.List(ctx, "manifest/")
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest/000001.json"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 3)

	// Delete, twice.
	require.NoError(t, store.Delete(ctx, "records/000001.bin"))
	require.NoError(t, store.Delete(ctx, "records/000001.bin"))

	_, err = store.Get(ctx, "records/000001.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	testStore(t, store)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStoreNestedNames(t *testing.T) {
	ctx := context.Background()

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a/b/c/blob", []byte("deep")))

	data, err := store.Get(ctx, "a/b/c/blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), data)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := []byte("original")
	require.NoError(t, store.Put(ctx, "blob", src))

	src[0] = 'X'

	data, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)

	// Mutating the returned slice does not leak back either.
	data[0] = 'Y'

	again, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
