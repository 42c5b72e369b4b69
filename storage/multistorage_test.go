package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/verifiable-backends/interfaces"
)

func newFilePair(t *testing.T) (*FileBackend, *FileBackend) {
	t.Helper()
	a, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	b, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)
	return a, b
}

func TestMultiStoragePutFansOut(t *testing.T) {
	a, b := newFilePair(t)
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, testLogger())

	ctx := context.Background()
	content := []byte("replicated content")

	result, err := multi.Put(ctx, content, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.AlternativeURIs)

	// Both members must hold the content independently.
	for _, backend := range []*FileBackend{a, b} {
		data, err := backend.Get(ctx, result.Proof.ContentHash)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	}
}

func TestMultiStorageGetFallsBack(t *testing.T) {
	a, b := newFilePair(t)
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, testLogger())

	ctx := context.Background()

	// Store only in the second member; the multi backend must still
	// find it.
	result, err := b.Put(ctx, []byte("only in b"), nil)
	require.NoError(t, err)

	data, err := multi.Get(ctx, result.Proof.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("only in b"), data)

	exists, err := multi.Exists(ctx, result.Proof.ContentHash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMultiStorageMissingEverywhere(t *testing.T) {
	a, b := newFilePair(t)
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, testLogger())

	ctx := context.Background()

	_, err := multi.Get(ctx, "deadbeef")
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindNotFound))

	exists, err := multi.Exists(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMultiStoragePartialPutSucceeds(t *testing.T) {
	a, _ := newFilePair(t)
	broken := NewZeroGStorageBackend("http://127.0.0.1:1", testLogger())
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{broken, a}, testLogger())

	result, err := multi.Put(context.Background(), []byte("content"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.URI)
}

func TestMultiStorageAllPutsFail(t *testing.T) {
	broken := NewZeroGStorageBackend("http://127.0.0.1:1", testLogger())
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{broken}, testLogger())

	_, err := multi.Put(context.Background(), []byte("content"), nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsKind(err, interfaces.KindConnection))
}
