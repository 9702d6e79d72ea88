package blobstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripLeadingSlash(t *testing.T) {
	assert.Equal(t, "a/b/c", stripLeadingSlash("/a/b/c"))
	assert.Equal(t, "a/b/c", stripLeadingSlash("a/b/c"))
	assert.Equal(t, "", stripLeadingSlash(""))
	assert.Equal(t, "", stripLeadingSlash("/"))
}

func TestDeflateInflateRoundTrip(t *testing.T) {
	original := []byte("EDGAR full text search index payload, repeated for compressibility. " +
		"EDGAR full text search index payload, repeated for compressibility.")

	compressed, err := deflateBytes(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	restored, err := inflateBytes(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestLocalStore_PutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	ok, err := store.Exists(ctx, "edgar/data/0000320193/filing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte("SEC-HEADER body")
	require.NoError(t, store.Put(ctx, "/edgar/data/0000320193/filing.txt", payload, false))

	ok, err = store.Exists(ctx, "edgar/data/0000320193/filing.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "edgar/data/0000320193/filing.txt", false)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(ctx, "edgar/data/0000320193/filing.txt"))
	ok, err = store.Exists(ctx, "edgar/data/0000320193/filing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_DeflateFlagIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	payload := []byte("plain bytes, never deflated on disk")
	require.NoError(t, store.Put(ctx, "x.txt", payload, true))

	raw, err := store.GetRange(ctx, "x.txt", 0, int64(len(payload)), true)
	require.NoError(t, err)
	assert.Equal(t, payload, raw, "local backend must ignore the deflate flag and store bytes verbatim")
}

func TestLocalStore_GetRange(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "range.txt", []byte("0123456789"), false))

	chunk, err := store.GetRange(ctx, "range.txt", 2, 5, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), chunk)
}

func TestLocalStore_GetToFileAndPutFile(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	scratch := t.TempDir()

	require.NoError(t, store.Put(ctx, "a.txt", []byte("hello"), false))

	localPath := filepath.Join(scratch, "a.txt")
	require.NoError(t, store.GetToFile(ctx, "a.txt", localPath, false))

	require.NoError(t, store.PutFile(ctx, "b.txt", localPath, false))
	got, err := store.Get(ctx, "b.txt", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestLocalStore_ListAndListFolders(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "edgar/data/1/a.txt", []byte("a"), false))
	require.NoError(t, store.Put(ctx, "edgar/data/2/b.txt", []byte("b"), false))
	require.NoError(t, store.Put(ctx, "edgar/data/2/c.txt", []byte("c"), false))

	keys, err := store.List(ctx, "edgar/data")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"edgar/data/1/a.txt",
		"edgar/data/2/b.txt",
		"edgar/data/2/c.txt",
	}, keys)

	folders, err := store.ListFolders(ctx, "edgar/data", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"edgar/data/1/", "edgar/data/2/"}, folders)

	limited, err := store.ListFolders(ctx, "edgar/data", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLocalStore_ListFoldersMissingPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	folders, err := store.ListFolders(ctx, "does/not/exist", 0)
	require.NoError(t, err)
	assert.Nil(t, folders)
}
