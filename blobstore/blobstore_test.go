package blobstore_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/chainkit/coldstore/blobstore"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	content := []byte("headers segment content")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "headers_0_9.seg"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipts_0_9.seg"), []byte("x"), 0o644))

	store := blobstore.NewLocalStore(dir)
	ctx := context.Background()

	t.Run("open and read", func(t *testing.T) {
		blob, err := store.Open(ctx, "headers_0_9.seg")
		require.NoError(t, err)
		defer blob.Close()

		require.Equal(t, int64(len(content)), blob.Size())

		buf := make([]byte, 7)
		n, err := blob.ReadAt(buf, 8)
		require.NoError(t, err)
		require.Equal(t, []byte("segment"), buf[:n])
	})

	t.Run("mappable", func(t *testing.T) {
		blob, err := store.Open(ctx, "headers_0_9.seg")
		require.NoError(t, err)
		defer blob.Close()

		m, ok := blob.(blobstore.Mappable)
		require.True(t, ok)
		require.Equal(t, content, m.Bytes())
	})

	t.Run("missing blob", func(t *testing.T) {
		_, err := store.Open(ctx, "nope.seg")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		names, err := store.List(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"headers_0_9.seg", "receipts_0_9.seg"}, names)
	})
}

func TestMemoryStore(t *testing.T) {
	store := blobstore.NewMemoryStore()
	store.Put("a.seg", []byte("aaa"))
	store.Put("b.seg", []byte("bbbbbb"))
	ctx := context.Background()

	blob, err := store.Open(ctx, "b.seg")
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(6), blob.Size())

	buf := make([]byte, 3)
	_, err = blob.ReadAt(buf, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("bbb"), buf)

	_, err = blob.ReadAt(buf, 6)
	require.ErrorIs(t, err, io.EOF)

	_, err = store.Open(ctx, "missing.seg")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.seg", "b.seg"}, names)
}

func TestCachingStore(t *testing.T) {
	ctx := context.Background()
	content := []byte("remote segment payload, long enough to span chunks")

	t.Run("downloads then serves from cache", func(t *testing.T) {
		remote := blobstore.NewMemoryStore()
		remote.Put("headers_0_9.seg", content)

		dir := t.TempDir()
		store := blobstore.NewCachingStore(remote, dir, nil)

		blob, err := store.Open(ctx, "headers_0_9.seg")
		require.NoError(t, err)
		defer blob.Close()

		// The cached copy is a locally mapped file with the full content.
		m, ok := blob.(blobstore.Mappable)
		require.True(t, ok)
		require.Equal(t, content, m.Bytes())

		cached, err := os.ReadFile(filepath.Join(dir, "headers_0_9.seg"))
		require.NoError(t, err)
		require.Equal(t, content, cached)

		again, err := store.Open(ctx, "headers_0_9.seg")
		require.NoError(t, err)
		require.NoError(t, again.Close())
	})

	t.Run("rate limited download", func(t *testing.T) {
		remote := blobstore.NewMemoryStore()
		remote.Put("headers_0_9.seg", content)

		// Small burst forces the writer to split the download into chunks.
		limiter := rate.NewLimiter(rate.Limit(1<<20), 8)
		store := blobstore.NewCachingStore(remote, t.TempDir(), limiter)

		blob, err := store.Open(ctx, "headers_0_9.seg")
		require.NoError(t, err)
		defer blob.Close()

		m := blob.(blobstore.Mappable)
		require.Equal(t, content, m.Bytes())
	})

	t.Run("missing remote blob", func(t *testing.T) {
		store := blobstore.NewCachingStore(blobstore.NewMemoryStore(), t.TempDir(), nil)
		_, err := store.Open(ctx, "missing.seg")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("list delegates to remote", func(t *testing.T) {
		remote := blobstore.NewMemoryStore()
		remote.Put("a.seg", []byte("a"))
		store := blobstore.NewCachingStore(remote, t.TempDir(), nil)

		names, err := store.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"a.seg"}, names)
	})
}
