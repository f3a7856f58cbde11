package hashcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetPut(t *testing.T) {
	c := openTestCache(t)

	_, err := c.Get("/some/file")
	assert.ErrorIs(t, err, ErrNotFound)

	want := &Entry{Size: 10, Mtime: 12345, Hash: "abc"}
	require.NoError(t, c.Put("/some/file", want))

	got, err := c.Get("/some/file")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHashFile(t *testing.T) {
	c := openTestCache(t)

	path := filepath.Join(t.TempDir(), "save.dat")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	// "hello" under SHA-1.
	const wantHash = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

	h1, err := c.HashFile(path, info.Size(), info.ModTime().UnixNano())
	require.NoError(t, err)
	assert.Equal(t, wantHash, h1)

	// Second call hits the cache.
	entry, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, wantHash, entry.Hash)

	h2, err := c.HashFile(path, info.Size(), info.ModTime().UnixNano())
	require.NoError(t, err)
	assert.Equal(t, wantHash, h2)
}

func TestHashFileStaleEntry(t *testing.T) {
	c := openTestCache(t)

	path := filepath.Join(t.TempDir(), "save.dat")
	require.NoError(t, os.WriteFile(path, []byte("v2 content"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	// A cached entry with a mismatched size must be ignored.
	require.NoError(t, c.Put(path, &Entry{Size: 1, Mtime: 1, Hash: "stale"}))

	h, err := c.HashFile(path, info.Size(), info.ModTime().UnixNano())
	require.NoError(t, err)
	assert.NotEqual(t, "stale", h)

	entry, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, h, entry.Hash)
	assert.Equal(t, info.Size(), entry.Size)
}

func TestNilCache(t *testing.T) {
	var c *Cache

	path := filepath.Join(t.TempDir(), "save.dat")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	h, err := c.HashFile(path, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", h)

	assert.NoError(t, c.Close())
}

func TestHashReader(t *testing.T) {
	h, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", h)
}
