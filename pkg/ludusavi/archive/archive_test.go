package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, settings Settings) {
	t.Helper()
	dir := t.TempDir()

	w, err := NewWriter(dir, "20240101T120000Z", settings)
	require.NoError(t, err)
	require.NoError(t, w.Write("drive-C/saves/slot1.sav", strings.NewReader("slot one")))
	require.NoError(t, w.Write("drive/home/player/.config/foo", strings.NewReader("config")))
	require.NoError(t, w.Close())

	path, err := Find(dir, "20240101T120000Z")
	require.NoError(t, err)

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	rc, err := r.Open("drive-C/saves/slot1.sav")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "slot one", string(data))

	_, err = r.Open("drive-C/missing")
	assert.Error(t, err)
}

func TestRoundTripSimple(t *testing.T) {
	roundTrip(t, Settings{Format: FormatSimple})
}

func TestRoundTripZip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionDeflate, CompressionZstd} {
		t.Run(string(comp), func(t *testing.T) {
			roundTrip(t, Settings{Format: FormatZip, Compression: comp})
		})
	}
}

func TestContainerPath(t *testing.T) {
	assert.Equal(t, filepath.Join("g", "id"), ContainerPath("g", "id", FormatSimple))
	assert.Equal(t, filepath.Join("g", "id.zip"), ContainerPath("g", "id", FormatZip))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatSimple, f)

	_, err = ParseFormat("tarball")
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zstd")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)

	_, err = ParseCompression("lz77")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, "b1", Settings{Format: FormatZip, Compression: CompressionNone})
	require.NoError(t, err)
	require.NoError(t, w.Write("drive/x", strings.NewReader("x")))
	require.NoError(t, w.Close())

	require.NoError(t, Remove(dir, "b1"))
	_, err = os.Stat(filepath.Join(dir, "b1.zip"))
	assert.True(t, os.IsNotExist(err))

	_, err = Find(dir, "b1")
	assert.Error(t, err)
}
