// Package archive reads and writes backup containers. A container holds one
// generation's file content under portable names, either as a plain
// directory or as a zip archive with selectable compression.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Format selects the on-disk container layout for a backup generation.
type Format string

// Supported container formats.
const (
	FormatSimple Format = "simple"
	FormatZip    Format = "zip"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatSimple, FormatZip:
		return Format(s), nil
	case "":
		return FormatSimple, nil
	default:
		return "", fmt.Errorf("unknown backup format: %q", s)
	}
}

// Compression selects the zip entry compression method. It has no effect on
// the simple format.
type Compression string

// Supported compression methods.
const (
	CompressionNone    Compression = "none"
	CompressionDeflate Compression = "deflate"
	CompressionZstd    Compression = "zstd"
)

// ParseCompression validates a compression name.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case CompressionNone, CompressionDeflate, CompressionZstd:
		return Compression(s), nil
	case "":
		return CompressionDeflate, nil
	default:
		return "", fmt.Errorf("unknown compression: %q", s)
	}
}

// Settings bundles the container options for new backups.
type Settings struct {
	Format      Format
	Compression Compression

	// Level tunes deflate compression; zero means the library default.
	Level int
}

// ContainerPath returns where a generation's container lives under the
// game's backup directory.
func ContainerPath(gameDir, id string, format Format) string {
	if format == FormatZip {
		return filepath.Join(gameDir, id+".zip")
	}
	return filepath.Join(gameDir, id)
}

// A Writer stores file content under portable names inside one container.
// Close must be called to finalize the container.
type Writer interface {
	Write(name string, src io.Reader) error
	Close() error
}

// NewWriter creates the container for a new backup generation and returns a
// writer for its content.
func NewWriter(gameDir, id string, settings Settings) (Writer, error) {
	dest := ContainerPath(gameDir, id, settings.Format)
	if settings.Format == FormatZip {
		return newZipWriter(dest, settings)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &dirWriter{root: dest}, nil
}

// A Reader retrieves file content from an existing container by portable
// name.
type Reader interface {
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// OpenReader opens the container at path, which may be a directory or a zip
// archive.
func OpenReader(path string) (Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open backup container: %w", err)
	}
	if info.IsDir() {
		return &dirReader{root: path}, nil
	}
	return newZipReader(path)
}

type dirWriter struct {
	root string
}

func (w *dirWriter) Write(name string, src io.Reader) error {
	dest := filepath.Join(w.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

func (w *dirWriter) Close() error { return nil }

type dirReader struct {
	root string
}

func (r *dirReader) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(r.root, filepath.FromSlash(name)))
}

func (r *dirReader) Close() error { return nil }

type zipWriter struct {
	file   *os.File
	zw     *zip.Writer
	method uint16
}

func newZipWriter(dest string, settings Settings) (*zipWriter, error) {
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("create backup archive: %w", err)
	}
	zw := zip.NewWriter(f)

	w := &zipWriter{file: f, zw: zw, method: zip.Store}
	switch settings.Compression {
	case CompressionDeflate:
		w.method = zip.Deflate
		level := settings.Level
		if level == 0 {
			level = flate.DefaultCompression
		}
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	case CompressionZstd:
		w.method = zstd.ZipMethodWinZip
		zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	}
	return w, nil
}

func (w *zipWriter) Write(name string, src io.Reader) error {
	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   w.method,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

func (w *zipWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type zipReader struct {
	rc *zip.ReadCloser
}

func newZipReader(path string) (*zipReader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup archive: %w", err)
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return &zipReader{rc: rc}, nil
}

func (r *zipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%q not found in backup archive", name)
}

func (r *zipReader) Close() error { return r.rc.Close() }

// Remove deletes a generation's container, whichever format it used.
func Remove(gameDir, id string) error {
	var firstErr error
	for _, p := range []string{
		ContainerPath(gameDir, id, FormatSimple),
		ContainerPath(gameDir, id, FormatZip),
	} {
		if err := os.RemoveAll(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Find locates an existing generation's container, trying each known
// format.
func Find(gameDir, id string) (string, error) {
	for _, p := range []string{
		ContainerPath(gameDir, id, FormatSimple),
		ContainerPath(gameDir, id, FormatZip),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("backup %q has no container", id)
}
