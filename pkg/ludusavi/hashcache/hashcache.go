// Package hashcache memoizes file content hashes in a Badger store so
// repeated scans only rehash files whose size or modification time changed.
package hashcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("hash cache entry not found")

// Entry records what was known about a file when it was last hashed.
type Entry struct {
	Size  int64
	Mtime int64 // UnixNano
	Hash  string
}

// Encode serializes the entry to bytes using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Cache is a persistent path-to-hash store. The zero value is not usable;
// call Open. A nil *Cache is valid and hashes every file directly.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a cache at the given path.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Get retrieves a cached entry for an absolute path.
func (c *Cache) Get(path string) (*Entry, error) {
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores a cached entry for an absolute path.
func (c *Cache) Put(path string, entry *Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
}

// HashFile returns the content hash of the file at path, reusing the cached
// value when size and mtime still match. A nil cache always rehashes.
func (c *Cache) HashFile(path string, size, mtimeNano int64) (string, error) {
	if c != nil {
		if entry, err := c.Get(path); err == nil {
			if entry.Size == size && entry.Mtime == mtimeNano {
				return entry.Hash, nil
			}
		}
	}

	hash, err := hashContents(path)
	if err != nil {
		return "", err
	}

	if c != nil {
		// A stale entry on the next run just costs a rehash.
		_ = c.Put(path, &Entry{Size: size, Mtime: mtimeNano, Hash: hash})
	}
	return hash, nil
}

func hashContents(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashReader hashes arbitrary content with the same digest used for files.
func HashReader(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
