package topology

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// ErrCacheMiss means the cache cannot serve the document: it is absent,
// stale, unreadable or undecodable. Callers fall back to parsing.
var ErrCacheMiss = errors.New("topology cache miss")

const cacheVersion = 1

// Signature identifies one revision of a document cheaply.
type Signature struct {
	Size    int64
	ModTime int64 // nanoseconds since the epoch
}

type cacheEntry struct {
	Version   int
	Signature Signature
	Topology  *Topology
}

// Cache stores a parsed topology next to its document as
// "<document>.cache": a gob payload compressed with snappy.
type Cache struct {
	docPath string
	path    string
}

// NewCache returns the cache for the document at docPath.
func NewCache(docPath string) *Cache {
	return &Cache{docPath: docPath, path: docPath + ".cache"}
}

// Path returns the cache file location.
func (c *Cache) Path() string { return c.path }

// DocumentSignature stats the document.
func (c *Cache) DocumentSignature() (Signature, error) {
	info, err := os.Stat(c.docPath)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// Load returns the cached topology. Every failure wraps ErrCacheMiss.
func (c *Cache) Load() (*Topology, error) {
	sig, err := c.DocumentSignature()
	if err != nil {
		return nil, fmt.Errorf("%w: stat document: %v", ErrCacheMiss, err)
	}
	compressed, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCacheMiss, err)
	}

	var entry cacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCacheMiss, err)
	}
	if entry.Version != cacheVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCacheMiss, entry.Version)
	}
	if entry.Signature != sig {
		return nil, fmt.Errorf("%w: stale signature", ErrCacheMiss)
	}
	if entry.Topology == nil {
		return nil, fmt.Errorf("%w: empty entry", ErrCacheMiss)
	}
	if entry.Topology.Coords == nil {
		entry.Topology.Coords = make(map[string]Point)
	}
	entry.Topology.reindex()
	return entry.Topology, nil
}

// Store writes t under the document's current signature. The file is
// replaced atomically.
func (c *Cache) Store(t *Topology) error {
	sig, err := c.DocumentSignature()
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cacheEntry{Version: cacheVersion, Signature: sig, Topology: t}); err != nil {
		return fmt.Errorf("encode topology: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	if _, err := tmp.Write(snappy.Encode(nil, buf.Bytes())); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install cache file: %w", err)
	}
	return nil
}

// Remove deletes the cache file if present.
func (c *Cache) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
