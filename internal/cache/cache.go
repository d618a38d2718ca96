// Package cache implements the encrypted, content-addressed key/value
// store the watch engine uses to remember state between invocations, per
// SPEC_FULL.md §5.3.
//
// A Cache has two disjoint namespaces sharing the same sha256(key)
// addressing scheme: small "entries" held entirely in memory and
// flushed as one YAML document, and "files" (blobs) that each live as
// their own archive member and may be AES-256-GCM encrypted at rest.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

const entriesFileName = "cache.yaml"

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = fmt.Errorf("cache: use of closed cache")

// Cache is the single persistent store a run's watches read from and
// write to. The zero value is not usable; construct with Open.
type Cache struct {
	mu sync.Mutex

	path     string // archive path on disk; empty for an ephemeral (--test) cache
	tmpDir   string // working directory the archive is extracted into
	key      []byte // nil means blobs are stored unencrypted
	entries  map[string]interface{}
	fileLRU  *lru.Cache[string, interface{}] // read-through cache over decoded blobs
	closed   bool
}

// Option configures Open.
type Option func(*Cache)

// WithEncryptionKey overrides the key derived from LOOKOUT_CACHE_KEY.
// A nil key disables blob encryption.
func WithEncryptionKey(key []byte) Option {
	return func(c *Cache) { c.key = key }
}

// Open constructs a Cache. If path is non-empty and the archive exists,
// it is extracted into a fresh temporary directory and cache.yaml is
// loaded into the entries map. An empty path produces an ephemeral,
// in-memory-only cache suitable for --test runs: Close is then a no-op
// beyond releasing the temp directory, nothing is written back to disk.
func Open(path string, opts ...Option) (*Cache, error) {
	tmpDir, err := os.MkdirTemp("", "lookout-cache-*")
	if err != nil {
		return nil, fmt.Errorf("cache: create temp dir: %w", err)
	}

	key, err := deriveKey()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}
	c := &Cache{
		path:    path,
		tmpDir:  tmpDir,
		entries: map[string]interface{}{},
		key:     key,
	}
	for _, opt := range opts {
		opt(c)
	}

	cache, err := lru.New[string, interface{}](256)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("cache: create blob cache: %w", err)
	}
	c.fileLRU = cache

	if path != "" {
		if err := unpackArchive(path, tmpDir); err != nil {
			os.RemoveAll(tmpDir)
			return nil, fmt.Errorf("cache: open %q: %w", path, err)
		}
		if err := c.loadEntries(); err != nil {
			os.RemoveAll(tmpDir)
			return nil, err
		}
	}

	return c, nil
}

func (c *Cache) loadEntries() error {
	data, err := os.ReadFile(filepath.Join(c.tmpDir, entriesFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: read %s: %w", entriesFileName, err)
	}
	var decoded map[string]interface{}
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("cache: parse %s: %w", entriesFileName, err)
	}
	if decoded != nil {
		c.entries = decoded
	}
	return nil
}

// HasEntry reports whether key has a stored entry.
func (c *Cache) HasEntry(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	_, ok := c.entries[keyHash(key)]
	return ok, nil
}

// GetEntry returns the value stored under key, or def if absent.
func (c *Cache) GetEntry(key string, def interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if v, ok := c.entries[keyHash(key)]; ok {
		return v, nil
	}
	return def, nil
}

// PutEntry stores value under key, replacing any prior value.
func (c *Cache) PutEntry(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.entries[keyHash(key)] = value
	return nil
}

// HasFile reports whether key has a stored blob.
func (c *Cache) HasFile(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if _, ok := c.fileLRU.Get(keyHash(key)); ok {
		return true, nil
	}
	_, err := os.Stat(c.filePath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("cache: stat blob %q: %w", key, err)
}

// GetFile returns the decoded value stored under key, or def if absent.
// Encrypted blobs are transparently decrypted; GetFile never returns
// ciphertext.
func (c *Cache) GetFile(key string, def interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	hash := keyHash(key)
	if v, ok := c.fileLRU.Get(hash); ok {
		return v, nil
	}

	raw, err := os.ReadFile(c.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return nil, fmt.Errorf("cache: read blob %q: %w", key, err)
	}

	if c.key != nil {
		raw, err = decryptBlob(c.key, raw)
		if err != nil {
			return nil, fmt.Errorf("cache: decrypt blob %q: %w", key, err)
		}
	}

	value, err := UnmarshalBlob(raw)
	if err != nil {
		return nil, fmt.Errorf("cache: decode blob %q: %w", key, err)
	}
	c.fileLRU.Add(hash, value)
	return value, nil
}

// PutFile encodes value as JSON (byte sequences wrapped in the base64
// envelope), optionally encrypts it, and writes it to disk under key's
// hash, replacing any prior blob.
func (c *Cache) PutFile(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	encoded, err := MarshalBlob(value)
	if err != nil {
		return fmt.Errorf("cache: encode blob %q: %w", key, err)
	}

	if c.key != nil {
		encoded, err = encryptBlob(c.key, encoded)
		if err != nil {
			return fmt.Errorf("cache: encrypt blob %q: %w", key, err)
		}
	}

	if err := os.MkdirAll(c.tmpDir, 0o755); err != nil {
		return fmt.Errorf("cache: prepare blob directory: %w", err)
	}
	if err := os.WriteFile(c.filePath(key), encoded, 0o644); err != nil {
		return fmt.Errorf("cache: write blob %q: %w", key, err)
	}

	hash := keyHash(key)
	c.fileLRU.Add(hash, value)
	return nil
}

// Inspection is the result of Inspect, a diagnostic read used by the
// `inspect` CLI subcommand: it reports whether key resolves to an
// entry, a file, both, or neither, without mutating anything.
type Inspection struct {
	Key         string
	Hash        string
	HasEntry    bool
	HasFile     bool
	Entry       interface{}
	FileEncrypted bool
}

// Inspect reports on key without decrypting its blob (so it is safe to
// run without the encryption key set).
func (c *Cache) Inspect(key string) (Inspection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Inspection{}, ErrClosed
	}

	hash := keyHash(key)
	insp := Inspection{Key: key, Hash: hash}

	if v, ok := c.entries[hash]; ok {
		insp.HasEntry = true
		insp.Entry = v
	}

	if raw, err := os.ReadFile(c.filePath(key)); err == nil {
		insp.HasFile = true
		insp.FileEncrypted = isEncryptedBlob(raw)
	} else if !os.IsNotExist(err) {
		return Inspection{}, fmt.Errorf("cache: stat blob %q: %w", key, err)
	}

	return insp, nil
}

func (c *Cache) filePath(key string) string {
	return filepath.Join(c.tmpDir, keyHash(key))
}

// Close flushes entries and blobs to path, if one was given, and
// removes the temporary working directory. Idempotent: a second call
// is a no-op. Every other method returns ErrClosed after Close.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	defer os.RemoveAll(c.tmpDir)

	if c.path == "" {
		return nil
	}

	data, err := yaml.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", entriesFileName, err)
	}
	if err := os.WriteFile(filepath.Join(c.tmpDir, entriesFileName), data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", entriesFileName, err)
	}

	tmpArchive := c.path + ".tmp"
	if err := packArchive(c.tmpDir, tmpArchive); err != nil {
		return err
	}
	if err := os.Rename(tmpArchive, c.path); err != nil {
		return fmt.Errorf("cache: finalize archive %q: %w", c.path, err)
	}
	return nil
}
