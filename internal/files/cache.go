package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeChunkSize bounds how much of an upload is buffered in memory at once.
const writeChunkSize = 32 * 1024

// Cache is the on-disk byte store for uploaded files. Entries are keyed
// strictly by generated file id, never by user-supplied filename, so a
// hostile filename can not escape the cache directory.
type Cache struct {
	dir string
}

// NewCache creates a byte cache rooted at dir. The directory is created
// lazily on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Write streams r into the cache entry for id and returns the total bytes
// written. The data goes through a temp file and an atomic rename so a
// partially written entry is never observable under the final name.
func (c *Cache) Write(id string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return 0, fmt.Errorf("create cache directory: %w", err)
	}

	finalPath := filepath.Join(c.dir, id)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp cache file: %w", err)
	}

	written, err := io.CopyBuffer(f, r, make([]byte, writeChunkSize))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write cache entry: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("sync cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("close cache entry: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename cache entry: %w", err)
	}

	return written, nil
}

// Exists reports whether the cache holds bytes for id.
func (c *Cache) Exists(id string) bool {
	_, err := os.Stat(filepath.Join(c.dir, id))
	return err == nil
}

// Path returns the on-disk location of the cache entry for id.
// The entry may not exist; callers check with Exists first.
func (c *Cache) Path(id string) string {
	return filepath.Join(c.dir, id)
}

// Open returns a reader over the cache entry for id.
// The caller must close it.
func (c *Cache) Open(id string) (*os.File, error) {
	f, err := os.Open(filepath.Join(c.dir, id))
	if err != nil {
		return nil, fmt.Errorf("open cache entry %s: %w", id, err)
	}
	return f, nil
}

// Remove deletes the cache entry for id. An already-absent entry is success.
func (c *Cache) Remove(id string) error {
	err := os.Remove(filepath.Join(c.dir, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache entry %s: %w", id, err)
	}
	return nil
}
