package files

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestCacheWriteReadRemove(t *testing.T) {
	cache := NewCache(t.TempDir())

	payload := bytes.Repeat([]byte("abc123"), 20000) // larger than one chunk
	written, err := cache.Write("file-1", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if written != int64(len(payload)) {
		t.Fatalf("written = %d, want %d", written, len(payload))
	}
	if !cache.Exists("file-1") {
		t.Fatal("entry missing after write")
	}

	got, err := os.ReadFile(cache.Path("file-1"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("read back bytes differ from written bytes")
	}

	if err := cache.Remove("file-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if cache.Exists("file-1") {
		t.Fatal("entry still present after remove")
	}
}

func TestCacheRemoveIdempotent(t *testing.T) {
	cache := NewCache(t.TempDir())
	if err := cache.Remove("file-never-existed"); err != nil {
		t.Fatalf("remove of absent entry should succeed, got %v", err)
	}
}

func TestCacheCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/cache"
	cache := NewCache(dir)
	if _, err := cache.Write("file-1", strings.NewReader("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCacheWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)
	if _, err := cache.Write("file-1", strings.NewReader("data")); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}
