package byteio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestMemorySourceReadAt(t *testing.T) {
	src := NewMemorySource([]byte("hello world"))
	buf := make([]byte, 5)
	n, err := src.ReadAt(buf, 6)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 5 || string(buf) != "world" {
		t.Fatalf("got %q", buf[:n])
	}
	if src.Len() != 11 {
		t.Fatalf("Len() = %d", src.Len())
	}
}

func TestFileSourceOverAfero(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data.csv", []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src, err := OpenFile(fs, "/data.csv")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer src.Close()

	if src.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", src.Len())
	}
	buf := make([]byte, 3)
	n, err := src.ReadAt(buf, 4)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf[:n]) != "1,2" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := OpenFile(fs, "/missing.csv"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestMappedFileCacheSharesAndUnmaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cache, err := NewMappedFileCache(8)
	if err != nil {
		t.Fatalf("NewMappedFileCache: %v", err)
	}

	h1, err := cache.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h2, err := cache.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h1.Source() != h2.Source() {
		t.Fatalf("expected both handles to share the same mapped source")
	}

	buf := make([]byte, 4)
	if _, err := h1.Source().ReadAt(buf, 2); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "2345" {
		t.Fatalf("got %q", buf)
	}

	if err := h1.Release(); err != nil {
		t.Fatalf("Release h1: %v", err)
	}
	// h2 still holds a reference; reading through it must still work.
	if _, err := h2.Source().ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt after first release: %v", err)
	}
	if err := h2.Release(); err != nil {
		t.Fatalf("Release h2: %v", err)
	}
}

func TestMappedFileCacheEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cache, err := NewMappedFileCache(4)
	if err != nil {
		t.Fatalf("NewMappedFileCache: %v", err)
	}
	h, err := cache.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()
	if h.Source().Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Source().Len())
	}
}
