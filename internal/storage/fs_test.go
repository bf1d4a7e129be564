package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempGallery(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

// minimal valid-looking PNG payload for storage tests; storage never decodes.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestWriteAndRead(t *testing.T) {
	s := tempGallery(t)
	if err := s.Write("sketch.png", pngBytes); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("sketch.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(pngBytes) {
		t.Errorf("content mismatch: got %v", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempGallery(t)
	if err := s.Write("a/b/c.png", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("del.png", pngBytes)
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.png"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("old.png", pngBytes)
	if err := s.Move("old.png", "sub/new.png"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.png")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != string(pngBytes) {
		t.Errorf("content = %v", got)
	}
	if _, err := s.Read("old.png"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestListOnlyImageFiles(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("a.png", pngBytes)
	_ = s.Write("sub/b.jpg", []byte("b"))
	_ = s.Write("readme.txt", []byte("not an image"))
	_ = s.Write("notes.md", []byte("also not"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("missing checksum for %s", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempGallery(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that overwriting leaves no temp litter behind
	// (the rename is atomic on POSIX).
	s := tempGallery(t)
	_ = s.Write("atomic.png", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.png", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.png")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".easel-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/easel-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "easel-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
