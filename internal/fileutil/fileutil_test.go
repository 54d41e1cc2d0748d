package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateUniqueSuffixes(t *testing.T) {
	dir := t.TempDir()
	want := []string{"shot.jpg", "shot_001.jpg", "shot_002.jpg"}
	for _, name := range want {
		f, path, err := CreateUnique(dir, "shot", ".jpg")
		if err != nil {
			t.Fatal(err)
		}
		_ = f.Close()
		if filepath.Base(path) != name {
			t.Fatalf("got %s, want %s", filepath.Base(path), name)
		}
	}
}

func TestCreateUniqueMissingDir(t *testing.T) {
	if _, _, err := CreateUnique(filepath.Join(t.TempDir(), "missing"), "shot", ".jpg"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NonEmpty(empty); err == nil {
		t.Fatal("expected error for empty file")
	}
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(full, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	size, err := NonEmpty(full)
	if err != nil || size != 4 {
		t.Fatalf("NonEmpty = %d, %v", size, err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := WriteFileAtomic(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Fatalf("content mismatch: %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}
}
