package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minipack/minipack/internal/storage"
)

func TestFileSystemStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	s := storage.NewFileSystemStorage(dir)

	if _, ok, err := s.Read(t.Context(), "main.js"); err != nil || ok {
		t.Fatalf("expected missing asset, got ok=%v err=%v", ok, err)
	}

	if err := s.Write(t.Context(), "js/main.js", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(t.Context(), "js/main.js", "second"); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(filepath.Join(dir, "js", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "second" {
		t.Fatalf("expected last write to win, got %q", bs)
	}

	content, ok, err := s.Read(t.Context(), "js/main.js")
	if err != nil || !ok || content != "second" {
		t.Fatalf("unexpected read: %q %v %v", content, ok, err)
	}
}
