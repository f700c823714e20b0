// Package storage writes emitted assets to the output directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AssetStorage persists bundle assets by filename.
type AssetStorage interface {
	Write(ctx context.Context, name, content string) error
	Read(ctx context.Context, name string) (string, bool, error)
}

// FileSystemStorage stores assets as files below a directory. Writes are
// not coordinated: concurrent builds writing the same asset leave the last
// writer's content.
type FileSystemStorage struct {
	dir string
}

func NewFileSystemStorage(dir string) *FileSystemStorage {
	return &FileSystemStorage{dir: dir}
}

// Path returns the location of the asset name.
func (s *FileSystemStorage) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

func (s *FileSystemStorage) Write(_ context.Context, name, content string) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return nil
}

// Read returns the stored content of name. The boolean is false if no such
// asset exists.
func (s *FileSystemStorage) Read(_ context.Context, name string) (string, bool, error) {
	bs, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return string(bs), true, nil
}
