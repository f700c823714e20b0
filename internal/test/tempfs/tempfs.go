// Package tempfs materialises file maps on disk for tests.
package tempfs

import (
	"os"
	"path/filepath"
	"testing"
)

// WithTempFS writes files (slash-separated paths relative to the root) into a
// fresh temporary directory and calls f with the directory's absolute path.
func WithTempFS(t testing.TB, files map[string]string, f func(root string)) {
	t.Helper()

	root := t.TempDir()
	// macOS hands out symlinked temp dirs, canonical ids must not depend on that.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	for p, content := range files {
		path := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	f(root)
}
