package builder

import (
	"cmp"
	"os"
	"path/filepath"

	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/transform"
)

const DefaultOutputPath = "dist"

// Options is everything a build needs, after configuration files and flags
// have been merged.
type Options struct {
	Context    string
	Entries    []Entry
	OutputPath string
	Filename   string
	Extensions []string
	Modules    []string
	Rules      []transform.Rule
}

// Root returns the absolute build context.
func (o *Options) Root() (string, error) {
	if o.Context == "" {
		return os.Getwd()
	}
	return filepath.Abs(o.Context)
}

// OutputDir returns the absolute output directory. Relative output paths are
// taken relative to the build context.
func (o *Options) OutputDir() (string, error) {
	out := cmp.Or(o.OutputPath, DefaultOutputPath)
	if filepath.IsAbs(out) {
		return out, nil
	}
	root, err := o.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, out), nil
}

// Builder returns a fresh builder for o. Unknown transform identifiers and
// invalid rule patterns are reported here, before anything is read.
func (o *Options) Builder(log *logging.Logger) (*Builder, error) {
	pipeline, err := transform.New(o.Rules)
	if err != nil {
		return nil, err
	}

	exts := o.Extensions
	if len(exts) == 0 {
		exts = []string{".js"}
	}
	return New().
		WithContext(o.Context).
		WithEntries(o.Entries).
		WithFilename(o.Filename).
		WithResolver(resolve.New(exts).WithModules(o.Modules)).
		WithPipeline(pipeline).
		WithLogger(log), nil
}
