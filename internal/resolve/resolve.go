// Package resolve maps module specifiers found in source files to absolute
// file paths.
//
// Relative specifiers ("./x", "../x") and absolute paths are resolved against
// the requesting module's directory, probing the configured extensions in
// order. Any other specifier is looked up in the package directories
// (node_modules by default) of the requesting directory and its ancestors.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrModuleNotFound = errors.New("module not found")

// NotFoundError is returned when a relative specifier matches no file on disk.
type NotFoundError struct {
	Specifier string
	Dir       string
	Tried     []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %s (tried %s)", e.Specifier, e.Dir, strings.Join(e.Tried, ", "))
}

func (*NotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// ExternalError is returned when a package specifier cannot be found in any
// package directory.
type ExternalError struct {
	Specifier string
	Searched  []string
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("cannot resolve package %q (searched %s)", e.Specifier, strings.Join(e.Searched, ", "))
}

var DefaultModules = []string{"node_modules"}

type Resolver struct {
	Extensions []string
	Modules    []string
}

func New(extensions []string) *Resolver {
	return &Resolver{Extensions: extensions, Modules: DefaultModules}
}

func (r *Resolver) WithModules(dirs []string) *Resolver {
	if len(dirs) > 0 {
		r.Modules = dirs
	}
	return r
}

// Resolve resolves specifier relative to fromDir with the default package
// directories.
func Resolve(specifier, fromDir string, extensions []string) (string, error) {
	return New(extensions).Resolve(specifier, fromDir)
}

// IsRelative reports whether specifier names a path rather than a package.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, ".") || filepath.IsAbs(specifier)
}

func (r *Resolver) Resolve(specifier, fromDir string) (string, error) {
	if !IsRelative(specifier) {
		return r.resolvePackage(specifier, fromDir)
	}

	base := specifier
	if !filepath.IsAbs(base) {
		base = filepath.Join(fromDir, specifier)
	}

	p, tried := r.tryFile(base)
	if p == "" {
		return "", &NotFoundError{Specifier: specifier, Dir: fromDir, Tried: tried}
	}
	return p, nil
}

// tryFile probes base, then base+ext for every extension in order. The first
// regular file wins.
func (r *Resolver) tryFile(base string) (string, []string) {
	tried := make([]string, 0, len(r.Extensions)+1)
	for _, candidate := range append([]string{""}, r.Extensions...) {
		p := base + candidate
		tried = append(tried, p)
		if isFile(p) {
			return p, tried
		}
	}
	return "", tried
}

func (r *Resolver) resolvePackage(specifier, fromDir string) (string, error) {
	var searched []string
	dir := fromDir
	for {
		for _, m := range r.Modules {
			modulesDir := filepath.Join(dir, m)
			searched = append(searched, modulesDir)
			if p := r.tryPackage(filepath.Join(modulesDir, filepath.FromSlash(specifier))); p != "" {
				return p, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", &ExternalError{Specifier: specifier, Searched: searched}
}

// tryPackage resolves a path inside a package directory: as a file, then as a
// directory with a package.json "main" field, then as a directory index.
func (r *Resolver) tryPackage(base string) string {
	if p, _ := r.tryFile(base); p != "" {
		return p
	}

	st, err := os.Stat(base)
	if err != nil || !st.IsDir() {
		return ""
	}

	if main := packageMain(base); main != "" {
		if p, _ := r.tryFile(filepath.Join(base, main)); p != "" {
			return p
		}
		if p, _ := r.tryFile(filepath.Join(base, main, "index")); p != "" {
			return p
		}
	}

	p, _ := r.tryFile(filepath.Join(base, "index"))
	return p
}

func packageMain(dir string) string {
	bs, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(bs, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
