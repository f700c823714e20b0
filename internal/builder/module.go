package builder

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/minipack/minipack/internal/extract"
)

type Module struct {
	ID           string
	Path         string
	Source       string
	Dependencies []extract.Dependency

	// Entries holds the names of the entries that reach this module, in the
	// order they first did.
	Entries []string
}

func (m *Module) HasEntry(name string) bool {
	return slices.Contains(m.Entries, name)
}

type Chunk struct {
	Name        string
	EntryModule *Module
	Modules     []*Module
}

// Filename expands the [name] placeholders of template with the chunk name.
func (c *Chunk) Filename(template string) string {
	return strings.ReplaceAll(template, "[name]", c.Name)
}

// assemble collects the modules of table reached by entry name, in table
// order.
func assemble(name string, entry *Module, table []*Module) *Chunk {
	c := &Chunk{Name: name, EntryModule: entry}
	for _, m := range table {
		if m.HasEntry(name) {
			c.Modules = append(c.Modules, m)
		}
	}
	return c
}

// ModuleID returns the canonical id of the module at path: its slash-separated
// path relative to root, prefixed with "./".
func ModuleID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return "./" + filepath.ToSlash(rel)
}
