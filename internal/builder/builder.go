package builder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/minipack/minipack/internal/extract"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/transform"
)

const DefaultFilename = "[name].js"

// Entry is a named root module. Path is relative to the build context unless
// absolute.
type Entry struct {
	Name string
	Path string
}

// Result is the outcome of one build. It is not modified after Build returns.
type Result struct {
	Modules []*Module
	Chunks  []*Chunk

	// Assets maps output filenames to bundle text; Files lists the same
	// filenames in entry order.
	Assets map[string]string
	Files  []string

	// FileDependencies holds the absolute paths read or resolved during the
	// build, sorted.
	FileDependencies []string

	StartTime time.Time
	EndTime   time.Time
}

func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

type Builder struct {
	context  string
	entries  []Entry
	filename string
	resolver *resolve.Resolver
	pipeline *transform.Pipeline
	log      *logging.Logger
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) WithContext(dir string) *Builder {
	b.context = dir
	return b
}

func (b *Builder) WithEntries(entries []Entry) *Builder {
	b.entries = entries
	return b
}

func (b *Builder) WithFilename(template string) *Builder {
	b.filename = template
	return b
}

func (b *Builder) WithResolver(r *resolve.Resolver) *Builder {
	b.resolver = r
	return b
}

func (b *Builder) WithPipeline(p *transform.Pipeline) *Builder {
	b.pipeline = p
	return b
}

func (b *Builder) WithLogger(log *logging.Logger) *Builder {
	b.log = log
	return b
}

// compilation is the state of a single build. It is owned by one goroutine
// and discarded when the build ends.
type compilation struct {
	root      string
	resolver  *resolve.Resolver
	pipeline  *transform.Pipeline
	extractor *extract.Extractor
	log       *logging.Logger

	modules  []*Module
	byID     map[string]*Module
	fileDeps map[string]struct{}
}

// Build resolves every entry into the module graph, assembles one chunk per
// entry and emits its bundle. Any error aborts the whole build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, err := b.root()
	if err != nil {
		return nil, err
	}
	if len(b.entries) == 0 {
		return nil, errors.New("no entries configured")
	}

	c := &compilation{
		root:     root,
		resolver: cmp.Or(b.resolver, resolve.New([]string{".js"})),
		pipeline: b.pipeline,
		log:      cmp.Or(b.log, logging.NewNoOpLogger()),
		byID:     make(map[string]*Module),
		fileDeps: make(map[string]struct{}),
	}
	c.extractor = extract.New(c.resolver, c.id)

	var chunks []*Chunk
	for _, entry := range b.entries {
		path := entry.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		c.fileDeps[path] = struct{}{}

		m, err := c.buildEntry(ctx, entry.Name, path)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry.Name, err)
		}
		chunks = append(chunks, assemble(entry.Name, m, c.modules))
	}

	result := &Result{
		Modules:          c.modules,
		Chunks:           chunks,
		Assets:           make(map[string]string, len(chunks)),
		FileDependencies: slices.Sorted(maps.Keys(c.fileDeps)),
		StartTime:        start,
	}

	filename := cmp.Or(b.filename, DefaultFilename)
	for _, chunk := range chunks {
		name := chunk.Filename(filename)
		if _, ok := result.Assets[name]; ok {
			return nil, fmt.Errorf("entries produce the same output file %q", name)
		}
		result.Files = append(result.Files, name)
		result.Assets[name] = Emit(chunk)
	}

	result.EndTime = time.Now()
	return result, nil
}

func (b *Builder) root() (string, error) {
	if b.context == "" {
		return os.Getwd()
	}
	return filepath.Abs(b.context)
}

func (c *compilation) id(path string) string {
	return ModuleID(c.root, path)
}

func (c *compilation) buildEntry(ctx context.Context, name, path string) (*Module, error) {
	if m, ok := c.byID[c.id(path)]; ok {
		c.tag(m, name)
		return m, nil
	}
	return c.buildModule(ctx, name, path)
}

// buildModule materialises the module at path and, depth first, every
// dependency not yet in the table. The module is added to the table before
// its dependencies are visited, so circular requires terminate.
func (c *compilation) buildModule(ctx context.Context, entry, path string) (*Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}

	src, err := c.pipeline.Apply(path, string(raw))
	if err != nil {
		return nil, err
	}

	res, err := c.extractor.Extract(ctx, path, []byte(src))
	if err != nil {
		return nil, err
	}

	m := &Module{
		ID:           c.id(path),
		Path:         path,
		Source:       res.Source,
		Dependencies: res.Dependencies,
		Entries:      []string{entry},
	}
	c.modules = append(c.modules, m)
	c.byID[m.ID] = m
	c.log.Debugf("module %s (entry %s, %d dependencies)", m.ID, entry, len(m.Dependencies))

	for _, dep := range m.Dependencies {
		c.fileDeps[dep.Path] = struct{}{}

		if existing, ok := c.byID[dep.ID]; ok {
			c.tag(existing, entry)
			continue
		}
		if _, err := c.buildModule(ctx, entry, dep.Path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// tag adds entry to m and to everything m depends on.
func (c *compilation) tag(m *Module, entry string) {
	if m.HasEntry(entry) {
		return
	}
	m.Entries = append(m.Entries, entry)
	for _, dep := range m.Dependencies {
		if d, ok := c.byID[dep.ID]; ok {
			c.tag(d, entry)
		}
	}
}
