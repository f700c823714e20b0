package service

import (
	"context"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akedrou/textdiff"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/hooks"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/metrics"
	"github.com/minipack/minipack/internal/pool"
	"github.com/minipack/minipack/internal/progress"
	"github.com/minipack/minipack/internal/storage"
	"github.com/minipack/minipack/internal/watch"
)

const defaultWorkers = 4

// Callback receives the outcome of every build run by a Compiler. On error
// result is nil; tracked always holds the files whose change should trigger
// the next build.
type Callback func(err error, result *builder.Result, tracked []string)

// Compiler sequences builds: it fires the lifecycle hooks, runs a fresh
// builder, writes the assets and reports to the callback. Every call starts
// from an empty module table.
type Compiler struct {
	opts     builder.Options
	log      *logging.Logger
	hooks    *hooks.Hooks
	storage  storage.AssetStorage
	progress io.Writer
	workers  int
	seq      atomic.Uint64

	mu      sync.Mutex
	tracked []string
}

func NewCompiler(opts builder.Options, log *logging.Logger) *Compiler {
	if log == nil {
		log = logging.NewNoOpLogger()
	}
	return &Compiler{
		opts:    opts,
		log:     log,
		hooks:   hooks.New(),
		workers: defaultWorkers,
	}
}

func (c *Compiler) Hooks() *hooks.Hooks {
	return c.hooks
}

// WithPlugins applies plugins to the compiler's hooks, in order.
func (c *Compiler) WithPlugins(plugins ...hooks.Plugin) *Compiler {
	for _, p := range plugins {
		p.Apply(c.hooks)
	}
	return c
}

// WithStorage overrides where assets are written. The default is the
// configured output directory.
func (c *Compiler) WithStorage(s storage.AssetStorage) *Compiler {
	c.storage = s
	return c
}

// WithProgress renders a progress bar to w while assets are written.
func (c *Compiler) WithProgress(w io.Writer) *Compiler {
	c.progress = w
	return c
}

func (c *Compiler) WithWorkers(n int) *Compiler {
	if n > 0 {
		c.workers = n
	}
	return c
}

// Compile runs one build without writing anything.
func (c *Compiler) Compile(ctx context.Context) (_ *builder.Result, err error) {
	start := time.Now()
	metrics.BuildStarted(start)

	b := &hooks.Build{ID: c.seq.Add(1), Start: start}
	c.hooks.Run.Call(b)
	defer func() {
		b.End, b.Err = time.Now(), err
		c.hooks.Done.Call(b)
	}()

	res, err := c.build(ctx)
	if err != nil {
		metrics.BuildFailed(start, builder.ErrorKind(err))
		return nil, err
	}

	chunks := make(map[string]int, len(res.Chunks))
	for _, ch := range res.Chunks {
		chunks[ch.Name] = len(ch.Modules)
	}
	metrics.BuildSucceeded(start, len(res.Modules), chunks)
	return res, nil
}

func (c *Compiler) build(ctx context.Context) (*builder.Result, error) {
	b, err := c.opts.Builder(c.log)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx)
}

// Run builds once, writes the assets and reports to cb. The returned error is
// the one passed to cb.
func (c *Compiler) Run(ctx context.Context, cb Callback) error {
	return c.run(ctx, nil, cb)
}

// run is Run with track, when set, receiving the tracked files before any
// asset is written.
func (c *Compiler) run(ctx context.Context, track func([]string), cb Callback) error {
	c.log.Debugf("build started")

	res, err := c.Compile(ctx)
	if err == nil {
		if track != nil {
			track(res.FileDependencies)
		}
		err = c.write(ctx, res)
	}
	if err != nil {
		c.log.Warnf("build failed: %v", err)
		tracked := c.failedTracked()
		if track != nil {
			track(tracked)
		}
		if cb != nil {
			cb(err, nil, tracked)
		}
		return err
	}

	c.mu.Lock()
	c.tracked = res.FileDependencies
	c.mu.Unlock()

	c.log.Infof("built %d modules into %d assets in %v", len(res.Modules), len(res.Files), res.Duration().Round(time.Millisecond))
	if cb != nil {
		cb(nil, res, res.FileDependencies)
	}
	return nil
}

// failedTracked returns what to watch after a failed build: the files of the
// last successful build plus the entries, so that fixing either retriggers.
func (c *Compiler) failedTracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := make(map[string]struct{}, len(c.tracked)+len(c.opts.Entries))
	for _, p := range c.tracked {
		set[p] = struct{}{}
	}
	if root, err := c.opts.Root(); err == nil {
		for _, e := range c.opts.Entries {
			p := e.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(root, p)
			}
			set[p] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

func (c *Compiler) assetStorage() (storage.AssetStorage, error) {
	if c.storage != nil {
		return c.storage, nil
	}
	dir, err := c.opts.OutputDir()
	if err != nil {
		return nil, err
	}
	return storage.NewFileSystemStorage(dir), nil
}

func (c *Compiler) write(ctx context.Context, res *builder.Result) error {
	s, err := c.assetStorage()
	if err != nil {
		return err
	}

	var bar *progress.Bar
	if c.progress != nil {
		bar = progress.New(c.progress, len(res.Files), "writing assets")
		defer bar.Finish()
	}

	for _, name := range res.Files {
		bar.Describe("writing " + name)
		if err := s.Write(ctx, name, res.Assets[name]); err != nil {
			return err
		}
		c.log.Debugf("wrote %s", name)
		bar.Add(1)
	}
	return nil
}

// Watch runs a build, then rebuilds on every change of a tracked file until
// ctx is done. Each change schedules its own full build on the worker pool;
// changes are not coalesced and concurrent builds may overwrite each other's
// assets. A failed initial build does not stop the watch.
func (c *Compiler) Watch(ctx context.Context, cb Callback) error {
	w, err := watch.New(c.log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := pool.New(ctx, c.workers)
	defer func() {
		cancel()
		p.Wait()
	}()

	// The tracked set is replaced before assets are written, so a change
	// made as soon as an asset appears is not missed.
	_ = c.run(ctx, w.Track, cb)

	return w.Run(ctx, func(path string) {
		c.log.Infof("%s changed, rebuilding", path)
		p.Go("rebuild", func(ctx context.Context) {
			_ = c.run(ctx, w.Track, cb)
		})
	})
}

// AssetDiff is the unified diff between a stored asset and its fresh build.
type AssetDiff struct {
	Name string
	Diff string
}

// Check builds in memory and compares every asset with the stored one. It
// returns the assets that differ or are missing.
func (c *Compiler) Check(ctx context.Context) ([]AssetDiff, error) {
	res, err := c.Compile(ctx)
	if err != nil {
		return nil, err
	}
	s, err := c.assetStorage()
	if err != nil {
		return nil, err
	}

	var diffs []AssetDiff
	for _, name := range res.Files {
		stored, _, err := s.Read(ctx, name)
		if err != nil {
			return nil, err
		}
		if stored == res.Assets[name] {
			continue
		}
		diffs = append(diffs, AssetDiff{
			Name: name,
			Diff: textdiff.Unified(name+" (on disk)", name+" (built)", stored, res.Assets[name]),
		})
	}
	return diffs, nil
}
