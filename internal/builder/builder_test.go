package builder_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/test/tempfs"
	"github.com/minipack/minipack/internal/transform"
)

func build(t *testing.T, root string, entries []builder.Entry, exts ...string) (*builder.Result, error) {
	t.Helper()
	if len(exts) == 0 {
		exts = []string{".js"}
	}
	return builder.New().
		WithContext(root).
		WithEntries(entries).
		WithResolver(resolve.New(exts)).
		Build(context.Background())
}

type moduleSummary struct {
	ID      string
	Entries []string
}

func summarize(mods []*builder.Module) []moduleSummary {
	out := make([]moduleSummary, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleSummary{ID: m.ID, Entries: m.Entries})
	}
	return out
}

func chunkIDs(c *builder.Chunk) []string {
	ids := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestBuilder(t *testing.T) {
	cases := []struct {
		note       string
		files      map[string]string
		entries    []builder.Entry
		expModules []moduleSummary
		expChunks  map[string][]string
	}{
		{
			note: "shared module",
			files: map[string]string{
				"src/a.js":      `const s = require("./shared.js"); console.log("a", s);`,
				"src/b.js":      `const s = require("./shared"); console.log("b", s);`,
				"src/shared.js": `module.exports = "shared";`,
			},
			entries: []builder.Entry{{Name: "a", Path: "./src/a.js"}, {Name: "b", Path: "./src/b.js"}},
			expModules: []moduleSummary{
				{ID: "./src/a.js", Entries: []string{"a"}},
				{ID: "./src/shared.js", Entries: []string{"a", "b"}},
				{ID: "./src/b.js", Entries: []string{"b"}},
			},
			expChunks: map[string][]string{
				"a": {"./src/a.js", "./src/shared.js"},
				"b": {"./src/shared.js", "./src/b.js"},
			},
		},
		{
			note: "depth first order",
			files: map[string]string{
				"index.js": `require("./b"); require("./c");`,
				"b.js":     `require("./d");`,
				"c.js":     `require("./d");`,
				"d.js":     ``,
			},
			entries: []builder.Entry{{Name: "main", Path: "index.js"}},
			expModules: []moduleSummary{
				{ID: "./index.js", Entries: []string{"main"}},
				{ID: "./b.js", Entries: []string{"main"}},
				{ID: "./d.js", Entries: []string{"main"}},
				{ID: "./c.js", Entries: []string{"main"}},
			},
			expChunks: map[string][]string{
				"main": {"./index.js", "./b.js", "./d.js", "./c.js"},
			},
		},
		{
			note: "shared closure is tagged",
			files: map[string]string{
				"a.js":      `require("./shared");`,
				"b.js":      `require("./shared");`,
				"shared.js": `require("./util");`,
				"util.js":   ``,
			},
			entries: []builder.Entry{{Name: "a", Path: "a.js"}, {Name: "b", Path: "b.js"}},
			expModules: []moduleSummary{
				{ID: "./a.js", Entries: []string{"a"}},
				{ID: "./shared.js", Entries: []string{"a", "b"}},
				{ID: "./util.js", Entries: []string{"a", "b"}},
				{ID: "./b.js", Entries: []string{"b"}},
			},
			expChunks: map[string][]string{
				"a": {"./a.js", "./shared.js", "./util.js"},
				"b": {"./shared.js", "./util.js", "./b.js"},
			},
		},
		{
			note: "circular requires",
			files: map[string]string{
				"a.js": `require("./b");`,
				"b.js": `require("./a");`,
			},
			entries: []builder.Entry{{Name: "main", Path: "a.js"}},
			expModules: []moduleSummary{
				{ID: "./a.js", Entries: []string{"main"}},
				{ID: "./b.js", Entries: []string{"main"}},
			},
			expChunks: map[string][]string{
				"main": {"./a.js", "./b.js"},
			},
		},
		{
			note: "entry reached by another entry",
			files: map[string]string{
				"a.js": `require("./b");`,
				"b.js": ``,
			},
			entries: []builder.Entry{{Name: "a", Path: "a.js"}, {Name: "b", Path: "b.js"}},
			expModules: []moduleSummary{
				{ID: "./a.js", Entries: []string{"a"}},
				{ID: "./b.js", Entries: []string{"a", "b"}},
			},
			expChunks: map[string][]string{
				"a": {"./a.js", "./b.js"},
				"b": {"./b.js"},
			},
		},
		{
			note: "package dependency",
			files: map[string]string{
				"src/index.js":                  `require("pkg");`,
				"node_modules/pkg/package.json": `{"main": "main.js"}`,
				"node_modules/pkg/main.js":      `require("./helper");`,
				"node_modules/pkg/helper.js":    ``,
			},
			entries: []builder.Entry{{Name: "main", Path: "src/index.js"}},
			expModules: []moduleSummary{
				{ID: "./src/index.js", Entries: []string{"main"}},
				{ID: "./node_modules/pkg/main.js", Entries: []string{"main"}},
				{ID: "./node_modules/pkg/helper.js", Entries: []string{"main"}},
			},
			expChunks: map[string][]string{
				"main": {"./src/index.js", "./node_modules/pkg/main.js", "./node_modules/pkg/helper.js"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			tempfs.WithTempFS(t, tc.files, func(root string) {
				res, err := build(t, root, tc.entries)
				if err != nil {
					t.Fatal(err)
				}

				if diff := cmp.Diff(tc.expModules, summarize(res.Modules)); diff != "" {
					t.Errorf("modules mismatch (-want +got):\n%s", diff)
				}

				chunks := map[string][]string{}
				for _, c := range res.Chunks {
					chunks[c.Name] = chunkIDs(c)
					if !c.EntryModule.HasEntry(c.Name) {
						t.Errorf("entry module of chunk %q is not tagged with it", c.Name)
					}
				}
				if diff := cmp.Diff(tc.expChunks, chunks); diff != "" {
					t.Errorf("chunks mismatch (-want +got):\n%s", diff)
				}
			})
		})
	}
}

func TestBuilderEndToEnd(t *testing.T) {
	files := map[string]string{
		"src/a.js":      "const shared = require('./shared.js');\nconsole.log('entry a', shared);\n",
		"src/b.js":      "const shared = require('./shared.js');\nconsole.log('entry b', shared);\n",
		"src/shared.js": "module.exports = 'shared';\n",
	}

	tempfs.WithTempFS(t, files, func(root string) {
		res, err := build(t, root, []builder.Entry{{Name: "a", Path: "./src/a.js"}, {Name: "b", Path: "./src/b.js"}})
		if err != nil {
			t.Fatal(err)
		}

		if len(res.Modules) != 3 {
			t.Fatalf("expected 3 modules, got %d", len(res.Modules))
		}
		if diff := cmp.Diff([]string{"a.js", "b.js"}, res.Files); diff != "" {
			t.Fatalf("files mismatch (-want +got):\n%s", diff)
		}

		expDeps := []string{
			filepath.Join(root, "src", "a.js"),
			filepath.Join(root, "src", "b.js"),
			filepath.Join(root, "src", "shared.js"),
		}
		if diff := cmp.Diff(expDeps, res.FileDependencies); diff != "" {
			t.Fatalf("file dependencies mismatch (-want +got):\n%s", diff)
		}

		for _, name := range []string{"a", "b"} {
			asset := res.Assets[name+".js"]
			if strings.Count(asset, `"./src/shared.js": function (module, exports, require) {`) != 1 {
				t.Errorf("asset %s: expected exactly one shared factory:\n%s", name, asset)
			}
			if !strings.Contains(asset, "console.log('entry "+name+"', shared);") {
				t.Errorf("asset %s: entry code not inlined:\n%s", name, asset)
			}
			if strings.Contains(asset, `"./src/`+name+`.js": function`) {
				t.Errorf("asset %s: entry module must not be registered as a factory", name)
			}
			if strings.Contains(asset, "require('./shared.js')") {
				t.Errorf("asset %s: specifier was not rewritten", name)
			}
		}
	})
}

func TestBuilderDeterministic(t *testing.T) {
	files := map[string]string{
		"a.js": `require("./x"); require("./y");`,
		"b.js": `require("./y"); require("./x");`,
		"x.js": `module.exports = require("./z");`,
		"y.js": `module.exports = require("./z");`,
		"z.js": `module.exports = 1;`,
	}
	entries := []builder.Entry{{Name: "a", Path: "a.js"}, {Name: "b", Path: "b.js"}}

	tempfs.WithTempFS(t, files, func(root string) {
		first, err := build(t, root, entries)
		if err != nil {
			t.Fatal(err)
		}
		for range 5 {
			next, err := build(t, root, entries)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(first.Assets, next.Assets); diff != "" {
				t.Fatalf("assets differ between builds (-first +next):\n%s", diff)
			}
		}
	})
}

func TestBuilderErrors(t *testing.T) {
	cases := []struct {
		note    string
		files   map[string]string
		entry   string
		rules   []transform.Rule
		expKind string
	}{
		{
			note:    "missing entry",
			files:   map[string]string{"src/a.js": ``},
			entry:   "./src/missing.js",
			expKind: builder.KindFileRead,
		},
		{
			note:    "missing dependency",
			files:   map[string]string{"a.js": `require("./nope");`},
			entry:   "a.js",
			expKind: builder.KindModuleNotFound,
		},
		{
			note:    "missing package",
			files:   map[string]string{"a.js": `require("left-pad");`},
			entry:   "a.js",
			expKind: builder.KindExternalResolution,
		},
		{
			note:    "syntax error in dependency",
			files:   map[string]string{"a.js": `require("./b");`, "b.js": `function (`},
			entry:   "a.js",
			expKind: builder.KindParse,
		},
		{
			note:    "failing transform",
			files:   map[string]string{"a.js": `require("./data.json");`, "data.json": `{nope}`},
			entry:   "a.js",
			rules:   []transform.Rule{{Test: "**/*.json", Use: []string{"json"}}},
			expKind: builder.KindTransform,
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			tempfs.WithTempFS(t, tc.files, func(root string) {
				p, err := transform.New(tc.rules)
				if err != nil {
					t.Fatal(err)
				}
				res, err := builder.New().
					WithContext(root).
					WithEntries([]builder.Entry{{Name: "main", Path: tc.entry}}).
					WithResolver(resolve.New([]string{".js", ".json"})).
					WithPipeline(p).
					Build(context.Background())
				if err == nil {
					t.Fatal("expected error")
				}
				if res != nil {
					t.Fatal("expected no result on error")
				}
				if act := builder.ErrorKind(err); act != tc.expKind {
					t.Fatalf("expected error kind %q, got %q (%v)", tc.expKind, act, err)
				}
			})
		})
	}
}

func TestBuilderMissingEntryIsFileReadError(t *testing.T) {
	tempfs.WithTempFS(t, map[string]string{"keep": ""}, func(root string) {
		_, err := build(t, root, []builder.Entry{{Name: "main", Path: "./src/missing.js"}})
		var fr *builder.FileReadError
		if !errors.As(err, &fr) {
			t.Fatalf("expected FileReadError, got %v", err)
		}
		if fr.Path != filepath.Join(root, "src", "missing.js") {
			t.Fatalf("unexpected path %q", fr.Path)
		}
	})
}

func TestBuilderCancelledIsInternal(t *testing.T) {
	tempfs.WithTempFS(t, map[string]string{"index.js": `require("./dep");`, "dep.js": ``}, func(root string) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := builder.New().
			WithContext(root).
			WithEntries([]builder.Entry{{Name: "main", Path: "index.js"}}).
			WithResolver(resolve.New([]string{".js"})).
			Build(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if kind := builder.ErrorKind(err); kind != builder.KindInternal {
			t.Fatalf("expected kind %q, got %q", builder.KindInternal, kind)
		}
	})
}

func TestBuilderTransforms(t *testing.T) {
	files := map[string]string{
		"index.js":    `const cfg = require("./config.yaml"); const d = require("./data");`,
		"config.yaml": "name: minipack\n",
		"data.json":   `{"n": 1}`,
	}
	tempfs.WithTempFS(t, files, func(root string) {
		p, err := transform.New([]transform.Rule{
			{Test: "**/*.yaml", Use: []string{"yaml"}},
			{Test: "**/*.json", Use: []string{"json"}},
			{Test: "**/*.js", Use: []string{"strict"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		res, err := builder.New().
			WithContext(root).
			WithEntries([]builder.Entry{{Name: "main", Path: "index.js"}}).
			WithResolver(resolve.New([]string{".js", ".json"})).
			WithPipeline(p).
			WithFilename("[name].bundle.js").
			Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		asset, ok := res.Assets["main.bundle.js"]
		if !ok {
			t.Fatalf("expected main.bundle.js, got %v", res.Files)
		}
		for _, exp := range []string{
			`"use strict";`,
			`require("./config.yaml")`,
			`require("./data.json")`,
			`module.exports = {"n": 1};`,
			"minipack",
		} {
			if !strings.Contains(asset, exp) {
				t.Errorf("expected asset to contain %q:\n%s", exp, asset)
			}
		}
	})
}

func TestBuilderDuplicateOutput(t *testing.T) {
	tempfs.WithTempFS(t, map[string]string{"a.js": ``, "b.js": ``}, func(root string) {
		_, err := builder.New().
			WithContext(root).
			WithEntries([]builder.Entry{{Name: "a", Path: "a.js"}, {Name: "b", Path: "b.js"}}).
			WithFilename("bundle.js").
			Build(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

// The loader tests execute the emitted bundles and need node.
func runNode(t *testing.T, script string) string {
	t.Helper()
	node, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not installed")
	}
	path := filepath.Join(t.TempDir(), "bundle.js")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := exec.Command(node, path).CombinedOutput()
	if err != nil {
		t.Fatalf("node failed: %v\n%s\n---\n%s", err, out, script)
	}
	return strings.TrimSpace(string(out))
}

func TestLoaderExecutesModulesOnce(t *testing.T) {
	files := map[string]string{
		"index.js":   `require("./x"); require("./y"); console.log(globalThis.factoryCalls, require("./counter").n);`,
		"x.js":       `module.exports = require("./counter");`,
		"y.js":       `module.exports = require("./counter");`,
		"counter.js": `globalThis.factoryCalls = (globalThis.factoryCalls || 0) + 1; exports.n = 42;`,
	}
	tempfs.WithTempFS(t, files, func(root string) {
		res, err := build(t, root, []builder.Entry{{Name: "main", Path: "index.js"}})
		if err != nil {
			t.Fatal(err)
		}
		if out := runNode(t, res.Assets["main.js"]); out != "1 42" {
			t.Fatalf("expected factory to run once, got output %q", out)
		}
	})
}

func TestLoaderCircularPartialExports(t *testing.T) {
	files := map[string]string{
		"index.js": `const a = require("./a"); console.log(a.done, a.sawB);`,
		"a.js":     `exports.done = false; const b = require("./b"); exports.sawB = b.sawA; exports.done = true;`,
		"b.js":     `const a = require("./a"); exports.sawA = a.done;`,
	}
	tempfs.WithTempFS(t, files, func(root string) {
		res, err := build(t, root, []builder.Entry{{Name: "main", Path: "index.js"}})
		if err != nil {
			t.Fatal(err)
		}
		if out := runNode(t, res.Assets["main.js"]); out != "true false" {
			t.Fatalf("unexpected output %q", out)
		}
	})
}

func TestChunkFilename(t *testing.T) {
	cases := []struct {
		note     string
		template string
		exp      string
	}{
		{note: "default", template: builder.DefaultFilename, exp: "main.js"},
		{note: "suffix", template: "[name].bundle.js", exp: "main.bundle.js"},
		{note: "every occurrence", template: "[name]/[name].js", exp: "main/main.js"},
		{note: "no placeholder", template: "bundle.js", exp: "bundle.js"},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if act := (&builder.Chunk{Name: "main"}).Filename(tc.template); act != tc.exp {
				t.Fatalf("expected %q, got %q", tc.exp, act)
			}
		})
	}
}
