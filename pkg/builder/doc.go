// Package builder bundles CommonJS-style JavaScript modules into one
// self-contained script per entry point.
//
// Starting at every entry, the builder follows each static require("...")
// call, runs the matching transform rules over the module source, rewrites the
// require argument to the module's canonical id and records the module in a
// table shared by all entries. Each entry then yields one chunk with every
// module it can reach, emitted as a script with a private module registry and
// a memoizing require.
//
// # Basic Usage
//
//	import "github.com/minipack/minipack/pkg/builder"
//
//	opts := builder.Options{
//	    Context: "/path/to/project",
//	    Entries: []builder.Entry{
//	        {Name: "a", Path: "./src/a.js"},
//	        {Name: "b", Path: "./src/b.js"},
//	    },
//	    OutputPath: "dist",
//	    Extensions: []string{".js", ".json"},
//	}
//
//	// Build in memory
//	result, err := builder.Build(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Assets["a.js"])
//
// # Writing Assets
//
// A Compiler runs builds and writes the assets of successful builds to the
// output directory. The callback receives the error or the result together
// with the files the build depends on:
//
//	c := builder.NewCompiler(opts)
//	err := c.Run(ctx, func(err error, result *builder.Result, tracked []string) {
//	    // ...
//	})
//
// Watch keeps rebuilding whenever one of the tracked files changes. Every
// change starts a fresh build from the entries; nothing is reused between
// builds.
//
// # Transforms
//
// Rules select transforms by glob patterns on the module's absolute,
// slash-separated path. The transforms of all matching rules are concatenated
// in rule order and applied last to first:
//
//	opts.Rules = []builder.Rule{
//	    {Test: "**/*.json", Use: []string{"json"}},
//	    {Test: "**/src/**/*.js", Exclude: []string{"**/*.min.js"}, Use: []string{"strict", "trim"}},
//	}
//
// The available transforms are listed by Transforms.
//
// # Hooks
//
// Plugins tap the Run hook, fired before every build, and the Done hook, fired
// after it, in registration order. Both receive the same *BuildInfo for one
// compile:
//
//	c.WithPlugins(builder.PluginFunc(func(h *builder.Hooks) {
//	    h.Done.Tap("notify", func(b *builder.BuildInfo) {
//	        fmt.Println("build finished in", b.Duration(), "error:", b.Err)
//	    })
//	}))
//
// # Errors
//
// Any failure aborts the whole build and no asset is written. ErrorKind
// classifies an error as one of the KindX constants.
//
// # Circular Dependencies
//
// A module is recorded before its dependencies are visited, so circular
// requires terminate. At run time a module that requires one of its
// dependents observes that module's partially populated exports.
package builder
