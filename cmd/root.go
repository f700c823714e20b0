// Package cmd implements the minipack command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/config"
	"github.com/minipack/minipack/internal/hooks"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/service"
)

const defaultConfigFile = "minipack.yaml"

var RootCommand = &cobra.Command{
	Use:           "minipack",
	Short:         "Bundle JavaScript modules into one self-contained file per entry",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// buildParams are the flags shared by the commands that run builds.
type buildParams struct {
	configFiles []string
	strictMerge bool
	overrides   config.Overrides
	logLevel    logging.Level
	logFormat   logging.Format
}

func (p *buildParams) addFlags(flags *pflag.FlagSet) {
	flags.StringSliceVarP(&p.configFiles, "config", "c", []string{defaultConfigFile}, "configuration files or directories, merged in order")
	flags.BoolVar(&p.strictMerge, "strict-merge", false, "fail when configuration files set the same key to different values")
	flags.StringVar(&p.overrides.Context, "context", "", "project root; module ids are relative to it")
	flags.StringArrayVar(&p.overrides.Entries, "entry", nil, "entry as name=path, or a single path (repeatable)")
	flags.StringVar(&p.overrides.OutputPath, "output-path", "", "output directory")
	flags.StringVar(&p.overrides.OutputFilename, "output-filename", "", "output filename template, [name] is the entry name")
	flags.StringSliceVar(&p.overrides.Extensions, "extensions", nil, "extensions probed for extensionless specifiers, in order")
	flags.Var(enumflag.New(&p.logLevel, "level", logging.LevelIds, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn or error")
	flags.Var(enumflag.New(&p.logFormat, "format", logging.FormatIds, enumflag.EnumCaseInsensitive), "log-format", "log format: console or json")
}

func (p *buildParams) logger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: p.logLevel, Format: p.logFormat, Output: os.Stderr})
}

// load merges the configuration files, applies the command line overrides
// and returns the build options together with the configured plugins. The
// default configuration file may be absent when entries are given as flags.
func (p *buildParams) load() (*config.Root, builder.Options, error) {
	root := &config.Root{}
	base, err := os.Getwd()
	if err != nil {
		return nil, builder.Options{}, err
	}

	files := p.configFiles
	if len(files) == 1 && files[0] == defaultConfigFile && len(p.overrides.Entries) > 0 {
		if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
			files = nil
		}
	}

	if len(files) > 0 {
		bs, err := config.Merge(files, p.strictMerge)
		if err != nil {
			return nil, builder.Options{}, err
		}
		root, err = config.Parse(bs)
		if err != nil {
			return nil, builder.Options{}, fmt.Errorf("invalid configuration: %w", err)
		}
		if fi, err := os.Stat(files[0]); err == nil {
			dir := files[0]
			if !fi.IsDir() {
				dir = filepath.Dir(dir)
			}
			if base, err = filepath.Abs(dir); err != nil {
				return nil, builder.Options{}, err
			}
		}
	}

	if err := root.Apply(p.overrides); err != nil {
		return nil, builder.Options{}, err
	}

	opts, err := root.Options(base)
	if err != nil {
		return nil, builder.Options{}, err
	}
	return root, opts, nil
}

// compiler returns a compiler for the loaded configuration with its plugins
// applied.
func (p *buildParams) compiler(log *logging.Logger) (*service.Compiler, *config.Root, error) {
	root, opts, err := p.load()
	if err != nil {
		return nil, nil, err
	}

	c := service.NewCompiler(opts, log)
	for _, name := range root.Plugins {
		plugin, err := hooks.Lookup(string(name), log)
		if err != nil {
			return nil, nil, err
		}
		c.WithPlugins(plugin)
	}
	return c, root, nil
}
