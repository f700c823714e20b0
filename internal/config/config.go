package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/transform"
)

// DefaultEntryName names the entry of a configuration whose entry is a single
// path.
const DefaultEntryName = "main"

// Root is the top-level configuration structure of minipack.
type Root struct {
	Context string   `json:"context,omitempty"`
	Entry   Entry    `json:"entry,omitempty"`
	Output  Output   `json:"output,omitzero"`
	Resolve Resolve  `json:"resolve,omitzero"`
	Module  Module   `json:"module,omitzero"`
	Plugins []Plugin `json:"plugins,omitempty"`
	Watch   bool     `json:"watch,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Plugin names a built-in plugin that taps the compile hooks.
type Plugin string

// Entry maps entry names to module paths. In configuration files it is either
// such a mapping or a single path, which is named DefaultEntryName.
type Entry map[string]string

func (e *Entry) UnmarshalYAML(bs []byte) error {
	var v any
	if err := yaml.Unmarshal(bs, &v); err != nil {
		return err
	}
	return e.unmarshal(v)
}

func (e *Entry) UnmarshalJSON(bs []byte) error {
	var v any
	if err := json.Unmarshal(bs, &v); err != nil {
		return err
	}
	return e.unmarshal(v)
}

func (e *Entry) unmarshal(v any) error {
	switch v := v.(type) {
	case nil:
		*e = nil
	case string:
		*e = Entry{DefaultEntryName: v}
	case map[string]any:
		m := make(Entry, len(v))
		for name, path := range v {
			s, ok := path.(string)
			if !ok {
				return fmt.Errorf("entry %q: path must be a string", name)
			}
			m[name] = s
		}
		*e = m
	default:
		return errors.New("entry must be a path or a mapping of names to paths")
	}
	return nil
}

// Entries returns the entries sorted by name. Builds visit entries in this
// order, which makes the module table independent of how configuration files
// were merged.
func (e Entry) Entries() []builder.Entry {
	out := make([]builder.Entry, 0, len(e))
	for _, name := range slices.Sorted(maps.Keys(e)) {
		out = append(out, builder.Entry{Name: name, Path: e[name]})
	}
	return out
}

type Output struct {
	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type Resolve struct {
	Extensions []string `json:"extensions,omitempty"`
	Modules    []string `json:"modules,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

type Module struct {
	Rules []Rule `json:"rules,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Rule selects a transform chain for the modules whose absolute path matches
// Test and none of Exclude.
type Rule struct {
	Test    string   `json:"test" required:"true"`
	Exclude []string `json:"exclude,omitempty"`
	Use     []string `json:"use" required:"true" minItems:"1"`

	_ struct{} `additionalProperties:"false"`
}

func (r *Rule) validate() error {
	for _, p := range append([]string{r.Test}, r.Exclude...) {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := root.validate(); err != nil {
		return nil, err
	}

	return &root, nil
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}
	if config == nil {
		config = map[string]any{}
	}

	return rootSchema.Validate(config)
}

func (r *Root) validate() error {
	var errs []error
	for i := range r.Module.Rules {
		if err := r.Module.Rules[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("module.rules[%d]: %w", i, err))
		}
	}
	for name, path := range r.Entry {
		if name == "" || path == "" {
			errs = append(errs, fmt.Errorf("entry %q: name and path must not be empty", name))
		}
	}
	return errors.Join(errs...)
}

// Overrides are configuration values given on the command line. They take
// precedence over configuration files.
type Overrides struct {
	Context        string
	Entries        []string // name=path, or a bare path for DefaultEntryName
	OutputPath     string
	OutputFilename string
	Extensions     []string
}

// Apply merges o into r.
func (r *Root) Apply(o Overrides) error {
	if o.Context != "" {
		r.Context = o.Context
	}
	if len(o.Entries) > 0 {
		entry := Entry{}
		for _, kv := range o.Entries {
			name, path, ok := strings.Cut(kv, "=")
			if !ok {
				name, path = DefaultEntryName, kv
			}
			if name == "" || path == "" {
				return fmt.Errorf("invalid entry %q: expected name=path", kv)
			}
			entry[name] = path
		}
		r.Entry = entry
	}
	if o.OutputPath != "" {
		r.Output.Path = o.OutputPath
	}
	if o.OutputFilename != "" {
		r.Output.Filename = o.OutputFilename
	}
	if len(o.Extensions) > 0 {
		r.Resolve.Extensions = o.Extensions
	}
	return nil
}

// Options turns r into build options. A relative context is taken relative to
// base, typically the directory of the configuration file.
func (r *Root) Options(base string) (builder.Options, error) {
	if len(r.Entry) == 0 {
		return builder.Options{}, errors.New("no entry configured")
	}

	context := r.Context
	if context == "" {
		context = base
	} else if !filepath.IsAbs(context) {
		context = filepath.Join(base, context)
	}

	rules := make([]transform.Rule, len(r.Module.Rules))
	for i, rule := range r.Module.Rules {
		rules[i] = transform.Rule{Test: rule.Test, Exclude: rule.Exclude, Use: rule.Use}
	}

	return builder.Options{
		Context:    context,
		Entries:    r.Entry.Entries(),
		OutputPath: r.Output.Path,
		Filename:   r.Output.Filename,
		Extensions: r.Resolve.Extensions,
		Modules:    r.Resolve.Modules,
		Rules:      rules,
	}, nil
}
