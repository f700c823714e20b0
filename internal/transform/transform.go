// Package transform applies the configured per-module transform chains.
//
// Every rule whose pattern matches a module's path contributes its chain; the
// chains are concatenated in rule order and applied right to left, so the
// last transform listed receives the raw text first.
package transform

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

type Rule struct {
	Test    string
	Exclude []string
	Use     []string
}

// Error reports a transform that failed, or that is not registered.
type Error struct {
	Path      string
	Rule      int
	Pattern   string
	Transform string
	Err       error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule %d (%s): transform %q: %v", e.Rule, e.Pattern, e.Transform, e.Err)
	}
	return fmt.Sprintf("transform %q (rule %d, %s) failed on %s: %v", e.Transform, e.Rule, e.Pattern, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var ErrUnregistered = errors.New("not registered")

type step struct {
	rule *rule
	name string
	fn   Func
}

type rule struct {
	index   int
	pattern string
	test    glob.Glob
	exclude []glob.Glob
	steps   []step
}

func (r *rule) matches(path string) bool {
	if !r.test.Match(path) {
		return false
	}
	for _, ex := range r.exclude {
		if ex.Match(path) {
			return false
		}
	}
	return true
}

type Pipeline struct {
	rules []*rule
}

// New compiles rules against the transform registry. Unknown transform
// identifiers are reported here rather than at build time.
func New(rules []Rule) (*Pipeline, error) {
	p := &Pipeline{rules: make([]*rule, 0, len(rules))}
	for i, r := range rules {
		test, err := CompilePattern(r.Test)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid test pattern %q: %w", i, r.Test, err)
		}
		compiled := &rule{index: i, pattern: r.Test, test: test}

		for _, ex := range r.Exclude {
			g, err := CompilePattern(ex)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid exclude pattern %q: %w", i, ex, err)
			}
			compiled.exclude = append(compiled.exclude, g)
		}

		for _, name := range r.Use {
			fn, ok := Lookup(name)
			if !ok {
				return nil, &Error{Rule: i, Pattern: r.Test, Transform: name, Err: ErrUnregistered}
			}
			compiled.steps = append(compiled.steps, step{rule: compiled, name: name, fn: fn})
		}
		p.rules = append(p.rules, compiled)
	}
	return p, nil
}

// CompilePattern compiles a path pattern; "*" stays within one path segment
// and "**" crosses segments.
func CompilePattern(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern, '/')
}

// Apply transforms src, the contents of the module at path.
func (p *Pipeline) Apply(path, src string) (string, error) {
	if p == nil {
		return src, nil
	}
	slashed := filepath.ToSlash(path)

	var chain []step
	for _, r := range p.rules {
		if r.matches(slashed) {
			chain = append(chain, r.steps...)
		}
	}

	for i := len(chain) - 1; i >= 0; i-- {
		var err error
		src, err = chain[i].run(src)
		if err != nil {
			return "", &Error{Path: path, Rule: chain[i].rule.index, Pattern: chain[i].rule.pattern, Transform: chain[i].name, Err: err}
		}
	}
	return src, nil
}

func (s step) run(src string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(src)
}
