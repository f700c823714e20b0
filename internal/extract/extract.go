// Package extract finds the static require() calls of a JavaScript module,
// resolves them, and rewrites each specifier to the canonical id of the
// module it names.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

const requireIdent = "require"

type Dependency struct {
	ID   string
	Path string
}

type Resolver interface {
	Resolve(specifier, fromDir string) (string, error)
}

// ParseError reports source that is not valid JavaScript.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Line > 0 {
		return fmt.Sprintf("failed to parse %s at %d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: syntax error at %d:%d", e.Path, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Result struct {
	Source       string
	Dependencies []Dependency
}

// Extractor is not safe for concurrent use; the underlying parser keeps state
// between calls.
type Extractor struct {
	parser   *sitter.Parser
	resolver Resolver
	id       func(path string) string
}

// New returns an Extractor that resolves specifiers with r and names resolved
// modules with id.
func New(r Resolver, id func(path string) string) *Extractor {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	return &Extractor{parser: parser, resolver: r, id: id}
}

type edit struct {
	start, end uint32
	text       string
}

// Extract parses src, the transformed text of the module at path. Each
// require("...") call contributes one dependency, in source order. A done ctx
// aborts with ctx.Err(), which is not a ParseError.
func (e *Extractor) Extract(ctx context.Context, path string, src []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := e.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := errorPosition(root)
		return nil, &ParseError{Path: path, Line: line, Column: col}
	}

	var (
		deps  []Dependency
		edits []edit
		walk  func(n *sitter.Node) error
	)
	dir := filepath.Dir(path)

	walk = func(n *sitter.Node) error {
		if n.Type() == "call_expression" {
			if callee := n.ChildByFieldName("function"); callee != nil && callee.Type() == "identifier" && callee.Content(src) == requireIdent {
				arg := singleStringArgument(n.ChildByFieldName("arguments"))
				if arg == nil {
					return nil // dynamic require, left alone
				}
				specifier, err := literalValue(arg, src)
				if err != nil {
					p := arg.StartPoint()
					return &ParseError{Path: path, Line: int(p.Row) + 1, Column: int(p.Column) + 1, Err: err}
				}

				resolved, err := e.resolver.Resolve(specifier, dir)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				dep := Dependency{ID: e.id(resolved), Path: resolved}
				deps = append(deps, dep)

				quoted, err := json.Marshal(dep.ID)
				if err != nil {
					return err
				}
				edits = append(edits, edit{start: arg.StartByte(), end: arg.EndByte(), text: string(quoted)})
				return nil
			}
		}

		for i := range int(n.NamedChildCount()) {
			if err := walk(n.NamedChild(i)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}

	return &Result{Source: apply(src, edits), Dependencies: deps}, nil
}

func singleStringArgument(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	var found *sitter.Node
	for i := range int(args.NamedChildCount()) {
		c := args.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if found != nil || c.Type() != "string" {
			return nil
		}
		found = c
	}
	return found
}

// literalValue decodes the string literal n from its fragments and escape
// sequences.
func literalValue(n *sitter.Node, src []byte) (string, error) {
	if n.NamedChildCount() == 0 {
		lit := n.Content(src)
		if len(lit) < 2 || strings.Contains(lit, `\`) {
			return "", fmt.Errorf("malformed string literal %s", lit)
		}
		return lit[1 : len(lit)-1], nil
	}

	var units []rune
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "string_fragment":
			units = append(units, []rune(c.Content(src))...)
		case "escape_sequence":
			r, err := unescape(c.Content(src))
			if err != nil {
				return "", err
			}
			units = append(units, r...)
		default:
			return "", fmt.Errorf("unexpected %s in string literal", c.Type())
		}
	}
	return joinSurrogates(units), nil
}

// unescape decodes one escape sequence, backslash included. \u escapes may
// yield lone UTF-16 surrogates; joinSurrogates pairs them up.
func unescape(seq string) ([]rune, error) {
	body := strings.TrimPrefix(seq, `\`)
	if body == "" {
		return nil, fmt.Errorf("invalid escape sequence %q", seq)
	}

	hex := func(digits string, limit uint64) ([]rune, error) {
		v, err := strconv.ParseUint(digits, 16, 32)
		if err != nil || v > limit {
			return nil, fmt.Errorf("invalid escape sequence %q", seq)
		}
		return []rune{rune(v)}, nil
	}

	switch c := body[0]; {
	case c == '\n' || c == '\r' || body == "\u2028" || body == "\u2029":
		return nil, nil // line continuation
	case strings.HasPrefix(body, "u{") && strings.HasSuffix(body, "}"):
		return hex(body[2:len(body)-1], utf8.MaxRune)
	case c == 'u' && len(body) == 5:
		return hex(body[1:], 0xffff)
	case c == 'x' && len(body) == 3:
		return hex(body[1:], 0xff)
	case c == 'u' || c == 'x':
		return nil, fmt.Errorf("invalid escape sequence %q", seq)
	case c >= '0' && c <= '7':
		v, err := strconv.ParseUint(body, 8, 32)
		if err != nil || v > 0xff {
			return nil, fmt.Errorf("invalid escape sequence %q", seq)
		}
		return []rune{rune(v)}, nil
	}

	switch body {
	case "n":
		return []rune{'\n'}, nil
	case "t":
		return []rune{'\t'}, nil
	case "r":
		return []rune{'\r'}, nil
	case "b":
		return []rune{'\b'}, nil
	case "f":
		return []rune{'\f'}, nil
	case "v":
		return []rune{'\v'}, nil
	}
	return []rune(body), nil
}

func joinSurrogates(units []rune) string {
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		if utf16.IsSurrogate(units[i]) && i+1 < len(units) {
			if r := utf16.DecodeRune(units[i], units[i+1]); r != utf8.RuneError {
				out = append(out, r)
				i++
				continue
			}
		}
		out = append(out, units[i])
	}
	return string(out)
}

func apply(src []byte, edits []edit) string {
	if len(edits) == 0 {
		return string(src)
	}
	slices.SortFunc(edits, func(a, b edit) int { return int(a.start) - int(b.start) })

	var buf bytes.Buffer
	buf.Grow(len(src))
	var last uint32
	for _, ed := range edits {
		buf.Write(src[last:ed.start])
		buf.WriteString(ed.text)
		last = ed.end
	}
	buf.Write(src[last:])
	return buf.String()
}

// errorPosition returns the 1-based position of the first error or missing
// node below n.
func errorPosition(n *sitter.Node) (int, int) {
	if n.IsError() || n.IsMissing() {
		p := n.StartPoint()
		return int(p.Row) + 1, int(p.Column) + 1
	}
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			return errorPosition(c)
		}
	}
	p := n.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}
