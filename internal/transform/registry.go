package transform

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Func turns module source text into new source text. Implementations must be
// pure.
type Func func(src string) (string, error)

var registry = map[string]Func{
	"raw":    raw,
	"strict": strict,
	"json":   jsonModule,
	"yaml":   yamlModule,
	"text":   textModule,
	"trim":   trim,
}

// Lookup returns the transform registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered transform identifiers in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

func raw(src string) (string, error) {
	return src, nil
}

func strict(src string) (string, error) {
	if strings.HasPrefix(strings.TrimSpace(src), `"use strict"`) {
		return src, nil
	}
	return "\"use strict\";\n" + src, nil
}

func jsonModule(src string) (string, error) {
	src = strings.TrimSpace(src)
	if !json.Valid([]byte(src)) {
		return "", errors.New("invalid JSON")
	}
	return "module.exports = " + src + ";", nil
}

func yamlModule(src string) (string, error) {
	bs, err := yaml.YAMLToJSON([]byte(src))
	if err != nil {
		return "", err
	}
	return "module.exports = " + strings.TrimSpace(string(bs)) + ";", nil
}

func textModule(src string) (string, error) {
	bs, err := json.Marshal(src)
	if err != nil {
		return "", err
	}
	return "module.exports = " + string(bs) + ";", nil
}

func trim(src string) (string, error) {
	lines := strings.Split(src, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	return strings.Join(lines, "\n"), nil
}
