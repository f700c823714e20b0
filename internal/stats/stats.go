// Package stats summarises a build result for humans and machines.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/minipack/minipack/internal/builder"
)

type Stats struct {
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Duration         int64     `json:"duration"` // milliseconds
	Modules          []Module  `json:"modules"`
	Chunks           []Chunk   `json:"chunks"`
	Assets           []Asset   `json:"assets"`
	FileDependencies []string  `json:"fileDependencies"`
}

type Module struct {
	ID           string   `json:"id"`
	Path         string   `json:"path"`
	Size         int      `json:"size"`
	Entries      []string `json:"chunks"`
	Dependencies []string `json:"dependencies"`
}

type Chunk struct {
	Name    string   `json:"name"`
	Entry   string   `json:"entry"`
	Modules []string `json:"modules"`
	File    string   `json:"file"`
}

type Asset struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Chunk string `json:"chunk"`
}

// New collects the statistics of r. Files are paired with chunks by position.
func New(r *builder.Result) *Stats {
	s := &Stats{
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Duration:         r.Duration().Milliseconds(),
		Modules:          make([]Module, 0, len(r.Modules)),
		Chunks:           make([]Chunk, 0, len(r.Chunks)),
		Assets:           make([]Asset, 0, len(r.Files)),
		FileDependencies: r.FileDependencies,
	}

	for _, m := range r.Modules {
		deps := make([]string, 0, len(m.Dependencies))
		for _, d := range m.Dependencies {
			deps = append(deps, d.ID)
		}
		s.Modules = append(s.Modules, Module{
			ID:           m.ID,
			Path:         m.Path,
			Size:         len(m.Source),
			Entries:      m.Entries,
			Dependencies: deps,
		})
	}

	for i, c := range r.Chunks {
		ids := make([]string, 0, len(c.Modules))
		for _, m := range c.Modules {
			ids = append(ids, m.ID)
		}
		var file string
		if i < len(r.Files) {
			file = r.Files[i]
			s.Assets = append(s.Assets, Asset{Name: file, Size: len(r.Assets[file]), Chunk: c.Name})
		}
		s.Chunks = append(s.Chunks, Chunk{Name: c.Name, Entry: c.EntryModule.ID, Modules: ids, File: file})
	}

	return s
}

func (s *Stats) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteTable prints one row per asset.
func (s *Stats) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Time: %dms\n", s.Duration)

	table := tablewriter.NewWriter(w)
	table.Header("Asset", "Size", "Chunk", "Modules")
	for i, a := range s.Assets {
		if err := table.Append([]string{a.Name, formatSize(a.Size), a.Chunk, fmt.Sprint(len(s.Chunks[i].Modules))}); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
