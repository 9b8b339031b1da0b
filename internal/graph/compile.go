// Package graph resolves raw imports into dependency edges and compiles the
// per-file records of one scan into a versioned graph artifact.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jward/pennyone/internal/atomicfile"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

// Options configure Compile.
type Options struct {
	Registry *paths.Registry

	// Gate, when set, lets unchanged files keep their prior edges.
	Gate *Gate

	// Now stamps ScannedAt. Zero means time.Now.
	Now time.Time

	// GoModule is the project's Go module path, from GoModulePath.
	GoModule string
}

// Compile resolves every record's imports against one snapshot of the
// record paths and returns the sorted graph. The input slice is not
// modified.
func Compile(records []model.FileRecord, opts Options) *model.CompiledGraph {
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.Path] = true
	}
	resolver := NewResolver(opts.Registry, known, opts.GoModule)

	files := make([]model.FileRecord, 0, len(records))
	var totalLines int
	var scoreSum float64
	for _, r := range records {
		rec := r.Clone()

		var candidates []string
		if prior, ok := opts.Gate.reusable(rec.Path, known); ok {
			candidates = prior
		} else {
			for _, edge := range rec.Imports {
				if target, ok := resolver.Resolve(rec.Path, edge); ok {
					candidates = append(candidates, target)
				}
			}
		}
		rec.Dependencies = dedupeEdges(rec.Path, candidates, known)

		files = append(files, rec)
		totalLines += rec.LineCount
		scoreSum += rec.Scores.Overall
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	summary := model.Summary{TotalFiles: len(files), TotalLines: totalLines}
	if len(files) > 0 {
		summary.AverageScore = scoreSum / float64(len(files))
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &model.CompiledGraph{
		Version:   model.GraphVersion,
		ScannedAt: now.UTC(),
		Files:     files,
		Summary:   summary,
	}
}

func (g *Gate) reusable(path string, known map[string]bool) ([]string, bool) {
	if g == nil {
		return nil, false
	}
	return g.ReusableEdges(path, known)
}

// dedupeEdges drops self edges and unknown targets and keeps the first
// occurrence of each target.
func dedupeEdges(source string, targets []string, known map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t == source || !known[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// WriteAtomic writes the graph as indented JSON, replacing path atomically.
func WriteAtomic(path string, g *model.CompiledGraph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: marshal: %w", err)
	}
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return fmt.Errorf("graph: write %s: %w", path, err)
	}
	return nil
}

// Load reads a graph artifact. A missing file returns nil, nil.
func Load(path string) (*model.CompiledGraph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: read %s: %w", path, err)
	}
	var g model.CompiledGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("graph: decode %s: %w", path, err)
	}
	return &g, nil
}
