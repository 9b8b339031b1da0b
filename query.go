package pennyone

import (
	"sort"
	"strings"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

// QueryBuilder answers read-only questions about one graph snapshot. Paths
// may be given absolute or root-relative.
type QueryBuilder struct {
	graph    *model.CompiledGraph
	registry *paths.Registry
}

// Match fields reported by Search.
const (
	MatchIntent   = "intent"
	MatchPath     = "path"
	MatchEndpoint = "endpoint"
)

// SearchResult is one file matched by Search.
type SearchResult struct {
	Path      string       `json:"path"`
	RelPath   string       `json:"relPath"`
	Intent    string       `json:"intent,omitempty"`
	Endpoints []string     `json:"endpoints,omitempty"`
	Scores    model.Scores `json:"scores"`
	MatchedOn []string     `json:"matchedOn"`
}

// Search returns files whose intent, root-relative path or any endpoint
// contains query, case-insensitively, in path order. An empty query
// matches nothing.
func (q *QueryBuilder) Search(query string) []SearchResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || q.graph == nil {
		return nil
	}

	var out []SearchResult
	for _, f := range q.graph.Files {
		rel := q.registry.Relative(f.Path)
		var matched []string
		if f.Intent != "" && strings.Contains(strings.ToLower(f.Intent), needle) {
			matched = append(matched, MatchIntent)
		}
		if strings.Contains(strings.ToLower(rel), needle) {
			matched = append(matched, MatchPath)
		}
		for _, ep := range f.Endpoints {
			if strings.Contains(strings.ToLower(ep), needle) {
				matched = append(matched, MatchEndpoint)
				break
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, SearchResult{
			Path:      f.Path,
			RelPath:   rel,
			Intent:    f.Intent,
			Endpoints: f.Endpoints,
			Scores:    f.Scores,
			MatchedOn: matched,
		})
	}
	return out
}

// File returns the record for path.
func (q *QueryBuilder) File(path string) (model.FileRecord, bool) {
	return q.graph.File(q.registry.Normalize(path))
}

// Dependencies returns the files path imports.
func (q *QueryBuilder) Dependencies(path string) []string {
	rec, ok := q.File(path)
	if !ok {
		return nil
	}
	return append([]string(nil), rec.Dependencies...)
}

// Dependents returns the files that import path, in path order.
func (q *QueryBuilder) Dependents(path string) []string {
	if q.graph == nil {
		return nil
	}
	target := q.registry.Normalize(path)
	var out []string
	for _, f := range q.graph.Files {
		for _, d := range f.Dependencies {
			if d == target {
				out = append(out, f.Path)
				break
			}
		}
	}
	return out
}

// Hotspots returns up to n files with non-zero gravity, most visited first.
// Ties are broken by path. n <= 0 means no limit.
func (q *QueryBuilder) Hotspots(n int) []model.FileRecord {
	if q.graph == nil {
		return nil
	}
	var out []model.FileRecord
	for _, f := range q.graph.Files {
		if f.Scores.Gravity > 0 {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Scores.Gravity != out[j].Scores.Gravity {
			return out[i].Scores.Gravity > out[j].Scores.Gravity
		}
		return out[i].Path < out[j].Path
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
