// Package report renders per-file Quarto (.qmd) reports with YAML front
// matter into the stats directory.
package report

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jward/pennyone/internal/atomicfile"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

// frontMatter is the YAML header of a report.
type frontMatter struct {
	Title        string   `yaml:"title"`
	Path         string   `yaml:"path"`
	Language     string   `yaml:"language"`
	LOC          int      `yaml:"loc"`
	Complexity   int      `yaml:"complexity"`
	LogicScore   float64  `yaml:"logic_score"`
	StyleScore   float64  `yaml:"style_score"`
	DocScore     float64  `yaml:"documentation_score"`
	OverallScore float64  `yaml:"overall_score"`
	Gravity      int      `yaml:"gravity"`
	IsAPI        bool     `yaml:"is_api,omitempty"`
	Endpoints    []string `yaml:"endpoints,omitempty"`
	Partial      bool     `yaml:"partial,omitempty"`
}

// Writer writes reports into one flat directory.
type Writer struct {
	dir      string
	registry *paths.Registry
}

// NewWriter returns a Writer rooted at dir. File names are derived from
// paths relative to the registry's root.
func NewWriter(dir string, registry *paths.Registry) *Writer {
	return &Writer{dir: dir, registry: registry}
}

// FileName flattens a root-relative path into a report file name:
// src/api/users.ts becomes src-api-users.ts.qmd.
func FileName(rel string) string {
	return strings.ReplaceAll(strings.TrimPrefix(rel, "/"), "/", "-") + ".qmd"
}

// Write renders rec and writes it atomically, returning the report path.
func (w *Writer) Write(rec model.FileRecord) (string, error) {
	data, err := Render(rec)
	if err != nil {
		return "", err
	}
	out := filepath.Join(w.dir, FileName(w.registry.Relative(rec.Path)))
	if err := atomicfile.Write(out, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", rec.Path, err)
	}
	return out, nil
}

// WriteAll writes a report per record and returns how many were written.
// It stops at the first failure.
func (w *Writer) WriteAll(records []model.FileRecord) (int, error) {
	for i, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return i, err
		}
	}
	return len(records), nil
}

// Render produces the report document for rec.
func Render(rec model.FileRecord) ([]byte, error) {
	fm := frontMatter{
		Title:        path.Base(rec.Path),
		Path:         rec.Path,
		Language:     rec.Language,
		LOC:          rec.LineCount,
		Complexity:   rec.DecisionCount,
		LogicScore:   round2(rec.Scores.Logic),
		StyleScore:   round2(rec.Scores.Style),
		DocScore:     round2(rec.Scores.Documentation),
		OverallScore: round2(rec.Scores.Overall),
		Gravity:      rec.Scores.Gravity,
		IsAPI:        rec.IsAPI,
		Endpoints:    rec.Endpoints,
		Partial:      rec.Partial,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("report: marshal front matter for %s: %w", rec.Path, err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	b.WriteString("## Intent\n")
	if rec.Intent != "" {
		b.WriteString(rec.Intent + "\n")
	} else {
		b.WriteString("No stated intent.\n")
	}

	b.WriteString("\n## Matrix Breakdown\n")
	fmt.Fprintf(&b, "- **Logic**: %.1f/10\n", rec.Scores.Logic)
	fmt.Fprintf(&b, "- **Style**: %.1f/10\n", rec.Scores.Style)
	fmt.Fprintf(&b, "- **Documentation**: %.1f/10\n", rec.Scores.Documentation)
	fmt.Fprintf(&b, "- **Overall**: %.1f/10\n", rec.Scores.Overall)

	b.WriteString("\n## Dependencies\n")
	switch {
	case len(rec.Dependencies) > 0:
		for _, d := range rec.Dependencies {
			fmt.Fprintf(&b, "- `%s`\n", d)
		}
	case len(rec.Imports) > 0:
		for _, imp := range rec.Imports {
			fmt.Fprintf(&b, "- `%s` (unresolved)\n", imp.Source)
		}
	default:
		b.WriteString("Minimal internal dependencies.\n")
	}

	b.WriteString("\n## Exports\n")
	if len(rec.Exports) > 0 {
		for _, e := range rec.Exports {
			fmt.Fprintf(&b, "- `%s`\n", e)
		}
	} else {
		b.WriteString("Internal logic only.\n")
	}
	return b.Bytes(), nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
