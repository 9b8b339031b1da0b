package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

func sampleRecord() model.FileRecord {
	return model.FileRecord{
		Path:          "src/api/users.ts",
		Language:      "typescript",
		LineCount:     40,
		DecisionCount: 4,
		Scores:        model.Scores{Logic: 8.123, Style: 7, Documentation: 5.5, Overall: 6.789, Gravity: 3},
		Intent:        "Serves the user listing.",
		Exports:       []string{"listUsers"},
		Endpoints:     []string{"[GET] /users"},
		IsAPI:         true,
		Dependencies:  []string{"src/db.ts"},
	}
}

func splitFrontMatter(t *testing.T, doc []byte) ([]byte, []byte) {
	t.Helper()
	require.True(t, bytes.HasPrefix(doc, []byte("---\n")))
	rest := doc[4:]
	idx := bytes.Index(rest, []byte("\n---\n"))
	require.GreaterOrEqual(t, idx, 0)
	return rest[:idx+1], rest[idx+5:]
}

func TestFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "src-api-users.ts.qmd", FileName("src/api/users.ts"))
	assert.Equal(t, "main.go.qmd", FileName("main.go"))
}

func TestRender_FrontMatter(t *testing.T) {
	t.Parallel()

	doc, err := Render(sampleRecord())
	require.NoError(t, err)
	header, body := splitFrontMatter(t, doc)

	var fm frontMatter
	require.NoError(t, yaml.Unmarshal(header, &fm))
	assert.Equal(t, "users.ts", fm.Title)
	assert.Equal(t, 40, fm.LOC)
	assert.Equal(t, 4, fm.Complexity)
	assert.InDelta(t, 8.12, fm.LogicScore, 1e-9)
	assert.InDelta(t, 6.79, fm.OverallScore, 1e-9)
	assert.True(t, fm.IsAPI)
	assert.Equal(t, []string{"[GET] /users"}, fm.Endpoints)

	assert.Contains(t, string(body), "Serves the user listing.")
	assert.Contains(t, string(body), "- `src/db.ts`")
	assert.Contains(t, string(body), "- `listUsers`")
}

func TestRender_EmptySections(t *testing.T) {
	t.Parallel()

	doc, err := Render(model.FileRecord{Path: "a.py", Language: "python"})
	require.NoError(t, err)
	assert.Contains(t, string(doc), "No stated intent.")
	assert.Contains(t, string(doc), "Minimal internal dependencies.")
	assert.Contains(t, string(doc), "Internal logic only.")
	assert.NotContains(t, string(doc), "is_api")
}

func TestRender_UnresolvedImports(t *testing.T) {
	t.Parallel()

	doc, err := Render(model.FileRecord{Path: "a.ts", Imports: []model.ImportEdge{{Source: "lodash"}}})
	require.NoError(t, err)
	assert.Contains(t, string(doc), "- `lodash` (unresolved)")
}

func TestWriter_WriteAll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	reg := paths.New("/repo")
	w := NewWriter(dir, reg)

	rec := sampleRecord()
	rec.Path = reg.Normalize(rec.Path)
	n, err := w.WriteAll([]model.FileRecord{rec, {Path: reg.Normalize("lib/util.py")}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, "src-api-users.ts.qmd"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "path: /repo/src/api/users.ts")
	assert.FileExists(t, filepath.Join(dir, "lib-util.py.qmd"))
}
