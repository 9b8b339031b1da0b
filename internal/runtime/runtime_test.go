package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/model"
)

func testRecord() model.FileRecord {
	return model.FileRecord{
		Path:          "src/api/users.ts",
		Language:      "typescript",
		LineCount:     42,
		DecisionCount: 3,
		Exports:       []string{"listUsers", "getUser"},
		Endpoints:     []string{"[GET] /users"},
	}
}

func newTestRuntime(t *testing.T, files map[string]string) *Runtime {
	t.Helper()
	mapFS := fstest.MapFS{}
	for name, src := range files {
		mapFS[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return NewRuntime("", WithRuntimeFS(mapFS))
}

// --- RunSource ---

func TestRunSource_ReturnsFinalValue(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	got, err := rt.RunSource(context.Background(), `x := 40
x + 2`, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Inspect())
}

func TestRunSource_SyntaxError(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	_, err := rt.RunSource(context.Background(), `x := (`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestRunSource_RecordGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")

	got, err := rt.RunSource(context.Background(), `len(exports) + line_count`, recordGlobals(testRecord(), nil))
	require.NoError(t, err)
	assert.Equal(t, "44", got.Inspect())
}

// --- LoadScript ---

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "intent.risor")
	content := `"hello"`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(dir)
	got, err := rt.LoadScript("intent.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"hooks/intent.risor": `x := 42`})

	got, err := rt.LoadScript("hooks/intent.risor")
	require.NoError(t, err)
	assert.Equal(t, `x := 42`, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, nil)

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromFSFS_StripsLeadingSeparator(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"hooks/intent.risor": `y := 99`})

	got, err := rt.LoadScript("/hooks/intent.risor")
	require.NoError(t, err)
	assert.Equal(t, `y := 99`, got)
}

// --- IntentHook ---

func TestIntentHook_String(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"intent.risor": `"Serves " + endpoints[0] + " from " + path`})

	got, err := NewIntentHook(rt, "intent.risor").Intent(context.Background(), testRecord(), []byte("src"))
	require.NoError(t, err)
	assert.Equal(t, "Serves [GET] /users from src/api/users.ts", got)
}

func TestIntentHook_NilIsEmpty(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"intent.risor": `nil`})

	got, err := NewIntentHook(rt, "intent.risor").Intent(context.Background(), testRecord(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntentHook_WrongType(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"intent.risor": `12`})

	_, err := NewIntentHook(rt, "intent.risor").Intent(context.Background(), testRecord(), nil)
	require.ErrorIs(t, err, ErrScriptResult)
}

func TestIntentHook_MissingScript(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, nil)

	_, err := NewIntentHook(rt, "intent.risor").Intent(context.Background(), testRecord(), nil)
	require.Error(t, err)
}

// --- AnomalyHook ---

func TestAnomalyHook_Values(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   float64
	}{
		{"float", `0.25`, 0.25},
		{"int", `0`, 0},
		{"clamped high", `3.5`, 1},
		{"clamped low", `-2`, 0},
		{"nil", `nil`, 0},
		{"uses globals", `decisions * 0.1`, 0.30000000000000004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rt := newTestRuntime(t, map[string]string{"anomaly.risor": tt.script})
			got, err := NewAnomalyHook(rt, "anomaly.risor").Anomaly(context.Background(), testRecord(), nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAnomalyHook_WrongType(t *testing.T) {
	t.Parallel()
	rt := newTestRuntime(t, map[string]string{"anomaly.risor": `"high"`})

	_, err := NewAnomalyHook(rt, "anomaly.risor").Anomaly(context.Background(), testRecord(), nil)
	require.ErrorIs(t, err, ErrScriptResult)
}
