package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/store"
)

// runCLI executes the root command in-process. Every call passes --format
// and --root explicitly because flag values persist between executions.
func runCLI(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "args: %v", args)
	return out.Bytes()
}

func decodeResult[T any](t *testing.T, data []byte) T {
	t.Helper()
	var env struct {
		Command string `json:"command"`
		Results T      `json:"results"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	require.Empty(t, env.Error)
	return env.Results
}

func createFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/x.ts":     "import { y } from './y';\nexport const x = y + 1;\n",
		"src/y.ts":     "// Provides the y constant.\nexport const y = 2;\n",
		"api/login.ts": "router.post('/api/login', handler)\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// ==========================================================================
// In-process command runs
// ==========================================================================

func TestCLI_ScanThenQuery(t *testing.T) {
	dir := createFixture(t)

	scan := decodeResult[CLIScanReport](t, runCLI(t, "scan", dir, "--format", "json", "--root", dir))
	assert.Equal(t, 3, scan.Files)
	assert.Equal(t, 3, scan.Analyzed)
	assert.FileExists(t, scan.GraphPath)

	again := decodeResult[CLIScanReport](t, runCLI(t, "scan", dir, "--format", "json", "--root", dir))
	assert.Equal(t, 3, again.Reused)

	hits := decodeResult[[]struct {
		RelPath string `json:"relPath"`
	}](t, runCLI(t, "search", "login", "--format", "json", "--root", dir))
	require.Len(t, hits, 1)
	assert.Equal(t, "api/login.ts", hits[0].RelPath)

	detail := decodeResult[CLIFileDetail](t, runCLI(t, "file", "src/y.ts", "--format", "json", "--root", dir))
	assert.Equal(t, "typescript", detail.Language)
	require.Len(t, detail.Dependents, 1)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "src", "x.ts")), detail.Dependents[0])

	text := runCLI(t, "search", "login", "--format", "text", "--root", dir)
	assert.Contains(t, string(text), "api/login.ts")
}

func TestCLI_Sessions(t *testing.T) {
	dir := createFixture(t)
	runCLI(t, "scan", dir, "--format", "json", "--root", dir)

	st, err := store.NewStore(filepath.Join(dir, ".stats", "pennyone.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate())
	saved, err := st.SavePing(context.Background(), model.Ping{
		AgentID:    "agent",
		Action:     model.ActionEdit,
		TargetPath: filepath.ToSlash(filepath.Join(dir, "src", "x.ts")),
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}, dir)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	sessions := decodeResult[[]model.SessionSummary](t, runCLI(t, "sessions", "list", "--format", "json", "--root", dir))
	require.Len(t, sessions, 1)
	assert.Equal(t, saved.SessionID, sessions[0].ID)

	id := formatID(saved.SessionID)
	pings := decodeResult[[]model.Ping](t, runCLI(t, "sessions", "pings", id, "--format", "json", "--root", dir))
	require.Len(t, pings, 1)
	assert.Equal(t, model.ActionEdit, pings[0].Action)

	path := decodeResult[string](t, runCLI(t, "sessions", "export", id, "--format", "json", "--root", dir, "--out", filepath.Join(dir, "out")))
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(dir, "out", "session_"+id+".json"), path)
}

func TestCLI_Init(t *testing.T) {
	dir := t.TempDir()
	path := decodeResult[string](t, runCLI(t, "init", dir, "--format", "json", "--root", dir))
	assert.FileExists(t, path)
}
