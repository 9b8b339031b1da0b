package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func savePing(t *testing.T, s *Store, root, agent string, action model.Action, target string, at time.Time) model.Ping {
	t.Helper()
	p, err := s.SavePing(context.Background(), model.Ping{AgentID: agent, Action: action, TargetPath: target, Timestamp: at}, root)
	require.NoError(t, err)
	return p
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"spokes", "sessions", "pings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestNewStore_InMemory(t *testing.T) {
	t.Parallel()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate())
	_, err = s.RegisterSpoke("/repo")
	require.NoError(t, err)
}

// =============================================================================
// Spokes
// =============================================================================

func TestRegisterSpoke_IdempotentByCanonicalRoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id1, err := s.RegisterSpoke("/work/repo")
	require.NoError(t, err)
	id2, err := s.RegisterSpoke("/work/repo/")
	require.NoError(t, err)
	id3, err := s.RegisterSpoke(`\work\repo`)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)

	other, err := s.RegisterSpoke("/elsewhere/repo")
	require.NoError(t, err)
	assert.NotEqual(t, id1, other, "same base name under another root is another spoke")
}

// =============================================================================
// Pings & Sessions
// =============================================================================

func TestSavePing_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	saved := savePing(t, s, "/repo", "TEST_AGENT_EMPIRE_001", model.ActionThink, "src/mock/target.ts", t0)
	assert.Positive(t, saved.ID)
	assert.Positive(t, saved.SessionID)

	sessions, err := s.SessionsWithSummaries("/repo")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "TEST_AGENT_EMPIRE_001", sessions[0].AgentID)

	pings, err := s.SessionPings(sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, pings, 1)
	assert.Equal(t, model.ActionThink, pings[0].Action)
	assert.Equal(t, t0, pings[0].Timestamp)
}

func TestSavePing_SessionWindow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/a.ts", t0)
	near := savePing(t, s, "/repo", "agent", model.ActionEdit, "/repo/a.ts", t0.Add(10*time.Minute))
	far := savePing(t, s, "/repo", "agent", model.ActionEdit, "/repo/b.ts", t0.Add(65*time.Minute))

	assert.Equal(t, first.SessionID, near.SessionID, "ping 10 minutes later joins the session")
	assert.NotEqual(t, first.SessionID, far.SessionID, "ping 65 minutes later opens a new session")

	sess, err := s.Session(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.TotalPings)
	assert.Equal(t, t0, sess.Start)
	assert.Equal(t, t0.Add(10*time.Minute), sess.End)
}

func TestSavePing_BackdatedPingJoinsEarlierSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/a.ts", t0)
	later := savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/b.ts", t0.Add(65*time.Minute))
	backdated := savePing(t, s, "/repo", "agent", model.ActionEdit, "/repo/a.ts", t0.Add(10*time.Minute))

	require.NotEqual(t, first.SessionID, later.SessionID)
	assert.Equal(t, first.SessionID, backdated.SessionID, "ping joins the session that started before it")

	sess, err := s.Session(later.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TotalPings)
	assert.Equal(t, t0.Add(65*time.Minute), sess.Start)

	early := savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/a.ts", t0.Add(-2*time.Hour))
	assert.NotContains(t, []int64{first.SessionID, later.SessionID}, early.SessionID, "ping before every session opens its own")
}

func TestSavePing_SessionsAreScopedByAgentAndSpoke(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := savePing(t, s, "/repo", "alpha", model.ActionRead, "x", t0)
	b := savePing(t, s, "/repo", "beta", model.ActionRead, "x", t0)
	c := savePing(t, s, "/other", "alpha", model.ActionRead, "x", t0)

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.NotEqual(t, a.SessionID, c.SessionID)
}

func TestSavePing_Sanitization(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	p := savePing(t, s, "/repo", "evil'; DROP TABLE pings;--", "delete", "x", t0)
	assert.Equal(t, "evilDROPTABLEpings--", p.AgentID)
	assert.Equal(t, model.ActionThink, p.Action)

	long := savePing(t, s, "/repo", strings.Repeat("a", 100), "read", "x", t0)
	assert.Len(t, long.AgentID, 64)
	assert.Equal(t, model.ActionRead, long.Action)

	anon := savePing(t, s, "/repo", "!!!", model.ActionEdit, "x", t0)
	assert.Equal(t, "anonymous", anon.AgentID)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM pings").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSavePing_ZeroTimestampUsesClock(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, WithClock(func() time.Time { return t0 }))
	p := savePing(t, s, "/repo", "agent", model.ActionRead, "x", time.Time{})
	assert.Equal(t, t0, p.Timestamp)
}

func TestSavePing_ConcurrentPingsShareOneSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	ids := make([]int64, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.SavePing(context.Background(), model.Ping{
				AgentID: "swarm", Action: model.ActionRead, TargetPath: "x", Timestamp: t0.Add(time.Duration(i) * time.Second),
			}, "/repo")
			ids[i], errs[i] = p.SessionID, err
		}(i)
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	sess, err := s.Session(ids[0])
	require.NoError(t, err)
	assert.Equal(t, n, sess.TotalPings)
}

func TestSessionsWithSummaries(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	savePing(t, s, "/repo", "old", model.ActionRead, "/repo/src/a.ts", t0)
	savePing(t, s, "/repo", "new", model.ActionRead, "/repo/src/main.ts", t0.Add(2*time.Hour))
	savePing(t, s, "/repo", "new", model.ActionEdit, "/repo/src/main.ts", t0.Add(2*time.Hour+30*time.Second))
	savePing(t, s, "/repo", "new", model.ActionRead, "/repo/src/util.ts", t0.Add(2*time.Hour+45*time.Second))

	sessions, err := s.SessionsWithSummaries("/repo")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	newest := sessions[0]
	assert.Equal(t, "new", newest.AgentID)
	assert.Equal(t, "repo", newest.SpokeName)
	assert.Equal(t, "/repo/src/main.ts", newest.PrimaryTarget)
	assert.Equal(t, "Agent new performed 3 actions over 45s. Primary focus: main.ts.", newest.Summary)
	assert.Equal(t, "Agent old performed 1 actions over 0s. Primary focus: a.ts.", sessions[1].Summary)

	none, err := s.SessionsWithSummaries("/unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionPings_Chronological(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := savePing(t, s, "/repo", "agent", model.ActionRead, "b", t0.Add(time.Minute))
	savePing(t, s, "/repo", "agent", model.ActionRead, "a", t0.Add(30*time.Second))

	pings, err := s.SessionPings(first.SessionID)
	require.NoError(t, err)
	require.Len(t, pings, 2)
	assert.Equal(t, "a", pings[0].TargetPath)
	assert.Equal(t, "b", pings[1].TargetPath)
}

func TestSession_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.Session(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, WithClock(func() time.Time { return t0 }))
	p := savePing(t, s, "/repo", "agent", model.ActionEdit, "/repo/a.ts", t0)

	dir := t.TempDir()
	path, err := s.ExportSession(p.SessionID, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, fmt.Sprintf("session_%d.json", p.SessionID)), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc SessionExport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, p.SessionID, doc.Session.ID)
	require.Len(t, doc.Pings, 1)
	assert.Equal(t, "/repo/a.ts", doc.Pings[0].TargetPath)

	_, err = s.ExportSession(999, dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Gravity
// =============================================================================

func TestGravity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for range 3 {
		savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/hot.ts", t0)
	}
	savePing(t, s, "/repo", "agent", model.ActionRead, "/repo/warm.ts", t0)
	savePing(t, s, "/other", "agent", model.ActionRead, "/other/x.ts", t0)

	g, err := s.Gravity("/repo/hot.ts")
	require.NoError(t, err)
	assert.Equal(t, 3, g)

	g, err = s.Gravity("/repo/cold.ts")
	require.NoError(t, err)
	assert.Equal(t, 0, g)

	m, err := s.GravityMap("/repo")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"/repo/hot.ts": 3, "/repo/warm.ts": 1}, m)

	some, err := s.GravityFor([]string{"/repo/hot.ts", "/other/x.ts", "/repo/cold.ts"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"/repo/hot.ts": 3, "/other/x.ts": 1}, some)

	empty, err := s.GravityFor(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// =============================================================================
// Helpers
// =============================================================================

func TestCoerceAction(t *testing.T) {
	t.Parallel()
	assert.Equal(t, model.ActionSearch, CoerceAction("search"))
	assert.Equal(t, model.ActionEvaluate, CoerceAction(" Evaluate "))
	assert.Equal(t, model.ActionThink, CoerceAction(""))
	assert.Equal(t, model.ActionThink, CoerceAction("DESTROY"))
}

func TestPlaceholderList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", placeholderList(0))
	assert.Equal(t, "?", placeholderList(1))
	assert.Equal(t, "?,?,?", placeholderList(3))
}
