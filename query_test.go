package pennyone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

func newTestQuery(t *testing.T) *QueryBuilder {
	t.Helper()
	reg := paths.New("/repo")
	return &QueryBuilder{
		registry: reg,
		graph: &model.CompiledGraph{
			Version: model.GraphVersion,
			Files: []model.FileRecord{
				{
					Path:         "/repo/src/auth/login.ts",
					Intent:       "Handles user login and session tokens.",
					Endpoints:    []string{"[POST] /api/login"},
					Dependencies: []string{"/repo/src/db.ts"},
					Scores:       model.Scores{Gravity: 4},
				},
				{
					Path:   "/repo/src/db.ts",
					Intent: "Database access.",
					Scores: model.Scores{Gravity: 9},
				},
				{
					Path:         "/repo/src/users.ts",
					Dependencies: []string{"/repo/src/db.ts", "/repo/src/auth/login.ts"},
					Scores:       model.Scores{Gravity: 4},
				},
				{
					Path: "/repo/src/unused.ts",
				},
			},
		},
	}
}

func TestSearch_MatchesIntentPathAndEndpoint(t *testing.T) {
	t.Parallel()
	q := newTestQuery(t)

	hits := q.Search("LOGIN")
	require.Len(t, hits, 1)
	assert.Equal(t, "src/auth/login.ts", hits[0].RelPath)
	assert.Equal(t, []string{MatchIntent, MatchPath, MatchEndpoint}, hits[0].MatchedOn)

	hits = q.Search("/api/")
	require.Len(t, hits, 1)
	assert.Equal(t, []string{MatchEndpoint}, hits[0].MatchedOn)

	hits = q.Search("database")
	require.Len(t, hits, 1)
	assert.Equal(t, "/repo/src/db.ts", hits[0].Path)
}

func TestSearch_PathIsRootRelative(t *testing.T) {
	t.Parallel()
	q := newTestQuery(t)

	assert.Empty(t, q.Search("repo"))
	assert.Len(t, q.Search("src/"), 4)
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()
	q := newTestQuery(t)
	assert.Nil(t, q.Search("   "))
	assert.Nil(t, (&QueryBuilder{registry: paths.New("/repo")}).Search("x"))
}

func TestDependenciesAndDependents(t *testing.T) {
	t.Parallel()
	q := newTestQuery(t)

	assert.Equal(t, []string{"/repo/src/db.ts", "/repo/src/auth/login.ts"}, q.Dependencies("src/users.ts"))
	assert.Nil(t, q.Dependencies("src/missing.ts"))
	assert.Equal(t, []string{"/repo/src/auth/login.ts", "/repo/src/users.ts"}, q.Dependents("/repo/src/db.ts"))
	assert.Nil(t, q.Dependents("src/unused.ts"))
}

func TestHotspots(t *testing.T) {
	t.Parallel()
	q := newTestQuery(t)

	all := q.Hotspots(0)
	require.Len(t, all, 3)
	assert.Equal(t, "/repo/src/db.ts", all[0].Path)
	assert.Equal(t, "/repo/src/auth/login.ts", all[1].Path)
	assert.Equal(t, "/repo/src/users.ts", all[2].Path)

	assert.Len(t, q.Hotspots(2), 2)
}
