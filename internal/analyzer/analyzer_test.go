package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/config"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/syntax"
)

func newTestAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	return New(syntax.NewEngine(), opts...)
}

func assertScoreBounds(t *testing.T, s model.Scores) {
	t.Helper()
	for name, v := range map[string]float64{
		"logic": s.Logic, "style": s.Style, "documentation": s.Documentation, "overall": s.Overall,
	} {
		assert.GreaterOrEqual(t, v, 1.0, name)
		assert.LessOrEqual(t, v, 10.0, name)
	}
}

var defaultScoring = config.Default().Scoring

// =============================================================================
// Scanner
// =============================================================================

func TestScan_StringMarkersAreCode(t *testing.T) {
	t.Parallel()
	lines := Scan(`const u = "http://x"; // trailing`, syntax.TypeScript().Comments())
	require.Len(t, lines, 1)
	assert.Equal(t, `const u = "http://x"; `, lines[0].Code)
	assert.True(t, lines[0].Comment)
}

func TestScan_BlockCommentsSpanLines(t *testing.T) {
	t.Parallel()
	src := "a();\n/* one\n two\n*/ b();\nc(); /* x */ d();"
	lines := Scan(src, syntax.Go().Comments())
	assert.Equal(t, 3, CodeLines(lines))
	assert.Equal(t, 4, CommentLines(lines))
	assert.Equal(t, " b();", lines[3].Code)
	assert.Equal(t, "c();  d();", lines[4].Code)
}

func TestScan_PythonDocstrings(t *testing.T) {
	t.Parallel()
	src := "\"\"\"Module doc.\n\nMore.\n\"\"\"\nx = '#not a comment'  # real\n"
	lines := Scan(src, syntax.Python().Comments())
	assert.Equal(t, 1, CodeLines(lines))
	assert.Equal(t, "x = '#not a comment'  ", lines[4].Code)
}

func TestScan_EscapedQuote(t *testing.T) {
	t.Parallel()
	lines := Scan(`s := "a\"//b" // c`, syntax.Go().Comments())
	assert.Equal(t, `s := "a\"//b" `, lines[0].Code)
}

func TestScan_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Scan("", syntax.Go().Comments()))
}

// =============================================================================
// Calculus
// =============================================================================

func TestLogicScore(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10.0, LogicScore(0, 5, 5))
	assert.InDelta(t, 9.65, LogicScore(10, 1, 0), 1e-9)
	assert.InDelta(t, 1.0, LogicScore(10, 30, 8), 1e-9)
}

func TestStyleScore_Claustrophobia(t *testing.T) {
	t.Parallel()
	src := strings.Repeat("x = 1\n", 20)
	lines := Scan(src, syntax.Python().Comments())
	assert.InDelta(t, 4.6, StyleScore(lines, src, defaultScoring), 1e-9)
}

func TestStyleScore_CommentBreaksRun(t *testing.T) {
	t.Parallel()
	src := strings.Repeat("x = 1\n", 10) + "# pause\n" + strings.Repeat("x = 1\n", 10)
	lines := Scan(src, syntax.Python().Comments())
	assert.Greater(t, StyleScore(lines, src, defaultScoring), 9.0)
}

func TestStyleScore_UtilityClasses(t *testing.T) {
	t.Parallel()
	src := `<div className="w-[10px] h-[20px] p-[3px] m-[1px] top-[2px] left-[9px]" />`
	lines := Scan(src, syntax.TSX().Comments())
	assert.Equal(t, 1.0, StyleScore(lines, src, defaultScoring))
}

func TestStyleScore_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10.0, StyleScore(nil, "", defaultScoring))
}

func TestDocumentationScore(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 4.0, DocumentationScore(10, 1, false, defaultScoring), 1e-9)
	assert.InDelta(t, 4.9, DocumentationScore(10, 1, true, defaultScoring), 1e-9)
	assert.InDelta(t, 10.0, DocumentationScore(10, 10, true, defaultScoring), 1e-9)
	assert.InDelta(t, 1.0, DocumentationScore(0, 0, false, defaultScoring), 1e-9)
}

func TestOverallScore_Penalties(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 9.0, OverallScore(9, 9, 9, 10, 0, defaultScoring), 1e-9)
	assert.InDelta(t, 8.0, OverallScore(9, 9, 9, 11, 0, defaultScoring), 1e-9)
	assert.InDelta(t, 8.0, OverallScore(9, 9, 9, 0, 0.5, defaultScoring), 1e-9)
	assert.InDelta(t, 6.0, OverallScore(9, 9, 9, 11, 5, defaultScoring), 1e-9)
	assert.InDelta(t, 1.0, OverallScore(1, 1, 1, 100, 1, defaultScoring), 1e-9)
}

// =============================================================================
// Endpoints
// =============================================================================

func TestDetectEndpoints_Fastify(t *testing.T) {
	t.Parallel()
	src := `
import { FastifyInstance } from 'fastify';
export default async function (fastify: FastifyInstance) {
    fastify.post('/api/test/route', async () => { return {}; });
    fastify.get('/api/test/status', async () => { return {}; });
}
`
	assert.Equal(t, []string{"[POST] /api/test/route", "[GET] /api/test/status"}, DetectEndpoints(src))
}

func TestDetectEndpoints_PythonDecorators(t *testing.T) {
	t.Parallel()
	src := `
@app.route('/users', methods=['GET', 'POST'])
def users(): pass

@app.route("/health")
def health(): pass

@router.delete("/items/{id}")
async def remove(id): pass
`
	assert.Equal(t, []string{
		"[DELETE] /items/{id}",
		"[GET] /users",
		"[POST] /users",
		"[GET] /health",
	}, DetectEndpoints(src))
}

func TestDetectEndpoints_Go(t *testing.T) {
	t.Parallel()
	src := `
	http.HandleFunc("/health", health)
	mux.HandleFunc("POST /items", create)
	r.GET("/users/:id", show)
`
	assert.Equal(t, []string{"[GET] /users/:id", "[ANY] /health", "[POST] /items"}, DetectEndpoints(src))
}

func TestDetectEndpoints_IgnoresClientCalls(t *testing.T) {
	t.Parallel()
	src := `
const users = await axios.get('/api/users');
this.http.post('/api/login', body);
await api.delete("/items/1");
app.get('/served', handler);
`
	assert.Equal(t, []string{"[GET] /served"}, DetectEndpoints(src))
}

func TestAnalyze_ClientCallsAreNotAPI(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)
	rec, err := a.Analyze(context.Background(), []byte("export const load = () => axios.get('/api/users');\n"), "/repo/client.ts", Inputs{})
	require.NoError(t, err)
	assert.Empty(t, rec.Endpoints)
	assert.False(t, rec.IsAPI)
}

func TestDetectEndpoints_None(t *testing.T) {
	t.Parallel()
	assert.Nil(t, DetectEndpoints("const m = new Map(); m.get(key);"))
}

// =============================================================================
// Intent
// =============================================================================

func TestLeadingComment(t *testing.T) {
	t.Parallel()
	ts := syntax.TypeScript().Comments()
	assert.Equal(t, "Loads users. Caches them.", LeadingComment("// Loads users.\n// Caches them.\nexport {}", ts))
	assert.Equal(t, "Block doc. Second.", LeadingComment("/**\n * Block doc.\n * Second.\n */\nx()", ts))
	assert.Equal(t, "", LeadingComment("x()\n// late", ts))

	py := syntax.Python().Comments()
	assert.Equal(t, "Service layer.", LeadingComment("#!/usr/bin/env python\n\"\"\"Service layer.\"\"\"\n", py))
}

func TestFirstSentence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Loads users.", FirstSentence("Loads users. Caches them."))
	assert.Equal(t, "see v1.2 notes", FirstSentence("see v1.2 notes"))
	long := strings.Repeat("a", 300)
	assert.Len(t, FirstSentence(long), maxIntentLen)
}

// =============================================================================
// Analyze
// =============================================================================

const helperSource = `// Utility helpers for the app. More text here.
export function add(a: number, b: number): number {
  if (a > b) {
    return a;
  }
  return a + b;
}
`

func TestAnalyze_TypeScript(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)
	rec, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/src/helper.ts", Inputs{})
	require.NoError(t, err)

	assert.Equal(t, "/repo/src/helper.ts", rec.Path)
	assert.Equal(t, "typescript", rec.Language)
	assert.Equal(t, 6, rec.LineCount)
	assert.Equal(t, 2, rec.DecisionCount)
	assert.Equal(t, 2, rec.NestingDepth)
	assert.Equal(t, []string{"add"}, rec.Exports)
	assert.Equal(t, "Utility helpers for the app.", rec.Intent)
	assert.False(t, rec.IsAPI)
	assert.False(t, rec.Partial)
	assert.Equal(t, Hash([]byte(helperSource)), rec.Hash)
	assertScoreBounds(t, rec.Scores)
}

func TestAnalyze_EmptyFileLogicIsTen(t *testing.T) {
	t.Parallel()
	rec, err := newTestAnalyzer(t).Analyze(context.Background(), nil, "/repo/empty.ts", Inputs{})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.LineCount)
	assert.Equal(t, 10.0, rec.Scores.Logic)
	assertScoreBounds(t, rec.Scores)
}

func TestAnalyze_HashStable(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)
	r1, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/a.ts", Inputs{})
	require.NoError(t, err)
	r2, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/a.ts", Inputs{})
	require.NoError(t, err)
	r3, err := a.Analyze(context.Background(), []byte(helperSource+" "), "/repo/a.ts", Inputs{})
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.NotEqual(t, r1.Hash, r3.Hash)
}

func TestAnalyze_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := newTestAnalyzer(t).Analyze(context.Background(), []byte("# Title"), "/repo/README.md", Inputs{})
	assert.ErrorIs(t, err, syntax.ErrUnsupportedLanguage)
}

func TestAnalyze_EndpointsTagAPI(t *testing.T) {
	t.Parallel()
	src := "export function routes(app) {\n  app.post('/api/x', h);\n}\n"
	rec, err := newTestAnalyzer(t).Analyze(context.Background(), []byte(src), "/repo/src/api/routes.ts", Inputs{})
	require.NoError(t, err)
	assert.True(t, rec.IsAPI)
	assert.Equal(t, []string{"[POST] /api/x"}, rec.Endpoints)
}

func TestAnalyze_GravityAndAnomalyLowerOverall(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)
	base, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/a.ts", Inputs{})
	require.NoError(t, err)
	heavy, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/a.ts", Inputs{Gravity: 11, Anomaly: 0.5})
	require.NoError(t, err)

	assert.Equal(t, 11, heavy.Scores.Gravity)
	assert.Less(t, heavy.Scores.Overall, base.Scores.Overall)
	assert.Equal(t, base.Scores.Logic, heavy.Scores.Logic)
}

type failingIntent struct{}

func (failingIntent) Intent(context.Context, model.FileRecord, []byte) (string, error) {
	return "", errors.New("boom")
}

func TestAnalyze_IntentFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t, WithIntentProvider(failingIntent{}))
	rec, err := a.Analyze(context.Background(), []byte(helperSource), "/repo/a.ts", Inputs{})
	require.NoError(t, err)
	assert.Empty(t, rec.Intent)
}

func TestRescore(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)
	rec := model.FileRecord{Scores: model.Scores{Logic: 9, Style: 9, Documentation: 9, Overall: 9}}
	got := a.Rescore(rec, Inputs{Gravity: 11})
	assert.InDelta(t, 8.0, got.Scores.Overall, 1e-9)
	assert.Equal(t, 11, got.Scores.Gravity)
	assert.Equal(t, 9.0, rec.Scores.Overall, "Rescore must not mutate its argument")
}

type brokenAdapter struct{ syntax.Adapter }

func (brokenAdapter) Name() string                       { return "broken" }
func (brokenAdapter) Extensions() []string               { return []string{".brk"} }
func (brokenAdapter) NodeTypes(syntax.Category) []string { return []string{"definitely_not_a_node"} }

func TestAnalyze_ParseFailureYieldsPartialRecord(t *testing.T) {
	t.Parallel()
	a := New(syntax.NewEngine(brokenAdapter{syntax.TypeScript()}))
	rec, err := a.Analyze(context.Background(), []byte("a();\n// note\nb();\n"), "/repo/x.brk", Inputs{})
	require.NoError(t, err)

	assert.True(t, rec.Partial)
	assert.Equal(t, 2, rec.LineCount)
	assert.Equal(t, 1, rec.DecisionCount)
	assert.Equal(t, 0, rec.NestingDepth)
	assertScoreBounds(t, rec.Scores)
}
