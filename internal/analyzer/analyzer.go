// Package analyzer turns one source file into a model.FileRecord: line and
// decision counts, nesting depth, imports, exports, endpoints, intent and the
// four quality scores.
package analyzer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jward/pennyone/internal/config"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/syntax"
)

// Inputs are the per-file signals that come from outside the file itself.
type Inputs struct {
	Gravity int
	Anomaly float64
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	engine  *syntax.Engine
	scoring config.ScoringConfig
	intent  IntentProvider
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithScoring overrides the score constants.
func WithScoring(s config.ScoringConfig) Option {
	return func(a *Analyzer) {
		a.scoring = s
	}
}

// WithIntentProvider replaces the leading-comment intent provider. A nil
// provider disables intent.
func WithIntentProvider(p IntentProvider) Option {
	return func(a *Analyzer) {
		a.intent = p
	}
}

// WithLogger sets the logger used for non-fatal per-file problems.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New creates an Analyzer backed by engine.
func New(engine *syntax.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{
		engine:  engine,
		scoring: config.Default().Scoring,
		logger:  slog.Default(),
	}
	a.intent = DocCommentIntent{Engine: engine}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Supports reports whether Analyze can handle path.
func (a *Analyzer) Supports(path string) bool {
	return a.engine.Supports(path)
}

// Analyze builds the record for the file at path (canonical) with contents
// src. Unsupported extensions return syntax.ErrUnsupportedLanguage. A parse
// failure yields a Partial record and no error.
func (a *Analyzer) Analyze(ctx context.Context, src []byte, path string, in Inputs) (model.FileRecord, error) {
	adapter, err := a.engine.AdapterFor(path)
	if err != nil {
		return model.FileRecord{}, err
	}

	text := string(src)
	lines := Scan(text, adapter.Comments())
	loc := CodeLines(lines)
	endpoints := DetectEndpoints(text)

	rec := model.FileRecord{
		Path:      path,
		Language:  adapter.Name(),
		LineCount: loc,
		Hash:      Hash(src),
		Endpoints: endpoints,
		IsAPI:     len(endpoints) > 0,
	}

	tree, err := a.engine.Parse(ctx, src, path)
	if err != nil {
		if !errors.Is(err, syntax.ErrParseFailure) {
			return model.FileRecord{}, err
		}
		a.logger.Warn("parse failed, recording heuristic metrics only", "path", path, "error", err)
		rec.Partial = true
		rec.DecisionCount = 1
		rec.Scores = Scores(loc, 1, 0, lines, CommentLines(lines), false, text, a.scoring)
		return a.Rescore(rec, in), nil
	}
	defer tree.Close()

	rec.DecisionCount = 1 + len(tree.Nodes(syntax.CategoryDecision))
	rec.NestingDepth = tree.MaxDepth(syntax.CategoryBlock)

	for _, n := range tree.Nodes(syntax.CategoryImport) {
		rec.Imports = append(rec.Imports, adapter.ImportEdges(n, src)...)
	}
	seen := make(map[string]bool)
	for _, n := range tree.Nodes(syntax.CategoryExport) {
		for _, name := range adapter.ExportNames(n, src) {
			if !seen[name] {
				seen[name] = true
				rec.Exports = append(rec.Exports, name)
			}
		}
	}

	rec.Scores = Scores(loc, rec.DecisionCount, rec.NestingDepth, lines, CommentLines(lines), len(rec.Exports) > 0, text, a.scoring)

	if a.intent != nil {
		intent, err := a.intent.Intent(ctx, rec, src)
		if err != nil {
			a.logger.Warn("intent provider failed", "path", path, "error", err)
		}
		rec.Intent = intent
	}
	return a.Rescore(rec, in), nil
}

// Scores computes the logic, style and documentation scores. Overall and
// Gravity are left for Rescore.
func Scores(loc, decisions, nesting int, lines []Line, comments int, hasExports bool, src string, cfg config.ScoringConfig) model.Scores {
	return model.Scores{
		Logic:         LogicScore(loc, decisions, nesting),
		Style:         StyleScore(lines, src, cfg),
		Documentation: DocumentationScore(loc, comments, hasExports, cfg),
	}
}

// Rescore recomputes only the overall score and gravity of rec.
func (a *Analyzer) Rescore(rec model.FileRecord, in Inputs) model.FileRecord {
	rec.Scores.Gravity = in.Gravity
	rec.Scores.Overall = OverallScore(rec.Scores.Logic, rec.Scores.Style, rec.Scores.Documentation, in.Gravity, in.Anomaly, a.scoring)
	return rec
}
