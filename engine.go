package pennyone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jward/pennyone/internal/analyzer"
	"github.com/jward/pennyone/internal/config"
	"github.com/jward/pennyone/internal/crawl"
	"github.com/jward/pennyone/internal/graph"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
	"github.com/jward/pennyone/internal/report"
	"github.com/jward/pennyone/internal/runtime"
	"github.com/jward/pennyone/internal/store"
	"github.com/jward/pennyone/internal/syntax"
)

// Engine orchestrates the pipeline for one project root: crawl, analyze,
// compile the dependency graph, and keep it in step with telemetry.
type Engine struct {
	cfg      *config.Config
	registry *paths.Registry
	crawler  *crawl.Crawler
	syntax   *syntax.Engine
	analyzer *analyzer.Analyzer
	store    *store.Store
	reports  *report.Writer
	anomaly  analyzer.AnomalySource
	intent   analyzer.IntentProvider
	logger   *slog.Logger
	now      func() time.Time
	workers  int
	goModule string

	// ownStore is false when the store was supplied with WithStore.
	ownStore bool

	// mu serializes Scan and Refresh.
	mu sync.Mutex

	graphMu sync.RWMutex
	graph   *model.CompiledGraph
	last    ScanReport
}

// ScanReport describes the outcome of the most recent Scan or Refresh.
type ScanReport struct {
	Files    int
	Analyzed int
	Reused   int
	Partial  int
	Skipped  int
	Errors   []error
	Duration time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithWorkers sets the analysis pool size. Zero or less means the
// configured value.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithIntentProvider overrides the intent source, including any configured
// intent script.
func WithIntentProvider(p analyzer.IntentProvider) Option {
	return func(e *Engine) {
		e.intent = p
	}
}

// WithAnomalySource overrides the anomaly source, including any configured
// anomaly script.
func WithAnomalySource(a analyzer.AnomalySource) Option {
	return func(e *Engine) {
		e.anomaly = a
	}
}

// WithStore shares an existing telemetry store. The Engine will not close
// it.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock sets the clock used for graph timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine for cfg.Root. The telemetry store is opened and
// migrated, and any graph left by a previous run is loaded as the baseline
// for incremental analysis.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pennyone: %w", err)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("pennyone: resolve root: %w", err)
	}
	resolved := *cfg
	resolved.Root = root
	cfg = resolved.Resolve()

	e := &Engine{
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		workers: cfg.Workers,
		anomaly: analyzer.NoAnomaly{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}

	e.registry = paths.New(root)
	e.goModule = graph.GoModulePath(root)
	e.crawler = crawl.New(e.registry,
		crawl.WithExtensions(cfg.Crawl.Extensions...),
		crawl.WithExcludeDirs(cfg.Crawl.ExcludeDirs...),
		crawl.WithGit(cfg.Crawl.UseGit),
	)
	e.syntax = syntax.NewEngine()
	e.configureHooks()

	aopts := []analyzer.Option{
		analyzer.WithScoring(cfg.Scoring),
		analyzer.WithLogger(e.logger),
	}
	if e.intent != nil {
		aopts = append(aopts, analyzer.WithIntentProvider(e.intent))
	}
	e.analyzer = analyzer.New(e.syntax, aopts...)

	if cfg.Reports.Enabled {
		e.reports = report.NewWriter(cfg.StatsDir, e.registry)
	}

	if e.store == nil {
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("pennyone: create stats dir: %w", err)
			}
		}
		s, err := store.NewStore(cfg.DBPath, store.WithLogger(e.logger))
		if err != nil {
			return nil, fmt.Errorf("pennyone: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("pennyone: migrate: %w", err)
		}
		e.store = s
		e.ownStore = true
	}

	prior, err := graph.Load(cfg.GraphPath())
	if err != nil {
		e.logger.Warn("ignoring unreadable graph artifact", "path", cfg.GraphPath(), "error", err)
	}
	e.graph = prior
	return e, nil
}

// configureHooks installs Risor script hooks named in the configuration
// unless an option already supplied a provider.
func (e *Engine) configureHooks() {
	hooks := e.cfg.Hooks
	if hooks.IntentScript == "" && hooks.AnomalyScript == "" {
		return
	}
	rt := runtime.NewRuntime(e.cfg.Root, runtime.WithRuntimeLogger(e.logger))
	if hooks.IntentScript != "" && e.intent == nil {
		e.intent = runtime.NewIntentHook(rt, hooks.IntentScript)
	}
	if _, isDefault := e.anomaly.(analyzer.NoAnomaly); hooks.AnomalyScript != "" && isDefault {
		e.anomaly = runtime.NewAnomalyHook(rt, hooks.AnomalyScript)
	}
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if !e.ownStore {
		return nil
	}
	return e.store.Close()
}

// Store returns the telemetry store.
func (e *Engine) Store() *Store {
	return e.store
}

// Registry returns the path registry for the project root.
func (e *Engine) Registry() *paths.Registry {
	return e.registry
}

// Crawler returns the file filter scans use. It satisfies relay.Filter.
func (e *Engine) Crawler() *crawl.Crawler {
	return e.crawler
}

// Config returns the resolved configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Root returns the canonical project root.
func (e *Engine) Root() string {
	return e.registry.Root()
}

// ProjectID names the project for relay subscriptions: the configured id,
// or the root's base name.
func (e *Engine) ProjectID() string {
	if e.cfg.Server.ProjectID != "" {
		return e.cfg.Server.ProjectID
	}
	return filepath.Base(e.cfg.Root)
}

// Graph returns the current compiled graph, or nil before the first scan.
// The graph is never mutated after it is published.
func (e *Engine) Graph() *model.CompiledGraph {
	e.graphMu.RLock()
	defer e.graphMu.RUnlock()
	return e.graph
}

// LastReport returns the report of the most recent Scan or Refresh.
func (e *Engine) LastReport() ScanReport {
	e.graphMu.RLock()
	defer e.graphMu.RUnlock()
	return e.last
}

// Query returns a QueryBuilder over the current graph.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{graph: e.Graph(), registry: e.registry}
}

func (e *Engine) publish(g *model.CompiledGraph, rep ScanReport) error {
	if err := graph.WriteAtomic(e.cfg.GraphPath(), g); err != nil {
		return fmt.Errorf("pennyone: write graph: %w", err)
	}
	e.graphMu.Lock()
	e.graph = g
	e.last = rep
	e.graphMu.Unlock()
	return nil
}

// writeReports refreshes per-file reports when they are enabled.
func (e *Engine) writeReports(records []model.FileRecord) {
	if e.reports == nil {
		return
	}
	if _, err := e.reports.WriteAll(records); err != nil {
		e.logger.Warn("report write failed", "error", err)
	}
}

// anomalyFor queries the anomaly source. Failures count as no anomaly.
func (e *Engine) anomalyFor(ctx context.Context, rec model.FileRecord, src []byte) float64 {
	v, err := e.anomaly.Anomaly(ctx, rec, src)
	if err != nil {
		e.logger.Warn("anomaly source failed", "path", rec.Path, "error", err)
		return 0
	}
	return v
}

// Refresh re-analyzes the given files, updates them in the current graph
// and recompiles it. Paths may be absolute or root-relative. Files that no
// longer exist are dropped from the graph. The refreshed records are
// returned with their dependencies resolved.
func (e *Engine) Refresh(ctx context.Context, paths ...string) ([]model.FileRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	targets := make([]string, 0, len(paths))
	for _, p := range paths {
		canon := e.registry.Normalize(p)
		if e.crawler.Accepts(canon) && e.analyzer.Supports(canon) {
			targets = append(targets, canon)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	gravity, err := e.store.GravityFor(targets)
	if err != nil {
		e.logger.Warn("gravity lookup failed, using zero", "error", err)
		gravity = map[string]int{}
	}

	byPath := make(map[string]model.FileRecord)
	if g := e.Graph(); g != nil {
		for _, f := range g.Files {
			byPath[f.Path] = f
		}
	}

	rep := ScanReport{Files: len(targets)}
	var refreshed []string
	for _, path := range targets {
		src, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			delete(byPath, path)
			continue
		}
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		rec, err := e.analyze(ctx, src, path, gravity[path])
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("analyze %s: %w", path, err))
			continue
		}
		if rec.Partial {
			rep.Partial++
		}
		rep.Analyzed++
		byPath[path] = rec
		refreshed = append(refreshed, path)
	}

	records := make([]model.FileRecord, 0, len(byPath))
	for _, rec := range byPath {
		records = append(records, rec)
	}
	g := graph.Compile(records, graph.Options{Registry: e.registry, Now: e.now(), GoModule: e.goModule})
	rep.Duration = e.now().Sub(start)
	if err := e.publish(g, rep); err != nil {
		return nil, err
	}

	out := make([]model.FileRecord, 0, len(refreshed))
	for _, path := range refreshed {
		if rec, ok := g.File(path); ok {
			out = append(out, rec)
		}
	}
	e.writeReports(out)
	return out, joinErrors("refresh", rep.Errors)
}

// analyze runs the analyzer and then folds in the anomaly signal.
func (e *Engine) analyze(ctx context.Context, src []byte, path string, gravity int) (model.FileRecord, error) {
	rec, err := e.analyzer.Analyze(ctx, src, path, analyzer.Inputs{Gravity: gravity})
	if err != nil {
		return model.FileRecord{}, err
	}
	if anomaly := e.anomalyFor(ctx, rec, src); anomaly != 0 {
		rec = e.analyzer.Rescore(rec, analyzer.Inputs{Gravity: gravity, Anomaly: anomaly})
	}
	return rec, nil
}

func joinErrors(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pennyone: %s had %d error(s): %w", op, len(errs), errors.Join(errs...))
}
