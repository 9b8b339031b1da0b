package pennyone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jward/pennyone/internal/analyzer"
	"github.com/jward/pennyone/internal/graph"
	"github.com/jward/pennyone/internal/metrics"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/syntax"
)

// workItem holds everything an analysis worker needs.
type workItem struct {
	path    string
	src     []byte
	gravity int
}

// Scan analyzes the whole project using a three-phase pipeline:
//
//	Phase A (serial):   crawl, read, hash, and let the diff gate decide which
//	                    files need analysis. Unchanged files reuse their prior
//	                    record and are only rescored.
//	Phase B (parallel): analyze changed files on a bounded worker pool.
//	Phase C (serial):   compile the graph over one snapshot of known paths
//	                    and publish it atomically.
//
// A file that fails is reported and left out; it never stops the others.
// When some files failed the graph is still published and returned together
// with an error describing the failures.
func (e *Engine) Scan(ctx context.Context) (*model.CompiledGraph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()

	files, err := e.crawler.Crawl(ctx, e.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("pennyone: crawl: %w", err)
	}
	gravity, err := e.store.GravityMap(e.cfg.Root)
	if err != nil {
		e.logger.Warn("gravity lookup failed, using zero", "error", err)
		gravity = map[string]int{}
	}

	gate := graph.NewGate(e.Graph())
	rep := ScanReport{Files: len(files)}

	// ---- Phase A: Serial hash and gate ----
	var records []model.FileRecord
	var items []workItem
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.analyzer.Supports(path) {
			rep.Skipped++
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Errorf("read %s: %w", path, err))
			metrics.FilesAnalyzed.WithLabelValues(metrics.OutcomeFailed).Inc()
			continue
		}
		if !gate.ShouldReanalyze(path, analyzer.Hash(src)) {
			if rec, ok := gate.Reuse(path); ok {
				in := analyzer.Inputs{Gravity: gravity[path], Anomaly: e.anomalyFor(ctx, rec, src)}
				records = append(records, e.analyzer.Rescore(rec, in))
				rep.Reused++
				metrics.FilesAnalyzed.WithLabelValues(metrics.OutcomeReused).Inc()
				continue
			}
		}
		items = append(items, workItem{path: path, src: src, gravity: gravity[path]})
	}

	// ---- Phase B: Parallel analysis ----
	analyzed, errs := e.analyzeAll(ctx, items)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rec := range analyzed {
		if rec.Partial {
			rep.Partial++
		}
	}
	records = append(records, analyzed...)
	rep.Analyzed = len(analyzed)
	rep.Errors = append(rep.Errors, errs...)

	// ---- Phase C: Serial compile and publish ----
	g := graph.Compile(records, graph.Options{Registry: e.registry, Gate: gate, Now: e.now(), GoModule: e.goModule})
	rep.Duration = e.now().Sub(start)
	if err := e.publish(g, rep); err != nil {
		return nil, err
	}
	metrics.ScanDuration.Observe(rep.Duration.Seconds())
	e.writeReports(g.Files)

	e.logger.Info("scan complete",
		"root", e.cfg.Root,
		"files", len(g.Files),
		"analyzed", rep.Analyzed,
		"reused", rep.Reused,
		"partial", rep.Partial,
		"errors", len(rep.Errors),
		"duration", rep.Duration,
	)
	return g, joinErrors("scan", rep.Errors)
}

// analyzeAll runs items through a worker pool of e.workers goroutines. The
// result order is not significant; Compile sorts.
func (e *Engine) analyzeAll(ctx context.Context, items []workItem) ([]model.FileRecord, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		out  = make([]model.FileRecord, 0, len(items))
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(min(e.workers, len(items)))
	for _, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec, err := e.analyze(ctx, item.src, item.path, item.gravity)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, syntax.ErrUnsupportedLanguage):
			case err != nil:
				errs = append(errs, fmt.Errorf("analyze %s: %w", item.path, err))
				metrics.FilesAnalyzed.WithLabelValues(metrics.OutcomeFailed).Inc()
			case rec.Partial:
				out = append(out, rec)
				metrics.FilesAnalyzed.WithLabelValues(metrics.OutcomePartial).Inc()
			default:
				out = append(out, rec)
				metrics.FilesAnalyzed.WithLabelValues(metrics.OutcomeAnalyzed).Inc()
			}
			return nil
		})
	}
	g.Wait()
	return out, errs
}
