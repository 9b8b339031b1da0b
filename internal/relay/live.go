package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/jward/pennyone/internal/model"
)

// Indexer is the analysis side Live drives.
type Indexer interface {
	Scan(ctx context.Context) (*model.CompiledGraph, error)
	Refresh(ctx context.Context, paths ...string) ([]model.FileRecord, error)
}

// NodePayload is the NODE_UPDATED payload.
type NodePayload struct {
	Path      string       `json:"path"`
	LineCount int          `json:"lineCount"`
	Scores    model.Scores `json:"scores"`
	Intent    string       `json:"intent,omitempty"`
	Endpoints []string     `json:"endpoints,omitempty"`
	Partial   bool         `json:"partial,omitempty"`
}

// GraphPayload is the GRAPH_REBUILT payload.
type GraphPayload struct {
	Version   string        `json:"version"`
	ScannedAt time.Time     `json:"scannedAt"`
	Summary   model.Summary `json:"summary"`
}

// NewNodePayload projects a record onto the NODE_UPDATED payload.
func NewNodePayload(rec model.FileRecord) NodePayload {
	return NodePayload{
		Path:      rec.Path,
		LineCount: rec.LineCount,
		Scores:    rec.Scores,
		Intent:    rec.Intent,
		Endpoints: rec.Endpoints,
		Partial:   rec.Partial,
	}
}

// NewGraphPayload projects a graph onto the GRAPH_REBUILT payload.
func NewGraphPayload(g *model.CompiledGraph) GraphPayload {
	if g == nil {
		return GraphPayload{}
	}
	return GraphPayload{Version: g.Version, ScannedAt: g.ScannedAt, Summary: g.Summary}
}

// Live turns file changes into relay events for one project. Writes to
// tracked files refresh just those files and emit NODE_UPDATED per file;
// any create, remove or rename rebuilds the graph and emits GRAPH_REBUILT.
type Live struct {
	indexer Indexer
	hub     *Hub
	project string
	logger  *slog.Logger
}

// LiveOption configures Live.
type LiveOption func(*Live)

// WithLiveLogger sets the logger.
func WithLiveLogger(logger *slog.Logger) LiveOption {
	return func(l *Live) {
		l.logger = logger
	}
}

// NewLive creates a Live for project.
func NewLive(indexer Indexer, hub *Hub, project string, opts ...LiveOption) *Live {
	l := &Live{indexer: indexer, hub: hub, project: project, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handler returns a ChangeHandler bound to ctx, for use with NewWatcher.
func (l *Live) Handler(ctx context.Context) ChangeHandler {
	return func(changes []FileChange) {
		l.Apply(ctx, changes)
	}
}

// Apply processes one batch of changes. Failures are logged; the batch is
// never retried.
func (l *Live) Apply(ctx context.Context, changes []FileChange) {
	if len(changes) == 0 {
		return
	}
	for _, c := range changes {
		if c.Op.Structural() {
			l.rebuild(ctx)
			return
		}
	}

	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	recs, err := l.indexer.Refresh(ctx, paths...)
	if err != nil {
		l.logger.Error("refresh failed", "project", l.project, "files", len(paths), "error", err)
	}
	for _, rec := range recs {
		l.hub.Broadcast(l.project, NodeUpdated, NewNodePayload(rec))
	}
}

func (l *Live) rebuild(ctx context.Context) {
	g, err := l.indexer.Scan(ctx)
	if err != nil {
		l.logger.Warn("rebuild finished with errors", "project", l.project, "error", err)
	}
	if g == nil {
		return
	}
	l.hub.Broadcast(l.project, GraphRebuilt, NewGraphPayload(g))
}
