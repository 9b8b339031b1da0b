package graph

import (
	"sync"

	"github.com/jward/pennyone/internal/model"
)

// Gate decides per file whether a prior analysis result can be reused.
type Gate struct {
	prior      map[string]model.FileRecord
	priorPaths map[string]bool

	mu     sync.Mutex
	reused map[string]bool
}

// NewGate builds a gate over the prior graph. A nil prior makes every file
// new.
func NewGate(prior *model.CompiledGraph) *Gate {
	g := &Gate{
		prior:      make(map[string]model.FileRecord),
		priorPaths: prior.Paths(),
		reused:     make(map[string]bool),
	}
	if prior != nil {
		for _, f := range prior.Files {
			g.prior[f.Path] = f
		}
	}
	return g
}

// ShouldReanalyze reports whether the file at path with content hash must be
// analyzed again.
func (g *Gate) ShouldReanalyze(path, hash string) bool {
	rec, ok := g.prior[path]
	return !ok || rec.Hash != hash
}

// Reuse returns a copy of the prior record with its raw imports intact and
// its resolved dependencies cleared.
func (g *Gate) Reuse(path string) (model.FileRecord, bool) {
	rec, ok := g.prior[path]
	if !ok {
		return model.FileRecord{}, false
	}
	out := rec.Clone()
	out.Dependencies = nil

	g.mu.Lock()
	g.reused[path] = true
	g.mu.Unlock()
	return out, true
}

// ReusableEdges returns the prior resolved dependencies of a reused file, but
// only when the set of known paths is exactly the prior graph's: any added or
// removed file can change what an import resolves to.
func (g *Gate) ReusableEdges(path string, known map[string]bool) ([]string, bool) {
	g.mu.Lock()
	reused := g.reused[path]
	g.mu.Unlock()
	if !reused || !sameSet(known, g.priorPaths) {
		return nil, false
	}
	return append([]string(nil), g.prior[path].Dependencies...), true
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
