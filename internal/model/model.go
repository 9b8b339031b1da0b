// Package model holds the data types shared by the analyzer, the graph
// compiler, the telemetry store and the live relay.
package model

import "time"

// GraphVersion is written into every compiled graph artifact.
const GraphVersion = "1.7.0"

// ImportEdge is a raw, unresolved import as written in the source file.
type ImportEdge struct {
	Source   string `json:"source"`
	Local    string `json:"local,omitempty"`
	Imported string `json:"imported,omitempty"`
}

// Scores are the per-file quality measures. Every score lies in [1,10].
type Scores struct {
	Logic         float64 `json:"logic"`
	Style         float64 `json:"style"`
	Documentation float64 `json:"documentation"`
	Overall       float64 `json:"overall"`
	Gravity       int     `json:"gravity"`
}

// FileRecord is the analysis result for one file.
type FileRecord struct {
	Path          string       `json:"path"`
	Language      string       `json:"language"`
	LineCount     int          `json:"lineCount"`
	DecisionCount int          `json:"decisionCount"`
	NestingDepth  int          `json:"nestingDepth"`
	Hash          string       `json:"hash"`
	Scores        Scores       `json:"scores"`
	Intent        string       `json:"intent,omitempty"`
	Imports       []ImportEdge `json:"imports,omitempty"`
	Exports       []string     `json:"exports,omitempty"`
	Endpoints     []string     `json:"endpoints,omitempty"`
	IsAPI         bool         `json:"isApi,omitempty"`
	Partial       bool         `json:"partial,omitempty"`

	// Dependencies holds resolved, verified canonical paths. Filled in by
	// the graph compiler.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Clone returns a deep copy so reused records never alias a prior graph.
func (r FileRecord) Clone() FileRecord {
	out := r
	out.Imports = append([]ImportEdge(nil), r.Imports...)
	out.Exports = append([]string(nil), r.Exports...)
	out.Endpoints = append([]string(nil), r.Endpoints...)
	out.Dependencies = append([]string(nil), r.Dependencies...)
	return out
}

// Summary aggregates a compiled graph.
type Summary struct {
	TotalFiles   int     `json:"totalFiles"`
	TotalLines   int     `json:"totalLines"`
	AverageScore float64 `json:"averageScore"`
}

// CompiledGraph is one versioned snapshot of a project.
type CompiledGraph struct {
	Version   string       `json:"version"`
	ScannedAt time.Time    `json:"scannedAt"`
	Files     []FileRecord `json:"files"`
	Summary   Summary      `json:"summary"`
}

// File returns the record for a canonical path.
func (g *CompiledGraph) File(path string) (FileRecord, bool) {
	if g == nil {
		return FileRecord{}, false
	}
	for _, f := range g.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Paths returns the set of canonical paths in the graph.
func (g *CompiledGraph) Paths() map[string]bool {
	set := make(map[string]bool)
	if g == nil {
		return set
	}
	for _, f := range g.Files {
		set[f.Path] = true
	}
	return set
}

// Action is the kind of an agent interaction.
type Action string

const (
	ActionSearch   Action = "SEARCH"
	ActionRead     Action = "READ"
	ActionEdit     Action = "EDIT"
	ActionEvaluate Action = "EVALUATE"
	ActionThink    Action = "THINK"
)

// DefaultAction is used when a ping carries an unknown action.
const DefaultAction = ActionThink

// Actions lists the accepted action kinds.
var Actions = []Action{ActionSearch, ActionRead, ActionEdit, ActionEvaluate, ActionThink}

// Spoke is one registered project root.
type Spoke struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RootPath string `json:"rootPath"`
}

// Session groups the pings of one agent against one spoke.
type Session struct {
	ID         int64     `json:"id"`
	SpokeID    int64     `json:"spokeId"`
	AgentID    string    `json:"agentId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	TotalPings int       `json:"totalPings"`
}

// SessionSummary is a Session with a generated one-line description.
type SessionSummary struct {
	Session
	SpokeName     string `json:"spokeName"`
	PrimaryTarget string `json:"primaryTarget,omitempty"`
	Summary       string `json:"summary"`
}

// Ping is one recorded interaction.
type Ping struct {
	ID         int64     `json:"id,omitempty"`
	SessionID  int64     `json:"sessionId,omitempty"`
	AgentID    string    `json:"agentId"`
	Action     Action    `json:"action"`
	TargetPath string    `json:"targetPath"`
	Timestamp  time.Time `json:"timestamp"`
}
