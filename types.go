package pennyone

import (
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/store"
)

// Public aliases for the internal model and store types used by the Engine
// and QueryBuilder API. External consumers use these names; no conversion
// is needed.

type Store = store.Store
type FileRecord = model.FileRecord
type ImportEdge = model.ImportEdge
type Scores = model.Scores
type CompiledGraph = model.CompiledGraph
type Summary = model.Summary
type Ping = model.Ping
type Session = model.Session
type SessionSummary = model.SessionSummary
type Action = model.Action
