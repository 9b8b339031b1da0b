// Package relay pushes analysis and telemetry events to live observers.
//
// Observers subscribe per project. A Hub fans each event out to every open
// connection of that project; the Watcher and Live types turn file system
// changes into refreshed metrics, and the Replayer re-emits recorded
// sessions at a chosen speed.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jward/pennyone/internal/metrics"
)

// EventKind names a relay event.
type EventKind string

const (
	NodeUpdated  EventKind = "NODE_UPDATED"
	GraphRebuilt EventKind = "GRAPH_REBUILT"
	AgentTrace   EventKind = "AGENT_TRACE"
)

// Event is the frame written to observers.
type Event struct {
	Type    EventKind `json:"type"`
	Payload any       `json:"payload"`
}

// Conn is one observer connection.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Hub tracks observer connections by project.
type Hub struct {
	mu       sync.Mutex
	projects map[string]map[Conn]struct{}
	logger   *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		projects: make(map[string]map[Conn]struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers c under project. The returned func removes it and is
// safe to call more than once.
func (h *Hub) Subscribe(project string, c Conn) func() {
	h.mu.Lock()
	conns, ok := h.projects[project]
	if !ok {
		conns = make(map[Conn]struct{})
		h.projects[project] = conns
	}
	_, dup := conns[c]
	conns[c] = struct{}{}
	h.mu.Unlock()
	if !dup {
		metrics.Observers.Inc()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.remove(project, c)
		})
	}
}

// remove reports whether c was still registered.
func (h *Hub) remove(project string, c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.projects[project]
	if !ok {
		return false
	}
	if _, ok := conns[c]; !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.projects, project)
	}
	metrics.Observers.Dec()
	return true
}

// Count returns the number of open connections for project.
func (h *Hub) Count(project string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.projects[project])
}

// Broadcast writes {"type":kind,"payload":payload} to every connection of
// project and returns how many writes succeeded. A connection whose write
// fails is closed and dropped; it is not retried.
func (h *Hub) Broadcast(project string, kind EventKind, payload any) int {
	data, err := json.Marshal(Event{Type: kind, Payload: payload})
	if err != nil {
		h.logger.Error("marshal relay event", "kind", kind, "error", err)
		return 0
	}

	h.mu.Lock()
	conns := make([]Conn, 0, len(h.projects[project]))
	for c := range h.projects[project] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if err := c.WriteMessage(data); err != nil {
			h.logger.Warn("dropping observer", "project", project, "error", err)
			if h.remove(project, c) {
				c.Close()
			}
			continue
		}
		delivered++
	}
	metrics.BroadcastDeliveries.WithLabelValues(string(kind)).Add(float64(delivered))
	return delivered
}
