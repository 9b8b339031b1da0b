package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jward/pennyone/internal/metrics"
	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/relay"
	"github.com/jward/pennyone/internal/store"
)

// pingRequest is the body of POST /api/telemetry/ping.
type pingRequest struct {
	AgentID    string     `json:"agentId"`
	Action     string     `json:"action"`
	TargetPath string     `json:"targetPath"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) handleMatrix(c *gin.Context) {
	g := s.engine.Graph()
	if g == nil {
		errorJSON(c, http.StatusNotFound, "no graph has been compiled yet")
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) handlePing(c *gin.Context) {
	if !s.limiter.Allow() {
		metrics.PingsIngested.WithLabelValues(metrics.PingLimited).Inc()
		errorJSON(c, http.StatusTooManyRequests, "ping rate limit exceeded")
		return
	}

	var req pingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.PingsIngested.WithLabelValues(metrics.PingRejected).Inc()
		errorJSON(c, http.StatusBadRequest, "invalid ping body")
		return
	}
	if strings.TrimSpace(req.AgentID) == "" || strings.TrimSpace(req.TargetPath) == "" {
		metrics.PingsIngested.WithLabelValues(metrics.PingRejected).Inc()
		errorJSON(c, http.StatusBadRequest, "agentId and targetPath are required")
		return
	}

	ping := model.Ping{
		AgentID:    req.AgentID,
		Action:     model.Action(req.Action),
		TargetPath: s.engine.Registry().Normalize(req.TargetPath),
	}
	if req.Timestamp != nil {
		ping.Timestamp = *req.Timestamp
	}

	saved, err := s.engine.Store().SavePing(c.Request.Context(), ping, s.engine.Root())
	if err != nil {
		metrics.PingsIngested.WithLabelValues(metrics.PingError).Inc()
		s.logger.Error("save ping", "agent", req.AgentID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to record ping")
		return
	}
	metrics.PingsIngested.WithLabelValues(metrics.PingStored).Inc()
	s.hub.Broadcast(s.engine.ProjectID(), relay.AgentTrace, saved)
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.engine.Store().SessionsWithSummaries(s.engine.Root())
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	c.JSON(http.StatusOK, sessions)
}

// sessionID parses :id and confirms the session exists, writing the error
// response itself when it cannot.
func (s *Server) sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(c, http.StatusBadRequest, "invalid session id")
		return 0, false
	}
	if _, err := s.engine.Store().Session(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "session not found")
			return 0, false
		}
		s.logger.Error("get session", "id", id, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to load session")
		return 0, false
	}
	return id, true
}

func (s *Server) handleSessionPings(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	pings, err := s.engine.Store().SessionPings(id)
	if err != nil {
		s.logger.Error("session pings", "id", id, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to load pings")
		return
	}
	if pings == nil {
		pings = []model.Ping{}
	}
	c.JSON(http.StatusOK, pings)
}

func (s *Server) handleReplay(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	speed := 1.0
	if raw := c.Query("speed"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid speed")
			return
		}
		speed = v
	}
	pings, err := s.engine.Store().SessionPings(id)
	if err != nil {
		s.logger.Error("session pings", "id", id, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to load pings")
		return
	}

	project := s.engine.ProjectID()
	go func() {
		n, err := s.replayer.Replay(s.baseCtx, project, pings, speed)
		if err != nil {
			s.logger.Info("replay stopped", "session", id, "emitted", n, "error", err)
			return
		}
		s.logger.Debug("replay finished", "session", id, "emitted", n)
	}()
	c.JSON(http.StatusAccepted, gin.H{"sessionId": id, "pings": len(pings), "speed": speed})
}

func (s *Server) handleExport(c *gin.Context) {
	id, ok := s.sessionID(c)
	if !ok {
		return
	}
	dir := filepath.Join(s.engine.Config().StatsDir, "sessions")
	path, err := s.engine.Store().ExportSession(id, dir)
	if err != nil {
		s.logger.Error("export session", "id", id, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to export session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "path": path})
}

func (s *Server) handleSearch(c *gin.Context) {
	results := s.engine.Query().Search(c.Query("q"))
	if results == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleHotspots(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	hot := s.engine.Query().Hotspots(limit)
	if hot == nil {
		hot = []model.FileRecord{}
	}
	c.JSON(http.StatusOK, hot)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	project := c.Query("project")
	if project == "" {
		errorJSON(c, http.StatusBadRequest, "project is required")
		return
	}
	ws, err := relay.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.logger.Debug("observer connected", "project", project)
	relay.Serve(ws, s.hub, project, s.engine.Config().Relay.PingInterval)
}
