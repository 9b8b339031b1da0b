// Package server exposes the compiled graph, telemetry ingestion, session
// history and the live relay over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jward/pennyone"
	"github.com/jward/pennyone/internal/relay"
)

// Server is the HTTP bridge for one Engine.
type Server struct {
	engine   *pennyone.Engine
	hub      *relay.Hub
	replayer *relay.Replayer
	limiter  *rate.Limiter
	token    string
	logger   *slog.Logger
	router   *gin.Engine

	// baseCtx bounds background work such as replays.
	baseCtx context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithToken fixes the bearer token instead of generating one.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			s.token = token
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds a Server. Unless configured, the bearer token is a fresh
// random UUID for this run.
func New(engine *pennyone.Engine, hub *relay.Hub, opts ...Option) *Server {
	cfg := engine.Config()
	s := &Server{
		engine:  engine,
		hub:     hub,
		token:   cfg.Server.Token,
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	if s.token == "" {
		s.token = uuid.NewString()
	}
	for _, opt := range opts {
		opt(s)
	}

	s.replayer = relay.NewReplayer(hub)
	if cfg.Relay.ReplayMinStep > 0 {
		s.replayer.MinStep = cfg.Relay.ReplayMinStep
	}
	if cfg.Relay.ReplayMaxStep > 0 {
		s.replayer.MaxStep = cfg.Relay.ReplayMaxStep
	}

	limit := rate.Limit(cfg.Server.PingRate)
	if cfg.Server.PingRate <= 0 {
		limit = rate.Inf
	}
	s.limiter = rate.NewLimiter(limit, max(cfg.Server.PingBurst, 1))

	s.router = s.routes()
	return s
}

// Token returns the bearer token clients must present.
func (s *Server) Token() string {
	return s.token
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api", s.authMiddleware(false))
	api.GET("/matrix", s.handleMatrix)
	api.POST("/telemetry/ping", s.handlePing)
	api.GET("/sessions", s.handleSessions)
	api.GET("/sessions/:id/pings", s.handleSessionPings)
	api.POST("/sessions/:id/replay", s.handleReplay)
	api.POST("/sessions/:id/export", s.handleExport)
	api.GET("/search", s.handleSearch)
	api.GET("/hotspots", s.handleHotspots)

	r.GET("/ws", s.authMiddleware(true), s.handleWebSocket)
	r.GET("/metrics", s.authMiddleware(false), gin.WrapH(promhttp.Handler()))

	if dir := s.engine.Config().Server.StaticDir; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.engine.Config().Root, dir)
		}
		r.NoRoute(spaHandler(dir))
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", "addr", addr, "project", s.engine.ProjectID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
