// Package api exposes simulations over HTTP. Every client works on its own
// session, an isolated sim.Simulation addressed by a random id.
//
// Routes:
//
//	POST   /api/sessions                        create a session
//	GET    /api/sessions/:id/state              snapshot
//	POST   /api/sessions/:id/<command>          run a command
//	POST   /api/sessions/:id/defense_mode       {"mode": "CBL"}
//	DELETE /api/sessions/:id                    end a session
//	GET    /healthz
//	GET    /metrics                             when metrics are enabled
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-forksim/sim"
)

// Config configures the HTTP surface.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8545".
	Addr string
	// MaxSessions bounds the number of live sessions, 0 for no bound.
	MaxSessions int
	// MaxBlocks bounds the count of a single mining request. Zero means
	// DefaultMaxBlocks.
	MaxBlocks int
	// Metrics exposes /metrics and instruments every route.
	Metrics bool
	// Debug puts gin in debug mode.
	Debug bool
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultMaxBlocks is the mining request bound used when Config.MaxBlocks is zero.
const DefaultMaxBlocks = 100

// Server is the HTTP command surface.
type Server struct {
	cfg      Config
	log      logrus.FieldLogger
	router   *gin.Engine
	http     *http.Server
	sessions *Sessions
	metrics  *Metrics
}

// NewServer builds the router. Simulations are created with simOpts.
func NewServer(cfg Config, log logrus.FieldLogger, simOpts ...sim.Option) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = io.Discard
	}

	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = DefaultMaxBlocks
	}

	s := &Server{
		cfg: cfg,
		log: log,
		sessions: NewSessions(cfg.MaxSessions, func() (*sim.Simulation, error) {
			return sim.New(simOpts...)
		}),
	}
	if cfg.Metrics {
		s.metrics = NewMetrics()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log))
	if s.metrics != nil {
		r.Use(s.metrics.Instrument())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/healthz", s.health)
	s.routes(r)
	s.router = r
	return s
}

func (s *Server) routes(r *gin.Engine) {
	group := r.Group("/api/sessions")
	group.POST("", s.createSession)

	one := group.Group("/:id", s.loadSession)
	one.GET("/state", s.state)
	one.DELETE("", s.deleteSession)
	one.POST("/reset", s.command(func(sm *sim.Simulation, _ commandRequest) sim.Outcome { return sm.Reset() }))
	one.POST("/mine_honest_block", s.command(mineHonest))
	one.POST("/crack_key", s.command(func(sm *sim.Simulation, _ commandRequest) sim.Outcome { return sm.CrackKey() }))
	one.POST("/acquire_hash_power", s.command(func(sm *sim.Simulation, _ commandRequest) sim.Outcome { return sm.AcquireHashPower() }))
	one.POST("/enable_sybil", s.command(func(sm *sim.Simulation, _ commandRequest) sim.Outcome { return sm.EnableSybil() }))
	one.POST("/mine_attack_block", s.command(mineAttack))
	one.POST("/broadcast_chain", s.broadcast)
	one.POST("/defense_mode", s.defenseMode)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("HTTP server started")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.http.Shutdown(stopCtx); err != nil {
		return err
	}
	s.log.Info("HTTP server stopped")
	return <-errc
}
