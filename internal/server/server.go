// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/pipeline"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/state"
)

// Publisher receives the files of a finished run.
type Publisher interface {
	Publish(files map[string]string) error
	Dir() string
}

// Server runs pipeline requests in the background and serves their records
// and progress.
type Server struct {
	orch     *pipeline.Orchestrator
	bus      *progress.Bus
	stateDir string
	store    Publisher
	history  progress.Sink
	gatherer prometheus.Gatherer
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  map[string]time.Time
	publish sync.Mutex
}

type Option func(*Server)

// WithPublisher publishes the files of every run that reaches done.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.store = p }
}

// WithHistory adds a sink that receives every event next to the bus.
func WithHistory(h progress.Sink) Option {
	return func(s *Server) { s.history = h }
}

// WithGatherer sets the registry /metrics serves. The default is the
// global Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func New(orch *pipeline.Orchestrator, bus *progress.Bus, stateDir string, opts ...Option) *Server {
	s := &Server{
		orch:     orch,
		bus:      bus,
		stateDir: stateDir,
		gatherer: prometheus.DefaultGatherer,
		log:      zap.NewNop(),
		active:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	v1 := r.Group("/v1")
	v1.POST("/runs", s.startRun)
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)
	v1.GET("/progress", gin.WrapH(progress.NewBroadcaster(s.bus, s.log)))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

// Shutdown cancels in-flight runs and waits for them to record their
// outcome, or for ctx to expire. Runs requested afterwards get 503.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started run has finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

type runRequest struct {
	Request  string `json:"request" binding:"required"`
	Continue bool   `json:"continue"`
}

func (s *Server) startRun(c *gin.Context) {
	var body runRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := pipeline.Request{ID: uuid.NewString(), Text: body.Request}
	if body.Continue {
		prev, err := state.LoadLatest(s.stateDir)
		switch {
		case errors.Is(err, state.ErrNoRuns):
			c.JSON(http.StatusConflict, gin.H{"error": "no previous run to continue"})
			return
		case err != nil:
			s.log.Error("loading latest run", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load previous run"})
			return
		}
		req.Previous = pipeline.FromRecord(prev)
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	s.active[req.ID] = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.execute(req)
	}()

	c.JSON(http.StatusAccepted, gin.H{"id": req.ID, "state": pipeline.StatePending})
}

func (s *Server) execute(req pipeline.Request) {
	log := s.log.With(zap.String("run", req.ID))
	run, err := s.orch.GenerateComplete(s.ctx, req, progress.Multi(s.bus, s.history))
	if err != nil {
		log.Warn("run did not complete", zap.Error(err))
	}

	rec := run.Record()
	if run.State == pipeline.StateDone && s.store != nil && run.Artifacts.Len() > 0 {
		s.publish.Lock()
		perr := s.store.Publish(run.Artifacts.Files())
		s.publish.Unlock()
		if perr != nil {
			log.Error("publishing files", zap.Error(perr))
		} else {
			rec.OutputDir = s.store.Dir()
		}
	}
	if err := rec.Save(s.stateDir); err != nil {
		log.Error("saving run record", zap.Error(err))
	}

	s.mu.Lock()
	delete(s.active, req.ID)
	s.mu.Unlock()
}

func (s *Server) listRuns(c *gin.Context) {
	recs, err := state.List(s.stateDir)
	if err != nil {
		s.log.Error("listing runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	if recs == nil {
		recs = []*state.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}

	s.mu.Lock()
	started, running := s.active[id]
	s.mu.Unlock()
	if running {
		c.JSON(http.StatusOK, gin.H{"id": id, "state": "running", "started": started})
		return
	}

	rec, err := state.Load(s.stateDir, id)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
	case err != nil:
		s.log.Error("loading run", zap.String("run", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
	default:
		c.JSON(http.StatusOK, rec)
	}
}
