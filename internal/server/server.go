// Package server exposes the controller over a JSON HTTP API with a
// WebSocket notification stream and a Prometheus endpoint.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"netsift/internal/app"
	"netsift/internal/correlate"
	"netsift/internal/models"
	"netsift/internal/reporting"
)

// Server is the netsift HTTP API.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	ctl        *app.Controller
	hub        *Hub
	gatherer   prometheus.Gatherer
	log        zerolog.Logger

	// jobs run long operations past the request that started them.
	jobs      sync.WaitGroup
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

// New creates a server. gatherer may be nil to serve the default registry.
func New(addr string, ctl *app.Controller, hub *Hub, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		ctl:      ctl,
		hub:      hub,
		gatherer: gatherer,
		log:      log.With().Str("component", "server").Logger(),
	}
	s.jobCtx, s.cancelJob = context.WithCancel(context.Background())
	s.router.Use(gin.Recovery(), requestLogger(s.log))
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/ws", gin.WrapF(s.hub.HandleWebSocket))

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/records", s.handleRecords)
		api.POST("/records/select", s.handleSelect)

		api.POST("/capture/start", s.handleStart)
		api.POST("/capture/stop", s.handleStop)

		api.POST("/scan", s.handleScan)
		api.POST("/dnscache", s.handleDNSCache)
		api.POST("/resolve", s.handleResolve)
		api.POST("/enrich", s.handleEnrich)
		api.POST("/probe", s.handleProbe)

		api.POST("/export", s.handleExport)
		api.POST("/report", s.handleReport)
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

type startRequest struct {
	Process string `json:"process" binding:"required"`
}

type selectRequest struct {
	Keys     []string `json:"keys"`
	All      bool     `json:"all"`
	Selected bool     `json:"selected"`
}

type scanRequest struct {
	Dir string `json:"dir" binding:"required"`
}

type keysRequest struct {
	Keys []string `json:"keys"`
}

type exportRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleRecords(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Records())
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.All {
		s.ctl.SelectAll(req.Selected)
		c.JSON(http.StatusOK, gin.H{"updated": len(s.ctl.Records())})
		return
	}
	keys, err := parseKeys(req.Keys)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated := 0
	for _, k := range keys {
		if s.ctl.SetSelected(k, req.Selected) {
			updated++
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctl.Start(s.jobCtx, req.Process); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, correlate.ErrEmptyFilter) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleStop(c *gin.Context) {
	s.ctl.Stop()
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.background("scan", func(ctx context.Context) error {
		_, err := s.ctl.Scan(ctx, req.Dir)
		return err
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "scan started"})
}

func (s *Server) handleDNSCache(c *gin.Context) {
	n, err := s.ctl.ImportDNSCache(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (s *Server) handleResolve(c *gin.Context) {
	s.background("resolve", func(ctx context.Context) error {
		s.ctl.ResolveNames(ctx)
		return nil
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "resolving"})
}

func (s *Server) handleEnrich(c *gin.Context) {
	keys, ok := s.bindKeys(c)
	if !ok {
		return
	}
	s.background("enrich", func(ctx context.Context) error {
		s.ctl.Enrich(ctx, keys)
		return nil
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "enriching"})
}

func (s *Server) handleProbe(c *gin.Context) {
	keys, ok := s.bindKeys(c)
	if !ok {
		return
	}
	s.background("probe", func(ctx context.Context) error {
		s.ctl.Probe(ctx, keys)
		return nil
	})
	c.JSON(http.StatusAccepted, gin.H{"message": "checking"})
}

func (s *Server) handleExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = string(reporting.SelectAll)
	}
	res, err := s.ctl.Export(req.Mode)
	switch {
	case errors.Is(err, reporting.ErrEmptySelection):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) handleReport(c *gin.Context) {
	path, err := s.ctl.Report()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// bindKeys reads an optional key list. An empty body means all records.
func (s *Server) bindKeys(c *gin.Context) ([]models.Key, bool) {
	var req keysRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
	}
	keys, err := parseKeys(req.Keys)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return keys, true
}

var errBadKey = errors.New("keys must look like PROTO/ADDRESS")

func parseKeys(raw []string) ([]models.Key, error) {
	keys := make([]models.Key, 0, len(raw))
	for _, r := range raw {
		k, ok := models.ParseKey(r)
		if !ok {
			return nil, errBadKey
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Server) background(name string, fn func(ctx context.Context) error) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if err := fn(s.jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Str("job", name).Msg("background job failed")
		}
	}()
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener serves on ln.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("api listening")
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and cancels running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancelJob()
	s.jobs.Wait()
	return err
}
