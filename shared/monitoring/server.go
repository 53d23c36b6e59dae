package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tutorial-ranker/internal/models"
)

// RunFunc triggers a ranking run for a free-form topic request.
type RunFunc func(ctx context.Context, topic string) (*models.RankingReport, error)

// Server exposes health, status and rankings over HTTP.
type Server struct {
	monitor *Monitor
	run     RunFunc
	logger  zerolog.Logger
	router  *gin.Engine
	srv     *http.Server
	running sync.Mutex
}

// NewServer builds the API. run may be nil, in which case on-demand runs are
// rejected. An empty allowOrigins permits any origin.
func NewServer(monitor *Monitor, port int, allowOrigins []string, run RunFunc, logger zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}

	s := &Server{
		monitor: monitor,
		run:     run,
		logger:  logger,
	}

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowOrigins
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors.New(corsConfig))
	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/rankings/latest", s.handleLatest)
	r.POST("/rankings/run", s.handleRun)
	s.router = r

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("status server starting")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("status server error")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	code := http.StatusOK
	status := "ok"
	if !s.monitor.IsHealthy() {
		code = http.StatusServiceUnavailable
		status = "unhealthy"
	}
	c.JSON(code, gin.H{"status": status, "summary": s.monitor.GetStatusSummary()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Status())
}

func (s *Server) handleLatest(c *gin.Context) {
	report := s.monitor.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ranking available yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleRun(c *gin.Context) {
	if s.run == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "on-demand runs are disabled"})
		return
	}
	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	defer s.running.Unlock()

	topic := c.Query("topic")
	report, err := s.run(c.Request.Context(), topic)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("on-demand run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
