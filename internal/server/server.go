// Package server exposes the canton dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/config"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

// Results provides pipeline results for a source tuple. *pipeline.Memo
// satisfies it.
type Results interface {
	Get(ctx context.Context, src pipeline.Sources) (*pipeline.Result, error)
	Flush()
}

// Server bundles router and dependencies for the dashboard API.
type Server struct {
	cfg     config.Config
	results Results
	log     zerolog.Logger
	engine  *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, results Results, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(corsMiddleware())

	s := &Server{cfg: cfg, results: results, log: log, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("serving dashboard API")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.GET("/provinces", s.handleProvinces)
	api.GET("/cantons", s.handleCantons)
	api.GET("/districts", s.handleDistricts)
	api.GET("/districts.csv", s.handleDistrictsCSV)
	api.GET("/districts.pdf", s.handleDistrictsPDF)
	api.GET("/facilities", s.handleFacilities)
	api.GET("/charts/hospitals", s.handleHospitalsChart)
	api.GET("/charts/pressure", s.handlePressureChart)
	api.GET("/saturated", s.handleSaturated)
	api.GET("/map", s.handleMap)
	api.GET("/summary", s.handleSummary)
	api.POST("/reload", s.handleReload)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("duration", time.Since(start).String()).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
