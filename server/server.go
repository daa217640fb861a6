// Package server exposes the task agent over a JSON REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/taskexec/agent"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/notify"
)

// DefaultOrigins are the browser origins allowed by CORS when none are given.
var DefaultOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// Config configures a Server.
type Config struct {
	// Agent serves the task tools.
	// Required.
	Agent *agent.Agent

	// Executor runs snippets posted to /api/execute.
	// Required.
	Executor code.Executor

	// Webhooks and EmailEnabled are reported by /api/integrations/status.
	Webhooks     *notify.Webhooks
	EmailEnabled bool

	// GeneratorEnabled and GeneratorModel are reported by
	// /api/integrations/status.
	GeneratorEnabled bool
	GeneratorModel   string

	// Origins are the CORS origins. Defaults to DefaultOrigins.
	Origins []string

	// MaxExecTimeout caps the timeout_ms a client may request from
	// /api/execute. Defaults to DefaultMaxExecTimeout.
	MaxExecTimeout time.Duration

	// Metrics records request and execution counters. Optional.
	Metrics *Metrics

	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Version is reported by /health.
	Version string

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultMaxExecTimeout is the largest per-request execution timeout.
const DefaultMaxExecTimeout = 30 * time.Second

// Server is the REST front end.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("%w: server requires Agent and Executor", code.ErrConfiguration)
	}
	if len(cfg.Origins) == 0 {
		cfg.Origins = DefaultOrigins
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.MaxExecTimeout <= 0 {
		cfg.MaxExecTimeout = DefaultMaxExecTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.cfg.Origins
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/tasks", s.listTasks)
	api.POST("/tasks", s.createTask)
	api.GET("/tasks/:id", s.getTask)
	api.PATCH("/tasks/:id", s.updateTask)
	api.DELETE("/tasks/:id", s.deleteTask)

	api.POST("/working-hours", s.logHours)
	api.GET("/working-hours", s.listHours)
	api.GET("/productivity/report", s.productivityReport)

	api.POST("/agent/process", s.process)
	api.POST("/query", s.query)
	api.POST("/execute", s.execute)
	api.GET("/tools", s.listTools)
	api.GET("/integrations/status", s.integrationsStatus)
	return r
}

// observe logs each request and records its metrics.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()
		s.cfg.Metrics.ObserveRequest(c.FullPath(), c.Request.Method, status, elapsed)

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
