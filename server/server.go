/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/suparena/dataprovider"
	"github.com/suparena/dataprovider/metrics"
	"go.uber.org/zap"
)

// Server serves a dataprovider.Handler over HTTP.
type Server struct {
	handler    dataprovider.Handler
	logger     *zap.Logger
	metrics    *metrics.Metrics
	corsOrigin string
	engine     *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records requests and serves /metrics from m's registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORSOrigin allows browser calls from origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

// New builds the routes for h.
func New(h dataprovider.Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	// keep record numbers as json.Number
	binding.EnableDecoderUseNumber = true
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics(s.metrics))
	router.Use(requestLogger(s.logger))
	if s.corsOrigin != "" {
		router.Use(corsMiddleware(s.corsOrigin))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": dataprovider.Version})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api")
	api.GET("/:resource", s.getList)
	api.GET("/:resource/:id", s.getOne)
	api.POST("/:resource/getMany", s.getMany)
	api.POST("/:resource", s.create)
	api.PUT("/:resource/:id", s.update)
	api.PUT("/:resource", s.updateMany)
	api.DELETE("/:resource/:id", s.delete)
	api.DELETE("/:resource", s.deleteMany)

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down, waiting up
// to shutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("data provider listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
