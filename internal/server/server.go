// Package server exposes matching, normalization, clustering and learning
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/product-normalizer/internal/cluster"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/normalize"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/similarity"
)

const shutdownTimeout = 10 * time.Second

// Config holds the server settings.
type Config struct {
	Scorer         similarity.Scorer
	Addr           string
	Thresholds     model.ThresholdSet
	Threshold      float64
	LearnThreshold float64
	LearnEnabled   bool
}

// Server serves the normalizer API backed by one reference table cache.
type Server struct {
	cache      *reftable.Cache
	matcher    *normalize.Matcher
	learner    *normalize.Learner
	clusterer  *cluster.Clusterer
	httpServer *http.Server
	router     *gin.Engine
	config     Config
}

// New creates a server. Zero thresholds fall back to the package defaults.
func New(cache *reftable.Cache, config Config) (*Server, error) {
	if cache == nil {
		return nil, errors.New("reference cache is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Threshold == 0 {
		config.Threshold = normalize.DefaultThreshold
	}
	if config.LearnThreshold == 0 {
		config.LearnThreshold = normalize.DefaultLearnThreshold
	}
	if len(config.Thresholds) == 0 {
		config.Thresholds = model.DefaultThresholds
	}

	clusterer, err := cluster.New(config.Thresholds, config.Scorer)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterer: %w", err)
	}

	s := &Server{
		cache:     cache,
		matcher:   normalize.NewMatcher(config.Scorer),
		clusterer: clusterer,
		config:    config,
	}
	if config.LearnEnabled {
		s.learner = normalize.NewLearner(cache)
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware())
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/match", s.handleMatch)
		v1.POST("/normalize", s.handleNormalize)
		v1.POST("/cluster", s.handleCluster)
		v1.POST("/learn", s.handleLearn)
		v1.GET("/reference", s.handleReference)
	}

	router.NoRoute(func(c *gin.Context) {
		sendError(c, http.StatusNotFound, "route not found")
	})
	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
