// Package server wires the S3 API and admin HTTP servers together and
// manages their lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apimiddleware "github.com/piwi3910/nebulaio/internal/api/middleware"
	"github.com/piwi3910/nebulaio/internal/api/s3"
	"github.com/piwi3910/nebulaio/internal/config"
	"github.com/piwi3910/nebulaio/internal/health"
	"github.com/piwi3910/nebulaio/internal/objectstore"
	"github.com/piwi3910/nebulaio/internal/storage/fsadapter"
)

// Version is the current version of the server.
const Version = "0.1.0"

// Server hosts the S3 API server and the admin server (metrics/health).
type Server struct {
	cfg *config.Config

	store         *objectstore.Store
	healthChecker *health.Checker

	s3Server    *http.Server
	adminServer *http.Server
}

// New creates a Server rooted at cfg.Directory.
func New(cfg *config.Config) (*Server, error) {
	fs := fsadapter.NewOSFileSystem()
	store := objectstore.New(fs, cfg.Directory)

	srv := &Server{
		cfg:           cfg,
		store:         store,
		healthChecker: health.NewChecker(cfg.Directory),
	}

	srv.setupS3Server()
	srv.setupAdminServer()

	return srv, nil
}

func (s *Server) setupS3Server() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.RequestID)
	r.Use(apimiddleware.MetricsMiddleware)
	r.Use(apimiddleware.CORS())

	if !s.cfg.Silent {
		requestLogger := &apimiddleware.RequestLogger{Logger: logRequest}
		r.Use(requestLogger.Middleware)
	}

	handler := s3.NewHandler(s.store, s.cfg)
	handler.RegisterRoutes(r)

	s.s3Server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Hostname, s.cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) setupAdminServer() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	healthHandler := health.NewHandler(s.healthChecker)
	r.Get("/healthz/live", healthHandler.LivenessHandler)
	r.Get("/healthz/ready", healthHandler.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	s.adminServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Hostname, s.cfg.AdminPort),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Start runs both HTTP servers until ctx is cancelled, then shuts them down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", s.s3Server.Addr).Msg("starting S3 API server")

		if err := s.s3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("s3 server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", s.adminServer.Addr).Msg("starting admin server")

		if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("admin server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msg("shutting down servers")

		if err := s.s3Server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down S3 server")
		}

		if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down admin server")
		}

		return nil
	})

	return g.Wait()
}

func logRequest(requestID, method, path string, statusCode int, duration time.Duration) {
	log.Info().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", statusCode).
		Dur("duration", duration).
		Msg("s3 request")
}
