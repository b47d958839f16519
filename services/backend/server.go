// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/pkg/logging"
)

// Version is reported by /health.
const Version = "1.0.0"

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("invalid backend config")

// Config holds the backend settings.
type Config struct {
	// Addr is the listen address for Run.
	Addr string

	// JWTSecret signs tokens. At least 16 bytes.
	JWTSecret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// LoginRatePerMinute bounds login attempts per client IP.
	LoginRatePerMinute int

	// SeedDemo creates the demo account on startup.
	SeedDemo bool

	// BcryptCost is the password hashing cost. Zero means
	// bcrypt.DefaultCost.
	BcryptCost int

	// ShutdownTimeout bounds graceful shutdown in Run. Zero means 5s.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the demo settings.
func DefaultConfig() Config {
	return Config{
		Addr:               "localhost:5000",
		JWTSecret:          "change-me-fintrack-demo-secret",
		AccessTTL:          time.Hour,
		RefreshTTL:         30 * 24 * time.Hour,
		LoginRatePerMinute: 10,
		SeedDemo:           true,
	}
}

// Options carries the injectable dependencies of a Server. Zero values
// get working defaults.
type Options struct {
	Config         Config
	Clock          clockwork.Clock
	Logger         *logging.Logger
	Registry       *prometheus.Registry
	TracerProvider trace.TracerProvider
	Store          *Store
}

// Server is the demo API.
//
// # Thread Safety
//
// Handler may serve concurrent requests. Run may be called once.
type Server struct {
	config    Config
	clock     clockwork.Clock
	logger    *logging.Logger
	store     *Store
	tokens    *TokenIssuer
	logins    *clientLimiter
	telemetry *Telemetry
	engine    *gin.Engine
	startedAt time.Time
}

// New builds a Server and seeds the demo account when configured.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	switch {
	case len(cfg.JWTSecret) < 16:
		return nil, fmt.Errorf("%w: jwt secret must be at least 16 bytes", ErrInvalidConfig)
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL < cfg.AccessTTL:
		return nil, fmt.Errorf("%w: need 0 < access ttl <= refresh ttl", ErrInvalidConfig)
	case cfg.LoginRatePerMinute < 1:
		return nil, fmt.Errorf("%w: login rate must be at least 1 per minute", ErrInvalidConfig)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	store := opts.Store
	if store == nil {
		store = NewStore()
	}
	telemetry, err := NewTelemetry(opts.Registry, Version)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:    cfg,
		clock:     clock,
		logger:    logger.With("component", "backend"),
		store:     store,
		tokens:    NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL, clock),
		logins:    newClientLimiter(cfg.LoginRatePerMinute, clock),
		telemetry: telemetry,
		startedAt: clock.Now(),
	}

	var traceOpts []otelgin.Option
	if opts.TracerProvider != nil {
		traceOpts = append(traceOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		otelgin.Middleware("fintrack-backend", traceOpts...),
		telemetry.Middleware(),
		s.requestLogger(),
	)
	s.setupRoutes(engine)
	s.engine = engine

	if cfg.SeedDemo {
		if err := SeedDemo(store, clock, cfg.BcryptCost); err != nil {
			return nil, fmt.Errorf("seeding demo data: %w", err)
		}
		s.logger.Info("demo account ready", "email", DemoEmail)
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// Telemetry returns the metrics.
func (s *Server) Telemetry() *Telemetry { return s.telemetry }

// Run serves on Config.Addr until ctx is cancelled, then shuts down
// gracefully.
//
// # Outputs
//
//   - error: The listen error, a shutdown error, or nil after a clean
//     shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener, which it closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if terr := s.telemetry.Shutdown(shutdownCtx); err == nil {
		err = terr
	}
	s.logger.Info("stopped")
	return err
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", args...)
			return
		}
		s.logger.Debug("request", args...)
	}
}
