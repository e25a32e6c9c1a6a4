// Package server exposes glucose readings over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mrcode/glucose-share/internal/alexa"
	"github.com/mrcode/glucose-share/internal/app"
	"github.com/mrcode/glucose-share/internal/badge"
	"github.com/mrcode/glucose-share/internal/models"
)

// ServiceName is reported by the health endpoints
const ServiceName = "Glucose Share Dexcom API"

// Config holds the HTTP server configuration
type Config struct {
	Host        string
	Port        int
	StaticDir   string           // Optional, served for unknown paths
	Version     string           // Reported by the root endpoint
	FormatValue func(int) string // Badge and voice values, mg/dL when nil
	Watcher     WatcherState     // Optional, reported by the health endpoints
}

// WatcherState exposes the background watcher to the health endpoints
type WatcherState interface {
	Snapshot() app.Snapshot
}

// GlucoseSource provides readings to the handlers
type GlucoseSource interface {
	GetLatestGlucose(ctx context.Context) (*models.Reading, error)
	GetGlucoseReadings(ctx context.Context, maxReadings, minutes int) ([]models.Reading, error)
}

// Server is the glucose HTTP server
type Server struct {
	config Config
	source GlucoseSource
	logger *slog.Logger
	badges *badge.Renderer
	skill  *alexa.Skill
	now    func() time.Time

	server   *http.Server
	listener net.Listener
}

// NewServer creates a new server
func NewServer(config Config, source GlucoseSource, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	badges, err := badge.NewRenderer(config.FormatValue)
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		source: source,
		logger: logger,
		badges: badges,
		skill:  alexa.NewSkill(source, logger, config.FormatValue),
		now:    time.Now,
	}, nil
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)

	r.Get("/api/glucose", s.handleGlucose)
	r.Get("/glucose", s.handleGlucose)
	r.Get("/api/graph", s.handleGraph)
	r.Get("/graph", s.handleGraph)

	r.Get("/api/glucose/badge.png", s.handleBadge)
	r.Get("/favicon.ico", s.handleFavicon)

	r.Post("/api/alexa", s.skill.ServeHTTP)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(s.serveStatic)

	return r
}

// Listen binds the configured address. Start calls it when needed, calling it
// first lets the caller report a busy port before anything is served.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	s.listener = ln
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.config.Port = addr.Port
	}

	s.logger.Info("Server listening", "address", s.Address())
	return nil
}

// Start serves until ctx is done or serving fails
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("Server shutting down")
	return s.server.Shutdown(ctx)
}

// Address returns the base URL of the server
func (s *Server) Address() string {
	host := s.config.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(s.config.Port)))
}

// cors allows browser dashboards on any origin and answers preflights
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests logs one line per request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
