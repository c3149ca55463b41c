// Package server exposes the diagnostic engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/diagrag/internal/audit"
	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// Runner runs one diagnostic session.
type Runner interface {
	Run(ctx context.Context, symptoms string, opts diagnosis.SessionOptions) *diagnosis.Result
}

// Searcher returns reranked candidate diseases for a query.
type Searcher interface {
	Candidates(ctx context.Context, query string, topK int) ([]diagnosis.Candidate, error)
}

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
	// RequestTimeout bounds a single request, including a full session.
	// Defaults to five minutes.
	RequestTimeout time.Duration
}

// Server is the diagnostic HTTP server.
type Server struct {
	cfg        Config
	runner     Runner
	searcher   Searcher
	sessions   *audit.Store
	router     chi.Router
	httpServer *http.Server
}

// New creates a server. searcher and sessions may be nil, which disables the
// search and session history endpoints.
func New(cfg Config, runner Runner, searcher Searcher, sessions *audit.Store) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	s := &Server{
		cfg:      cfg,
		runner:   runner,
		searcher: searcher,
		sessions: sessions,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// The websocket handler manages its own lifetime.
	r.Get("/api/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/api/diagnose", s.handleDiagnose)
		if s.searcher != nil {
			r.Get("/api/search", s.handleSearch)
		}
		if s.sessions != nil {
			audit.RegisterRoutes(r, s.sessions)
		}
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("diagrag server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
