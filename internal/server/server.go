// Package server provides the HTTP server and routing for bondwatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/config"
	"github.com/aristath/bondwatch/internal/database"
	"github.com/aristath/bondwatch/internal/modules/market_hours"
	markethourshandlers "github.com/aristath/bondwatch/internal/modules/market_hours/handlers"
	"github.com/aristath/bondwatch/internal/modules/ranking"
	"github.com/aristath/bondwatch/internal/modules/snapshots"
	"github.com/aristath/bondwatch/internal/modules/valuation"
	valuationhandlers "github.com/aristath/bondwatch/internal/modules/valuation/handlers"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	BondsDB     *database.DB
	CacheDB     *database.DB
	Store       *valuation.Store
	Valuation   *valuation.Service
	MarketHours *market_hours.Service
	Snapshots   *snapshots.Repository
	Refresher   valuationhandlers.Refresher
	Scoring     ranking.Scoring
}

// Server is the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	bondsDB        *database.DB
	cacheDB        *database.DB
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server with all routes wired
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		cfg:     cfg.Cfg,
		bondsDB: cfg.BondsDB,
		cacheDB: cfg.CacheDB,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Cfg.DataDir,
			cfg.BondsDB,
			cfg.CacheDB,
			cfg.Store,
		),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	bondHandlers := valuationhandlers.NewHandler(
		cfg.Store,
		cfg.Valuation,
		cfg.Scoring,
		s.cfg.Scoring.TopN,
		cfg.Refresher,
		cfg.Log,
	)
	marketHoursHandlers := markethourshandlers.NewHandler(cfg.MarketHours, cfg.Log)
	snapshotHandlers := snapshots.NewHandler(cfg.Snapshots, cfg.Log)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		r.Route("/bonds", bondHandlers.RegisterRoutes)
		r.Route("/market-hours", marketHoursHandlers.RegisterRoutes)
		r.Route("/snapshots", snapshotHandlers.RegisterRoutes)
	})
}

// loggingMiddleware logs each request with latency and status
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	})
}

// Router exposes the routing tree for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
