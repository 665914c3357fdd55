// Package server provides the HTTP server and routing for the portfolio
// manager.
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

	"github.com/ndewijer/investment-portfolio-manager/internal/config"
	"github.com/ndewijer/investment-portfolio-manager/internal/di"
	dividendhandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/dividends/handlers"
	fundhandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/funds/handlers"
	ibkrhandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/ibkr/handlers"
	loghandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/logs/handlers"
	portfoliohandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/portfolios/handlers"
	settingshandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/settings/handlers"
	transactionhandlers "github.com/ndewijer/investment-portfolio-manager/internal/modules/transactions/handlers"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
}

// Server is the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.Container)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		c := s.container

		fundHandler := fundhandlers.NewHandler(c.FundRepo, s.log)
		fundHandler.RegisterRoutes(r)

		portfolioHandler := portfoliohandlers.NewHandler(c.PortfolioRepo, c.PortfolioService, s.log)
		portfolioHandler.RegisterRoutes(r)

		transactionHandler := transactionhandlers.NewHandler(c.TransactionRepo, c.TransactionService, s.log)
		transactionHandler.RegisterRoutes(r)

		dividendHandler := dividendhandlers.NewHandler(c.DividendRepo, s.log)
		dividendHandler.RegisterRoutes(r)

		ibkrHandler := ibkrhandlers.NewHandler(c.IbkrRepo, c.IbkrService, c.PresetRepo, s.log)
		ibkrHandler.RegisterRoutes(r)

		settingsHandler := settingshandlers.NewHandler(c.SettingsRepo, s.log)
		settingsHandler.RegisterRoutes(r)

		logHandler := loghandlers.NewHandler(c.LogRepo, s.log)
		logHandler.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/info", s.systemHandlers.HandleSystemInfo)
			r.Get("/databases", s.systemHandlers.HandleDatabaseStats)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.systemHandlers.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "investment-portfolio-manager",
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
