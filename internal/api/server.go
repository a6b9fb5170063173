// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gold-portfolio/internal/circuitbreaker"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/service"
)

// PriceHistoryReader reads recorded snapshots
type PriceHistoryReader interface {
	ListRecent(ctx context.Context, instanceID string, limit int) ([]models.PriceHistoryRecord, error)
}

// ValuationHistoryReader reads the recorded portfolio valuation series
type ValuationHistoryReader interface {
	ListRange(ctx context.Context, instanceID string, from, to time.Time) ([]models.ValuationRecord, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	registry     *service.Registry
	commands     *service.CommandService
	priceHistory PriceHistoryReader
	valuations   ValuationHistoryReader
	breakers     *circuitbreaker.Manager
	config       *ServerConfig
	logger       *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64 // Per client; 0 disables throttling
	Burst             int
}

// Dependencies are the collaborators a server routes to. PriceHistory,
// Valuations and Breakers are optional.
type Dependencies struct {
	Registry     *service.Registry
	Commands     *service.CommandService
	PriceHistory PriceHistoryReader
	Valuations   ValuationHistoryReader
	Breakers     *circuitbreaker.Manager
	Logger       *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:       mux.NewRouter(),
		registry:     deps.Registry,
		commands:     deps.Commands,
		priceHistory: deps.PriceHistory,
		valuations:   deps.Valuations,
		breakers:     deps.Breakers,
		config:       config,
		logger:       logger.WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// order matters: recovery must see panics from everything after it
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	if s.config.RequestsPerSecond > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)))
	}
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Administrative commands
	commands := api.PathPrefix("/commands").Subrouter()
	commands.HandleFunc("/"+service.CommandAddEntry, s.handleAddEntry).Methods("POST")
	commands.HandleFunc("/"+service.CommandRemoveEntry, s.handleRemoveEntry).Methods("POST")
	commands.HandleFunc("/"+service.CommandUpdateEntry, s.handleUpdateEntry).Methods("POST")
	commands.HandleFunc("/"+service.CommandListEntries, s.handleListEntries).Methods("POST")
	commands.HandleFunc("/"+service.CommandHistoricalPrice, s.handleHistoricalPrice).Methods("POST")

	// Read surface
	api.HandleFunc("/instances", s.handleListInstances).Methods("GET")
	api.HandleFunc("/instances/{id}/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/instances/{id}/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/instances/{id}/entries/{entryId}/valuation", s.handleGetEntryValuation).Methods("GET")
	api.HandleFunc("/instances/{id}/sensors", s.handleGetSensors).Methods("GET")
	api.HandleFunc("/instances/{id}/price-history", s.handleGetPriceHistory).Methods("GET")
	api.HandleFunc("/instances/{id}/valuation-history", s.handleGetValuationHistory).Methods("GET")
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Infof("starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
