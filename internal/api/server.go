// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vault-holdings/internal/logging"
	"github.com/vault-holdings/internal/types"
)

// HoldingsServiceInterface defines the interface for holdings valuation operations
type HoldingsServiceInterface interface {
	GetHoldingsSeries(ctx context.Context, address string, periodDays int) (*types.HoldingsSeries, error)
	Invalidate(ctx context.Context, address string) error
}

// Pinger reports liveness of one backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	holdingsService HoldingsServiceInterface
	stores          map[string]Pinger
	config          *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	DefaultPeriodDays int
	MaxPeriodDays     int
}

// NewServer creates a new API server instance. The stores map feeds the
// health endpoint; a nil entry is skipped.
func NewServer(config *ServerConfig, holdingsService HoldingsServiceInterface, stores map[string]Pinger) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		holdingsService: holdingsService,
		stores:          stores,
		config:          config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/holdings/{address}", s.handleGetHoldings).Methods("GET")
	api.HandleFunc("/holdings/{address}/cache", s.handleInvalidateAddress).Methods("DELETE")
	api.HandleFunc("/holdings-cache", s.handleInvalidateAll).Methods("DELETE")
}

// handleHealth handles health check requests, pinging each backing store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.stores))
	for name, store := range s.stores {
		if store == nil {
			continue
		}
		if err := store.Ping(ctx); err != nil {
			checks[name] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "healthy"
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"service": "vault-holdings",
		"checks":  checks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Infof("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
