package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"market-scanner-bot/config"
	"market-scanner-bot/internal/adaptive"
	"market-scanner-bot/internal/circuit"
	"market-scanner-bot/internal/database"
	"market-scanner-bot/internal/events"
	"market-scanner-bot/internal/scanner"
)

// SignalReader serves persisted signals to the API. Nil when the
// database is disabled.
type SignalReader interface {
	LatestSignals(ctx context.Context, limit int) ([]database.SignalRecord, error)
}

// Server is the HTTP API for scanner status and risk-control actions
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      *config.Store
	bus        *events.Bus
	breaker    *circuit.Breaker
	adaptive   *adaptive.Manager
	scheduler  *scanner.Scheduler
	signals    SignalReader
	hub        *WSHub
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer creates the API server. signals may be nil.
func NewServer(
	store *config.Store,
	bus *events.Bus,
	breaker *circuit.Breaker,
	manager *adaptive.Manager,
	sched *scanner.Scheduler,
	signals SignalReader,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	cfg := store.Snapshot()
	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.ServerConfig.AllowedOrigins}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		store:     store,
		bus:       bus,
		breaker:   breaker,
		adaptive:  manager,
		scheduler: sched,
		signals:   signals,
		hub:       NewWSHub(logger),
		logger:    logger.With().Str("component", "APIServer").Logger(),
		startedAt: time.Now(),
	}
	s.registerRoutes()
	s.hub.AttachTo(bus)
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/signals/latest", s.handleLatestSignals)
		api.POST("/circuit-breaker/override", s.handleBreakerOverride)
		api.POST("/trades/exit", s.handleTradeExit)
		api.POST("/settings/capital", s.handleSetCapital)
		api.POST("/settings/strategies", s.handleSetStrategies)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the hub and HTTP listener. Blocks until the listener
// stops.
func (s *Server) Start() error {
	cfg := s.store.Snapshot()
	addr := fmt.Sprintf("%s:%d", cfg.ServerConfig.Host, cfg.ServerConfig.Port)

	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub for signal broadcasting
func (s *Server) Hub() *WSHub {
	return s.hub
}

// SetScheduler attaches the scheduler after construction. The server
// and the scheduler's signal publisher reference each other, so one
// side has to be wired late.
func (s *Server) SetScheduler(sched *scanner.Scheduler) {
	s.scheduler = sched
}
