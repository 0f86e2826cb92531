package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sentinel-engine-go/internal/api/handlers"
	"sentinel-engine-go/internal/api/middleware"
	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/services"
)

type Server struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	container *services.ServiceContainer

	healthHandler    *handlers.HealthHandler
	systemHandler    *handlers.SystemHandler
	alertHandler     *handlers.AlertHandler
	analyticsHandler *handlers.AnalyticsHandler
	eventHandler     *handlers.EventHandler
	cameraHandler    *handlers.CameraHandler
	adminHandler     *handlers.AdminHandler
	suspectHandler   *handlers.SuspectHandler
}

// NewServer builds the HTTP API on top of an already constructed container.
func NewServer(cfg *config.Config, container *services.ServiceContainer) (*Server, error) {
	if container == nil {
		return nil, fmt.Errorf("service container is required")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	registry := func() handlers.CameraRegistry { return container.Zones.Load() }

	s := &Server{
		config:    cfg,
		router:    router,
		container: container,

		healthHandler:    handlers.NewHealthHandler(cfg.EngineID, cfg.Version, container.Store),
		systemHandler:    handlers.NewSystemHandler(cfg.EngineID, container.Counters, container.Cameras, container.Hub),
		alertHandler:     handlers.NewAlertHandler(container.Alerts),
		analyticsHandler: handlers.NewAnalyticsHandler(container.Cameras, container.Store),
		eventHandler:     handlers.NewEventHandler(container.Ingest),
		cameraHandler:    handlers.NewCameraHandler(registry, container.Cameras),
		adminHandler:     handlers.NewAdminHandler(container, container.Suspects, container.Aggregation),
		suspectHandler:   handlers.NewSuspectHandler(container.Store),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Str("engine_id", s.config.EngineID).Msg("Starting Sentinel Engine API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping Sentinel Engine API")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
