package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/wekeepgrowing/stripe-notion-sync/internal/adapter/handler/http"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/middleware/auth"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
	"go.uber.org/zap"
)

// Services are the usecases served over HTTP.
type Services struct {
	Sync     *usecase.SyncService
	Backfill *usecase.BackfillService
	Events   *usecase.EventService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services Services
}

func NewServer(cfg *config.Config, log *zap.Logger, services Services) *Server {
	e := echo.New()
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()
	logger.WithEchoLogger(e, log)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		services: services,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
			"version": s.config.Service.Version,
		})
	})

	// Stripe webhooks are authenticated by their signature
	handlers.NewWebhookHandler(s.services.Events, s.logger).RegisterRoutes(s.echo)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Issuer: s.config.JWT.Issuer,
		Logger: s.logger,
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1", auth.JWTMiddleware(jwtConfig))
	handlers.NewAdminHandler(s.services.Sync, s.services.Backfill, s.logger).RegisterRoutes(v1)
}
