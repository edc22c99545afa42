package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	"github.com/acme/task-confirm-caller/internal/api/handlers"
	"github.com/acme/task-confirm-caller/internal/config"
)

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	cfg      config.HTTPConfig
	handlers *handlers.HandlerSet
}

// NewServer constructs a new HTTP server.
func NewServer(cfg config.HTTPConfig, handlerSet *handlers.HandlerSet) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: handlerSet.ErrorHandler,
	})
	app.Use(otelfiber.Middleware())
	handlerSet.Register(app)

	return &Server{app: app, cfg: cfg, handlers: handlerSet}
}

// Start begins serving HTTP traffic until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber application, used by handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}
