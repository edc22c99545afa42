package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/lifecycle"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	manager *lifecycle.Manager
	logger  *logger.Logger
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(manager *lifecycle.Manager, lg *logger.Logger) *HandlerSet {
	return &HandlerSet{manager: manager, logger: lg.Named("http")}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/voice", h.voiceScript)
	webhooks.Post("/gather", h.gather)
	webhooks.Post("/complete", h.complete)
	webhooks.Post("/status", h.statusCallback)

	api := app.Group("/api")
	v1 := api.Group("/v1")
	v1.Get("/tasks", h.listTasks)
	v1.Post("/process", h.processTasks)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{"error": message})
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "resource not found")
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	pending, err := h.manager.PendingCount(ctx.Context())
	if err != nil {
		h.logger.Error("pending count", zap.Error(err))
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{"status": "ok", "pending_calls": pending})
}
