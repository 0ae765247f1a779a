package http

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes bounds the payload read from Stripe.
const maxWebhookBodyBytes = 65536

type WebhookHandler struct {
	events *usecase.EventService
	logger *zap.Logger
}

func NewWebhookHandler(events *usecase.EventService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		events: events,
		logger: logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint.
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/stripe/:tenant", h.HandleWebhook)
}

// HandleWebhook verifies and processes one Stripe event. A processing failure
// answers 500 so Stripe redelivers the event.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	tenantID := c.Param("tenant")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "error reading request body")
	}

	result, err := h.events.HandleWebhook(c.Request().Context(), tenantID, body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if result != nil {
			h.logger.Error("Webhook event processing failed",
				zap.String("tenant_id", tenantID),
				zap.String("event_id", result.EventID),
				zap.String("event_type", result.EventType),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, result)
		}
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}
