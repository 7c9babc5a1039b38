package handler

import (
	"github.com/gofiber/fiber/v3"

	"shortreel-backend/internal/models"
	"shortreel-backend/internal/service"
)

// AnalyticsHandler accepts client-side events into the tracker.
type AnalyticsHandler struct {
	tracker service.EventTracker
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(tracker service.EventTracker) *AnalyticsHandler {
	return &AnalyticsHandler{tracker: tracker}
}

// Track ingests one client event. Always accepted; unknown event types are
// dropped by the tracker with a log line.
// @Summary Track a client event
// @Tags analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsEvent true "Event"
// @Success 202 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/analytics/track [post]
func (h *AnalyticsHandler) Track(c fiber.Ctx) error {
	var event models.AnalyticsEvent
	if err := c.Bind().Body(&event); err != nil {
		return badRequest(c, "invalid request body")
	}
	if event.UserID == "" || event.EventType == "" {
		return badRequest(c, "user_id and event_type are required")
	}

	h.tracker.Track(event)
	return c.Status(fiber.StatusAccepted).JSON(Response{Success: true, Message: "accepted"})
}
