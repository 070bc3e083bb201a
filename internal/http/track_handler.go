package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/events"
)

// TrackAction records a page view submitted by the tracking client.
func (h *Handlers) TrackAction(c *cartridge.Context) error {
	var input events.TrackInput
	if err := c.BodyParser(&input); err != nil {
		c.Logger.Debug("Invalid tracking payload", slog.Any("error", err))
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	input.IPAddress = clientIP(c.Ctx)
	if input.UserAgent == "" {
		input.UserAgent = c.Get(fiber.HeaderUserAgent)
	}

	if _, err := h.tracker.Track(c.UserContext(), input); err != nil {
		if errors.Is(err, events.ErrMissingRequiredFields) {
			return errorResponse(c, fiber.StatusBadRequest, "Missing required fields")
		}
		c.Logger.Error("Failed to record page view",
			slog.String("page_url", input.PageURL),
			slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to record page view")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Page view recorded"})
}
