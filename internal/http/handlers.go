package http

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/pariz/gountries"

	"trafficlens/internal/analytics"
	"trafficlens/internal/events"
	"trafficlens/internal/timeframe"
)

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GeoStatus reports whether IP to country lookups are available.
type GeoStatus interface {
	Enabled() bool
}

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Engine            *analytics.Engine
	Tracker           *events.Tracker
	Ranges            *timeframe.RangeParser
	PopularPagesLimit int

	// Optional
	Pinger Pinger
	Geo    GeoStatus
}

// Handlers serves the analytics API.
type Handlers struct {
	engine     *analytics.Engine
	tracker    *events.Tracker
	ranges     *timeframe.RangeParser
	pagesLimit int
	pinger     Pinger
	geo        GeoStatus
	countries  *gountries.Query
}

func NewHandlers(deps Dependencies) *Handlers {
	limit := deps.PopularPagesLimit
	if limit <= 0 {
		limit = analytics.DefaultPopularPagesLimit
	}

	return &Handlers{
		engine:     deps.Engine,
		tracker:    deps.Tracker,
		ranges:     deps.Ranges,
		pagesLimit: limit,
		pinger:     deps.Pinger,
		geo:        deps.Geo,
		countries:  gountries.New(),
	}
}

func errorResponse(c *cartridge.Context, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

// parseRange reads startDate and endDate from the query. On failure the 400 response has
// already been written and the returned error should be handed back to fiber.
func (h *Handlers) parseRange(c *cartridge.Context) (timeframe.Range, bool, error) {
	r, err := h.ranges.Parse(timeframe.RangeParserParams{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	})
	if err == nil {
		return r, true, nil
	}

	c.Logger.Debug("Rejected date range",
		slog.String("startDate", c.Query("startDate")),
		slog.String("endDate", c.Query("endDate")),
		slog.Any("error", err))

	if errors.Is(err, timeframe.ErrInvalidRange) {
		return timeframe.Range{}, false, errorResponse(c, fiber.StatusBadRequest, "startDate must not be after endDate")
	}
	return timeframe.Range{}, false, errorResponse(c, fiber.StatusBadRequest, "Invalid date format")
}

// popularPagesLimit reads ?limit=, falling back to the configured default.
func (h *Handlers) popularPagesLimit(c *cartridge.Context) int {
	limit := c.QueryInt("limit", h.pagesLimit)
	if limit <= 0 {
		return h.pagesLimit
	}
	return limit
}
