package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/analytics"
	"trafficlens/internal/timeframe"
)

// OverviewAction returns the headline metrics compared with the previous period.
func (h *Handlers) OverviewAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	overview, err := h.engine.Overview(c.UserContext(), r)
	if err != nil {
		c.Logger.Error("Failed to fetch overview metrics", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch overview metrics")
	}

	return c.JSON(overview)
}

// VisitorsOverTimeAction returns the zero-filled visitor series for ?interval=day|week|month.
func (h *Handlers) VisitorsOverTimeAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	interval := timeframe.ParseInterval(c.Query("interval"))
	if err := analytics.CheckSeriesSize(r, interval); err != nil {
		c.Logger.Debug("Rejected oversized series", slog.String("range", r.String()), slog.Any("error", err))
		return errorResponse(c, fiber.StatusBadRequest, "Date range too large for interval")
	}

	series, err := h.engine.Series(c.UserContext(), r, interval)
	if err != nil {
		c.Logger.Error("Failed to fetch visitor data", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch visitor data")
	}

	return c.JSON(series)
}

func (h *Handlers) GeographyAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	countries, err := h.engine.Geography(c.UserContext(), r)
	if err != nil {
		c.Logger.Error("Failed to fetch geography data", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch geography data")
	}

	return c.JSON(countryResponses(h.presentCountries(countries)))
}

func (h *Handlers) TrafficSourcesAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	sources, err := h.engine.TrafficSources(c.UserContext(), r)
	if err != nil {
		c.Logger.Error("Failed to fetch traffic sources", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch traffic sources")
	}

	return c.JSON(trafficSourceResponses(sources))
}

func (h *Handlers) PopularPagesAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	pages, err := h.engine.PopularPages(c.UserContext(), r, h.popularPagesLimit(c))
	if err != nil {
		c.Logger.Error("Failed to fetch popular pages", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch popular pages")
	}

	return c.JSON(popularPageResponses(pages))
}

func (h *Handlers) DevicesAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	devices, err := h.engine.Devices(c.UserContext(), r)
	if err != nil {
		c.Logger.Error("Failed to fetch device data", slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch device data")
	}

	return c.JSON(presentDevices(devices))
}

// CompareAction compares the requested range with a preset or a custom comparison range.
// Custom comparisons take compareStartDate and compareEndDate.
func (h *Handlers) CompareAction(c *cartridge.Context) error {
	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	preset, err := analytics.ParsePreset(c.Query("preset"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Unknown comparison preset")
	}

	var custom timeframe.Range
	if preset == analytics.PresetCustom {
		start, okStart := timeframe.ParseDate(c.Query("compareStartDate"), false)
		end, okEnd := timeframe.ParseDate(c.Query("compareEndDate"), true)
		if !okStart || !okEnd {
			return errorResponse(c, fiber.StatusBadRequest, "Custom comparison requires valid compareStartDate and compareEndDate")
		}
		if custom, err = timeframe.NewRange(start, end); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "compareStartDate must not be after compareEndDate")
		}
	}

	result, err := h.engine.CompareRanges(c.UserContext(), r, analytics.ComparisonRange(preset, r, custom))
	if err != nil {
		c.Logger.Error("Failed to fetch comparison metrics",
			slog.String("preset", string(preset)),
			slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to fetch comparison metrics")
	}
	result.Preset = preset

	return c.JSON(result)
}
