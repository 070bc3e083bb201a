package http

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/analytics"
	"trafficlens/internal/export"
	"trafficlens/internal/timeframe"
)

// ExportAction downloads one report as CSV, or every report as a zip when :report is
// full-report. The visitors report honours ?interval= and the pages report ?limit=.
func (h *Handlers) ExportAction(c *cartridge.Context) error {
	report, err := export.ParseReport(c.Params("report"))
	if err != nil {
		return errorResponse(c, fiber.StatusNotFound, "Unknown report")
	}

	r, ok, err := h.parseRange(c)
	if !ok {
		return err
	}

	interval := timeframe.ParseInterval(c.Query("interval"))
	if analytics.CheckSeriesSize(r, interval) != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Date range too large for interval")
	}

	ds, err := h.dataset(c, r, interval)
	if err != nil {
		c.Logger.Error("Failed to build export", slog.String("report", string(report)), slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to export report")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report, r, ds); err != nil {
		c.Logger.Error("Failed to render export", slog.String("report", string(report)), slog.Any("error", err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to export report")
	}

	filename := export.Filename(report, r)
	c.Set(fiber.HeaderContentType, export.ContentType(report))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	c.Logger.Info("Report exported",
		slog.String("report", string(report)),
		slog.String("filename", filename),
		slog.Int("size", buf.Len()))

	return c.Send(buf.Bytes())
}

// dataset builds every report from one read of r plus one read of the prior period, so
// the files of a full report agree with each other.
func (h *Handlers) dataset(c *cartridge.Context, r timeframe.Range, interval timeframe.Interval) (export.Dataset, error) {
	report, cmp, err := h.engine.ReportWithComparison(c.UserContext(), r, interval, h.popularPagesLimit(c))
	if err != nil {
		return export.Dataset{}, err
	}

	return export.Dataset{
		Overview:       cmp.Metrics,
		Series:         report.Series,
		Geography:      h.presentCountries(report.Geography),
		TrafficSources: report.TrafficSources,
		Pages:          report.PopularPages,
		Devices:        presentDevices(report.Devices),
	}, nil
}
