// Package export renders dashboard reports as CSV files, or all of them as one zip archive.
package export

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"trafficlens/internal/analytics"
	"trafficlens/internal/timeframe"
)

// Report names one downloadable report.
type Report string

const (
	ReportOverview  Report = "overview"
	ReportVisitors  Report = "visitors"
	ReportGeography Report = "geography"
	ReportTraffic   Report = "traffic"
	ReportPages     Report = "pages"
	ReportDevices   Report = "devices"
	ReportFull      Report = "full-report"
)

// ErrUnknownReport is returned for a report name that has no writer.
var ErrUnknownReport = errors.New("unknown report")

// csvReports is the order reports appear in a full report archive.
var csvReports = []Report{ReportOverview, ReportVisitors, ReportGeography, ReportTraffic, ReportPages, ReportDevices}

const filenamePrefix = "trafficlens"

// Dataset is everything a report can be rendered from. Names are expected to be already
// formatted for display.
type Dataset struct {
	Overview       analytics.Overview
	Series         analytics.Series
	Geography      []analytics.BreakdownItem
	TrafficSources []analytics.TrafficSource
	Pages          []analytics.PageMetric
	Devices        []analytics.BreakdownItem
}

func ParseReport(name string) (Report, error) {
	report := Report(name)
	if report == ReportFull {
		return report, nil
	}
	for _, known := range csvReports {
		if report == known {
			return report, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReport, name)
}

// Filename is the download name of a report, e.g. trafficlens-pages-2024-07-01-to-2024-07-07.csv.
func Filename(report Report, r timeframe.Range) string {
	ext := "csv"
	if report == ReportFull {
		ext = "zip"
	}
	return fmt.Sprintf("%s-%s-%s.%s", filenamePrefix, report, r.String(), ext)
}

// ContentType is the MIME type of a report.
func ContentType(report Report) string {
	if report == ReportFull {
		return "application/zip"
	}
	return "text/csv; charset=utf-8"
}

// Write renders one report into w.
func Write(w io.Writer, report Report, r timeframe.Range, ds Dataset) error {
	switch report {
	case ReportOverview:
		return WriteOverview(w, ds.Overview)
	case ReportVisitors:
		return WriteSeries(w, ds.Series)
	case ReportGeography:
		return WriteGeography(w, ds.Geography)
	case ReportTraffic:
		return WriteTrafficSources(w, ds.TrafficSources)
	case ReportPages:
		return WritePages(w, ds.Pages)
	case ReportDevices:
		return WriteDevices(w, ds.Devices)
	case ReportFull:
		return WriteFullReport(w, r, ds)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReport, report)
	}
}

// WriteFullReport writes a zip archive holding every CSV report.
func WriteFullReport(w io.Writer, r timeframe.Range, ds Dataset) error {
	archive := zip.NewWriter(w)

	for _, report := range csvReports {
		entry, err := archive.Create(Filename(report, r))
		if err != nil {
			return fmt.Errorf("error creating %s entry: %w", report, err)
		}
		if err := Write(entry, report, r, ds); err != nil {
			return fmt.Errorf("error writing %s entry: %w", report, err)
		}
	}

	return archive.Close()
}

func WriteOverview(w io.Writer, o analytics.Overview) error {
	rows := [][]string{
		{"Unique Visitors", formatNumber(o.UniqueVisitors.Value), formatPercent(o.UniqueVisitors.Change)},
		{"Page Views", formatNumber(o.PageViews.Value), formatPercent(o.PageViews.Change)},
		{"Avg Session Duration", formatNumber(o.AvgSessionDuration.Value), formatPercent(o.AvgSessionDuration.Change)},
		{"Bounce Rate", formatPercent(o.BounceRate.Value), formatPercent(o.BounceRate.Change)},
	}
	return writeCSV(w, []string{"metric", "value", "change"}, rows)
}

func WriteSeries(w io.Writer, s analytics.Series) error {
	rows := make([][]string, len(s.Data))
	for i, point := range s.Data {
		rows[i] = []string{point.Date, strconv.Itoa(point.Visitors), strconv.Itoa(point.PageViews)}
	}
	return writeCSV(w, []string{"date", "visitors", "pageViews"}, rows)
}

func WriteGeography(w io.Writer, items []analytics.BreakdownItem) error {
	return writeCSV(w, []string{"name", "visitors", "percentage"}, breakdownRows(items))
}

func WriteDevices(w io.Writer, items []analytics.BreakdownItem) error {
	return writeCSV(w, []string{"name", "count", "percentage"}, breakdownRows(items))
}

func WriteTrafficSources(w io.Writer, sources []analytics.TrafficSource) error {
	rows := make([][]string, len(sources))
	for i, source := range sources {
		rows[i] = []string{source.Name, strconv.Itoa(source.Visitors)}
	}
	return writeCSV(w, []string{"name", "visitors"}, rows)
}

func WritePages(w io.Writer, pages []analytics.PageMetric) error {
	rows := make([][]string, len(pages))
	for i, page := range pages {
		rows[i] = []string{
			page.PageURL,
			page.PageTitle,
			strconv.Itoa(page.Views),
			analytics.FormatAvgTime(page.AvgTime),
			formatNumber(page.BounceRate),
		}
	}
	return writeCSV(w, []string{"pageUrl", "pageTitle", "views", "avgTime", "bounceRate"}, rows)
}

func breakdownRows(items []analytics.BreakdownItem) [][]string {
	rows := make([][]string, len(items))
	for i, item := range items {
		rows[i] = []string{item.Name, strconv.Itoa(item.Count), strconv.Itoa(item.Percentage)}
	}
	return rows
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// formatNumber prints the shortest representation, 42 rather than 42.000000.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
