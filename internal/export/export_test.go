package export_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/analytics"
	"trafficlens/internal/export"
	"trafficlens/internal/timeframe"
)

var week = timeframe.Range{
	Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 7, 7, 23, 59, 59, 0, time.UTC),
}

func sampleDataset() export.Dataset {
	return export.Dataset{
		Overview: analytics.Overview{
			UniqueVisitors:     analytics.Snapshot{Value: 120, Change: 20},
			PageViews:          analytics.Snapshot{Value: 480, Change: -12.345},
			AvgSessionDuration: analytics.Snapshot{Value: 95.5, Change: 0},
			BounceRate:         analytics.Snapshot{Value: 33.333, Change: 4.26},
		},
		Series: analytics.Series{
			Interval: timeframe.IntervalDay,
			Data: []analytics.SeriesPoint{
				{Date: "2024-07-01", Visitors: 3, PageViews: 7},
				{Date: "2024-07-02", Visitors: 0, PageViews: 0},
			},
		},
		Geography: []analytics.BreakdownItem{{Name: "Japan", Count: 4, Percentage: 80}, {Name: "Korea, Republic of", Count: 1, Percentage: 20}},
		TrafficSources: []analytics.TrafficSource{
			{Name: "Google", Source: "https://google.com", Visitors: 10, Icon: "search"},
		},
		Pages: []analytics.PageMetric{
			{PageURL: "/", PageTitle: `Home "main"`, Views: 9, AvgTime: 75, BounceRate: 50},
		},
		Devices: []analytics.BreakdownItem{{Name: "Mobile", Count: 2, Percentage: 100}},
	}
}

func TestWriteReports(t *testing.T) {
	testCases := []struct {
		report   export.Report
		expected string
	}{
		{
			report: export.ReportOverview,
			expected: "metric,value,change\n" +
				"Unique Visitors,120,20.0%\n" +
				"Page Views,480,-12.3%\n" +
				"Avg Session Duration,95.5,0.0%\n" +
				"Bounce Rate,33.3%,4.3%\n",
		},
		{
			report:   export.ReportVisitors,
			expected: "date,visitors,pageViews\n2024-07-01,3,7\n2024-07-02,0,0\n",
		},
		{
			report:   export.ReportGeography,
			expected: "name,visitors,percentage\nJapan,4,80\n\"Korea, Republic of\",1,20\n",
		},
		{
			report:   export.ReportTraffic,
			expected: "name,visitors\nGoogle,10\n",
		},
		{
			report:   export.ReportPages,
			expected: "pageUrl,pageTitle,views,avgTime,bounceRate\n/,\"Home \"\"main\"\"\",9,1m 15s,50\n",
		},
		{
			report:   export.ReportDevices,
			expected: "name,count,percentage\nMobile,2,100\n",
		},
	}

	for _, tc := range testCases {
		t.Run(string(tc.report), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, export.Write(&buf, tc.report, week, sampleDataset()))
			assert.Equal(t, tc.expected, buf.String())
		})
	}
}

func TestWriteEmptyReportHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.ReportDevices, week, export.Dataset{}))
	assert.Equal(t, "name,count,percentage\n", buf.String())
}

func TestWriteFullReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.ReportFull, week, sampleDataset()))

	archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	for _, file := range archive.File {
		names = append(names, file.Name)
	}
	assert.Equal(t, []string{
		"trafficlens-overview-2024-07-01-to-2024-07-07.csv",
		"trafficlens-visitors-2024-07-01-to-2024-07-07.csv",
		"trafficlens-geography-2024-07-01-to-2024-07-07.csv",
		"trafficlens-traffic-2024-07-01-to-2024-07-07.csv",
		"trafficlens-pages-2024-07-01-to-2024-07-07.csv",
		"trafficlens-devices-2024-07-01-to-2024-07-07.csv",
	}, names)

	f, err := archive.File[5].Open()
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "name,count,percentage\nMobile,2,100\n", string(content))
}

func TestParseReport(t *testing.T) {
	for _, name := range []string{"overview", "visitors", "geography", "traffic", "pages", "devices", "full-report"} {
		report, err := export.ParseReport(name)
		require.NoError(t, err)
		assert.Equal(t, export.Report(name), report)
	}

	_, err := export.ParseReport("sessions")
	assert.ErrorIs(t, err, export.ErrUnknownReport)
}

func TestFilenameAndContentType(t *testing.T) {
	assert.Equal(t, "trafficlens-pages-2024-07-01-to-2024-07-07.csv", export.Filename(export.ReportPages, week))
	assert.Equal(t, "trafficlens-full-report-2024-07-01-to-2024-07-07.zip", export.Filename(export.ReportFull, week))
	assert.Equal(t, "application/zip", export.ContentType(export.ReportFull))
	assert.Contains(t, export.ContentType(export.ReportOverview), "text/csv")
}
