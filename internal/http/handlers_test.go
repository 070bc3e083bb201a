package http_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/analytics"
	"trafficlens/internal/events"
	handlers "trafficlens/internal/http"
	"trafficlens/internal/testsupport"
	"trafficlens/internal/timeframe"
)

var now = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type stubGeo struct{ enabled bool }

func (s stubGeo) Enabled() bool { return s.enabled }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type brokenStore struct{ events.Store }

func (brokenStore) GetPageViews(context.Context, time.Time, time.Time) ([]events.PageView, error) {
	return nil, errors.New("disk on fire")
}

// countingStore tallies the ranges the engine reads.
type countingStore struct {
	events.Store

	mu    sync.Mutex
	reads map[timeframe.Range]int
}

func (c *countingStore) GetPageViews(ctx context.Context, start, end time.Time) ([]events.PageView, error) {
	c.mu.Lock()
	c.reads[timeframe.Range{Start: start, End: end}]++
	c.mu.Unlock()
	return c.Store.GetPageViews(ctx, start, end)
}

func (c *countingStore) readsOf(r timeframe.Range) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[r]
}

type testServer struct {
	app    *fiber.App
	store  *events.MemoryStore
	reads  *countingStore
	ranges *timeframe.RangeParser
}

func newTestServer(t *testing.T, opts ...func(*handlers.Dependencies)) *testServer {
	t.Helper()

	store := events.NewMemoryStore()
	reads := &countingStore{Store: store, reads: make(map[timeframe.Range]int)}
	logger := testsupport.GetLogger()
	ranges := timeframe.NewRangeParser(7, &timeframe.FixedTimeProvider{CurrentTime: now})

	deps := handlers.Dependencies{
		Engine:            analytics.NewEngine(reads, logger, 2),
		Tracker:           events.NewTracker(store, logger, events.WithClock(func() time.Time { return now })),
		Ranges:            ranges,
		PopularPagesLimit: 5,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h := handlers.NewHandlers(deps)

	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.Config = testsupport.TestConfig()
	serverCfg.Logger = logger
	serverCfg.DBManager = testsupport.NewTestDBManager(testsupport.SetupTestDB(t))
	serverCfg.EnableStaticAssets = false
	serverCfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(serverCfg)
	require.NoError(t, err)

	srv.Get("/_health", h.HealthIndexAction)
	srv.Post("/api/analytics/track", h.TrackAction)
	srv.Get("/api/analytics/overview", h.OverviewAction)
	srv.Get("/api/analytics/visitors-over-time", h.VisitorsOverTimeAction)
	srv.Get("/api/analytics/geography", h.GeographyAction)
	srv.Get("/api/analytics/traffic-sources", h.TrafficSourcesAction)
	srv.Get("/api/analytics/popular-pages", h.PopularPagesAction)
	srv.Get("/api/analytics/devices", h.DevicesAction)
	srv.Get("/api/analytics/compare", h.CompareAction)
	srv.Get("/api/analytics/export/:report", h.ExportAction)

	return &testServer{app: srv.App(), store: store, reads: reads, ranges: ranges}
}

func (s *testServer) get(t *testing.T, target string) (int, []byte, nethttp.Header) {
	t.Helper()

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body, resp.Header
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// seed records a small data set for the week of 2024-07-08.
func (s *testServer) seed(t *testing.T) {
	testsupport.RecordViews(t, s.store,
		testsupport.ViewWith("v1", "s1", "/", testsupport.Day(2024, 7, 9), testsupport.WithTitle("Home"),
			testsupport.WithDuration(75), testsupport.WithCountry("JP"), testsupport.WithDevice("mobile")),
		testsupport.ViewWith("v1", "s1", "/news", testsupport.Day(2024, 7, 9).Add(time.Minute),
			testsupport.WithReferrer("https://www.google.com/")),
		testsupport.ViewWith("v2", "s2", "/", testsupport.Day(2024, 7, 11), testsupport.WithDuration(15),
			testsupport.WithCountry("Japan"), testsupport.WithDevice("desktop")),
		testsupport.ViewWith("v3", "s3", "/", testsupport.Day(2024, 7, 12),
			testsupport.WithCountry("DEU"), testsupport.WithDevice("desktop")),
	)
}

const week = "startDate=2024-07-08&endDate=2024-07-14"

func TestTrackAction(t *testing.T) {
	testCases := []struct {
		name            string
		body            string
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "records a page view",
			body:            `{"pageUrl":"/pricing","pageTitle":"Pricing","visitorId":"v1","sessionId":"s1","country":"Japan","device":"Desktop"}`,
			expectedStatus:  fiber.StatusCreated,
			expectedMessage: "Page view recorded",
		},
		{
			name:            "missing visitor id",
			body:            `{"pageUrl":"/pricing"}`,
			expectedStatus:  fiber.StatusBadRequest,
			expectedMessage: "Missing required fields",
		},
		{
			name:            "missing page url",
			body:            `{"visitorId":"v1"}`,
			expectedStatus:  fiber.StatusBadRequest,
			expectedMessage: "Missing required fields",
		},
		{
			name:            "malformed json",
			body:            `{"pageUrl":`,
			expectedStatus:  fiber.StatusBadRequest,
			expectedMessage: "Invalid request body",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t)

			req := httptest.NewRequest(fiber.MethodPost, "/api/analytics/track", strings.NewReader(tc.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			resp, err := srv.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
			assert.Equal(t, tc.expectedMessage, decode[map[string]string](t, body)["message"])
		})
	}
}

func TestTrackActionStoresTheView(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(fiber.MethodPost, "/api/analytics/track",
		strings.NewReader(`{"pageUrl":"/pricing","visitorId":"v1","referrer":"https://x.com/post"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderUserAgent, "curl/8.0")
	resp, err := srv.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	views, err := srv.store.GetPageViews(t.Context(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "/pricing", views[0].PageURL)
	assert.Equal(t, now, views[0].Timestamp)
	require.NotNil(t, views[0].UserAgent)
	assert.Equal(t, "curl/8.0", *views[0].UserAgent)

	visitor, err := srv.store.GetVisitor(t.Context(), "v1")
	require.NoError(t, err)
	require.NotNil(t, visitor)
	assert.Equal(t, 1, visitor.Visits)
}

func TestOverviewAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)
	// previous week
	testsupport.RecordViews(t, srv.store, testsupport.View("p1", "ps1", "/", testsupport.Day(2024, 7, 3)))

	status, body, _ := srv.get(t, "/api/analytics/overview?"+week)
	require.Equal(t, fiber.StatusOK, status)

	overview := decode[analytics.Overview](t, body)
	assert.Equal(t, analytics.Snapshot{Value: 3, Change: 200}, overview.UniqueVisitors)
	assert.Equal(t, analytics.Snapshot{Value: 4, Change: 300}, overview.PageViews)
	assert.Equal(t, 45.0, overview.AvgSessionDuration.Value)
	assert.InDelta(t, 66.67, overview.BounceRate.Value, 0.01)
}

func TestDateValidation(t *testing.T) {
	srv := newTestServer(t)

	testCases := []struct {
		name            string
		query           string
		expectedStatus  int
		expectedMessage string
	}{
		{name: "default range", query: "", expectedStatus: fiber.StatusOK},
		{name: "half a range uses the default", query: "startDate=2024-07-01", expectedStatus: fiber.StatusOK},
		{name: "bad start", query: "startDate=soon&endDate=2024-07-02", expectedStatus: fiber.StatusBadRequest, expectedMessage: "Invalid date format"},
		{name: "reversed", query: "startDate=2024-07-05&endDate=2024-07-01", expectedStatus: fiber.StatusBadRequest, expectedMessage: "startDate must not be after endDate"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, _ := srv.get(t, "/api/analytics/overview?"+tc.query)
			assert.Equal(t, tc.expectedStatus, status)
			if tc.expectedMessage != "" {
				assert.Equal(t, tc.expectedMessage, decode[map[string]string](t, body)["message"])
			}
		})
	}
}

func TestVisitorsOverTimeAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	status, body, _ := srv.get(t, "/api/analytics/visitors-over-time?"+week)
	require.Equal(t, fiber.StatusOK, status)

	series := decode[analytics.Series](t, body)
	assert.Equal(t, timeframe.IntervalDay, series.Interval)
	require.Len(t, series.Data, 7)
	assert.Equal(t, analytics.SeriesPoint{Date: "2024-07-08"}, series.Data[0])
	assert.Equal(t, analytics.SeriesPoint{Date: "2024-07-09", Visitors: 1, PageViews: 2}, series.Data[1])

	status, body, _ = srv.get(t, "/api/analytics/visitors-over-time?interval=month&"+week)
	require.Equal(t, fiber.StatusOK, status)
	monthly := decode[analytics.Series](t, body)
	assert.Equal(t, []analytics.SeriesPoint{{Date: "2024-07", Visitors: 3, PageViews: 4}}, monthly.Data)

	status, _, _ = srv.get(t, "/api/analytics/visitors-over-time?startDate=1900-01-01&endDate=2024-07-14")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGeographyAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	status, body, _ := srv.get(t, "/api/analytics/geography?"+week)
	require.Equal(t, fiber.StatusOK, status)

	// JP and Japan collapse into one row once the code is resolved.
	assert.Equal(t, []handlers.CountryResponse{
		{Name: "Japan", Visitors: 2, Percentage: 66},
		{Name: "Germany", Visitors: 1, Percentage: 33},
	}, decode[[]handlers.CountryResponse](t, body))
}

func TestTrafficSourcesAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	status, body, _ := srv.get(t, "/api/analytics/traffic-sources?"+week)
	require.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, []handlers.TrafficSourceResponse{
		{Name: "Direct", Visitors: 3, Icon: "globe"},
		{Name: "Google", Visitors: 1, Icon: "search"},
	}, decode[[]handlers.TrafficSourceResponse](t, body))
}

func TestPopularPagesAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	status, body, _ := srv.get(t, "/api/analytics/popular-pages?"+week)
	require.Equal(t, fiber.StatusOK, status)

	pages := decode[[]handlers.PopularPageResponse](t, body)
	require.Len(t, pages, 2)
	assert.Equal(t, "/", pages[0].PageURL)
	assert.Equal(t, "Home", pages[0].PageTitle)
	assert.Equal(t, 3, pages[0].Views)
	assert.Equal(t, "0m 45s", pages[0].AvgTime)

	status, body, _ = srv.get(t, "/api/analytics/popular-pages?limit=1&"+week)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]handlers.PopularPageResponse](t, body), 1)
}

func TestDevicesAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	status, body, _ := srv.get(t, "/api/analytics/devices?"+week)
	require.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, []analytics.BreakdownItem{
		{Name: "Desktop", Count: 2, Percentage: 67},
		{Name: "Mobile", Count: 1, Percentage: 33},
	}, decode[[]analytics.BreakdownItem](t, body))
}

func TestEmptyBreakdownsAreArrays(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"geography", "traffic-sources", "popular-pages", "devices"} {
		t.Run(path, func(t *testing.T) {
			status, body, _ := srv.get(t, "/api/analytics/"+path+"?"+week)
			require.Equal(t, fiber.StatusOK, status)
			assert.JSONEq(t, "[]", string(body))
		})
	}
}

func TestCompareAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)
	testsupport.RecordViews(t, srv.store, testsupport.View("old", "", "/", testsupport.Day(2023, 7, 10)))

	t.Run("previous year", func(t *testing.T) {
		status, body, _ := srv.get(t, "/api/analytics/compare?preset=previous_year&"+week)
		require.Equal(t, fiber.StatusOK, status)

		result := decode[analytics.Comparison](t, body)
		assert.Equal(t, analytics.PresetPreviousYear, result.Preset)
		assert.Equal(t, testsupport.Day(2023, 7, 8), result.Comparison.Start)
		assert.Equal(t, 1, result.ComparisonTotals.PageViews)
		assert.Equal(t, 300.0, result.Metrics.PageViews.Change)
	})

	t.Run("custom", func(t *testing.T) {
		status, body, _ := srv.get(t, "/api/analytics/compare?preset=custom&compareStartDate=2023-07-10&compareEndDate=2023-07-10&"+week)
		require.Equal(t, fiber.StatusOK, status)

		result := decode[analytics.Comparison](t, body)
		assert.Equal(t, analytics.PresetCustom, result.Preset)
		assert.Equal(t, 1, result.ComparisonTotals.UniqueVisitors)
	})

	t.Run("default preset", func(t *testing.T) {
		status, body, _ := srv.get(t, "/api/analytics/compare?"+week)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, analytics.PresetPreviousPeriod, decode[analytics.Comparison](t, body).Preset)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, query := range []string{
			"preset=last_decade",
			"preset=custom",
			"preset=custom&compareStartDate=2023-07-10&compareEndDate=2023-07-01",
		} {
			status, _, _ := srv.get(t, "/api/analytics/compare?"+query+"&"+week)
			assert.Equal(t, fiber.StatusBadRequest, status, query)
		}
	})
}

func TestExportAction(t *testing.T) {
	srv := newTestServer(t)
	srv.seed(t)

	t.Run("csv", func(t *testing.T) {
		status, body, header := srv.get(t, "/api/analytics/export/devices?"+week)
		require.Equal(t, fiber.StatusOK, status)

		assert.Contains(t, header.Get(fiber.HeaderContentType), "text/csv")
		assert.Contains(t, header.Get(fiber.HeaderContentDisposition),
			`filename="trafficlens-devices-2024-07-08-to-2024-07-14.csv"`)
		assert.Equal(t, "name,count,percentage\nDesktop,2,67\nMobile,1,33\n", string(body))
	})

	t.Run("full report", func(t *testing.T) {
		status, body, header := srv.get(t, "/api/analytics/export/full-report?"+week)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "application/zip", header.Get(fiber.HeaderContentType))

		archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		assert.Len(t, archive.File, 6)
	})

	t.Run("full report reads each period once", func(t *testing.T) {
		srv := newTestServer(t)
		srv.seed(t)

		status, _, _ := srv.get(t, "/api/analytics/export/full-report?"+week)
		require.Equal(t, fiber.StatusOK, status)

		current, err := srv.ranges.Parse(timeframe.RangeParserParams{StartDate: "2024-07-08", EndDate: "2024-07-14"})
		require.NoError(t, err)
		assert.Equal(t, 1, srv.reads.readsOf(current))
		assert.Equal(t, 1, srv.reads.readsOf(analytics.PreviousPeriod(current)))
	})

	t.Run("unknown report", func(t *testing.T) {
		status, _, _ := srv.get(t, "/api/analytics/export/sessions?"+week)
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestStoreFailuresReturn500(t *testing.T) {
	srv := newTestServer(t, func(d *handlers.Dependencies) {
		d.Engine = analytics.NewEngine(brokenStore{}, testsupport.GetLogger(), 1)
	})

	testCases := map[string]string{
		"overview":           "Failed to fetch overview metrics",
		"visitors-over-time": "Failed to fetch visitor data",
		"geography":          "Failed to fetch geography data",
		"traffic-sources":    "Failed to fetch traffic sources",
		"popular-pages":      "Failed to fetch popular pages",
		"devices":            "Failed to fetch device data",
	}

	for path, message := range testCases {
		t.Run(path, func(t *testing.T) {
			status, body, _ := srv.get(t, "/api/analytics/"+path+"?"+week)
			assert.Equal(t, fiber.StatusInternalServerError, status)
			assert.Equal(t, message, decode[map[string]string](t, body)["message"])
		})
	}
}

func TestHealthIndexAction(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := newTestServer(t, func(d *handlers.Dependencies) { d.Geo = stubGeo{enabled: true} })

		status, body, _ := srv.get(t, "/_health")
		require.Equal(t, fiber.StatusOK, status)

		health := decode[handlers.HealthStatus](t, body)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "ok", health.DBStatus)
		assert.True(t, health.GeoIP)
	})

	t.Run("degraded", func(t *testing.T) {
		srv := newTestServer(t, func(d *handlers.Dependencies) { d.Pinger = failingPinger{} })

		status, body, _ := srv.get(t, "/_health")
		require.Equal(t, fiber.StatusOK, status)

		health := decode[handlers.HealthStatus](t, body)
		assert.Equal(t, "degraded", health.Status)
		assert.Equal(t, "error", health.DBStatus)
		assert.False(t, health.GeoIP)
	})
}
