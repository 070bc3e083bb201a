package internal

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/config"
	"trafficlens/internal/testsupport"
)

func newTestApplication(t *testing.T, mutate ...func(*config.Config)) *Application {
	t.Helper()

	cfg := testsupport.TestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	app, err := NewAppWithLogger(cfg, testsupport.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

func TestRoutesRegistered(t *testing.T) {
	app := newTestApplication(t)

	registered := make(map[string]bool)
	for _, route := range app.Server.App().GetRoutes(true) {
		registered[route.Method+" "+route.Path] = true
	}

	for _, expected := range []string{
		"GET /_health",
		"POST /api/analytics/track",
		"OPTIONS /api/analytics/track",
		"GET /api/analytics/overview",
		"GET /api/analytics/visitors-over-time",
		"GET /api/analytics/geography",
		"GET /api/analytics/traffic-sources",
		"GET /api/analytics/popular-pages",
		"GET /api/analytics/devices",
		"GET /api/analytics/compare",
		"GET /api/analytics/export/:report",
	} {
		assert.True(t, registered[expected], "expected route %s", expected)
	}
}

func trackAndQuery(t *testing.T, app *Application) {
	t.Helper()

	for _, body := range []string{
		`{"pageUrl":"/","visitorId":"v1","sessionId":"s1","country":"Japan","device":"desktop"}`,
		`{"pageUrl":"/docs","visitorId":"v1","sessionId":"s1","country":"Japan","device":"desktop"}`,
		`{"pageUrl":"/","visitorId":"v2","sessionId":"s2","userAgent":"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"}`,
	} {
		req := httptest.NewRequest(fiber.MethodPost, "/api/analytics/track", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Server.App().Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, err := app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/analytics/overview", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var overview map[string]map[string]float64
	require.NoError(t, json.Unmarshal(body, &overview))
	assert.Equal(t, 2.0, overview["uniqueVisitors"]["value"])
	assert.Equal(t, 3.0, overview["pageViews"]["value"])
	assert.Equal(t, 50.0, overview["bounceRate"]["value"])

	visitor, err := app.Store.GetVisitor(t.Context(), "v1")
	require.NoError(t, err)
	require.NotNil(t, visitor)
	assert.Equal(t, 2, visitor.Visits)

	resp, err = app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/analytics/devices", nil))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Desktop","count":1,"percentage":50},{"name":"Mobile","count":1,"percentage":50}]`, string(body))
}

func TestTrackThenQueryMemoryStore(t *testing.T) {
	trackAndQuery(t, newTestApplication(t))
}

func TestTrackThenQuerySQLiteStore(t *testing.T) {
	dir := t.TempDir()
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.StoreBackend = config.SQLiteStore
		cfg.DatabasePath = dir
		cfg.DatabaseName = filepath.Join(dir, "trafficlens-test.db")
	})
	require.NotNil(t, app.DBManager)

	trackAndQuery(t, app)
}

func TestAPIKeyProtectsQueriesButNotTracking(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) { cfg.APIKey = "secret" })

	resp, err := app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/analytics/overview", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodGet, "/api/analytics/overview", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer secret")
	resp, err = app.Server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPost, "/api/analytics/track", strings.NewReader(`{"pageUrl":"/","visitorId":"v1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Server.App().Test(httptest.NewRequest(fiber.MethodGet, "/_health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTrackCORSPreflight(t *testing.T) {
	app := newTestApplication(t)

	req := httptest.NewRequest(fiber.MethodOptions, "/api/analytics/track", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://blog.example.org")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	resp, err := app.Server.App().Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestTrackAcceptsRequestsWithoutSecFetchSite(t *testing.T) {
	app := newTestApplication(t)

	for _, site := range []string{"", "cross-site", "same-origin"} {
		req := httptest.NewRequest(fiber.MethodPost, "/api/analytics/track", strings.NewReader(`{"pageUrl":"/","visitorId":"v1"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if site != "" {
			req.Header.Set("Sec-Fetch-Site", site)
		}
		resp, err := app.Server.App().Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode, "Sec-Fetch-Site %q", site)
	}
}

func TestMemoryBackendLeavesDatabaseClosed(t *testing.T) {
	dir := t.TempDir()
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.DatabaseName = filepath.Join(dir, "unused.db")
	})

	trackAndQuery(t, app)
	assert.NoFileExists(t, filepath.Join(dir, "unused.db"))
}

func TestSeedDemoAtStartup(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) { cfg.SeedDemo = true })

	visitor, err := app.Store.GetVisitor(t.Context(), "visitor-1")
	require.NoError(t, err)
	assert.NotNil(t, visitor)
}

func TestBackgroundJobsFollowConfig(t *testing.T) {
	assert.Nil(t, newTestApplication(t).Jobs)

	dir := t.TempDir()
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.JobsEnabled = true
		cfg.StoreBackend = config.SQLiteStore
		cfg.DatabaseName = filepath.Join(dir, "jobs.db")
	})
	require.NotNil(t, app.Jobs)
	require.Len(t, app.Jobs.Jobs(), 1)
	assert.Equal(t, "wal_checkpoint", app.Jobs.Jobs()[0].Name)
}
