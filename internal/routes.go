package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"trafficlens/internal/config"
	"trafficlens/internal/http"
	"trafficlens/internal/http/middleware"
)

// publicCORSConfig is the permissive CORS setup of the tracking endpoint, which is called
// from every tracked site.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// routeMounter returns the RouteMountFunc that registers the analytics API.
func routeMounter(h *http.Handlers, cfg *config.Config) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		MountRoutes(srv, h, cfg)
	}
}

// MountRoutes registers the analytics API on srv.
func MountRoutes(srv *cartridge.Server, h *http.Handlers, cfg *config.Config) {
	// Skipped outside production, where it would interfere with testing.
	publicRateLimiter := cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.GetRateLimitPerMinute()),
		cartridgemiddleware.WithDuration(time.Minute),
		cartridgemiddleware.WithEnv(cfg),
	)

	// Tracking is cross-site and also accepts server-side clients, which send no
	// Sec-Fetch-Site header. Writes queue behind the sqlite writer when that backend is on.
	trackConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		WriteConcurrency:   cfg.StoreBackend == config.SQLiteStore,
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
	}

	queryConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{middleware.APIKeyAuth(cfg.APIKey, srv.GetLogger())},
	}

	// === ROOT ROUTES ===
	srv.Get("/_health", h.HealthIndexAction)
	srv.Head("/_health", h.HealthIndexAction)

	// === PUBLIC INGESTION ===
	srv.Post("/api/analytics/track", h.TrackAction, trackConfig)
	srv.Options("/api/analytics/track", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, trackConfig)

	// === QUERIES ===
	srv.Get("/api/analytics/overview", h.OverviewAction, queryConfig)
	srv.Get("/api/analytics/visitors-over-time", h.VisitorsOverTimeAction, queryConfig)
	srv.Get("/api/analytics/geography", h.GeographyAction, queryConfig)
	srv.Get("/api/analytics/traffic-sources", h.TrafficSourcesAction, queryConfig)
	srv.Get("/api/analytics/popular-pages", h.PopularPagesAction, queryConfig)
	srv.Get("/api/analytics/devices", h.DevicesAction, queryConfig)
	srv.Get("/api/analytics/compare", h.CompareAction, queryConfig)
	srv.Get("/api/analytics/export/:report", h.ExportAction, queryConfig)
}
