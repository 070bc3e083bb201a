package http

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	GeoIP     bool      `json:"geoip_enabled"`
}

// HealthIndexAction handles the health check endpoint
func (h *Handlers) HealthIndexAction(c *cartridge.Context) error {
	dbStatus := "ok"

	if h.pinger != nil {
		if err := h.pinger.Ping(c.UserContext()); err != nil {
			dbStatus = "error"
			c.Logger.Error("Event store ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		DBStatus:  dbStatus,
		GeoIP:     h.geo != nil && h.geo.Enabled(),
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
	}

	return c.JSON(health)
}
