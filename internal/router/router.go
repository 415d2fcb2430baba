// Package router wires the HTTP surface onto an Echo instance. The
// reservation traffic itself travels over the socket protocol; HTTP
// carries the incident administration endpoints and the health check.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-space-reservation/internal/handler"
)

// RegisterRoutes registers routes that need no dependencies. At the
// moment that is only the health check used by monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterIncidents registers the incident administration endpoints
// under /v1/incidents.
func RegisterIncidents(e *echo.Echo, h *handler.IncidentHandler) {
	g := e.Group("/v1/incidents")
	g.POST("", h.Report)
	g.GET("", h.List)
	g.POST("/:id/block", h.Block)
	g.POST("/:id/resolve", h.Resolve)
}
