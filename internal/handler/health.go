package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers GET /healthz for load balancers and monitoring. It
// only confirms the process is serving; it does not probe the store.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
