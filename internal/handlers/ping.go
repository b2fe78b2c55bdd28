package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler answers liveness probes. Both routes are exempt from JWT auth.
type PingHandler struct{}

// NewPingHandler creates the liveness handler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Register mounts GET /ping and HEAD /health.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.ping)
	e.HEAD("/health", h.health)
}

func (h *PingHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PingHandler) health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
