package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/session"
)

// HealthHandler reports liveness and the number of open sessions
type HealthHandler struct {
	hub *session.Hub
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(hub *session.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "healthy",
		"service":  "socialicon-api",
		"sessions": h.hub.Len(),
	})
}
