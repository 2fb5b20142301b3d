package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// AppHandler serves service-level endpoints.
type AppHandler struct {
	version string
	now     func() time.Time
}

// NewAppHandler creates an AppHandler reporting version.
func NewAppHandler(version string) *AppHandler {
	return &AppHandler{version: version, now: time.Now}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Root godoc
// @Summary Greeting
// @Tags app
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func (h *AppHandler) Root(c echo.Context) error {
	return c.String(http.StatusOK, "Hello World!")
}

// Health godoc
// @Summary Health check
// @Tags app
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *AppHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Version:   h.version,
	})
}
