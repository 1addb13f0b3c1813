package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// Health reports liveness and the number of open chat connections.
// GET /health
func (h *RoomHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Connections: h.hub.Registry().Count()})
}
