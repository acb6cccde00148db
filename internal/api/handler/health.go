package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness endpoint. It carries no dependencies:
// readiness of the index is checked per request by the pipeline, not here.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
