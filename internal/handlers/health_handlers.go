package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports gateway and backend liveness.
type HealthHandler struct {
	backend AdminBackend
}

// NewHealthHandler wires the health endpoint.
func NewHealthHandler(b AdminBackend) *HealthHandler {
	return &HealthHandler{backend: b}
}

// Health returns 200 when the gateway is up. Backend reachability is reported
// but does not fail the check.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	backendStatus := "ok"
	if err := h.backend.Health(ctx); err != nil {
		backendStatus = "unreachable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": backendStatus,
	})
}
