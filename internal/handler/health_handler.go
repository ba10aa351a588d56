package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	version string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are skipped
// so the memory-backed development mode stays probeable.
func NewHealthHandler(version string, checks map[string]HealthChecker) *HealthHandler {
	filtered := make(map[string]HealthChecker)
	for name, check := range checks {
		if check != nil {
			filtered[name] = check
		}
	}
	return &HealthHandler{version: version, checks: filtered}
}

// Health handles GET /health (liveness)
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready (readiness): every dependency must answer
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
		} else {
			deps[name] = "ok"
		}
	}

	ready := status == http.StatusOK
	c.JSON(status, gin.H{
		"ready":        ready,
		"dependencies": deps,
	})
}
