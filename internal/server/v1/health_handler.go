package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/version"
)

type HealthHandler struct {
	router     gateway.Router
	minVersion string
	started    time.Time
}

func NewHealthHandler(router gateway.Router, minVersion string) *HealthHandler {
	return &HealthHandler{
		router:     router,
		minVersion: minVersion,
		started:    time.Now(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	enabled := 0
	for _, d := range h.router.Deployments() {
		if d.IsEnabled {
			enabled++
		}
	}

	status := "ok"
	if enabled == 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"build":       version.Describe(h.minVersion),
		"deployments": enabled,
	})
}
