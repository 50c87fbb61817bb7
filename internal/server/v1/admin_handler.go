package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/pkg/api"
)

type AdminHandler struct {
	router gateway.Router
	config config.RouterConfig
}

func NewAdminHandler(router gateway.Router, cfg config.RouterConfig) *AdminHandler {
	return &AdminHandler{router: router, config: cfg}
}

// ListDeployments returns every deployment with its live statistics.
//
// GET /v1/admin/stats
func (h *AdminHandler) ListDeployments(c *gin.Context) {
	deployments := h.router.Deployments()
	out := make([]api.DeploymentStatus, len(deployments))
	for i, d := range deployments {
		out[i] = toDeploymentStatus(d)
	}

	c.JSON(http.StatusOK, gin.H{
		"object":   "list",
		"strategy": h.router.DefaultStrategy().String(),
		"data":     out,
	})
}

// ResetStats clears usage counts and latency averages.
//
// POST /v1/admin/stats/reset
func (h *AdminHandler) ResetStats(c *gin.Context) {
	h.router.ResetUsageStatistics()
	c.Status(http.StatusNoContent)
}

// GetConfig returns the routing configuration. Provider credentials are
// never part of it.
//
// GET /v1/admin/config
func (h *AdminHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategy":            h.router.DefaultStrategy().String(),
		"max_retries":         h.config.MaxRetries,
		"retry_base_delay_ms": h.config.RetryBaseDelayMs,
		"retry_max_delay_ms":  h.config.RetryMaxDelayMs,
		"attempt_timeout":     h.config.AttemptTimeout.String(),
		"models":              h.router.AvailableModels(),
	})
}

func toDeploymentStatus(d gateway.Deployment) api.DeploymentStatus {
	status := api.DeploymentStatus{
		Name:               d.Name,
		ModelAlias:         d.ModelAlias,
		Provider:           d.ProviderName,
		InputCostPer1K:     d.InputCostPer1K,
		OutputCostPer1K:    d.OutputCostPer1K,
		Priority:           d.Priority,
		Enabled:            d.IsEnabled,
		SupportsEmbeddings: d.SupportsEmbeddings,
		SupportsVision:     d.SupportsVision,
		UsageCount:         d.UsageCount,
		RequestCount:       d.RequestCount,
		AverageLatencyMs:   d.AverageLatencyMs,
	}
	if !d.LastUsed.IsZero() {
		lastUsed := d.LastUsed
		status.LastUsed = &lastUsed
	}
	return status
}
