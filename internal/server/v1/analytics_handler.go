package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/analytics"
	"github.com/nulzo/prism-router/internal/store"
	"github.com/nulzo/prism-router/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, api.BadRequestError("Invalid '" + key + "' parameter")
	}
	return n, nil
}

// GetUsage handles GET /v1/analytics/usage?days=N.
func (h *AnalyticsHandler) GetUsage(c *gin.Context) {
	days, err := intQuery(c, "days")
	if err != nil {
		_ = c.Error(err)
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch analytics", err))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListRequests handles GET /v1/analytics/requests?limit=N.
func (h *AnalyticsHandler) ListRequests(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}

	records, err := h.service.GetRecentRequests(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch requests", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   records,
	})
}

// GetRequest handles GET /v1/analytics/requests/:id.
func (h *AnalyticsHandler) GetRequest(c *gin.Context) {
	rec, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NotFoundError("Request not found"))
			return
		}
		_ = c.Error(api.InternalError("Failed to fetch request", err))
		return
	}

	c.JSON(http.StatusOK, rec)
}
