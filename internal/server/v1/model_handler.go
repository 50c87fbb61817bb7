package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/server/validator"
	"github.com/nulzo/prism-router/pkg/api"
)

type ModelHandler struct {
	router    gateway.Router
	validator *validator.Validator
}

func NewModelHandler(router gateway.Router, v *validator.Validator) *ModelHandler {
	return &ModelHandler{
		router:    router,
		validator: v,
	}
}

// ListModels groups enabled deployments by alias, in registration order.
//
// GET /v1/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	models := make([]api.Model, 0)
	index := make(map[string]int)

	for _, d := range h.router.Deployments() {
		if !d.IsEnabled {
			continue
		}
		i, ok := index[d.ModelAlias]
		if !ok {
			i = len(models)
			index[d.ModelAlias] = i
			models = append(models, api.Model{
				ID:        d.ModelAlias,
				Object:    "model",
				OwnedBy:   d.ProviderName,
				Fallbacks: h.router.FallbackModels(d.ModelAlias),
			})
		}
		models[i].Deployments = append(models[i].Deployments, d.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   models,
	})
}

// GetFallbacks returns the fallback chain of a model.
//
// GET /v1/models/:model/fallbacks
func (h *ModelHandler) GetFallbacks(c *gin.Context) {
	name := c.Param("model")
	chain := h.router.FallbackModels(name)
	if chain == nil {
		chain = []string{}
	}
	c.JSON(http.StatusOK, api.FallbackChain{Model: name, Fallbacks: chain})
}

// AddFallbacks appends models to a fallback chain. Duplicates and the model
// itself are ignored.
//
// POST /v1/models/:model/fallbacks
func (h *ModelHandler) AddFallbacks(c *gin.Context) {
	var req api.FallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	name := c.Param("model")
	chain := h.router.AddFallbackModels(name, req.Fallbacks)
	if chain == nil {
		chain = []string{}
	}
	c.JSON(http.StatusOK, api.FallbackChain{Model: name, Fallbacks: chain})
}
