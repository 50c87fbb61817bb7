package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/server/validator"
	"github.com/nulzo/prism-router/pkg/api"
)

type EmbeddingHandler struct {
	router    gateway.Router
	validator *validator.Validator
}

func NewEmbeddingHandler(router gateway.Router, v *validator.Validator) *EmbeddingHandler {
	return &EmbeddingHandler{
		router:    router,
		validator: v,
	}
}

// CreateEmbedding handles POST /v1/embeddings.
func (h *EmbeddingHandler) CreateEmbedding(c *gin.Context) {
	var req api.EmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}
	// the union type defeats the struct level required tag
	if len(req.Input.Val) == 0 {
		_ = c.Error(api.ValidationError(map[string]string{"input": "input is a required field"}))
		return
	}

	opts, err := callOptions(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp, err := h.router.Embed(c.Request.Context(), &req, opts...)
	if err != nil {
		_ = c.Error(problemFromRouterError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}
