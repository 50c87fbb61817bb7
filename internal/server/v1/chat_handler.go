package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/server/validator"
	"github.com/nulzo/prism-router/pkg/api"
)

const (
	// StrategyHeader overrides the routing strategy for one request.
	StrategyHeader = "X-Routing-Strategy"
	// ProviderKeyHeader carries a caller supplied provider credential.
	ProviderKeyHeader = "X-Provider-Key"
)

// callOptions reads per request routing overrides from the headers.
func callOptions(c *gin.Context) ([]gateway.CallOption, error) {
	var opts []gateway.CallOption
	if name := c.GetHeader(StrategyHeader); name != "" {
		kind, err := gateway.ParseStrategy(name)
		if err != nil {
			return nil, api.BadRequestError(err.Error(), api.WithExtension("header", StrategyHeader))
		}
		opts = append(opts, gateway.WithStrategy(kind))
	}
	if key := c.GetHeader(ProviderKeyHeader); key != "" {
		opts = append(opts, gateway.WithAPIKey(key))
	}
	return opts, nil
}

type ChatHandler struct {
	router    gateway.Router
	validator *validator.Validator
}

func NewChatHandler(router gateway.Router, v *validator.Validator) *ChatHandler {
	return &ChatHandler{
		router:    router,
		validator: v,
	}
}

// CreateCompletion handles POST /v1/chat/completions.
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	opts, err := callOptions(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if req.Stream {
		h.handleStream(c, &req, opts)
		return
	}

	resp, err := h.router.Chat(c.Request.Context(), &req, opts...)
	if err != nil {
		_ = c.Error(problemFromRouterError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *api.ChatRequest, opts []gateway.CallOption) {
	// nothing has been written yet, so pre-stream failures are plain problems
	streamChan, err := h.router.StreamChat(c.Request.Context(), req, opts...)
	if err != nil {
		_ = c.Error(problemFromRouterError(err))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		result, ok := <-streamChan
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		if result.Err != nil {
			problem := problemFromRouterError(result.Err)
			errResp := api.ChatResponse{
				Object: "chat.completion.chunk",
				Choices: []api.Choice{{
					FinishReason: "error",
					Error: &api.ErrorResponse{
						Code:    problem.Status,
						Message: result.Err.Error(),
					},
				}},
			}
			data, _ := json.Marshal(errResp)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			return false
		}

		if result.Response != nil {
			data, err := json.Marshal(result.Response)
			if err != nil {
				return true
			}
			_, err = fmt.Fprintf(w, "data: %s\n\n", data)
			return err == nil
		}

		return true
	})
}
