package llm

import (
	"context"

	"github.com/nulzo/prism-router/pkg/api"
)

// boundClient forwards to a provider, swapping in the upstream model name.
// Requests are shallow-copied so retries see the caller's original model.
type boundClient struct {
	provider Provider
	upstream string
}

func (c *boundClient) ChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (*api.ChatResponse, error) {
	return c.provider.ChatCompletion(ctx, c.chatRequest(req), apiKey)
}

func (c *boundClient) StreamChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error) {
	return c.provider.StreamChatCompletion(ctx, c.chatRequest(req), apiKey)
}

func (c *boundClient) Embedding(ctx context.Context, req *api.EmbeddingRequest, apiKey string) (*api.EmbeddingResponse, error) {
	r := *req
	if c.upstream != "" {
		r.Model = c.upstream
	}
	return c.provider.Embedding(ctx, &r, apiKey)
}

func (c *boundClient) chatRequest(req *api.ChatRequest) *api.ChatRequest {
	r := *req
	if c.upstream != "" {
		r.Model = c.upstream
	}
	return &r
}
