package llm

import (
	"context"

	"github.com/nulzo/prism-router/pkg/api"
)

type ProviderName string

const (
	OpenAI ProviderName = "openai"
)

// Client is the capability-erased surface the router dispatches to.
// apiKey overrides the provider's configured credential when non-empty.
type Client interface {
	ChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (*api.ChatResponse, error)
	Embedding(ctx context.Context, req *api.EmbeddingRequest, apiKey string) (*api.EmbeddingResponse, error)
	StreamChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error)
}

// ClientFactory resolves a model alias to the client that serves it.
type ClientFactory interface {
	Client(modelAlias string) (Client, error)
}

type Provider interface {
	Client

	Name() string
	Type() string // e.g., "openai"
	Health(ctx context.Context) error
}
