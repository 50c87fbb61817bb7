package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

// MockClient is a mock implementation of llm.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (*api.ChatResponse, error) {
	args := m.Called(ctx, req, apiKey)
	resp, _ := args.Get(0).(*api.ChatResponse)
	return resp, args.Error(1)
}

func (m *MockClient) Embedding(ctx context.Context, req *api.EmbeddingRequest, apiKey string) (*api.EmbeddingResponse, error) {
	args := m.Called(ctx, req, apiKey)
	resp, _ := args.Get(0).(*api.EmbeddingResponse)
	return resp, args.Error(1)
}

func (m *MockClient) StreamChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error) {
	args := m.Called(ctx, req, apiKey)
	ch, _ := args.Get(0).(<-chan api.StreamResult)
	return ch, args.Error(1)
}

// MockFactory is a mock implementation of llm.ClientFactory
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) Client(modelAlias string) (llm.Client, error) {
	args := m.Called(modelAlias)
	client, _ := args.Get(0).(llm.Client)
	return client, args.Error(1)
}

// recordedSleeps captures backoff delays without sleeping.
type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordedSleeps) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

func newTestRouter(t *testing.T, factory llm.ClientFactory, cfg Config, opts ...Option) (*router, *recordedSleeps) {
	t.Helper()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelayMs == 0 {
		cfg.RetryBaseDelayMs = 500
		cfg.RetryMaxDelayMs = 10000
	}

	r, err := newRouter(zap.NewNop(), factory, cfg, opts...)
	require.NoError(t, err)

	sleeps := &recordedSleeps{}
	r.sleep = sleeps.sleep
	r.jitter = func(int64) int64 { return 0 }
	return r, sleeps
}

func deployment(name, alias string) Deployment {
	return Deployment{Name: name, ModelAlias: alias, ProviderName: "test", IsEnabled: true}
}

func cost(v float64) *float64 {
	return &v
}

func textRequest(model string) *api.ChatRequest {
	return &api.ChatRequest{
		Model:    model,
		Messages: []api.ChatMessage{{Role: "user", Content: api.Content{Text: "hello"}}},
	}
}

func imageRequest(model string) *api.ChatRequest {
	return &api.ChatRequest{
		Model: model,
		Messages: []api.ChatMessage{{
			Role: "user",
			Content: api.Content{Parts: []api.ContentPart{
				{Type: api.ContentTypeText, Text: "what is this?"},
				{Type: api.ContentTypeImageURL, ImageURL: &api.ImageURL{URL: "https://example.com/cat.png"}},
			}},
		}},
	}
}

func commErr(msg string) error {
	return llm.NewError(llm.KindCommunication, "test", msg, nil)
}

// fakeCache is an in-memory EmbeddingCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*api.EmbeddingResponse
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*api.EmbeddingResponse)}
}

func (c *fakeCache) Available() bool { return true }

func (c *fakeCache) Key(req *api.EmbeddingRequest) string {
	key := req.Model
	for _, in := range req.Input.Val {
		key += "|" + in
	}
	return key
}

func (c *fakeCache) Get(_ context.Context, key string) (*api.EmbeddingResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *fakeCache) Set(_ context.Context, key string, resp *api.EmbeddingResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
	c.sets++
}
