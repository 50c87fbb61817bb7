package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/prism-router/pkg/api"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return m.Called().String(0) }
func (m *MockProvider) Type() string { return "mock" }
func (m *MockProvider) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProvider) ChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (*api.ChatResponse, error) {
	args := m.Called(ctx, req, apiKey)
	resp, _ := args.Get(0).(*api.ChatResponse)
	return resp, args.Error(1)
}

func (m *MockProvider) Embedding(ctx context.Context, req *api.EmbeddingRequest, apiKey string) (*api.EmbeddingResponse, error) {
	args := m.Called(ctx, req, apiKey)
	resp, _ := args.Get(0).(*api.EmbeddingResponse)
	return resp, args.Error(1)
}

func (m *MockProvider) StreamChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error) {
	args := m.Called(ctx, req, apiKey)
	ch, _ := args.Get(0).(<-chan api.StreamResult)
	return ch, args.Error(1)
}

func TestFactory_BindAndResolve(t *testing.T) {
	p := new(MockProvider)
	p.On("Name").Return("primary")

	f := NewFactory()
	f.AddProvider(p)

	bound, err := f.Bind("GPT-4", "primary", "gpt-4-0613")
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = f.Bind("gpt-4", "primary", "")
	require.NoError(t, err)
	assert.False(t, bound, "first binding of an alias wins")

	_, err = f.Bind("claude", "missing", "")
	assert.Error(t, err)

	client, err := f.Client("gpt-4")
	require.NoError(t, err)

	req := &api.ChatRequest{Model: "gpt-4"}
	p.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(r *api.ChatRequest) bool {
		return r.Model == "gpt-4-0613"
	}), "key").Return(&api.ChatResponse{ID: "ok"}, nil)

	resp, err := client.ChatCompletion(context.Background(), req, "key")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ID)
	assert.Equal(t, "gpt-4", req.Model, "caller request must not be mutated")
	p.AssertExpectations(t)
}

func TestFactory_UnknownAlias(t *testing.T) {
	_, err := NewFactory().Client("nothing")
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestRegistry_GetUnknown(t *testing.T) {
	_, err := Get("does-not-exist")
	assert.Error(t, err)
}
