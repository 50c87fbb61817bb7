package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/llm/openai"
	"github.com/nulzo/prism-router/pkg/api"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := openai.NewAdapter(config.ProviderConfig{
		ID:      "openai-test",
		Type:    "openai",
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)
	return adapter
}

func userMessage(text string) []api.ChatMessage {
	return []api.ChatMessage{{Role: "user", Content: api.Content{Text: text}}}
}

func TestOpenAIChat(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body api.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1677652288,
			"model": "gpt-3.5-turbo-0613",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello there!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 12, "total_tokens": 21}
		}`))
	})

	resp, err := adapter.ChatCompletion(context.Background(), &api.ChatRequest{
		Model:    "gpt-3.5-turbo",
		Messages: userMessage("Hi"),
	}, "")

	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp.Choices[0].Message.Content.Text)
	assert.Equal(t, 21, resp.Usage.TotalTokens)
	assert.Equal(t, "openai-test", adapter.Name())
	assert.Equal(t, "openai", adapter.Type())
}

func TestOpenAIChat_APIKeyOverride(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer override", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	})

	_, err := adapter.ChatCompletion(context.Background(), &api.ChatRequest{Messages: userMessage("Hi")}, "override")
	assert.NoError(t, err)
}

func TestOpenAIChat_UpstreamErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   llm.Kind
	}{
		{http.StatusBadRequest, llm.KindInvalidArgument},
		{http.StatusUnauthorized, llm.KindConfiguration},
		{http.StatusTooManyRequests, llm.KindCommunication},
		{http.StatusInternalServerError, llm.KindCommunication},
		{http.StatusGatewayTimeout, llm.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			_, err := adapter.ChatCompletion(context.Background(), &api.ChatRequest{Messages: userMessage("Hi")}, "")
			require.Error(t, err)

			var le *llm.Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.kind, le.Kind)
			assert.Equal(t, tt.status, le.StatusCode)
			assert.Equal(t, "nope", le.Message)
		})
	}
}

func TestOpenAIChat_CancelledContext(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.ChatCompletion(ctx, &api.ChatRequest{Messages: userMessage("Hi")}, "")
	require.Error(t, err)
	assert.Equal(t, llm.KindCancellation, llm.KindOf(err))
}

func TestOpenAIEmbedding(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	})

	resp, err := adapter.Embedding(context.Background(), &api.EmbeddingRequest{
		Model: "text-embedding-3-small",
		Input: api.EmbeddingInput{Val: []string{"hello"}},
	}, "")

	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
}

func TestOpenAIStream(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var body api.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hel\"}}]}\n\n")
		_, _ = fmt.Fprint(w, ": keep-alive\n\n")
		_, _ = fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"lo\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := adapter.StreamChatCompletion(context.Background(), &api.ChatRequest{Messages: userMessage("Hi")}, "")
	require.NoError(t, err)

	var text string
	for res := range ch {
		require.NoError(t, res.Err)
		text += res.Response.Choices[0].Delta.Content.Text
	}
	assert.Equal(t, "Hello", text)
}

func TestOpenAIStream_RejectedBeforeData(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ch, err := adapter.StreamChatCompletion(context.Background(), &api.ChatRequest{Messages: userMessage("Hi")}, "")
	assert.Nil(t, ch)
	assert.Equal(t, llm.KindCommunication, llm.KindOf(err))
}
