package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/store/model"
	"github.com/nulzo/prism-router/pkg/api"
)

func chunk(text string) api.StreamResult {
	return api.StreamResult{Response: &api.ChatResponse{
		Object:  "chat.completion.chunk",
		Choices: []api.Choice{{Delta: &api.ChatMessage{Role: "assistant", Content: api.Content{Text: text}}}},
	}}
}

func upstream(results ...api.StreamResult) <-chan api.StreamResult {
	ch := make(chan api.StreamResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func drain(ch <-chan api.StreamResult) []api.StreamResult {
	var out []api.StreamResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestStreamChat_ForwardsChunks(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "gpt").Return(client, nil)

	last := chunk(" world")
	last.Response.Usage = &api.ResponseUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").Return(upstream(chunk("hello"), last), nil)

	ingest := &captureIngestor{}
	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("gpt", "gpt")},
	}, WithIngestor(ingest))

	out, err := r.StreamChat(context.Background(), textRequest("gpt"))
	require.NoError(t, err)

	results := drain(out)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}

	assert.Equal(t, int64(1), r.stats.snapshot("gpt").RequestCount)

	logs := ingest.all()
	require.Len(t, logs, 1)
	assert.Equal(t, model.StatusSuccess, logs[0].Status)
	assert.True(t, logs[0].IsStreamed)
	assert.True(t, logs[0].TTFTMS.Valid)
	assert.Equal(t, 4, logs[0].InputTokens)
	assert.Equal(t, 2, logs[0].OutputTokens)
}

func TestStreamChat_EmptyStream(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "gpt").Return(client, nil)
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").Return(upstream(), nil)

	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("gpt", "gpt")},
	})

	out, err := r.StreamChat(context.Background(), textRequest("gpt"))
	require.NoError(t, err)

	results := drain(out)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrCommunicationFailure)
	assert.ErrorIs(t, results[0].Err, ErrEmptyStream)
	assert.Zero(t, r.stats.snapshot("gpt").RequestCount)
}

func TestStreamChat_ErrorBeforeFirstChunk(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "gpt").Return(client, nil)

	upstreamErr := commErr("connection reset")
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").Return(upstream(api.StreamResult{Err: upstreamErr}), nil)

	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("gpt", "gpt")},
	})

	out, err := r.StreamChat(context.Background(), textRequest("gpt"))
	require.NoError(t, err)

	results := drain(out)
	require.Len(t, results, 1)

	var cf *CommunicationFailureError
	require.True(t, errors.As(results[0].Err, &cf))
	assert.Equal(t, 1, cf.Attempts)
	assert.Same(t, upstreamErr, cf.Err)
}

func TestStreamChat_ErrorAfterOutputIsPassedThrough(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "gpt").Return(client, nil)

	midStream := commErr("dropped")
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").
		Return(upstream(chunk("partial"), api.StreamResult{Err: midStream}), nil)

	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("gpt", "gpt")},
	})

	out, err := r.StreamChat(context.Background(), textRequest("gpt"))
	require.NoError(t, err)

	results := drain(out)
	require.Len(t, results, 2)
	assert.Same(t, midStream, results[1].Err)
}

func TestStreamChat_PreStreamFailureIsNotRetried(t *testing.T) {
	first := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "a").Return(first, nil)
	first.On("StreamChatCompletion", mock.Anything, mock.Anything, "").Return(nil, commErr("refused"))

	r, sleeps := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("a", "a"), deployment("b", "b")},
		Fallbacks:   map[string][]string{"a": {"b"}},
	})

	out, err := r.StreamChat(context.Background(), textRequest("a"))
	assert.Nil(t, out)

	var cf *CommunicationFailureError
	require.True(t, errors.As(err, &cf))
	assert.Equal(t, 1, cf.Attempts)
	assert.Zero(t, sleeps.count())
	factory.AssertNotCalled(t, "Client", "b")
}

func TestStreamChat_PreStreamInvalidArgumentAborts(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "a").Return(client, nil)
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").
		Return(nil, llm.NewError(llm.KindInvalidArgument, "test", "bad tools", nil))

	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("a", "a")},
	})

	_, err := r.StreamChat(context.Background(), textRequest("a"))

	var aborted *AbortedError
	require.True(t, errors.As(err, &aborted))
	assert.Equal(t, llm.KindInvalidArgument, aborted.Kind)
	assert.Equal(t, 1, aborted.Attempts)
}

func TestStreamChat_VisionWithoutCapableDeployment(t *testing.T) {
	factory := new(MockFactory)
	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("a", "a")},
	})

	_, err := r.StreamChat(context.Background(), imageRequest("a"))
	assert.ErrorIs(t, err, ErrModelUnavailable)
	factory.AssertNotCalled(t, "Client", mock.Anything)
}

func TestStreamChat_StopsWhenCallerLeaves(t *testing.T) {
	client := new(MockClient)
	factory := new(MockFactory)
	factory.On("Client", "gpt").Return(client, nil)

	live := make(chan api.StreamResult)
	var ch <-chan api.StreamResult = live
	client.On("StreamChatCompletion", mock.Anything, mock.Anything, "").Return(ch, nil)

	ingest := &captureIngestor{}
	r, _ := newTestRouter(t, factory, Config{
		Deployments: []Deployment{deployment("gpt", "gpt")},
	}, WithIngestor(ingest))

	ctx, cancel := context.WithCancel(context.Background())
	out, err := r.StreamChat(ctx, textRequest("gpt"))
	require.NoError(t, err)

	live <- chunk("one")
	<-out
	cancel()
	// nobody reads this chunk once the caller is gone
	live <- chunk("two")
	close(live)

	require.Eventually(t, func() bool { return len(ingest.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.StatusAborted, ingest.all()[0].Status)

	for range out {
	}
}
