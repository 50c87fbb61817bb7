package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/httpclient"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

func init() {
	llm.Register(string(llm.OpenAI), NewAdapter)
}

// Adapter speaks the OpenAI-compatible chat, streaming and embeddings API.
type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(config config.ProviderConfig) (llm.Provider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// NewAdapterWithClient is used by tests and callers that manage their own transport.
func NewAdapterWithClient(config config.ProviderConfig, client httpclient.HTTPClient) *Adapter {
	a, _ := NewAdapter(config)
	adapter := a.(*Adapter)
	adapter.client = client
	return adapter
}

func (a *Adapter) Name() string {
	return a.config.ID
}

func (a *Adapter) Type() string {
	return string(llm.OpenAI)
}

// upstreamErrorResponse mirrors the standard OpenAI error shape
type upstreamErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Param   interface{} `json:"param"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// classify turns transport and upstream failures into *llm.Error.
func (a *Adapter) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		msg := string(upstreamErr.Body)
		var apiErr upstreamErrorResponse
		if jsonErr := json.Unmarshal(upstreamErr.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return &llm.Error{
			Kind:       llm.KindFromStatus(upstreamErr.StatusCode),
			Provider:   a.config.ID,
			StatusCode: upstreamErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	kind := llm.KindOf(err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind = llm.KindOf(ctxErr)
	} else if kind == llm.KindUnclassified {
		// the request never produced a response
		kind = llm.KindCommunication
	}
	return llm.NewError(kind, a.config.ID, "", err)
}

func (a *Adapter) headers(apiKey string) map[string]string {
	if apiKey == "" {
		apiKey = a.config.APIKey
	}
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
	}

	// handle headers if present in config
	if org, ok := a.config.Config["organization"]; ok {
		headers["OpenAI-Organization"] = org
	}
	return headers
}

func (a *Adapter) url(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(a.config.BaseURL, "/"), path)
}

func (a *Adapter) ChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (*api.ChatResponse, error) {
	var resp api.ChatResponse

	body := *req
	body.Stream = false
	body.StreamOptions = nil

	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url("chat/completions"), a.headers(apiKey), &body, &resp); err != nil {
		return nil, a.classify(ctx, err)
	}

	return &resp, nil
}

func (a *Adapter) Embedding(ctx context.Context, req *api.EmbeddingRequest, apiKey string) (*api.EmbeddingResponse, error) {
	var resp api.EmbeddingResponse

	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.url("embeddings"), a.headers(apiKey), req, &resp); err != nil {
		return nil, a.classify(ctx, err)
	}

	return &resp, nil
}

// StreamChatCompletion returns once upstream accepts the request; failures
// after that point arrive on the channel.
func (a *Adapter) StreamChatCompletion(ctx context.Context, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error) {
	body := *req
	body.Stream = true
	body.StreamOptions = &api.StreamOptions{IncludeUsage: true}

	stream, err := httpclient.OpenStream(ctx, a.client, http.MethodPost, a.url("chat/completions"), a.headers(apiKey), &body)
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	ch := make(chan api.StreamResult)

	go func() {
		defer close(ch)
		defer func() {
			_ = stream.Close()
		}()

		err := stream.Lines(func(line string) error {
			// SSE format: data: {...}
			if !strings.HasPrefix(line, "data:") {
				return nil
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return httpclient.ErrStopStream
			}

			var chunk api.ChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// skip keep-alives and malformed frames
				return nil
			}

			select {
			case ch <- api.StreamResult{Response: &chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil {
			select {
			case ch <- api.StreamResult{Err: a.classify(ctx, err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url("models"), nil)
	if err != nil {
		return err
	}

	for k, v := range a.headers("") {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return a.classify(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}

	return nil
}
