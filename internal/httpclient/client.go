package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxLineSize bounds a single SSE line and error bodies read into memory.
const maxLineSize = 1 << 20

// ErrStopStream may be returned by a LineProcessor to end a stream cleanly.
var ErrStopStream = errors.New("stop stream")

// HTTPClient defines the interface for an HTTP client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func newRequest(ctx context.Context, method, url string, headers map[string]string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func checkStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		URL:        url,
		RetryAfter: resp.Header.Get("Retry-After"),
	}
}

// SendRequest handles the common logic of creating a request, sending it, and checking the status code.
func SendRequest(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}, response interface{}) error {
	req, err := newRequest(ctx, method, url, headers, body)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := checkStatus(resp, url); err != nil {
		return err
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type LineProcessor func(line string) error

// Stream is an open event-stream response whose status has already been checked.
type Stream struct {
	body io.ReadCloser
}

// OpenStream sends the request and returns once upstream has accepted it, so
// callers can tell a rejected request apart from a failure mid-stream.
func OpenStream(ctx context.Context, client HTTPClient, method, url string, headers map[string]string, body interface{}) (*Stream, error) {
	req, err := newRequest(ctx, method, url, headers, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if err := checkStatus(resp, url); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}

	return &Stream{body: resp.Body}, nil
}

// Lines feeds each non-empty line to processLine until EOF, an error, or ErrStopStream.
func (s *Stream) Lines(processLine LineProcessor) error {
	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if err := processLine(line); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}

	return scanner.Err()
}

func (s *Stream) Close() error {
	return s.body.Close()
}
