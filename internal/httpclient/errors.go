package httpclient

import "fmt"

// UpstreamError represents a non-2xx response from an upstream service
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
	RetryAfter string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}
