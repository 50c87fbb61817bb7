package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a provider failure for retry decisions.
type Kind int

const (
	KindUnclassified Kind = iota
	KindCommunication
	KindTimeout
	KindCancellation
	KindInvalidArgument
	KindConfiguration
	KindInvalidOperation
)

func (k Kind) String() string {
	switch k {
	case KindCommunication:
		return "communication"
	case KindTimeout:
		return "timeout"
	case KindCancellation:
		return "cancellation"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConfiguration:
		return "configuration"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "unclassified"
	}
}

// Retryable reports whether trying another deployment is worthwhile.
func (k Kind) Retryable() bool {
	switch k {
	case KindCancellation, KindInvalidArgument, KindConfiguration, KindInvalidOperation:
		return false
	default:
		return true
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error from %s (status %d): %s", e.Kind, e.Provider, e.StatusCode, msg)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s error from %s: %s", e.Kind, e.Provider, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, provider, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: err}
}

// ConfigurationError is returned when no client mapping exists for a model.
func ConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// KindFromStatus maps an upstream HTTP status code onto the error taxonomy.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindConfiguration
	case code == http.StatusTooManyRequests:
		return KindCommunication
	case code == http.StatusBadRequest || code == http.StatusNotFound ||
		code == http.StatusUnprocessableEntity || code == http.StatusRequestEntityTooLarge:
		return KindInvalidArgument
	case code == http.StatusConflict || code == http.StatusMethodNotAllowed:
		return KindInvalidOperation
	case code >= 500:
		return KindCommunication
	default:
		return KindUnclassified
	}
}

// KindOf extracts the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnclassified
	}

	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCancellation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindCommunication
	}

	return KindUnclassified
}
