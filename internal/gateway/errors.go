package gateway

import (
	"errors"
	"fmt"

	"github.com/nulzo/prism-router/internal/llm"
)

var (
	// ErrModelUnavailable matches any *ModelUnavailableError.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrCommunicationFailure matches any *CommunicationFailureError.
	ErrCommunicationFailure = errors.New("communication failure")
)

// ModelUnavailableError reports that no eligible candidate was ever found.
type ModelUnavailableError struct {
	Model       string
	Reason      string
	Attempts    int
	ModelsTried int
}

func (e *ModelUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("model unavailable: %s", e.Reason)
	}
	return fmt.Sprintf("model unavailable: no deployment can serve %q", e.Model)
}

func (e *ModelUnavailableError) Is(target error) bool {
	return target == ErrModelUnavailable
}

// CommunicationFailureError reports that candidates existed, were tried and
// all failed. Err is the last failure.
type CommunicationFailureError struct {
	Model       string
	Attempts    int
	ModelsTried int
	Err         error
}

func (e *CommunicationFailureError) Error() string {
	return fmt.Sprintf("communication failure for %q after %d attempt(s) across %d model(s): %v",
		e.Model, e.Attempts, e.ModelsTried, e.Err)
}

func (e *CommunicationFailureError) Unwrap() error {
	return e.Err
}

func (e *CommunicationFailureError) Is(target error) bool {
	return target == ErrCommunicationFailure
}

// AbortedError wraps a non-recoverable failure that stopped the retry loop
// before it was exhausted.
type AbortedError struct {
	Deployment  string
	Kind        llm.Kind
	Attempts    int
	ModelsTried int
	Err         error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("request aborted on %q after %d attempt(s) (%s): %v",
		e.Deployment, e.Attempts, e.Kind, e.Err)
}

func (e *AbortedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err should let the retry loop continue.
func IsRetryable(err error) bool {
	return llm.KindOf(err).Retryable()
}
