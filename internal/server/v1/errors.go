package v1

import (
	"errors"

	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// problemFromRouterError maps routing failures onto HTTP problems.
func problemFromRouterError(err error) *api.Problem {
	var problem *api.Problem
	if errors.As(err, &problem) {
		return problem
	}

	var unavailable *gateway.ModelUnavailableError
	if errors.As(err, &unavailable) {
		return api.ServiceUnavailableError(unavailable.Error(),
			api.WithExtension("model", unavailable.Model),
			api.WithExtension("attempts", unavailable.Attempts),
		)
	}

	var comm *gateway.CommunicationFailureError
	if errors.As(err, &comm) {
		return api.ProviderError("All deployments failed to respond", err,
			api.WithExtension("model", comm.Model),
			api.WithExtension("attempts", comm.Attempts),
			api.WithExtension("models_tried", comm.ModelsTried),
		)
	}

	var aborted *gateway.AbortedError
	if errors.As(err, &aborted) {
		switch aborted.Kind {
		case llm.KindInvalidArgument:
			return api.BadRequestError(aborted.Err.Error(),
				api.WithExtension("deployment", aborted.Deployment),
				api.WithLog(err),
			)
		case llm.KindCancellation:
			return api.NewError(statusClientClosedRequest, "Client Closed Request", "The request was cancelled", api.WithLog(err))
		default:
			return api.InternalError("Request could not be routed", err)
		}
	}

	return api.InternalError("Failed to process request", err)
}
