package gateway

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/store/model"
)

// outcomeStatus maps a terminal router error onto a request log status.
func outcomeStatus(err error) string {
	var aborted *AbortedError
	switch {
	case err == nil:
		return model.StatusSuccess
	case errors.Is(err, ErrModelUnavailable):
		return model.StatusModelUnavailable
	case errors.Is(err, ErrCommunicationFailure):
		return model.StatusCommunicationFailure
	case errors.As(err, &aborted):
		return model.StatusAborted
	default:
		return model.StatusCommunicationFailure
	}
}

// newRequestLog fills the routing fields shared by every operation.
func newRequestLog(rr routeRequest, st *attemptState, start time.Time, err error) *model.RequestLog {
	log := &model.RequestLog{
		ID:             uuid.NewString(),
		Operation:      string(rr.op),
		RequestedModel: rr.model,
		Strategy:       rr.opts.strategy.String(),
		Status:         outcomeStatus(err),
		LatencyMS:      time.Since(start).Milliseconds(),
		IsStreamed:     rr.op == opStream,
		CreatedAt:      time.Now().UTC(),
	}
	if st != nil {
		log.Deployment = st.deployment
		log.Attempts = st.attempts
		log.ModelsTried = len(st.tried)
	}
	if err != nil {
		log.ErrorKind = llm.KindOf(err).String()
		log.ErrorMessage = err.Error()
	}
	return log
}

func (r *router) record(log *model.RequestLog) {
	r.metrics.RecordRequest(log.Operation, log.Status)
	if r.ingestor != nil {
		r.ingestor.Log(log)
	}
}
