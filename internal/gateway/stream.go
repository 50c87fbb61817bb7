package gateway

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

// ErrEmptyStream is wrapped when a stream completes without producing a chunk.
var ErrEmptyStream = errors.New("stream completed without producing any chunks")

// StreamChat selects a single deployment before any data flows. Failures
// before the first chunk surface as router errors; once output has started
// no other deployment is tried.
func (r *router) StreamChat(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (<-chan api.StreamResult, error) {
	rr := routeRequest{
		op:     opStream,
		model:  req.Model,
		vision: r.detector.ContainsImageContent(req),
		opts:   resolveCallOptions(r.defaultStrategy, opts),
	}

	spanCtx, span := r.startRequestSpan(ctx, "gateway.StreamChat", rr)
	start := time.Now()
	st := newAttemptState()

	fail := func(err error) (<-chan api.StreamResult, error) {
		r.record(newRequestLog(rr, st, start, err))
		endRequestSpan(span, st, err)
		span.End()
		r.logger.Error("Stream request failed", zap.String("model", req.Model), zap.Error(err))
		return nil, err
	}

	candidates, reason := r.eligible(rr, st.exclude)
	if len(candidates) == 0 {
		st.reason = reason
		return fail(st.exhausted(rr.model))
	}

	target, ok := r.pick(rr, candidates, st.exclude)
	if !ok {
		st.reason = "passthrough routing requires an explicit model"
		return fail(st.exhausted(rr.model))
	}
	st.begin(target)

	// The attempt timeout does not apply here; it would cut off a healthy stream.
	upstream, err := dispatchStream(spanCtx, r, target, req, rr.opts.apiKey)
	if err != nil {
		return fail(r.streamFailure(spanCtx, rr.model, st, err))
	}

	out := make(chan api.StreamResult)

	go func() {
		defer close(out)
		defer span.End()

		var (
			chunks       int
			ttft         time.Duration
			inputTokens  int
			outputTokens int
			terminalErr  error
			cancelled    bool
		)

		for res := range upstream {
			if res.Err != nil {
				if chunks == 0 {
					res.Err = r.streamFailure(spanCtx, rr.model, st, res.Err)
				}
				terminalErr = res.Err
			} else if res.Response != nil {
				if chunks == 0 {
					ttft = time.Since(start)
				}
				chunks++
				if res.Response.Usage != nil {
					inputTokens = res.Response.Usage.PromptTokens
					outputTokens = res.Response.Usage.CompletionTokens
				}
			}

			select {
			case out <- res:
			case <-spanCtx.Done():
				cancelled = true
			}
			if cancelled {
				break
			}
		}

		elapsed := time.Since(start)

		switch {
		case cancelled:
			st.fail(spanCtx.Err(), llm.KindCancellation)
			terminalErr = st.aborted()
		case terminalErr == nil && chunks == 0:
			st.fail(ErrEmptyStream, llm.KindCommunication)
			terminalErr = st.exhausted(rr.model)
			select {
			case out <- api.StreamResult{Err: terminalErr}:
			case <-spanCtx.Done():
			}
		case terminalErr == nil:
			r.stats.update(r.registry.resolve(target), elapsedMs(elapsed))
			r.metrics.RecordAttempt(string(opStream), target, "success")
			r.metrics.RecordLatency(string(opStream), target, elapsed)
		}

		log := newRequestLog(rr, st, start, terminalErr)
		log.InputTokens = inputTokens
		log.OutputTokens = outputTokens
		if chunks > 0 {
			log.TTFTMS = sql.NullInt64{Int64: ttft.Milliseconds(), Valid: true}
		}
		r.record(log)
		endRequestSpan(span, st, terminalErr)
	}()

	return out, nil
}

// dispatchStream opens the upstream stream for target.
func dispatchStream(ctx context.Context, r *router, target string, req *api.ChatRequest, apiKey string) (<-chan api.StreamResult, error) {
	client, err := r.clientFor(target)
	if err != nil {
		return nil, err
	}
	return client.StreamChatCompletion(ctx, req, apiKey)
}

// streamFailure classifies an error raised before the first chunk. Streams
// are never retried, so a recoverable failure is terminal after one attempt.
func (r *router) streamFailure(ctx context.Context, model string, st *attemptState, err error) error {
	kind := classify(ctx, err)
	st.fail(err, kind)
	r.metrics.RecordAttempt(string(opStream), st.deployment, kind.String())
	if !kind.Retryable() {
		return st.aborted()
	}
	return st.exhausted(model)
}
