package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/llm"
)

type operation string

const (
	opChat      operation = "chat"
	opEmbedding operation = "embedding"
	opStream    operation = "stream"
)

type routeRequest struct {
	op     operation
	model  string
	vision bool
	opts   callOptions
}

// attemptState is the per-request retry bookkeeping. It is owned by a
// single request and never shared.
type attemptState struct {
	attempts   int
	lastErr    error
	lastKind   llm.Kind
	deployment string
	reason     string
	exclude    map[string]struct{}
	tried      []string
	triedSet   map[string]struct{}
}

func newAttemptState() *attemptState {
	return &attemptState{
		exclude:  make(map[string]struct{}),
		triedSet: make(map[string]struct{}),
	}
}

func (s *attemptState) begin(target string) {
	s.attempts++
	s.deployment = target
	if _, ok := s.triedSet[target]; !ok {
		s.triedSet[target] = struct{}{}
		s.tried = append(s.tried, target)
	}
}

func (s *attemptState) fail(err error, kind llm.Kind) {
	s.lastErr = err
	s.lastKind = kind
}

func (s *attemptState) aborted() error {
	return &AbortedError{
		Deployment:  s.deployment,
		Kind:        s.lastKind,
		Attempts:    s.attempts,
		ModelsTried: len(s.tried),
		Err:         s.lastErr,
	}
}

// exhausted builds the terminal error once no further attempt will be made.
func (s *attemptState) exhausted(model string) error {
	if s.lastErr != nil {
		return &CommunicationFailureError{
			Model:       model,
			Attempts:    s.attempts,
			ModelsTried: len(s.tried),
			Err:         s.lastErr,
		}
	}
	return &ModelUnavailableError{
		Model:       model,
		Reason:      s.reason,
		Attempts:    s.attempts,
		ModelsTried: len(s.tried),
	}
}

// eligible builds and filters the candidates for the next attempt. When the
// result is empty the second value explains why.
func (r *router) eligible(rr routeRequest, exclude map[string]struct{}) ([]string, string) {
	candidates := buildCandidates(r.registry, rr.model, exclude)
	if len(candidates) == 0 {
		return nil, fmt.Sprintf("no deployment can serve %q", rr.model)
	}

	if rr.op == opEmbedding {
		candidates = filterEmbeddings(r.registry, candidates)
		if len(candidates) == 0 {
			return nil, fmt.Sprintf("no deployment for %q supports embeddings", rr.model)
		}
	}

	if rr.vision {
		candidates = filterVision(r.registry, r.detector, candidates)
		if len(candidates) == 0 {
			return nil, fmt.Sprintf("no deployment for %q supports vision input", rr.model)
		}
	}

	return candidates, ""
}

// pick chooses the dispatch target. Passthrough sends the requested model
// unchanged and never excludes it, so retries repeat the same target.
func (r *router) pick(rr routeRequest, candidates []string, exclude map[string]struct{}) (string, bool) {
	strategy := rr.opts.strategy
	if strategy == StrategyPassthrough {
		if rr.model == "" {
			return "", false
		}
		return rr.model, true
	}

	target, ok := strategy.Select(candidates, r.deploymentView(candidates), r.stats.usageCounts(candidates))
	if !ok {
		return "", false
	}
	exclude[target] = struct{}{}
	r.metrics.RecordSelection(strategy.String(), target)
	return target, true
}

// execute runs the select, dispatch, classify and backoff loop for one request.
func execute[T any](ctx context.Context, r *router, rr routeRequest, call func(ctx context.Context, client llm.Client) (T, error)) (T, *attemptState, error) {
	var zero T
	st := newAttemptState()

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		candidates, reason := r.eligible(rr, st.exclude)
		if len(candidates) == 0 {
			st.reason = reason
			break
		}

		target, ok := r.pick(rr, candidates, st.exclude)
		if !ok {
			st.reason = "passthrough routing requires an explicit model"
			break
		}

		st.begin(target)
		res, err := dispatch(ctx, r, rr.op, target, attempt, call)
		if err == nil {
			return res, st, nil
		}

		kind := classify(ctx, err)
		st.fail(err, kind)

		r.logger.Warn("Dispatch attempt failed",
			zap.String("operation", string(rr.op)),
			zap.String("deployment", target),
			zap.Int("attempt", attempt),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)

		if !kind.Retryable() {
			return zero, st, st.aborted()
		}
		if attempt == r.maxRetries {
			break
		}

		delay := backoffDelay(attempt, r.baseDelayMs, r.maxDelayMs, r.jitter)
		r.metrics.RecordBackoff(delay)
		if err := r.sleep(ctx, delay); err != nil {
			st.fail(err, llm.KindCancellation)
			return zero, st, st.aborted()
		}
	}

	return zero, st, st.exhausted(rr.model)
}
