package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nulzo/prism-router/internal/llm"
)

// clientFor resolves a deployment name to the client serving its alias.
func (r *router) clientFor(target string) (llm.Client, error) {
	alias := aliasOf(r.registry, target)
	client, err := r.factory.Client(alias)
	if err != nil {
		if llm.KindOf(err) == llm.KindUnclassified {
			return nil, llm.NewError(llm.KindConfiguration, "", fmt.Sprintf("no client for model %q", alias), err)
		}
		return nil, err
	}
	return client, nil
}

func elapsedMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// dispatch performs one attempt against target. Statistics are only updated
// on success so failures never skew the latency average.
func dispatch[T any](ctx context.Context, r *router, op operation, target string, attempt int, call func(ctx context.Context, client llm.Client) (T, error)) (T, error) {
	var zero T

	ctx, span := r.tracer.Start(ctx, "gateway.attempt", trace.WithAttributes(
		attribute.String("router.operation", string(op)),
		attribute.String("router.deployment", target),
		attribute.Int("router.attempt", attempt),
	))
	defer span.End()

	client, err := r.clientFor(target)
	if err != nil {
		r.failAttempt(ctx, span, op, target, err)
		return zero, err
	}

	attemptCtx := ctx
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := call(attemptCtx, client)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			err = llm.NewError(llm.KindTimeout, "", fmt.Sprintf("attempt exceeded %s", r.attemptTimeout), err)
		}
		r.failAttempt(ctx, span, op, target, err)
		return zero, err
	}

	r.stats.update(r.registry.resolve(target), elapsedMs(elapsed))
	r.metrics.RecordAttempt(string(op), target, "success")
	r.metrics.RecordLatency(string(op), target, elapsed)

	return res, nil
}

func (r *router) failAttempt(ctx context.Context, span trace.Span, op operation, target string, err error) {
	kind := classify(ctx, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind.String())
	r.metrics.RecordAttempt(string(op), target, kind.String())
}
