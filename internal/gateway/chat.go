package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

func (r *router) Chat(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (*api.ChatResponse, error) {
	rr := routeRequest{
		op:     opChat,
		model:  req.Model,
		vision: r.detector.ContainsImageContent(req),
		opts:   resolveCallOptions(r.defaultStrategy, opts),
	}

	ctx, span := r.startRequestSpan(ctx, "gateway.Chat", rr)
	defer span.End()

	start := time.Now()
	resp, st, err := execute(ctx, r, rr, func(ctx context.Context, client llm.Client) (*api.ChatResponse, error) {
		return client.ChatCompletion(ctx, req, rr.opts.apiKey)
	})

	log := newRequestLog(rr, st, start, err)
	if resp != nil && resp.Usage != nil {
		log.InputTokens = resp.Usage.PromptTokens
		log.OutputTokens = resp.Usage.CompletionTokens
	}
	r.record(log)
	endRequestSpan(span, st, err)

	if err != nil {
		r.logger.Error("Chat request failed",
			zap.String("model", req.Model),
			zap.Int("attempts", st.attempts),
			zap.Error(err),
		)
		return nil, err
	}

	return resp, nil
}

func (r *router) startRequestSpan(ctx context.Context, name string, rr routeRequest) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("router.model", rr.model),
		attribute.String("router.strategy", rr.opts.strategy.String()),
		attribute.Bool("router.vision", rr.vision),
	))
}

func endRequestSpan(span trace.Span, st *attemptState, err error) {
	if st != nil {
		span.SetAttributes(
			attribute.Int("router.attempts", st.attempts),
			attribute.Int("router.models_tried", len(st.tried)),
			attribute.String("router.deployment", st.deployment),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeStatus(err))
	}
}
