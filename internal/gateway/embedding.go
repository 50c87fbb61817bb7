package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/pkg/api"
)

// EmbeddingCache wraps embedding dispatch. A cached response is returned
// unchanged and successful responses are stored after dispatch.
type EmbeddingCache interface {
	Available() bool
	Key(req *api.EmbeddingRequest) string
	Get(ctx context.Context, key string) (*api.EmbeddingResponse, bool)
	Set(ctx context.Context, key string, resp *api.EmbeddingResponse)
}

type embedResult struct {
	resp *api.EmbeddingResponse
	st   *attemptState
}

func (r *router) Embed(ctx context.Context, req *api.EmbeddingRequest, opts ...CallOption) (*api.EmbeddingResponse, error) {
	rr := routeRequest{
		op:    opEmbedding,
		model: req.Model,
		opts:  resolveCallOptions(r.defaultStrategy, opts),
	}

	ctx, span := r.startRequestSpan(ctx, "gateway.Embed", rr)
	defer span.End()

	start := time.Now()

	cacheable := r.cache != nil && r.cache.Available()
	var key string
	if cacheable {
		key = r.cache.Key(req)
		if resp, ok := r.cache.Get(ctx, key); ok {
			r.metrics.RecordCacheLookup(true)
			log := newRequestLog(rr, nil, start, nil)
			log.CacheHit = true
			r.record(log)
			return resp, nil
		}
		r.metrics.RecordCacheLookup(false)
	}

	var (
		res embedResult
		err error
	)
	if cacheable {
		res, err = r.embedShared(ctx, rr, req, key)
	} else {
		res, err = r.embed(ctx, rr, req)
	}

	if err == nil && cacheable {
		r.cache.Set(ctx, key, res.resp)
	}

	log := newRequestLog(rr, res.st, start, err)
	if res.resp != nil && res.resp.Usage != nil {
		log.InputTokens = res.resp.Usage.PromptTokens
	}
	r.record(log)
	endRequestSpan(span, res.st, err)

	if err != nil {
		r.logger.Error("Embedding request failed", zap.String("model", req.Model), zap.Error(err))
		return nil, err
	}
	return res.resp, nil
}

func (r *router) embed(ctx context.Context, rr routeRequest, req *api.EmbeddingRequest) (embedResult, error) {
	resp, st, err := execute(ctx, r, rr, func(ctx context.Context, client llm.Client) (*api.EmbeddingResponse, error) {
		return client.Embedding(ctx, req, rr.opts.apiKey)
	})
	return embedResult{resp: resp, st: st}, err
}

// embedShared collapses concurrent identical requests into one routed call.
// Waiters honor their own context, and a waiter whose leader was cancelled
// routes the request itself.
func (r *router) embedShared(ctx context.Context, rr routeRequest, req *api.EmbeddingRequest, cacheKey string) (embedResult, error) {
	flightKey := singleflightKey(cacheKey, rr)

	ch := r.group.DoChan(flightKey, func() (any, error) {
		res, err := r.embed(ctx, rr, req)
		return res, err
	})

	select {
	case <-ctx.Done():
		return embedResult{}, &AbortedError{Kind: llm.KindCancellation, Err: ctx.Err()}
	case out := <-ch:
		res, _ := out.Val.(embedResult)
		if out.Shared && ctx.Err() == nil && abortedByCancellation(out.Err) {
			return r.embed(ctx, rr, req)
		}
		return res, out.Err
	}
}

func abortedByCancellation(err error) bool {
	var aborted *AbortedError
	return errors.As(err, &aborted) && aborted.Kind == llm.KindCancellation
}

func singleflightKey(cacheKey string, rr routeRequest) string {
	h := sha256.New()
	h.Write([]byte(cacheKey))
	h.Write([]byte{0})
	h.Write([]byte(rr.opts.strategy.String()))
	h.Write([]byte{0})
	h.Write([]byte(rr.opts.apiKey))
	return hex.EncodeToString(h.Sum(nil))
}
