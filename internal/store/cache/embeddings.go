package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/pkg/api"
)

const embeddingKeyPrefix = "embeddings:"

// EmbeddingCache stores embedding responses keyed by a digest of the
// request. Backend errors are logged and treated as misses.
type EmbeddingCache struct {
	backend CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

func NewEmbeddingCache(backend CacheService, ttl time.Duration, logger *zap.Logger) *EmbeddingCache {
	return &EmbeddingCache{backend: backend, ttl: ttl, logger: logger}
}

func (c *EmbeddingCache) Available() bool {
	return c != nil && c.backend != nil
}

// Key digests every request field that changes the returned vectors.
func (c *EmbeddingCache) Key(req *api.EmbeddingRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(strings.ToLower(req.Model))
	write(req.EncodingFormat)
	write(strconv.Itoa(req.Dimensions))
	write(strconv.Itoa(len(req.Input.Val)))
	for _, in := range req.Input.Val {
		write(in)
	}

	return embeddingKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *EmbeddingCache) Get(ctx context.Context, key string) (*api.EmbeddingResponse, bool) {
	var resp api.EmbeddingResponse
	if err := c.backend.Get(ctx, key, &resp); err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return &resp, true
}

func (c *EmbeddingCache) Set(ctx context.Context, key string, resp *api.EmbeddingResponse) {
	if resp == nil {
		return
	}
	if err := c.backend.Set(ctx, key, resp, c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
