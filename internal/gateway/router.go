package gateway

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nulzo/prism-router/internal/analytics"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/platform/metrics"
	"github.com/nulzo/prism-router/pkg/api"
)

const tracerName = "github.com/nulzo/prism-router/internal/gateway"

// Router selects a deployment for each request, dispatches it and retries
// against alternatives on recoverable failures.
type Router interface {
	Chat(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (*api.ChatResponse, error)
	StreamChat(ctx context.Context, req *api.ChatRequest, opts ...CallOption) (<-chan api.StreamResult, error)
	Embed(ctx context.Context, req *api.EmbeddingRequest, opts ...CallOption) (*api.EmbeddingResponse, error)

	// AvailableModels returns every registered deployment name in registration order.
	AvailableModels() []string
	FallbackModels(name string) []string
	// AddFallbackModels appends to the chain of primary and returns the result.
	AddFallbackModels(primary string, models []string) []string
	ResetUsageStatistics()

	// Deployments returns every deployment with its live statistics.
	Deployments() []Deployment
	DefaultStrategy() StrategyKind
}

// Config is the routing configuration supplied at initialization.
type Config struct {
	Deployments      []Deployment
	Fallbacks        map[string][]string
	DefaultStrategy  string
	MaxRetries       int
	RetryBaseDelayMs int
	RetryMaxDelayMs  int
	// AttemptTimeout bounds a single non-streaming dispatch. Zero disables it.
	AttemptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultStrategy:  StrategySimple.String(),
		MaxRetries:       3,
		RetryBaseDelayMs: 500,
		RetryMaxDelayMs:  10000,
	}
}

type Option func(*router)

func WithCapabilityDetector(d CapabilityDetector) Option {
	return func(r *router) { r.detector = d }
}

func WithEmbeddingCache(c EmbeddingCache) Option {
	return func(r *router) { r.cache = c }
}

func WithIngestor(i analytics.Ingestor) Option {
	return func(r *router) { r.ingestor = i }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(r *router) { r.metrics = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *router) { r.tracer = t }
}

type callOptions struct {
	strategy    StrategyKind
	hasStrategy bool
	apiKey      string
}

// CallOption adjusts a single routed request.
type CallOption func(*callOptions)

// WithStrategy overrides the router's default strategy for one request.
func WithStrategy(kind StrategyKind) CallOption {
	return func(o *callOptions) {
		o.strategy = kind
		o.hasStrategy = true
	}
}

// WithAPIKey overrides the provider credential for one request.
func WithAPIKey(key string) CallOption {
	return func(o *callOptions) { o.apiKey = key }
}

type router struct {
	logger   *zap.Logger
	factory  llm.ClientFactory
	registry *registry
	stats    *statsTracker
	detector CapabilityDetector
	cache    EmbeddingCache
	ingestor analytics.Ingestor
	metrics  *metrics.Collector
	tracer   trace.Tracer
	group    singleflight.Group

	defaultStrategy StrategyKind
	maxRetries      int
	baseDelayMs     int
	maxDelayMs      int
	attemptTimeout  time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
}

func NewRouter(logger *zap.Logger, factory llm.ClientFactory, cfg Config, opts ...Option) (Router, error) {
	return newRouter(logger, factory, cfg, opts...)
}

func newRouter(logger *zap.Logger, factory llm.ClientFactory, cfg Config, opts ...Option) (*router, error) {
	if factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}

	strategy := StrategySimple
	if cfg.DefaultStrategy != "" {
		kind, err := ParseStrategy(cfg.DefaultStrategy)
		if err != nil {
			return nil, err
		}
		strategy = kind
	}

	r := &router{
		logger:          logger,
		factory:         factory,
		registry:        newRegistry(logger),
		stats:           newStatsTracker(),
		defaultStrategy: strategy,
		maxRetries:      max(cfg.MaxRetries, 1),
		baseDelayMs:     max(cfg.RetryBaseDelayMs, 0),
		maxDelayMs:      max(cfg.RetryMaxDelayMs, cfg.RetryBaseDelayMs, 0),
		attemptTimeout:  cfg.AttemptTimeout,
		sleep:           sleepContext,
		jitter:          defaultJitter,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.detector == nil {
		r.detector = configCapabilities{reg: r.registry}
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}

	for _, d := range cfg.Deployments {
		r.registry.register(d)
	}
	for model, chain := range cfg.Fallbacks {
		r.registry.setFallbacks(model, chain)
	}

	r.logger.Info("Router initialized",
		zap.Int("deployments", len(r.registry.allNames())),
		zap.String("strategy", r.defaultStrategy.String()),
		zap.Int("max_retries", r.maxRetries),
	)

	return r, nil
}

func (r *router) DefaultStrategy() StrategyKind {
	return r.defaultStrategy
}

func (r *router) AvailableModels() []string {
	return r.registry.allNames()
}

func (r *router) FallbackModels(name string) []string {
	return r.registry.fallbacksFor(name)
}

func (r *router) AddFallbackModels(primary string, models []string) []string {
	chain := r.registry.addFallbacks(primary, models)
	r.logger.Info("Fallback chain updated", zap.String("model", primary), zap.Strings("fallbacks", chain))
	return chain
}

func (r *router) ResetUsageStatistics() {
	r.stats.reset()
	r.logger.Info("Usage statistics reset")
}

func (r *router) Deployments() []Deployment {
	all := r.registry.all()
	for i := range all {
		r.withStats(&all[i])
	}
	return all
}

func (r *router) withStats(d *Deployment) {
	s := r.stats.snapshot(d.Name)
	d.UsageCount = s.UsageCount
	d.RequestCount = s.RequestCount
	d.AverageLatencyMs = s.AverageLatencyMs
	d.LastUsed = s.LastUsed
}

// deploymentView returns the registered candidates merged with their statistics.
func (r *router) deploymentView(candidates []string) map[string]Deployment {
	view := make(map[string]Deployment, len(candidates))
	for _, c := range candidates {
		if d, ok := r.registry.get(c); ok {
			r.withStats(&d)
			view[c] = d
		}
	}
	return view
}

func resolveCallOptions(defaultStrategy StrategyKind, opts []CallOption) callOptions {
	co := callOptions{strategy: defaultStrategy}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

// classify decides the error class of a failed attempt. A done caller
// context always means cancellation, whatever the client reported.
func classify(ctx context.Context, err error) llm.Kind {
	if ctx.Err() != nil {
		return llm.KindCancellation
	}
	return llm.KindOf(err)
}
