package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/analytics"
	"github.com/nulzo/prism-router/internal/cli"
	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/platform/logger"
	"github.com/nulzo/prism-router/internal/platform/metrics"
	"github.com/nulzo/prism-router/internal/platform/otel"
	"github.com/nulzo/prism-router/internal/server"
	"github.com/nulzo/prism-router/internal/store/cache"
	"github.com/nulzo/prism-router/internal/store/sqlite"
	"github.com/nulzo/prism-router/internal/version"

	// register bundled providers
	_ "github.com/nulzo/prism-router/internal/llm/openai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// 2. Logging
	log, _, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := version.Check(cfg.Router.MinVersion); err != nil {
		return err
	}
	log.Info(fmt.Sprintf("%s %s", cli.Gradient("prism router", cli.BrandBlue, cli.BrandPurple, 0.5), cli.Style(version.Version, cli.Dim)))

	if cfg.Server.UpdateCheckURL != "" {
		go checkForUpdates(ctx, cfg.Server.UpdateCheckURL, log)
	}

	// 3. Observability
	shutdownTracer, err := otel.InitTracer(ctx, cfg.Tracing, os.Stdout, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	collector := metrics.NewCollector("prism")

	// 4. Providers and deployments
	factory := llm.NewFactory()
	gateway.BootstrapProviders(ctx, factory, cfg.Providers, false, log)
	deployments := gateway.BootstrapDeployments(factory, cfg.Deployments, log)

	// 5. Storage
	repo, err := sqlite.NewSQLiteStorage(cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = repo.Close() }()

	ingestor := analytics.NewIngestor(log, repo)
	ingestor.Start(ctx)
	defer ingestor.Stop()

	opts := []gateway.Option{
		gateway.WithIngestor(ingestor),
		gateway.WithMetrics(collector),
	}
	if cfg.Cache.EmbeddingsEnabled {
		backend := newCacheBackend(ctx, cfg.Redis, log)
		opts = append(opts, gateway.WithEmbeddingCache(cache.NewEmbeddingCache(backend, cfg.Cache.EmbeddingsTTL, log)))
	}

	// 6. Router
	rt, err := gateway.NewRouter(log, factory, gateway.ConfigFrom(cfg, deployments), opts...)
	if err != nil {
		return fmt.Errorf("invalid router configuration: %w", err)
	}

	// 7. HTTP
	srv := server.New(cfg, log, rt, analytics.NewService(repo), collector)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("%s listening on %s", cli.Arrow(), cli.Style(httpServer.Addr, cli.Cyan)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newCacheBackend prefers redis and falls back to process memory when redis
// is disabled or unreachable.
func newCacheBackend(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) cache.CacheService {
	if !cfg.Enabled {
		return cache.NewMemoryCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	backend := cache.NewRedisCache(client, "prism:")

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := backend.Ping(pingCtx); err != nil {
		log.Warn("Redis unreachable, using in-memory embedding cache", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return cache.NewMemoryCache()
	}

	log.Info("Embedding cache backed by redis", zap.String("addr", cfg.Addr))
	return backend
}

func checkForUpdates(ctx context.Context, url string, log *zap.Logger) {
	client := &http.Client{Timeout: 2 * time.Second}
	latest, outdated, err := version.Latest(ctx, client, url)
	if err != nil {
		log.Debug("Update check failed", zap.Error(err))
		return
	}
	if outdated {
		log.Warn(fmt.Sprintf("%s running %s, latest release is %s", cli.WarningSign(), version.Version, latest))
	}
}
