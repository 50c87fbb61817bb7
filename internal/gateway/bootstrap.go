package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/cli"
	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/llm"
)

// BootstrapProviders initializes all enabled providers from configuration and
// adds them to factory. Unhealthy providers are skipped when checkHealth is set.
func BootstrapProviders(ctx context.Context, factory *llm.Factory, providers []config.ProviderConfig, checkHealth bool, log *zap.Logger) int {
	registeredCount := 0

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			continue
		}

		// Validate provider configuration individually
		if err := config.Validate(&pCfg); err != nil {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Style(fmt.Sprintf("%s\t", pCfg.ID), cli.Bold),
				cli.Style("Skipping provider with invalid configuration", cli.Yellow),
			), zap.Error(err))
			continue
		}

		constructor, err := llm.Get(pCfg.Type)
		if err != nil {
			log.Error("Unknown provider type", zap.String("id", pCfg.ID), zap.String("type", pCfg.Type))
			continue
		}

		providerInstance, err := constructor(pCfg)
		if err != nil {
			log.Error("Failed to initialize provider",
				zap.String("id", pCfg.ID),
				zap.Error(err),
			)
			continue
		}

		if checkHealth {
			healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := providerInstance.Health(healthCtx)
			cancel()
			if err != nil {
				log.Error("Provider unhealthy, skipping registration",
					zap.String("id", pCfg.ID),
					zap.Error(err))
				continue
			}
		}

		factory.AddProvider(providerInstance)
		log.Info(fmt.Sprintf("%s provider %s", cli.CheckMark(), cli.Style(pCfg.ID, cli.Cyan)))
		registeredCount++
	}

	if registeredCount == 0 {
		log.Warn("No providers were registered. API will not function correctly.")
	}

	return registeredCount
}

// BootstrapDeployments converts configured deployments and binds each alias
// to its provider. Entries that fail validation or name an unknown provider
// are skipped with a warning.
func BootstrapDeployments(factory *llm.Factory, deployments []config.DeploymentConfig, log *zap.Logger) []Deployment {
	out := make([]Deployment, 0, len(deployments))

	for _, dCfg := range deployments {
		if err := config.Validate(&dCfg); err != nil {
			log.Warn("Skipping invalid deployment", zap.String("name", dCfg.Name), zap.Error(err))
			continue
		}

		bound, err := factory.Bind(dCfg.ModelAlias, dCfg.Provider, dCfg.UpstreamModel)
		if err != nil {
			log.Warn("Skipping deployment",
				zap.String("name", dCfg.Name),
				zap.String("provider", dCfg.Provider),
				zap.Error(err),
			)
			continue
		}
		if !bound {
			log.Debug("Alias already bound, deployment shares the existing client",
				zap.String("name", dCfg.Name),
				zap.String("alias", dCfg.ModelAlias),
			)
		}

		out = append(out, Deployment{
			Name:               dCfg.Name,
			ModelAlias:         dCfg.ModelAlias,
			ProviderName:       dCfg.Provider,
			UpstreamModel:      dCfg.UpstreamModel,
			InputCostPer1K:     dCfg.InputCostPer1K,
			OutputCostPer1K:    dCfg.OutputCostPer1K,
			Priority:           dCfg.Priority,
			IsEnabled:          dCfg.IsEnabled(),
			SupportsEmbeddings: dCfg.SupportsEmbeddings,
			SupportsVision:     dCfg.SupportsVision,
		})
	}

	return out
}

// ConfigFrom builds the router configuration from the loaded config.
func ConfigFrom(cfg *config.Config, deployments []Deployment) Config {
	return Config{
		Deployments:      deployments,
		Fallbacks:        cfg.Fallbacks,
		DefaultStrategy:  cfg.Router.Strategy,
		MaxRetries:       cfg.Router.MaxRetries,
		RetryBaseDelayMs: cfg.Router.RetryBaseDelayMs,
		RetryMaxDelayMs:  cfg.Router.RetryMaxDelayMs,
		AttemptTimeout:   cfg.Router.AttemptTimeout,
	}
}
