package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "server:\n  env: test\n"))
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)

	assert.Equal(t, "simple", cfg.Router.Strategy)
	assert.Equal(t, 3, cfg.Router.MaxRetries)
	assert.Equal(t, 500, cfg.Router.RetryBaseDelayMs)
	assert.Equal(t, 10000, cfg.Router.RetryMaxDelayMs)
	assert.Equal(t, 24*time.Hour, cfg.Cache.EmbeddingsTTL)
}

func TestLoadConfig_APIKeyResolution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-12345")
	t.Setenv("GATEWAY_KEY", "gw-secret")

	path := writeConfig(t, `
server:
  api_keys:
    - "ENV:GATEWAY_KEY"
    - "literal-key"
providers:
  - id: "test-provider"
    name: "Test"
    type: "openai"
    api_key: "ENV:TEST_API_KEY"
    enabled: true
`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-test-12345", cfg.Providers[0].APIKey)
	assert.Equal(t, []string{"gw-secret", "literal-key"}, cfg.Server.APIKeys)
}

func TestLoadConfig_Deployments(t *testing.T) {
	path := writeConfig(t, `
router:
  strategy: least-cost
  attempt_timeout: 15s
deployments:
  - name: gpt4-east
    model_alias: gpt-4
    provider: openai
    input_cost_per_1k: 0.03
    priority: 1
  - name: gpt4-west
    model_alias: gpt-4
    provider: openai
    enabled: false
fallbacks:
  gpt-4:
    - gpt-35
`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "least-cost", cfg.Router.Strategy)
	assert.Equal(t, 15*time.Second, cfg.Router.AttemptTimeout)

	require.Len(t, cfg.Deployments, 2)
	east := cfg.Deployments[0]
	require.NotNil(t, east.InputCostPer1K)
	assert.InDelta(t, 0.03, *east.InputCostPer1K, 1e-9)
	assert.Nil(t, east.OutputCostPer1K)
	assert.True(t, east.IsEnabled())
	assert.False(t, cfg.Deployments[1].IsEnabled())

	assert.Equal(t, []string{"gpt-35"}, cfg.Fallbacks["gpt-4"])
}

func TestLoadConfig_InvalidRouter(t *testing.T) {
	path := writeConfig(t, `
router:
  retry_base_delay_ms: 2000
  retry_max_delay_ms: 100
`)
	t.Setenv("CONFIG_FILE", path)

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid router config")
}

func TestValidate_Deployment(t *testing.T) {
	negative := -1.0
	err := Validate(DeploymentConfig{Name: "d", ModelAlias: "m", Provider: "p", InputCostPer1K: &negative})
	assert.Error(t, err)

	assert.Error(t, Validate(DeploymentConfig{Name: "d", Provider: "p"}))
	assert.NoError(t, Validate(DeploymentConfig{Name: "d", ModelAlias: "m", Provider: "p"}))
}

func TestLoadConfig_DottedFallbackKeys(t *testing.T) {
	path := writeConfig(t, `
fallbacks:
  gpt-3.5-turbo:
    - claude
  gpt-4:
    - gpt-3.5-turbo
    - claude-3.5-sonnet
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ROUTER_MAX_RETRIES", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"claude"}, cfg.Fallbacks["gpt-3.5-turbo"])
	assert.Equal(t, []string{"gpt-3.5-turbo", "claude-3.5-sonnet"}, cfg.Fallbacks["gpt-4"])
	assert.Equal(t, 5, cfg.Router.MaxRetries)
}
