package api

import "time"

// Model is the public listing shape for a routable model alias.
type Model struct {
	ID          string   `json:"id"`
	Object      string   `json:"object"`
	OwnedBy     string   `json:"owned_by"`
	Deployments []string `json:"deployments"`
	Fallbacks   []string `json:"fallbacks,omitempty"`
}

// DeploymentStatus exposes a deployment together with its live routing statistics.
type DeploymentStatus struct {
	Name               string     `json:"name"`
	ModelAlias         string     `json:"model_alias"`
	Provider           string     `json:"provider"`
	InputCostPer1K     *float64   `json:"input_cost_per_1k"`
	OutputCostPer1K    *float64   `json:"output_cost_per_1k"`
	Priority           int        `json:"priority"`
	Enabled            bool       `json:"enabled"`
	SupportsEmbeddings bool       `json:"supports_embeddings"`
	SupportsVision     bool       `json:"supports_vision"`
	UsageCount         int64      `json:"usage_count"`
	RequestCount       int64      `json:"request_count"`
	AverageLatencyMs   float64    `json:"average_latency_ms"`
	LastUsed           *time.Time `json:"last_used,omitempty"`
}

// FallbackChain is the response for fallback inspection endpoints.
type FallbackChain struct {
	Model     string   `json:"model"`
	Fallbacks []string `json:"fallbacks"`
}
