package gateway

import (
	"strings"

	"github.com/nulzo/prism-router/pkg/api"
)

// CapabilityDetector decides whether a request needs vision input and
// whether a model alias can accept it.
type CapabilityDetector interface {
	ContainsImageContent(req *api.ChatRequest) bool
	HasVisionCapability(modelAlias string) bool
}

// configCapabilities answers from the deployments' supports_vision flags.
type configCapabilities struct {
	reg *registry
}

func (c configCapabilities) ContainsImageContent(req *api.ChatRequest) bool {
	return requiresVision(req)
}

func (c configCapabilities) HasVisionCapability(modelAlias string) bool {
	for _, d := range c.reg.all() {
		if d.IsEnabled && d.SupportsVision && strings.EqualFold(d.ModelAlias, modelAlias) {
			return true
		}
	}
	return false
}

// requiresVision flags requests carrying any non-text content part.
func requiresVision(req *api.ChatRequest) bool {
	if req == nil {
		return false
	}
	for _, m := range req.Messages {
		if !m.Content.IsPlainText() {
			return true
		}
	}
	return false
}

// aliasOf resolves a candidate name to the alias its client is keyed by.
// Unregistered names are treated as aliases themselves.
func aliasOf(reg *registry, name string) string {
	if d, ok := reg.get(name); ok {
		return d.ModelAlias
	}
	return name
}

// filterVision keeps candidates whose alias supports vision input.
func filterVision(reg *registry, detector CapabilityDetector, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if detector.HasVisionCapability(aliasOf(reg, c)) {
			out = append(out, c)
		}
	}
	return out
}

// filterEmbeddings drops registered deployments that do not serve embeddings.
// Unregistered literal names are kept since nothing is known about them.
func filterEmbeddings(reg *registry, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if d, ok := reg.get(c); ok && !d.SupportsEmbeddings {
			continue
		}
		out = append(out, c)
	}
	return out
}
