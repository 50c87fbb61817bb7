package gateway

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newTestRegistry(ds ...Deployment) *registry {
	reg := newRegistry(zap.NewNop())
	for _, d := range ds {
		reg.register(d)
	}
	return reg
}

func set(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func TestBuildCandidates(t *testing.T) {
	disabled := deployment("old-gpt", "gpt-4")
	disabled.IsEnabled = false

	reg := newTestRegistry(
		deployment("gpt-4-east", "gpt-4"),
		deployment("gpt-4-west", "GPT-4"),
		disabled,
		deployment("claude", "claude"),
		deployment("mistral", "mistral"),
	)
	reg.setFallbacks("gpt-4", []string{"claude", "gpt-4-west"})
	reg.setFallbacks("unknown", []string{"mistral"})
	reg.setFallbacks("claude", []string{"old-gpt", "mistral"})

	tests := []struct {
		name      string
		requested string
		exclude   map[string]struct{}
		want      []string
	}{
		{
			name:      "alias matches then fallbacks without duplicates",
			requested: "gpt-4",
			want:      []string{"gpt-4-east", "gpt-4-west", "claude"},
		},
		{
			name:      "excluded alias members are skipped",
			requested: "gpt-4",
			exclude:   set("gpt-4-east"),
			want:      []string{"gpt-4-west", "claude"},
		},
		{
			name:      "unmatched name is used literally",
			requested: "unknown",
			want:      []string{"unknown", "mistral"},
		},
		{
			name:      "excluded requested model still yields fallbacks",
			requested: "unknown",
			exclude:   set("unknown"),
			want:      []string{"mistral"},
		},
		{
			name:      "empty request uses every enabled deployment",
			requested: "",
			want:      []string{"gpt-4-east", "gpt-4-west", "claude", "mistral"},
		},
		{
			name:      "everything tried falls back to the remaining pool",
			requested: "gpt-4",
			exclude:   set("gpt-4-east", "gpt-4-west", "claude"),
			want:      []string{"mistral"},
		},
		{
			name:      "fallback chain matches the requested name in any case",
			requested: "GPT-4",
			exclude:   set("gpt-4-east", "gpt-4-west"),
			want:      []string{"claude"},
		},
		{
			name:      "disabled deployment requested by name is skipped",
			requested: "old-gpt",
			want:      []string{"gpt-4-east", "gpt-4-west", "claude", "mistral"},
		},
		{
			name:      "disabled fallback is skipped",
			requested: "claude",
			exclude:   set("claude"),
			want:      []string{"mistral"},
		},
		{
			name:      "nothing left",
			requested: "claude",
			exclude:   set("gpt-4-east", "gpt-4-west", "claude", "mistral"),
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exclude := tt.exclude
			if exclude == nil {
				exclude = set()
			}
			assert.Equal(t, tt.want, buildCandidates(reg, tt.requested, exclude))
		})
	}
}

func TestBuildCandidates_NeverReturnsExcluded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfNDistinct(rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f"}), 0, 6, rapid.ID[string]).Draw(t, "deployments")
		aliases := []string{"x", "y", "z"}

		reg := newRegistry(zap.NewNop())
		for _, n := range names {
			d := deployment(n, rapid.SampledFrom(aliases).Draw(t, "alias"))
			d.IsEnabled = rapid.Bool().Draw(t, "enabled")
			reg.register(d)
		}

		pool := append(slices.Clone(aliases), "a", "b", "c", "d", "e", "f", "literal")
		requested := rapid.SampledFrom(append(pool, "")).Draw(t, "requested")
		reg.setFallbacks(requested, rapid.SliceOf(rapid.SampledFrom(pool)).Draw(t, "fallbacks"))
		excluded := rapid.SliceOf(rapid.SampledFrom(pool)).Draw(t, "exclude")

		got := buildCandidates(reg, requested, set(excluded...))

		seen := make(map[string]bool)
		for _, c := range got {
			if slices.Contains(excluded, c) {
				t.Fatalf("excluded %q returned in %v", c, got)
			}
			if d, ok := reg.get(c); ok && !d.IsEnabled {
				t.Fatalf("disabled %q returned in %v", c, got)
			}
			if seen[c] {
				t.Fatalf("duplicate %q in %v", c, got)
			}
			seen[c] = true
		}
	})
}
