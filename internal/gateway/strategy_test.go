package gateway

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func viewOf(ds ...Deployment) ([]string, map[string]Deployment) {
	names := make([]string, len(ds))
	view := make(map[string]Deployment, len(ds))
	for i, d := range ds {
		names[i] = d.Name
		view[d.Name] = d
	}
	return names, view
}

func TestSelect_LeastCostPicksCheapestInput(t *testing.T) {
	a, b, c := deployment("a", "m"), deployment("b", "m"), deployment("c", "m")
	a.InputCostPer1K = cost(0.002)
	b.InputCostPer1K = cost(0.001)
	c.InputCostPer1K = cost(0.003)

	names, view := viewOf(a, b, c)
	got, ok := StrategyLeastCost.Select(names, view, nil)
	require.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestSelect_LeastCostTieBreaks(t *testing.T) {
	a, b, c := deployment("a", "m"), deployment("b", "m"), deployment("c", "m")
	a.InputCostPer1K, a.OutputCostPer1K = cost(0.001), cost(0.004)
	b.InputCostPer1K, b.OutputCostPer1K = cost(0.001), cost(0.002)
	// no pricing sorts last
	names, view := viewOf(c, a, b)

	got, _ := StrategyLeastCost.Select(names, view, nil)
	assert.Equal(t, "b", got)
}

func TestSelect(t *testing.T) {
	fast, slow, fresh := deployment("fast", "m"), deployment("slow", "m"), deployment("fresh", "m")
	fast.AverageLatencyMs = 120
	slow.AverageLatencyMs = 900
	fast.Priority = 5
	slow.Priority = 1
	fresh.Priority = 1

	tests := []struct {
		name       string
		strategy   StrategyKind
		candidates []Deployment
		usage      map[string]int64
		want       string
	}{
		{name: "simple takes the first", strategy: StrategySimple, candidates: []Deployment{slow, fast}, want: "slow"},
		{name: "least used", strategy: StrategyLeastUsed, candidates: []Deployment{fast, slow}, usage: map[string]int64{"fast": 4, "slow": 2}, want: "slow"},
		{name: "least used tie keeps list order", strategy: StrategyLeastUsed, candidates: []Deployment{slow, fast}, usage: map[string]int64{"fast": 1, "slow": 1}, want: "slow"},
		{name: "round robin is least used", strategy: StrategyRoundRobin, candidates: []Deployment{fast, slow}, usage: map[string]int64{"fast": 3}, want: "slow"},
		{name: "least latency", strategy: StrategyLeastLatency, candidates: []Deployment{slow, fast}, want: "fast"},
		{name: "unmeasured latency counts as zero", strategy: StrategyLeastLatency, candidates: []Deployment{fast, fresh}, want: "fresh"},
		{name: "highest priority is the lowest value", strategy: StrategyHighestPriority, candidates: []Deployment{fast, slow}, want: "slow"},
		{name: "priority tie keeps list order", strategy: StrategyHighestPriority, candidates: []Deployment{fresh, slow}, want: "fresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, view := viewOf(tt.candidates...)
			got, ok := tt.strategy.Select(names, view, tt.usage)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_EmptyCandidates(t *testing.T) {
	for kind := range strategyNames {
		_, ok := kind.Select(nil, nil, nil)
		assert.False(t, ok, kind.String())
	}
}

func TestSelect_RandomCoversAllCandidates(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	counts := make(map[string]int)

	const trials = 4000
	for range trials {
		got, ok := StrategyRandom.Select(names, nil, nil)
		require.True(t, ok)
		counts[got]++
	}

	for _, n := range names {
		// expected 1000 each; the bound is loose enough to never flake
		assert.InDelta(t, trials/len(names), counts[n], 250, n)
	}
}

func TestSelect_ReturnsMemberWithoutMutating(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]StrategyKind{
			StrategySimple, StrategyRoundRobin, StrategyRandom, StrategyLeastUsed,
			StrategyLeastCost, StrategyLeastLatency, StrategyHighestPriority,
		}).Draw(t, "strategy")
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 8, rapid.ID[string]).Draw(t, "names")

		view := make(map[string]Deployment, len(names))
		usage := make(map[string]int64, len(names))
		for _, n := range names {
			d := deployment(n, "m")
			d.Priority = rapid.IntRange(0, 5).Draw(t, "priority")
			d.AverageLatencyMs = rapid.Float64Range(0, 1000).Draw(t, "latency")
			if rapid.Bool().Draw(t, "priced") {
				d.InputCostPer1K = cost(rapid.Float64Range(0, 1).Draw(t, "cost"))
			}
			view[n] = d
			usage[n] = rapid.Int64Range(0, 100).Draw(t, "usage")
		}

		before := slices.Clone(names)
		got, ok := kind.Select(names, view, usage)
		if !ok {
			t.Fatalf("%s returned nothing for %v", kind, names)
		}
		if !slices.Contains(names, got) {
			t.Fatalf("%s picked %q outside %v", kind, got, names)
		}
		if !slices.Equal(before, names) {
			t.Fatalf("%s reordered candidates", kind)
		}

		if kind != StrategyRandom {
			again, _ := kind.Select(names, view, usage)
			if again != got {
				t.Fatalf("%s is not deterministic: %q then %q", kind, got, again)
			}
		}
	})
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want StrategyKind
	}{
		{"simple", StrategySimple},
		{"LeastCost", StrategyLeastCost},
		{"least_cost", StrategyLeastCost},
		{" least-latency ", StrategyLeastLatency},
		{"RoundRobin", StrategyRoundRobin},
		{"HIGHEST-PRIORITY", StrategyHighestPriority},
		{"passthrough", StrategyPassthrough},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStrategy("fastest")
	assert.Error(t, err)
}

func TestStrategyKind_StringRoundTrips(t *testing.T) {
	for kind, name := range strategyNames {
		assert.Equal(t, name, kind.String())
		parsed, err := ParseStrategy(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
	assert.Equal(t, "strategy(99)", StrategyKind(99).String())
}
