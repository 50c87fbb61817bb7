package gateway

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// StrategyKind names a model selection strategy.
type StrategyKind int

const (
	StrategySimple StrategyKind = iota
	// StrategyRoundRobin picks the least-used candidate; it does not rotate a pointer.
	StrategyRoundRobin
	StrategyRandom
	StrategyLeastUsed
	StrategyLeastCost
	StrategyLeastLatency
	StrategyHighestPriority
	StrategyPassthrough
)

var strategyNames = map[StrategyKind]string{
	StrategySimple:          "simple",
	StrategyRoundRobin:      "round-robin",
	StrategyRandom:          "random",
	StrategyLeastUsed:       "least-used",
	StrategyLeastCost:       "least-cost",
	StrategyLeastLatency:    "least-latency",
	StrategyHighestPriority: "highest-priority",
	StrategyPassthrough:     "passthrough",
}

func (k StrategyKind) String() string {
	if name, ok := strategyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(k))
}

// ParseStrategy accepts names case-insensitively, ignoring '-', '_' and spaces,
// so "LeastCost", "least-cost" and "least_cost" are equivalent.
func ParseStrategy(name string) (StrategyKind, error) {
	norm := normalizeStrategyName(name)
	for kind, n := range strategyNames {
		if normalizeStrategyName(n) == norm {
			return kind, nil
		}
	}
	return StrategySimple, fmt.Errorf("unknown routing strategy %q", name)
}

func normalizeStrategyName(s string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// selector picks one candidate. It must not mutate its inputs.
type selector func(candidates []string, deployments map[string]Deployment, usage map[string]int64) (string, bool)

var selectors = map[StrategyKind]selector{
	StrategySimple:          selectFirst,
	StrategyRoundRobin:      selectLeastUsed,
	StrategyRandom:          selectRandom,
	StrategyLeastUsed:       selectLeastUsed,
	StrategyLeastCost:       selectLeastCost,
	StrategyLeastLatency:    selectLeastLatency,
	StrategyHighestPriority: selectHighestPriority,
	// passthrough never selects; the requested model is dispatched as is
	StrategyPassthrough: selectFirst,
}

// Select applies the strategy to the candidates.
func (k StrategyKind) Select(candidates []string, deployments map[string]Deployment, usage map[string]int64) (string, bool) {
	sel, ok := selectors[k]
	if !ok {
		sel = selectFirst
	}
	return sel(candidates, deployments, usage)
}

func selectFirst(candidates []string, _ map[string]Deployment, _ map[string]int64) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

func selectRandom(candidates []string, _ map[string]Deployment, _ map[string]int64) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.IntN(len(candidates))], true
}

// minBy returns the first candidate with the strictly smallest key.
func minBy(candidates []string, less func(a, b string) bool) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best, true
}

func selectLeastUsed(candidates []string, _ map[string]Deployment, usage map[string]int64) (string, bool) {
	return minBy(candidates, func(a, b string) bool {
		return usage[a] < usage[b]
	})
}

func costOrInf(c *float64) float64 {
	if c == nil {
		return math.Inf(1)
	}
	return *c
}

func selectLeastCost(candidates []string, deployments map[string]Deployment, _ map[string]int64) (string, bool) {
	cost := func(name string) (float64, float64) {
		d, ok := deployments[name]
		if !ok {
			return math.Inf(1), math.Inf(1)
		}
		return costOrInf(d.InputCostPer1K), costOrInf(d.OutputCostPer1K)
	}
	return minBy(candidates, func(a, b string) bool {
		ai, ao := cost(a)
		bi, bo := cost(b)
		if ai != bi {
			return ai < bi
		}
		return ao < bo
	})
}

func selectLeastLatency(candidates []string, deployments map[string]Deployment, _ map[string]int64) (string, bool) {
	latency := func(name string) float64 {
		if d, ok := deployments[name]; ok {
			return d.AverageLatencyMs
		}
		return math.Inf(1)
	}
	return minBy(candidates, func(a, b string) bool {
		return latency(a) < latency(b)
	})
}

func selectHighestPriority(candidates []string, deployments map[string]Deployment, _ map[string]int64) (string, bool) {
	priority := func(name string) int {
		if d, ok := deployments[name]; ok {
			return d.Priority
		}
		return math.MaxInt
	}
	return minBy(candidates, func(a, b string) bool {
		return priority(a) < priority(b)
	})
}
