package gateway

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Deployment is a concrete, routable backend instance of a model alias.
// The statistics fields are populated from the tracker when a snapshot is taken.
type Deployment struct {
	Name               string
	ModelAlias         string
	ProviderName       string
	UpstreamModel      string
	InputCostPer1K     *float64
	OutputCostPer1K    *float64
	Priority           int
	IsEnabled          bool
	SupportsEmbeddings bool
	SupportsVision     bool

	UsageCount       int64
	RequestCount     int64
	AverageLatencyMs float64
	LastUsed         time.Time
}

type registryEntry struct {
	deployment Deployment
	seq        uint64
}

// registry holds deployments and fallback chains. Reads are lock-free; the
// mutexes only serialize writers.
type registry struct {
	logger      *zap.Logger
	deployments sync.Map // name -> registryEntry
	fallbacks   sync.Map // lowercased model -> []string, replaced wholesale on update
	registerMu  sync.Mutex
	fallbackMu  sync.Mutex
	seq         atomic.Uint64
}

func newRegistry(logger *zap.Logger) *registry {
	return &registry{logger: logger}
}

// register stores d, replacing an existing deployment of the same name while
// keeping its original registration order.
func (r *registry) register(d Deployment) bool {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.ModelAlias) == "" {
		r.logger.Warn("Skipping deployment with empty name or alias",
			zap.String("name", d.Name),
			zap.String("alias", d.ModelAlias),
		)
		return false
	}

	r.registerMu.Lock()
	defer r.registerMu.Unlock()

	entry := registryEntry{deployment: d}
	if prev, loaded := r.deployments.Load(d.Name); loaded {
		entry.seq = prev.(registryEntry).seq
	} else {
		entry.seq = r.seq.Add(1)
	}
	r.deployments.Store(d.Name, entry)
	return true
}

func (r *registry) get(name string) (Deployment, bool) {
	v, ok := r.deployments.Load(name)
	if !ok {
		return Deployment{}, false
	}
	return v.(registryEntry).deployment, true
}

func (r *registry) entries() []registryEntry {
	var out []registryEntry
	r.deployments.Range(func(_, v any) bool {
		out = append(out, v.(registryEntry))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// all returns every deployment in registration order.
func (r *registry) all() []Deployment {
	entries := r.entries()
	out := make([]Deployment, len(entries))
	for i, e := range entries {
		out[i] = e.deployment
	}
	return out
}

// allNames returns every registered deployment name in registration order.
func (r *registry) allNames() []string {
	entries := r.entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.deployment.Name
	}
	return out
}

// resolve maps a dispatch target to the deployment that owns it: the
// deployment of that name, else the first enabled deployment with that alias.
func (r *registry) resolve(target string) string {
	if _, ok := r.get(target); ok {
		return target
	}
	for _, d := range r.all() {
		if d.IsEnabled && strings.EqualFold(d.ModelAlias, target) {
			return d.Name
		}
	}
	return target
}

// fallbackKey folds model names so chains match aliases case-insensitively.
func fallbackKey(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

func (r *registry) fallbacksFor(model string) []string {
	v, ok := r.fallbacks.Load(fallbackKey(model))
	if !ok {
		return nil
	}
	return slices.Clone(v.([]string))
}

func (r *registry) setFallbacks(model string, chain []string) {
	r.fallbackMu.Lock()
	defer r.fallbackMu.Unlock()
	r.fallbacks.Store(fallbackKey(model), r.cleanChain(model, nil, chain))
}

// addFallbacks appends to the chain for primary and returns the resulting chain.
func (r *registry) addFallbacks(primary string, models []string) []string {
	r.fallbackMu.Lock()
	defer r.fallbackMu.Unlock()

	key := fallbackKey(primary)
	var existing []string
	if v, ok := r.fallbacks.Load(key); ok {
		existing = v.([]string)
	}

	chain := r.cleanChain(primary, existing, models)
	r.fallbacks.Store(key, chain)
	return slices.Clone(chain)
}

// cleanChain drops self references, blanks and duplicates from additions.
func (r *registry) cleanChain(primary string, existing, additions []string) []string {
	chain := slices.Clone(existing)
	seen := make(map[string]struct{}, len(chain)+len(additions))
	for _, m := range chain {
		seen[m] = struct{}{}
	}

	for _, m := range additions {
		m = strings.TrimSpace(m)
		switch {
		case m == "":
			continue
		case strings.EqualFold(m, primary):
			r.logger.Warn("Ignoring self-referencing fallback", zap.String("model", primary))
			continue
		}
		if _, dup := seen[m]; dup {
			r.logger.Warn("Ignoring duplicate fallback", zap.String("model", primary), zap.String("fallback", m))
			continue
		}
		seen[m] = struct{}{}
		chain = append(chain, m)
	}
	return chain
}

// fallbackChains returns a copy of every configured chain.
func (r *registry) fallbackChains() map[string][]string {
	out := make(map[string][]string)
	r.fallbacks.Range(func(k, v any) bool {
		out[k.(string)] = slices.Clone(v.([]string))
		return true
	})
	return out
}
