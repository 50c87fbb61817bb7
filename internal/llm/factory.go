package llm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nulzo/prism-router/internal/config"
)

// Constructor builds a provider from its configuration.
type Constructor func(cfg config.ProviderConfig) (Provider, error)

var (
	mu           sync.RWMutex
	constructors = make(map[string]Constructor)
)

func Register(providerType string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := constructors[providerType]; exists {
		panic(fmt.Sprintf("provider constructor %s already registered", providerType))
	}
	constructors[providerType] = c
}

func Get(providerType string) (Constructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := constructors[providerType]
	if !ok {
		return nil, fmt.Errorf("provider constructor not found for type: %s", providerType)
	}
	return c, nil
}

type binding struct {
	provider Provider
	upstream string
}

// Factory maps model aliases to provider instances. It implements ClientFactory.
type Factory struct {
	mu        sync.RWMutex
	providers map[string]Provider
	bindings  map[string]binding
}

func NewFactory() *Factory {
	return &Factory{
		providers: make(map[string]Provider),
		bindings:  make(map[string]binding),
	}
}

func (f *Factory) AddProvider(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[p.Name()] = p
}

func (f *Factory) Provider(id string) (Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[id]
	return p, ok
}

func (f *Factory) Providers() []Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Provider, 0, len(f.providers))
	for _, p := range f.providers {
		out = append(out, p)
	}
	return out
}

// Bind routes requests for alias to providerID. When upstreamModel is set it
// replaces the model name sent upstream. The first binding of an alias wins
// and later ones report false.
func (f *Factory) Bind(alias, providerID, upstreamModel string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.providers[providerID]
	if !ok {
		return false, fmt.Errorf("provider %q is not registered", providerID)
	}

	key := strings.ToLower(alias)
	if _, exists := f.bindings[key]; exists {
		return false, nil
	}
	f.bindings[key] = binding{provider: p, upstream: upstreamModel}
	return true, nil
}

func (f *Factory) Client(modelAlias string) (Client, error) {
	f.mu.RLock()
	b, ok := f.bindings[strings.ToLower(modelAlias)]
	f.mu.RUnlock()
	if !ok {
		return nil, ConfigurationError(fmt.Sprintf("no client registered for model %q", modelAlias))
	}
	return &boundClient{provider: b.provider, upstream: b.upstream}, nil
}
