package prices

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Provider names accepted by the registry.
const (
	ProviderMock    = "mock"
	ProviderOpenSea = "opensea"
)

var (
	// ErrUnknownProvider is returned for names the service has never heard of.
	ErrUnknownProvider = errors.New("prices: unknown provider")
	// ErrProviderUnavailable is returned for known providers that are not
	// configured, e.g. OpenSea without an API key.
	ErrProviderUnavailable = errors.New("prices: provider unavailable")
)

var knownProviders = map[string]struct{}{
	ProviderMock:    {},
	ProviderOpenSea: {},
}

// Registry resolves provider names to configured providers.
type Registry struct {
	def       string
	providers map[string]Provider
}

// NewRegistry builds a registry whose empty-name lookups resolve to def.
func NewRegistry(def string, providers ...Provider) *Registry {
	r := &Registry{def: strings.ToLower(strings.TrimSpace(def)), providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[strings.ToLower(p.Name())] = p
	}
	if r.def == "" {
		r.def = ProviderMock
	}
	return r
}

// Default returns the name used when callers do not pick a provider.
func (r *Registry) Default() string { return r.def }

// Get returns the provider for name; an empty name selects the default.
func (r *Registry) Get(name string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = r.def
	}
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	if _, known := knownProviders[key]; known {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, key)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Available reports whether name is configured.
func (r *Registry) Available(name string) bool {
	_, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names lists the configured providers in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
