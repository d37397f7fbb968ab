package oauth

import (
	"errors"
	"sort"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds the providers that were configured with credentials.
type Registry struct {
	providers map[string]*Provider
}

func NewRegistry(providers ...*Provider) *Registry {
	byName := make(map[string]*Provider, len(providers))
	for _, provider := range providers {
		if provider == nil || provider.Config.ClientID == "" {
			continue
		}
		byName[provider.Name] = provider
	}
	return &Registry{providers: byName}
}

func (r *Registry) Get(name string) (*Provider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return provider, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
