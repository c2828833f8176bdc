package provider

import (
	"github.com/cockroachdb/errors"

	"github.com/tripovia/travel-payments/internal/domain"
)

// Registry maps provider names to adapters. Built once at startup and
// read-only afterward.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnknownProvider, "provider %q", name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
