package vars

import "strings"

type Provider interface {
	Resolve(name string) (string, bool)
}

// Resolver looks names up across providers in order; the first provider that
// knows a name wins.
type Resolver struct {
	providers []Provider
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

func (r *Resolver) Resolve(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	for _, provider := range r.providers {
		if value, ok := provider.Resolve(trimmed); ok {
			return value, true
		}
	}
	return "", false
}

// MapProvider serves one variable scope.
type MapProvider struct {
	values map[string]string
	label  string
}

// NewMapProvider keeps keys as given; collection variables are case-sensitive.
func NewMapProvider(label string, values map[string]string) *MapProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapProvider{values: copied, label: label}
}

func (p *MapProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *MapProvider) Label() string {
	return p.label
}
