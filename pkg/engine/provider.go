package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Provider converges one resource type.
type Provider interface {
	// Type is the resource type this provider handles.
	Type() string

	// Actions lists the actions the provider supports.
	Actions() []string

	// DefaultAction is used when a declaration names no action.
	DefaultAction() string

	// LoadCurrentState reads the resource as it exists on the node.
	// A nil resource with a nil error means it does not exist.
	LoadCurrentState(ctx context.Context, desired *resources.Declared) (*resources.Declared, error)

	// Converge runs action and reports whether anything changed.
	Converge(ctx context.Context, desired, current *resources.Declared, action string) (bool, error)
}

// WhyRunSupporter is implemented by providers that can predict a change
// without making it.
type WhyRunSupporter interface {
	WouldConverge(ctx context.Context, desired, current *resources.Declared, action string) (bool, error)
}

// Registry maps resource types to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Register adds a provider. It fails if the type is already registered.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Type()]; exists {
		return NewConflictError(fmt.Sprintf("provider for %q already registered", p.Type()), nil)
	}
	r.providers[p.Type()] = p
	return nil
}

// Get returns the provider for a resource type.
func (r *Registry) Get(resourceType string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[resourceType]
	if !ok {
		return nil, NewPermanentError(fmt.Sprintf("no provider for resource type %q", resourceType), nil).
			WithCode(ErrCodeNoProvider)
	}
	return p, nil
}

// Types returns the registered resource types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ActionFor returns the action a declaration resolves to: its own action, or
// the provider default.
func (r *Registry) ActionFor(res *resources.Declared) string {
	if res.Action != "" {
		return res.Action
	}
	if p, err := r.Get(res.ResourceType); err == nil {
		return p.DefaultAction()
	}
	return ""
}

// Resolve returns the provider and action for a declaration, failing when
// the type is unknown or the action is unsupported.
func (r *Registry) Resolve(res *resources.Declared) (Provider, string, error) {
	action := r.ActionFor(res)
	p, err := r.Get(res.ResourceType)
	if err != nil {
		return nil, action, err
	}
	for _, a := range p.Actions() {
		if a == action {
			return p, action, nil
		}
	}
	return nil, action, NewPermanentError(fmt.Sprintf("action %q is not supported", action), nil).
		WithCode(ErrCodeUnsupportedAction).
		WithResource(res.Identity()).
		WithDetail("supported", p.Actions())
}

// Validate checks that every declaration and sub-declaration resolves.
func (r *Registry) Validate(declared []*resources.Declared) error {
	for _, top := range declared {
		var err error
		top.Walk(func(res *resources.Declared, _ int) {
			if err != nil {
				return
			}
			if _, _, rerr := r.Resolve(res); rerr != nil {
				err = fmt.Errorf("%s: %w", res.Identity(), rerr)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
