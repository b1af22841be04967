package filter

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrDuplicateFilter = errors.New("duplicate filter")
	ErrUnknownFilter   = errors.New("unknown filter")
	ErrInvalidFilter   = errors.New("invalid filter")
)

// Source resolves filters by hash name.
type Source interface {
	Lookup(hash string) (*Filter, bool)
}

// Registry stores filters with deterministic ordering.
type Registry struct {
	ordered []*Filter
	index   map[string]*Filter
	names   map[string]*Filter
}

// NewRegistry creates a registry from filters.
func NewRegistry(filters ...*Filter) (*Registry, error) {
	r := &Registry{
		index: make(map[string]*Filter, len(filters)),
		names: make(map[string]*Filter, len(filters)),
	}

	for _, f := range filters {
		err := r.Register(f)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds f to the registry.
func (r *Registry) Register(f *Filter) error {
	if f == nil || f.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidFilter)
	}

	hash := f.Hash()
	if _, exists := r.index[hash]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFilter, f.Name)
	}

	r.index[hash] = f
	r.ordered = append(r.ordered, f)

	if _, exists := r.names[f.Name]; !exists {
		r.names[f.Name] = f
	}

	return nil
}

// Lookup returns the filter with the given hash name.
func (r *Registry) Lookup(hash string) (*Filter, bool) {
	f, ok := r.index[hash]

	return f, ok
}

// ByName returns the first registered filter with the given display name.
func (r *Registry) ByName(name string) (*Filter, error) {
	f, ok := r.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}

	return f, nil
}

// All returns all filters in registration order.
func (r *Registry) All() []*Filter {
	filters := make([]*Filter, len(r.ordered))
	copy(filters, r.ordered)

	return filters
}

// Len returns the number of registered filters.
func (r *Registry) Len() int { return len(r.ordered) }
