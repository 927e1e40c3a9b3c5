package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no implementation is registered under the
// requested alias. Callers decide their own fallback policy; most fall back
// to a default implementation and log a warning.
var ErrNotFound = errors.New("capability not registered")

// errDuplicateAlias is returned when an alias is registered twice.
var errDuplicateAlias = errors.New("alias already registered")

// Factory constructs a fresh instance of a capability implementation.
type Factory[T any] func() (T, error)

// Registration binds an alias to an implementation factory with optional
// human-readable metadata.
type Registration[T any] struct {
	// Alias is the configuration-facing name of the implementation.
	Alias string
	// Description explains what the implementation does. Informational only.
	Description string
	// New creates an instance. Called once per process for singleton-scoped
	// registries, once per Resolve call otherwise.
	New Factory[T]
}

// Registry is a catalog of implementations for one capability interface.
// Registration happens at startup from an explicit wiring list; resolution
// happens at runtime by alias.
type Registry[T any] struct {
	// capability names the interface for error messages and logs.
	capability string
	// singleton caches instances so repeated resolutions of the same alias
	// return the same value.
	singleton bool

	mu            sync.Mutex
	registrations map[string]Registration[T]
	order         []string
	instances     map[string]T
}

// Option configures registry behaviour.
type Option[T any] func(*Registry[T])

// WithSingletons makes the registry cache the first resolved instance per
// alias. Use it for long-lived internal services; leave it off for
// capabilities created per request.
func WithSingletons[T any]() Option[T] {
	return func(r *Registry[T]) {
		r.singleton = true
	}
}

// New creates an empty registry for the named capability.
func New[T any](capability string, opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{
		capability:    capability,
		registrations: make(map[string]Registration[T]),
		instances:     make(map[string]T),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds an implementation under its alias.
// Registering the same alias twice is a wiring bug and fails loudly.
func (r *Registry[T]) Register(reg Registration[T]) error {
	if reg.Alias == "" {
		return fmt.Errorf("%s: alias must not be empty", r.capability)
	}

	if reg.New == nil {
		return fmt.Errorf("%s: factory for %q must not be nil", r.capability, reg.Alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.registrations[reg.Alias]; ok {
		return fmt.Errorf("%s: %q: %w", r.capability, reg.Alias, errDuplicateAlias)
	}

	r.registrations[reg.Alias] = reg
	r.order = append(r.order, reg.Alias)

	return nil
}

// Resolve returns an instance registered under the alias.
// Unknown aliases yield ErrNotFound, never a silent zero value.
func (r *Registry[T]) Resolve(alias string) (T, error) {
	var zero T

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.singleton {
		if instance, ok := r.instances[alias]; ok {
			return instance, nil
		}
	}

	reg, ok := r.registrations[alias]
	if !ok {
		return zero, fmt.Errorf("%s: %q: %w", r.capability, alias, ErrNotFound)
	}

	instance, err := reg.New()
	if err != nil {
		return zero, fmt.Errorf("%s: instantiate %q: %w", r.capability, alias, err)
	}

	if r.singleton {
		r.instances[alias] = instance
	}

	return instance, nil
}

// ResolveAll returns all registrations in registration order.
// It does not instantiate anything; callers impose their own order and
// instantiation policy.
func (r *Registry[T]) ResolveAll() []Registration[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Registration[T], 0, len(r.order))
	for _, alias := range r.order {
		all = append(all, r.registrations[alias])
	}

	return all
}

// Aliases returns all registered aliases in registration order.
func (r *Registry[T]) Aliases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.order...)
}
