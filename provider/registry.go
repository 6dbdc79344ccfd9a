package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry manages keyed provider factories and cached instances.
type Registry[K comparable, T Provider] struct {
	mu        sync.RWMutex
	order     []K
	factories map[K]Factory[T]
	instances map[K]T
}

// NewRegistry creates a new empty Registry.
func NewRegistry[K comparable, T Provider]() *Registry[K, T] {
	return &Registry[K, T]{
		factories: make(map[K]Factory[T]),
		instances: make(map[K]T),
	}
}

// RegisterFactory registers a factory for key. Re-registering a key replaces
// its factory, drops any cached instance, and keeps the original position.
func (r *Registry[K, T]) RegisterFactory(key K, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; !exists {
		r.order = append(r.order, key)
	}
	r.factories[key] = factory
	delete(r.instances, key)
}

// Has reports whether a factory is registered for key.
func (r *Registry[K, T]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[key]
	return ok
}

// Create instantiates a provider using the keyed factory and config.
// The result is not cached.
func (r *Registry[K, T]) Create(key K, cfg map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("provider factory %v not registered", key)
	}
	return factory(cfg)
}

// GetOrCreate returns the cached instance for key, creating and caching it
// on first use. Factory errors are not cached.
func (r *Registry[K, T]) GetOrCreate(key K, cfg map[string]any) (T, error) {
	if inst, ok := r.Get(key); ok {
		return inst, nil
	}
	inst, err := r.Create(key, cfg)
	if err != nil {
		return inst, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have won the race; keep the first instance.
	if existing, ok := r.instances[key]; ok {
		return existing, nil
	}
	r.instances[key] = inst
	return inst, nil
}

// Get returns a cached provider instance by key.
func (r *Registry[K, T]) Get(key K) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[key]
	return inst, ok
}

// Set caches a provider instance by key.
func (r *Registry[K, T]) Set(key K, instance T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[key] = instance
}

// Keys returns the registered keys in registration order.
func (r *Registry[K, T]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]K, len(r.order))
	copy(out, r.order)
	return out
}

// Drain removes and returns every cached instance in registration order.
func (r *Registry[K, T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.instances))
	for _, key := range r.order {
		if inst, ok := r.instances[key]; ok {
			out = append(out, inst)
		}
	}
	r.instances = make(map[K]T)
	return out
}

// Close drains the cache and calls Cleanup on every instance implementing
// Cleanable. All instances are visited; errors are joined.
func (r *Registry[K, T]) Close(ctx context.Context) error {
	var errs []error
	for _, inst := range r.Drain() {
		c, ok := any(inst).(Cleanable)
		if !ok {
			continue
		}
		if err := c.Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", inst.Name(), err))
		}
	}
	return errors.Join(errs...)
}
