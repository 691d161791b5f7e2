// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry maps store names to running store handles so one
// process can host multiple independent, isolated stores.
//
// The registry is guarded separately from entity storage: registering or
// looking up a store never contends with writes inside a store.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadyRegistered is returned when a name is registered twice.
// Duplicate registration is rejected, never overwritten.
var ErrAlreadyRegistered = errors.New("store name already registered")

// Registry is a concurrent name → handle map.
//
// The handle type is generic so the registry carries no dependency on the
// store implementation and can be reused for any per-name singleton.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register binds name to handle.
//
// Outputs:
//
//	error - ErrAlreadyRegistered (wrapped with the name) if the name is
//	taken; nil otherwise.
func (r *Registry[T]) Register(name string, handle T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = handle
	return nil
}

// Lookup returns the handle bound to name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.entries[name]
	return handle, ok
}

// Unregister removes the binding for name. Removing an unknown name is a
// no-op.
func (r *Registry[T]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// GetOrCreate returns the handle bound to name, creating and registering
// one with create if the name is free. The create function runs under the
// registry lock so two concurrent callers cannot both create.
func (r *Registry[T]) GetOrCreate(name string, create func() T) T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle, ok := r.entries[name]; ok {
		return handle
	}
	handle := create()
	r.entries[name] = handle
	return handle
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered stores.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
