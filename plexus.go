// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plexus is an embedded, in-process typed graph database: named
// stores of nodes and edges with schemas, secondary indices, atomic
// transaction batches, declarative queries, graph algorithms, and
// in-process change notification.
//
// The root package is the entry point: it binds the generic registry to
// concrete stores so a process can host several independent, isolated
// stores addressed by name. Everything else lives in subpackages:
//
//	entity    node/edge/graph value types and schema validation
//	registry  generic name → handle map
//	store     the storage adapter (CRUD, indices, transactions)
//	query     declarative query construction and execution
//	graph     traversal, shortest path, components, MST, pagerank
//	events    pub/sub change notification
//	persist   pluggable write-through persistence (badgerstore)
//	config    YAML configuration
package plexus

import (
	"github.com/plexusdb/plexus/registry"
	"github.com/plexusdb/plexus/store"
)

// Stores is a registry of named stores. The zero value is not usable;
// construct with NewStores.
type Stores struct {
	reg *registry.Registry[*store.Store]
}

// NewStores creates an empty store registry.
func NewStores() *Stores {
	return &Stores{reg: registry.New[*store.Store]()}
}

// Open returns the store registered under name, creating and
// registering one with the given options if the name is free. Options
// apply only on creation; opening an existing name ignores them.
//
// Thread Safety: safe for concurrent use. Two concurrent Opens of the
// same name return the same store.
func (s *Stores) Open(name string, opts ...store.Option) *store.Store {
	return s.reg.GetOrCreate(name, func() *store.Store {
		return store.New(name, opts...)
	})
}

// Lookup returns the store registered under name without creating one.
func (s *Stores) Lookup(name string) (*store.Store, bool) {
	return s.reg.Lookup(name)
}

// CloseStore closes the named store and removes it from the registry.
// Closing an unknown name is a no-op.
func (s *Stores) CloseStore(name string) error {
	st, ok := s.reg.Lookup(name)
	if !ok {
		return nil
	}
	s.reg.Unregister(name)
	return st.Close()
}

// Names returns the registered store names in sorted order.
func (s *Stores) Names() []string { return s.reg.Names() }

// defaultStores serves the package-level convenience functions.
var defaultStores = NewStores()

// Open opens a store in the process-wide default registry.
func Open(name string, opts ...store.Option) *store.Store {
	return defaultStores.Open(name, opts...)
}

// Lookup looks up a store in the process-wide default registry.
func Lookup(name string) (*store.Store, bool) {
	return defaultStores.Lookup(name)
}
