// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persist defines the pluggable persistence extension point for
// plexus stores.
//
// The reference store is process-memory only; a store opened with a
// Persister writes every applied mutation through to it and can replay
// the persisted records on open. Implementations live in subpackages
// (badgerstore is the embedded local one).
package persist

import "context"

// Record is one persisted entity snapshot.
//
// Payload is the JSON encoding of the full entity including metadata, so
// tombstones persist as records whose metadata carries Deleted=true.
type Record struct {
	// Store is the owning store name.
	Store string

	// Kind is the entity category name ("node", "edge", "graph").
	Kind string

	// ID is the entity id.
	ID string

	// Payload is the JSON-encoded entity.
	Payload []byte
}

// Persister is a write-through sink for store mutations.
//
// Implementations must be safe for concurrent use; the store calls Put
// under its write lock but Load may run concurrently with reads.
type Persister interface {
	// Put writes or overwrites the record for (Store, Kind, ID).
	Put(ctx context.Context, rec Record) error

	// Remove physically deletes the record. Used only for transaction
	// compensation of created entities; soft deletes persist via Put.
	Remove(ctx context.Context, storeName, kind, id string) error

	// Load streams every record of the named store to fn. A non-nil
	// error from fn stops the scan and is returned.
	Load(ctx context.Context, storeName string, fn func(Record) error) error

	// Close releases underlying resources.
	Close() error
}
