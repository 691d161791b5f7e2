// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store implements the storage adapter for one named graph store:
// concurrent tables for nodes, edges and graph containers, secondary edge
// indices, CRUD with soft delete and versioning, atomic operation batches
// with rollback, and change-event emission.
//
// # Concurrency Model
//
// Each Store is a single-writer owner: all mutations serialize through
// one write lock in submission order, which is what keeps version
// increments and tombstone transitions race-free. Reads (Get, All,
// index lookups, algorithm execution) proceed concurrently under a read
// lock and never block each other. Subscriptions live in an events.Broker
// guarded independently, so subscribing never blocks entity writes.
//
// # Failure Semantics
//
// Every operation returns errors as values; the store never panics on
// caller input. "Never existed" (ErrNotFound) and "tombstoned"
// (ErrDeleted) are distinct failure kinds wherever both are reachable.
// Context expiry surfaces as ErrTimeout, after which the operation's
// completion status on the store side is indeterminate and must be
// re-queried.
package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when an id was never inserted.
	ErrNotFound = errors.New("entity not found")

	// ErrDeleted is returned when an id exists only as a tombstone.
	// Distinct from ErrNotFound: callers must be able to tell a
	// soft-deleted entity from one that never existed.
	ErrDeleted = errors.New("entity deleted")

	// ErrDuplicateID is returned when inserting an id that already
	// exists (live or tombstoned).
	ErrDuplicateID = errors.New("duplicate entity id")

	// ErrMissingAssociation is returned when an edge is created without
	// a source or target node id. A creation-time failure, distinct
	// from ErrNotFound.
	ErrMissingAssociation = errors.New("edge missing source or target")

	// ErrReference is returned when reference checking is enabled and an
	// edge names a node id that does not exist in the store.
	ErrReference = errors.New("edge references unknown node")

	// ErrInvalidKind is returned for operations on an unknown entity
	// kind. Unsupported categories are rejected explicitly, never
	// silently ignored.
	ErrInvalidKind = errors.New("invalid entity kind")

	// ErrUnsupportedOperation is returned for unknown operation tags in
	// a transaction batch.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrMaxNodesExceeded is returned when the store is at node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the store is at edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrTimeout is returned when the caller's context expires before
	// the operation is applied. The operation's actual outcome is
	// indeterminate; re-query rather than assume.
	ErrTimeout = errors.New("operation timed out")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store closed")

	// ErrUnauthorized is returned when the configured authorization hook
	// denies an operation.
	ErrUnauthorized = errors.New("operation not authorized")

	// ErrTxFinished is returned when a transaction is committed or
	// rolled back twice. Transactions are single-use.
	ErrTxFinished = errors.New("transaction already finished")
)
