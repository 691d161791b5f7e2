// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/events"
)

// Op is one operation in a transaction batch.
type Op struct {
	// Action is the operation verb: insert, update or delete.
	Action Action

	// Kind is the entity category. Implied by Entity for inserts.
	Kind entity.Kind

	// Entity is the insert payload.
	Entity entity.Entity

	// ID is the update/delete target.
	ID string

	// Data is the update payload.
	Data map[string]any
}

// InsertOp builds an insert operation.
func InsertOp(ent entity.Entity) Op {
	return Op{Action: ActionInsert, Kind: ent.EntityKind(), Entity: ent}
}

// UpdateOp builds an update operation.
func UpdateOp(kind entity.Kind, id string, data map[string]any) Op {
	return Op{Action: ActionUpdate, Kind: kind, ID: id, Data: data}
}

// DeleteOp builds a delete operation.
func DeleteOp(kind entity.Kind, id string) Op {
	return Op{Action: ActionDelete, Kind: kind, ID: id}
}

// TxAbortedError reports a failed commit: the index and verb of the first
// failing operation and its error. Every operation applied before it has
// been compensated.
type TxAbortedError struct {
	// Index is the position of the failing operation in the batch.
	Index int

	// Action is the failing operation's verb.
	Action Action

	// Err is the first failure.
	Err error
}

// Error implements the error interface.
func (e *TxAbortedError) Error() string {
	return fmt.Sprintf("transaction aborted at op %d (%s): %v", e.Index, e.Action, e.Err)
}

// Unwrap exposes the first failure for errors.Is/As.
func (e *TxAbortedError) Unwrap() error { return e.Err }

type txState int

const (
	txPending txState = iota
	txCommitted
	txAborted
	txRolledBack
)

// Tx sequences an ordered operation batch against one store.
//
// Lifecycle: build with Add, Commit once. On partial failure the
// already-applied operations are compensated in reverse order and the
// transaction is discarded. A successfully committed transaction can be
// explicitly reversed once with Rollback (compensating actions spanning
// multiple transactions). Transactions are single-use: Commit or
// Rollback after either has run returns ErrTxFinished.
//
// Thread Safety: a Tx is safe for concurrent use, but the intended
// pattern is single-caller build-then-commit. Atomicity is with respect
// to the owning store's write serialization only (see package doc).
type Tx struct {
	store *Store

	mu      sync.Mutex
	ops     []Op
	results []entity.Entity
	undo    []func(ctx context.Context) error
	pending []pendingEvent
	state   txState
}

// pendingEvent is a change notification deferred until the whole batch
// has committed. The entity is a snapshot taken at apply time, so a
// later operation on the same id does not rewrite an earlier event's
// payload.
type pendingEvent struct {
	typ events.Type
	ent entity.Entity
}

// NewTx starts an empty transaction against the store.
func (s *Store) NewTx() *Tx {
	return &Tx{store: s}
}

// Add appends an operation to the batch. Pure builder step: nothing is
// applied until Commit. Returns the transaction for chaining.
func (t *Tx) Add(op Op) *Tx {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == txPending {
		t.ops = append(t.ops, op)
	}
	return t
}

// Results returns the per-operation results populated by a successful
// commit: the stored entity for inserts and updates, nil for deletes.
func (t *Tx) Results() []entity.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results
}

// Commit applies the batch strictly in order.
//
// Description:
//
//	The first operation to fail aborts the batch: every operation
//	already applied is compensated in reverse order (created entities
//	physically removed, updated entities restored to their prior
//	value and version, deleted entities un-tombstoned). Compensation is
//	local to this transaction, not a global log-based undo. Change
//	events are emitted only after the whole batch has applied, in batch
//	order; an aborted batch emits nothing, so subscribers never observe
//	rolled-back mutations.
//
// Outputs:
//
//	[]entity.Entity - Per-operation results, in batch order.
//	error - *TxAbortedError wrapping the first failure, or
//	ErrTxFinished for a reused transaction.
func (t *Tx) Commit(ctx context.Context) ([]entity.Entity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != txPending {
		return nil, ErrTxFinished
	}

	for i, op := range t.ops {
		if err := t.applyOne(ctx, op); err != nil {
			t.compensate(ctx)
			t.state = txAborted
			t.results = nil
			t.pending = nil
			recordTxOutcome(t.store.name, "aborted")
			return nil, &TxAbortedError{Index: i, Action: op.Action, Err: err}
		}
	}

	t.state = txCommitted
	recordTxOutcome(t.store.name, "committed")
	for _, p := range t.pending {
		t.store.emit(ctx, p.typ, p.ent)
	}
	t.pending = nil
	return t.results, nil
}

// applyOne applies a single operation and records its undo.
func (t *Tx) applyOne(ctx context.Context, op Op) error {
	s := t.store

	switch op.Action {
	case ActionInsert:
		if op.Entity == nil {
			return fmt.Errorf("%w: insert without entity", ErrUnsupportedOperation)
		}
		stored, err := s.insertEntity(ctx, op.Entity)
		if err != nil {
			return err
		}
		snap := cloneEntity(stored)
		kind, id := snap.EntityKind(), snap.EntityID()
		t.results = append(t.results, snap)
		t.pending = append(t.pending, pendingEvent{typ: events.TypeCreate, ent: snap})
		t.undo = append(t.undo, func(ctx context.Context) error {
			s.mu.Lock()
			s.removeHardLocked(kind, id)
			s.mu.Unlock()
			if s.persister != nil {
				return s.persister.Remove(ctx, s.name, kind.String(), id)
			}
			return nil
		})
		return nil

	case ActionUpdate:
		prior, err := s.GetAny(ctx, op.Kind, op.ID)
		if err != nil {
			return err
		}
		updated, err := s.updateEntity(ctx, op.Kind, op.ID, op.Data)
		if err != nil {
			return err
		}
		snap := cloneEntity(updated)
		t.results = append(t.results, snap)
		t.pending = append(t.pending, pendingEvent{typ: events.TypeUpdate, ent: snap})
		t.undo = append(t.undo, t.restoreUndo(prior))
		return nil

	case ActionDelete:
		prior, err := s.GetAny(ctx, op.Kind, op.ID)
		if err != nil {
			return err
		}
		deleted, err := s.deleteEntity(ctx, op.Kind, op.ID)
		if err != nil {
			return err
		}
		t.results = append(t.results, nil)
		t.pending = append(t.pending, pendingEvent{typ: events.TypeDelete, ent: cloneEntity(deleted)})
		t.undo = append(t.undo, t.restoreUndo(prior))
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOperation, op.Action)
	}
}

// restoreUndo builds the compensation for updates and deletes: reinstate
// the prior snapshot (value, version, tombstone state) and write it
// through.
func (t *Tx) restoreUndo(prior entity.Entity) func(ctx context.Context) error {
	s := t.store
	return func(ctx context.Context) error {
		s.mu.Lock()
		s.restoreLocked(prior)
		err := s.persistLocked(ctx, prior)
		s.mu.Unlock()
		return err
	}
}

// compensate runs recorded undos in reverse order. Undo failures are
// collected, logged, and do not stop the remaining compensation.
func (t *Tx) compensate(ctx context.Context) {
	var errs []error
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.undo = nil
	if len(errs) > 0 {
		t.store.logger.Error("transaction compensation incomplete",
			slog.String("store", t.store.name),
			slog.String("error", errors.Join(errs...).Error()),
		)
	}
}

// Rollback explicitly reverses a successfully committed transaction
// using the same reverse-order compensation as an aborted commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != txCommitted {
		return ErrTxFinished
	}
	t.compensate(ctx)
	t.state = txRolledBack
	recordTxOutcome(t.store.name, "rolled_back")
	return nil
}
