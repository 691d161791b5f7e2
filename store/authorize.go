// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"

	"github.com/plexusdb/plexus/entity"
)

// Action names a store operation for the authorization hook and for
// transaction batches.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionGet    Action = "get"
	ActionList   Action = "list"
)

// ParseAction maps an operation tag to its Action. Unknown tags are
// rejected explicitly with ErrUnsupportedOperation.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionInsert, ActionUpdate, ActionDelete, ActionGet, ActionList:
		return Action(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, s)
	}
}

// Operation describes one store call for authorization.
type Operation struct {
	// Action is the operation verb.
	Action Action

	// Kind is the entity category the operation targets.
	Kind entity.Kind

	// EntityID is the target id when the operation addresses a single
	// entity; empty for listings.
	EntityID string
}

// Authorizer is the injected access-control hook. The policy itself is
// an external collaborator's responsibility; the store only invokes it.
//
// A nil Authorizer on the store allows everything (fail-open at this
// layer, per the interface contract with the access-control service).
type Authorizer interface {
	// Authorize runs before a mutation or read is applied. A non-nil
	// error denies the operation.
	Authorize(ctx context.Context, op Operation) error

	// FilterResults trims query results the caller may not see.
	FilterResults(ctx context.Context, results []entity.Entity) []entity.Entity
}

// authorize consults the hook, mapping a denial onto ErrUnauthorized.
func (s *Store) authorize(ctx context.Context, op Operation) error {
	if s.authorizer == nil {
		return nil
	}
	if err := s.authorizer.Authorize(ctx, op); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnauthorized, op.Action, op.Kind, err)
	}
	return nil
}

// filterResults applies the hook's result filter, if any.
func (s *Store) filterResults(ctx context.Context, results []entity.Entity) []entity.Entity {
	if s.authorizer == nil {
		return results
	}
	return s.authorizer.FilterResults(ctx, results)
}

// filterOne applies the result filter to a single entity; filtering it
// out reads as not found to the caller.
func (s *Store) filterOne(ctx context.Context, ent entity.Entity) (entity.Entity, error) {
	if s.authorizer == nil {
		return ent, nil
	}
	kept := s.authorizer.FilterResults(ctx, []entity.Entity{ent})
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, ent.EntityKind(), ent.EntityID())
	}
	return kept[0], nil
}
