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
	"sort"
	"time"

	"github.com/plexusdb/plexus/entity"
)

// Filter selects entities in All by matching against their data maps.
//
// Values are compared by equality; a nested map[string]any recurses into
// the corresponding nested data map; a Predicate runs against the field
// value. A key absent from the entity's data never matches.
type Filter map[string]any

// Predicate is a per-field match function usable as a Filter value.
type Predicate func(value any) bool

// matches reports whether data satisfies the filter.
func (f Filter) matches(data map[string]any) bool {
	for key, want := range f {
		got, ok := data[key]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case Predicate:
			if !w(got) {
				return false
			}
		case func(any) bool:
			if !w(got) {
				return false
			}
		case map[string]any:
			nested, isMap := got.(map[string]any)
			if !isMap || !Filter(w).matches(nested) {
				return false
			}
		case Filter:
			nested, isMap := got.(map[string]any)
			if !isMap || !w.matches(nested) {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

// SortOrder orders All results by entity id.
type SortOrder int

const (
	// SortNone keeps insertion-scan order stabilized by id.
	SortNone SortOrder = iota

	// SortAscending orders by id ascending.
	SortAscending

	// SortDescending orders by id descending.
	SortDescending
)

// ListOptions bounds and orders All results.
type ListOptions struct {
	// Limit caps the number of results. Zero means no explicit cap
	// (the configured maximum still applies).
	Limit int

	// Offset skips that many matching entities after sorting.
	Offset int

	// Sort orders results by id. Results are sorted by id even for
	// SortNone so pagination is stable.
	Sort SortOrder
}

// All returns live entities of a kind matching the filter.
//
// Description:
//
//	Deleted entities are always excluded. Edge listings filtered by
//	logical type answer from the by-type index rather than scanning the
//	table. Results sort by id (descending for SortDescending) before
//	offset/limit apply, so pages are stable under concurrent inserts of
//	unrelated ids.
//
// Inputs:
//
//	ctx - Caller deadline.
//	kind - Entity category to list.
//	filter - Per-field equality/predicate map. Nil matches everything.
//	opts - Limit, offset and sort order.
func (s *Store) All(ctx context.Context, kind entity.Kind, filter Filter, opts ListOptions) ([]entity.Entity, error) {
	start := time.Now()
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.authorize(ctx, Operation{Action: ActionList, Kind: kind}); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched, err := s.collectLocked(kind, filter)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if opts.Sort == SortDescending {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].EntityID() > matched[j].EntityID()
		})
	} else {
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].EntityID() < matched[j].EntityID()
		})
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.Query.MaxLimit {
		limit = s.cfg.Query.MaxLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	recordQuery(s.name, "all", time.Since(start))
	return s.filterResults(ctx, matched), nil
}

// collectLocked gathers matching live entities under the read lock.
func (s *Store) collectLocked(kind entity.Kind, filter Filter) ([]entity.Entity, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	// Edge listings with a type equality answer from the smallest
	// matching index set instead of a table scan.
	if kind == entity.KindEdge && filter != nil {
		if want, ok := filter[entity.EdgeTypeKey].(string); ok {
			rest := make(Filter, len(filter)-1)
			for k, v := range filter {
				if k != entity.EdgeTypeKey {
					rest[k] = v
				}
			}
			var matched []entity.Entity
			for _, edge := range s.edgesFromSet(s.indices.byType[want]) {
				if len(rest) == 0 || rest.matches(edge.Data) {
					matched = append(matched, edge)
				}
			}
			return matched, nil
		}
	}

	var matched []entity.Entity
	for _, ent := range s.tables[kind] {
		if ent.Meta().Deleted {
			continue
		}
		if filter != nil && !filter.matches(entityData(ent)) {
			continue
		}
		matched = append(matched, cloneEntity(ent))
	}
	return matched, nil
}
