// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"github.com/plexusdb/plexus/entity"
)

// cloneEntity deep-copies a stored value so table state never aliases
// caller-held maps. The metadata block is a value and copies with the
// struct; data maps are cloned one level deep.
func cloneEntity(ent entity.Entity) entity.Entity {
	switch v := ent.(type) {
	case *entity.Node:
		out := *v
		out.Data = entity.CloneData(v.Data)
		return &out
	case *entity.Edge:
		out := *v
		out.Data = entity.CloneData(v.Data)
		return &out
	case *entity.Graph:
		out := *v
		return &out
	default:
		return ent
	}
}

// entityData returns the entity's open payload map, nil for kinds that
// carry none.
func entityData(ent entity.Entity) map[string]any {
	switch v := ent.(type) {
	case *entity.Node:
		return v.Data
	case *entity.Edge:
		return v.Data
	default:
		return nil
	}
}

// setEntityData replaces the entity's payload map in place.
func setEntityData(ent entity.Entity, data map[string]any) {
	switch v := ent.(type) {
	case *entity.Node:
		v.Data = data
	case *entity.Edge:
		v.Data = data
	}
}

// setEntityID assigns the id on both the entity and its metadata slot.
func setEntityID(ent entity.Entity, id string) {
	switch v := ent.(type) {
	case *entity.Node:
		v.ID = id
	case *entity.Edge:
		v.ID = id
	case *entity.Graph:
		v.ID = id
	}
}

// owningType derives the concrete entity variant recorded in metadata:
// the logical edge type for edges, the "type" data tag for nodes, the
// name for graph containers.
func owningType(ent entity.Entity) string {
	switch v := ent.(type) {
	case *entity.Edge:
		return v.Type()
	case *entity.Node:
		if v.Data != nil {
			if t, ok := v.Data[entity.EdgeTypeKey].(string); ok {
				return t
			}
		}
		return ""
	case *entity.Graph:
		return v.Name
	default:
		return ""
	}
}

// restoreLocked reinstates a prior entity snapshot: the table entry is
// replaced, edge index entries are rebuilt to match the snapshot, and
// the live counter follows any tombstone transition. Used by
// write-through revert and transaction compensation.
//
// Caller must hold the write lock.
func (s *Store) restoreLocked(snapshot entity.Entity) {
	kind := snapshot.EntityKind()
	id := snapshot.EntityID()

	if current, ok := s.tables[kind][id]; ok {
		if edge, isEdge := current.(*entity.Edge); isEdge && !current.Meta().Deleted {
			s.indices.remove(edge)
		}
		switch {
		case current.Meta().Deleted && !snapshot.Meta().Deleted:
			s.live[kind]++
		case !current.Meta().Deleted && snapshot.Meta().Deleted:
			s.live[kind]--
		}
	} else if !snapshot.Meta().Deleted {
		s.live[kind]++
	}

	s.tables[kind][id] = snapshot
	if edge, isEdge := snapshot.(*entity.Edge); isEdge && !snapshot.Meta().Deleted {
		s.indices.add(edge)
	}
}

// removeHardLocked physically removes an entity from the table, indices
// and persister. Only transaction compensation of freshly created
// entities uses this; the public Delete is always a soft delete.
//
// Caller must hold the write lock.
func (s *Store) removeHardLocked(kind entity.Kind, id string) {
	current, ok := s.tables[kind][id]
	if !ok {
		return
	}
	if edge, isEdge := current.(*entity.Edge); isEdge && !current.Meta().Deleted {
		s.indices.remove(edge)
	}
	if !current.Meta().Deleted {
		s.live[kind]--
	}
	delete(s.tables[kind], id)
}
