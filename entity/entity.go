// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import (
	"time"
)

// Kind identifies the category of a stored entity.
//
// Kind is a closed enum: the store dispatches on it and rejects anything
// outside the three known categories.
type Kind int

const (
	// KindUnknown indicates an unrecognized entity kind.
	KindUnknown Kind = iota

	// KindNode is a vertex in the graph.
	KindNode

	// KindEdge is a directed relationship between two nodes.
	KindEdge

	// KindGraph is a named grouping container.
	KindGraph

	// NumKinds is the total number of kinds (for table sizing).
	NumKinds
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindNode:    "node",
	KindEdge:    "edge",
	KindGraph:   "graph",
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a kind name back to its Kind value.
// Unrecognized names return KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case "node":
		return KindNode
	case "edge":
		return KindEdge
	case "graph":
		return KindGraph
	default:
		return KindUnknown
	}
}

// Valid reports whether k is one of the storable kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < NumKinds
}

// Metadata carries the bookkeeping attached to every stored entity.
//
// Invariants maintained by the store:
//
//   - Version starts at 1 on insert and increments by exactly 1 on every
//     successful update or delete.
//   - Deleted == true implies DeletedAt != nil.
//   - A deleted entity is excluded from Get/All; re-reading it yields a
//     "deleted" error distinct from "not found".
type Metadata struct {
	// ID is the entity identifier, unique within its store and kind.
	ID string `json:"id"`

	// Kind is the entity category (node, edge, graph).
	Kind Kind `json:"kind"`

	// OwningType is the concrete entity variant, e.g. the logical edge
	// type tag. Empty when the entity carries no type tag.
	OwningType string `json:"owning_type,omitempty"`

	// CreatedAt is when the entity was inserted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the entity was last mutated.
	UpdatedAt time.Time `json:"updated_at"`

	// Version counts successful mutations, starting at 1.
	Version int64 `json:"version"`

	// Deleted marks the entity as tombstoned.
	Deleted bool `json:"deleted"`

	// DeletedAt is when the tombstone was written. Nil unless Deleted.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Entity is implemented by every storable value.
type Entity interface {
	// EntityID returns the entity identifier.
	EntityID() string

	// EntityKind returns the entity category.
	EntityKind() Kind

	// Meta returns a pointer to the entity's metadata for the store to
	// maintain. Callers must treat the metadata as read-only.
	Meta() *Metadata
}

// Node is a vertex with an open key/value payload.
type Node struct {
	// ID is unique within the store. Empty on insert means the store
	// assigns one.
	ID string `json:"id"`

	// Data is the open, extensible payload.
	Data map[string]any `json:"data"`

	// Metadata is maintained by the store.
	Metadata Metadata `json:"metadata"`
}

// EntityID returns the node id.
func (n *Node) EntityID() string { return n.ID }

// EntityKind returns KindNode.
func (n *Node) EntityKind() Kind { return KindNode }

// Meta returns the node metadata.
func (n *Node) Meta() *Metadata { return &n.Metadata }

// Well-known edge data keys.
const (
	// EdgeTypeKey is the data key carrying the logical edge type tag
	// used for indexing and filtering.
	EdgeTypeKey = "type"

	// EdgeWeightKey is the data key carrying the numeric weight used by
	// weighted algorithms. Absent means weight 1.
	EdgeWeightKey = "weight"
)

// Edge is a directed relationship between two nodes.
type Edge struct {
	// ID is unique within the store. Empty on insert means the store
	// assigns one.
	ID string `json:"id"`

	// Source is the origin node id. Required.
	Source string `json:"source"`

	// Target is the destination node id. Required.
	Target string `json:"target"`

	// Data is the open payload. Data["type"] carries the logical edge
	// type, Data["weight"] an optional numeric weight.
	Data map[string]any `json:"data"`

	// Metadata is maintained by the store.
	Metadata Metadata `json:"metadata"`
}

// EntityID returns the edge id.
func (e *Edge) EntityID() string { return e.ID }

// EntityKind returns KindEdge.
func (e *Edge) EntityKind() Kind { return KindEdge }

// Meta returns the edge metadata.
func (e *Edge) Meta() *Metadata { return &e.Metadata }

// Type returns the logical edge type tag, or "" when untagged.
func (e *Edge) Type() string {
	if e.Data == nil {
		return ""
	}
	if t, ok := e.Data[EdgeTypeKey].(string); ok {
		return t
	}
	return ""
}

// Weight returns the edge weight, defaulting to 1 when absent or
// non-numeric.
func (e *Edge) Weight() float64 {
	if e.Data == nil {
		return 1
	}
	switch w := e.Data[EdgeWeightKey].(type) {
	case float64:
		return w
	case float32:
		return float64(w)
	case int:
		return float64(w)
	case int64:
		return float64(w)
	default:
		return 1
	}
}

// Graph is a named grouping container. It is optional: single-store use
// never needs one.
type Graph struct {
	// ID is unique within the store.
	ID string `json:"id"`

	// Name is the human-readable graph name.
	Name string `json:"name"`

	// Metadata is maintained by the store.
	Metadata Metadata `json:"metadata"`
}

// EntityID returns the graph id.
func (g *Graph) EntityID() string { return g.ID }

// EntityKind returns KindGraph.
func (g *Graph) EntityKind() Kind { return KindGraph }

// Meta returns the graph metadata.
func (g *Graph) Meta() *Metadata { return &g.Metadata }

// CloneData returns a shallow-copied map one level deep: nested maps are
// copied, other values are shared. Used by the store to keep callers from
// aliasing table-owned payloads.
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if nested, ok := v.(map[string]any); ok {
			out[k] = CloneData(nested)
			continue
		}
		out[k] = v
	}
	return out
}
