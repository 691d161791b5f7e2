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

	"github.com/plexusdb/plexus/entity"
)

// edgeIndices holds the secondary indices over live (non-tombstoned)
// edges. The (source, type) composite exists because filtering edges by
// source and type is the dominant traversal hot path and must stay O(1)
// amortized instead of O(edges).
//
// All maps hold edge-id sets. Tombstoned edges are absent.
type edgeIndices struct {
	byType       map[string]map[string]struct{}
	bySource     map[string]map[string]struct{}
	byTarget     map[string]map[string]struct{}
	bySourceType map[string]map[string]struct{}
}

func newEdgeIndices() *edgeIndices {
	return &edgeIndices{
		byType:       make(map[string]map[string]struct{}),
		bySource:     make(map[string]map[string]struct{}),
		byTarget:     make(map[string]map[string]struct{}),
		bySourceType: make(map[string]map[string]struct{}),
	}
}

// compositeKey builds the (source, type) key. The NUL separator cannot
// appear in uuid-style ids.
func compositeKey(source, edgeType string) string {
	return source + "\x00" + edgeType
}

func addToSet(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromSet(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

// add indexes a live edge.
func (ix *edgeIndices) add(e *entity.Edge) {
	t := e.Type()
	if t != "" {
		addToSet(ix.byType, t, e.ID)
	}
	addToSet(ix.bySource, e.Source, e.ID)
	addToSet(ix.byTarget, e.Target, e.ID)
	addToSet(ix.bySourceType, compositeKey(e.Source, t), e.ID)
}

// remove drops all index entries for an edge. The edge must still carry
// the type it was indexed under.
func (ix *edgeIndices) remove(e *entity.Edge) {
	t := e.Type()
	if t != "" {
		removeFromSet(ix.byType, t, e.ID)
	}
	removeFromSet(ix.bySource, e.Source, e.ID)
	removeFromSet(ix.byTarget, e.Target, e.ID)
	removeFromSet(ix.bySourceType, compositeKey(e.Source, t), e.ID)
}

// retype moves an edge between type buckets after its logical type
// changed during an update.
func (ix *edgeIndices) retype(e *entity.Edge, priorType string) {
	if priorType != "" {
		removeFromSet(ix.byType, priorType, e.ID)
	}
	removeFromSet(ix.bySourceType, compositeKey(e.Source, priorType), e.ID)

	t := e.Type()
	if t != "" {
		addToSet(ix.byType, t, e.ID)
	}
	addToSet(ix.bySourceType, compositeKey(e.Source, t), e.ID)
}

// sortedIDs returns a set's members in sorted order for deterministic
// results.
func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// edgesFromSet materializes edges for an id set, sorted by id.
func (s *Store) edgesFromSet(set map[string]struct{}) []*entity.Edge {
	table := s.tables[entity.KindEdge]
	out := make([]*entity.Edge, 0, len(set))
	for _, id := range sortedIDs(set) {
		if ent, ok := table[id]; ok {
			out = append(out, cloneEntity(ent).(*entity.Edge))
		}
	}
	return out
}

// EdgesByType returns all live edges carrying the given logical type.
// Index-backed; never a full table scan.
func (s *Store) EdgesByType(ctx context.Context, edgeType string) ([]*entity.Edge, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.edgesFromSet(s.indices.byType[edgeType]), nil
}

// EdgesFrom returns live edges leaving source. With a non-empty edgeType
// the (source, type) composite index answers directly.
func (s *Store) EdgesFrom(ctx context.Context, source, edgeType string) ([]*entity.Edge, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if edgeType != "" {
		return s.edgesFromSet(s.indices.bySourceType[compositeKey(source, edgeType)]), nil
	}
	return s.edgesFromSet(s.indices.bySource[source]), nil
}

// EdgesTo returns live edges arriving at target, optionally restricted
// to one logical type.
func (s *Store) EdgesTo(ctx context.Context, target, edgeType string) ([]*entity.Edge, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	edges := s.edgesFromSet(s.indices.byTarget[target])
	if edgeType == "" {
		return edges, nil
	}
	filtered := edges[:0]
	for _, e := range edges {
		if e.Type() == edgeType {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Direction selects which edges a traversal follows from a node.
type Direction int

const (
	// DirectionOutgoing follows source → target edges (default).
	DirectionOutgoing Direction = iota

	// DirectionIncoming follows edges backwards, target → source.
	DirectionIncoming

	// DirectionBoth follows edges in either orientation.
	DirectionBoth
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseDirection maps a direction name to its value; unknown names error.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "outgoing":
		return DirectionOutgoing, nil
	case "incoming":
		return DirectionIncoming, nil
	case "both":
		return DirectionBoth, nil
	default:
		return DirectionOutgoing, fmt.Errorf("%w: direction %q", ErrUnsupportedOperation, s)
	}
}

// Neighbor is one traversal step from a node: the node reached, the edge
// used, and its weight.
type Neighbor struct {
	NodeID string
	EdgeID string
	Weight float64
}

// Neighbors returns the adjacent nodes of id reachable over live edges,
// honoring direction and an optional edge-type filter. Edges whose far
// endpoint is tombstoned or unknown are skipped: soft-deleting a node
// keeps its incident edges in the table, but they must not lead a
// traversal into the tombstone. Results are sorted by (NodeID, EdgeID)
// for deterministic traversal.
//
// This is the low-level traversal primitive the graph algorithms run on;
// it reads the composite index, never the full edge table.
func (s *Store) Neighbors(id string, dir Direction, edgeType string) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	var out []Neighbor
	table := s.tables[entity.KindEdge]
	nodes := s.tables[entity.KindNode]

	collect := func(set map[string]struct{}, reverse bool) {
		for edgeID := range set {
			ent, ok := table[edgeID]
			if !ok {
				continue
			}
			edge := ent.(*entity.Edge)
			if edgeType != "" && edge.Type() != edgeType {
				continue
			}
			next := edge.Target
			if reverse {
				next = edge.Source
			}
			if n, ok := nodes[next]; !ok || n.Meta().Deleted {
				continue
			}
			out = append(out, Neighbor{NodeID: next, EdgeID: edgeID, Weight: edge.Weight()})
		}
	}

	switch dir {
	case DirectionOutgoing:
		if edgeType != "" {
			collect(s.indices.bySourceType[compositeKey(id, edgeType)], false)
		} else {
			collect(s.indices.bySource[id], false)
		}
	case DirectionIncoming:
		collect(s.indices.byTarget[id], true)
	case DirectionBoth:
		if edgeType != "" {
			collect(s.indices.bySourceType[compositeKey(id, edgeType)], false)
		} else {
			collect(s.indices.bySource[id], false)
		}
		collect(s.indices.byTarget[id], true)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].EdgeID < out[j].EdgeID
	})
	return out
}

// NodeIDs returns the ids of all live nodes, sorted.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	table := s.tables[entity.KindNode]
	ids := make([]string, 0, len(table))
	for id, ent := range table {
		if !ent.Meta().Deleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasNode reports whether a live node with the id exists.
func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.tables[entity.KindNode][id]
	return ok && !ent.Meta().Deleted
}

// EdgeByID returns a live edge by id, for algorithms that resolve edge
// ids discovered through Neighbors.
func (s *Store) EdgeByID(id string) (*entity.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.tables[entity.KindEdge][id]
	if !ok || ent.Meta().Deleted {
		return nil, false
	}
	return cloneEntity(ent).(*entity.Edge), true
}

// Counts returns the live node and edge counts.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.live[entity.KindNode], s.live[entity.KindEdge]
}
