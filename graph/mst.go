// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/plexusdb/plexus/store"
)

// MSTResult is the outcome of a minimum spanning tree computation.
type MSTResult struct {
	// Edges lists the ids of the chosen edges. For a connected graph of
	// N live nodes it holds exactly N-1 edges.
	Edges []string `json:"edges"`

	// TotalWeight is the sum of the chosen edges' weights.
	TotalWeight float64 `json:"total_weight"`

	// Connected reports whether a single tree spans the whole graph.
	// When false the result is the minimum spanning forest: one tree
	// per connected component.
	Connected bool `json:"connected"`
}

// unionFind is a disjoint-set forest with path compression and union by
// rank.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind(ids []string) *unionFind {
	uf := &unionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

// find returns the set root for id; ok is false for ids the forest was
// not built with, so stray edge endpoints never collapse into a
// zero-value root.
func (uf *unionFind) find(id string) (root string, ok bool) {
	if _, ok := uf.parent[id]; !ok {
		return "", false
	}
	root = id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[id] != root {
		uf.parent[id], id = root, uf.parent[id]
	}
	return root, true
}

// union merges the sets holding a and b; returns false when they were
// already joined or either id is not in the forest.
func (uf *unionFind) union(a, b string) bool {
	ra, oka := uf.find(a)
	rb, okb := uf.find(b)
	if !oka || !okb || ra == rb {
		return false
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
	return true
}

// mstEdge is a candidate edge for Kruskal's algorithm.
type mstEdge struct {
	id     string
	source string
	target string
	weight float64
}

// MinimumSpanningTree computes a minimum spanning tree over the live
// graph using Kruskal's algorithm: edges sorted by ascending weight,
// joined through a union-find that rejects cycle-forming candidates.
// Edge direction is ignored; the tree spans an undirected view. On a
// disconnected graph the result is the spanning forest and Connected is
// false.
func MinimumSpanningTree(ctx context.Context, v View, opts ...Option) (*MSTResult, error) {
	o := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "graph.MinimumSpanningTree")
	defer span.End()

	nodes := v.NodeIDs()
	res := &MSTResult{Edges: []string{}, Connected: true}
	if len(nodes) == 0 {
		return res, nil
	}

	// Enumerate each edge once through the outgoing view.
	var candidates []mstEdge
	for _, id := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("minimum spanning tree: %w", err)
		}
		for _, nb := range v.Neighbors(id, store.DirectionOutgoing, o.EdgeType) {
			candidates = append(candidates, mstEdge{
				id:     nb.EdgeID,
				source: id,
				target: nb.NodeID,
				weight: nb.Weight,
			})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight < candidates[j].weight
		}
		return candidates[i].id < candidates[j].id
	})

	uf := newUnionFind(nodes)
	joined := 0
	for _, e := range candidates {
		if !uf.union(e.source, e.target) {
			continue
		}
		res.Edges = append(res.Edges, e.id)
		res.TotalWeight += e.weight
		joined++
		if joined == len(nodes)-1 {
			break
		}
	}
	res.Connected = joined == len(nodes)-1

	span.SetAttributes(
		attribute.Int("edges", len(res.Edges)),
		attribute.Bool("connected", res.Connected),
	)
	return res, nil
}
