// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"container/heap"
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// PathResult is the outcome of a shortest-path computation.
type PathResult struct {
	// From and To echo the requested endpoints.
	From string `json:"from"`
	To   string `json:"to"`

	// Found reports whether any path connects From to To. When false
	// the remaining fields are zero.
	Found bool `json:"found"`

	// Path lists the node ids along the cheapest path, From first.
	Path []string `json:"path,omitempty"`

	// Edges lists the edge ids followed, parallel to the path hops.
	Edges []string `json:"edges,omitempty"`

	// Distance is the sum of edge weights along the path.
	Distance float64 `json:"distance"`
}

// pathItem is a priority-queue entry for Dijkstra's algorithm.
type pathItem struct {
	id   string
	dist float64
}

// pathQueue is a min-heap of pathItem ordered by distance, ties broken
// by id so results are deterministic.
type pathQueue []pathItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].id < q[j].id
}
func (q pathQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x any)        { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// ShortestPath finds the minimum-weight path between two nodes using
// Dijkstra's algorithm. Edge weights come from each edge's "weight"
// data key and default to 1, so on an unweighted graph the result is
// the fewest-hops path. A path through several light edges beats a
// single heavy edge.
//
// Returns ErrStartNotFound or ErrTargetNotFound when an endpoint is
// missing. An unreachable target is not an error: Found is false.
func ShortestPath(ctx context.Context, v View, from, to string, opts ...Option) (*PathResult, error) {
	o := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "graph.ShortestPath")
	defer span.End()
	span.SetAttributes(attribute.String("from", from), attribute.String("to", to))

	if !v.HasNode(from) {
		return nil, fmt.Errorf("shortest path from %q: %w", from, ErrStartNotFound)
	}
	if !v.HasNode(to) {
		return nil, fmt.Errorf("shortest path to %q: %w", to, ErrTargetNotFound)
	}

	res := &PathResult{From: from, To: to}
	if from == to {
		res.Found = true
		res.Path = []string{from}
		return res, nil
	}

	type hop struct {
		prev string
		edge string
	}
	dist := map[string]float64{from: 0}
	prev := map[string]hop{}
	done := map[string]bool{}

	q := &pathQueue{{id: from, dist: 0}}
	heap.Init(q)

	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("shortest path from %q: %w", from, err)
		}

		cur := heap.Pop(q).(pathItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == to {
			break
		}

		for _, nb := range v.Neighbors(cur.id, o.Direction, o.EdgeType) {
			if done[nb.NodeID] {
				continue
			}
			alt := cur.dist + nb.Weight
			if best, ok := dist[nb.NodeID]; ok && best <= alt {
				continue
			}
			dist[nb.NodeID] = alt
			prev[nb.NodeID] = hop{prev: cur.id, edge: nb.EdgeID}
			heap.Push(q, pathItem{id: nb.NodeID, dist: alt})
		}
	}

	if !done[to] {
		return res, nil
	}

	res.Found = true
	res.Distance = dist[to]
	for id := to; id != from; {
		h := prev[id]
		res.Path = append(res.Path, id)
		res.Edges = append(res.Edges, h.edge)
		id = h.prev
	}
	res.Path = append(res.Path, from)
	reverse(res.Path)
	reverse(res.Edges)
	return res, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
