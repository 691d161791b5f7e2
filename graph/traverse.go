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
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("plexus.graph")

// TraversalResult reports the nodes reached by a breadth-first
// traversal in discovery order.
type TraversalResult struct {
	// Start is the node the traversal began at.
	Start string `json:"start"`

	// Nodes lists the visited node ids, start first, then each level in
	// deterministic (sorted-within-level) order.
	Nodes []string `json:"nodes"`

	// Edges lists the ids of the edges followed during discovery.
	Edges []string `json:"edges,omitempty"`

	// Depth is the deepest level actually reached.
	Depth int `json:"depth"`

	// Truncated reports whether the visited-node limit cut the
	// traversal short.
	Truncated bool `json:"truncated"`
}

// Traverse runs a breadth-first traversal from start.
//
// Description:
//
//	Level-synchronous BFS. A visited set guarantees termination on
//	cyclic graphs; each node appears at most once, at its shallowest
//	depth. MaxDepth is an inclusive hop limit (1 = start plus direct
//	neighbors) and Limit caps the total visited nodes. Levels larger
//	than the parallel threshold are expanded by a bounded worker pool;
//	smaller levels are expanded inline.
//
// Inputs:
//   - ctx: cancellation; checked between levels.
//   - v: the graph view to read.
//   - start: id of the node to begin at.
//   - opts: direction, edge-type filter, depth/limit bounds.
//
// Outputs:
//   - TraversalResult with nodes in discovery order.
//
// Errors:
//   - ErrStartNotFound when start is not a live node.
//   - ErrWorkerFailed when a parallel sub-task panicked.
//   - The context error when ctx is done.
//
// Thread Safety: safe for concurrent use; reads only.
func Traverse(ctx context.Context, v View, start string, opts ...Option) (*TraversalResult, error) {
	o := applyOptions(opts)

	ctx, span := tracer.Start(ctx, "graph.Traverse")
	defer span.End()
	span.SetAttributes(
		attribute.String("start", start),
		attribute.Int("max_depth", o.MaxDepth),
		attribute.String("direction", o.Direction.String()),
	)

	if !v.HasNode(start) {
		return nil, fmt.Errorf("traverse from %q: %w", start, ErrStartNotFound)
	}

	res := &TraversalResult{Start: start}
	visited := map[string]bool{start: true}
	level := []string{start}

	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("traverse from %q: %w", start, err)
		}

		res.Depth = depth
		for _, id := range level {
			if len(res.Nodes) >= o.Limit {
				res.Truncated = true
				return res, nil
			}
			res.Nodes = append(res.Nodes, id)
		}
		if depth == o.MaxDepth {
			break
		}

		var (
			next  []string
			edges []string
			err   error
		)
		if len(level) >= o.ParallelThreshold {
			next, edges, err = expandParallel(ctx, v, level, visited, o)
		} else {
			next, edges = expandSequential(v, level, visited, o)
		}
		if err != nil {
			return nil, fmt.Errorf("traverse from %q: %w", start, err)
		}
		res.Edges = append(res.Edges, edges...)
		level = next
	}
	return res, nil
}

// expandSequential expands one BFS level inline.
func expandSequential(v View, level []string, visited map[string]bool, o Options) (next, edges []string) {
	for _, id := range level {
		for _, nb := range v.Neighbors(id, o.Direction, o.EdgeType) {
			if visited[nb.NodeID] {
				continue
			}
			visited[nb.NodeID] = true
			next = append(next, nb.NodeID)
			edges = append(edges, nb.EdgeID)
		}
	}
	return next, edges
}

// levelChunk is one worker's share of a frontier expansion.
type levelChunk struct {
	next  []string
	edges []string
}

// expandParallel expands one BFS level with a bounded worker pool.
// Each worker takes a contiguous chunk of the frontier and collects
// candidate neighbors without touching shared state; deduplication
// against the visited set happens in a single merge pass afterwards so
// the set needs no lock. The merged frontier is re-sorted to keep
// discovery order independent of goroutine scheduling.
func expandParallel(ctx context.Context, v View, level []string, visited map[string]bool, o Options) ([]string, []string, error) {
	workers := o.MaxWorkers
	if workers > len(level) {
		workers = len(level)
	}
	slog.Debug("expanding traversal level in parallel",
		"frontier", len(level), "workers", workers)

	chunks := make([]levelChunk, workers)
	chunkSize := (len(level) + workers - 1) / workers

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(level) {
			hi = len(level)
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(w int, ids []string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("%w: %v", ErrWorkerFailed, r))
					mu.Unlock()
				}
			}()
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			for _, id := range ids {
				for _, nb := range v.Neighbors(id, o.Direction, o.EdgeType) {
					chunks[w].next = append(chunks[w].next, nb.NodeID)
					chunks[w].edges = append(chunks[w].edges, nb.EdgeID)
				}
			}
		}(w, level[lo:hi])
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, nil, errs[0]
	}

	var next, edges []string
	for _, c := range chunks {
		for i, id := range c.next {
			if visited[id] {
				continue
			}
			visited[id] = true
			next = append(next, id)
			edges = append(edges, c.edges[i])
		}
	}
	sort.Strings(next)
	sort.Strings(edges)
	return next, edges, nil
}
