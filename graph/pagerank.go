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
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/plexusdb/plexus/store"
)

// PageRank iteration defaults.
const (
	// DefaultDamping is the probability of following an edge rather
	// than teleporting to a random node.
	DefaultDamping = 0.85

	// DefaultMaxIterations bounds the power iteration.
	DefaultMaxIterations = 100

	// DefaultConvergence is the L1 delta below which iteration stops.
	DefaultConvergence = 1e-6
)

// PageRankOptions tunes the power iteration.
type PageRankOptions struct {
	// Damping factor in (0, 1). Zero selects the default.
	Damping float64

	// MaxIterations bounds the iteration count. Zero selects the
	// default.
	MaxIterations int

	// Convergence is the L1 rank delta that ends iteration early. Zero
	// selects the default.
	Convergence float64

	// EdgeType restricts rank flow to one logical edge type.
	EdgeType string

	// ParallelThreshold and MaxWorkers govern parallel rank updates; a
	// graph smaller than the threshold iterates sequentially.
	ParallelThreshold int
	MaxWorkers        int
}

// normalize replaces out-of-range values with the defaults.
func (o *PageRankOptions) normalize() {
	if o.Damping <= 0 || o.Damping >= 1 {
		o.Damping = DefaultDamping
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Convergence <= 0 {
		o.Convergence = DefaultConvergence
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
}

// PageRankResult reports converged ranks per node.
type PageRankResult struct {
	// Ranks maps node id to rank. Ranks sum to 1 (within floating
	// error).
	Ranks map[string]float64 `json:"ranks"`

	// Iterations is the number of power iterations actually run.
	Iterations int `json:"iterations"`

	// Converged reports whether the delta threshold was reached before
	// the iteration cap.
	Converged bool `json:"converged"`
}

// PageRank runs the power-iteration PageRank over the live graph.
//
// Description:
//
//	Rank flows along outgoing edges, split evenly among a node's
//	out-neighbors. Dangling nodes (no outgoing edges) redistribute
//	their rank uniformly. Iteration stops when the L1 delta between
//	successive rank vectors drops below the convergence threshold or
//	the iteration cap is hit. Graphs at or above the parallel
//	threshold compute each iteration's ranks across a bounded worker
//	pool.
//
// Outputs:
//   - PageRankResult; Ranks is empty (not nil) on an empty graph.
//
// Errors:
//   - The context error when ctx is done between iterations.
//
// Thread Safety: safe for concurrent use; reads only.
func PageRank(ctx context.Context, v View, opts PageRankOptions) (*PageRankResult, error) {
	opts.normalize()

	ctx, span := tracer.Start(ctx, "graph.PageRank")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("damping", opts.Damping),
		attribute.Int("max_iterations", opts.MaxIterations),
	)

	nodes := v.NodeIDs()
	n := len(nodes)
	res := &PageRankResult{Ranks: map[string]float64{}}
	if n == 0 {
		return res, nil
	}

	// Pre-resolve the adjacency so the hot loop never goes back to the
	// view.
	out := make(map[string][]string, n)
	for _, id := range nodes {
		for _, nb := range v.Neighbors(id, store.DirectionOutgoing, opts.EdgeType) {
			out[id] = append(out[id], nb.NodeID)
		}
	}

	ranks := make(map[string]float64, n)
	for _, id := range nodes {
		ranks[id] = 1.0 / float64(n)
	}

	base := (1.0 - opts.Damping) / float64(n)
	parallel := n >= opts.ParallelThreshold
	if parallel {
		slog.Debug("running pagerank iterations in parallel",
			"nodes", n, "workers", opts.MaxWorkers)
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pagerank: %w", err)
		}
		res.Iterations = iter + 1

		// Contributions flowing into each node this iteration.
		incoming := make(map[string]float64, n)
		dangling := 0.0
		for _, id := range nodes {
			targets := out[id]
			if len(targets) == 0 {
				dangling += ranks[id]
				continue
			}
			share := ranks[id] / float64(len(targets))
			for _, t := range targets {
				incoming[t] += share
			}
		}
		danglingShare := opts.Damping * dangling / float64(n)

		next := make(map[string]float64, n)
		var delta float64
		if parallel {
			delta = rankParallel(nodes, incoming, ranks, next, base, danglingShare, opts)
		} else {
			for _, id := range nodes {
				r := base + danglingShare + opts.Damping*incoming[id]
				next[id] = r
				delta += math.Abs(r - ranks[id])
			}
		}

		ranks = next
		if delta < opts.Convergence {
			res.Converged = true
			break
		}
	}

	res.Ranks = ranks
	span.SetAttributes(
		attribute.Int("iterations", res.Iterations),
		attribute.Bool("converged", res.Converged),
	)
	return res, nil
}

// rankParallel computes one iteration's rank vector across a bounded
// worker pool, each writing a disjoint chunk of next.
func rankParallel(nodes []string, incoming, ranks, next map[string]float64, base, danglingShare float64, opts PageRankOptions) float64 {
	workers := opts.MaxWorkers
	if workers > len(nodes) {
		workers = len(nodes)
	}
	chunkSize := (len(nodes) + workers - 1) / workers

	deltas := make([]float64, workers)
	chunks := make([]map[string]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > len(nodes) {
			hi = len(nodes)
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(w int, ids []string) {
			defer wg.Done()
			part := make(map[string]float64, len(ids))
			for _, id := range ids {
				r := base + danglingShare + opts.Damping*incoming[id]
				part[id] = r
				deltas[w] += math.Abs(r - ranks[id])
			}
			chunks[w] = part
		}(w, nodes[lo:hi])
	}
	wg.Wait()

	var delta float64
	for w := range chunks {
		for id, r := range chunks[w] {
			next[id] = r
		}
		delta += deltas[w]
	}
	return delta
}
