// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/plexusdb/plexus/config"
	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/graph"
	"github.com/plexusdb/plexus/store"
)

var tracer = otel.Tracer("plexus.query")

// Result carries the outcome of one executed query. Op tags which field
// is populated.
type Result struct {
	Op Op `json:"op"`

	// Entity is set for get.
	Entity entity.Entity `json:"entity,omitempty"`

	// Entities is set for list.
	Entities []entity.Entity `json:"entities,omitempty"`

	// Traversal is set for traverse.
	Traversal *graph.TraversalResult `json:"traversal,omitempty"`

	// Path is set for shortest_path.
	Path *graph.PathResult `json:"path,omitempty"`

	// Components is set for connected_components.
	Components [][]string `json:"components,omitempty"`

	// MST is set for minimum_spanning_tree.
	MST *graph.MSTResult `json:"mst,omitempty"`

	// PageRank is set for pagerank.
	PageRank *graph.PageRankResult `json:"pagerank,omitempty"`
}

// Execute validates q and runs it against s.
//
// Description:
//
//	Dispatches to the store for get/list and to the graph algorithms
//	for the compute operations. Query zero values fall back to the
//	store's configured defaults (depth, limits, parallelism); explicit
//	values clamp to the configured maxima. Bad queries come back as
//	error values, never panics.
//
// Errors:
//   - Validation errors from Query.Validate.
//   - The store's CRUD errors (store.ErrNotFound, store.ErrDeleted, ...).
//   - The algorithms' errors (graph.ErrStartNotFound, ...).
//
// Thread Safety: safe for concurrent use; read-only against the store.
func Execute(ctx context.Context, s *store.Store, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "query.Execute", trace.WithAttributes(
		attribute.String("op", string(q.Op)),
		attribute.String("store", s.Name()),
	))
	defer span.End()

	res := &Result{Op: q.Op}
	cfg := s.Config()

	switch q.Op {
	case OpGet:
		ent, err := s.Get(ctx, q.Kind, q.ID)
		if err != nil {
			return nil, err
		}
		res.Entity = ent

	case OpList:
		ents, err := s.All(ctx, q.Kind, q.Filter, store.ListOptions{
			Limit:  q.Limit,
			Offset: q.Offset,
			Sort:   q.Sort,
		})
		if err != nil {
			return nil, err
		}
		res.Entities = ents

	case OpTraverse:
		tr, err := graph.Traverse(ctx, s, q.Start, graphOptions(q, cfg)...)
		if err != nil {
			return nil, err
		}
		res.Traversal = tr

	case OpShortestPath:
		p, err := graph.ShortestPath(ctx, s, q.Start, q.Target, graphOptions(q, cfg)...)
		if err != nil {
			return nil, err
		}
		res.Path = p

	case OpConnectedComponents:
		var opts []graph.Option
		if q.EdgeType != "" {
			opts = append(opts, graph.WithEdgeType(q.EdgeType))
		}
		comps, err := graph.ConnectedComponents(ctx, s, opts...)
		if err != nil {
			return nil, err
		}
		res.Components = comps

	case OpMinimumSpanningTree:
		var opts []graph.Option
		if q.EdgeType != "" {
			opts = append(opts, graph.WithEdgeType(q.EdgeType))
		}
		mst, err := graph.MinimumSpanningTree(ctx, s, opts...)
		if err != nil {
			return nil, err
		}
		res.MST = mst

	case OpPageRank:
		pr, err := graph.PageRank(ctx, s, graph.PageRankOptions{
			Damping:           q.Damping,
			MaxIterations:     q.Iterations,
			EdgeType:          q.EdgeType,
			ParallelThreshold: cfg.Parallel.Threshold,
			MaxWorkers:        cfg.Parallel.MaxWorkers,
		})
		if err != nil {
			return nil, err
		}
		res.PageRank = pr

	default:
		// Validate catches this; kept so a new op cannot fall through
		// silently.
		return nil, fmt.Errorf("query: %q: %w", q.Op, ErrUnsupportedAlgorithm)
	}

	return res, nil
}

// graphOptions translates query parameters into algorithm options,
// filling gaps from the store config and clamping depth to its maximum.
func graphOptions(q Query, cfg config.Config) []graph.Option {
	depth := q.MaxDepth
	if depth <= 0 {
		depth = cfg.Query.DefaultMaxDepth
	}
	if cfg.Query.MaxDepth > 0 && depth > cfg.Query.MaxDepth {
		depth = cfg.Query.MaxDepth
	}
	limit := q.Limit
	if limit <= 0 {
		limit = cfg.Query.DefaultLimit
	}
	if cfg.Query.MaxLimit > 0 && limit > cfg.Query.MaxLimit {
		limit = cfg.Query.MaxLimit
	}

	opts := []graph.Option{
		graph.WithDirection(q.Direction),
		graph.WithMaxDepth(depth),
		graph.WithLimit(limit),
		graph.WithParallelism(cfg.Parallel.Threshold, cfg.Parallel.MaxWorkers),
	}
	if q.EdgeType != "" {
		opts = append(opts, graph.WithEdgeType(q.EdgeType))
	}
	return opts
}
