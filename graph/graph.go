// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph implements the graph-theoretic algorithms that run over
// a store's index-backed view: BFS traversal, weighted shortest path,
// connected components, minimum spanning tree and PageRank.
//
// All algorithms are parameterized by direction, an optional edge-type
// filter, and depth/result limits. They read through the View interface
// and never mutate the store; a frozen or live store can serve them
// concurrently with other reads.
//
// # Parallelization Policy
//
// Traversals fan a BFS frontier out across worker goroutines only when
// the frontier exceeds the configured threshold; below it, execution is
// strictly sequential so parallelism overhead never regresses small-graph
// latency. Workers always join before an algorithm returns, and a worker
// failure propagates as the algorithm's error.
package graph

import (
	"errors"

	"github.com/plexusdb/plexus/store"
)

// Sentinel errors for algorithm execution.
var (
	// ErrStartNotFound is returned when a traversal or path start node
	// does not exist as a live node.
	ErrStartNotFound = errors.New("start node not found")

	// ErrTargetNotFound is returned when a path target node does not
	// exist as a live node.
	ErrTargetNotFound = errors.New("target node not found")

	// ErrWorkerFailed is returned when a parallel sub-computation
	// failed; traversal results are discarded rather than silently
	// truncated.
	ErrWorkerFailed = errors.New("parallel worker failed")
)

// View is the read surface algorithms run over. *store.Store implements
// it; tests may substitute fixtures.
type View interface {
	// NodeIDs returns the ids of all live nodes, sorted.
	NodeIDs() []string

	// HasNode reports whether a live node with the id exists.
	HasNode(id string) bool

	// Neighbors returns the adjacent nodes over live edges, honoring
	// direction and an optional edge-type filter, sorted for
	// deterministic iteration.
	Neighbors(id string, dir store.Direction, edgeType string) []store.Neighbor
}

// Default algorithm bounds. Stores override them from their config.
const (
	// DefaultMaxDepth is the traversal depth used when none is given.
	DefaultMaxDepth = 10

	// DefaultLimit is the visited-node cap used when none is given.
	DefaultLimit = 1000

	// DefaultParallelThreshold is the minimum frontier size that
	// triggers parallel level processing.
	DefaultParallelThreshold = 32

	// DefaultMaxWorkers caps worker goroutines regardless of CPU count.
	DefaultMaxWorkers = 8
)

// Options configures a traversal-style algorithm run.
type Options struct {
	// Direction selects which edges to follow. Default outgoing.
	Direction store.Direction

	// EdgeType restricts traversal to edges carrying this logical type.
	// Empty matches every edge.
	EdgeType string

	// MaxDepth is the inclusive hop limit: 1 visits the start node and
	// its direct neighbors only. Zero or negative selects the default.
	MaxDepth int

	// Limit caps the number of visited nodes. Zero or negative selects
	// the default.
	Limit int

	// ParallelThreshold is the minimum frontier size for parallel
	// processing. Zero or negative selects the default.
	ParallelThreshold int

	// MaxWorkers caps worker goroutines. Zero or negative selects the
	// default.
	MaxWorkers int
}

// Option is a functional option for configuring algorithm runs.
type Option func(*Options)

// WithDirection selects which edges to follow.
func WithDirection(d store.Direction) Option {
	return func(o *Options) { o.Direction = d }
}

// WithEdgeType restricts traversal to one logical edge type.
func WithEdgeType(t string) Option {
	return func(o *Options) { o.EdgeType = t }
}

// WithMaxDepth sets the inclusive hop limit.
func WithMaxDepth(d int) Option {
	return func(o *Options) { o.MaxDepth = d }
}

// WithLimit caps the number of visited nodes.
func WithLimit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

// WithParallelism tunes the frontier threshold and worker cap.
func WithParallelism(threshold, maxWorkers int) Option {
	return func(o *Options) {
		o.ParallelThreshold = threshold
		o.MaxWorkers = maxWorkers
	}
}

// applyOptions resolves functional options over the defaults.
func applyOptions(opts []Option) Options {
	o := Options{
		Direction:         store.DirectionOutgoing,
		MaxDepth:          DefaultMaxDepth,
		Limit:             DefaultLimit,
		ParallelThreshold: DefaultParallelThreshold,
		MaxWorkers:        DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.normalize()
	return o
}

// normalize replaces out-of-range values with the defaults.
func (o *Options) normalize() {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
}
