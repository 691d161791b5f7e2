// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package query builds and executes declarative store queries.
//
// A Query is a validated value object describing one read or compute
// operation: a point get, a filtered list, or a graph algorithm run.
// There is no text query language; callers construct queries through
// the typed helpers and hand them to Execute.
package query

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/store"
)

// Op names a query operation.
type Op string

// Supported operations.
const (
	OpGet                 Op = "get"
	OpList                Op = "list"
	OpTraverse            Op = "traverse"
	OpShortestPath        Op = "shortest_path"
	OpConnectedComponents Op = "connected_components"
	OpPageRank            Op = "pagerank"
	OpMinimumSpanningTree Op = "minimum_spanning_tree"
)

// Sentinel errors for query validation.
var (
	// ErrUnsupportedAlgorithm is returned when a query names an
	// operation the engine does not implement.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrMissingParameter is returned when a required query parameter
	// is absent; MissingParameterError carries the parameter name.
	ErrMissingParameter = errors.New("missing required parameter")
)

// MissingParameterError names the parameter an operation requires.
type MissingParameterError struct {
	Op    Op
	Param string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.Op, e.Param)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// Query is a declarative description of one store operation. Construct
// through the helpers below; Validate before Execute (Execute validates
// again defensively).
type Query struct {
	// Op selects the operation.
	Op Op `json:"op" validate:"required"`

	// Kind selects the entity table for get/list.
	Kind entity.Kind `json:"kind,omitempty"`

	// ID is the entity id for get.
	ID string `json:"id,omitempty"`

	// Start and Target are traversal/path endpoints.
	Start  string `json:"start,omitempty"`
	Target string `json:"target,omitempty"`

	// Filter restricts list results by per-key match.
	Filter store.Filter `json:"filter,omitempty"`

	// Direction selects which edges algorithms follow.
	Direction store.Direction `json:"direction,omitempty"`

	// EdgeType restricts algorithms to one logical edge type.
	EdgeType string `json:"edge_type,omitempty"`

	// MaxDepth is the inclusive traversal hop limit; zero means the
	// store default.
	MaxDepth int `json:"max_depth,omitempty" validate:"gte=0"`

	// Limit and Offset paginate list results and cap traversals; zero
	// means the store default.
	Limit  int `json:"limit,omitempty" validate:"gte=0"`
	Offset int `json:"offset,omitempty" validate:"gte=0"`

	// Sort orders list results by entity id.
	Sort store.SortOrder `json:"sort,omitempty"`

	// Damping and Iterations tune pagerank; zero means the algorithm
	// default.
	Damping    float64 `json:"damping,omitempty" validate:"gte=0,lte=1"`
	Iterations int     `json:"iterations,omitempty" validate:"gte=0"`
}

// validate is shared; validator.Validate is thread-safe and caches
// struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Get describes a point read of one entity.
func Get(kind entity.Kind, id string) Query {
	return Query{Op: OpGet, Kind: kind, ID: id}
}

// List describes a filtered, paginated scan of one entity kind.
func List(kind entity.Kind, filter store.Filter) Query {
	return Query{Op: OpList, Kind: kind, Filter: filter}
}

// Traverse describes a breadth-first traversal from start.
func Traverse(start string) Query {
	return Query{Op: OpTraverse, Start: start}
}

// ShortestPath describes a weighted shortest-path search.
func ShortestPath(start, target string) Query {
	return Query{Op: OpShortestPath, Start: start, Target: target}
}

// ConnectedComponents describes a component partition of the graph.
func ConnectedComponents() Query {
	return Query{Op: OpConnectedComponents}
}

// PageRank describes a rank computation over the graph.
func PageRank() Query {
	return Query{Op: OpPageRank}
}

// MinimumSpanningTree describes a spanning tree computation.
func MinimumSpanningTree() Query {
	return Query{Op: OpMinimumSpanningTree}
}

// Validate checks structural constraints and the operation's required
// parameters.
//
// Errors:
//   - ErrUnsupportedAlgorithm for an unknown Op.
//   - MissingParameterError naming the first absent parameter.
//   - validator.ValidationErrors for out-of-range numeric fields.
func (q Query) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("query: %w", err)
	}

	switch q.Op {
	case OpGet:
		if !q.Kind.Valid() {
			return &MissingParameterError{Op: q.Op, Param: "kind"}
		}
		if q.ID == "" {
			return &MissingParameterError{Op: q.Op, Param: "id"}
		}
	case OpList:
		if !q.Kind.Valid() {
			return &MissingParameterError{Op: q.Op, Param: "kind"}
		}
	case OpTraverse:
		if q.Start == "" {
			return &MissingParameterError{Op: q.Op, Param: "start"}
		}
	case OpShortestPath:
		if q.Start == "" {
			return &MissingParameterError{Op: q.Op, Param: "start"}
		}
		if q.Target == "" {
			return &MissingParameterError{Op: q.Op, Param: "target"}
		}
	case OpConnectedComponents, OpPageRank, OpMinimumSpanningTree:
		// No required parameters beyond the op itself.
	default:
		return fmt.Errorf("query: %q: %w", q.Op, ErrUnsupportedAlgorithm)
	}
	return nil
}
