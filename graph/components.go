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

// ConnectedComponents partitions the live nodes into their connected
// components. Edge direction is ignored unless an explicit direction
// option is given; with the default, two nodes share a component when
// any path of edges joins them regardless of orientation. Every live
// node appears in exactly one component, isolated nodes in singletons.
//
// Components are returned with their member ids sorted and the
// components themselves ordered by their smallest member.
func ConnectedComponents(ctx context.Context, v View, opts ...Option) ([][]string, error) {
	o := applyOptions(opts)
	if !hasDirectionOption(opts) {
		o.Direction = store.DirectionBoth
	}

	ctx, span := tracer.Start(ctx, "graph.ConnectedComponents")
	defer span.End()

	visited := map[string]bool{}
	var components [][]string

	for _, start := range v.NodeIDs() {
		if visited[start] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("connected components: %w", err)
		}

		// BFS flood fill; NodeIDs and Neighbors are both sorted, so
		// each component comes out in sorted member order.
		component := []string{}
		visited[start] = true
		level := []string{start}
		for len(level) > 0 {
			var next []string
			for _, id := range level {
				component = append(component, id)
				for _, nb := range v.Neighbors(id, o.Direction, o.EdgeType) {
					if visited[nb.NodeID] {
						continue
					}
					visited[nb.NodeID] = true
					next = append(next, nb.NodeID)
				}
			}
			level = next
		}
		sort.Strings(component)
		components = append(components, component)
	}

	span.SetAttributes(attribute.Int("components", len(components)))
	return components, nil
}

// hasDirectionOption reports whether any option explicitly set a
// direction, distinguishing "unset" from "explicitly outgoing".
func hasDirectionOption(opts []Option) bool {
	sentinel := Options{Direction: store.Direction(-1)}
	for _, opt := range opts {
		opt(&sentinel)
	}
	return sentinel.Direction != store.Direction(-1)
}
