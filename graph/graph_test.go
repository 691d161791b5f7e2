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
	"math"
	"testing"

	"github.com/plexusdb/plexus/entity"
	"github.com/plexusdb/plexus/store"
)

// buildGraph seeds a store with the given nodes and edges. Edge specs
// are "source target weight" triples with an optional type.
type edgeSpec struct {
	id, source, target string
	weight             float64
	edgeType           string
}

func buildGraph(t *testing.T, nodes []string, edges []edgeSpec) *store.Store {
	t.Helper()
	s := store.New("graph-test")
	ctx := context.Background()

	for _, id := range nodes {
		if _, err := s.Insert(ctx, &entity.Node{ID: id}); err != nil {
			t.Fatalf("insert node %s: %v", id, err)
		}
	}
	for _, e := range edges {
		data := map[string]any{entity.EdgeWeightKey: e.weight}
		if e.edgeType != "" {
			data[entity.EdgeTypeKey] = e.edgeType
		}
		edge := &entity.Edge{ID: e.id, Source: e.source, Target: e.target, Data: data}
		if _, err := s.Insert(ctx, edge); err != nil {
			t.Fatalf("insert edge %s: %v", e.id, err)
		}
	}
	return s
}

func TestTraverse_CyclicGraphTerminates(t *testing.T) {
	// a → b → c → a, plus c → d.
	s := buildGraph(t,
		[]string{"a", "b", "c", "d"},
		[]edgeSpec{
			{"e1", "a", "b", 1, ""},
			{"e2", "b", "c", 1, ""},
			{"e3", "c", "a", 1, ""},
			{"e4", "c", "d", 1, ""},
		})

	res, err := Traverse(context.Background(), s, "a")
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	if len(res.Nodes) != 4 {
		t.Fatalf("visited %d nodes, want 4: %v", len(res.Nodes), res.Nodes)
	}
	if res.Nodes[0] != "a" {
		t.Errorf("start node must be first, got %v", res.Nodes)
	}
	seen := map[string]int{}
	for _, id := range res.Nodes {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %s visited %d times", id, n)
		}
	}
}

func TestTraverse_MaxDepthInclusive(t *testing.T) {
	// Chain a → b → c → d.
	s := buildGraph(t,
		[]string{"a", "b", "c", "d"},
		[]edgeSpec{
			{"e1", "a", "b", 1, ""},
			{"e2", "b", "c", 1, ""},
			{"e3", "c", "d", 1, ""},
		})

	tests := []struct {
		depth int
		nodes int
	}{
		{1, 2}, // start + direct neighbors
		{2, 3},
		{3, 4},
		{9, 4}, // deeper than the graph
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("depth=%d", tt.depth), func(t *testing.T) {
			res, err := Traverse(context.Background(), s, "a", WithMaxDepth(tt.depth))
			if err != nil {
				t.Fatalf("Traverse: %v", err)
			}
			if len(res.Nodes) != tt.nodes {
				t.Errorf("visited %v, want %d nodes", res.Nodes, tt.nodes)
			}
		})
	}
}

func TestTraverse_DirectionAndEdgeType(t *testing.T) {
	s := buildGraph(t,
		[]string{"a", "b", "c"},
		[]edgeSpec{
			{"e1", "a", "b", 1, "calls"},
			{"e2", "c", "a", 1, "imports"},
		})
	ctx := context.Background()

	out, err := Traverse(ctx, s, "a", WithDirection(store.DirectionOutgoing))
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(out.Nodes) != 2 {
		t.Errorf("outgoing visited %v", out.Nodes)
	}

	both, err := Traverse(ctx, s, "a", WithDirection(store.DirectionBoth))
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(both.Nodes) != 3 {
		t.Errorf("both visited %v", both.Nodes)
	}

	typed, err := Traverse(ctx, s, "a",
		WithDirection(store.DirectionBoth), WithEdgeType("imports"))
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(typed.Nodes) != 2 {
		t.Errorf("typed visited %v", typed.Nodes)
	}
}

func TestAlgorithms_SkipDeletedNodes(t *testing.T) {
	// Chain a → b → c with b tombstoned. The edges stay in the table,
	// but no algorithm may surface the deleted node or route through it.
	s := buildGraph(t,
		[]string{"a", "b", "c"},
		[]edgeSpec{
			{"e1", "a", "b", 1, ""},
			{"e2", "b", "c", 1, ""},
		})
	ctx := context.Background()
	if err := s.Delete(ctx, entity.KindNode, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	tr, err := Traverse(ctx, s, "a")
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(tr.Nodes) != 1 || tr.Nodes[0] != "a" {
		t.Errorf("traversal reached a tombstone: %v", tr.Nodes)
	}

	comps, err := ConnectedComponents(ctx, s)
	if err != nil {
		t.Fatalf("ConnectedComponents: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("components = %v, want [[a] [c]]", comps)
	}
	for _, comp := range comps {
		if len(comp) != 1 {
			t.Errorf("component %v crosses the tombstone", comp)
		}
	}

	mst, err := MinimumSpanningTree(ctx, s)
	if err != nil {
		t.Fatalf("MinimumSpanningTree: %v", err)
	}
	if len(mst.Edges) != 0 {
		t.Errorf("MST used edges through a tombstone: %v", mst.Edges)
	}
	if mst.Connected {
		t.Error("a and c are disconnected without b, want Connected=false")
	}
}

func TestTraverse_StartNotFound(t *testing.T) {
	s := buildGraph(t, []string{"a"}, nil)
	_, err := Traverse(context.Background(), s, "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTraverse_LimitTruncates(t *testing.T) {
	nodes := []string{"root"}
	var edges []edgeSpec
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("leaf%02d", i)
		nodes = append(nodes, id)
		edges = append(edges, edgeSpec{fmt.Sprintf("e%02d", i), "root", id, 1, ""})
	}
	s := buildGraph(t, nodes, edges)

	res, err := Traverse(context.Background(), s, "root", WithLimit(5))
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(res.Nodes) != 5 {
		t.Errorf("visited %d, want 5", len(res.Nodes))
	}
	if !res.Truncated {
		t.Error("expected Truncated=true")
	}
}

func TestTraverse_ParallelMatchesSequential(t *testing.T) {
	// Wide two-level fan-out so the frontier crosses a low threshold.
	nodes := []string{"root"}
	var edges []edgeSpec
	en := 0
	for i := 0; i < 40; i++ {
		mid := fmt.Sprintf("mid%02d", i)
		nodes = append(nodes, mid)
		edges = append(edges, edgeSpec{fmt.Sprintf("e%03d", en), "root", mid, 1, ""})
		en++
		leaf := fmt.Sprintf("leaf%02d", i)
		nodes = append(nodes, leaf)
		edges = append(edges, edgeSpec{fmt.Sprintf("e%03d", en), mid, leaf, 1, ""})
		en++
	}
	s := buildGraph(t, nodes, edges)
	ctx := context.Background()

	seq, err := Traverse(ctx, s, "root", WithParallelism(1000, 1))
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := Traverse(ctx, s, "root", WithParallelism(4, 4))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	if len(seq.Nodes) != len(par.Nodes) {
		t.Fatalf("sequential visited %d, parallel %d", len(seq.Nodes), len(par.Nodes))
	}
	for i := range seq.Nodes {
		if seq.Nodes[i] != par.Nodes[i] {
			t.Fatalf("order diverges at %d: %s vs %s", i, seq.Nodes[i], par.Nodes[i])
		}
	}
}

func TestShortestPath_PrefersCheaperMultiHop(t *testing.T) {
	// a→b (1), b→c (2), a→c (5): the two-hop path wins.
	s := buildGraph(t,
		[]string{"a", "b", "c"},
		[]edgeSpec{
			{"ab", "a", "b", 1, ""},
			{"bc", "b", "c", 2, ""},
			{"ac", "a", "c", 5, ""},
		})

	res, err := ShortestPath(context.Background(), s, "a", "c")
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !res.Found {
		t.Fatal("expected Found=true")
	}
	if res.Distance != 3 {
		t.Errorf("Distance = %v, want 3", res.Distance)
	}
	want := []string{"a", "b", "c"}
	if len(res.Path) != len(want) {
		t.Fatalf("Path = %v, want %v", res.Path, want)
	}
	for i := range want {
		if res.Path[i] != want[i] {
			t.Errorf("Path = %v, want %v", res.Path, want)
			break
		}
	}
	if len(res.Edges) != 2 || res.Edges[0] != "ab" || res.Edges[1] != "bc" {
		t.Errorf("Edges = %v", res.Edges)
	}
}

func TestShortestPath_Unreachable(t *testing.T) {
	s := buildGraph(t,
		[]string{"a", "b", "island"},
		[]edgeSpec{{"ab", "a", "b", 1, ""}})

	res, err := ShortestPath(context.Background(), s, "a", "island")
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if res.Found {
		t.Error("expected Found=false for unreachable target")
	}
	if len(res.Path) != 0 || res.Distance != 0 {
		t.Errorf("no-path result should be zero, got %v / %v", res.Path, res.Distance)
	}
}

func TestShortestPath_SameNode(t *testing.T) {
	s := buildGraph(t, []string{"a"}, nil)

	res, err := ShortestPath(context.Background(), s, "a", "a")
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !res.Found || res.Distance != 0 || len(res.Path) != 1 {
		t.Errorf("self path = %+v", res)
	}
}

func TestShortestPath_MissingEndpoints(t *testing.T) {
	s := buildGraph(t, []string{"a"}, nil)
	ctx := context.Background()

	if _, err := ShortestPath(ctx, s, "ghost", "a"); err == nil {
		t.Error("expected error for missing start")
	}
	if _, err := ShortestPath(ctx, s, "a", "ghost"); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestConnectedComponents_Partition(t *testing.T) {
	// Two components plus an isolated node. Direction is ignored, so
	// the b→a edge still joins a and b.
	s := buildGraph(t,
		[]string{"a", "b", "c", "d", "lone"},
		[]edgeSpec{
			{"ba", "b", "a", 1, ""},
			{"cd", "c", "d", 1, ""},
		})

	comps, err := ConnectedComponents(context.Background(), s)
	if err != nil {
		t.Fatalf("ConnectedComponents: %v", err)
	}
	if len(comps) != 3 {
		t.Fatalf("got %d components: %v", len(comps), comps)
	}

	// Union covers every live node exactly once.
	seen := map[string]int{}
	total := 0
	for _, comp := range comps {
		total += len(comp)
		for _, id := range comp {
			seen[id]++
		}
	}
	if total != 5 {
		t.Errorf("union size = %d, want 5", total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %s in %d components", id, n)
		}
	}

	// Ordered by smallest member, members sorted.
	if comps[0][0] != "a" || comps[1][0] != "c" || comps[2][0] != "lone" {
		t.Errorf("component order: %v", comps)
	}
}

func TestConnectedComponents_EmptyGraph(t *testing.T) {
	s := store.New("empty")
	comps, err := ConnectedComponents(context.Background(), s)
	if err != nil {
		t.Fatalf("ConnectedComponents: %v", err)
	}
	if len(comps) != 0 {
		t.Errorf("got %v", comps)
	}
}

func TestMinimumSpanningTree_Connected(t *testing.T) {
	// Square with a heavy diagonal; MST keeps the three cheapest.
	s := buildGraph(t,
		[]string{"a", "b", "c", "d"},
		[]edgeSpec{
			{"ab", "a", "b", 1, ""},
			{"bc", "b", "c", 2, ""},
			{"cd", "c", "d", 3, ""},
			{"da", "d", "a", 4, ""},
			{"ac", "a", "c", 10, ""},
		})

	res, err := MinimumSpanningTree(context.Background(), s)
	if err != nil {
		t.Fatalf("MinimumSpanningTree: %v", err)
	}
	if !res.Connected {
		t.Fatal("expected Connected=true")
	}
	if len(res.Edges) != 3 {
		t.Fatalf("got %d edges, want N-1=3: %v", len(res.Edges), res.Edges)
	}
	if res.TotalWeight != 6 {
		t.Errorf("TotalWeight = %v, want 6 (ab+bc+cd)", res.TotalWeight)
	}
}

func TestMinimumSpanningTree_Forest(t *testing.T) {
	s := buildGraph(t,
		[]string{"a", "b", "c", "d"},
		[]edgeSpec{
			{"ab", "a", "b", 1, ""},
			{"cd", "c", "d", 2, ""},
		})

	res, err := MinimumSpanningTree(context.Background(), s)
	if err != nil {
		t.Fatalf("MinimumSpanningTree: %v", err)
	}
	if res.Connected {
		t.Error("expected Connected=false for disconnected graph")
	}
	if len(res.Edges) != 2 {
		t.Errorf("forest edges = %v", res.Edges)
	}
	if res.TotalWeight != 3 {
		t.Errorf("TotalWeight = %v, want 3", res.TotalWeight)
	}
}

func TestMinimumSpanningTree_Empty(t *testing.T) {
	s := store.New("empty")
	res, err := MinimumSpanningTree(context.Background(), s)
	if err != nil {
		t.Fatalf("MinimumSpanningTree: %v", err)
	}
	if len(res.Edges) != 0 || !res.Connected {
		t.Errorf("empty graph result = %+v", res)
	}
}

func TestPageRank_RanksSumToOne(t *testing.T) {
	// Hub-and-spoke: everything links to hub, hub links to a.
	s := buildGraph(t,
		[]string{"hub", "a", "b", "c"},
		[]edgeSpec{
			{"ah", "a", "hub", 1, ""},
			{"bh", "b", "hub", 1, ""},
			{"ch", "c", "hub", 1, ""},
			{"ha", "hub", "a", 1, ""},
		})

	res, err := PageRank(context.Background(), s, PageRankOptions{})
	if err != nil {
		t.Fatalf("PageRank: %v", err)
	}
	if !res.Converged {
		t.Error("expected convergence on a 4-node graph")
	}

	var sum float64
	for _, r := range res.Ranks {
		sum += r
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("ranks sum to %v, want 1", sum)
	}

	// The hub collects rank from three spokes; it must outrank them.
	for _, id := range []string{"b", "c"} {
		if res.Ranks["hub"] <= res.Ranks[id] {
			t.Errorf("hub rank %v not above %s rank %v", res.Ranks["hub"], id, res.Ranks[id])
		}
	}
}

func TestPageRank_DanglingNodes(t *testing.T) {
	// b has no outgoing edges; its rank redistributes instead of leaking.
	s := buildGraph(t,
		[]string{"a", "b"},
		[]edgeSpec{{"ab", "a", "b", 1, ""}})

	res, err := PageRank(context.Background(), s, PageRankOptions{})
	if err != nil {
		t.Fatalf("PageRank: %v", err)
	}

	var sum float64
	for _, r := range res.Ranks {
		sum += r
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("ranks sum to %v, want 1", sum)
	}
	if res.Ranks["b"] <= res.Ranks["a"] {
		t.Errorf("b receives a's rank and must outrank it: %v", res.Ranks)
	}
}

func TestPageRank_ParallelMatchesSequential(t *testing.T) {
	var nodes []string
	var edges []edgeSpec
	for i := 0; i < 24; i++ {
		nodes = append(nodes, fmt.Sprintf("n%02d", i))
	}
	for i := 0; i < 24; i++ {
		edges = append(edges, edgeSpec{
			fmt.Sprintf("e%02d", i),
			fmt.Sprintf("n%02d", i),
			fmt.Sprintf("n%02d", (i*7+3)%24),
			1, "",
		})
	}
	s := buildGraph(t, nodes, edges)
	ctx := context.Background()

	seq, err := PageRank(ctx, s, PageRankOptions{ParallelThreshold: 1000})
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := PageRank(ctx, s, PageRankOptions{ParallelThreshold: 4, MaxWorkers: 4})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	for id, r := range seq.Ranks {
		if math.Abs(r-par.Ranks[id]) > 1e-9 {
			t.Errorf("rank diverges for %s: %v vs %v", id, r, par.Ranks[id])
		}
	}
}

func TestPageRank_EmptyGraph(t *testing.T) {
	s := store.New("empty")
	res, err := PageRank(context.Background(), s, PageRankOptions{})
	if err != nil {
		t.Fatalf("PageRank: %v", err)
	}
	if len(res.Ranks) != 0 {
		t.Errorf("got %v", res.Ranks)
	}
}
