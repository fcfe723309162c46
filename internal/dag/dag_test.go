// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	g := New()
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_OverrideChain(t *testing.T) {
	t.Parallel()
	g := New()
	// vendor/base is overridden by vendor/theme, which is overridden by acme/site.
	g.AddEdge("vendor/base", "vendor/theme")
	g.AddEdge("vendor/theme", "acme/site")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"vendor/base", "vendor/theme", "acme/site"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order[0] != "A" || order[len(order)-1] != "D" {
		t.Errorf("expected A first and D last, got %v", order)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		edges    [][2]string
		minNodes int
	}{
		{name: "two nodes", edges: [][2]string{{"A", "B"}, {"B", "A"}}, minNodes: 2},
		{name: "self loop", edges: [][2]string{{"A", "A"}}, minNodes: 1},
		{name: "three nodes", edges: [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}, minNodes: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}

			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T: %v", err, err)
			}
			if len(cycleErr.Cycle) < tt.minNodes {
				t.Errorf("expected at least %d nodes in cycle, got %v", tt.minNodes, cycleErr.Cycle)
			}
		})
	}
}

func TestAddEdge_Deduplicates(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	if !g.HasEdge("A", "B") {
		t.Fatal("expected edge A -> B")
	}
	if g.HasEdge("B", "A") {
		t.Error("did not expect edge B -> A")
	}
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", order)
	}
}

func TestReachable(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddNode("D")

	got := g.Reachable("A")
	if !got["B"] || !got["C"] {
		t.Errorf("expected B and C reachable from A, got %v", got)
	}
	if got["A"] || got["D"] {
		t.Errorf("did not expect A or D reachable from A, got %v", got)
	}
	if len(g.Reachable("missing")) != 0 {
		t.Error("expected nothing reachable from an unknown node")
	}
}

func TestReachable_IncludesStartOnCycle(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	if !g.Reachable("A")["A"] {
		t.Error("expected A to reach itself through the cycle")
	}
}

func TestCycles(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")
	// C sits between two cycles but is not on one.
	g.AddEdge("B", "C")
	g.AddEdge("C", "D")
	g.AddEdge("D", "E")
	g.AddEdge("E", "D")
	g.AddEdge("F", "F")

	cycles := g.Cycles()
	want := [][]string{{"A", "B"}, {"D", "E"}, {"F"}}
	if len(cycles) != len(want) {
		t.Fatalf("expected %d cycles, got %v", len(want), cycles)
	}
	for i := range want {
		if !slices.Equal(cycles[i], want[i]) {
			t.Errorf("cycle %d: expected %v, got %v", i, want[i], cycles[i])
		}
	}
}

func TestCycles_Acyclic(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")

	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Errorf("expected no cycles, got %v", cycles)
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"A", "B", "C"}}
	expected := "cycle detected: A -> B -> C"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
