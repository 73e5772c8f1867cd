package dag

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// topoSort computes a topological order over n nodes given their compiled
// edges, using gonum's graph/topo.Sort (itself Kahn's algorithm) over a
// gonum/graph/simple.DirectedGraph built from the compiled edge list. When
// a cycle prevents every node from being consumed, ok is false and
// cycleIndex names the lowest-indexed node in gonum's first reported
// unorderable strongly-connected component — stable for a given graph.
func topoSort(n int, edges []CompiledEdge) (order []int, cycleIndex int, ok bool) {
	g := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range edges {
		if g.HasEdgeFromTo(int64(e.From), int64(e.To)) {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(int64(e.From)), T: simple.Node(int64(e.To))})
	}

	sorted, err := topo.Sort(g)
	if err == nil {
		order = make([]int, len(sorted))
		for i, node := range sorted {
			order[i] = int(node.ID())
		}
		return order, 0, true
	}

	unorderable, isUnorderable := err.(topo.Unorderable)
	if !isUnorderable || len(unorderable) == 0 || len(unorderable[0]) == 0 {
		return nil, 0, false
	}
	return nil, int(minNodeID(unorderable[0])), false
}

func minNodeID(nodes []graph.Node) int64 {
	min := nodes[0].ID()
	for _, node := range nodes[1:] {
		if node.ID() < min {
			min = node.ID()
		}
	}
	return min
}
