package graph

import (
	"cmp"
	"math"
	"slices"

	gg "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// orderedGraph yields nodes and neighbors in ascending ID order, so Dijkstra
// breaks ties between equal-length paths the same way on every run.
type orderedGraph struct {
	*simple.WeightedUndirectedGraph
}

func (g orderedGraph) Nodes() gg.Nodes {
	return sortedNodes(g.WeightedUndirectedGraph.Nodes())
}

func (g orderedGraph) From(id int64) gg.Nodes {
	return sortedNodes(g.WeightedUndirectedGraph.From(id))
}

func sortedNodes(it gg.Nodes) gg.Nodes {
	nodes := gg.NodesOf(it)
	slices.SortFunc(nodes, func(a, b gg.Node) int { return cmp.Compare(a.ID(), b.ID()) })
	return iterator.NewOrderedNodes(nodes)
}

// ShortestPath runs Dijkstra over n nodes joined by the undirected edges.
// It returns the node sequence from src to dst and its total weight, or
// ok == false when dst is unreachable or an index is out of range. Edges
// with a dangling endpoint, a self loop or a negative weight are skipped.
func ShortestPath(n int, edges []Edge, src, dst int) (nodes []int, weight float64, ok bool) {
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return nil, 0, false
	}
	if src == dst {
		return []int{src}, 0, true
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		if e.From == e.To || e.From < 0 || e.To < 0 || e.From >= n || e.To >= n {
			continue
		}
		if e.Weight < 0 || math.IsNaN(e.Weight) {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.From), simple.Node(e.To), e.Weight))
	}

	tree := path.DijkstraFrom(simple.Node(src), orderedGraph{g})
	route, w := tree.To(int64(dst))
	if len(route) == 0 || math.IsInf(w, 1) {
		return nil, 0, false
	}
	nodes = make([]int, len(route))
	for i, v := range route {
		nodes[i] = int(v.ID())
	}
	return nodes, w, true
}

// ShortestPath returns the lowest-weight node sequence from src to dst.
func (g *Graph) ShortestPath(src, dst int) ([]int, float64, bool) {
	return ShortestPath(g.NodeCount(), g.Edges(), src, dst)
}
