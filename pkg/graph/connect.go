package graph

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ConnectWithinDistance adds an edge, weighted by Euclidean length, between
// every pair of nodes at most maxDist apart for which keep returns true. A
// nil keep accepts every pair. Existing edges are kept.
//
// Candidate pairs are computed by a device kernel on a stream of their own,
// one row per node, and keep is called from that kernel: it must be safe for
// concurrent use and must not wait on the device. Edges are added in (i, j)
// order. It returns the number of edges added or replaced.
func (g *Graph) ConnectWithinDistance(maxDist float64, keep func(i, j int) bool) (int, error) {
	if maxDist < 0 {
		return 0, fmt.Errorf("graph: negative connection distance %g", maxDist)
	}
	g.sync("connect")
	n := g.NodeCount()
	if n < 2 {
		return 0, nil
	}

	pos := g.nodes.View()
	rows := make([][]int, n)
	s := g.dev.NewStream()
	s.Launch(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			var row []int
			for j := i + 1; j < n; j++ {
				if r3.Norm(r3.Sub(pos[j], pos[i])) > maxDist {
					continue
				}
				if keep == nil || keep(i, j) {
					row = append(row, j)
				}
			}
			rows[i] = row
		}
	})
	if err := s.Synchronize(); err != nil {
		return 0, fmt.Errorf("graph: connect: %w", err)
	}

	added := 0
	for i, row := range rows {
		for _, j := range row {
			if err := g.AddEdge(i, j, r3.Norm(r3.Sub(pos[j], pos[i]))); err != nil {
				return added, err
			}
			added++
		}
	}
	g.dev.Logger().Debugf("graph: connected %d pairs within %g", added, maxDist)
	return added, nil
}

// SetEdgeWeightsFromDistance sets every edge weight to the Euclidean
// distance between its endpoints.
func (g *Graph) SetEdgeWeightsFromDistance() {
	g.sync("reweight")
	g.reweight()
}

func (g *Graph) reweight() {
	pos := g.nodes.View()
	for k := range g.weights {
		g.weights[k] = r3.Norm(r3.Sub(pos[k[1]], pos[k[0]]))
	}
}
