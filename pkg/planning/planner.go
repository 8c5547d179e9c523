// Package planning finds collision-free paths between points in 3D space.
//
// A SimplePlanner connects the nodes of a planning graph wherever the
// straight segment between two nodes keeps a clearance radius from every
// obstacle, then answers path queries with a shortest-path search over that
// graph. Queries never modify the planner, so any number may run
// concurrently.
package planning

import (
	"slices"
	"sync"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/graph"
)

const (
	DefaultObjectRadius    = 0.1
	DefaultMaxEdgeDistance = 1.0

	// snapDistance is how close a query point must be to a graph node to be
	// treated as that node.
	snapDistance = 1e-9
)

// Planner finds paths that avoid a set of obstacles.
type Planner interface {
	// AddObstacle adds o to the obstacle set.
	AddObstacle(o geometry.Obstacle) Planner

	// FindPath returns waypoints from start to goal, or an empty path when
	// there is none.
	FindPath(start, goal r3.Vec) Path
}

var _ Planner = (*SimplePlanner)(nil)

// Option configures a SimplePlanner.
type Option func(*SimplePlanner)

// WithObjectRadius sets the clearance every edge keeps from obstacles.
// Negative values are ignored.
func WithObjectRadius(r float64) Option {
	return func(p *SimplePlanner) {
		if r >= 0 {
			p.objectRadius = r
		}
	}
}

// WithMaxEdgeDistance sets the longest edge the planner creates. Negative
// values are ignored.
func WithMaxEdgeDistance(d float64) Option {
	return func(p *SimplePlanner) {
		if d >= 0 {
			p.maxEdgeDistance = d
		}
	}
}

// WithLogger sets the planner logger. The default is the graph device's.
func WithLogger(l *console.Logger) Option {
	return func(p *SimplePlanner) { p.log = l }
}

// WithSpatialIndex prefilters obstacles through an R-tree before the exact
// clearance test. Results are the same with or without it.
func WithSpatialIndex(on bool) Option {
	return func(p *SimplePlanner) { p.spatialIndex = on }
}

// FromConfig applies the planner section of a configuration.
func FromConfig(c config.Planner) Option {
	return func(p *SimplePlanner) {
		WithObjectRadius(c.ObjectRadius)(p)
		WithMaxEdgeDistance(c.MaxEdgeDistance)(p)
		WithSpatialIndex(c.SpatialIndex)(p)
	}
}

// SimplePlanner plans over a fixed set of seed nodes. UpdateGraph rebuilds
// the edges from the nodes and the current obstacles; FindPath searches the
// last rebuilt graph. Rebuilding costs O(n²·m) clearance tests for n nodes
// and m obstacles, which bounds the practical graph size.
type SimplePlanner struct {
	mu sync.RWMutex

	graph     *graph.Graph
	obstacles []geometry.Obstacle
	log       *console.Logger

	objectRadius    float64
	maxEdgeDistance float64
	spatialIndex    bool

	// Snapshot searched by FindPath.
	nodes []r3.Vec
	edges []graph.Edge
	stale bool
}

// NewSimplePlanner returns a planner over the nodes of g. Until the first
// UpdateGraph, FindPath searches the edges g already has. A nil g plans
// with no seed nodes, connecting start and goal directly.
func NewSimplePlanner(g *graph.Graph, opts ...Option) *SimplePlanner {
	if g == nil {
		g = graph.New(device.New())
	}
	p := &SimplePlanner{
		graph:           g,
		log:             g.Device().Logger(),
		objectRadius:    DefaultObjectRadius,
		maxEdgeDistance: DefaultMaxEdgeDistance,
		nodes:           g.Positions(),
		edges:           g.Edges(),
		stale:           true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Graph returns the planning graph. It is rebuilt in place by UpdateGraph.
func (p *SimplePlanner) Graph() *graph.Graph { return p.graph }

func (p *SimplePlanner) ObjectRadius() float64    { return p.objectRadius }
func (p *SimplePlanner) MaxEdgeDistance() float64 { return p.maxEdgeDistance }

// ObstacleCount returns the number of obstacles added so far.
func (p *SimplePlanner) ObstacleCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.obstacles)
}

// Release returns the device memory of the graph and of every obstacle that
// holds any. Neither may be used afterwards.
func (p *SimplePlanner) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph.Release()
	for _, o := range p.obstacles {
		if r, ok := o.(interface{ Release() }); ok {
			r.Release()
		}
	}
	p.obstacles = nil
	p.nodes, p.edges = nil, nil
}

// Stale reports whether obstacles were added since the last UpdateGraph.
func (p *SimplePlanner) Stale() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stale
}

// AddObstacle appends o to the obstacle set. A nil obstacle is ignored.
func (p *SimplePlanner) AddObstacle(o geometry.Obstacle) Planner {
	if o == nil {
		return p
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.obstacles = append(p.obstacles, o)
	p.stale = true
	return p
}

// UpdateGraph replaces the graph edges: every pair of nodes at most
// MaxEdgeDistance apart is joined when the segment between them clears all
// obstacles by ObjectRadius. Edges the graph had before are discarded.
func (p *SimplePlanner) UpdateGraph() *SimplePlanner {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.newClearance()
	pos := p.graph.Positions()
	p.graph.ClearEdges()
	n, err := p.graph.ConnectWithinDistance(p.maxEdgeDistance, func(i, j int) bool {
		return c.clears(pos[i], pos[j])
	})
	if err != nil {
		p.log.Errorf("planning: update graph: %v", err)
	}

	p.nodes = pos
	p.edges = p.graph.Edges()
	p.stale = false
	p.log.Infof("planning: graph rebuilt: %d nodes, %d edges, %d obstacles", len(pos), n, len(c.obstacles))
	return p
}

// FindPath inserts start and goal into a private copy of the graph,
// connects them by the same distance and clearance rule as UpdateGraph, and
// returns the shortest route. A query point within 1e-9 of a graph node is
// that node. When start equals goal the path is that single point, if the
// point itself is clear of every obstacle. Equal-length routes are broken by
// node order, so identical queries give identical paths.
func (p *SimplePlanner) FindPath(start, goal r3.Vec) Path {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c := p.newClearance()
	if r3.Norm(r3.Sub(goal, start)) <= snapDistance {
		if c.clears(start, start) {
			return Path{start}
		}
		p.log.Debugf("planning: %v is blocked", start)
		return nil
	}
	if p.stale && len(p.obstacles) > 0 {
		p.log.Warningf("planning: searching a graph built before the latest obstacles; call UpdateGraph")
	}

	all := slices.Clip(p.nodes)
	edges := slices.Clone(p.edges)
	var temps []int
	index := func(q r3.Vec) int {
		if i, ok := snap(p.nodes, q); ok {
			return i
		}
		all = append(all, q)
		temps = append(temps, len(all)-1)
		return len(all) - 1
	}
	src, dst := index(start), index(goal)

	// Temporary nodes sit after the graph nodes; linking each one to every
	// lower index joins it to the graph and to the other query point.
	for _, t := range temps {
		for j := 0; j < t; j++ {
			d := r3.Norm(r3.Sub(all[t], all[j]))
			if d > p.maxEdgeDistance || !c.clears(all[j], all[t]) {
				continue
			}
			edges = append(edges, graph.Edge{From: j, To: t, Weight: d})
		}
	}

	route, _, ok := graph.ShortestPath(len(all), edges, src, dst)
	if !ok {
		p.log.Debugf("planning: no path from %v to %v", start, goal)
		return nil
	}
	path := make(Path, len(route))
	for i, v := range route {
		path[i] = all[v]
	}
	return slices.Compact(path)
}

// snap returns the first node within snapDistance of q.
func snap(nodes []r3.Vec, q r3.Vec) (int, bool) {
	for i, n := range nodes {
		if r3.Norm(r3.Sub(n, q)) <= snapDistance {
			return i, true
		}
	}
	return 0, false
}

// clearance tests segments against host snapshots of the obstacles.
type clearance struct {
	obstacles []geometry.Obstacle
	index     *obstacleIndex
	radius    float64
}

// newClearance snapshots the obstacles. Callers hold p.mu.
func (p *SimplePlanner) newClearance() *clearance {
	hosts := lo.FilterMap(p.obstacles, func(o geometry.Obstacle, _ int) (geometry.Obstacle, bool) {
		return geometry.HostObstacle(o)
	})
	c := &clearance{obstacles: hosts, radius: p.objectRadius}
	if p.spatialIndex && len(hosts) > 0 {
		idx, err := newObstacleIndex(hosts, p.objectRadius)
		if err != nil {
			p.log.Warningf("planning: spatial index disabled: %v", err)
		} else {
			c.index = idx
		}
	}
	return c
}

// clears reports whether segment ab keeps the clearance radius from every
// obstacle. It is safe for concurrent use.
func (c *clearance) clears(a, b r3.Vec) bool {
	if c.index != nil {
		for _, i := range c.index.candidates(a, b) {
			if !c.obstacles[i].ClearsSegment(a, b, c.radius) {
				return false
			}
		}
		return true
	}
	for _, o := range c.obstacles {
		if !o.ClearsSegment(a, b, c.radius) {
			return false
		}
	}
	return true
}
