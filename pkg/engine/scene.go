package engine

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/graph"
	"github.com/chazu/georoute/pkg/kernel"
	"github.com/chazu/georoute/pkg/planning"
)

// ObstacleKind identifies the shape of a scene obstacle.
type ObstacleKind int

const (
	ObstacleBox ObstacleKind = iota
	ObstaclePoints
	ObstacleSolid
)

func (k ObstacleKind) String() string {
	switch k {
	case ObstacleBox:
		return "box"
	case ObstaclePoints:
		return "points"
	case ObstacleSolid:
		return "solid"
	default:
		return fmt.Sprintf("ObstacleKind(%d)", int(k))
	}
}

// SceneNode is a planning graph node declared by a script.
type SceneNode struct {
	Name     string `json:"name,omitempty"`
	Position r3.Vec `json:"position"`
}

// SceneObstacle is an obstacle declared by a script. Exactly one of Box,
// Points and Solid is meaningful, according to Kind.
type SceneObstacle struct {
	Name   string
	Kind   ObstacleKind
	Box    geometry.AxisAlignedBoundingBox
	Points []r3.Vec
	Solid  kernel.Solid
}

// PlannerSettings are planner parameters set by a script. They override the
// configuration.
type PlannerSettings struct {
	ObjectRadius    float64
	MaxEdgeDistance float64
	SpatialIndex    bool
}

// Query is a path request declared by a script.
type Query struct {
	Name  string `json:"name,omitempty"`
	Start r3.Vec `json:"start"`
	Goal  r3.Vec `json:"goal"`
}

// QueryResult pairs a query with the path found for it.
type QueryResult struct {
	Query
	Path planning.Path `json:"path"`
}

// Scene is the output of evaluating a script: graph nodes, obstacles,
// planner settings and path queries, all host-side.
type Scene struct {
	Nodes     []SceneNode
	Obstacles []SceneObstacle
	Planner   *PlannerSettings // nil unless the script calls planner
	Queries   []Query
	Warnings  []EvalWarning

	names map[string]int
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{names: make(map[string]int)}
}

// NodeCount returns the number of declared nodes.
func (s *Scene) NodeCount() int { return len(s.Nodes) }

// Lookup returns the index of the named node.
func (s *Scene) Lookup(name string) (int, bool) {
	i, ok := s.names[name]
	return i, ok
}

func (s *Scene) addNode(name string, p r3.Vec) (int, error) {
	if name != "" {
		if _, dup := s.names[name]; dup {
			return 0, fmt.Errorf("duplicate node name %q", name)
		}
		s.names[name] = len(s.Nodes)
	}
	s.Nodes = append(s.Nodes, SceneNode{Name: name, Position: p})
	return len(s.Nodes) - 1, nil
}

// Graph uploads the scene nodes to a new planning graph on d.
func (s *Scene) Graph(d *device.Device) (*graph.Graph, error) {
	g := graph.New(d)
	for _, n := range s.Nodes {
		var err error
		if n.Name != "" {
			_, err = g.AddNamedNode(n.Name, n.Position)
		} else {
			_, err = g.AddNode(n.Position)
		}
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("engine: scene graph: %w", err)
		}
	}
	return g, nil
}

// BuildObstacles converts the scene obstacles to planner obstacles. Point
// obstacles become point clouds on d, owned by the caller until handed to a
// planner; solids test clearance exactly when exact is set. On error nothing
// stays allocated.
func (s *Scene) BuildObstacles(d *device.Device, exact bool) (_ []geometry.Obstacle, err error) {
	out := make([]geometry.Obstacle, 0, len(s.Obstacles))
	defer func() {
		if err != nil {
			ReleaseObstacles(out)
		}
	}()
	for _, o := range s.Obstacles {
		switch o.Kind {
		case ObstacleBox:
			out = append(out, o.Box)
		case ObstaclePoints:
			pc, err := geometry.NewPointCloudFromPoints(d, o.Points)
			if err != nil {
				return nil, fmt.Errorf("engine: obstacle %q: %w", o.Name, err)
			}
			out = append(out, pc)
		case ObstacleSolid:
			out = append(out, geometry.NewSolidObstacle(o.Name, o.Solid, exact))
		default:
			return nil, fmt.Errorf("engine: obstacle %q: unknown kind %s", o.Name, o.Kind)
		}
	}
	return out, nil
}

// ReleaseObstacles returns the device memory held by point cloud obstacles.
func ReleaseObstacles(obstacles []geometry.Obstacle) {
	for _, o := range obstacles {
		if pc, ok := o.(*geometry.PointCloud); ok {
			pc.Release()
		}
	}
}

// NewPlanner builds a planner over the scene on d, configured from c and
// then from the script's own planner settings, and rebuilds its graph. The
// planner owns its graph and point cloud obstacles; Release frees them.
func (s *Scene) NewPlanner(d *device.Device, c config.Planner) (*planning.SimplePlanner, error) {
	g, err := s.Graph(d)
	if err != nil {
		return nil, err
	}
	obstacles, err := s.BuildObstacles(d, c.ExactSolids)
	if err != nil {
		g.Release()
		return nil, err
	}
	opts := []planning.Option{planning.FromConfig(c)}
	if s.Planner != nil {
		opts = append(opts,
			planning.WithObjectRadius(s.Planner.ObjectRadius),
			planning.WithMaxEdgeDistance(s.Planner.MaxEdgeDistance),
			planning.WithSpatialIndex(s.Planner.SpatialIndex))
	}
	p := planning.NewSimplePlanner(g, opts...)
	for _, o := range obstacles {
		p.AddObstacle(o)
	}
	return p.UpdateGraph(), nil
}

// Plan builds a planner, answers every query in order and releases the
// planner's device memory.
func (s *Scene) Plan(d *device.Device, c config.Planner) ([]QueryResult, error) {
	p, err := s.NewPlanner(d, c)
	if err != nil {
		return nil, err
	}
	defer p.Release()
	results := make([]QueryResult, len(s.Queries))
	for i, q := range s.Queries {
		results[i] = QueryResult{Query: q, Path: p.FindPath(q.Start, q.Goal)}
	}
	return results, nil
}
