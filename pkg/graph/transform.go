package graph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/geometry"
)

var (
	_ geometry.Geometry3D  = (*Graph)(nil)
	_ geometry.Transformer = (*Graph)(nil)
)

// GetGeometryType returns geometry.TypeGraph.
func (g *Graph) GetGeometryType() geometry.GeometryType { return geometry.TypeGraph }

// IsEmpty reports whether the graph has no nodes.
func (g *Graph) IsEmpty() bool { return g.nodes.IsEmpty() }

// Clear removes every node and edge.
func (g *Graph) Clear() {
	g.sync("clear")
	_ = g.nodes.Resize(0)
	g.names = nil
	clear(g.nameIndex)
	clear(g.weights)
	g.adj = nil
}

func (g *Graph) bounds() (r3.Vec, r3.Vec) {
	lo, hi, err := geometry.ComputeBounds(g.dev.DefaultStream(), g.nodes)
	if err != nil {
		g.dev.Logger().Errorf("graph: bounds: %v", err)
	}
	return lo, hi
}

func (g *Graph) GetMinBound() r3.Vec {
	lo, _ := g.bounds()
	return lo
}

func (g *Graph) GetMaxBound() r3.Vec {
	_, hi := g.bounds()
	return hi
}

// GetCenter returns the mean node position.
func (g *Graph) GetCenter() r3.Vec {
	c, err := geometry.ComputeCenter(g.dev.DefaultStream(), g.nodes)
	if err != nil {
		g.dev.Logger().Errorf("graph: center: %v", err)
	}
	return c
}

func (g *Graph) GetAxisAlignedBoundingBox() geometry.AxisAlignedBoundingBox {
	lo, hi := g.bounds()
	return geometry.AxisAlignedBoundingBox{MinBound: lo, MaxBound: hi}
}

// TransformAsync applies m to the node positions. Edge weights are
// recomputed in stream order once the positions are updated.
func (g *Graph) TransformAsync(s *device.Stream, m geometry.Matrix4) error {
	if g.IsEmpty() {
		return nil
	}
	geometry.TransformPoints(s, m, g.nodes)
	s.Enqueue(g.reweight)
	return nil
}

// TranslateAsync moves the nodes. Edge lengths do not change.
func (g *Graph) TranslateAsync(s *device.Stream, t r3.Vec, relative bool) error {
	return geometry.TranslatePoints(s, t, g.nodes, relative)
}

// ScaleAsync scales the nodes and then rescales the edge weights.
func (g *Graph) ScaleAsync(s *device.Stream, k float64, center bool) error {
	if g.IsEmpty() {
		return nil
	}
	if err := geometry.ScalePoints(s, k, g.nodes, center); err != nil {
		return err
	}
	s.Enqueue(g.reweight)
	return nil
}

// RotateAsync rotates the nodes. Edge lengths do not change.
func (g *Graph) RotateAsync(s *device.Stream, r geometry.Matrix3, center bool) error {
	return geometry.RotatePoints(s, r, g.nodes, center)
}

func (g *Graph) Transform(m geometry.Matrix4) *Graph {
	g.run("transform", func(s *device.Stream) error { return g.TransformAsync(s, m) })
	return g
}

func (g *Graph) Translate(t r3.Vec, relative bool) *Graph {
	g.run("translate", func(s *device.Stream) error { return g.TranslateAsync(s, t, relative) })
	return g
}

func (g *Graph) Scale(k float64, center bool) *Graph {
	g.run("scale", func(s *device.Stream) error { return g.ScaleAsync(s, k, center) })
	return g
}

func (g *Graph) Rotate(r geometry.Matrix3, center bool) *Graph {
	g.run("rotate", func(s *device.Stream) error { return g.RotateAsync(s, r, center) })
	return g
}

func (g *Graph) run(op string, submit func(s *device.Stream) error) {
	if err := submit(g.dev.DefaultStream()); err != nil {
		g.dev.Logger().Errorf("graph: %s: %v", op, err)
	}
	g.sync(op)
}
