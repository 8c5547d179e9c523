// Package geometry provides device-resident 3D geometries and the shared
// engine that computes their bounds and applies rigid and affine
// transforms.
//
// Every concrete geometry keeps its coordinates in device buffers and
// delegates to the engine functions in geometry3d.go. Synchronous methods
// (Transform, Translate, Scale, Rotate) run on the device default stream
// and return the receiver for chaining. The *Async forms take an explicit
// stream and return once the work is submitted; callers synchronize the
// stream before reading.
//
// Reductions over an empty point set return EmptyBound without launching a
// kernel.
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
)

// EmptyBound is the min bound, max bound and center of a geometry with no
// points.
var EmptyBound = r3.Vec{}

// GeometryType identifies a concrete geometry.
type GeometryType int

const (
	TypeUnspecified GeometryType = iota
	TypePointCloud
	TypeTriangleMesh
	TypeVoxelGrid
	TypeAxisAlignedBoundingBox
	TypeSolid
	TypeGraph
)

func (t GeometryType) String() string {
	switch t {
	case TypePointCloud:
		return "PointCloud"
	case TypeTriangleMesh:
		return "TriangleMesh"
	case TypeVoxelGrid:
		return "VoxelGrid"
	case TypeAxisAlignedBoundingBox:
		return "AxisAlignedBoundingBox"
	case TypeSolid:
		return "Solid"
	case TypeGraph:
		return "Graph"
	default:
		return fmt.Sprintf("GeometryType(%d)", int(t))
	}
}

// Bounded is implemented by anything with an axis-aligned extent.
type Bounded interface {
	GetMinBound() r3.Vec
	GetMaxBound() r3.Vec
	GetCenter() r3.Vec
	GetAxisAlignedBoundingBox() AxisAlignedBoundingBox
}

// Geometry3D is the common surface of device geometries.
type Geometry3D interface {
	Bounded
	GetGeometryType() GeometryType
	IsEmpty() bool
	Clear()
}

// Transformer applies transforms on an explicit stream. The synchronous
// forms on each concrete type are built on these.
type Transformer interface {
	TransformAsync(s *device.Stream, m Matrix4) error
	TranslateAsync(s *device.Stream, t r3.Vec, relative bool) error
	ScaleAsync(s *device.Stream, k float64, center bool) error
	RotateAsync(s *device.Stream, r Matrix3, center bool) error
}

// Obstacle is a geometry the planner must keep clear of.
type Obstacle interface {
	GetAxisAlignedBoundingBox() AxisAlignedBoundingBox

	// ClearsSegment reports whether every point of segment ab is at least
	// radius away from the obstacle.
	ClearsSegment(a, b r3.Vec, radius float64) bool
}

// Compile-time interface checks.
var (
	_ Geometry3D  = (*PointCloud)(nil)
	_ Transformer = (*PointCloud)(nil)
	_ Obstacle    = (*PointCloud)(nil)
	_ Geometry3D  = (*TriangleMesh)(nil)
	_ Transformer = (*TriangleMesh)(nil)
	_ Obstacle    = (*TriangleMesh)(nil)
	_ Geometry3D  = (*VoxelGrid)(nil)
	_ Transformer = (*VoxelGrid)(nil)
	_ Obstacle    = (*VoxelGrid)(nil)
	_ Obstacle    = AxisAlignedBoundingBox{}
	_ Obstacle    = (*SolidObstacle)(nil)
)

// synchronize waits for s and logs a kernel failure. Synchronous methods
// have no error return, so failures surface in the device log.
func synchronize(dev *device.Device, s *device.Stream, op string) {
	if err := s.Synchronize(); err != nil {
		dev.Logger().Errorf("geometry: %s: %v", op, err)
	}
}

// emptyBuffer returns a zero-length buffer. Zero-length allocations never
// exceed the memory limit.
func emptyBuffer[T any](d *device.Device) *device.Buffer[T] {
	b, _ := device.NewBuffer[T](d, 0)
	return b
}

func vecAt(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func minVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

func maxVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}
