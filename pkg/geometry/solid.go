package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/kernel"
)

// maxTraceSteps bounds the sphere tracing loop in SolidObstacle. A segment
// that needs more steps is treated as blocked.
const maxTraceSteps = 10000

// SolidObstacle is a kernel solid used as a planning obstacle. By default
// clearance is tested against the solid's bounding box; with Exact set it
// is tested against the signed distance field.
//
// Exact tracing advances at least length·1e-6 per step and samples the
// midpoint of such forced steps, so a violation narrower than about
// length·5e-7 can go unseen. A segment that hugs the clearance surface for
// long enough to exhaust maxTraceSteps is reported as blocked.
type SolidObstacle struct {
	Name  string
	Solid kernel.Solid
	Exact bool
}

// NewSolidObstacle wraps s.
func NewSolidObstacle(name string, s kernel.Solid, exact bool) *SolidObstacle {
	return &SolidObstacle{Name: name, Solid: s, Exact: exact}
}

// GetGeometryType returns TypeSolid.
func (o *SolidObstacle) GetGeometryType() GeometryType { return TypeSolid }

// GetAxisAlignedBoundingBox returns the solid's bounding box.
func (o *SolidObstacle) GetAxisAlignedBoundingBox() AxisAlignedBoundingBox {
	lo, hi := o.Solid.BoundingBox()
	return AxisAlignedBoundingBox{
		MinBound: r3.Vec{X: lo[0], Y: lo[1], Z: lo[2]},
		MaxBound: r3.Vec{X: hi[0], Y: hi[1], Z: hi[2]},
	}
}

// Distance returns the signed distance from p to the solid surface.
func (o *SolidObstacle) Distance(p r3.Vec) float64 {
	return o.Solid.Distance([3]float64{p.X, p.Y, p.Z})
}

// ClearsSegment reports whether segment ab stays radius away from the
// solid.
func (o *SolidObstacle) ClearsSegment(a, b r3.Vec, radius float64) bool {
	box := o.GetAxisAlignedBoundingBox()
	if box.ClearsSegment(a, b, radius) {
		return true
	}
	if !o.Exact {
		return false
	}
	return o.traceSegment(a, b, radius)
}

// traceSegment marches from a to b. At each point no surface lies closer
// than the field value, so the march may advance by the field value minus
// radius without skipping a violation.
func (o *SolidObstacle) traceSegment(a, b r3.Vec, radius float64) bool {
	d := r3.Sub(b, a)
	length := r3.Norm(d)
	if length == 0 {
		return o.Distance(a) >= radius
	}
	dir := r3.Scale(1/length, d)
	minStep := length * 1e-6
	t := 0.0
	for step := 0; step < maxTraceSteps; step++ {
		dist := o.Distance(r3.Add(a, r3.Scale(t, dir)))
		if dist < radius {
			return false
		}
		if t >= length {
			return true
		}
		if dist-radius < minStep {
			mid := min(t+minStep/2, length)
			if o.Distance(r3.Add(a, r3.Scale(mid, dir))) < radius {
				return false
			}
		}
		t = min(t+max(dist-radius, minStep), length)
	}
	return false
}
