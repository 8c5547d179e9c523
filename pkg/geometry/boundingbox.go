package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// AxisAlignedBoundingBox is a box given by its min and max corners. It is a
// host value; it owns no device memory.
type AxisAlignedBoundingBox struct {
	MinBound r3.Vec `json:"min_bound"`
	MaxBound r3.Vec `json:"max_bound"`
}

// NewAxisAlignedBoundingBox returns the box spanned by two corners in any
// order.
func NewAxisAlignedBoundingBox(a, b r3.Vec) AxisAlignedBoundingBox {
	return AxisAlignedBoundingBox{MinBound: minVec(a, b), MaxBound: maxVec(a, b)}
}

// AxisAlignedBoundingBoxFromPoints returns the host-side bounds of pts.
// An empty slice yields a box with both corners at EmptyBound.
func AxisAlignedBoundingBoxFromPoints(pts []r3.Vec) AxisAlignedBoundingBox {
	if len(pts) == 0 {
		return AxisAlignedBoundingBox{MinBound: EmptyBound, MaxBound: EmptyBound}
	}
	box := AxisAlignedBoundingBox{MinBound: pts[0], MaxBound: pts[0]}
	for _, p := range pts[1:] {
		box.MinBound = minVec(box.MinBound, p)
		box.MaxBound = maxVec(box.MaxBound, p)
	}
	return box
}

// GetGeometryType returns TypeAxisAlignedBoundingBox.
func (b AxisAlignedBoundingBox) GetGeometryType() GeometryType {
	return TypeAxisAlignedBoundingBox
}

func (b AxisAlignedBoundingBox) GetMinBound() r3.Vec { return b.MinBound }
func (b AxisAlignedBoundingBox) GetMaxBound() r3.Vec { return b.MaxBound }

// GetCenter returns the midpoint of the box.
func (b AxisAlignedBoundingBox) GetCenter() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.MinBound, b.MaxBound))
}

// GetAxisAlignedBoundingBox returns b.
func (b AxisAlignedBoundingBox) GetAxisAlignedBoundingBox() AxisAlignedBoundingBox { return b }

// GetExtent returns the edge lengths.
func (b AxisAlignedBoundingBox) GetExtent() r3.Vec {
	return r3.Sub(b.MaxBound, b.MinBound)
}

// GetHalfExtent returns half the edge lengths.
func (b AxisAlignedBoundingBox) GetHalfExtent() r3.Vec {
	return r3.Scale(0.5, b.GetExtent())
}

// GetMaxExtent returns the longest edge length.
func (b AxisAlignedBoundingBox) GetMaxExtent() float64 {
	e := b.GetExtent()
	return max(e.X, e.Y, e.Z)
}

// Volume returns the box volume.
func (b AxisAlignedBoundingBox) Volume() float64 {
	e := b.GetExtent()
	return e.X * e.Y * e.Z
}

// IsEmpty reports whether the box has zero volume.
func (b AxisAlignedBoundingBox) IsEmpty() bool {
	return b.Volume() <= 0
}

// GetBoxPoints returns the eight corners.
func (b AxisAlignedBoundingBox) GetBoxPoints() [8]r3.Vec {
	lo, hi := b.MinBound, b.MaxBound
	return [8]r3.Vec{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
	}
}

// Contains reports whether p lies inside or on the box.
func (b AxisAlignedBoundingBox) Contains(p r3.Vec) bool {
	return p.X >= b.MinBound.X && p.X <= b.MaxBound.X &&
		p.Y >= b.MinBound.Y && p.Y <= b.MaxBound.Y &&
		p.Z >= b.MinBound.Z && p.Z <= b.MaxBound.Z
}

// Expand returns the box grown by r on every side.
func (b AxisAlignedBoundingBox) Expand(r float64) AxisAlignedBoundingBox {
	d := r3.Vec{X: r, Y: r, Z: r}
	return AxisAlignedBoundingBox{MinBound: r3.Sub(b.MinBound, d), MaxBound: r3.Add(b.MaxBound, d)}
}

// Union returns the smallest box containing b and o.
func (b AxisAlignedBoundingBox) Union(o AxisAlignedBoundingBox) AxisAlignedBoundingBox {
	return AxisAlignedBoundingBox{MinBound: minVec(b.MinBound, o.MinBound), MaxBound: maxVec(b.MaxBound, o.MaxBound)}
}

// Intersects reports whether b and o overlap, touching included.
func (b AxisAlignedBoundingBox) Intersects(o AxisAlignedBoundingBox) bool {
	return b.MinBound.X <= o.MaxBound.X && o.MinBound.X <= b.MaxBound.X &&
		b.MinBound.Y <= o.MaxBound.Y && o.MinBound.Y <= b.MaxBound.Y &&
		b.MinBound.Z <= o.MaxBound.Z && o.MinBound.Z <= b.MaxBound.Z
}

// DistanceToPoint returns the Euclidean distance from p to the box, 0 if p
// is inside.
func (b AxisAlignedBoundingBox) DistanceToPoint(p r3.Vec) float64 {
	d := r3.Sub(p, b.ClosestPoint(p))
	return r3.Norm(d)
}

// ClosestPoint returns the point of the box nearest to p.
func (b AxisAlignedBoundingBox) ClosestPoint(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Max(b.MinBound.X, math.Min(p.X, b.MaxBound.X)),
		Y: math.Max(b.MinBound.Y, math.Min(p.Y, b.MaxBound.Y)),
		Z: math.Max(b.MinBound.Z, math.Min(p.Z, b.MaxBound.Z)),
	}
}

// IntersectsSegment reports whether segment ab touches the box (slab test).
func (b AxisAlignedBoundingBox) IntersectsSegment(a, c r3.Vec) bool {
	d := r3.Sub(c, a)
	tmin, tmax := 0.0, 1.0
	for axis := 0; axis < 3; axis++ {
		p, dir := vecAt(a, axis), vecAt(d, axis)
		lo, hi := vecAt(b.MinBound, axis), vecAt(b.MaxBound, axis)
		if dir == 0 {
			if p < lo || p > hi {
				return false
			}
			continue
		}
		t1, t2 := (lo-p)/dir, (hi-p)/dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// segmentSearchIterations bounds the ternary search in DistanceToSegment.
// Each step keeps two thirds of the interval.
const segmentSearchIterations = 100

// DistanceToSegment returns the minimum distance between segment ac and
// the box. The distance from a point moving linearly along the segment to a
// convex set is a convex function of the segment parameter, so a ternary
// search converges to the minimum.
func (b AxisAlignedBoundingBox) DistanceToSegment(a, c r3.Vec) float64 {
	if b.IntersectsSegment(a, c) {
		return 0
	}
	d := r3.Sub(c, a)
	f := func(t float64) float64 {
		return b.DistanceToPoint(r3.Add(a, r3.Scale(t, d)))
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < segmentSearchIterations; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if f(m1) <= f(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	return min(f((lo+hi)/2), f(0), f(1))
}

// ClearsSegment reports whether segment ab stays at least radius away from
// the box. A segment touching the box never clears it, even for radius 0.
func (b AxisAlignedBoundingBox) ClearsSegment(a, c r3.Vec, radius float64) bool {
	if b.IntersectsSegment(a, c) {
		return false
	}
	return b.DistanceToSegment(a, c) >= radius
}
