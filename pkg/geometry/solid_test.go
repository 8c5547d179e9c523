package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/kernel/sdfx"
)

// sliceSolid is a distance field along x with a sliver of solid in
// (0.4e-6, 0.6e-6) and a surface exactly 0.1 away just before it.
type sliceSolid struct{}

func (sliceSolid) BoundingBox() (min, max [3]float64) {
	return [3]float64{-1, -1, -1}, [3]float64{2, 1, 1}
}

func (sliceSolid) Distance(p [3]float64) float64 {
	switch x := p[0]; {
	case x > 0.4e-6 && x < 0.6e-6:
		return -1
	case x < 2e-6:
		return 0.1
	default:
		return 1.1
	}
}

func TestSolidObstacleBoundingBox(t *testing.T) {
	k := sdfx.New()
	o := NewSolidObstacle("crate", k.Translate(k.Box(2, 4, 6), 1, 0, 0), false)
	box := o.GetAxisAlignedBoundingBox()
	assertVecNear(t, r3.Vec{X: 0, Y: -2, Z: -3}, box.MinBound, 1e-9)
	assertVecNear(t, r3.Vec{X: 2, Y: 2, Z: 3}, box.MaxBound, 1e-9)
	assert.Equal(t, TypeSolid, o.GetGeometryType())
}

func TestSolidObstacleClearance(t *testing.T) {
	k := sdfx.New()
	sphere := k.Sphere(1)

	// The segment passes the sphere's bounding-box corner region: inside
	// the box margin, but well clear of the sphere itself.
	a := r3.Vec{X: -3, Y: 0.95, Z: 0.95}
	b := r3.Vec{X: 3, Y: 0.95, Z: 0.95}

	boxOnly := NewSolidObstacle("ball", sphere, false)
	exact := NewSolidObstacle("ball", sphere, true)
	assert.False(t, boxOnly.ClearsSegment(a, b, 0.1))
	assert.True(t, exact.ClearsSegment(a, b, 0.1))

	// Through the middle is blocked either way.
	through := r3.Vec{X: 3}
	assert.False(t, exact.ClearsSegment(r3.Vec{X: -3}, through, 0.1))

	// Far away is clear either way.
	assert.True(t, boxOnly.ClearsSegment(r3.Vec{X: -3, Y: 5}, r3.Vec{X: 3, Y: 5}, 0.1))
}

func TestSolidObstacleDegenerateSegment(t *testing.T) {
	k := sdfx.New()
	o := NewSolidObstacle("ball", k.Sphere(1), true)
	p := r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}
	assert.True(t, o.ClearsSegment(p, p, 0.5))
	assert.False(t, o.ClearsSegment(r3.Vec{}, r3.Vec{}, 0))
	assert.InDelta(t, -1, o.Distance(r3.Vec{}), 1e-9)
}

func TestHostObstacle(t *testing.T) {
	d := newTestDevice()
	box := NewAxisAlignedBoundingBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	h, ok := HostObstacle(box)
	assert.True(t, ok)
	assert.Equal(t, box, h)

	solid := NewSolidObstacle("ball", sdfx.New().Sphere(1), true)
	h, ok = HostObstacle(solid)
	assert.True(t, ok)
	assert.Same(t, solid, h)

	pc, err := NewPointCloudFromPoints(d, []r3.Vec{{}, {X: 2, Y: 2, Z: 2}})
	assert.NoError(t, err)
	h, ok = HostObstacle(pc)
	assert.True(t, ok)
	assert.Equal(t, pc.GetAxisAlignedBoundingBox(), h)

	_, ok = HostObstacle(NewPointCloud(d))
	assert.False(t, ok)
}

func TestSolidObstacleForcedStepChecksMidpoint(t *testing.T) {
	o := NewSolidObstacle("sliver", sliceSolid{}, true)
	assert.False(t, o.ClearsSegment(r3.Vec{}, r3.Vec{X: 1}, 0.1))
	assert.True(t, o.ClearsSegment(r3.Vec{X: 3e-6}, r3.Vec{X: 1}, 0.1))
}
