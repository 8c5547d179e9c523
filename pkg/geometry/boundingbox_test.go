package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox() AxisAlignedBoundingBox {
	return NewAxisAlignedBoundingBox(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: -1, Y: -1, Z: -1})
}

func TestAxisAlignedBoundingBoxBasics(t *testing.T) {
	b := unitBox()
	assert.Equal(t, r3.Vec{X: -1, Y: -1, Z: -1}, b.MinBound)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, b.MaxBound)
	assert.Equal(t, r3.Vec{}, b.GetCenter())
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 2}, b.GetExtent())
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, b.GetHalfExtent())
	assert.Equal(t, 2.0, b.GetMaxExtent())
	assert.Equal(t, 8.0, b.Volume())
	assert.False(t, b.IsEmpty())
	assert.True(t, b.Contains(r3.Vec{X: 1, Y: 0, Z: -1}))
	assert.False(t, b.Contains(r3.Vec{X: 1.01}))
	for _, p := range b.GetBoxPoints() {
		assert.True(t, b.Contains(p))
	}
	assert.Equal(t, TypeAxisAlignedBoundingBox, b.GetGeometryType())
}

func TestAxisAlignedBoundingBoxFromPoints(t *testing.T) {
	empty := AxisAlignedBoundingBoxFromPoints(nil)
	assert.Equal(t, EmptyBound, empty.MinBound)
	assert.Equal(t, EmptyBound, empty.MaxBound)

	b := AxisAlignedBoundingBoxFromPoints([]r3.Vec{{X: 1, Y: 5}, {X: -2, Z: 3}})
	assert.Equal(t, r3.Vec{X: -2}, b.MinBound)
	assert.Equal(t, r3.Vec{X: 1, Y: 5, Z: 3}, b.MaxBound)
}

func TestAxisAlignedBoundingBoxUnionIntersects(t *testing.T) {
	a := unitBox()
	b := NewAxisAlignedBoundingBox(r3.Vec{X: 1}, r3.Vec{X: 3, Y: 1, Z: 1})
	c := NewAxisAlignedBoundingBox(r3.Vec{X: 5}, r3.Vec{X: 6, Y: 1, Z: 1})
	assert.True(t, a.Intersects(b), "touching boxes intersect")
	assert.False(t, a.Intersects(c))
	u := a.Union(c)
	assert.Equal(t, r3.Vec{X: -1, Y: -1, Z: -1}, u.MinBound)
	assert.Equal(t, r3.Vec{X: 6, Y: 1, Z: 1}, u.MaxBound)
	e := a.Expand(0.5)
	assert.Equal(t, r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, e.MaxBound)
}

func TestDistanceToPoint(t *testing.T) {
	b := unitBox()
	assert.Equal(t, 0.0, b.DistanceToPoint(r3.Vec{}))
	assert.Equal(t, 2.0, b.DistanceToPoint(r3.Vec{X: 3}))
	assert.InDelta(t, math.Sqrt(3), b.DistanceToPoint(r3.Vec{X: 2, Y: 2, Z: 2}), tol)
}

func TestDistanceToSegment(t *testing.T) {
	b := unitBox()
	tests := []struct {
		name string
		a, c r3.Vec
		want float64
	}{
		{"through", r3.Vec{X: -5}, r3.Vec{X: 5}, 0},
		{"endpoint inside", r3.Vec{}, r3.Vec{X: 9}, 0},
		{"grazing face", r3.Vec{X: -5, Y: 1}, r3.Vec{X: 5, Y: 1}, 0},
		{"parallel above", r3.Vec{X: -5, Y: 3}, r3.Vec{X: 5, Y: 3}, 2},
		{"closest at endpoint", r3.Vec{X: 4}, r3.Vec{X: 9}, 3},
		{"diagonal past corner", r3.Vec{X: 3, Y: 0, Z: 2}, r3.Vec{X: 0, Y: 3, Z: 2}, math.Sqrt(0.5*0.5 + 0.5*0.5 + 1)},
		{"degenerate segment", r3.Vec{Z: 4}, r3.Vec{Z: 4}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, b.DistanceToSegment(tt.a, tt.c), 1e-9)
			assert.InDelta(t, tt.want, b.DistanceToSegment(tt.c, tt.a), 1e-9)
		})
	}
}

func TestClearsSegment(t *testing.T) {
	b := unitBox()
	a, c := r3.Vec{X: -5, Y: 1.5}, r3.Vec{X: 5, Y: 1.5}
	assert.True(t, b.ClearsSegment(a, c, 0.5))
	assert.False(t, b.ClearsSegment(a, c, 0.6))
}
