package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
)

// The functions in this file are the shared engine behind every device
// geometry. Reductions wait for earlier work on s and return host values;
// the point and normal mutations are submitted to s and return at once.
//
// Transform inputs are assumed to be affine and point data free of NaN.

type bounds struct {
	min, max r3.Vec
}

// ComputeBounds returns the componentwise min and max of points. An empty
// buffer yields (EmptyBound, EmptyBound) without launching a kernel.
func ComputeBounds(s *device.Stream, points *device.Buffer[r3.Vec]) (min, max r3.Vec, err error) {
	if points.IsEmpty() {
		return EmptyBound, EmptyBound, nil
	}
	data := points.View()
	b, err := device.Reduce(s, len(data), func(lo, hi int) bounds {
		acc := bounds{min: data[lo], max: data[lo]}
		for _, p := range data[lo+1 : hi] {
			acc.min = minVec(acc.min, p)
			acc.max = maxVec(acc.max, p)
		}
		return acc
	}, func(a, b bounds) bounds {
		return bounds{min: minVec(a.min, b.min), max: maxVec(a.max, b.max)}
	})
	if err != nil {
		return EmptyBound, EmptyBound, err
	}
	return b.min, b.max, nil
}

// ComputeMinBound returns the componentwise minimum of points.
func ComputeMinBound(s *device.Stream, points *device.Buffer[r3.Vec]) (r3.Vec, error) {
	lo, _, err := ComputeBounds(s, points)
	return lo, err
}

// ComputeMaxBound returns the componentwise maximum of points.
func ComputeMaxBound(s *device.Stream, points *device.Buffer[r3.Vec]) (r3.Vec, error) {
	_, hi, err := ComputeBounds(s, points)
	return hi, err
}

// ComputeCenter returns the mean of points. Per-block sums are added in
// block order, so the result is the same on every run.
func ComputeCenter(s *device.Stream, points *device.Buffer[r3.Vec]) (r3.Vec, error) {
	n := points.Len()
	if n == 0 {
		return EmptyBound, nil
	}
	data := points.View()
	sum, err := device.Reduce(s, n, func(lo, hi int) r3.Vec {
		var acc r3.Vec
		for _, p := range data[lo:hi] {
			acc = r3.Add(acc, p)
		}
		return acc
	}, r3.Add)
	if err != nil {
		return EmptyBound, err
	}
	return r3.Scale(1/float64(n), sum), nil
}

// TransformPoints replaces every point p with m·[p, 1].
func TransformPoints(s *device.Stream, m Matrix4, points *device.Buffer[r3.Vec]) {
	data := points.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = m.TransformPoint(data[i])
		}
	})
}

// TransformNormals applies the linear part of m to every normal and
// renormalizes. Zero normals stay zero.
func TransformNormals(s *device.Stream, m Matrix4, normals *device.Buffer[r3.Vec]) {
	RotateNormals(s, m.Rotation(), normals)
}

// TranslatePoints adds t to every point when relative is true. Otherwise it
// shifts the points so their center becomes t; the center reduction waits
// for earlier work on s.
func TranslatePoints(s *device.Stream, t r3.Vec, points *device.Buffer[r3.Vec], relative bool) error {
	if points.IsEmpty() {
		return nil
	}
	shift := t
	if !relative {
		c, err := ComputeCenter(s, points)
		if err != nil {
			return err
		}
		shift = r3.Sub(t, c)
	}
	data := points.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = r3.Add(data[i], shift)
		}
	})
	return nil
}

// ScalePoints multiplies every point by k, about the current center when
// center is true and about the origin otherwise.
func ScalePoints(s *device.Stream, k float64, points *device.Buffer[r3.Vec], center bool) error {
	if points.IsEmpty() {
		return nil
	}
	var c r3.Vec
	if center {
		var err error
		if c, err = ComputeCenter(s, points); err != nil {
			return err
		}
	}
	data := points.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = r3.Add(c, r3.Scale(k, r3.Sub(data[i], c)))
		}
	})
	return nil
}

// RotatePoints applies r to every point, about the current center when
// center is true and about the origin otherwise.
func RotatePoints(s *device.Stream, r Matrix3, points *device.Buffer[r3.Vec], center bool) error {
	if points.IsEmpty() {
		return nil
	}
	var c r3.Vec
	if center {
		var err error
		if c, err = ComputeCenter(s, points); err != nil {
			return err
		}
	}
	data := points.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = r3.Add(c, r.MulVec(r3.Sub(data[i], c)))
		}
	})
	return nil
}

// RotateNormals applies r to every normal and renormalizes. Zero normals
// stay zero.
func RotateNormals(s *device.Stream, r Matrix3, normals *device.Buffer[r3.Vec]) {
	data := normals.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = normalize(r.MulVec(data[i]))
		}
	})
}

// NormalizeNormals rescales every normal to unit length.
func NormalizeNormals(s *device.Stream, normals *device.Buffer[r3.Vec]) {
	data := normals.View()
	s.Launch(len(data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			data[i] = normalize(data[i])
		}
	})
}

// ResizeAndPaintUniformColor resizes colors to n entries and sets each to
// color, with components clamped to [0, 1].
func ResizeAndPaintUniformColor(s *device.Stream, colors *device.Buffer[r3.Vec], n int, color r3.Vec) error {
	// Wait for kernels still reading the old storage before resizing it.
	if err := s.Synchronize(); err != nil {
		return err
	}
	if err := colors.Resize(n); err != nil {
		return err
	}
	c := r3.Vec{X: clamp01(color.X), Y: clamp01(color.Y), Z: clamp01(color.Z)}
	colors.Fill(s, c)
	return nil
}

func normalize(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
