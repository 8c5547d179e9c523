package planning

import "gonum.org/v1/gonum/spatial/r3"

// Path is an ordered sequence of waypoints. An empty path means no path was
// found.
type Path []r3.Vec

// IsEmpty reports whether the path has no waypoints.
func (p Path) IsEmpty() bool { return len(p) == 0 }

// Length returns the summed Euclidean length of the path's segments.
func (p Path) Length() float64 {
	var l float64
	for i := 1; i < len(p); i++ {
		l += r3.Norm(r3.Sub(p[i], p[i-1]))
	}
	return l
}
