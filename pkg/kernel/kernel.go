// Package kernel defines the abstract solid-modeling kernel used for
// obstacle shapes. Implementations provide primitives, boolean operations,
// signed distance queries and tessellation behind this interface so the
// planner and the scene engine do not depend on a particular backend.
package kernel

// Solid is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)

	// Distance returns the signed distance from p to the surface:
	// negative inside, positive outside. Implementations may return a
	// lower bound of the true distance but never an overestimate.
	Distance(p [3]float64) float64
}

// Kernel is the abstract solid-modeling interface.
type Kernel interface {
	// Primitives, centered on the origin.
	Box(x, y, z float64) Solid
	Sphere(radius float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // XYZ Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
