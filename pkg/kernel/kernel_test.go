package kernel

import "testing"

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

func TestMeshVertex(t *testing.T) {
	m := &Mesh{Vertices: []float32{0, 0, 0, 1.5, -2, 4}}
	if got := m.Vertex(1); got != [3]float64{1.5, -2, 4} {
		t.Errorf("Vertex(1) = %v, want [1.5 -2 4]", got)
	}
}

// --- Compile-time interface check with a stub kernel ---

// boxSolid is an axis-aligned box used to prove the interface is
// satisfiable without a real backend.
type boxSolid struct {
	minBB, maxBB [3]float64
}

func (s *boxSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// Distance is a lower bound: the largest per-axis slab distance.
func (s *boxSolid) Distance(p [3]float64) float64 {
	d := -1e300
	for i := 0; i < 3; i++ {
		d = max(d, s.minBB[i]-p[i], p[i]-s.maxBB[i])
	}
	return d
}

// stubKernel is a minimal Kernel implementation. Booleans and transforms
// return their first operand.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) Solid {
	return &boxSolid{
		minBB: [3]float64{-x / 2, -y / 2, -z / 2},
		maxBB: [3]float64{x / 2, y / 2, z / 2},
	}
}

func (k *stubKernel) Sphere(r float64) Solid {
	return k.Box(2*r, 2*r, 2*r)
}

func (k *stubKernel) Cylinder(height, radius float64, _ int) Solid {
	return k.Box(2*radius, 2*radius, height)
}

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Difference(a, _ Solid) Solid   { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }
func (k *stubKernel) Rotate(s Solid, _, _, _ float64) Solid    { return s }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*boxSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s := k.Box(10, 20, 30)
	min, max := s.BoundingBox()
	if min != [3]float64{-5, -10, -15} {
		t.Errorf("Box min = %v, want [-5 -10 -15]", min)
	}
	if max != [3]float64{5, 10, 15} {
		t.Errorf("Box max = %v, want [5 10 15]", max)
	}
}

func TestStubSolidDistance(t *testing.T) {
	s := (&stubKernel{}).Box(2, 2, 2)
	tests := []struct {
		name string
		p    [3]float64
		want float64
	}{
		{"center", [3]float64{0, 0, 0}, -1},
		{"surface", [3]float64{1, 0, 0}, 0},
		{"outside", [3]float64{0, 4, 0}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Distance(tt.p); got != tt.want {
				t.Errorf("Distance(%v) = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestStubKernelToMesh(t *testing.T) {
	var k Kernel = &stubKernel{}
	s := k.Box(1, 1, 1)
	m, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m == nil {
		t.Fatal("ToMesh() returned nil mesh")
	}
	if !m.IsEmpty() {
		t.Error("stub ToMesh() should return empty mesh")
	}
}
