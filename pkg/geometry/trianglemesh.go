package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/kernel"
)

// Triangle holds three vertex indices.
type Triangle [3]int32

// TriangleMesh is an indexed triangle mesh resident on one device.
type TriangleMesh struct {
	dev             *device.Device
	vertices        *device.Buffer[r3.Vec]
	vertexNormals   *device.Buffer[r3.Vec]
	vertexColors    *device.Buffer[r3.Vec]
	triangles       *device.Buffer[Triangle]
	triangleNormals *device.Buffer[r3.Vec]
}

// NewTriangleMesh returns an empty mesh on d.
func NewTriangleMesh(d *device.Device) *TriangleMesh {
	return &TriangleMesh{
		dev:             d,
		vertices:        emptyBuffer[r3.Vec](d),
		vertexNormals:   emptyBuffer[r3.Vec](d),
		vertexColors:    emptyBuffer[r3.Vec](d),
		triangles:       emptyBuffer[Triangle](d),
		triangleNormals: emptyBuffer[r3.Vec](d),
	}
}

// NewTriangleMeshFromHost uploads vertices and triangles. Every triangle
// index must refer to a vertex.
func NewTriangleMeshFromHost(d *device.Device, vertices []r3.Vec, triangles []Triangle) (*TriangleMesh, error) {
	for i, tri := range triangles {
		for _, idx := range tri {
			if idx < 0 || int(idx) >= len(vertices) {
				return nil, fmt.Errorf("geometry: triangle %d references vertex %d of %d", i, idx, len(vertices))
			}
		}
	}
	m := NewTriangleMesh(d)
	if err := m.vertices.CopyFromHost(vertices); err != nil {
		return nil, fmt.Errorf("geometry: upload vertices: %w", err)
	}
	if err := m.triangles.CopyFromHost(triangles); err != nil {
		m.Release()
		return nil, fmt.Errorf("geometry: upload triangles: %w", err)
	}
	return m, nil
}

// NewTriangleMeshFromKernelMesh uploads a tessellated kernel mesh. Its
// per-vertex normals become the vertex normals.
func NewTriangleMeshFromKernelMesh(d *device.Device, km *kernel.Mesh) (*TriangleMesh, error) {
	if len(km.Vertices)%3 != 0 || len(km.Indices)%3 != 0 {
		return nil, fmt.Errorf("geometry: kernel mesh arrays are not multiples of 3")
	}
	vertices := make([]r3.Vec, km.VertexCount())
	for i := range vertices {
		v := km.Vertex(i)
		vertices[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	triangles := make([]Triangle, km.TriangleCount())
	for i := range triangles {
		triangles[i] = Triangle{int32(km.Indices[3*i]), int32(km.Indices[3*i+1]), int32(km.Indices[3*i+2])}
	}
	m, err := NewTriangleMeshFromHost(d, vertices, triangles)
	if err != nil {
		return nil, err
	}
	if len(km.Normals) == len(km.Vertices) {
		normals := make([]r3.Vec, len(vertices))
		for i := range normals {
			normals[i] = r3.Vec{
				X: float64(km.Normals[3*i]),
				Y: float64(km.Normals[3*i+1]),
				Z: float64(km.Normals[3*i+2]),
			}
		}
		if err := m.vertexNormals.CopyFromHost(normals); err != nil {
			m.Release()
			return nil, fmt.Errorf("geometry: upload normals: %w", err)
		}
	}
	return m, nil
}

// Device returns the device holding the mesh.
func (m *TriangleMesh) Device() *device.Device { return m.dev }

// GetGeometryType returns TypeTriangleMesh.
func (m *TriangleMesh) GetGeometryType() GeometryType { return TypeTriangleMesh }

// Vertices exposes the device vertex buffer.
func (m *TriangleMesh) Vertices() *device.Buffer[r3.Vec] { return m.vertices }

// Triangles exposes the device triangle buffer.
func (m *TriangleMesh) Triangles() *device.Buffer[Triangle] { return m.triangles }

func (m *TriangleMesh) IsEmpty() bool     { return m.vertices.IsEmpty() }
func (m *TriangleMesh) HasVertices() bool { return !m.vertices.IsEmpty() }
func (m *TriangleMesh) HasTriangles() bool {
	return m.HasVertices() && !m.triangles.IsEmpty()
}
func (m *TriangleMesh) HasVertexNormals() bool {
	return m.HasVertices() && m.vertexNormals.Len() == m.vertices.Len()
}
func (m *TriangleMesh) HasVertexColors() bool {
	return m.HasVertices() && m.vertexColors.Len() == m.vertices.Len()
}
func (m *TriangleMesh) HasTriangleNormals() bool {
	return m.HasTriangles() && m.triangleNormals.Len() == m.triangles.Len()
}

// GetVertices returns a host copy of the vertices.
func (m *TriangleMesh) GetVertices() []r3.Vec {
	synchronize(m.dev, m.dev.DefaultStream(), "read vertices")
	return m.vertices.CopyToHost()
}

// GetTriangles returns a host copy of the triangles.
func (m *TriangleMesh) GetTriangles() []Triangle {
	synchronize(m.dev, m.dev.DefaultStream(), "read triangles")
	return m.triangles.CopyToHost()
}

// GetVertexNormals returns a host copy of the vertex normals.
func (m *TriangleMesh) GetVertexNormals() []r3.Vec {
	synchronize(m.dev, m.dev.DefaultStream(), "read vertex normals")
	return m.vertexNormals.CopyToHost()
}

// GetVertexColors returns a host copy of the vertex colors.
func (m *TriangleMesh) GetVertexColors() []r3.Vec {
	synchronize(m.dev, m.dev.DefaultStream(), "read vertex colors")
	return m.vertexColors.CopyToHost()
}

// GetTriangleNormals returns a host copy of the triangle normals.
func (m *TriangleMesh) GetTriangleNormals() []r3.Vec {
	synchronize(m.dev, m.dev.DefaultStream(), "read triangle normals")
	return m.triangleNormals.CopyToHost()
}

// Clear drops all mesh data.
func (m *TriangleMesh) Clear() {
	_ = m.vertices.Resize(0)
	_ = m.vertexNormals.Resize(0)
	_ = m.vertexColors.Resize(0)
	_ = m.triangles.Resize(0)
	_ = m.triangleNormals.Resize(0)
}

// Release returns the mesh's device memory.
func (m *TriangleMesh) Release() {
	m.vertices.Release()
	m.vertexNormals.Release()
	m.vertexColors.Release()
	m.triangles.Release()
	m.triangleNormals.Release()
}

// ToKernelMesh downloads the mesh into the flat host format. Vertex normals
// are included when present.
func (m *TriangleMesh) ToKernelMesh() *kernel.Mesh {
	vertices := m.GetVertices()
	out := &kernel.Mesh{
		Vertices: make([]float32, 0, 3*len(vertices)),
		Indices:  make([]uint32, 0, 3*m.triangles.Len()),
	}
	for _, v := range vertices {
		out.Vertices = append(out.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
	}
	for _, tri := range m.triangles.CopyToHost() {
		out.Indices = append(out.Indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}
	if m.HasVertexNormals() {
		for _, n := range m.vertexNormals.CopyToHost() {
			out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Normals
// ---------------------------------------------------------------------------

// ComputeTriangleNormals computes the right-handed face normal of every
// triangle, normalized when normalized is true. Degenerate triangles get a
// zero normal.
func (m *TriangleMesh) ComputeTriangleNormals(normalized bool) *TriangleMesh {
	s := m.dev.DefaultStream()
	if err := m.triangleNormals.Resize(m.triangles.Len()); err != nil {
		m.dev.Logger().Errorf("geometry: triangle normals: %v", err)
		return m
	}
	verts := m.vertices.View()
	tris := m.triangles.View()
	out := m.triangleNormals.View()
	s.Launch(len(tris), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			t := tris[i]
			a, b, c := verts[t[0]], verts[t[1]], verts[t[2]]
			n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
			if normalized {
				n = normalize(n)
			}
			out[i] = n
		}
	})
	synchronize(m.dev, s, "triangle normals")
	return m
}

// ComputeVertexNormals sets each vertex normal to the normalized sum of the
// area-weighted normals of its adjacent triangles. Triangles are summed in
// index order, so results are reproducible.
func (m *TriangleMesh) ComputeVertexNormals() *TriangleMesh {
	if !m.HasTriangles() {
		return m
	}
	m.ComputeTriangleNormals(false)
	s := m.dev.DefaultStream()

	// Vertex to triangle adjacency in compressed row form.
	tris := m.triangles.View()
	nv := m.vertices.Len()
	offsets := make([]int, nv+1)
	for _, t := range tris {
		for _, v := range t {
			offsets[v+1]++
		}
	}
	for i := 0; i < nv; i++ {
		offsets[i+1] += offsets[i]
	}
	adj := make([]int, offsets[nv])
	fill := append([]int(nil), offsets[:nv]...)
	for ti, t := range tris {
		for _, v := range t {
			adj[fill[v]] = ti
			fill[v]++
		}
	}

	if err := m.vertexNormals.Resize(nv); err != nil {
		m.dev.Logger().Errorf("geometry: vertex normals: %v", err)
		return m
	}
	faceNormals := m.triangleNormals.View()
	out := m.vertexNormals.View()
	s.Launch(nv, func(lo, hi int) {
		for v := lo; v < hi; v++ {
			var sum r3.Vec
			for _, ti := range adj[offsets[v]:offsets[v+1]] {
				sum = r3.Add(sum, faceNormals[ti])
			}
			out[v] = normalize(sum)
		}
	})
	NormalizeNormals(s, m.triangleNormals)
	synchronize(m.dev, s, "vertex normals")
	return m
}

// PaintUniformColor sets every vertex color.
func (m *TriangleMesh) PaintUniformColor(color r3.Vec) *TriangleMesh {
	s := m.dev.DefaultStream()
	if err := ResizeAndPaintUniformColor(s, m.vertexColors, m.vertices.Len(), color); err != nil {
		m.dev.Logger().Errorf("geometry: paint mesh: %v", err)
	}
	synchronize(m.dev, s, "paint mesh")
	return m
}

// ---------------------------------------------------------------------------
// Bounds
// ---------------------------------------------------------------------------

func (m *TriangleMesh) bounds() (r3.Vec, r3.Vec) {
	lo, hi, err := ComputeBounds(m.dev.DefaultStream(), m.vertices)
	if err != nil {
		m.dev.Logger().Errorf("geometry: mesh bounds: %v", err)
	}
	return lo, hi
}

func (m *TriangleMesh) GetMinBound() r3.Vec {
	lo, _ := m.bounds()
	return lo
}

func (m *TriangleMesh) GetMaxBound() r3.Vec {
	_, hi := m.bounds()
	return hi
}

// GetCenter returns the mean vertex.
func (m *TriangleMesh) GetCenter() r3.Vec {
	c, err := ComputeCenter(m.dev.DefaultStream(), m.vertices)
	if err != nil {
		m.dev.Logger().Errorf("geometry: mesh center: %v", err)
	}
	return c
}

func (m *TriangleMesh) GetAxisAlignedBoundingBox() AxisAlignedBoundingBox {
	lo, hi := m.bounds()
	return AxisAlignedBoundingBox{MinBound: lo, MaxBound: hi}
}

// ClearsSegment tests segment ab against the mesh bounding box.
func (m *TriangleMesh) ClearsSegment(a, b r3.Vec, radius float64) bool {
	if m.IsEmpty() {
		return true
	}
	return m.GetAxisAlignedBoundingBox().ClearsSegment(a, b, radius)
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

func (m *TriangleMesh) TransformAsync(s *device.Stream, mat Matrix4) error {
	TransformPoints(s, mat, m.vertices)
	if m.HasVertexNormals() {
		TransformNormals(s, mat, m.vertexNormals)
	}
	if m.HasTriangleNormals() {
		TransformNormals(s, mat, m.triangleNormals)
	}
	return nil
}

func (m *TriangleMesh) TranslateAsync(s *device.Stream, t r3.Vec, relative bool) error {
	return TranslatePoints(s, t, m.vertices, relative)
}

func (m *TriangleMesh) ScaleAsync(s *device.Stream, k float64, center bool) error {
	return ScalePoints(s, k, m.vertices, center)
}

func (m *TriangleMesh) RotateAsync(s *device.Stream, r Matrix3, center bool) error {
	if err := RotatePoints(s, r, m.vertices, center); err != nil {
		return err
	}
	if m.HasVertexNormals() {
		RotateNormals(s, r, m.vertexNormals)
	}
	if m.HasTriangleNormals() {
		RotateNormals(s, r, m.triangleNormals)
	}
	return nil
}

// Transform applies mat on the default stream.
func (m *TriangleMesh) Transform(mat Matrix4) *TriangleMesh {
	m.run("transform", func(s *device.Stream) error { return m.TransformAsync(s, mat) })
	return m
}

// Translate moves the mesh on the default stream.
func (m *TriangleMesh) Translate(t r3.Vec, relative bool) *TriangleMesh {
	m.run("translate", func(s *device.Stream) error { return m.TranslateAsync(s, t, relative) })
	return m
}

// Scale scales the mesh on the default stream.
func (m *TriangleMesh) Scale(k float64, center bool) *TriangleMesh {
	m.run("scale", func(s *device.Stream) error { return m.ScaleAsync(s, k, center) })
	return m
}

// Rotate rotates the mesh on the default stream.
func (m *TriangleMesh) Rotate(r Matrix3, center bool) *TriangleMesh {
	m.run("rotate", func(s *device.Stream) error { return m.RotateAsync(s, r, center) })
	return m
}

func (m *TriangleMesh) run(op string, submit func(s *device.Stream) error) {
	s := m.dev.DefaultStream()
	if err := submit(s); err != nil {
		m.dev.Logger().Errorf("geometry: mesh %s: %v", op, err)
	}
	synchronize(m.dev, s, "mesh "+op)
}
