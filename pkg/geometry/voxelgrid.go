package geometry

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
)

// VoxelIndex addresses a cell of a voxel grid.
type VoxelIndex [3]int32

// Voxel is an occupied grid cell.
type Voxel struct {
	Index VoxelIndex
	Color r3.Vec
}

// VoxelGrid is a sparse set of occupied, axis-aligned cubic cells. Cell
// (i, j, k) spans origin + [i, i+1)·size on each axis.
type VoxelGrid struct {
	dev       *device.Device
	origin    r3.Vec
	voxelSize float64
	voxels    *device.Buffer[Voxel]
}

// NewVoxelGrid returns an empty grid with the given origin and cell size.
func NewVoxelGrid(d *device.Device, origin r3.Vec, voxelSize float64) *VoxelGrid {
	return &VoxelGrid{
		dev:       d,
		origin:    origin,
		voxelSize: voxelSize,
		voxels:    emptyBuffer[Voxel](d),
	}
}

// CreateVoxelGridFromPointCloud voxelizes pc with cubic cells of edge
// voxelSize. The grid origin is the cloud's min bound minus half a cell.
// Voxel colors are the mean color of the points they contain. Voxels are
// ordered by index.
func CreateVoxelGridFromPointCloud(pc *PointCloud, voxelSize float64) (*VoxelGrid, error) {
	if voxelSize <= 0 {
		return nil, fmt.Errorf("geometry: voxel size must be positive, got %g", voxelSize)
	}
	d := pc.Device()
	half := r3.Vec{X: voxelSize / 2, Y: voxelSize / 2, Z: voxelSize / 2}
	vg := NewVoxelGrid(d, r3.Sub(pc.GetMinBound(), half), voxelSize)
	if pc.IsEmpty() {
		return vg, nil
	}

	s := d.DefaultStream()
	indices, err := device.NewBuffer[VoxelIndex](d, pc.Len())
	if err != nil {
		return nil, err
	}
	defer indices.Release()
	pts := pc.Points().View()
	idx := indices.View()
	origin := vg.origin
	s.Launch(len(pts), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			idx[i] = voxelIndexOf(pts[i], origin, voxelSize)
		}
	})
	if err := s.Synchronize(); err != nil {
		return nil, err
	}

	var colors []r3.Vec
	if pc.HasColors() {
		colors = pc.Colors().View()
	}
	type cell struct {
		index VoxelIndex
		sum   r3.Vec
		count int
	}
	cells := make(map[VoxelIndex]*cell, len(idx))
	for i, vi := range idx {
		c, ok := cells[vi]
		if !ok {
			c = &cell{index: vi}
			cells[vi] = c
		}
		c.count++
		if colors != nil {
			c.sum = r3.Add(c.sum, colors[i])
		}
	}
	voxels := make([]Voxel, 0, len(cells))
	for _, c := range cells {
		v := Voxel{Index: c.index}
		if colors != nil {
			v.Color = r3.Scale(1/float64(c.count), c.sum)
		}
		voxels = append(voxels, v)
	}
	slices.SortFunc(voxels, func(a, b Voxel) int { return compareVoxelIndex(a.Index, b.Index) })
	if err := vg.voxels.CopyFromHost(voxels); err != nil {
		return nil, err
	}
	return vg, nil
}

func voxelIndexOf(p, origin r3.Vec, size float64) VoxelIndex {
	rel := r3.Scale(1/size, r3.Sub(p, origin))
	return VoxelIndex{int32(math.Floor(rel.X)), int32(math.Floor(rel.Y)), int32(math.Floor(rel.Z))}
}

func compareVoxelIndex(a, b VoxelIndex) int {
	for i := 0; i < 3; i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Device returns the device holding the grid.
func (vg *VoxelGrid) Device() *device.Device { return vg.dev }

// GetGeometryType returns TypeVoxelGrid.
func (vg *VoxelGrid) GetGeometryType() GeometryType { return TypeVoxelGrid }

func (vg *VoxelGrid) Origin() r3.Vec     { return vg.origin }
func (vg *VoxelGrid) VoxelSize() float64 { return vg.voxelSize }
func (vg *VoxelGrid) IsEmpty() bool      { return vg.voxels.IsEmpty() }
func (vg *VoxelGrid) HasVoxels() bool    { return !vg.voxels.IsEmpty() }
func (vg *VoxelGrid) Len() int           { return vg.voxels.Len() }

// SetVoxels replaces the occupied cells.
func (vg *VoxelGrid) SetVoxels(voxels []Voxel) error {
	return vg.voxels.CopyFromHost(voxels)
}

// GetVoxels returns a host copy of the occupied cells.
func (vg *VoxelGrid) GetVoxels() []Voxel {
	synchronize(vg.dev, vg.dev.DefaultStream(), "read voxels")
	return vg.voxels.CopyToHost()
}

// GetVoxel returns the index of the cell containing p.
func (vg *VoxelGrid) GetVoxel(p r3.Vec) VoxelIndex {
	return voxelIndexOf(p, vg.origin, vg.voxelSize)
}

// GetVoxelCenterCoordinate returns the center of cell idx.
func (vg *VoxelGrid) GetVoxelCenterCoordinate(idx VoxelIndex) r3.Vec {
	return voxelCenter(idx, vg.origin, vg.voxelSize)
}

func voxelCenter(idx VoxelIndex, origin r3.Vec, size float64) r3.Vec {
	return r3.Vec{
		X: float64(idx[0])*size + origin.X + size/2,
		Y: float64(idx[1])*size + origin.Y + size/2,
		Z: float64(idx[2])*size + origin.Z + size/2,
	}
}

// Clear drops all voxels. Origin and size are kept.
func (vg *VoxelGrid) Clear() {
	_ = vg.voxels.Resize(0)
}

// Release returns the grid's device memory.
func (vg *VoxelGrid) Release() {
	vg.voxels.Release()
}

// ---------------------------------------------------------------------------
// Bounds
// ---------------------------------------------------------------------------

type indexBounds struct {
	min, max VoxelIndex
}

func (vg *VoxelGrid) bounds() (r3.Vec, r3.Vec) {
	if vg.voxels.IsEmpty() {
		return EmptyBound, EmptyBound
	}
	data := vg.voxels.View()
	b, err := device.Reduce(vg.dev.DefaultStream(), len(data), func(lo, hi int) indexBounds {
		acc := indexBounds{min: data[lo].Index, max: data[lo].Index}
		for _, v := range data[lo+1 : hi] {
			for a := 0; a < 3; a++ {
				acc.min[a] = min(acc.min[a], v.Index[a])
				acc.max[a] = max(acc.max[a], v.Index[a])
			}
		}
		return acc
	}, func(x, y indexBounds) indexBounds {
		for a := 0; a < 3; a++ {
			x.min[a] = min(x.min[a], y.min[a])
			x.max[a] = max(x.max[a], y.max[a])
		}
		return x
	})
	if err != nil {
		vg.dev.Logger().Errorf("geometry: voxel grid bounds: %v", err)
		return EmptyBound, EmptyBound
	}
	lo := r3.Add(vg.origin, r3.Scale(vg.voxelSize, r3.Vec{
		X: float64(b.min[0]), Y: float64(b.min[1]), Z: float64(b.min[2]),
	}))
	hi := r3.Add(vg.origin, r3.Scale(vg.voxelSize, r3.Vec{
		X: float64(b.max[0] + 1), Y: float64(b.max[1] + 1), Z: float64(b.max[2] + 1),
	}))
	return lo, hi
}

// GetMinBound returns the min corner of the occupied cells.
func (vg *VoxelGrid) GetMinBound() r3.Vec {
	lo, _ := vg.bounds()
	return lo
}

// GetMaxBound returns the max corner of the occupied cells.
func (vg *VoxelGrid) GetMaxBound() r3.Vec {
	_, hi := vg.bounds()
	return hi
}

// GetCenter returns the mean of the occupied cell centers.
func (vg *VoxelGrid) GetCenter() r3.Vec {
	n := vg.voxels.Len()
	if n == 0 {
		return EmptyBound
	}
	data := vg.voxels.View()
	origin, size := vg.origin, vg.voxelSize
	sum, err := device.Reduce(vg.dev.DefaultStream(), n, func(lo, hi int) r3.Vec {
		var acc r3.Vec
		for _, v := range data[lo:hi] {
			acc = r3.Add(acc, voxelCenter(v.Index, origin, size))
		}
		return acc
	}, r3.Add)
	if err != nil {
		vg.dev.Logger().Errorf("geometry: voxel grid center: %v", err)
		return EmptyBound
	}
	return r3.Scale(1/float64(n), sum)
}

func (vg *VoxelGrid) GetAxisAlignedBoundingBox() AxisAlignedBoundingBox {
	lo, hi := vg.bounds()
	return AxisAlignedBoundingBox{MinBound: lo, MaxBound: hi}
}

// ClearsSegment tests segment ab against the grid bounding box.
func (vg *VoxelGrid) ClearsSegment(a, b r3.Vec, radius float64) bool {
	if vg.IsEmpty() {
		return true
	}
	return vg.GetAxisAlignedBoundingBox().ClearsSegment(a, b, radius)
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

// TransformAsync is unsupported: an axis-aligned grid cannot represent a
// general transform. It logs a warning and leaves the grid unchanged.
func (vg *VoxelGrid) TransformAsync(_ *device.Stream, _ Matrix4) error {
	vg.dev.Logger().Warningf("geometry: VoxelGrid.Transform is not supported, grid unchanged")
	return nil
}

// TranslateAsync moves the grid origin. The stream is only used to compute
// the current center when relative is false.
func (vg *VoxelGrid) TranslateAsync(s *device.Stream, t r3.Vec, relative bool) error {
	if relative {
		vg.origin = r3.Add(vg.origin, t)
		return nil
	}
	if vg.IsEmpty() {
		return nil
	}
	if err := s.Synchronize(); err != nil {
		return err
	}
	vg.origin = r3.Add(vg.origin, r3.Sub(t, vg.GetCenter()))
	return nil
}

// ScaleAsync scales the cell size and the origin. Non-positive factors are
// rejected with a warning.
func (vg *VoxelGrid) ScaleAsync(s *device.Stream, k float64, center bool) error {
	if k <= 0 {
		vg.dev.Logger().Warningf("geometry: VoxelGrid.Scale needs a positive factor, got %g", k)
		return nil
	}
	var c r3.Vec
	if center && !vg.IsEmpty() {
		if err := s.Synchronize(); err != nil {
			return err
		}
		c = vg.GetCenter()
	}
	vg.origin = r3.Add(c, r3.Scale(k, r3.Sub(vg.origin, c)))
	vg.voxelSize *= k
	return nil
}

// RotateAsync is unsupported on axis-aligned grids. It logs a warning and
// leaves the grid unchanged.
func (vg *VoxelGrid) RotateAsync(_ *device.Stream, _ Matrix3, _ bool) error {
	vg.dev.Logger().Warningf("geometry: VoxelGrid.Rotate is not supported, grid unchanged")
	return nil
}

func (vg *VoxelGrid) Transform(m Matrix4) *VoxelGrid {
	_ = vg.TransformAsync(vg.dev.DefaultStream(), m)
	return vg
}

func (vg *VoxelGrid) Translate(t r3.Vec, relative bool) *VoxelGrid {
	if err := vg.TranslateAsync(vg.dev.DefaultStream(), t, relative); err != nil {
		vg.dev.Logger().Errorf("geometry: voxel grid translate: %v", err)
	}
	return vg
}

func (vg *VoxelGrid) Scale(k float64, center bool) *VoxelGrid {
	if err := vg.ScaleAsync(vg.dev.DefaultStream(), k, center); err != nil {
		vg.dev.Logger().Errorf("geometry: voxel grid scale: %v", err)
	}
	return vg
}

func (vg *VoxelGrid) Rotate(r Matrix3, center bool) *VoxelGrid {
	_ = vg.RotateAsync(vg.dev.DefaultStream(), r, center)
	return vg
}
