package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
)

// PointCloud is a set of points with optional per-point normals and
// colors, all resident on one device. Normals and colors, when present,
// have the same length as the points.
type PointCloud struct {
	dev     *device.Device
	points  *device.Buffer[r3.Vec]
	normals *device.Buffer[r3.Vec]
	colors  *device.Buffer[r3.Vec]
}

// NewPointCloud returns an empty point cloud on d.
func NewPointCloud(d *device.Device) *PointCloud {
	return &PointCloud{
		dev:     d,
		points:  emptyBuffer[r3.Vec](d),
		normals: emptyBuffer[r3.Vec](d),
		colors:  emptyBuffer[r3.Vec](d),
	}
}

// NewPointCloudFromPoints uploads pts to a new point cloud on d.
func NewPointCloudFromPoints(d *device.Device, pts []r3.Vec) (*PointCloud, error) {
	pc := NewPointCloud(d)
	if err := pc.SetPoints(pts); err != nil {
		return nil, err
	}
	return pc, nil
}

// Device returns the device holding the cloud.
func (pc *PointCloud) Device() *device.Device { return pc.dev }

// GetGeometryType returns TypePointCloud.
func (pc *PointCloud) GetGeometryType() GeometryType { return TypePointCloud }

// Points exposes the device point buffer.
func (pc *PointCloud) Points() *device.Buffer[r3.Vec] { return pc.points }

// Normals exposes the device normal buffer.
func (pc *PointCloud) Normals() *device.Buffer[r3.Vec] { return pc.normals }

// Colors exposes the device color buffer.
func (pc *PointCloud) Colors() *device.Buffer[r3.Vec] { return pc.colors }

func (pc *PointCloud) IsEmpty() bool    { return pc.points.IsEmpty() }
func (pc *PointCloud) HasPoints() bool  { return !pc.points.IsEmpty() }
func (pc *PointCloud) HasNormals() bool { return pc.HasPoints() && pc.normals.Len() == pc.points.Len() }
func (pc *PointCloud) HasColors() bool  { return pc.HasPoints() && pc.colors.Len() == pc.points.Len() }

// Len returns the number of points.
func (pc *PointCloud) Len() int { return pc.points.Len() }

// SetPoints replaces the points with a copy of pts. Normals and colors of a
// different length are dropped.
func (pc *PointCloud) SetPoints(pts []r3.Vec) error {
	if err := pc.points.CopyFromHost(pts); err != nil {
		return fmt.Errorf("geometry: upload points: %w", err)
	}
	if pc.normals.Len() != len(pts) {
		_ = pc.normals.Resize(0)
	}
	if pc.colors.Len() != len(pts) {
		_ = pc.colors.Resize(0)
	}
	return nil
}

// SetNormals replaces the normals. len(normals) must equal the point count.
func (pc *PointCloud) SetNormals(normals []r3.Vec) error {
	if len(normals) != pc.points.Len() {
		return fmt.Errorf("geometry: %d normals for %d points", len(normals), pc.points.Len())
	}
	if err := pc.normals.CopyFromHost(normals); err != nil {
		return fmt.Errorf("geometry: upload normals: %w", err)
	}
	return nil
}

// SetColors replaces the colors. len(colors) must equal the point count.
func (pc *PointCloud) SetColors(colors []r3.Vec) error {
	if len(colors) != pc.points.Len() {
		return fmt.Errorf("geometry: %d colors for %d points", len(colors), pc.points.Len())
	}
	if err := pc.colors.CopyFromHost(colors); err != nil {
		return fmt.Errorf("geometry: upload colors: %w", err)
	}
	return nil
}

// GetPoints returns a host copy of the points after synchronizing the
// default stream.
func (pc *PointCloud) GetPoints() []r3.Vec {
	synchronize(pc.dev, pc.dev.DefaultStream(), "read points")
	return pc.points.CopyToHost()
}

// GetNormals returns a host copy of the normals.
func (pc *PointCloud) GetNormals() []r3.Vec {
	synchronize(pc.dev, pc.dev.DefaultStream(), "read normals")
	return pc.normals.CopyToHost()
}

// GetColors returns a host copy of the colors.
func (pc *PointCloud) GetColors() []r3.Vec {
	synchronize(pc.dev, pc.dev.DefaultStream(), "read colors")
	return pc.colors.CopyToHost()
}

// Clear drops all points, normals and colors.
func (pc *PointCloud) Clear() {
	_ = pc.points.Resize(0)
	_ = pc.normals.Resize(0)
	_ = pc.colors.Resize(0)
}

// Release returns the cloud's device memory. The cloud must not be used
// afterwards.
func (pc *PointCloud) Release() {
	pc.points.Release()
	pc.normals.Release()
	pc.colors.Release()
}

// Clone copies the cloud into new buffers on the same device.
func (pc *PointCloud) Clone() (*PointCloud, error) {
	synchronize(pc.dev, pc.dev.DefaultStream(), "clone")
	points, err := pc.points.Clone()
	if err != nil {
		return nil, err
	}
	normals, err := pc.normals.Clone()
	if err != nil {
		points.Release()
		return nil, err
	}
	colors, err := pc.colors.Clone()
	if err != nil {
		points.Release()
		normals.Release()
		return nil, err
	}
	return &PointCloud{dev: pc.dev, points: points, normals: normals, colors: colors}, nil
}

// ---------------------------------------------------------------------------
// Bounds
// ---------------------------------------------------------------------------

func (pc *PointCloud) bounds() (r3.Vec, r3.Vec) {
	lo, hi, err := ComputeBounds(pc.dev.DefaultStream(), pc.points)
	if err != nil {
		pc.dev.Logger().Errorf("geometry: point cloud bounds: %v", err)
	}
	return lo, hi
}

// GetMinBound returns the componentwise minimum, EmptyBound if empty.
func (pc *PointCloud) GetMinBound() r3.Vec {
	lo, _ := pc.bounds()
	return lo
}

// GetMaxBound returns the componentwise maximum, EmptyBound if empty.
func (pc *PointCloud) GetMaxBound() r3.Vec {
	_, hi := pc.bounds()
	return hi
}

// GetCenter returns the mean point, EmptyBound if empty.
func (pc *PointCloud) GetCenter() r3.Vec {
	c, err := ComputeCenter(pc.dev.DefaultStream(), pc.points)
	if err != nil {
		pc.dev.Logger().Errorf("geometry: point cloud center: %v", err)
	}
	return c
}

// GetAxisAlignedBoundingBox returns the bounds as a box.
func (pc *PointCloud) GetAxisAlignedBoundingBox() AxisAlignedBoundingBox {
	lo, hi := pc.bounds()
	return AxisAlignedBoundingBox{MinBound: lo, MaxBound: hi}
}

// ClearsSegment tests segment ab against the cloud's bounding box.
func (pc *PointCloud) ClearsSegment(a, b r3.Vec, radius float64) bool {
	if pc.IsEmpty() {
		return true
	}
	return pc.GetAxisAlignedBoundingBox().ClearsSegment(a, b, radius)
}

// ---------------------------------------------------------------------------
// Transforms
// ---------------------------------------------------------------------------

// TransformAsync applies m to points and its rotation part to normals.
func (pc *PointCloud) TransformAsync(s *device.Stream, m Matrix4) error {
	TransformPoints(s, m, pc.points)
	if pc.HasNormals() {
		TransformNormals(s, m, pc.normals)
	}
	return nil
}

// TranslateAsync moves the points by t, or so that their center is t when
// relative is false.
func (pc *PointCloud) TranslateAsync(s *device.Stream, t r3.Vec, relative bool) error {
	return TranslatePoints(s, t, pc.points, relative)
}

// ScaleAsync scales the points by k.
func (pc *PointCloud) ScaleAsync(s *device.Stream, k float64, center bool) error {
	return ScalePoints(s, k, pc.points, center)
}

// RotateAsync rotates points and normals by r.
func (pc *PointCloud) RotateAsync(s *device.Stream, r Matrix3, center bool) error {
	if err := RotatePoints(s, r, pc.points, center); err != nil {
		return err
	}
	if pc.HasNormals() {
		RotateNormals(s, r, pc.normals)
	}
	return nil
}

// Transform applies m on the default stream.
func (pc *PointCloud) Transform(m Matrix4) *PointCloud {
	pc.run("transform", func(s *device.Stream) error { return pc.TransformAsync(s, m) })
	return pc
}

// Translate moves the cloud on the default stream.
func (pc *PointCloud) Translate(t r3.Vec, relative bool) *PointCloud {
	pc.run("translate", func(s *device.Stream) error { return pc.TranslateAsync(s, t, relative) })
	return pc
}

// Scale scales the cloud on the default stream.
func (pc *PointCloud) Scale(k float64, center bool) *PointCloud {
	pc.run("scale", func(s *device.Stream) error { return pc.ScaleAsync(s, k, center) })
	return pc
}

// Rotate rotates the cloud on the default stream.
func (pc *PointCloud) Rotate(r Matrix3, center bool) *PointCloud {
	pc.run("rotate", func(s *device.Stream) error { return pc.RotateAsync(s, r, center) })
	return pc
}

func (pc *PointCloud) run(op string, submit func(s *device.Stream) error) {
	s := pc.dev.DefaultStream()
	if err := submit(s); err != nil {
		pc.dev.Logger().Errorf("geometry: point cloud %s: %v", op, err)
	}
	synchronize(pc.dev, s, "point cloud "+op)
}

// PaintUniformColor sets every point's color.
func (pc *PointCloud) PaintUniformColor(color r3.Vec) *PointCloud {
	s := pc.dev.DefaultStream()
	if err := ResizeAndPaintUniformColor(s, pc.colors, pc.points.Len(), color); err != nil {
		pc.dev.Logger().Errorf("geometry: paint point cloud: %v", err)
	}
	synchronize(pc.dev, s, "paint point cloud")
	return pc
}

// NormalizeNormals rescales the normals to unit length.
func (pc *PointCloud) NormalizeNormals() *PointCloud {
	s := pc.dev.DefaultStream()
	NormalizeNormals(s, pc.normals)
	synchronize(pc.dev, s, "normalize normals")
	return pc
}
