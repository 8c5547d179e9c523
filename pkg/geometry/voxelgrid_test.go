package geometry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/console"
	"github.com/chazu/georoute/pkg/device"
)

func TestCreateVoxelGridFromPointCloud(t *testing.T) {
	d := newTestDevice()
	pc, err := NewPointCloudFromPoints(d, []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 2, Y: 0, Z: 0},
		{X: 2, Y: 2, Z: 2},
	})
	require.NoError(t, err)
	pc.PaintUniformColor(r3.Vec{X: 1})

	vg, err := CreateVoxelGridFromPointCloud(pc, 1)
	require.NoError(t, err)
	assert.Equal(t, TypeVoxelGrid, vg.GetGeometryType())
	assert.Equal(t, r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, vg.Origin())

	voxels := vg.GetVoxels()
	require.Len(t, voxels, 3, "the two nearby points share a voxel")
	assert.Equal(t, VoxelIndex{0, 0, 0}, voxels[0].Index)
	assert.Equal(t, VoxelIndex{2, 0, 0}, voxels[1].Index)
	assert.Equal(t, VoxelIndex{2, 2, 2}, voxels[2].Index)
	assert.Equal(t, r3.Vec{X: 1}, voxels[0].Color)

	assert.Equal(t, r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, vg.GetMinBound())
	assert.Equal(t, r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}, vg.GetMaxBound())
	assert.Equal(t, r3.Vec{}, vg.GetVoxelCenterCoordinate(VoxelIndex{0, 0, 0}))
	assert.Equal(t, VoxelIndex{2, 2, 2}, vg.GetVoxel(r3.Vec{X: 2.2, Y: 1.9, Z: 2}))
}

func TestVoxelGridRejectsBadSize(t *testing.T) {
	_, err := CreateVoxelGridFromPointCloud(NewPointCloud(newTestDevice()), 0)
	assert.Error(t, err)
}

func TestVoxelGridEmpty(t *testing.T) {
	d := newTestDevice()
	vg, err := CreateVoxelGridFromPointCloud(NewPointCloud(d), 0.5)
	require.NoError(t, err)
	assert.True(t, vg.IsEmpty())
	assert.Equal(t, EmptyBound, vg.GetMinBound())
	assert.Equal(t, EmptyBound, vg.GetCenter())
	assert.Equal(t, int64(0), d.Launches())
}

func TestVoxelGridTranslateAndScale(t *testing.T) {
	d := newTestDevice()
	vg := NewVoxelGrid(d, r3.Vec{}, 1)
	require.NoError(t, vg.SetVoxels([]Voxel{{Index: VoxelIndex{0, 0, 0}}, {Index: VoxelIndex{1, 0, 0}}}))
	assert.Equal(t, r3.Vec{X: 1, Y: 0.5, Z: 0.5}, vg.GetCenter())

	vg.Translate(r3.Vec{X: 10}, false)
	assertVecNear(t, r3.Vec{X: 10}, vg.GetCenter(), tol)

	vg.Translate(r3.Vec{Y: 1}, true)
	assertVecNear(t, r3.Vec{X: 10, Y: 1}, vg.GetCenter(), tol)

	vg.Scale(2, true)
	assertVecNear(t, r3.Vec{X: 10, Y: 1}, vg.GetCenter(), tol)
	assert.Equal(t, 2.0, vg.VoxelSize())
	assertVecNear(t, r3.Vec{X: 4, Y: 2, Z: 2}, vg.GetAxisAlignedBoundingBox().GetExtent(), tol)
}

func TestVoxelGridRotateIsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	d := device.New(device.WithLogger(console.New(&buf, console.VerbosityWarning)))
	vg := NewVoxelGrid(d, r3.Vec{X: 1}, 0.5)
	require.NoError(t, vg.SetVoxels([]Voxel{{Index: VoxelIndex{3, 4, 5}}}))
	before := vg.GetAxisAlignedBoundingBox()

	vg.Rotate(rotZ(1), true).Transform(NewTransform(rotX(1), r3.Vec{X: 1}))
	vg.Scale(-1, false)

	assert.Equal(t, before, vg.GetAxisAlignedBoundingBox())
	assert.Contains(t, buf.String(), "VoxelGrid.Rotate is not supported")
	assert.Contains(t, buf.String(), "VoxelGrid.Transform is not supported")
	assert.Contains(t, buf.String(), "positive factor")
}
