// Package tessellate turns the solid obstacles of a scene into triangle
// meshes using a geometry kernel. One mesh is produced per solid obstacle.
package tessellate

import (
	"fmt"

	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/engine"
	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/kernel"
)

// Part is a tessellated obstacle.
type Part struct {
	Name string
	Mesh *geometry.TriangleMesh
}

// Release frees the device memory held by the mesh.
func (p Part) Release() {
	if p.Mesh != nil {
		p.Mesh.Release()
	}
}

// Tessellate produces one device mesh per solid obstacle of s, in
// declaration order. Box and point obstacles are skipped. The tessellator
// is read-only and never mutates the scene.
func Tessellate(s *engine.Scene, k kernel.Kernel, d *device.Device) ([]Part, error) {
	if s == nil {
		return nil, nil
	}

	var parts []Part
	for i, o := range s.Obstacles {
		if o.Kind != engine.ObstacleSolid {
			continue
		}
		p, err := tessellateSolid(k, d, o, i)
		if err != nil {
			ReleaseAll(parts)
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// ReleaseAll releases every part.
func ReleaseAll(parts []Part) {
	for _, p := range parts {
		p.Release()
	}
}

func tessellateSolid(k kernel.Kernel, d *device.Device, o engine.SceneObstacle, i int) (Part, error) {
	name := o.Name
	if name == "" {
		name = fmt.Sprintf("obstacle-%d", i)
	}
	if o.Solid == nil {
		return Part{}, fmt.Errorf("tessellate: obstacle %s has no solid", name)
	}

	km, err := k.ToMesh(o.Solid)
	if err != nil {
		return Part{}, fmt.Errorf("tessellate: ToMesh failed for obstacle %s: %w", name, err)
	}
	km.Name = name

	m, err := geometry.NewTriangleMeshFromKernelMesh(d, km)
	if err != nil {
		return Part{}, fmt.Errorf("tessellate: upload obstacle %s: %w", name, err)
	}
	return Part{Name: name, Mesh: m}, nil
}
