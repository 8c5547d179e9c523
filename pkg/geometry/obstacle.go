package geometry

// HostObstacle returns an obstacle equivalent to o whose ClearsSegment does
// no device work, for use from inside a kernel. Boxes and solids are
// returned unchanged. Device geometries test clearance against their
// bounding box, so they are replaced by that box. ok is false for an empty
// geometry, which blocks nothing.
func HostObstacle(o Obstacle) (h Obstacle, ok bool) {
	switch v := o.(type) {
	case AxisAlignedBoundingBox, *SolidObstacle:
		return o, true
	case Geometry3D:
		if v.IsEmpty() {
			return nil, false
		}
		return v.GetAxisAlignedBoundingBox(), true
	default:
		return o, true
	}
}
