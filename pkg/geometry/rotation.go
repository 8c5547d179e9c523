package geometry

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RotationType names a rotation parameterization.
type RotationType int

const (
	RotationXYZ RotationType = iota
	RotationYZX
	RotationZXY
	RotationXZY
	RotationZYX
	RotationYXZ
	RotationAxisAngle
)

var rotationNames = [...]string{
	RotationXYZ:       "xyz",
	RotationYZX:       "yzx",
	RotationZXY:       "zxy",
	RotationXZY:       "xzy",
	RotationZYX:       "zyx",
	RotationYXZ:       "yxz",
	RotationAxisAngle: "axis-angle",
}

func (t RotationType) String() string {
	if t >= 0 && int(t) < len(rotationNames) {
		return rotationNames[t]
	}
	return fmt.Sprintf("RotationType(%d)", int(t))
}

// ParseRotationType converts a name such as "xyz" or "axis-angle".
func ParseRotationType(s string) (RotationType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	for i, name := range rotationNames {
		if s == name {
			return RotationType(i), nil
		}
	}
	return 0, fmt.Errorf("geometry: unknown rotation type %q", s)
}

func rotX(a float64) Matrix3 {
	s, c := math.Sincos(a)
	return Matrix3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func rotY(a float64) Matrix3 {
	s, c := math.Sincos(a)
	return Matrix3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func rotZ(a float64) Matrix3 {
	s, c := math.Sincos(a)
	return Matrix3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// GetRotationMatrixFromXYZ returns Rx(r.X)·Ry(r.Y)·Rz(r.Z). Angles are in
// radians.
func GetRotationMatrixFromXYZ(r r3.Vec) Matrix3 {
	return rotX(r.X).Mul(rotY(r.Y)).Mul(rotZ(r.Z))
}

// GetRotationMatrixFromYZX returns Ry(r.X)·Rz(r.Y)·Rx(r.Z).
func GetRotationMatrixFromYZX(r r3.Vec) Matrix3 {
	return rotY(r.X).Mul(rotZ(r.Y)).Mul(rotX(r.Z))
}

// GetRotationMatrixFromZXY returns Rz(r.X)·Rx(r.Y)·Ry(r.Z).
func GetRotationMatrixFromZXY(r r3.Vec) Matrix3 {
	return rotZ(r.X).Mul(rotX(r.Y)).Mul(rotY(r.Z))
}

// GetRotationMatrixFromXZY returns Rx(r.X)·Rz(r.Y)·Ry(r.Z).
func GetRotationMatrixFromXZY(r r3.Vec) Matrix3 {
	return rotX(r.X).Mul(rotZ(r.Y)).Mul(rotY(r.Z))
}

// GetRotationMatrixFromZYX returns Rz(r.X)·Ry(r.Y)·Rx(r.Z).
func GetRotationMatrixFromZYX(r r3.Vec) Matrix3 {
	return rotZ(r.X).Mul(rotY(r.Y)).Mul(rotX(r.Z))
}

// GetRotationMatrixFromYXZ returns Ry(r.X)·Rx(r.Y)·Rz(r.Z).
func GetRotationMatrixFromYXZ(r r3.Vec) Matrix3 {
	return rotY(r.X).Mul(rotX(r.Y)).Mul(rotZ(r.Z))
}

// GetRotationMatrixFromAxisAngle rotates by |r| radians about r/|r|.
// The zero vector yields the identity.
func GetRotationMatrixFromAxisAngle(r r3.Vec) Matrix3 {
	angle := r3.Norm(r)
	if angle == 0 {
		return Identity3()
	}
	k := r3.Scale(1/angle, r)
	s, c := math.Sincos(angle)
	t := 1 - c
	return Matrix3{
		{t*k.X*k.X + c, t*k.X*k.Y - s*k.Z, t*k.X*k.Z + s*k.Y},
		{t*k.X*k.Y + s*k.Z, t*k.Y*k.Y + c, t*k.Y*k.Z - s*k.X},
		{t*k.X*k.Z - s*k.Y, t*k.Y*k.Z + s*k.X, t*k.Z*k.Z + c},
	}
}

// GetRotationMatrixFromQuaternion converts q = (w, x, y, z). q is
// normalized first; the zero quaternion yields the identity.
func GetRotationMatrixFromQuaternion(q [4]float64) Matrix3 {
	n := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	norm := quat.Abs(n)
	if norm == 0 {
		return Identity3()
	}
	n = quat.Scale(1/norm, n)
	w, x, y, z := n.Real, n.Imag, n.Jmag, n.Kmag
	return Matrix3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// GetRotationMatrix dispatches to the builder named by kind.
func GetRotationMatrix(kind RotationType, r r3.Vec) (Matrix3, error) {
	switch kind {
	case RotationXYZ:
		return GetRotationMatrixFromXYZ(r), nil
	case RotationYZX:
		return GetRotationMatrixFromYZX(r), nil
	case RotationZXY:
		return GetRotationMatrixFromZXY(r), nil
	case RotationXZY:
		return GetRotationMatrixFromXZY(r), nil
	case RotationZYX:
		return GetRotationMatrixFromZYX(r), nil
	case RotationYXZ:
		return GetRotationMatrixFromYXZ(r), nil
	case RotationAxisAngle:
		return GetRotationMatrixFromAxisAngle(r), nil
	}
	return Identity3(), fmt.Errorf("geometry: unknown rotation type %v", kind)
}

// EulerXYZFromMatrix recovers angles r with GetRotationMatrixFromXYZ(r) == m.
// r.Y is in [-π/2, π/2]. At gimbal lock (|cos r.Y| ≈ 0) r.Z is set to 0.
func EulerXYZFromMatrix(m Matrix3) r3.Vec {
	// XYZ: m[0][2] = sin(y), m[1][2] = -sin(x)cos(y), m[2][2] = cos(x)cos(y),
	// m[0][1] = -cos(y)sin(z), m[0][0] = cos(y)cos(z).
	sy := math.Max(-1, math.Min(1, m[0][2]))
	y := math.Asin(sy)
	if math.Abs(sy) < 1-1e-12 {
		x := math.Atan2(-m[1][2], m[2][2])
		z := math.Atan2(-m[0][1], m[0][0])
		return r3.Vec{X: x, Y: y, Z: z}
	}
	// Gimbal lock: only x ± z is determined.
	x := math.Atan2(m[2][1], m[1][1])
	return r3.Vec{X: x, Y: y, Z: 0}
}
