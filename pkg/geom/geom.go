// Package geom provides the rigid-pose geometry boundary for the mate
// solver. A pose combines a translation with a unit-quaternion
// rotation; the package exposes the small set of operations the
// residual evaluator needs (point transform, direction rotation) and
// nothing else.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation about the origin followed by a
// translation. No scale or shear.
type Pose struct {
	T v3.Vec      // translation
	R quat.Number // rotation, unit norm
}

// Identity returns the identity pose (no translation, no rotation).
func Identity() Pose {
	return Pose{R: quat.Number{Real: 1}}
}

// New returns a pose from an explicit translation and rotation
// quaternion. The quaternion is used as given; callers supply unit
// quaternions.
func New(t v3.Vec, r quat.Number) Pose {
	return Pose{T: t, R: r}
}

// AxisAngle returns the unit quaternion rotating by angle radians
// about the given axis. The axis is normalized internally.
func AxisAngle(axis v3.Vec, angle float64) quat.Number {
	n := axis.Length()
	if n == 0 {
		return quat.Number{Real: 1}
	}
	s := math.Sin(angle/2) / n
	return quat.Number{
		Real: math.Cos(angle / 2),
		Imag: s * axis.X,
		Jmag: s * axis.Y,
		Kmag: s * axis.Z,
	}
}

// Rotate applies only the rotation part of the pose to v. This is the
// transform for directions, which have no position.
func (p Pose) Rotate(v v3.Vec) v3.Vec {
	pv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(p.R, pv), quat.Conj(p.R))
	return v3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Transform applies the full rigid transform to a point: rotation
// followed by translation.
func (p Pose) Transform(v v3.Vec) v3.Vec {
	return p.Rotate(v).Add(p.T)
}
