package solver

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/chazu/tenon/pkg/geom"
)

// decodePose maps a pose onto six unconstrained parameters. The
// translation passes through; the rotation quaternion (x,y,z,w) is
// projected stereographically onto R³, which removes the unit-norm
// constraint from the optimizer's view.
//
// The projection is undefined at w = -1 (a 180° rotation): the alpha
// term divides by zero. This precondition is deliberately unguarded;
// non-finite parameters propagate into the optimization and the
// affected entity's final pose is garbage.
func decodePose(p geom.Pose) DOF6 {
	q := p.R
	alpha := (1 - q.Real) / (1 + q.Real)
	return DOF6{
		p.T.X, p.T.Y, p.T.Z,
		(alpha + 1) * q.Imag / 2,
		(alpha + 1) * q.Jmag / 2,
		(alpha + 1) * q.Kmag / 2,
	}
}

// encodePose inverts decodePose: a Cayley transform from R³ back onto
// the unit quaternion sphere. Any finite (a,b,c) yields a unit
// rotation; (0,0,0) maps to the identity (0,0,0,1).
func encodePose(d DOF6) geom.Pose {
	a, b, c := d[3], d[4], d[5]
	m := a*a + b*b + c*c

	q := quat.Number{
		Real: (1 - m) / (m + 1),
		Imag: 2 * a / (m + 1),
		Jmag: 2 * b / (m + 1),
		Kmag: 2 * c / (m + 1),
	}
	return geom.Pose{
		T: v3.Vec{X: d[0], Y: d[1], Z: d[2]},
		R: q,
	}
}
