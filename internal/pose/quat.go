// Package pose holds the joint pose registry and the orientation accumulator
// that integrates glove readings into per-joint rotations.
package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quat is a rotation quaternion. Real is w; Imag, Jmag and Kmag are x, y and z.
type Quat = quat.Number

// Identity is the no-rotation quaternion.
var Identity = Quat{Real: 1}

// normEpsilon is the magnitude below which a quaternion is treated as degenerate.
const normEpsilon = 1e-12

// Axis is a rotation axis in joint-local coordinates.
type Axis struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// AxisZ is the flex axis used by the default hand rig.
var AxisZ = Axis{Z: 1}

// NewQuat builds a quaternion from its w, x, y, z components.
func NewQuat(w, x, y, z float64) Quat {
	return Quat{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// Normalize returns q scaled to unit length. A degenerate quaternion
// (zero, NaN or infinite) normalizes to Identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n < normEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Norm returns the length of q.
func Norm(q Quat) float64 {
	return quat.Abs(q)
}

// Compose returns normalize(a ⊗ b): b applied relative to the frame of a.
func Compose(a, b Quat) Quat {
	return Normalize(quat.Mul(a, b))
}

// FromAxisAngle returns the unit quaternion rotating angle radians about axis.
// A zero axis yields Identity.
func FromAxisAngle(axis Axis, angle float64) Quat {
	l := math.Sqrt(axis.X*axis.X + axis.Y*axis.Y + axis.Z*axis.Z)
	if l < normEpsilon {
		return Identity
	}
	s := math.Sin(angle/2) / l
	return Normalize(Quat{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	})
}

// ToAxisAngle decomposes a rotation into a unit axis and an angle in [0, π],
// picking the shortest arc. Identity returns AxisZ and 0.
func ToAxisAngle(q Quat) (Axis, float64) {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	w := math.Min(1, q.Real)
	angle := 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < 1e-9 {
		return AxisZ, 0
	}
	return Axis{X: q.Imag / s, Y: q.Jmag / s, Z: q.Kmag / s}, angle
}

// ScaleAngle attenuates the rotation q by factor, keeping its axis.
// ScaleAngle(q, 1) == q up to sign, ScaleAngle(q, 0) == Identity.
func ScaleAngle(q Quat, factor float64) Quat {
	axis, angle := ToAxisAngle(q)
	return FromAxisAngle(axis, angle*factor)
}

// Rotate applies q to the vector v.
func Rotate(q Quat, v Axis) Axis {
	p := Quat{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Axis{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Equal reports whether a and b describe the same rotation within tol,
// treating q and -q as equal.
func Equal(a, b Quat, tol float64) bool {
	d := math.Abs(a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag)
	return 1-d <= tol
}
