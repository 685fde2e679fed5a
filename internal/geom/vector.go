// Package geom provides the vector, ray and box primitives used by the match
// simulation. Vectors are mgl64 values; everything here is immutable.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used for length and time comparisons.
const Epsilon = 1e-10

// Vec3 is a 3D vector. The arena lies in the x/z plane, y is up.
type Vec3 = mgl64.Vec3

// V returns a vector from its components.
func V(x, y, z float64) Vec3 {
	return Vec3{x, y, z}
}

// Unit returns v scaled to length 1, or false if v is (nearly) zero.
func Unit(v Vec3) (Vec3, bool) {
	l := v.Len()
	if l < Epsilon {
		return Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// Reflect mirrors d about the plane with normal n: d' = d - 2(d.n)n.
// n must be unit length.
func Reflect(d, n Vec3) Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// Flat drops the y component so directions stay in the arena plane.
func Flat(v Vec3) Vec3 {
	return Vec3{v.X(), 0, v.Z()}
}

// Rotate turns a direction lying in the x/z plane by angle radians around y.
// Positive angles rotate toward Left(d).
func Rotate(d Vec3, angle float64) Vec3 {
	return d.Mul(math.Cos(angle)).Add(Left(d).Mul(math.Sin(angle)))
}

// Left returns the in-plane perpendicular of d: (d.z, 0, -d.x).
func Left(d Vec3) Vec3 {
	return Vec3{d.Z(), 0, -d.X()}
}

// ApproxEqual reports whether a and b differ by at most eps on every axis.
func ApproxEqual(a, b Vec3, eps float64) bool {
	return a.ApproxEqualThreshold(b, eps)
}
