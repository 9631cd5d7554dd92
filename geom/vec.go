/*package geom contains routines for computing the geometric quantities that
describe detected photons and lines of response.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Sub returns v1 - v2.
func (v1 *Vec) Sub(v2 *Vec) Vec {
	return Vec{v1[0] - v2[0], v1[1] - v2[1], v1[2] - v2[2]}
}

// Add returns v1 + v2.
func (v1 *Vec) Add(v2 *Vec) Vec {
	return Vec{v1[0] + v2[0], v1[1] + v2[1], v1[2] + v2[2]}
}

// Scale returns the vector multiplied by k.
func (v *Vec) Scale(k float64) Vec {
	return Vec{v[0] * k, v[1] * k, v[2] * k}
}

// Dot computes the inner product of v1 and v2.
func (v1 *Vec) Dot(v2 *Vec) float64 {
	return v1[0]*v2[0] + v1[1]*v2[1] + v1[2]*v2[2]
}

// CrossAt computes v1 x v2 and writes it to out.
func (v1 *Vec) CrossAt(v2, out *Vec) {
	x := v1[1]*v2[2] - v1[2]*v2[1]
	y := v1[2]*v2[0] - v1[0]*v2[2]
	z := v1[0]*v2[1] - v1[1]*v2[0]
	out[0], out[1], out[2] = x, y, z
}

// Norm returns the length of v.
func (v *Vec) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Transaxial returns the length of v's projection onto the xy-plane.
func (v *Vec) Transaxial() float64 {
	return math.Hypot(v[0], v[1])
}

// Unit returns a unit vector parallel to v and false if v has zero length.
func (v *Vec) Unit() (Vec, bool) {
	n := v.Norm()
	if n == 0 {
		return Vec{}, false
	}
	return v.Scale(1 / n), true
}

// Below returns true if v1 is "below" v2: it has a smaller y coordinate, or an
// equal y coordinate and a smaller x coordinate. This is the ordering used to
// decide which end of a line of response is stored first.
func (v1 *Vec) Below(v2 *Vec) bool {
	if v1[1] != v2[1] {
		return v1[1] < v2[1]
	}
	return v1[0] < v2[0]
}

// LeftOf returns true if v1 has a smaller x coordinate than v2, with ties
// broken by y.
func (v1 *Vec) LeftOf(v2 *Vec) bool {
	if v1[0] != v2[0] {
		return v1[0] < v2[0]
	}
	return v1[1] < v2[1]
}
