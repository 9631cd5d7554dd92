package geom

import (
	"math"
)

// LOR is a line of response: the line connecting two detected photons.
type LOR struct {
	// P is a point on the line. U is the unit direction from the first
	// endpoint towards the second.
	P, U Vec
	// Delta is the unnormalized second endpoint minus the first.
	Delta Vec
}

// NewLOR creates a line of response running from p1 to p2.
func NewLOR(p1, p2 *Vec) *LOR {
	l := &LOR{}
	l.Init(p1, p2)
	return l
}

// Init initializes the line so that it runs from p1 to p2. If the two points
// coincide, U is left as the zero vector.
func (l *LOR) Init(p1, p2 *Vec) {
	l.P = *p1
	l.Delta = p2.Sub(p1)
	l.U, _ = l.Delta.Unit()
}

// Angle returns the transaxial angle of the line, atan2(dy, dx), folded into
// the range [-pi/2, pi/2).
func (l *LOR) Angle() float64 {
	return FoldAngle(math.Atan2(l.Delta[1], l.Delta[0]))
}

// FoldAngle maps an angle in [-pi, pi] onto [-pi/2, pi/2) by adding or
// subtracting pi.
func FoldAngle(a float64) float64 {
	if a < -math.Pi/2 {
		a += math.Pi
	} else if a >= math.Pi/2 {
		a -= math.Pi
	}
	return a
}

// Dist returns the signed perpendicular distance between the line and a
// parallel line through the origin with transaxial angle a. Points to the left
// of the directed origin line have positive distance.
func (l *LOR) Dist(a float64) float64 {
	return TransaxialDist(&l.P, a)
}

// TransaxialDist returns the signed transaxial offset of p from the line
// through the origin with angle a.
func TransaxialDist(p *Vec, a float64) float64 {
	sin, cos := math.Sincos(a)
	return p[1]*cos - p[0]*sin
}

// Reprojection contains the coordinates used by 3D reprojection
// reconstruction: the azimuthal angle Phi, the co-polar angle Theta and the
// position (XR, YR) where the line pierces the projection plane.
type Reprojection struct {
	Phi, Theta, XR, YR float64
}

// Reproject computes the 3D reprojection coordinates of the line. Phi is kept
// within [-d, pi - d); if the line's direction falls outside that range, the
// line is reversed, which adds pi to Phi and flips the sign of Theta.
func (l *LOR) Reproject(d float64) Reprojection {
	phi := math.Atan2(l.U[1], l.U[0])
	theta := math.Asin(clamp(l.U[2], -1, +1))

	if phi < -d {
		phi += math.Pi
		theta = -theta
	} else if phi >= math.Pi-d {
		phi -= math.Pi
		theta = -theta
	}

	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	x, y, z := l.P[0], l.P[1], l.P[2]

	return Reprojection{
		Phi:   phi,
		Theta: theta,
		XR:    -x*sinPhi + y*cosPhi,
		YR:    -x*cosPhi*sinTheta - y*sinPhi*sinTheta + z*cosTheta,
	}
}

func clamp(x, low, high float64) float64 {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}
