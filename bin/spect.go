package bin

import (
	"math"

	"github.com/phil-mansfield/phgbin/event"
	"github.com/phil-mansfield/phgbin/geom"
)

// Projection returns the projection angle, in [0, 2 pi), and the transaxial
// position of a SPECT photon. Values computed upstream by detector geometry
// are used when available.
func Projection(ph *event.Photon) (angle, td float64) {
	if ph.HasDetector {
		angle = math.Mod(ph.DetectorAngle, 2*math.Pi)
		if angle < 0 {
			angle += 2 * math.Pi
		}
		return angle, ph.TransaxialPos
	}

	angle = math.Atan2(ph.Dir[1], ph.Dir[0])
	if angle < 0 {
		angle += 2 * math.Pi
	}
	pos := geom.Vec(ph.Pos)
	return angle, geom.TransaxialDist(&pos, angle)
}

// AxialPosition returns the axial position of a SPECT photon. If radius is
// positive, the photon is projected along its flight direction onto a cylinder
// of that radius first. Photons which are already outside the cylinder, or
// which travel parallel to its axis, are not moved.
func AxialPosition(ph *event.Photon, radius float64) float64 {
	z := ph.Pos[2]
	if radius <= 0 {
		return z
	}

	x, y := ph.Pos[0], ph.Pos[1]
	ux, uy := ph.Dir[0], ph.Dir[1]
	a := ux*ux + uy*uy
	b := 2 * (x*ux + y*uy)
	c := x*x + y*y - radius*radius
	if a == 0 || c >= 0 {
		return z
	}

	t := (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	return z + t*ph.Dir[2]
}

// binPhoton classifies and commits a single SPECT photon.
func (e *Engine) binPhoton(decay *event.Decay, p *event.Photon) error {
	con := e.con
	e.stats.Received++

	d, ph := *decay, *p
	if !e.hooks.AcceptSPECT(&d, &ph) {
		return nil
	}
	if d.IsRandom() && !con.AcceptRandoms {
		return nil
	}

	idx := Indices{}
	var ok bool
	if idx[Scatter1], ok = con.ScatterIndexSPECT(ph.Scatters()); !ok {
		return nil
	}

	if !con.Ranges[Energy1].Contains(ph.Energy) {
		return nil
	}
	idx[Energy1] = con.Ranges[Energy1].Index(ph.Energy)

	z := AxialPosition(&ph, con.CollimatorRadius)
	if !con.Ranges[Z1].Contains(z) {
		return nil
	}
	idx[Z1] = con.Ranges[Z1].Index(z)

	a, td := Projection(&ph)
	idx[AA] = con.Ranges[AA].Index(a)
	if con.Active[TD] {
		if !con.Ranges[TD].Contains(td) {
			return nil
		}
		idx[TD] = con.Ranges[TD].Index(td)
	}

	if con.Active[Crystal1] {
		if ph.Crystal < 0 || ph.Crystal >= con.Ranges[Crystal1].Bins {
			return nil
		}
		idx[Crystal1] = ph.Crystal
	}

	w := d.StartWeight * ph.Weight * e.newRatio
	c := Contribution{w, w * w}
	if !e.hooks.ClassifiedSPECT(&d, &ph, &idx, &c) {
		return nil
	}
	if err := e.commit(&idx, c); err != nil {
		return err
	}

	e.stats.Accepted++
	return e.record(&d, &ph)
}
