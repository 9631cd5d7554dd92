package bin

import (
	"math"

	"github.com/phil-mansfield/phgbin/event"
	"github.com/phil-mansfield/phgbin/geom"
)

// SpeedOfLight is given in cm/ns.
const SpeedOfLight = 29.9792458

// acceptPhoton applies the per-photon energy and axial windows. Under axial
// rebinning the axial window is applied to the rebinned position instead.
func (con *Config) acceptPhoton(ph *event.Photon) bool {
	if !con.Ranges[Energy1].Contains(ph.Energy) {
		return false
	}
	return con.Rebinning() || con.Ranges[Z1].Contains(ph.Pos[2])
}

// TimeOfFlight returns the difference in arrival times of two photons in ns.
// It is positive when the decay was closer to the photon with the larger x
// coordinate (ties are broken by y).
func TimeOfFlight(blue, pink *event.Photon) float64 {
	low, high := blue, pink
	bp, pp := geom.Vec(blue.Pos), geom.Vec(pink.Pos)
	if pp.LeftOf(&bp) {
		low, high = pink, blue
	}
	return (low.TravelDistance - high.TravelDistance) / SpeedOfLight
}

// MSRBSlices returns the range of axial bins, [lo, hi], that a coincidence
// with axial endpoints z1 and z2 is spread over under multi-slice rebinning.
// ok is false if no bin is covered.
func (con *Config) MSRBSlices(z1, z2 float64) (lo, hi int, ok bool) {
	r := &con.Ranges[Z1]
	avg := (z1 + z2) / 2
	spread := 0.5 * math.Abs(z1-z2) * con.ObjectRadius / con.DetectorRadius
	zLo, zHi := avg-spread, avg+spread

	if zHi < r.Min || zLo > r.Max {
		return 0, 0, false
	}

	lo, hi = 0, r.Bins-1
	if zLo >= r.Min {
		lo = r.Index(zLo)
	}
	if zHi <= r.Max {
		hi = r.Index(zHi)
	}
	return lo, hi, true
}

// binCoincidence classifies and commits a single coincidence.
func (e *Engine) binCoincidence(decay *event.Decay, b, p *event.Photon) error {
	con := e.con
	e.stats.Received++
	e.stats.BluesReceived++
	e.stats.PinksReceived++

	d, blue, pink := *decay, *b, *p
	if !e.hooks.AcceptPET(&d, &blue, &pink) {
		return nil
	}
	random := d.IsRandom()
	if random && !con.AcceptRandoms {
		return nil
	}

	blueOK, pinkOK := con.acceptPhoton(&blue), con.acceptPhoton(&pink)
	if blueOK {
		e.stats.BluesAccepted++
	}
	if pinkOK {
		e.stats.PinksAccepted++
	}
	if !blueOK || !pinkOK {
		return nil
	}

	idx := Indices{}
	var ok bool
	idx[Scatter1], idx[Scatter2], ok = con.ScatterIndexPET(
		random, blue.Scatters(), pink.Scatters(),
	)
	if !ok {
		return nil
	}

	bp, pp := geom.Vec(blue.Pos), geom.Vec(pink.Pos)
	lor := geom.NewLOR(&bp, &pp)

	a := lor.Angle()
	idx[AA] = con.Ranges[AA].Index(a)
	if con.Active[TD] {
		td := lor.Dist(a)
		if !con.Ranges[TD].Contains(td) {
			return nil
		}
		idx[TD] = con.Ranges[TD].Index(td)
	}

	if con.Active[TOF] {
		tof := TimeOfFlight(&blue, &pink)
		if !con.Ranges[TOF].Contains(tof) {
			return nil
		}
		idx[TOF] = con.Ranges[TOF].Index(tof)
	}

	idx[Energy1] = con.Ranges[Energy1].Index(blue.Energy)
	idx[Energy2] = con.Ranges[Energy2].Index(pink.Energy)

	if con.Active[Crystal1] {
		c1, c2 := blue.Crystal, pink.Crystal
		if c1 > c2 {
			c1, c2 = c2, c1
		}
		if c1 < 0 || c2 >= con.Ranges[Crystal1].Bins {
			return nil
		}
		idx[Crystal1], idx[Crystal2] = c1, c2
	}

	zLo, zHi := 0, 0
	rz := &con.Ranges[Z1]
	switch {
	case con.SSRB:
		avg := (blue.Pos[2] + pink.Pos[2]) / 2
		if !rz.Contains(avg) {
			return nil
		}
		zLo = rz.Index(avg)
		zHi = zLo
	case con.MSRB:
		if zLo, zHi, ok = con.MSRBSlices(blue.Pos[2], pink.Pos[2]); !ok {
			return nil
		}
	default:
		down, up := &blue, &pink
		if pp.Below(&bp) {
			down, up = up, down
		}
		idx[Z1] = rz.Index(down.Pos[2])
		idx[Z2] = con.Ranges[Z2].Index(up.Pos[2])
	}

	if con.Reprojecting() {
		if !e.reproject(lor, &idx) {
			return nil
		}
	}

	w := d.StartWeight * blue.Weight * pink.Weight * e.newRatio

	if !con.Rebinning() {
		c := Contribution{w, w * w}
		if !e.hooks.ClassifiedPET(&d, &blue, &pink, &idx, &c) {
			return nil
		}
		if err := e.commit(&idx, c); err != nil {
			return err
		}
	} else {
		wk := w / float64(zHi-zLo+1)
		committed := false
		for z := zLo; z <= zHi; z++ {
			slice := idx
			slice[Z1] = z
			c := Contribution{wk, wk * wk}
			if !e.hooks.ClassifiedPET(&d, &blue, &pink, &slice, &c) {
				continue
			}
			if err := e.commit(&slice, c); err != nil {
				return err
			}
			committed = true
		}
		if !committed {
			return nil
		}
	}

	e.stats.Accepted++
	return e.record(&d, &blue, &pink)
}

// reproject computes the 3D reprojection indices of a line of response. It
// returns false if the line falls outside a binned range.
func (e *Engine) reproject(lor *geom.LOR, idx *Indices) bool {
	con := e.con
	r := lor.Reproject(con.ReprojectionLimit(con.Ranges[PHI].Bins))

	vals := [...]struct {
		d Dim
		x float64
	}{{PHI, r.Phi}, {Theta, r.Theta}, {XR, r.XR}, {YR, r.YR}}

	for _, v := range vals {
		if !con.Active[v.d] {
			continue
		}
		rng := &con.Ranges[v.d]
		if !rng.Contains(v.x) {
			return false
		}
		idx[v.d] = rng.Index(v.x)
	}
	return true
}
