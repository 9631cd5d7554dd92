package io

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/phgbin/event"
)

const (
	// PhotonColumns is the number of columns describing a single photon in an
	// event table.
	PhotonColumns = 12
	decayColumns  = 2
)

// EventTable contains the events read from a text event table. For PET
// tables, each decay has a blue and a pink photon. For SPECT tables only
// Photons[0] is used.
type EventTable struct {
	Decays  []event.Decay
	Photons [2][]event.Photon
}

// Len returns the number of events in the table.
func (et *EventTable) Len() int { return len(et.Decays) }

// ReadEventTable reads a whitespace-separated text table of detected events.
// Each row starts with the decay type and start weight, followed by one (SPECT)
// or two (PET) blocks of photon columns:
//
//     x y z ux uy uz energy objectScatters collimatorScatters weight crystal travel
//
// Comment lines start with '#'.
func ReadEventTable(fname string, pet bool) (*EventTable, error) {
	photons := 1
	if pet {
		photons = 2
	}

	colIdxs := make([]int, decayColumns+photons*PhotonColumns)
	for i := range colIdxs {
		colIdxs[i] = i
	}
	cols, err := table.ReadTable(fname, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("Could not read event table %s: %w", fname, err)
	}

	n := len(cols[0])
	et := &EventTable{Decays: make([]event.Decay, n)}
	for p := 0; p < photons; p++ {
		et.Photons[p] = make([]event.Photon, n)
	}

	for i := 0; i < n; i++ {
		et.Decays[i] = event.Decay{
			Type:        event.DecayType(int(cols[0][i])),
			StartWeight: cols[1][i],
		}
		for p := 0; p < photons; p++ {
			c := cols[decayColumns+p*PhotonColumns:]
			et.Photons[p][i] = event.Photon{
				Pos:                [3]float64{c[0][i], c[1][i], c[2][i]},
				Dir:                [3]float64{c[3][i], c[4][i], c[5][i]},
				Energy:             c[6][i],
				ObjectScatters:     int(c[7][i]),
				CollimatorScatters: int(c[8][i]),
				Weight:             c[9][i],
				Crystal:            int(c[10][i]),
				TravelDistance:     c[11][i],
			}
		}
	}

	return et, nil
}
