/*package event contains the records which photon transport hands to the
binning engine: decays and the photons they produced.*/
package event

// DecayType classifies the decay which produced a set of photons.
type DecayType int

const (
	Unknown DecayType = iota
	// SinglePhoton decays emit one photon (SPECT).
	SinglePhoton
	// Positron decays emit a pair of annihilation photons (PET).
	Positron
	// Random marks a coincidence formed from two unrelated decays.
	Random
	// Multiple decays emit a positron along with additional photons.
	Multiple
)

func (t DecayType) String() string {
	switch t {
	case SinglePhoton:
		return "SinglePhoton"
	case Positron:
		return "Positron"
	case Random:
		return "Random"
	case Multiple:
		return "Multiple"
	}
	return "Unknown"
}

// Decay is the originating decay of one or more detected photons.
type Decay struct {
	Type        DecayType
	// StartWeight is the statistical weight the decay was created with.
	StartWeight float64
	Pos         [3]float64
	Time        float64
}

// IsRandom returns true if the decay is a random coincidence.
func (d *Decay) IsRandom() bool { return d.Type == Random }

// Photon is a tracked photon which reached the detector.
type Photon struct {
	// Pos is the detection position in cm.
	Pos    [3]float64
	// Dir contains the direction cosines of the photon's flight.
	Dir    [3]float64
	// Energy is given in keV.
	Energy float64
	// Weight is relative to the decay's StartWeight.
	Weight float64

	ObjectScatters, CollimatorScatters int

	// Crystal is the id of the detector crystal. Negative if unknown.
	Crystal        int
	// TravelDistance is the path length from the decay, in cm.
	TravelDistance float64

	// HasDetector is set when upstream geometry modules already computed
	// DetectorAngle and TransaxialPos.
	HasDetector                  bool
	DetectorAngle, TransaxialPos float64
}

// Scatters returns the total number of scatters the photon underwent.
func (p *Photon) Scatters() int {
	return p.ObjectScatters + p.CollimatorScatters
}
