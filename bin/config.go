package bin

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/phgbin/io"
)

// Policy selects how scatter and random states are binned.
type Policy int

const (
	// PolicyNone uses a single bin.
	PolicyNone Policy = iota
	// PolicyScattered separates unscattered events from scattered ones.
	PolicyScattered
	// PolicyPerPhoton bins the scatter count of each photon.
	PolicyPerPhoton
	// PolicyPerPhotonFold is PolicyPerPhoton with high counts folded into the
	// top bin instead of being rejected.
	PolicyPerPhotonFold
	// PolicySum bins the summed scatter count of a coincidence.
	PolicySum
	// PolicySumFold is PolicySum with high sums folded into the top bin.
	PolicySumFold
	// PolicyTrueScatterRandom separates trues, scattered events and randoms.
	PolicyTrueScatterRandom
	// PolicyPairs linearizes the per-photon counts into one index and adds a
	// bin for randoms.
	PolicyPairs
	PolicyPairsFold
	// PolicySumRandom is PolicySum with a bin for randoms.
	PolicySumRandom
	PolicySumFoldRandom
	PolicyCount
)

// Folds returns true if the policy folds scatter counts above the maximum into
// the top bin.
func (p Policy) Folds() bool {
	return p == PolicyPerPhotonFold || p == PolicySumFold ||
		p == PolicyPairsFold || p == PolicySumFoldRandom
}

// Sums returns true if the policy bins the summed scatter count of both
// photons rather than applying a per-photon range.
func (p Policy) Sums() bool {
	return p == PolicySum || p == PolicySumFold ||
		p == PolicySumRandom || p == PolicySumFoldRandom
}

// BinsRandoms returns true if the policy reserves a bin for randoms.
func (p Policy) BinsRandoms() bool {
	return p >= PolicyTrueScatterRandom
}

// ConfigError is returned when binning parameters are inconsistent.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

// Range describes the binning of a single dimension over [Min, Max].
type Range struct {
	Bins     int
	Min, Max float64
}

// Contains returns true if x lies within [Min, Max].
func (r *Range) Contains(x float64) bool {
	return x >= r.Min && x <= r.Max
}

// Index returns the bin containing x. x must lie within the range. Values
// equal to Max fall into the top bin.
func (r *Range) Index(x float64) int {
	if r.Bins <= 1 {
		return 0
	}
	i := int((x - r.Min) / (r.Max - r.Min) * float64(r.Bins))
	if i >= r.Bins {
		return r.Bins - 1
	} else if i < 0 {
		return 0
	}
	return i
}

// Width returns the width of a single bin.
func (r *Range) Width() float64 {
	return (r.Max - r.Min) / float64(r.Bins)
}

// Config is the validated, immutable form of the binning parameters.
type Config struct {
	PET bool
	// Order lists the active axes from slowest- to fastest-varying.
	Order  []Axis
	Active [DimCount]bool
	Ranges [DimCount]Range

	CountImage, WeightImage, WeightSquaredImage string
	CountBytes, WeightBytes                     int
	SumAccordingToType                          bool

	AddToExisting    bool
	EventsToSimulate int64
	ScanLength       float64

	AcceptRandoms            bool
	Policy                   Policy
	MinScatters, MaxScatters int

	SSRB, MSRB                   bool
	ObjectRadius, DetectorRadius float64
	CollimatorRadius             float64
}

// NewConfig validates the raw binning parameters and converts them into a
// Config. Any inconsistency is reported as a *ConfigError.
func NewConfig(raw *io.BinConfig) (*Config, error) {
	if err := raw.Check(); err != nil {
		return nil, &ConfigError{err.Error()}
	}

	con := &Config{
		PET:                raw.IsPET(),
		CountImage:         raw.CountImage,
		WeightImage:        raw.WeightImage,
		WeightSquaredImage: raw.WeightSquaredImage,
		CountBytes:         raw.CountBytes,
		WeightBytes:        raw.WeightBytes,
		SumAccordingToType: raw.SumAccordingToType,
		AddToExisting:      raw.AddToExisting,
		EventsToSimulate:   raw.EventsToSimulate,
		ScanLength:         raw.ScanLength,
		AcceptRandoms:      raw.AcceptRandoms,
		Policy:             Policy(raw.ScatterRandomParam),
		MinScatters:        raw.MinScatters,
		MaxScatters:        raw.MaxScatters,
		SSRB:               raw.SSRB,
		MSRB:               raw.MSRB,
		ObjectRadius:       raw.ObjectRadius,
		DetectorRadius:     raw.DetectorRadius,
		CollimatorRadius:   raw.CollimatorRadius,
	}

	if err := con.setOrder(raw.OrderNames()); err != nil {
		return nil, err
	}
	con.setRanges(raw)

	if err := con.check(); err != nil {
		return nil, err
	}
	return con, nil
}

func (con *Config) setOrder(names []string) error {
	seen := [AxisCount]bool{}
	for _, name := range names {
		a, err := ParseAxis(name)
		if err != nil {
			return &ConfigError{err.Error()}
		}
		if seen[a] {
			return configErrorf(
				"Dimension '%s' appears more than once in 'Order'.", a,
			)
		}
		seen[a] = true
		con.Order = append(con.Order, a)

		d1, d2 := a.Dims()
		con.Active[d1] = true
		if d2 >= 0 && con.PET {
			con.Active[d2] = true
		}
	}
	return nil
}

func (con *Config) setRanges(raw *io.BinConfig) {
	r := &con.Ranges
	r[TD] = Range{raw.NumTDBins, raw.MinTD, raw.MaxTD}
	r[TOF] = Range{raw.NumTOFBins, raw.MinTOF, raw.MaxTOF}
	r[Z1] = Range{raw.NumZBins, raw.MinZ, raw.MaxZ}
	r[Energy1] = Range{raw.NumEBins, raw.MinE, raw.MaxE}
	r[Crystal1] = Range{raw.NumCrystalBins, 0, float64(raw.NumCrystalBins)}
	r[Theta] = Range{raw.NumThetaBins, raw.MinTheta, raw.MaxTheta}
	r[XR] = Range{raw.NumXRBins, raw.MinXR, raw.MaxXR}
	r[YR] = Range{raw.NumYRBins, raw.MinYR, raw.MaxYR}

	if con.PET {
		r[AA] = Range{raw.NumAABins, -math.Pi / 2, math.Pi / 2}
	} else {
		r[AA] = Range{raw.NumAABins, 0, 2 * math.Pi}
	}

	d := con.ReprojectionLimit(raw.NumPHIBins)
	r[PHI] = Range{raw.NumPHIBins, -d, math.Pi - d}

	b1, b2 := con.scatterBins()
	r[Scatter1] = Range{b1, 0, float64(b1)}
	r[Scatter2] = Range{b2, 0, float64(b2)}

	// Paired dimensions share the first photon's binning. The second slot
	// only exists for unrebinned PET coincidences.
	r[Z2], r[Energy2], r[Crystal2] = r[Z1], r[Energy1], r[Crystal1]
	if !con.PET {
		r[Z2].Bins, r[Energy2].Bins, r[Crystal2].Bins = 1, 1, 1
	}
	if con.Rebinning() {
		r[Z2].Bins = 1
		con.Active[Z2] = false
	}
}

// ReprojectionLimit returns d, the angle such that phi is kept within
// [-d, pi - d) for the given number of phi bins.
func (con *Config) ReprojectionLimit(phiBins int) float64 {
	if phiBins < 1 {
		phiBins = 1
	}
	return math.Pi / (2 * float64(phiBins))
}

// Rebinning returns true if either axial rebinning mode is on.
func (con *Config) Rebinning() bool { return con.SSRB || con.MSRB }

// Reprojecting returns true if any 3D reprojection dimension is binned.
func (con *Config) Reprojecting() bool {
	return con.Active[PHI] || con.Active[Theta] ||
		con.Active[XR] || con.Active[YR]
}

// ScatterRange returns the number of distinct scatter counts in
// [MinScatters, MaxScatters].
func (con *Config) ScatterRange() int {
	return con.MaxScatters - con.MinScatters + 1
}

// Bins returns the number of bins along every dimension slot.
func (con *Config) Bins() [DimCount]int {
	bins := [DimCount]int{}
	for d := range bins {
		bins[d] = con.Ranges[d].Bins
	}
	return bins
}

func (con *Config) hasAxis(a Axis) bool {
	for _, x := range con.Order {
		if x == a {
			return true
		}
	}
	return false
}

func (con *Config) check() error {
	if con.Policy < 0 || con.Policy >= PolicyCount {
		return configErrorf(
			"'ScatterRandomParam' must be in the range [0, %d], not %d.",
			PolicyCount-1, con.Policy,
		)
	}
	if con.Policy > PolicySumFold && !con.AcceptRandoms {
		return configErrorf(
			"'ScatterRandomParam' = %d bins randoms, so 'AcceptRandoms' "+
				"must be set.", con.Policy,
		)
	}

	if con.SSRB && con.MSRB {
		return configErrorf("'SSRB' and 'MSRB' cannot both be set.")
	}
	if con.Rebinning() {
		switch {
		case !con.PET:
			return configErrorf("Axial rebinning is only supported for PET.")
		case !con.hasAxis(ZAxis) || con.Ranges[Z1].Bins < 2:
			return configErrorf(
				"Axial rebinning requires 'Z' in 'Order' and 'NumZBins' >= 2.",
			)
		}
	}
	if con.MSRB && (con.ObjectRadius <= 0 || con.DetectorRadius <= 0) {
		return configErrorf(
			"'MSRB' requires positive 'ObjectRadius' and 'DetectorRadius'.",
		)
	}

	if !con.PET {
		if con.Policy > PolicyPerPhotonFold {
			return configErrorf(
				"'ScatterRandomParam' = %d is not valid in SPECT mode.",
				con.Policy,
			)
		}
		for _, a := range []Axis{TOFAxis, PHIAxis, ThetaAxis, XRAxis, YRAxis} {
			d, _ := a.Dims()
			if con.hasAxis(a) || con.Ranges[d].Bins > 1 {
				return configErrorf(
					"Dimension '%s' cannot be binned in SPECT mode.", a,
				)
			}
		}
	}

	for d := Dim(0); d < DimCount; d++ {
		r := &con.Ranges[d]
		if r.Bins < 1 {
			return configErrorf(
				"Dimension '%s' must have at least one bin, not %d.", d, r.Bins,
			)
		}
		if r.Bins > 1 && !con.Active[d] {
			return configErrorf(
				"Dimension '%s' has %d bins but does not appear in 'Order'.",
				AxisOf(d), r.Bins,
			)
		}
	}

	// Ranges which are either binned or always used as acceptance windows.
	for _, d := range []Dim{TD, TOF, Z1, Energy1, Theta, XR, YR} {
		if d != Z1 && d != Energy1 && !con.Active[d] {
			continue
		}
		if r := &con.Ranges[d]; !(r.Min < r.Max) {
			return configErrorf(
				"Range of '%s' is [%g, %g], but the minimum must be less "+
					"than the maximum.", AxisOf(d), r.Min, r.Max,
			)
		}
	}

	return nil
}
