package io

import (
	"fmt"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"
)

const (
	ExampleBinFile = `[Bin]

#######################
# Required Parameters #
#######################

# Mode must be one of [ PET | SPECT ].
Mode = PET

# The dimensions which events are binned along, listed from the slowest-varying
# to the fastest-varying. Accepted names are:
# [ TD | AA | TOF | Z | Energy | Scatter | Crystal | PHI | Theta | XR | YR ]
# Z, Energy, Scatter, and Crystal each stand for a pair of dimensions in PET
# mode, one for each photon in the coincidence. Dimensions which are not listed
# here must have a single bin.
Order = Z, Energy, AA, TD

# At least one of the following images must be set. Existing files are
# overwritten unless AddToExisting is set.
CountImage = path/to/counts.img
# WeightImage = path/to/weights.img
# WeightSquaredImage = path/to/weights2.img

# Number of decays that will be simulated by this run.
EventsToSimulate = 1000000

#######################
# Optional Parameters #
#######################

# Element sizes in bytes. Counts may be 1, 2, or 4 bytes wide and weights may
# be 4 or 8 bytes wide. Defaults are 4 and 4.
# CountBytes = 4
# WeightBytes = 4

# By default weights are summed in double precision and narrowed when written.
# Set this to sum in the precision given by WeightBytes instead.
# SumAccordingToType = false

# Add this run's events to the images from an earlier run. Existing weights are
# reweighted so that the combined image stays unbiased.
# AddToExisting = false
# ScanLength = 0

# Compress image payloads with zstd.
# Compress = false

# Record every binned event to a history file.
# HistoryFile = path/to/history.hist

# Randoms are rejected unless AcceptRandoms is set.
# AcceptRandoms = false

# ScatterRandomParam selects how scatter and random states are binned:
#  0 - no discrimination             1 - unscattered vs. scattered
#  2 - scatter count of each photon  3 - 2, with high counts in the top bin
#  4 - summed scatter count (PET)    5 - 4, with high sums in the top bin
#  6 - true / scattered / random     7 - 2 linearized, plus a randoms bin
#  8 - 7, with high counts folded    9 - 4, plus a randoms bin
# 10 - 5, plus a randoms bin
# ScatterRandomParam = 0
# MinScatters = 0
# MaxScatters = 9

# Bin counts and ranges. Distances are in cm, energies in keV, times in ns and
# angles in radians.
NumZBins = 4
MinZ = -7.5
MaxZ = 7.5
NumEBins = 2
MinE = 350
MaxE = 650
NumAABins = 64
NumTDBins = 64
MinTD = -20
MaxTD = 20
# NumTOFBins = 1
# MinTOF = -1
# MaxTOF = 1
# NumCrystalBins = 1
# NumPHIBins = 1
# NumThetaBins = 1
# MinTheta = -0.5
# MaxTheta = 0.5
# NumXRBins = 1
# MinXR = -20
# MaxXR = 20
# NumYRBins = 1
# MinYR = -20
# MaxYR = 20

# Axial rebinning. At most one may be set, and Z must have at least two bins.
# MSRB needs ObjectRadius and DetectorRadius.
# SSRB = false
# MSRB = false
# ObjectRadius = 10
# DetectorRadius = 40

# SPECT only: radius of the collimator face that photon positions are
# projected onto when no detector geometry is available.
# CollimatorRadius = 0

# Output files which are useful for profiling and debugging.
# ProfileFile = prof.out
# LogFile = log.out`
)

// SharedConfig holds the variables which are understood by every mode.
type SharedConfig struct {
	// Optional
	LogFile, ProfileFile string
}

func (con *SharedConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SharedConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// BinConfig is the [Bin] section of a configuration file. It is the raw,
// user-facing form of the binning parameters.
type BinConfig struct {
	SharedConfig

	// Required
	Mode, Order                                 string
	CountImage, WeightImage, WeightSquaredImage string
	EventsToSimulate                            int64

	// Optional
	CountBytes, WeightBytes int
	SumAccordingToType      bool
	AddToExisting, Compress bool
	ScanLength              float64
	HistoryFile             string

	AcceptRandoms            bool
	ScatterRandomParam       int
	MinScatters, MaxScatters int

	NumTDBins          int
	MinTD, MaxTD       float64
	NumAABins          int
	NumTOFBins         int
	MinTOF, MaxTOF     float64
	NumZBins           int
	MinZ, MaxZ         float64
	NumEBins           int
	MinE, MaxE         float64
	NumCrystalBins     int
	NumPHIBins         int
	NumThetaBins       int
	MinTheta, MaxTheta float64
	NumXRBins          int
	MinXR, MaxXR       float64
	NumYRBins          int
	MinYR, MaxYR       float64

	SSRB, MSRB                   bool
	ObjectRadius, DetectorRadius float64
	CollimatorRadius             float64
}

// BinWrapper is the struct that gcfg reads [Bin] files into.
type BinWrapper struct {
	Bin BinConfig
}

// DefaultBinWrapper returns a wrapper whose optional variables have been set
// to their defaults.
func DefaultBinWrapper() *BinWrapper {
	con := BinConfig{}
	con.CountBytes = 4
	con.WeightBytes = 4
	con.MaxScatters = 9

	con.NumTDBins, con.NumAABins, con.NumTOFBins = 1, 1, 1
	con.NumZBins, con.NumEBins, con.NumCrystalBins = 1, 1, 1
	con.NumPHIBins, con.NumThetaBins = 1, 1
	con.NumXRBins, con.NumYRBins = 1, 1

	// Wide acceptance windows. Ranged dimensions which are binned need real
	// ranges.
	con.MinE, con.MaxE = 0, 1e4
	con.MinZ, con.MaxZ = -1e4, 1e4
	con.MinTD, con.MaxTD = -1e4, 1e4
	con.MinTOF, con.MaxTOF = -1e4, 1e4
	con.MinTheta, con.MaxTheta = -1.6, 1.6
	con.MinXR, con.MaxXR = -1e4, 1e4
	con.MinYR, con.MaxYR = -1e4, 1e4

	return &BinWrapper{con}
}

// ReadBinConfig reads a [Bin] configuration file.
func ReadBinConfig(fname string) (*BinConfig, error) {
	wrap := DefaultBinWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	return &wrap.Bin, nil
}

// ReadBinConfigString reads a [Bin] configuration from a string.
func ReadBinConfigString(text string) (*BinConfig, error) {
	wrap := DefaultBinWrapper()
	if err := gcfg.ReadStringInto(wrap, text); err != nil {
		return nil, err
	}
	return &wrap.Bin, nil
}

func (con *BinConfig) ValidMode() bool {
	m := strings.ToUpper(strings.TrimSpace(con.Mode))
	return m == "PET" || m == "SPECT"
}

// IsPET returns true if the configuration is for coincidence imaging.
func (con *BinConfig) IsPET() bool {
	return strings.ToUpper(strings.TrimSpace(con.Mode)) == "PET"
}

func (con *BinConfig) ValidOrder() bool {
	return len(con.OrderNames()) > 0
}

// OrderNames splits Order into its individual dimension names.
func (con *BinConfig) OrderNames() []string {
	names := []string{}
	for _, tok := range strings.Split(con.Order, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			names = append(names, tok)
		}
	}
	return names
}

func (con *BinConfig) ValidImages() bool {
	return con.CountImage != "" || con.WeightImage != "" ||
		con.WeightSquaredImage != ""
}

func (con *BinConfig) ValidCountBytes() bool {
	return con.CountBytes == 1 || con.CountBytes == 2 || con.CountBytes == 4
}

func (con *BinConfig) ValidWeightBytes() bool {
	return con.WeightBytes == 4 || con.WeightBytes == 8
}

func (con *BinConfig) ValidEventsToSimulate() bool {
	return con.EventsToSimulate > 0
}

func (con *BinConfig) ValidScatterRandomParam() bool {
	return con.ScatterRandomParam >= 0 && con.ScatterRandomParam <= 10
}

func (con *BinConfig) ValidScatters() bool {
	return con.MinScatters >= 0 && con.MinScatters <= con.MaxScatters
}

func (con *BinConfig) ValidScanLength() bool {
	return con.ScanLength >= 0
}

// Check runs every Valid* method and returns an error describing the first
// variable which failed.
func (con *BinConfig) Check() error {
	switch {
	case !con.ValidMode():
		return fmt.Errorf("Invalid/non-existent 'Mode' value, '%s'. Must "+
			"be one of [PET | SPECT].", con.Mode)
	case !con.ValidOrder():
		return fmt.Errorf("Invalid/non-existent 'Order' value.")
	case !con.ValidImages():
		return fmt.Errorf("At least one of 'CountImage', 'WeightImage', " +
			"and 'WeightSquaredImage' must be set.")
	case !con.ValidCountBytes():
		return fmt.Errorf("'CountBytes' must be 1, 2, or 4, not %d.",
			con.CountBytes)
	case !con.ValidWeightBytes():
		return fmt.Errorf("'WeightBytes' must be 4 or 8, not %d.",
			con.WeightBytes)
	case !con.ValidEventsToSimulate():
		return fmt.Errorf("'EventsToSimulate' must be positive, not %d.",
			con.EventsToSimulate)
	case !con.ValidScatterRandomParam():
		return fmt.Errorf("'ScatterRandomParam' must be in the range "+
			"[0, 10], not %d.", con.ScatterRandomParam)
	case !con.ValidScatters():
		return fmt.Errorf("'MinScatters' (%d) and 'MaxScatters' (%d) must "+
			"satisfy 0 <= MinScatters <= MaxScatters.",
			con.MinScatters, con.MaxScatters)
	case !con.ValidScanLength():
		return fmt.Errorf("'ScanLength' cannot be negative.")
	}
	return nil
}

// YAML returns the configuration formatted as YAML.
func (con *BinConfig) YAML() ([]byte, error) {
	return yaml.Marshal(con)
}
