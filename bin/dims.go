/*package bin classifies detected PET coincidences and SPECT photons into
multi-dimensional histograms and accumulates them into count, weight, and
squared weight images.*/
package bin

import (
	"fmt"
	"strings"

	"github.com/phil-mansfield/phgbin/io"
)

// Dim is one of the dimension slots of an image. Paired dimensions (Z,
// Energy, Scatter, Crystal) have one slot per photon of a coincidence.
type Dim int

const (
	TD Dim = iota
	AA
	TOF
	Z1
	Z2
	Energy1
	Energy2
	Scatter1
	Scatter2
	Crystal1
	Crystal2
	PHI
	Theta
	XR
	YR
	DimCount
)

// Image headers must have a slot for every dimension.
var _ [io.MaxDims]struct{} = [DimCount]struct{}{}

func (d Dim) String() string {
	if d < 0 || d >= DimCount {
		return fmt.Sprintf("Dim(%d)", int(d))
	}
	return io.DimNames[d]
}

// Axis is a dimension as it appears in a configuration file's ordering.
type Axis int

const (
	TDAxis Axis = iota
	AAAxis
	TOFAxis
	ZAxis
	EnergyAxis
	ScatterAxis
	CrystalAxis
	PHIAxis
	ThetaAxis
	XRAxis
	YRAxis
	AxisCount
)

var axisNames = [AxisCount]string{
	"TD", "AA", "TOF", "Z", "Energy", "Scatter", "Crystal",
	"PHI", "Theta", "XR", "YR",
}

var axisDims = [AxisCount][2]Dim{
	{TD, -1}, {AA, -1}, {TOF, -1},
	{Z1, Z2}, {Energy1, Energy2}, {Scatter1, Scatter2}, {Crystal1, Crystal2},
	{PHI, -1}, {Theta, -1}, {XR, -1}, {YR, -1},
}

func (a Axis) String() string {
	if a < 0 || a >= AxisCount {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis converts an axis name to an Axis. Names are case-insensitive.
func ParseAxis(name string) (Axis, error) {
	for i, s := range axisNames {
		if strings.EqualFold(s, strings.TrimSpace(name)) {
			return Axis(i), nil
		}
	}
	return -1, fmt.Errorf(
		"Unrecognized dimension '%s'. Must be one of [%s].",
		name, strings.Join(axisNames[:], " | "),
	)
}

// Dims returns the dimension slots an axis covers. second is -1 for unpaired
// axes.
func (a Axis) Dims() (first, second Dim) {
	return axisDims[a][0], axisDims[a][1]
}

// Paired returns true if the axis has a slot for each photon.
func (a Axis) Paired() bool {
	return axisDims[a][1] >= 0
}

// AxisOf returns the axis which contains the given dimension slot.
func AxisOf(d Dim) Axis {
	for a := Axis(0); a < AxisCount; a++ {
		if axisDims[a][0] == d || axisDims[a][1] == d {
			return a
		}
	}
	return -1
}

// ParseDim converts a dimension slot name (e.g. "Z1" or "AA") to a Dim.
func ParseDim(name string) (Dim, error) {
	for i, s := range io.DimNames {
		if strings.EqualFold(s, strings.TrimSpace(name)) {
			return Dim(i), nil
		}
	}
	return -1, fmt.Errorf(
		"Unrecognized dimension slot '%s'. Must be one of [%s].",
		name, strings.Join(io.DimNames[:], " | "),
	)
}

// Indices holds one bin index per dimension slot.
type Indices [DimCount]int
