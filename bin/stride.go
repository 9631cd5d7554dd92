package bin

import (
	"fmt"

	"github.com/phil-mansfield/phgbin/io"
)

// Stride is the distance, in elements, between adjacent bins of a dimension
// in each of the three output buffers.
type Stride struct {
	Count, Weight, WeightSq int
}

// Strides maps per-dimension bin indices onto flat buffer offsets.
type Strides struct {
	Dims [DimCount]Stride
	// Size is the number of elements in each buffer.
	Size int
	// Byte sizes of the count, weight, and squared weight buffers.
	CountBytes, WeightBytes, WeightSqBytes int
}

// fold is the state carried from faster-varying dimensions to slower-varying
// ones while planning strides. A zero fold means that no dimension has been
// seen yet.
type fold struct {
	stride, bins int
}

// next returns the stride of a dimension with the given number of bins and the
// fold passed on to the next slower dimension.
func (f fold) next(bins int) (stride int, out fold) {
	if f.bins == 0 {
		stride = 1
	} else {
		stride = f.stride * f.bins
	}
	return stride, fold{stride, bins}
}

// size returns the total number of elements covered by every dimension folded
// so far.
func (f fold) size() int { return f.stride * f.bins }

// expand returns the dimension slots an axis covers, ordered from fastest- to
// slowest-varying.
func expand(a Axis, pet, rebin bool, p Policy) ([]Dim, error) {
	if a < 0 || a >= AxisCount {
		return nil, configErrorf("Unrecognized dimension %d in 'Order'.", int(a))
	}

	d1, d2 := a.Dims()
	switch {
	case !a.Paired(), !pet:
		return []Dim{d1}, nil
	case a == ZAxis && rebin:
		return []Dim{d1}, nil
	case a == ScatterAxis && p != PolicyPerPhoton && p != PolicyPerPhotonFold:
		return []Dim{d1}, nil
	}
	return []Dim{d2, d1}, nil
}

// PlanStrides computes the strides of every dimension slot. order lists the
// active axes from slowest- to fastest-varying and bins gives the number of
// bins along each slot. Slots which are not covered by order have a stride of
// zero, except for Z2 under axial rebinning, which aliases Z1.
func PlanStrides(
	order []Axis, bins *[DimCount]int, pet, rebin bool, p Policy,
	countBytes, weightBytes int,
) (*Strides, error) {
	if len(order) == 0 {
		return nil, configErrorf("'Order' must contain at least one dimension.")
	}

	s := &Strides{}
	f := fold{}
	for i := len(order) - 1; i >= 0; i-- {
		dims, err := expand(order[i], pet, rebin, p)
		if err != nil {
			return nil, err
		}
		for _, d := range dims {
			var stride int
			stride, f = f.next(bins[d])
			s.Dims[d] = Stride{stride, stride, stride}
		}
	}

	if pet && rebin {
		s.Dims[Z2] = s.Dims[Z1]
	}

	s.Size = f.size()
	s.CountBytes = s.Size * countBytes
	s.WeightBytes = s.Size * weightBytes
	s.WeightSqBytes = s.Size * weightBytes
	return s, nil
}

// Offset returns the flat offset of the bin with the given indices in the
// count buffer.
func (s *Strides) Offset(idx *Indices) int {
	off := 0
	for d := range idx {
		off += idx[d] * s.Dims[d].Count
	}
	return off
}

// Layout returns the image header description of the strides.
func (s *Strides) Layout(con *Config) io.LayoutInfo {
	l := io.LayoutInfo{}
	for d := Dim(0); d < DimCount; d++ {
		r := &con.Ranges[d]
		l.Bins[d] = int64(r.Bins)
		l.Strides[d] = int64(s.Dims[d].Count)
		l.Min[d], l.Max[d] = r.Min, r.Max
	}
	return l
}

func (s *Strides) String() string {
	return fmt.Sprintf("Strides{Size: %d, Counts: %d B, Weights: %d B}",
		s.Size, s.CountBytes, s.WeightBytes)
}
