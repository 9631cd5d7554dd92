package bin

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/phil-mansfield/phgbin/buffer"
	"github.com/phil-mansfield/phgbin/io"
)

// ImageValues decodes the payload of an image into an array of float64s.
func ImageValues(img *io.Image) ([]float64, error) {
	hd := &img.Header
	n, size := int(hd.Type.Elements), int(hd.Type.ElementSize)
	rd := bytes.NewReader(img.Payload)

	if hd.Type.Kind == io.CountKind {
		counts, err := buffer.NewCounts(n, size)
		if err != nil {
			return nil, err
		}
		if err := counts.Read(rd, hd.Order()); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(counts.Value(i))
		}
		return out, nil
	}

	w, err := buffer.NewWeights(n, size)
	if err != nil {
		return nil, err
	}
	if err := w.Read(rd, hd.Order()); err != nil {
		return nil, err
	}
	return buffer.Float64s(w), nil
}

// Marginal sums an image over every dimension except d and returns one value
// per bin of d.
func Marginal(values []float64, l *io.LayoutInfo, d Dim) ([]float64, error) {
	if d < 0 || d >= DimCount {
		return nil, fmt.Errorf("Unrecognized dimension %d.", int(d))
	}
	bins, stride := int(l.Bins[d]), int(l.Strides[d])
	if bins < 1 {
		return nil, fmt.Errorf("Dimension %s has %d bins.", d, bins)
	}

	out := make([]float64, bins)
	if bins == 1 || stride == 0 {
		out[0] = floats.Sum(values)
		return out, nil
	}

	for i, x := range values {
		out[(i/stride)%bins] += x
	}
	return out, nil
}

// Centers returns the centers of the bins of dimension d.
func Centers(l *io.LayoutInfo, d Dim) []float64 {
	bins := int(l.Bins[d])
	out := make([]float64, bins)
	dx := (l.Max[d] - l.Min[d]) / float64(bins)
	for i := range out {
		out[i] = l.Min[d] + dx*(float64(i)+0.5)
	}
	return out
}
