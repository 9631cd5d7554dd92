package bin

import (
	"bytes"
	"fmt"
	"log"

	"github.com/phil-mansfield/phgbin/buffer"
	"github.com/phil-mansfield/phgbin/io"
)

// MergeRatios returns the factor existing image data is rescaled by and the
// factor newly binned weights are scaled by when fresh events are added to
// images which already contain prior events.
func MergeRatios(prior, fresh int64) (existing, current float64) {
	total := prior + fresh
	if total <= 0 {
		return 0, 1
	}
	return float64(prior) / float64(total), float64(fresh) / float64(total)
}

// imageSlot is one of the images an engine writes.
type imageSlot struct {
	kind        io.ImageKind
	path        string
	elementSize int
}

func (e *Engine) slots() []imageSlot {
	con := e.con
	slots := []imageSlot{}
	if con.CountImage != "" {
		slots = append(slots, imageSlot{io.CountKind, con.CountImage, con.CountBytes})
	}
	if con.WeightImage != "" {
		slots = append(slots, imageSlot{io.WeightKind, con.WeightImage, con.WeightBytes})
	}
	if con.WeightSquaredImage != "" {
		slots = append(slots, imageSlot{
			io.WeightSquaredKind, con.WeightSquaredImage, con.WeightBytes,
		})
	}
	return slots
}

// merge opens every output image and, if existing images are being added to,
// loads and reweights their contents.
func (e *Engine) merge() error {
	con := e.con
	slots := e.slots()
	existing := map[io.ImageKind]*io.Image{}

	for _, s := range slots {
		img, err := e.store.OpenOrCreate(
			s.path, con.AddToExisting, int64(e.strides.Size),
		)
		if err != nil {
			return err
		}
		if img == nil {
			continue
		}
		if err := e.checkExisting(s, &img.Header); err != nil {
			return err
		}
		existing[s.kind] = img
	}

	if len(existing) == 0 {
		_, e.newRatio = MergeRatios(0, con.EventsToSimulate)
		return nil
	} else if len(existing) != len(slots) {
		return fmt.Errorf(
			"Only %d of the %d output images exist, so they cannot be " +
				"added to consistently.", len(existing), len(slots),
		)
	}

	var ref *io.ImageHeader
	for _, s := range slots {
		hd := &existing[s.kind].Header
		if ref == nil {
			ref = hd
		} else if hd.Run.Events != ref.Run.Events {
			return fmt.Errorf(
				"Existing images disagree on the number of simulated events: "+
					"%s has %d, but %s has %d.", slots[0].path, ref.Run.Events,
				s.path, hd.Run.Events,
			)
		}
	}

	e.prior = ref.Run.Events
	ratio, newRatio := MergeRatios(e.prior, con.EventsToSimulate)
	e.newRatio = newRatio

	if img, ok := existing[io.CountKind]; ok {
		rd := bytes.NewReader(img.Payload)
		if err := e.counts.Read(rd, img.Header.Order()); err != nil {
			return fmt.Errorf("Could not load %s: %w", con.CountImage, err)
		}
	}
	if img, ok := existing[io.WeightKind]; ok {
		if err := loadWeights(e.weights, img); err != nil {
			return fmt.Errorf("Could not load %s: %w", con.WeightImage, err)
		}
		e.weights.Scale(ratio)
	}
	if img, ok := existing[io.WeightSquaredKind]; ok {
		if err := loadWeights(e.weightsSq, img); err != nil {
			return fmt.Errorf("Could not load %s: %w", con.WeightSquaredImage, err)
		}
		e.weightsSq.Scale(ratio * ratio)
	}

	e.stats.StartAccepted = ref.Run.EventsAccepted

	if e.weights != nil {
		e.stats.StartWeightSum = e.weights.Sum()
	} else {
		e.stats.StartWeightSum = ref.Run.WeightSum * ratio
	}

	switch {
	case e.weightsSq != nil:
		e.stats.StartWeightSquaredSum = e.weightsSq.Sum()
	case ref.HasWeightSquaredSum():
		e.stats.StartWeightSquaredSum = ref.Run.WeightSquaredSum * ratio * ratio
	default:
		log.Printf(
			"Warning: the header of %s predates squared weight sums, so the "+
				"cumulative squared weight is starting from zero.",
			slots[0].path,
		)
	}

	e.stats.WeightSum = e.stats.StartWeightSum
	e.stats.WeightSquaredSum = e.stats.StartWeightSquaredSum

	log.Printf(
		"Adding %d events to %d existing events. Existing data rescaled by %.6g.",
		con.EventsToSimulate, e.prior, ratio,
	)
	return nil
}

// checkExisting returns an error if an existing image cannot be added to
// under the current configuration.
func (e *Engine) checkExisting(s imageSlot, hd *io.ImageHeader) error {
	con := e.con
	layout := e.strides.Layout(con)

	switch {
	case hd.Type.Kind != s.kind:
		return fmt.Errorf(
			"%s holds a %s image, not a %s image.", s.path, hd.Type.Kind, s.kind,
		)
	case hd.Type.ElementSize != int64(s.elementSize):
		return fmt.Errorf(
			"%s has %d-byte elements, but the current configuration uses "+
				"%d-byte elements.", s.path, hd.Type.ElementSize, s.elementSize,
		)
	case hd.Run.ScanLength != con.ScanLength:
		return fmt.Errorf(
			"%s was simulated with a scan length of %g, but the current "+
				"scan length is %g.", s.path, hd.Run.ScanLength, con.ScanLength,
		)
	case (hd.Run.IsPET != 0) != con.PET:
		return fmt.Errorf("%s was binned in a different mode.", s.path)
	case !hd.Layout.SameLayout(&layout):
		return fmt.Errorf(
			"%s was binned with different dimensions than the current "+
				"configuration.", s.path,
		)
	}
	return nil
}

// loadWeights adds the contents of a weight image to an empty weight buffer
// whose element type may differ from the image's.
func loadWeights(dst buffer.Weights, img *io.Image) error {
	hd := &img.Header
	src, err := buffer.NewWeights(int(hd.Type.Elements), int(hd.Type.ElementSize))
	if err != nil {
		return err
	}
	if err := src.Read(bytes.NewReader(img.Payload), hd.Order()); err != nil {
		return err
	}
	for i := 0; i < src.Len(); i++ {
		dst.Add(i, src.Value(i))
	}
	return nil
}
