package bin

import (
	"bytes"
	"fmt"
	"log"

	"github.com/phil-mansfield/phgbin/buffer"
	"github.com/phil-mansfield/phgbin/event"
	"github.com/phil-mansfield/phgbin/io"
)

// ImageStore opens and writes the image files which an Engine accumulates
// into.
type ImageStore interface {
	// OpenOrCreate prepares path for an image of the given number of
	// elements. If add is set and an image already exists at path, it is
	// returned. Otherwise a nil *io.Image is returned.
	OpenOrCreate(path string, add bool, elements int64) (*io.Image, error)
	// Write writes a header and a payload in native byte order to path.
	Write(path string, hd *io.ImageHeader, payload []byte) error
}

var _ ImageStore = &io.FileStore{}

// Engine classifies events and accumulates them into output buffers. Engine
// is not safe for concurrent use; see LockedEngine.
type Engine struct {
	con     *Config
	strides *Strides
	store   ImageStore
	hooks   Hooks
	hist    HistoryWriter

	counts             buffer.Counts
	weights, weightsSq buffer.Weights

	// prior is the number of events simulated by earlier runs and newRatio is
	// the factor applied to this run's weights.
	prior    int64
	newRatio float64

	stats  Stats
	err    error
	closed bool
}

// NewEngine plans the strides of the configured images, allocates their
// buffers and merges in any existing images. hooks and hist may be nil.
func NewEngine(
	con *Config, store ImageStore, hooks Hooks, hist HistoryWriter,
) (*Engine, error) {
	if hooks == nil {
		hooks = NopHooks{}
	}

	bins := con.Bins()
	strides, err := PlanStrides(
		con.Order, &bins, con.PET, con.Rebinning(), con.Policy,
		con.CountBytes, con.WeightBytes,
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		con: con, strides: strides, store: store, hooks: hooks, hist: hist,
		newRatio: 1,
	}

	if err := e.allocate(); err != nil {
		return nil, err
	}
	if err := e.merge(); err != nil {
		e.release()
		return nil, err
	}
	if err := hooks.Initialize(con); err != nil {
		e.release()
		return nil, err
	}

	log.Printf("Binning into %d elements per image (%s).", strides.Size, strides)
	return e, nil
}

// accumulationBytes returns the element size weights are summed in.
func (con *Config) accumulationBytes() int {
	if con.SumAccordingToType {
		return con.WeightBytes
	}
	return 8
}

func (e *Engine) allocate() error {
	con, n := e.con, e.strides.Size
	var err error
	if con.CountImage != "" {
		if e.counts, err = buffer.NewCounts(n, con.CountBytes); err != nil {
			return err
		}
	}
	if con.WeightImage != "" {
		if e.weights, err = buffer.NewWeights(n, con.accumulationBytes()); err != nil {
			return err
		}
	}
	if con.WeightSquaredImage != "" {
		if e.weightsSq, err = buffer.NewWeights(n, con.accumulationBytes()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) release() {
	e.counts, e.weights, e.weightsSq = nil, nil, nil
}

// fail releases the engine's buffers and makes err sticky.
func (e *Engine) fail(err error) error {
	e.release()
	e.err = err
	log.Printf("Binning aborted: %s", err.Error())
	return err
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config { return e.con }

// Strides returns the engine's stride table.
func (e *Engine) Strides() *Strides { return e.strides }

// Stats returns a copy of the engine's running statistics.
func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) usable() error {
	if e.err != nil {
		return e.err
	} else if e.closed {
		return fmt.Errorf("Engine has already been closed.")
	}
	return nil
}

// BinPET bins every coincidence formed by pairing a blue photon with a pink
// photon of the same decay.
func (e *Engine) BinPET(
	decay *event.Decay, blues, pinks []event.Photon,
) error {
	if err := e.usable(); err != nil {
		return err
	}
	if !e.con.PET {
		return fmt.Errorf("BinPET called on an engine configured for SPECT.")
	}

	e.stats.Decays++
	for i := range blues {
		for j := range pinks {
			if err := e.binCoincidence(decay, &blues[i], &pinks[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// BinSPECT bins every photon of a decay.
func (e *Engine) BinSPECT(decay *event.Decay, photons []event.Photon) error {
	if err := e.usable(); err != nil {
		return err
	}
	if e.con.PET {
		return fmt.Errorf("BinSPECT called on an engine configured for PET.")
	}

	e.stats.Decays++
	for i := range photons {
		if err := e.binPhoton(decay, &photons[i]); err != nil {
			return err
		}
	}
	return nil
}

// commit adds a contribution to the bin at idx.
func (e *Engine) commit(idx *Indices, c Contribution) error {
	i := e.strides.Offset(idx)
	checkIndices(e, idx, i)

	if e.counts != nil {
		if err := e.counts.Inc(i); err != nil {
			return e.fail(err)
		}
	}
	if e.weights != nil {
		e.weights.Add(i, c.Weight)
	}
	if e.weightsSq != nil {
		e.weightsSq.Add(i, c.WeightSquared)
	}

	e.stats.WeightSum += c.Weight
	e.stats.WeightSquaredSum += c.WeightSquared
	return nil
}

// record passes accepted detections on to the history writer.
func (e *Engine) record(decay *event.Decay, photons ...*event.Photon) error {
	if e.hist == nil {
		return nil
	}
	if err := e.hist.WriteDetections(decay, photons...); err != nil {
		return e.fail(fmt.Errorf("Could not record detections: %w", err))
	}
	return nil
}

// Close writes the engine's images and releases its buffers. If binning
// failed, Close returns the error which stopped it and writes nothing.
func (e *Engine) Close() error {
	if e.err != nil {
		return e.err
	} else if e.closed {
		return nil
	}
	e.closed = true
	defer e.release()

	if err := e.hooks.Terminate(&e.stats); err != nil {
		return err
	}

	con := e.con
	if e.counts != nil {
		if err := e.write(con.CountImage, io.CountKind, e.counts); err != nil {
			return err
		}
	}
	if e.weights != nil {
		w := e.narrow(e.weights)
		if err := e.write(con.WeightImage, io.WeightKind, w); err != nil {
			return err
		}
	}
	if e.weightsSq != nil {
		w := e.narrow(e.weightsSq)
		if err := e.write(con.WeightSquaredImage, io.WeightSquaredKind, w); err != nil {
			return err
		}
	}

	log.Printf("Binning statistics:\n%s", e.stats.String())
	return nil
}

// narrow converts an accumulation buffer to the configured element type.
func (e *Engine) narrow(w buffer.Weights) buffer.Weights {
	if w.ElementSize() == e.con.WeightBytes {
		return w
	}
	return buffer.Narrow(w)
}

// write encodes a count or weight buffer and writes it as an image of the
// given kind.
func (e *Engine) write(
	path string, kind io.ImageKind, buf interface{ ElementSize() int },
) error {
	payload := &bytes.Buffer{}
	var err error
	switch x := buf.(type) {
	case buffer.Counts:
		err = x.Write(payload, io.NativeOrder())
	case buffer.Weights:
		err = x.Write(payload, io.NativeOrder())
	}
	if err != nil {
		return err
	}

	hd := e.header(kind, buf.ElementSize())
	if err := e.store.Write(path, hd, payload.Bytes()); err != nil {
		return fmt.Errorf("Could not write %s image: %w", kind, err)
	}
	return nil
}

// header returns the header of an output image.
func (e *Engine) header(kind io.ImageKind, elementSize int) *io.ImageHeader {
	con := e.con
	hd := &io.ImageHeader{}
	hd.Type.Kind = kind
	hd.Type.ElementSize = int64(elementSize)
	hd.Type.Elements = int64(e.strides.Size)

	hd.Run = io.RunInfo{
		ScatterRandomParam: int64(con.Policy),
		Events:             e.prior + con.EventsToSimulate,
		EventsAccepted:     e.stats.TotalAccepted(),
		ScanLength:         con.ScanLength,
		WeightSum:          e.stats.WeightSum,
		WeightSquaredSum:   e.stats.WeightSquaredSum,
	}
	if con.PET {
		hd.Run.IsPET = 1
	}

	hd.Layout = e.strides.Layout(con)
	return hd
}
