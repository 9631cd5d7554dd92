package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/phil-mansfield/phgbin/event"
)

/*
History files record every binned detection. They start with a single int64
endianness flag (as in image files), followed by a sequence of records:

    |-- historyRecord --||-- historyPhoton --| x NumPhotons
*/

type historyRecord struct {
	DecayType   int64
	StartWeight float64
	Pos         [3]float64
	Time        float64
	NumPhotons  int64
}

type historyPhoton struct {
	Pos, Dir                           [3]float64
	Energy, Weight                     float64
	ObjectScatters, CollimatorScatters int64
	Crystal                            int64
	TravelDistance                     float64
}

// HistoryFile writes detections to a history file.
type HistoryFile struct {
	f   *os.File
	wr  *bufio.Writer
	buf []historyPhoton
}

// CreateHistoryFile creates a new history file, overwriting any existing file
// with the same name.
func CreateHistoryFile(fname string) (*HistoryFile, error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("Could not create history file %s: %w", fname, err)
	}
	hf := &HistoryFile{f: f, wr: bufio.NewWriter(f)}
	if err := binary.Write(hf.wr, end, endiannessFlag(end)); err != nil {
		f.Close()
		return nil, err
	}
	return hf, nil
}

// WriteDetections appends one record containing the decay and its detected
// photons.
func (hf *HistoryFile) WriteDetections(
	decay *event.Decay, photons ...*event.Photon,
) error {
	rec := historyRecord{
		DecayType:   int64(decay.Type),
		StartWeight: decay.StartWeight,
		Pos:         decay.Pos,
		Time:        decay.Time,
		NumPhotons:  int64(len(photons)),
	}

	hf.buf = hf.buf[:0]
	for _, p := range photons {
		hf.buf = append(hf.buf, historyPhoton{
			Pos: p.Pos, Dir: p.Dir,
			Energy: p.Energy, Weight: p.Weight,
			ObjectScatters:     int64(p.ObjectScatters),
			CollimatorScatters: int64(p.CollimatorScatters),
			Crystal:            int64(p.Crystal),
			TravelDistance:     p.TravelDistance,
		})
	}

	if err := binary.Write(hf.wr, end, &rec); err != nil {
		return err
	}
	return binary.Write(hf.wr, end, hf.buf)
}

// Close flushes and closes the file.
func (hf *HistoryFile) Close() error {
	if err := hf.wr.Flush(); err != nil {
		hf.f.Close()
		return err
	}
	return hf.f.Close()
}

// HistoryEntry is a single record read back from a history file.
type HistoryEntry struct {
	Decay   event.Decay
	Photons []event.Photon
}

// ReadHistoryFile reads every record in a history file.
func ReadHistoryFile(fname string) ([]HistoryEntry, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rd := bufio.NewReader(f)

	var flag int64
	if err := binary.Read(rd, end, &flag); err != nil {
		return nil, fmt.Errorf("Could not read history file %s: %w", fname, err)
	}
	if flag != 0 && flag != -1 {
		return nil, fmt.Errorf(
			"%s is not a history file: unrecognized endianness flag %d.",
			fname, flag,
		)
	}
	order := endianness(flag)

	entries := []HistoryEntry{}
	for {
		rec := historyRecord{}
		err := binary.Read(rd, order, &rec)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf(
				"Could not read record %d of %s: %w", len(entries), fname, err,
			)
		}

		hps := make([]historyPhoton, rec.NumPhotons)
		if err := binary.Read(rd, order, hps); err != nil {
			return nil, fmt.Errorf(
				"Could not read record %d of %s: %w", len(entries), fname, err,
			)
		}

		e := HistoryEntry{
			Decay: event.Decay{
				Type:        event.DecayType(rec.DecayType),
				StartWeight: rec.StartWeight,
				Pos:         rec.Pos,
				Time:        rec.Time,
			},
			Photons: make([]event.Photon, len(hps)),
		}
		for i, hp := range hps {
			e.Photons[i] = event.Photon{
				Pos: hp.Pos, Dir: hp.Dir,
				Energy: hp.Energy, Weight: hp.Weight,
				ObjectScatters:     int(hp.ObjectScatters),
				CollimatorScatters: int(hp.CollimatorScatters),
				Crystal:            int(hp.Crystal),
				TravelDistance:     hp.TravelDistance,
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}
