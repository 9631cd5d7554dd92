package bin

import (
	"sync"

	"github.com/phil-mansfield/phgbin/event"
)

// LockedEngine serializes access to an Engine so that it can be fed by
// several transport workers at once.
type LockedEngine struct {
	mu sync.Mutex
	e  *Engine
}

// NewLockedEngine wraps e. e must not be used directly afterwards.
func NewLockedEngine(e *Engine) *LockedEngine {
	return &LockedEngine{e: e}
}

func (le *LockedEngine) BinPET(
	decay *event.Decay, blues, pinks []event.Photon,
) error {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.e.BinPET(decay, blues, pinks)
}

func (le *LockedEngine) BinSPECT(decay *event.Decay, photons []event.Photon) error {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.e.BinSPECT(decay, photons)
}

func (le *LockedEngine) Stats() Stats {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.e.Stats()
}

func (le *LockedEngine) Close() error {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.e.Close()
}
