package bin

import (
	"github.com/phil-mansfield/phgbin/event"
)

// Contribution is the weight and squared weight an event adds to its bin.
type Contribution struct {
	Weight, WeightSquared float64
}

// Hooks lets callers inspect, modify or veto events as they are binned. The
// Accept methods are called before an event is classified and the Classified
// methods after its indices have been computed, but before it is committed.
// Returning false rejects the event.
//
// Photons passed to hooks are copies, so hooks may modify them freely.
type Hooks interface {
	Initialize(con *Config) error
	AcceptPET(decay *event.Decay, blue, pink *event.Photon) bool
	ClassifiedPET(
		decay *event.Decay, blue, pink *event.Photon,
		idx *Indices, c *Contribution,
	) bool
	AcceptSPECT(decay *event.Decay, photon *event.Photon) bool
	ClassifiedSPECT(
		decay *event.Decay, photon *event.Photon,
		idx *Indices, c *Contribution,
	) bool
	Terminate(stats *Stats) error
}

// NopHooks accepts every event without modifying it. It can be embedded in
// types which only need to implement some of the Hooks methods.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) Initialize(*Config) error { return nil }
func (NopHooks) AcceptPET(*event.Decay, *event.Photon, *event.Photon) bool {
	return true
}
func (NopHooks) ClassifiedPET(
	*event.Decay, *event.Photon, *event.Photon, *Indices, *Contribution,
) bool {
	return true
}
func (NopHooks) AcceptSPECT(*event.Decay, *event.Photon) bool { return true }
func (NopHooks) ClassifiedSPECT(
	*event.Decay, *event.Photon, *Indices, *Contribution,
) bool {
	return true
}
func (NopHooks) Terminate(*Stats) error { return nil }

// HistoryWriter records detections which have been binned.
type HistoryWriter interface {
	WriteDetections(decay *event.Decay, photons ...*event.Photon) error
}
