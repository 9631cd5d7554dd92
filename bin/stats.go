package bin

import (
	"fmt"
	"strings"
)

// Stats holds running totals for a binning run. Weight sums are cumulative
// over every run which contributed to the images. The Start fields hold the
// values loaded from existing images when the engine was created.
type Stats struct {
	// Decays is the number of calls to BinPET or BinSPECT.
	Decays int64
	// Received and Accepted count coincidences in PET mode and photons in
	// SPECT mode.
	Received, Accepted int64

	BluesReceived, BluesAccepted int64
	PinksReceived, PinksAccepted int64

	WeightSum, WeightSquaredSum float64

	StartAccepted                         int64
	StartWeightSum, StartWeightSquaredSum float64
}

// TotalAccepted returns the number of accepted events across all runs.
func (s *Stats) TotalAccepted() int64 { return s.StartAccepted + s.Accepted }

// RunWeightSum returns the weight binned during this run.
func (s *Stats) RunWeightSum() float64 { return s.WeightSum - s.StartWeightSum }

// RunWeightSquaredSum returns the squared weight binned during this run.
func (s *Stats) RunWeightSquaredSum() float64 {
	return s.WeightSquaredSum - s.StartWeightSquaredSum
}

func (s *Stats) String() string {
	lines := []string{
		fmt.Sprintf("Decays: %d", s.Decays),
		fmt.Sprintf("Events received: %d, accepted: %d (%d total)",
			s.Received, s.Accepted, s.TotalAccepted()),
	}
	if s.BluesReceived > 0 || s.PinksReceived > 0 {
		lines = append(lines,
			fmt.Sprintf("Blue photons received: %d, accepted: %d",
				s.BluesReceived, s.BluesAccepted),
			fmt.Sprintf("Pink photons received: %d, accepted: %d",
				s.PinksReceived, s.PinksAccepted),
		)
	}
	lines = append(lines,
		fmt.Sprintf("Weight this run: %.6g (%.6g total)",
			s.RunWeightSum(), s.WeightSum),
		fmt.Sprintf("Squared weight this run: %.6g (%.6g total)",
			s.RunWeightSquaredSum(), s.WeightSquaredSum),
	)
	return strings.Join(lines, "\n")
}
