package bin

// scatterBins returns the number of bins along Scatter1 and Scatter2 for the
// configured policy.
func (con *Config) scatterBins() (b1, b2 int) {
	n := con.ScatterRange()
	if n < 1 {
		n = 1
	}

	switch con.Policy {
	case PolicyScattered:
		return 2, 1
	case PolicyPerPhoton, PolicyPerPhotonFold:
		if con.PET {
			return n, n
		}
		return n, 1
	case PolicySum, PolicySumFold:
		return n, 1
	case PolicyTrueScatterRandom:
		return 3, 1
	case PolicyPairs, PolicyPairsFold:
		return n*n + 1, 1
	case PolicySumRandom, PolicySumFoldRandom:
		return n + 1, 1
	}
	return 1, 1
}

// inWindow applies the scatter window to a photon's scatter count, or to the
// summed count of a coincidence under the summing policies. Folding policies
// only apply the minimum.
func (con *Config) inWindow(s int) bool {
	if s < con.MinScatters {
		return false
	}
	return con.Policy.Folds() || s <= con.MaxScatters
}

// scatterOffset converts an accepted scatter count into an index within
// [0, ScatterRange()), folding high counts into the top bin.
func (con *Config) scatterOffset(s int) int {
	i := s - con.MinScatters
	if n := con.ScatterRange(); i >= n {
		return n - 1
	}
	return i
}

// ScatterIndexPET decides whether a coincidence whose photons scattered s1 and
// s2 times passes the scatter window and computes its Scatter1 and Scatter2
// indices. random is true for random coincidences, which bypass the window
// under the policies that give randoms their own bin.
func (con *Config) ScatterIndexPET(random bool, s1, s2 int) (i1, i2 int, ok bool) {
	p := con.Policy
	n := con.ScatterRange()

	if random && p.BinsRandoms() {
		switch p {
		case PolicyTrueScatterRandom:
			return 2, 0, true
		case PolicyPairs, PolicyPairsFold:
			return n * n, 0, true
		default:
			return n, 0, true
		}
	}

	if p.Sums() {
		sum := s1 + s2
		if !con.inWindow(sum) {
			return 0, 0, false
		}
		return con.scatterOffset(sum), 0, true
	}

	if !con.inWindow(s1) || !con.inWindow(s2) {
		return 0, 0, false
	}

	switch p {
	case PolicyScattered, PolicyTrueScatterRandom:
		if s1 > 0 || s2 > 0 {
			return 1, 0, true
		}
		return 0, 0, true
	case PolicyPerPhoton, PolicyPerPhotonFold:
		return con.scatterOffset(s1), con.scatterOffset(s2), true
	case PolicyPairs, PolicyPairsFold:
		return con.scatterOffset(s1)*n + con.scatterOffset(s2), 0, true
	}
	return 0, 0, true
}

// ScatterIndexSPECT is the single photon analogue of ScatterIndexPET. Only
// policies which do not depend on photon pairs are valid.
func (con *Config) ScatterIndexSPECT(s int) (i int, ok bool) {
	if !con.inWindow(s) {
		return 0, false
	}

	switch con.Policy {
	case PolicyScattered:
		if s > 0 {
			return 1, true
		}
		return 0, true
	case PolicyPerPhoton, PolicyPerPhotonFold:
		return con.scatterOffset(s), true
	}
	return 0, true
}
