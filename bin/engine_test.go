package bin

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/phgbin/buffer"
	"github.com/phil-mansfield/phgbin/event"
	"github.com/phil-mansfield/phgbin/io"
)

// memStore is an in-memory ImageStore.
type memStore struct {
	images map[string]*io.Image
	writes int
}

func newMemStore() *memStore {
	return &memStore{images: map[string]*io.Image{}}
}

func (ms *memStore) OpenOrCreate(
	path string, add bool, elements int64,
) (*io.Image, error) {
	img, ok := ms.images[path]
	if !add || !ok {
		delete(ms.images, path)
		return nil, nil
	}
	if img.Header.Type.Elements != elements {
		return nil, fmt.Errorf("Size mismatch in %s.", path)
	}
	return img, nil
}

func (ms *memStore) Write(path string, hd *io.ImageHeader, payload []byte) error {
	out := *hd
	out.Type.Version = io.Version
	out.Type.Endianness = -1
	out.Type.PayloadBytes = int64(len(payload))
	ms.images[path] = &io.Image{Header: out, Payload: append([]byte{}, payload...)}
	ms.writes++
	return nil
}

// recordHooks remembers the indices and contributions of classified events.
type recordHooks struct {
	NopHooks
	idxs    []Indices
	cs      []Contribution
	veto    bool
	rejectZ int
	initial *Config
	final   *Stats
}

func (h *recordHooks) Initialize(con *Config) error {
	h.initial = con
	return nil
}

func (h *recordHooks) AcceptPET(d *event.Decay, blue, pink *event.Photon) bool {
	return !h.veto
}

func (h *recordHooks) ClassifiedPET(
	d *event.Decay, blue, pink *event.Photon, idx *Indices, c *Contribution,
) bool {
	if h.rejectZ > 0 && idx[Z1] == h.rejectZ {
		return false
	}
	h.idxs = append(h.idxs, *idx)
	h.cs = append(h.cs, *c)
	return true
}

func (h *recordHooks) ClassifiedSPECT(
	d *event.Decay, ph *event.Photon, idx *Indices, c *Contribution,
) bool {
	h.idxs = append(h.idxs, *idx)
	h.cs = append(h.cs, *c)
	return true
}

func (h *recordHooks) Terminate(stats *Stats) error {
	s := *stats
	h.final = &s
	return nil
}

// countHistory counts recorded detections.
type countHistory struct {
	records, photons int
}

func (ch *countHistory) WriteDetections(d *event.Decay, ps ...*event.Photon) error {
	ch.records++
	ch.photons += len(ps)
	return nil
}

func photon(x, y, z float64) event.Photon {
	return event.Photon{Pos: [3]float64{x, y, z}, Energy: 511, Weight: 1}
}

func positron() *event.Decay {
	return &event.Decay{Type: event.Positron, StartWeight: 1}
}

func newTestEngine(
	t *testing.T, text string, hooks Hooks, hist HistoryWriter,
) (*Engine, *memStore) {
	con := mustConfig(t, text)
	store := newMemStore()
	e, err := NewEngine(con, store, hooks, hist)
	require.NoError(t, err)
	return e, store
}

func binPair(t *testing.T, e *Engine, decay *event.Decay, blue, pink event.Photon) {
	require.NoError(t, e.BinPET(decay, []event.Photon{blue}, []event.Photon{pink}))
}

func TestZIndexNoRebinning(t *testing.T) {
	e, _ := newTestEngine(t, petBase+`
Order = Z
NumZBins = 4
MinZ = 0
MaxZ = 4
`, nil, nil)

	s := e.Strides()
	assert.Equal(t, 1, s.Dims[Z2].Count)
	assert.Equal(t, 4, s.Dims[Z1].Count)

	// The lower photon is stored in Z1 no matter which photon is blue.
	blue, pink := photon(0, -10, 1.5), photon(0, 10, 3.5)
	binPair(t, e, positron(), blue, pink)
	binPair(t, e, positron(), pink, blue)

	want := 3*s.Dims[Z2].Count + 1*s.Dims[Z1].Count
	assert.Equal(t, uint64(2), e.counts.Value(want))
	assert.Equal(t, int64(2), e.Stats().Accepted)
}

func TestZIndexSSRB(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = Z
NumZBins = 4
MinZ = 0
MaxZ = 4
SSRB = true
`, hooks, nil)

	binPair(t, e, positron(), photon(0, -10, 1.5), photon(0, 10, 3.5))
	require.Len(t, hooks.idxs, 1)
	assert.Equal(t, 2, hooks.idxs[0][Z1])
	assert.Equal(t, 0, hooks.idxs[0][Z2])
	assert.Equal(t, uint64(1), e.counts.Value(2))

	// Averages outside of the axial range are rejected even if one photon
	// is inside it.
	binPair(t, e, positron(), photon(0, -10, 3.5), photon(0, 10, 5.5))
	assert.Len(t, hooks.idxs, 1)
	assert.Equal(t, int64(1), e.Stats().Accepted)
}

func TestMSRBWeightConservation(t *testing.T) {
	text := petBase + `
Order = Z
NumZBins = 8
MinZ = 0
MaxZ = 8
WeightImage = weights.img
ObjectRadius = 10
DetectorRadius = 40
`
	table := []struct {
		z1, z2 float64
		k      int
	}{
		{1, 7, 2},
		{3.5, 3.5, 1},
		{0, 8, 3},
		{2, 8, 2},
	}

	for i, test := range table {
		hooks := &recordHooks{}
		e, _ := newTestEngine(t, text+"MSRB = true\n", hooks, nil)
		decay := &event.Decay{Type: event.Positron, StartWeight: 2}
		blue, pink := photon(0, -10, test.z1), photon(0, 10, test.z2)
		blue.Weight, pink.Weight = 0.5, 0.75

		binPair(t, e, decay, blue, pink)

		if len(hooks.cs) != test.k {
			t.Errorf("%d) event spread over %d bins, expected %d",
				i, len(hooks.cs), test.k)
		}
		single := 2 * 0.5 * 0.75
		assert.InDelta(t, single, e.weights.Sum(), 1e-12, "%d", i)
		for _, c := range hooks.cs {
			assert.InDelta(t, c.Weight*c.Weight, c.WeightSquared, 1e-12)
			assert.InDelta(t, single/float64(test.k), c.Weight, 1e-12)
		}
		assert.Equal(t, int64(1), e.Stats().Accepted)
		assert.InDelta(t, single, e.Stats().RunWeightSum(), 1e-12)

		// The same event without rebinning gets the whole weight in one bin.
		plain, _ := newTestEngine(t, text, nil, nil)
		binPair(t, plain, decay, blue, pink)
		assert.InDelta(t, plain.weights.Sum(), e.weights.Sum(), 1e-12)
	}
}

func TestMSRBSlices(t *testing.T) {
	con := &Config{ObjectRadius: 10, DetectorRadius: 40}
	con.Ranges[Z1] = Range{8, 0, 8}

	lo, hi, ok := con.MSRBSlices(1, 7)
	assert.True(t, ok)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 4, hi)

	_, _, ok = con.MSRBSlices(9, 10)
	assert.False(t, ok)

	// Spreads past the edges of the axial range are clipped.
	lo, hi, ok = con.MSRBSlices(-20, 20)
	assert.True(t, ok)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 5, hi)
}

func TestMSRBHookRejectsSlice(t *testing.T) {
	hooks := &recordHooks{rejectZ: 3}
	e, _ := newTestEngine(t, petBase+`
Order = Z
NumZBins = 8
MinZ = 0
MaxZ = 8
MSRB = true
ObjectRadius = 10
DetectorRadius = 40
`, hooks, nil)

	binPair(t, e, positron(), photon(0, -10, 1), photon(0, 10, 7))
	require.Len(t, hooks.idxs, 1)
	assert.Equal(t, 4, hooks.idxs[0][Z1])
	assert.Equal(t, int64(1), e.Stats().Accepted)

	// Rejecting every slice rejects the event.
	binPair(t, e, positron(), photon(0, -10, 3.5), photon(0, 10, 3.5))
	assert.Equal(t, int64(1), e.Stats().Accepted)
}

func TestCrystalUpperTriangular(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = Crystal
NumCrystalBins = 6
`, hooks, nil)

	for a := 0; a < 6; a++ {
		for b := 0; b < 6; b++ {
			blue, pink := photon(0, -10, 0), photon(0, 10, 0)
			blue.Crystal, pink.Crystal = a, b
			binPair(t, e, positron(), blue, pink)
		}
	}

	require.Len(t, hooks.idxs, 36)
	for i, idx := range hooks.idxs {
		if idx[Crystal1] > idx[Crystal2] {
			t.Errorf("%d) crystal pair (%d, %d) is not upper triangular",
				i, idx[Crystal1], idx[Crystal2])
		}
	}

	// Unknown crystals are rejected.
	blue, pink := photon(0, -10, 0), photon(0, 10, 0)
	blue.Crystal, pink.Crystal = -1, 3
	binPair(t, e, positron(), blue, pink)
	pink.Crystal = 6
	blue.Crystal = 0
	binPair(t, e, positron(), blue, pink)
	assert.Len(t, hooks.idxs, 36)
}

func TestScatteredScenario(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = Scatter
ScatterRandomParam = 1
`, hooks, nil)

	blue, pink := photon(0, -10, 0), photon(0, 10, 0)
	pink.ObjectScatters = 2
	binPair(t, e, positron(), blue, pink)

	require.Len(t, hooks.idxs, 1)
	assert.Equal(t, 1, hooks.idxs[0][Scatter1])
	assert.Equal(t, 0, hooks.idxs[0][Scatter2])
	assert.Equal(t, uint64(1), e.counts.Value(1))
}

func TestRandoms(t *testing.T) {
	random := &event.Decay{Type: event.Random, StartWeight: 1}

	e, _ := newTestEngine(t, petBase+"Order = AA\n", nil, nil)
	binPair(t, e, random, photon(0, -10, 0), photon(0, 10, 0))
	assert.Equal(t, int64(0), e.Stats().Accepted)
	assert.Equal(t, int64(1), e.Stats().Received)

	hooks := &recordHooks{}
	e, _ = newTestEngine(t, petBase+`
Order = Scatter
ScatterRandomParam = 6
AcceptRandoms = true
MaxScatters = 1
`, hooks, nil)

	// Randoms bypass the scatter window.
	blue, pink := photon(0, -10, 0), photon(0, 10, 0)
	blue.ObjectScatters = 5
	binPair(t, e, random, blue, pink)
	binPair(t, e, positron(), blue, pink)
	binPair(t, e, positron(), photon(0, -10, 0), photon(0, 10, 0))

	require.Len(t, hooks.idxs, 2)
	assert.Equal(t, 2, hooks.idxs[0][Scatter1])
	assert.Equal(t, 0, hooks.idxs[1][Scatter1])
}

func TestEnergyWindow(t *testing.T) {
	e, _ := newTestEngine(t, petBase+`
Order = Energy
NumEBins = 2
MinE = 400
MaxE = 600
`, nil, nil)

	blue, pink := photon(0, -10, 0), photon(0, 10, 0)
	blue.Energy, pink.Energy = 450, 599
	binPair(t, e, positron(), blue, pink)
	s := e.Strides()
	assert.Equal(t, uint64(1), e.counts.Value(0*s.Dims[Energy1].Count+1))

	pink.Energy = 300
	binPair(t, e, positron(), blue, pink)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(2), stats.BluesAccepted)
	assert.Equal(t, int64(1), stats.PinksAccepted)
	assert.Equal(t, int64(2), stats.PinksReceived)
}

func TestTransaxial(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = AA, TD
NumAABins = 4
NumTDBins = 4
MinTD = -20
MaxTD = 20
`, hooks, nil)

	// A horizontal line at y = 3 has angle 0 and distance 3.
	binPair(t, e, positron(), photon(-10, 3, 0), photon(10, 3, 0))
	// A vertical line at x = 2 has angle -pi/2 and distance 2.
	binPair(t, e, positron(), photon(2, -10, 0), photon(2, 10, 0))
	// Distances outside of the TD range are rejected.
	binPair(t, e, positron(), photon(-10, 30, 0), photon(10, 30, 0))

	require.Len(t, hooks.idxs, 2)
	assert.Equal(t, 2, hooks.idxs[0][AA])
	assert.Equal(t, 2, hooks.idxs[0][TD])
	assert.Equal(t, 0, hooks.idxs[1][AA])
	assert.Equal(t, 2, hooks.idxs[1][TD])
}

func TestTimeOfFlight(t *testing.T) {
	blue, pink := photon(-10, 0, 0), photon(10, 0, 0)
	blue.TravelDistance, pink.TravelDistance = 15, 5

	tof := TimeOfFlight(&blue, &pink)
	assert.InDelta(t, 10/SpeedOfLight, tof, 1e-12)
	assert.InDelta(t, tof, TimeOfFlight(&pink, &blue), 1e-12)

	// Ties in x are broken by y.
	blue.Pos, pink.Pos = [3]float64{0, 10, 0}, [3]float64{0, -10, 0}
	assert.InDelta(t, -10/SpeedOfLight, TimeOfFlight(&blue, &pink), 1e-12)

	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = TOF
NumTOFBins = 2
MinTOF = -0.5
MaxTOF = 0.5
`, hooks, nil)
	blue, pink = photon(-10, 0, 0), photon(10, 0, 0)
	blue.TravelDistance, pink.TravelDistance = 15, 5
	binPair(t, e, positron(), blue, pink)
	binPair(t, e, positron(), pink, blue)
	blue.TravelDistance = 50
	binPair(t, e, positron(), blue, pink)

	require.Len(t, hooks.idxs, 2)
	assert.Equal(t, 1, hooks.idxs[0][TOF])
	assert.Equal(t, 1, hooks.idxs[1][TOF])
}

func TestReprojection(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, petBase+`
Order = PHI, XR
NumPHIBins = 2
NumXRBins = 2
MinXR = -10
MaxXR = 10
`, hooks, nil)

	binPair(t, e, positron(), photon(-10, 3, 0), photon(10, 3, 0))
	binPair(t, e, positron(), photon(-4, -10, 0), photon(-4, 10, 0))
	binPair(t, e, positron(), photon(-10, 15, 0), photon(10, 15, 0))

	require.Len(t, hooks.idxs, 2)
	assert.Equal(t, 0, hooks.idxs[0][PHI])
	assert.Equal(t, 1, hooks.idxs[0][XR])
	assert.Equal(t, 1, hooks.idxs[1][PHI])
	assert.Equal(t, 1, hooks.idxs[1][XR])
}

func TestHooksAndHistory(t *testing.T) {
	hooks := &recordHooks{veto: true}
	hist := &countHistory{}
	e, store := newTestEngine(t, petBase+"Order = AA\n", hooks, hist)
	assert.Equal(t, e.Config(), hooks.initial)

	binPair(t, e, positron(), photon(0, -10, 0), photon(0, 10, 0))
	assert.Len(t, hooks.idxs, 0)
	assert.Equal(t, 0, hist.records)

	hooks.veto = false
	blues := []event.Photon{photon(0, -10, 0), photon(1, -10, 0)}
	pinks := []event.Photon{photon(0, 10, 0), photon(1, 10, 0)}
	require.NoError(t, e.BinPET(positron(), blues, pinks))
	assert.Len(t, hooks.idxs, 4)
	assert.Equal(t, 4, hist.records)
	assert.Equal(t, 8, hist.photons)

	require.NoError(t, e.Close())
	require.NotNil(t, hooks.final)
	assert.Equal(t, int64(4), hooks.final.Accepted)
	assert.Equal(t, int64(5), hooks.final.Received)
	assert.Equal(t, int64(2), hooks.final.Decays)
	assert.Equal(t, 1, store.writes)

	// Closed engines refuse events.
	assert.Error(t, e.BinPET(positron(), blues, pinks))
	assert.NoError(t, e.Close())
}

func TestOverflow(t *testing.T) {
	e, store := newTestEngine(t, petBase+"Order = AA\nCountBytes = 1\n", nil, nil)

	for i := 0; i < 255; i++ {
		binPair(t, e, positron(), photon(0, -10, 0), photon(0, 10, 0))
	}
	assert.Equal(t, uint64(255), e.counts.Value(0))

	err := e.BinPET(positron(),
		[]event.Photon{photon(0, -10, 0)}, []event.Photon{photon(0, 10, 0)})
	var overflow *buffer.OverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, 0, overflow.Index)
	assert.Equal(t, 1, overflow.Bytes)

	// Buffers are released and the error is sticky.
	assert.Nil(t, e.counts)
	assert.Equal(t, err, e.BinPET(positron(), nil, nil))
	assert.Equal(t, err, e.Close())
	assert.Equal(t, 0, store.writes)
}

func TestWrongMode(t *testing.T) {
	e, _ := newTestEngine(t, petBase+"Order = AA\n", nil, nil)
	assert.Error(t, e.BinSPECT(positron(), []event.Photon{photon(0, 0, 0)}))

	e, _ = newTestEngine(t, spectBase+"Order = AA\n", nil, nil)
	assert.Error(t, e.BinPET(positron(), nil, nil))
}

func TestSPECT(t *testing.T) {
	hooks := &recordHooks{}
	e, _ := newTestEngine(t, spectBase+`
Order = AA, TD
NumAABins = 4
NumTDBins = 2
MinTD = -10
MaxTD = 10
WeightImage = weights.img
`, hooks, nil)

	decay := &event.Decay{Type: event.SinglePhoton, StartWeight: 2}
	ph := photon(0, 5, 0)
	ph.Dir = [3]float64{1, 0, 0}
	ph.Weight = 0.25

	require.NoError(t, e.BinSPECT(decay, []event.Photon{ph}))
	require.Len(t, hooks.idxs, 1)
	assert.Equal(t, 0, hooks.idxs[0][AA])
	assert.Equal(t, 1, hooks.idxs[0][TD])
	assert.InDelta(t, 0.5, hooks.cs[0].Weight, 1e-12)
	assert.InDelta(t, 0.25, hooks.cs[0].WeightSquared, 1e-12)

	s := e.Strides()
	assert.Equal(t, 1, s.Dims[TD].Count)
	assert.Equal(t, 2, s.Dims[AA].Count)
	assert.Equal(t, uint64(1), e.counts.Value(1))
	assert.InDelta(t, 0.5, e.weights.Value(1), 1e-12)

	// Upstream detector geometry takes precedence.
	ph.HasDetector = true
	ph.DetectorAngle, ph.TransaxialPos = 3*math.Pi/2+0.1, -5
	require.NoError(t, e.BinSPECT(decay, []event.Photon{ph}))
	require.Len(t, hooks.idxs, 2)
	assert.Equal(t, 3, hooks.idxs[1][AA])
	assert.Equal(t, 0, hooks.idxs[1][TD])
}

func TestProjection(t *testing.T) {
	ph := photon(3, 0, 0)
	ph.Dir = [3]float64{0, 1, 0}
	a, td := Projection(&ph)
	assert.InDelta(t, math.Pi/2, a, 1e-12)
	assert.InDelta(t, -3, td, 1e-12)

	ph.Dir = [3]float64{0, -1, 0}
	a, td = Projection(&ph)
	assert.InDelta(t, 3*math.Pi/2, a, 1e-12)
	assert.InDelta(t, 3, td, 1e-12)

	ph.HasDetector = true
	ph.DetectorAngle, ph.TransaxialPos = -math.Pi/2, 7
	a, td = Projection(&ph)
	assert.InDelta(t, 3*math.Pi/2, a, 1e-12)
	assert.Equal(t, 7.0, td)
}

func TestAxialPosition(t *testing.T) {
	ph := photon(0, 0, 1)
	ph.Dir = [3]float64{1 / math.Sqrt2, 0, 1 / math.Sqrt2}
	assert.InDelta(t, 11, AxialPosition(&ph, 10), 1e-9)
	assert.Equal(t, 1.0, AxialPosition(&ph, 0))

	// Photons outside the cylinder aren't moved.
	ph.Pos = [3]float64{20, 0, 1}
	assert.Equal(t, 1.0, AxialPosition(&ph, 10))

	ph.Pos, ph.Dir = [3]float64{0, 0, 1}, [3]float64{0, 0, 1}
	assert.Equal(t, 1.0, AxialPosition(&ph, 10))
}

func TestLockedEngine(t *testing.T) {
	e, store := newTestEngine(t, petBase+"Order = AA\nNumAABins = 2\n", nil, nil)
	le := NewLockedEngine(e)

	workers, events := 8, 250
	wg := &sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			blues := []event.Photon{photon(0, -10, 0)}
			pinks := []event.Photon{photon(0, 10, 0)}
			for i := 0; i < events; i++ {
				le.BinPET(positron(), blues, pinks)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*events), le.Stats().Accepted)
	require.NoError(t, le.Close())

	img := store.images["counts.img"]
	require.NotNil(t, img)
	vals, err := ImageValues(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{float64(workers * events), 0}, vals)
}
