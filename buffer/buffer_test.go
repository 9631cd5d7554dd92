package buffer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounts(t *testing.T) {
	table := []struct {
		bytes int
		valid bool
	}{
		{1, true}, {2, true}, {4, true}, {0, false}, {3, false}, {8, false},
	}

	for i, test := range table {
		c, err := NewCounts(5, test.bytes)
		if (err == nil) != test.valid {
			t.Errorf("%d) NewCounts(5, %d) gave error %v", i, test.bytes, err)
			continue
		}
		if test.valid && (c.Len() != 5 || c.ElementSize() != test.bytes) {
			t.Errorf("%d) NewCounts(5, %d) has Len() = %d, ElementSize() = %d",
				i, test.bytes, c.Len(), c.ElementSize())
		}
	}
}

func TestNewWeights(t *testing.T) {
	table := []struct {
		bytes int
		valid bool
	}{
		{4, true}, {8, true}, {2, false}, {16, false},
	}

	for i, test := range table {
		w, err := NewWeights(3, test.bytes)
		if (err == nil) != test.valid {
			t.Errorf("%d) NewWeights(3, %d) gave error %v", i, test.bytes, err)
			continue
		}
		if test.valid && (w.Len() != 3 || w.ElementSize() != test.bytes) {
			t.Errorf("%d) NewWeights(3, %d) has Len() = %d, ElementSize() = %d",
				i, test.bytes, w.Len(), w.ElementSize())
		}
	}
}

func TestCountOverflow(t *testing.T) {
	c, err := NewCounts(2, 1)
	require.NoError(t, err)

	for i := 0; i < 255; i++ {
		require.NoError(t, c.Inc(1))
	}
	assert.Equal(t, uint64(255), c.Value(1))
	assert.Equal(t, uint64(0), c.Value(0))

	err = c.Inc(1)
	var overflow *OverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, 1, overflow.Index)
	assert.Equal(t, 1, overflow.Bytes)
	assert.Equal(t, uint64(255), c.Value(1))

	c16 := NewUint16([]uint16{65534})
	assert.NoError(t, c16.Inc(0))
	assert.Error(t, c16.Inc(0))

	c32 := NewUint32([]uint32{^uint32(0)})
	assert.Error(t, c32.Inc(0))
}

func TestWeights(t *testing.T) {
	for _, size := range []int{4, 8} {
		w, err := NewWeights(4, size)
		require.NoError(t, err)

		w.Add(0, 1.5)
		w.Add(0, 0.5)
		w.Add(3, 4)
		assert.Equal(t, 2.0, w.Value(0), "size %d", size)
		assert.Equal(t, 6.0, w.Sum(), "size %d", size)

		w.Scale(0.25)
		assert.Equal(t, []float64{0.5, 0, 0, 1}, Float64s(w), "size %d", size)
	}
}

func TestNarrow(t *testing.T) {
	w := NewFloat64([]float64{1, 0.1, 1e300})
	n := Narrow(w)
	assert.Equal(t, 4, n.ElementSize())
	assert.Equal(t, []float32{1, 0.1, float32(1e300)}, n.Data())

	f := NewFloat32([]float32{2})
	assert.True(t, Narrow(f) == f)
}

func TestReadWrite(t *testing.T) {
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

	for _, order := range orders {
		for _, size := range []int{1, 2, 4} {
			c, _ := NewCounts(3, size)
			require.NoError(t, c.Inc(0))
			require.NoError(t, c.Inc(2))
			require.NoError(t, c.Inc(2))

			buf := &bytes.Buffer{}
			require.NoError(t, c.Write(buf, order))
			assert.Equal(t, 3*size, buf.Len())

			out, _ := NewCounts(3, size)
			require.NoError(t, out.Read(buf, order))
			assert.Equal(t, c.Data(), out.Data(), "%s, size %d", order, size)
		}

		for _, size := range []int{4, 8} {
			w, _ := NewWeights(2, size)
			w.Add(1, -3.25)

			buf := &bytes.Buffer{}
			require.NoError(t, w.Write(buf, order))
			assert.Equal(t, 2*size, buf.Len())

			out, _ := NewWeights(2, size)
			require.NoError(t, out.Read(buf, order))
			assert.Equal(t, w.Data(), out.Data(), "%s, size %d", order, size)
		}
	}

	// Reading from a short stream is an error.
	out, _ := NewWeights(4, 8)
	assert.Error(t, out.Read(bytes.NewReader(make([]byte, 12)), binary.LittleEndian))
}
