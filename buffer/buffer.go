/*package buffer contains the typed flat arrays which binned events are
accumulated into: fixed-width integer count buffers and floating point weight
buffers.*/
package buffer

import (
	"encoding/binary"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
)

// OverflowError is returned when incrementing a count bin which already holds
// the largest value its element type can represent.
type OverflowError struct {
	Index int
	Bytes int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf(
		"Count bin %d overflowed its %d-byte element. Use a wider count "+
			"type or simulate fewer events.", e.Index, e.Bytes,
	)
}

// Counts is a generic interface around fixed-width integer count buffers.
type Counts interface {
	// Len returns the number of elements in the buffer.
	Len() int
	// ElementSize returns the size of one element in bytes.
	ElementSize() int
	// Inc increments the bin at index i by one, or returns an
	// *OverflowError if the bin is already full.
	Inc(i int) error
	// Value returns the bin at index i.
	Value(i int) uint64
	// Data returns the underlying array as an interface{}.
	Data() interface{}
	// Write writes the raw buffer to wr with the given byte order.
	Write(wr io.Writer, order binary.ByteOrder) error
	// Read fills the buffer from rd with the given byte order.
	Read(rd io.Reader, order binary.ByteOrder) error
}

// Weights is a generic interface around floating point weight buffers.
type Weights interface {
	Len() int
	ElementSize() int
	// Add adds w to the bin at index i.
	Add(i int, w float64)
	Value(i int) float64
	// Scale multiplies every bin by k.
	Scale(k float64)
	// Sum returns the sum over all bins.
	Sum() float64
	Data() interface{}
	Write(wr io.Writer, order binary.ByteOrder) error
	Read(rd io.Reader, order binary.ByteOrder) error
}

// Type assertions
var (
	_ Counts  = &Uint8{}
	_ Counts  = &Uint16{}
	_ Counts  = &Uint32{}
	_ Weights = &Float32{}
	_ Weights = &Float64{}
)

// NewCounts creates a zeroed count buffer of n elements that are each
// bytes wide. bytes must be 1, 2, or 4.
func NewCounts(n, bytes int) (Counts, error) {
	switch bytes {
	case 1:
		return &Uint8{make([]uint8, n)}, nil
	case 2:
		return &Uint16{make([]uint16, n)}, nil
	case 4:
		return &Uint32{make([]uint32, n)}, nil
	}
	return nil, fmt.Errorf(
		"Count elements must be 1, 2, or 4 bytes wide, not %d.", bytes,
	)
}

// NewWeights creates a zeroed weight buffer of n elements that are each
// bytes wide. bytes must be 4 or 8.
func NewWeights(n, bytes int) (Weights, error) {
	switch bytes {
	case 4:
		return &Float32{make([]float32, n)}, nil
	case 8:
		return &Float64{make([]float64, n)}, nil
	}
	return nil, fmt.Errorf(
		"Weight elements must be 4 or 8 bytes wide, not %d.", bytes,
	)
}

// Uint8 implements the Counts interface for []uint8 data. See the Counts
// interface for documentation of this struct's methods.
type Uint8 struct {
	data []uint8
}

// NewUint8 wraps an existing array.
func NewUint8(x []uint8) *Uint8 { return &Uint8{x} }

func (x *Uint8) Len() int           { return len(x.data) }
func (x *Uint8) ElementSize() int   { return 1 }
func (x *Uint8) Value(i int) uint64 { return uint64(x.data[i]) }
func (x *Uint8) Data() interface{}  { return x.data }

func (x *Uint8) Inc(i int) error {
	if x.data[i] == ^uint8(0) {
		return &OverflowError{i, 1}
	}
	x.data[i]++
	return nil
}

func (x *Uint8) Write(wr io.Writer, order binary.ByteOrder) error {
	_, err := wr.Write(x.data)
	return err
}

func (x *Uint8) Read(rd io.Reader, order binary.ByteOrder) error {
	_, err := io.ReadFull(rd, x.data)
	return err
}

// Uint16 implements the Counts interface for []uint16 data. See the Counts
// interface for documentation of this struct's methods.
type Uint16 struct {
	data []uint16
}

// NewUint16 wraps an existing array.
func NewUint16(x []uint16) *Uint16 { return &Uint16{x} }

func (x *Uint16) Len() int           { return len(x.data) }
func (x *Uint16) ElementSize() int   { return 2 }
func (x *Uint16) Value(i int) uint64 { return uint64(x.data[i]) }
func (x *Uint16) Data() interface{}  { return x.data }

func (x *Uint16) Inc(i int) error {
	if x.data[i] == ^uint16(0) {
		return &OverflowError{i, 2}
	}
	x.data[i]++
	return nil
}

func (x *Uint16) Write(wr io.Writer, order binary.ByteOrder) error {
	return binary.Write(wr, order, x.data)
}

func (x *Uint16) Read(rd io.Reader, order binary.ByteOrder) error {
	return binary.Read(rd, order, x.data)
}

// Uint32 implements the Counts interface for []uint32 data. See the Counts
// interface for documentation of this struct's methods.
type Uint32 struct {
	data []uint32
}

// NewUint32 wraps an existing array.
func NewUint32(x []uint32) *Uint32 { return &Uint32{x} }

func (x *Uint32) Len() int           { return len(x.data) }
func (x *Uint32) ElementSize() int   { return 4 }
func (x *Uint32) Value(i int) uint64 { return uint64(x.data[i]) }
func (x *Uint32) Data() interface{}  { return x.data }

func (x *Uint32) Inc(i int) error {
	if x.data[i] == ^uint32(0) {
		return &OverflowError{i, 4}
	}
	x.data[i]++
	return nil
}

func (x *Uint32) Write(wr io.Writer, order binary.ByteOrder) error {
	return binary.Write(wr, order, x.data)
}

func (x *Uint32) Read(rd io.Reader, order binary.ByteOrder) error {
	return binary.Read(rd, order, x.data)
}

// Float32 implements the Weights interface for []float32 data. Sums are
// accumulated in single precision. See the Weights interface for
// documentation of this struct's methods.
type Float32 struct {
	data []float32
}

// NewFloat32 wraps an existing array.
func NewFloat32(x []float32) *Float32 { return &Float32{x} }

func (x *Float32) Len() int             { return len(x.data) }
func (x *Float32) ElementSize() int     { return 4 }
func (x *Float32) Add(i int, w float64) { x.data[i] += float32(w) }
func (x *Float32) Value(i int) float64  { return float64(x.data[i]) }
func (x *Float32) Data() interface{}    { return x.data }

func (x *Float32) Scale(k float64) {
	for i := range x.data {
		x.data[i] = float32(float64(x.data[i]) * k)
	}
}

func (x *Float32) Sum() float64 {
	sum := 0.0
	for _, w := range x.data {
		sum += float64(w)
	}
	return sum
}

func (x *Float32) Write(wr io.Writer, order binary.ByteOrder) error {
	return binary.Write(wr, order, x.data)
}

func (x *Float32) Read(rd io.Reader, order binary.ByteOrder) error {
	return binary.Read(rd, order, x.data)
}

// Float64 implements the Weights interface for []float64 data. See the
// Weights interface for documentation of this struct's methods.
type Float64 struct {
	data []float64
}

// NewFloat64 wraps an existing array.
func NewFloat64(x []float64) *Float64 { return &Float64{x} }

func (x *Float64) Len() int             { return len(x.data) }
func (x *Float64) ElementSize() int     { return 8 }
func (x *Float64) Add(i int, w float64) { x.data[i] += w }
func (x *Float64) Value(i int) float64  { return x.data[i] }
func (x *Float64) Data() interface{}    { return x.data }
func (x *Float64) Scale(k float64)      { floats.Scale(k, x.data) }
func (x *Float64) Sum() float64         { return floats.Sum(x.data) }

func (x *Float64) Write(wr io.Writer, order binary.ByteOrder) error {
	return binary.Write(wr, order, x.data)
}

func (x *Float64) Read(rd io.Reader, order binary.ByteOrder) error {
	return binary.Read(rd, order, x.data)
}

// Narrow returns a single precision copy of a weight buffer. Buffers which
// are already single precision are returned as-is.
func Narrow(w Weights) *Float32 {
	switch x := w.(type) {
	case *Float32:
		return x
	case *Float64:
		out := make([]float32, len(x.data))
		for i := range out {
			out[i] = float32(x.data[i])
		}
		return &Float32{out}
	}
	panic(fmt.Sprintf("Internal error: unrecognized weight buffer %T.", w))
}

// Float64s returns the buffer's contents as a double precision array. The
// underlying array is returned directly for *Float64 buffers.
func Float64s(w Weights) []float64 {
	switch x := w.(type) {
	case *Float64:
		return x.data
	case *Float32:
		out := make([]float64, len(x.data))
		for i := range out {
			out[i] = float64(x.data[i])
		}
		return out
	}
	panic(fmt.Sprintf("Internal error: unrecognized weight buffer %T.", w))
}
