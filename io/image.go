package io

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/DataDog/zstd"
	"gopkg.in/yaml.v3"
)

/*
The binary format used for image files is as follows:
    |-- 1 --||-- ... 2 ... --||-- ... 3 ... --|

    1 - (int64) Flag indicating the endianness of the file. 0 indicates a big
        endian byte ordering and -1 indicates a little endian byte order.
    2 - (ImageHeader) The remainder of the header, starting with its size.
    3 - The payload: Elements values of ElementSize bytes each. If Compressed
        is set, this is instead a zstd frame of PayloadBytes bytes which
        decompresses to those values.
*/

const (
	// MaxDims is the number of dimension slots in an image layout.
	MaxDims = 15
	// Version is the current header version. Version 1 headers did not
	// record the cumulative sum of squared weights.
	Version = 2

	compressionLevel = 3
)

var (
	// DimNames are the names of the layout slots, in slot order.
	DimNames = [MaxDims]string{
		"TD", "AA", "TOF", "Z1", "Z2", "Energy1", "Energy2",
		"Scatter1", "Scatter2", "Crystal1", "Crystal2",
		"PHI", "Theta", "XR", "YR",
	}

	// Images are written in the system's native byte order.
	end = binary.LittleEndian
)

// ImageKind says which of the three parallel buffers an image holds.
type ImageKind int64

const (
	CountKind ImageKind = iota
	WeightKind
	WeightSquaredKind
)

func (k ImageKind) String() string {
	switch k {
	case CountKind:
		return "Counts"
	case WeightKind:
		return "Weights"
	case WeightSquaredKind:
		return "WeightsSquared"
	}
	return fmt.Sprintf("ImageKind(%d)", int64(k))
}

// ImageHeader describes the contents of an image file.
type ImageHeader struct {
	Type   TypeInfo
	Run    RunInfo
	Layout LayoutInfo
}

type TypeInfo struct {
	Endianness   int64
	HeaderSize   int64
	Version      int64
	Kind         ImageKind
	ElementSize  int64
	Elements     int64
	Compressed   int64
	PayloadBytes int64
}

// RunInfo holds the cumulative totals of every run which contributed to the
// image.
type RunInfo struct {
	IsPET              int64
	ScatterRandomParam int64
	Events             int64
	EventsAccepted     int64
	ScanLength         float64
	WeightSum          float64
	WeightSquaredSum   float64
}

// LayoutInfo describes how a flat image index maps onto per-dimension bins.
// Dimensions which are not binned have one bin and a stride of zero.
type LayoutInfo struct {
	Bins, Strides [MaxDims]int64
	Min, Max      [MaxDims]float64
}

// HasWeightSquaredSum returns true if the header records the cumulative sum
// of squared weights.
func (hd *ImageHeader) HasWeightSquaredSum() bool {
	return hd.Type.Version >= 2
}

// Order returns the byte order the header's file was written in.
func (hd *ImageHeader) Order() binary.ByteOrder {
	return endianness(hd.Type.Endianness)
}

// SameLayout returns true if two layouts bin events identically.
func (l1 *LayoutInfo) SameLayout(l2 *LayoutInfo) bool {
	return l1.Bins == l2.Bins && l1.Strides == l2.Strides
}

// Image is a header along with its decoded (uncompressed) payload.
type Image struct {
	Header  ImageHeader
	Payload []byte
}

// endianness converts an endianness flag to a byte order.
func endianness(flag int64) binary.ByteOrder {
	if flag == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func endiannessFlag(order binary.ByteOrder) int64 {
	if order == binary.BigEndian {
		return 0
	}
	return -1
}

// ReadImageHeader reads only the header of the given file.
func ReadImageHeader(fname string) (*ImageHeader, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readImageHeader(f, fname)
}

func readImageHeader(rd io.Reader, fname string) (*ImageHeader, error) {
	hd := &ImageHeader{}

	// The flag is symmetric, so the order used to read it doesn't matter.
	var flag int64
	if err := binary.Read(rd, end, &flag); err != nil {
		return nil, fmt.Errorf("Could not read header of %s: %w", fname, err)
	}
	if flag != 0 && flag != -1 {
		return nil, fmt.Errorf(
			"%s is not an image file: unrecognized endianness flag %d.",
			fname, flag,
		)
	}
	order := endianness(flag)

	if err := binary.Read(rd, order, &hd.Type.HeaderSize); err != nil {
		return nil, fmt.Errorf("Could not read header of %s: %w", fname, err)
	}
	if hd.Type.HeaderSize != int64(unsafe.Sizeof(ImageHeader{})) {
		return nil, fmt.Errorf(
			"Expected image header size of %d in %s, found %d.",
			unsafe.Sizeof(ImageHeader{}), fname, hd.Type.HeaderSize,
		)
	}

	// Everything after the first two fields.
	rest := struct {
		Version, Kind, ElementSize, Elements int64
		Compressed, PayloadBytes             int64
		Run                                  RunInfo
		Layout                               LayoutInfo
	}{}
	if err := binary.Read(rd, order, &rest); err != nil {
		return nil, fmt.Errorf("Could not read header of %s: %w", fname, err)
	}

	hd.Type.Endianness = flag
	hd.Type.Version = rest.Version
	hd.Type.Kind = ImageKind(rest.Kind)
	hd.Type.ElementSize = rest.ElementSize
	hd.Type.Elements = rest.Elements
	hd.Type.Compressed = rest.Compressed
	hd.Type.PayloadBytes = rest.PayloadBytes
	hd.Run = rest.Run
	hd.Layout = rest.Layout

	if hd.Type.Version < 2 {
		hd.Run.WeightSquaredSum = 0
	}

	return hd, nil
}

// ReadImage reads an image file's header and its decompressed payload.
func ReadImage(fname string) (*Image, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hd, err := readImageHeader(f, fname)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, hd.Type.PayloadBytes)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("Could not read payload of %s: %w", fname, err)
	}

	payload := raw
	if hd.Type.Compressed != 0 {
		payload, err = zstd.Decompress(nil, raw)
		if err != nil {
			return nil, fmt.Errorf(
				"Could not decompress payload of %s: %w", fname, err,
			)
		}
	}

	if want := hd.Type.Elements * hd.Type.ElementSize; int64(len(payload)) != want {
		return nil, fmt.Errorf(
			"Payload of %s is %d bytes, but its header describes %d bytes.",
			fname, len(payload), want,
		)
	}

	return &Image{*hd, payload}, nil
}

// WriteImage writes a header and payload to the given file. The header's
// type fields describing the encoding are filled in by WriteImage. The
// payload must already be in the native byte order.
func WriteImage(
	fname string, hd *ImageHeader, payload []byte, compress bool,
) error {
	data := payload
	hd.Type.Compressed = 0
	if compress {
		var err error
		data, err = zstd.CompressLevel(nil, payload, compressionLevel)
		if err != nil {
			return fmt.Errorf("Could not compress %s: %w", fname, err)
		}
		hd.Type.Compressed = 1
	}

	hd.Type.Endianness = endiannessFlag(end)
	hd.Type.HeaderSize = int64(unsafe.Sizeof(ImageHeader{}))
	hd.Type.Version = Version
	hd.Type.PayloadBytes = int64(len(data))

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, end, hd); err != nil {
		return err
	}
	buf.Write(data)

	if err := os.WriteFile(fname, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("Could not write image %s: %w", fname, err)
	}
	return nil
}

// NativeOrder returns the byte order that payloads are written in.
func NativeOrder() binary.ByteOrder { return end }

// FileStore opens and writes image files on disk.
type FileStore struct {
	// Compress payloads with zstd when writing.
	Compress bool
}

// OpenOrCreate prepares the image file fname to hold elements values. If add
// is set and the file exists, its contents are returned, otherwise the file
// is created (or truncated) and a nil *Image is returned.
func (fs *FileStore) OpenOrCreate(
	fname string, add bool, elements int64,
) (*Image, error) {
	if add {
		if _, err := os.Stat(fname); err == nil {
			img, err := ReadImage(fname)
			if err != nil {
				return nil, err
			}
			if img.Header.Type.Elements != elements {
				return nil, fmt.Errorf(
					"Existing image %s has %d elements, but the current "+
						"binning parameters need %d.",
					fname, img.Header.Type.Elements, elements,
				)
			}
			return img, nil
		}
	}

	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("Could not create image %s: %w", fname, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Write writes an image to disk. See WriteImage.
func (fs *FileStore) Write(fname string, hd *ImageHeader, payload []byte) error {
	return WriteImage(fname, hd, payload, fs.Compress)
}

// yamlHeader is the human-readable form of an ImageHeader.
type yamlHeader struct {
	Kind         string                `yaml:"kind"`
	Version      int64                 `yaml:"version"`
	ElementSize  int64                 `yaml:"elementSize"`
	Elements     int64                 `yaml:"elements"`
	Compressed   bool                  `yaml:"compressed"`
	Mode         string                `yaml:"mode"`
	ScatterParam int64                 `yaml:"scatterRandomParam"`
	Events       int64                 `yaml:"events"`
	Accepted     int64                 `yaml:"eventsAccepted"`
	ScanLength   float64               `yaml:"scanLength"`
	WeightSum    float64               `yaml:"weightSum"`
	WeightSqSum  *float64              `yaml:"weightSquaredSum,omitempty"`
	Dims         map[string]yamlLayout `yaml:"dimensions"`
}

type yamlLayout struct {
	Bins   int64   `yaml:"bins"`
	Stride int64   `yaml:"stride"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

// YAML returns a human-readable description of the header. Only dimensions
// with a nonzero stride or more than one bin are listed.
func (hd *ImageHeader) YAML() ([]byte, error) {
	y := yamlHeader{
		Kind:         hd.Type.Kind.String(),
		Version:      hd.Type.Version,
		ElementSize:  hd.Type.ElementSize,
		Elements:     hd.Type.Elements,
		Compressed:   hd.Type.Compressed != 0,
		Mode:         "SPECT",
		ScatterParam: hd.Run.ScatterRandomParam,
		Events:       hd.Run.Events,
		Accepted:     hd.Run.EventsAccepted,
		ScanLength:   hd.Run.ScanLength,
		WeightSum:    hd.Run.WeightSum,
		Dims:         map[string]yamlLayout{},
	}
	if hd.Run.IsPET != 0 {
		y.Mode = "PET"
	}
	if hd.HasWeightSquaredSum() {
		sum := hd.Run.WeightSquaredSum
		y.WeightSqSum = &sum
	}

	l := &hd.Layout
	for i := 0; i < MaxDims; i++ {
		if l.Bins[i] > 1 || l.Strides[i] > 0 {
			y.Dims[DimNames[i]] = yamlLayout{
				l.Bins[i], l.Strides[i], l.Min[i], l.Max[i],
			}
		}
	}

	return yaml.Marshal(&y)
}
