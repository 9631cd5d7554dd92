//go:build debug

package bin

import (
	"fmt"
	"strings"
)

// checkIndices panics with a dump of every index if any index lies outside
// its dimension's bins or if the flat offset lies outside the buffers.
func checkIndices(e *Engine, idx *Indices, offset int) {
	bad := offset < 0 || offset >= e.strides.Size
	for d := Dim(0); d < DimCount; d++ {
		if idx[d] < 0 || idx[d] >= e.con.Ranges[d].Bins {
			bad = true
		}
	}
	if !bad {
		return
	}

	lines := []string{}
	for d := Dim(0); d < DimCount; d++ {
		lines = append(lines, fmt.Sprintf(
			"    %-8s index %d of %d bins, stride %d",
			d, idx[d], e.con.Ranges[d].Bins, e.strides.Dims[d].Count,
		))
	}
	panic(fmt.Sprintf(
		"Internal error: offset %d computed for a buffer of %d elements.\n%s",
		offset, e.strides.Size, strings.Join(lines, "\n"),
	))
}
