//go:build !debug

package bin

// checkIndices is only compiled in with the debug build tag.
func checkIndices(e *Engine, idx *Indices, offset int) {}
