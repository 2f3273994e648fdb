package sys

import "math/bits"

// Is64Bit reports whether this process runs in a 64-bit address space.
// The manager uses it to pick default window/memory-budget sizes (see
// winmap.Config).
func Is64Bit() bool {
	return bits.UintSize == 64
}
