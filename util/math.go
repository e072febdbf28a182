package util

import (
	"math"
)

// CeilUint64 rounds x up to the nearest whole number, matching how the host
// filesystem layer reports block counts (fractional blocks always round up).
func CeilUint64(x float64) uint64 {
	return uint64(math.Ceil(x))
}
