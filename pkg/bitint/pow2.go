// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used to size FFT windows
and sample buffers.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Smallest power of 2 that holds at least 2205 samples
	window := bitint.NextPowerOfTwo(2205) // Returns 4096

	// Largest power of 2 that fits into 2205 samples
	window = bitint.PrevPowerOfTwo(2205) // Returns 2048

	// Verify FFT window size is valid
	isValid := bitint.IsPowerOfTwo(window)

----------------------------------------------------------------------

Why NextPowerOfTwo subtracts one:

	For input 8 (already a power of 2):
	  size-1 = 7 (binary 0111)
	  bits.Len(7) = 3
	  1 << 3 = 8 (preserved)

	Without the subtraction bits.Len(8) = 4 and the result would
	be 16, doubling every exact power of 2.

PrevPowerOfTwo needs no correction: the highest set bit of n is
already the largest power of 2 that does not exceed n.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size, or 0 when size
// is not positive.
//
//	Input  Output
//	4      4
//	5      4
//	2205   2048
//	0      0
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because:
//   - Powers of 2 have exactly one bit set
//   - Subtracting 1 from a power of 2 sets all lower bits
//   - AND operation will be 0 only for powers of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of 2, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
