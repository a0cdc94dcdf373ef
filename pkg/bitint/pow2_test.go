// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // One
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{1000, 1024}, // Large number
		{2205, 4096}, // 44100 Hz / 20 Hz
		{3, 4},       // Small non-power
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestPrevPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 0},     // Negative number
		{0, 0},       // Zero
		{1, 1},       // One
		{8, 8},       // Already power of two
		{10, 8},      // Not power of two
		{2205, 2048}, // 44100 Hz / 20 Hz
		{2400, 2048}, // 48000 Hz / 20 Hz
		{4800, 4096}, // 96000 Hz / 20 Hz
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := PrevPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("PrevPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestPrevPowerOfTwoIsLargestNotExceeding(t *testing.T) {
	for n := 1; n < 1<<14; n++ {
		p := PrevPowerOfTwo(n)
		if !IsPowerOfTwo(p) || p > n || p*2 <= n {
			t.Fatalf("PrevPowerOfTwo(%d) = %d violates p <= n < 2p", n, p)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-2, false},     // Negative number
		{0, false},      // Zero
		{1, true},       // One
		{8, true},       // Power of two
		{10, false},     // Not power of two
		{1 << 20, true}, // Large power of two
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestLog2(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{1, 0},
		{2, 1},
		{2048, 11},
		{3, -1},
		{0, -1},
	}

	for _, tt := range tests {
		if got := Log2(tt.n); got != tt.expected {
			t.Errorf("Log2(%d) = %d, expected %d", tt.n, got, tt.expected)
		}
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		NextPowerOfTwo(i % 10000)
		i++
	}
}

func BenchmarkPrevPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		PrevPowerOfTwo(i % 10000)
		i++
	}
}
