// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a peak noise gate. While closed, blocks are replaced by silence so
// the analyser sees a quiet spectrum instead of the noise floor. All methods
// are safe to call while the audio goroutine is applying the gate.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint32 // math.Float32bits of the peak threshold.
}

// Enable turns the gate on.
func (g *Gate) Enable() { g.enabled.Store(true) }

// Disable turns the gate off; every block passes.
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is on.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float32bits(float32(threshold)))
}

// Threshold returns the current threshold in the range 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold.Load()))
}

// Apply silences left and right in place when the gate is enabled and
// neither channel peaks above the threshold. It reports whether the block
// passed.
func (g *Gate) Apply(left, right []float32) bool {
	if !g.enabled.Load() {
		return true
	}
	threshold := math.Float32frombits(g.threshold.Load())
	if peak(left) > threshold || peak(right) > threshold {
		return true
	}
	clear(left)
	clear(right)
	return false
}

// peak returns the largest absolute sample value. The sign bit is masked
// off rather than branched on.
func peak(samples []float32) float32 {
	var highest float32
	for _, s := range samples {
		amplitude := math.Float32frombits(math.Float32bits(s) &^ (1 << 31))
		if amplitude > highest {
			highest = amplitude
		}
	}
	return highest
}
