// SPDX-License-Identifier: MIT
package analysis

import (
	"sync"
	"time"
)

// History is a fixed-size ring of spectrum snapshots. A single writer
// appends snapshots; any number of readers address them most-recent-first.
// The lock is only held for one slot copy, never across a transform.
type History struct {
	mu     sync.RWMutex
	slots  []SpectrumInfo
	cursor int // Index of the next slot to write.
}

// NewHistory pre-allocates size undefined slots.
func NewHistory(size int) *History {
	return &History{slots: make([]SpectrumInfo, size)}
}

// Len returns the fixed number of slots.
func (h *History) Len() int {
	return len(h.slots)
}

// Write copies the shaped bands, the unshaped magnitudes and the timing
// data into the next slot, marks it defined and advances the cursor. Neither
// slice is retained.
func (h *History) Write(bands, magnitudes []float64, position time.Duration, relative float64, hasPosition bool) {
	h.mu.Lock()
	slot := &h.slots[h.cursor]
	slot.Bands = append(slot.Bands[:0], bands...)
	slot.Magnitudes = append(slot.Magnitudes[:0], magnitudes...)
	slot.Position = position
	slot.RelativePosition = relative
	slot.HasPosition = hasPosition
	slot.defined = true
	h.cursor = (h.cursor + 1) % len(h.slots)
	h.mu.Unlock()
}

// index maps a logical index (0 = most recent) to a slot index.
func (h *History) index(idx int) int {
	return (h.cursor - 1 - idx + 2*len(h.slots)) % len(h.slots)
}

// Read returns a copy of the snapshot idx steps back, 0 being the most
// recent. ok is false when idx is out of range or the slot was never
// written.
func (h *History) Read(idx int) (info SpectrumInfo, ok bool) {
	ok = h.ReadInto(idx, &info)
	return info, ok
}

// ReadInto copies the snapshot idx steps back into dst, reusing dst.Bands.
// dst is left untouched when no data is available.
func (h *History) ReadInto(idx int, dst *SpectrumInfo) bool {
	if idx < 0 || idx >= len(h.slots) {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	slot := &h.slots[h.index(idx)]
	if !slot.defined {
		return false
	}
	dst.copyFrom(slot)
	return true
}

// Reset marks every slot undefined and rewinds the cursor.
func (h *History) Reset() {
	h.mu.Lock()
	for i := range h.slots {
		h.slots[i].reset()
	}
	h.cursor = 0
	h.mu.Unlock()
}
