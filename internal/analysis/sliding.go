// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"spectrum/internal/errs"
	"spectrum/pkg/bitint"
)

// ReferenceFrequency is the default lowest frequency a window must be able
// to resolve. It sizes the window independently of the band layout.
const ReferenceFrequency = 20.0

// WindowSize returns the analysis window for sampleRate: the largest power
// of 2 not exceeding sampleRate/minFrequency, i.e. 2048 samples at 44.1kHz
// and 20Hz.
func WindowSize(sampleRate, minFrequency float64) (int, error) {
	if !(sampleRate > 0) {
		return 0, errs.Config("sample_rate", sampleRate, "must be positive")
	}
	if !(minFrequency > 0) {
		return 0, errs.Config("reference_frequency", minFrequency, "must be positive")
	}

	samples := sampleRate / minFrequency
	if samples >= math.MaxInt32 {
		return 0, errs.Config("reference_frequency", minFrequency,
			"window of %.0f samples at %.0f Hz is too large", samples, sampleRate)
	}
	size := bitint.PrevPowerOfTwo(int(samples))
	if size < 2 {
		return 0, errs.Config("reference_frequency", minFrequency,
			"no window of at least 2 samples fits at %.0f Hz", sampleRate)
	}
	return size, nil
}

// SlidingBuffer accumulates blocks of arbitrary size into a fixed buffer of
// window+block samples per channel. New samples enter at the tail; the
// cursor marks where the next analysis window starts and moves towards the
// head as blocks arrive and towards the tail by one step per analysis.
//
// SlidingBuffer is not safe for concurrent use.
type SlidingBuffer struct {
	left, right []float32
	window      int
	block       int
	cursor      int
	step        int
}

// NewSlidingBuffer sizes a buffer for a source delivering blocks of up to
// blockSize frames at sampleRate, with windows able to hold one cycle of
// referenceFrequency and one analysis every 1/analysisFrequency seconds.
func NewSlidingBuffer(sampleRate float64, blockSize int, referenceFrequency, analysisFrequency float64) (*SlidingBuffer, error) {
	window, err := WindowSize(sampleRate, referenceFrequency)
	if err != nil {
		return nil, err
	}
	if blockSize <= 0 {
		return nil, errs.Config("buffer_size", blockSize, "must be positive")
	}
	if !(analysisFrequency > 0) {
		return nil, errs.Config("analysis_frequency", analysisFrequency, "must be positive")
	}
	step := int(sampleRate / analysisFrequency)
	if step < 1 {
		return nil, errs.Config("analysis_frequency", analysisFrequency,
			"exceeds the sample rate of %.0f Hz", sampleRate)
	}

	size := window + blockSize
	return &SlidingBuffer{
		left:   make([]float32, size),
		right:  make([]float32, size),
		window: window,
		block:  blockSize,
		cursor: size, // Nothing buffered yet.
		step:   step,
	}, nil
}

// Len returns the buffer length per channel.
func (b *SlidingBuffer) Len() int { return len(b.left) }

// WindowSize returns the number of samples per analysis window.
func (b *SlidingBuffer) WindowSize() int { return b.window }

// Step returns the number of samples the cursor advances per analysis.
func (b *SlidingBuffer) Step() int { return b.step }

// Cursor returns the start of the next analysis window.
func (b *SlidingBuffer) Cursor() int { return b.cursor }

// Offset returns the number of samples between the start of the next
// window and the newest sample.
func (b *SlidingBuffer) Offset() int { return len(b.left) - b.cursor }

// Left and Right expose the live channel buffers.
func (b *SlidingBuffer) Left() []float32  { return b.left }
func (b *SlidingBuffer) Right() []float32 { return b.right }

// Push shifts out the oldest len(left) samples and appends the block.
// Mismatched channel lengths or a block longer than the nominal block size
// violate the producer contract and panic.
func (b *SlidingBuffer) Push(left, right []float32) {
	if len(left) != len(right) {
		errs.Precondition(false, "SlidingBuffer.Push",
			"channel lengths differ: %d != %d", len(left), len(right))
	}
	if len(left) > b.block {
		errs.Precondition(false, "SlidingBuffer.Push",
			"block of %d frames exceeds nominal size %d", len(left), b.block)
	}

	n := len(left)
	keep := len(b.left) - n
	copy(b.left, b.left[n:])
	copy(b.right, b.right[n:])
	copy(b.left[keep:], left)
	copy(b.right[keep:], right)
	b.cursor -= n

	// Windows older than the buffer head cannot be recovered; this only
	// happens when analysis falls behind by more than one block.
	if b.cursor < 0 {
		b.cursor = 0
	}
}

// HasWindow reports whether a complete window starts at the cursor.
func (b *SlidingBuffer) HasWindow() bool {
	return b.cursor+b.window <= len(b.left)
}

// Extract copies the left channel window at the cursor into dst, which must
// hold WindowSize() samples. The copy may be modified freely.
func (b *SlidingBuffer) Extract(dst []float64) {
	if len(dst) != b.window {
		errs.Precondition(false, "SlidingBuffer.Extract",
			"destination holds %d samples, want %d", len(dst), b.window)
	}
	for i, s := range b.left[b.cursor : b.cursor+b.window] {
		dst[i] = float64(s)
	}
}

// Advance moves the cursor forward by one step.
func (b *SlidingBuffer) Advance() {
	b.cursor += b.step
}

func (b *SlidingBuffer) String() string {
	return fmt.Sprintf("window=%d buffer=%d step=%d cursor=%d", b.window, len(b.left), b.step, b.cursor)
}
