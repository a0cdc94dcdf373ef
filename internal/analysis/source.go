// SPDX-License-Identifier: MIT
package analysis

import "time"

// SampleListener receives blocks of de-interleaved samples from a Source.
// Samples is called from the source's audio goroutine and must return
// quickly; left and right always have the same length.
type SampleListener interface {
	Samples(left, right []float32)
}

// SourceRemovedListener is implemented by sample listeners that want to be
// told when their source shuts down. Sources call it after the listener has
// been removed, outside of any source lock.
type SourceRemovedListener interface {
	SourceRemoved()
}

// Source delivers audio at a fixed sample rate in blocks of a nominal size.
// The analyser treats all of its methods as read-only queries apart from the
// listener registration pair.
type Source interface {
	SampleRate() float64 // Sample rate in Hz.
	BufferSize() int     // Nominal (and maximum) frames per delivered block.
	AddListener(l SampleListener)
	RemoveListener(l SampleListener)
}

// Playable is implemented by sources with a notion of playback state and
// position. Sources that are not Playable are always analysed and their
// snapshots carry no position.
type Playable interface {
	IsPlaying() bool
	Position() time.Duration
	Length() time.Duration // 0 when the total length is unknown.
}

// Listener is notified once per completed analysis window. Listeners pull
// data from the analyser (SpectrumInfo, SpectrumBandCount); they are not
// handed a copy. AnalysisUpdated runs on the producer goroutine and must not
// block, call Attach or call Detach.
type Listener interface {
	AnalysisUpdated(a *Analyser)
}
