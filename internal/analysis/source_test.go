// SPDX-License-Identifier: MIT
package analysis

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeSource is a Source driven by the test goroutine.
type fakeSource struct {
	rate  float64
	block int

	mu        sync.Mutex
	listeners []SampleListener
}

func newFakeSource(rate float64, block int) *fakeSource {
	return &fakeSource{rate: rate, block: block}
}

func (f *fakeSource) SampleRate() float64 { return f.rate }
func (f *fakeSource) BufferSize() int     { return f.block }

func (f *fakeSource) AddListener(l SampleListener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
}

func (f *fakeSource) RemoveListener(l SampleListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *fakeSource) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeSource) deliver(left, right []float32) {
	f.mu.Lock()
	ls := append([]SampleListener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range ls {
		l.Samples(left, right)
	}
}

// playableSource adds a playback clock advanced by deliver.
type playableSource struct {
	*fakeSource
	playing atomic.Bool
	frames  atomic.Int64
	length  time.Duration
}

func newPlayableSource(rate float64, block int, length time.Duration) *playableSource {
	p := &playableSource{fakeSource: newFakeSource(rate, block), length: length}
	p.playing.Store(true)
	return p
}

func (p *playableSource) IsPlaying() bool { return p.playing.Load() }

func (p *playableSource) Position() time.Duration {
	return samplesToDuration(int(p.frames.Load()), p.rate)
}

func (p *playableSource) Length() time.Duration { return p.length }

func (p *playableSource) deliver(left, right []float32) {
	if p.IsPlaying() {
		p.frames.Add(int64(len(left)))
	}
	p.fakeSource.deliver(left, right)
}

// countingListener counts notifications and records the band count seen.
type countingListener struct {
	calls atomic.Int64
	bands atomic.Int64
}

func (c *countingListener) AnalysisUpdated(a *Analyser) {
	c.calls.Add(1)
	c.bands.Store(int64(a.SpectrumBandCount()))
}
