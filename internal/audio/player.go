// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"

	"spectrum/internal/analysis"
	"spectrum/internal/log"
)

// ErrNotWAV is returned when a file is not a PCM WAV file.
var ErrNotWAV = errors.New("not a PCM WAV file")

// wavFormatPCM is the WAVE format tag of integer PCM.
const wavFormatPCM = 1

// Player is a Source streaming decoded audio at real-time pace. A ticker
// delivers one block per block duration while playing; the position is the
// number of frames delivered so far.
type Player struct {
	logger log.Logger

	rate  float64
	block int
	left  []float32 // Whole decoded track.
	right []float32
	meta  Metadata

	// Block buffers handed to listeners.
	outL, outR []float32

	mu      sync.Mutex // Serializes step with Seek and Stop.
	frame   atomic.Int64
	playing atomic.Bool
	loop    atomic.Bool

	listeners listenerSet

	ended     chan struct{}
	endedOnce sync.Once
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var (
	_ analysis.Source   = (*Player)(nil)
	_ analysis.Playable = (*Player)(nil)
)

// OpenPlayer decodes the WAV file at path into memory. Mono files play on
// both channels; channels beyond the second are ignored.
func OpenPlayer(path string, blockSize int) (*Player, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%s: %w: format tag %d", path, ErrNotWAV, decoder.WavAudioFormat)
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%s: %w: %d bit samples", path, ErrNotWAV, decoder.BitDepth)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("%s: %w: no channels", path, ErrNotWAV)
	}
	frames := len(buf.Data) / channels
	scale := float32(int64(1) << (int(decoder.BitDepth) - 1))
	// 8-bit PCM is unsigned, centred on 128.
	var bias int
	if decoder.BitDepth == 8 {
		bias = 128
	}

	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(buf.Data[i*channels]-bias) / scale
		if channels > 1 {
			right[i] = float32(buf.Data[i*channels+1]-bias) / scale
		} else {
			right[i] = left[i]
		}
	}

	p := NewPlayer(left, right, float64(buf.Format.SampleRate), blockSize)
	if meta, err := ReadMetadata(path); err == nil {
		p.meta = meta
	}
	if p.meta.Title == "" {
		p.meta.Title = baseName(path)
	}
	p.logger.Infof("opened %s: %d Hz, %d ch, %d bit, %v", path,
		buf.Format.SampleRate, channels, decoder.BitDepth, p.Length())
	return p, nil
}

// NewPlayer plays the given channels, which must have the same length.
// The returned player is paused at the start.
func NewPlayer(left, right []float32, sampleRate float64, blockSize int) *Player {
	return &Player{
		logger: log.With("player"),
		rate:   sampleRate,
		block:  blockSize,
		left:   left,
		right:  right,
		outL:   make([]float32, blockSize),
		outR:   make([]float32, blockSize),
		ended:  make(chan struct{}),
		quit:   make(chan struct{}),
	}
}

// SampleRate implements analysis.Source.
func (p *Player) SampleRate() float64 { return p.rate }

// BufferSize implements analysis.Source.
func (p *Player) BufferSize() int { return p.block }

// AddListener implements analysis.Source.
func (p *Player) AddListener(l analysis.SampleListener) { p.listeners.add(l) }

// RemoveListener implements analysis.Source.
func (p *Player) RemoveListener(l analysis.SampleListener) { p.listeners.remove(l) }

// IsPlaying implements analysis.Playable.
func (p *Player) IsPlaying() bool { return p.playing.Load() }

// Position implements analysis.Playable.
func (p *Player) Position() time.Duration { return p.framesToDuration(p.frame.Load()) }

// Length implements analysis.Playable.
func (p *Player) Length() time.Duration { return p.framesToDuration(int64(len(p.left))) }

// Metadata returns the tags read from the file.
func (p *Player) Metadata() Metadata { return p.meta }

// SetLoop makes playback restart from the beginning at the end of the track.
func (p *Player) SetLoop(loop bool) { p.loop.Store(loop) }

// Ended is closed when playback reaches the end of a non-looping track.
func (p *Player) Ended() <-chan struct{} { return p.ended }

func (p *Player) framesToDuration(frames int64) time.Duration {
	return time.Duration(float64(frames) / p.rate * float64(time.Second))
}

// Start launches the pacing goroutine. Playback begins with Play.
func (p *Player) Start() {
	interval := p.framesToDuration(int64(p.block))
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.quit:
				return
			case <-ticker.C:
				if p.IsPlaying() {
					p.step()
				}
			}
		}
	}()
}

// Play resumes playback.
func (p *Player) Play() {
	if !p.playing.Swap(true) {
		p.logger.Infof("playing from %v", p.Position().Round(time.Millisecond))
	}
}

// Pause suspends playback, keeping the position.
func (p *Player) Pause() {
	if p.playing.Swap(false) {
		p.logger.Infof("paused at %v", p.Position().Round(time.Millisecond))
	}
}

// TogglePause switches between Play and Pause.
func (p *Player) TogglePause() {
	if p.IsPlaying() {
		p.Pause()
	} else {
		p.Play()
	}
}

// Stop pauses and rewinds to the start.
func (p *Player) Stop() {
	p.Pause()
	p.mu.Lock()
	p.frame.Store(0)
	p.mu.Unlock()
}

// Seek moves the position, clamped to the track.
func (p *Player) Seek(position time.Duration) {
	frame := int64(position.Seconds() * p.rate)
	frame = max(0, min(frame, int64(len(p.left))))
	p.mu.Lock()
	p.frame.Store(frame)
	p.mu.Unlock()
	p.logger.Debugf("seek to %v", p.framesToDuration(frame))
}

// step delivers the next block. The final block of a track may be short.
// It returns false once a non-looping track has ended.
func (p *Player) step() bool {
	p.mu.Lock()
	start := p.frame.Load()
	total := int64(len(p.left))
	if start >= total {
		if !p.loop.Load() || total == 0 {
			p.mu.Unlock()
			p.playing.Store(false)
			p.endedOnce.Do(func() { close(p.ended) })
			return false
		}
		start = 0
	}
	end := min(start+int64(p.block), total)
	n := copy(p.outL, p.left[start:end])
	copy(p.outR, p.right[start:end])
	p.frame.Store(end)
	p.mu.Unlock()

	p.listeners.deliver(p.outL[:n], p.outR[:n])
	return true
}

// Close stops the pacing goroutine and detaches every listener.
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		p.playing.Store(false)
		close(p.quit)
		p.wg.Wait()
		p.listeners.removeAll()
		p.logger.Infof("closed")
	})
	return nil
}
