// SPDX-License-Identifier: MIT
/*
Package audio provides the sample sources feeding the analyser:

  - Engine captures a PortAudio input device in real time.
  - Player streams a decoded WAV file at its own pace.

Both deliver de-interleaved float32 blocks to their listeners from a single
goroutine and implement analysis.Source and analysis.Playable.

Thread Safety:
  - Listener sets are copy-on-write; delivery never takes a lock
  - Buffers are pre-allocated so the capture callback does not allocate
  - Recording and gate state are switched atomically
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"spectrum/internal/analysis"
	"spectrum/internal/config"
	"spectrum/internal/log"
)

// Engine captures audio from an input device and delivers it to its
// listeners. Mono input is duplicated to both channels. The Engine is
// Playable: it is playing while the stream runs, its position is the
// captured duration and its length is unknown.
type Engine struct {
	config config.AudioConfig
	logger log.Logger

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// De-interleaved block buffers, reused for every callback.
	left, right []float32

	gate      Gate
	listeners listenerSet
	recorder  atomic.Pointer[Recorder]

	running atomic.Bool
	frames  atomic.Int64
}

var (
	_ analysis.Source   = (*Engine)(nil)
	_ analysis.Playable = (*Engine)(nil)
)

// NewEngine resolves the configured input device. PortAudio must be
// initialized.
func NewEngine(cfg config.AudioConfig) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %s has %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.InputChannels)
	}

	e := newEngine(cfg)
	e.inputDevice = inputDevice
	if cfg.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	return e, nil
}

// newEngine builds an engine without a device; tests drive process directly.
func newEngine(cfg config.AudioConfig) *Engine {
	e := &Engine{
		config: cfg,
		logger: log.With("engine"),
		left:   make([]float32, cfg.FramesPerBuffer),
		right:  make([]float32, cfg.FramesPerBuffer),
	}
	e.gate.SetThreshold(cfg.GateThreshold)
	if cfg.GateEnabled {
		e.gate.Enable()
	}
	return e
}

// SampleRate implements analysis.Source.
func (e *Engine) SampleRate() float64 { return e.config.SampleRate }

// BufferSize implements analysis.Source.
func (e *Engine) BufferSize() int { return e.config.FramesPerBuffer }

// AddListener implements analysis.Source.
func (e *Engine) AddListener(l analysis.SampleListener) { e.listeners.add(l) }

// RemoveListener implements analysis.Source.
func (e *Engine) RemoveListener(l analysis.SampleListener) { e.listeners.remove(l) }

// IsPlaying reports whether the input stream is running.
func (e *Engine) IsPlaying() bool { return e.running.Load() }

// Position returns the duration captured since the stream was first started.
func (e *Engine) Position() time.Duration {
	return time.Duration(float64(e.frames.Load()) / e.config.SampleRate * float64(time.Second))
}

// Length is always 0: a live stream has no known length.
func (e *Engine) Length() time.Duration { return 0 }

// Gate returns the engine's noise gate.
func (e *Engine) Gate() *Gate { return &e.gate }

// StartInputStream opens and starts the capture stream.
func (e *Engine) StartInputStream() error {
	if e.inputStream != nil {
		return nil
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	e.inputStream = stream
	e.running.Store(true)

	e.logger.Infof("capturing from %s (%.0f Hz, %d ch, %d frames, latency %v)",
		e.inputDevice.Name, e.config.SampleRate, e.config.InputChannels,
		e.config.FramesPerBuffer, e.inputLatency)
	return nil
}

// StopInputStream stops and closes the capture stream.
func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}
	e.running.Store(false)

	if err := e.inputStream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := e.inputStream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	e.inputStream = nil
	e.logger.Infof("capture stopped after %v", e.Position())
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
//   - Runs on PortAudio's audio thread (LockOSThread)
//   - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.process(in)
}

// process de-interleaves one interleaved block, applies the gate, records
// and delivers it.
func (e *Engine) process(in []float32) {
	channels := e.config.InputChannels
	n := len(in) / channels
	if n > len(e.left) {
		n = len(e.left)
	}
	left, right := e.left[:n], e.right[:n]

	if channels == 1 {
		copy(left, in[:n])
		copy(right, in[:n])
	} else {
		for i := 0; i < n; i++ {
			left[i] = in[i*channels]
			right[i] = in[i*channels+1]
		}
	}

	e.gate.Apply(left, right)

	if r := e.recorder.Load(); r != nil {
		if err := r.Write(left, right); err != nil {
			e.logger.Errorf("%v", err)
		}
	}

	e.frames.Add(int64(n))
	e.listeners.deliver(left, right)
}

// StartRecording writes the captured (gated) audio to filename.
func (e *Engine) StartRecording(filename string, bitDepth int, maxDuration time.Duration) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	r, err := NewRecorder(filename, int(e.config.SampleRate), e.config.InputChannels,
		bitDepth, e.config.FramesPerBuffer, maxDuration)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return ErrAlreadyRecording
	}
	return nil
}

// StopRecording finalizes the current recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// IsRecording reports whether a recording is in progress.
func (e *Engine) IsRecording() bool {
	return e.recorder.Load() != nil
}

// Close stops recording and capture, then detaches every listener.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	if err := e.StopInputStream(); err != nil {
		return err
	}
	e.listeners.removeAll()
	return nil
}
