// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"spectrum/internal/log"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// DefaultMaxConsecutiveWriteFailures stops a recording that keeps failing.
const DefaultMaxConsecutiveWriteFailures = 5

// Recorder writes de-interleaved float blocks to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion.
	channels  int
	scale     float64
	maxFrames int64
	frames    int64
	failures  int
	full      bool
	logger    log.Logger
}

// NewRecorder creates path (and its directory) and prepares a WAV encoder.
// channels is 1 (left only) or 2. maxDuration of 0 means unlimited.
func NewRecorder(path string, sampleRate, channels, bitDepth, framesPerBuffer int, maxDuration time.Duration) (*Recorder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("recording: unsupported channel count %d", channels)
	}
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("recording: unsupported bit depth %d", bitDepth)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("recording: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}

	r := &Recorder{
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		channels: channels,
		scale:    float64(int(1)<<(bitDepth-1) - 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, framesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		logger: log.With("recorder"),
	}
	if maxDuration > 0 {
		r.maxFrames = int64(maxDuration.Seconds() * float64(sampleRate))
	}
	r.logger.Infof("recording to %s (%d Hz, %d ch, %d bit)", path, sampleRate, channels, bitDepth)
	return r, nil
}

// Write converts and appends one block. Blocks past the maximum duration
// are dropped. After DefaultMaxConsecutiveWriteFailures failed writes the
// recorder stops accepting data.
func (r *Recorder) Write(left, right []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil || r.full {
		return nil
	}

	n := len(left)
	if r.maxFrames > 0 && r.frames+int64(n) > r.maxFrames {
		n = int(r.maxFrames - r.frames)
		r.full = true
		r.logger.Infof("maximum duration reached after %d frames", r.maxFrames)
	}

	need := n * r.channels
	if cap(r.sampleBuf.Data) < need {
		r.sampleBuf.Data = make([]int, need)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:need]
	for i := 0; i < n; i++ {
		if r.channels == 1 {
			r.sampleBuf.Data[i] = r.quantize(left[i])
			continue
		}
		r.sampleBuf.Data[2*i] = r.quantize(left[i])
		r.sampleBuf.Data[2*i+1] = r.quantize(right[i])
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		r.failures++
		if r.failures >= DefaultMaxConsecutiveWriteFailures {
			r.full = true
			r.logger.Errorf("giving up after %d failed writes: %v", r.failures, err)
		}
		return fmt.Errorf("recording: %w", err)
	}
	r.failures = 0
	r.frames += int64(n)
	return nil
}

func (r *Recorder) quantize(s float32) int {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(math.Round(v * r.scale))
}

// Frames returns the number of frames written.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		r.file = nil
		r.logger.Infof("recording closed after %d frames", r.frames)
	}
	return nil
}

// RecordingName returns a timestamped file name inside dir.
func RecordingName(dir string, now time.Time) string {
	return filepath.Join(dir, "capture-"+now.Format("20060102-150405")+".wav")
}
