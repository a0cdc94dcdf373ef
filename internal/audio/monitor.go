// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"spectrum/internal/log"
)

// Monitor is a SampleListener that plays the blocks it receives through the
// default output device. It buffers at most maxLatency of audio; older
// samples are dropped when the output falls behind and silence is played
// when it runs ahead.
type Monitor struct {
	ctx    *oto.Context
	player *oto.Player
	logger log.Logger

	mu      sync.Mutex
	pending []byte
	limit   int
}

const bytesPerFrame = 2 * 4 // Stereo float32.

// NewMonitor opens the output device. oto allows only one context per
// process, so at most one Monitor may exist.
func NewMonitor(sampleRate int, maxLatency time.Duration) (*Monitor, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	<-ready

	m := newMonitorBuffer(sampleRate, maxLatency)
	m.ctx = ctx
	m.player = ctx.NewPlayer(m)
	m.player.Play()
	m.logger.Infof("monitoring at %d Hz", sampleRate)
	return m, nil
}

func newMonitorBuffer(sampleRate int, maxLatency time.Duration) *Monitor {
	limit := int(maxLatency.Seconds()*float64(sampleRate)) * bytesPerFrame
	return &Monitor{
		logger:  log.With("monitor"),
		limit:   limit,
		pending: make([]byte, 0, limit),
	}
}

// Samples implements analysis.SampleListener.
func (m *Monitor) Samples(left, right []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range left {
		m.pending = binary.LittleEndian.AppendUint32(m.pending, math.Float32bits(left[i]))
		m.pending = binary.LittleEndian.AppendUint32(m.pending, math.Float32bits(right[i]))
	}
	if over := len(m.pending) - m.limit; over > 0 {
		over += (bytesPerFrame - over%bytesPerFrame) % bytesPerFrame
		m.pending = append(m.pending[:0], m.pending[over:]...)
	}
}

// Read implements io.Reader for the oto player. It never blocks and never
// returns short reads.
func (m *Monitor) Read(p []byte) (int, error) {
	m.mu.Lock()
	n := copy(p, m.pending)
	m.pending = append(m.pending[:0], m.pending[n:]...)
	m.mu.Unlock()

	clear(p[n:])
	return len(p), nil
}

// Close stops output.
func (m *Monitor) Close() error {
	if m.player == nil {
		return nil
	}
	err := m.player.Close()
	m.player = nil
	return err
}
