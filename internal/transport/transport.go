// SPDX-License-Identifier: MIT
// Package transport pushes analysis results to consumers outside the
// process.
package transport

import (
	"errors"
	"sync/atomic"
	"time"

	"spectrum/internal/analysis"
	"spectrum/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations must be safe for concurrent use and must not block the
// caller for longer than it takes to queue the message.
type Transport interface {
	Send(data any) error
	Close() error
}

// FrameType is the "type" of every spectrum Frame.
const FrameType = "spectrum"

// Frame is the JSON message published for one analysis step.
type Frame struct {
	Type       string             `json:"type"`
	Sequence   uint64             `json:"seq"`
	Bands      []float64          `json:"bands"`
	PositionMs int64              `json:"position_ms"`
	Relative   float64            `json:"relative"`
	Ranges     map[string]float64 `json:"ranges,omitempty"`
}

// Publisher is an analysis.Listener that sends the newest snapshot as a
// Frame after every analysis step.
//
// Frames are built on the producer goroutine. A Publisher is driven by a
// single analyser.
type Publisher struct {
	transport   Transport
	ranges      []analysis.FrequencyRange
	minInterval time.Duration
	logger      log.Logger
	now         func() time.Time

	info     analysis.SpectrumInfo
	energy   []float64
	last     time.Time
	sequence uint64
	sent     atomic.Uint64
	failed   atomic.Uint64
}

// NewPublisher returns a publisher sending to t. Steps arriving less than
// minInterval after the last published one are skipped; zero publishes
// every step.
func NewPublisher(t Transport, minInterval time.Duration) *Publisher {
	return &Publisher{
		transport:   t,
		minInterval: minInterval,
		logger:      log.With("publisher"),
		now:         time.Now,
	}
}

// WithRanges adds the RMS energy of each range to every frame.
func (p *Publisher) WithRanges(ranges []analysis.FrequencyRange) *Publisher {
	p.ranges = ranges
	p.energy = make([]float64, len(ranges))
	return p
}

// Sent returns the number of frames handed to the transport.
func (p *Publisher) Sent() uint64 {
	return p.sent.Load()
}

// Failed returns the number of frames the transport rejected.
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

// AnalysisUpdated implements analysis.Listener.
func (p *Publisher) AnalysisUpdated(a *analysis.Analyser) {
	now := p.now()
	if p.minInterval > 0 && !p.last.IsZero() && now.Sub(p.last) < p.minInterval {
		return
	}
	if !a.SpectrumInfoInto(0, &p.info) {
		return
	}
	p.last = now
	p.sequence++

	// The transport may encode asynchronously, so the frame owns its bands.
	frame := Frame{
		Type:       FrameType,
		Sequence:   p.sequence,
		Bands:      append([]float64(nil), p.info.Bands...),
		PositionMs: p.info.PositionMillis(),
		Relative:   p.info.RelativePosition,
	}
	if layout, ok := a.Layout(); ok && len(p.ranges) > 0 {
		analysis.RangeEnergy(layout, p.info.Magnitudes, p.ranges, p.energy)
		frame.Ranges = make(map[string]float64, len(p.ranges))
		for i, r := range p.ranges {
			frame.Ranges[r.Name] = p.energy[i]
		}
	}

	if err := p.transport.Send(frame); err != nil {
		if p.failed.Add(1) == 1 {
			p.logger.Warnf("send failed: %v", err)
		}
		return
	}
	p.sent.Add(1)
}

// Multi fans every message out to several transports.
type Multi []Transport

// Send forwards data to every transport and joins their errors.
func (m Multi) Send(data any) error {
	var errList []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Close closes every transport and joins their errors.
func (m Multi) Close() error {
	var errList []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

var _ Transport = Multi(nil)
