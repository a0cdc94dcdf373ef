// SPDX-License-Identifier: MIT
package analysis

import (
	"time"

	"spectrum/internal/log"
)

// Sender delivers events to a consumer, typically a transport.Transport.
type Sender interface {
	Send(data any) error
}

// Onset is emitted when the spectral flux of a step exceeds the adaptive
// threshold.
type Onset struct {
	Flux        float64
	Threshold   float64
	Position    time.Duration
	HasPosition bool
}

// OnsetConfig tunes the detector.
type OnsetConfig struct {
	// MinFlux is the absolute flux below which nothing triggers.
	MinFlux float64
	// Ratio is how far above the running mean flux a step must rise.
	Ratio float64
	// Smoothing is the weight of the newest flux in the running mean (0-1).
	Smoothing float64
	// Cooldown is the number of steps suppressed after an onset.
	Cooldown int
}

// DefaultOnsetConfig suits linear magnitudes from a 2048 point window.
func DefaultOnsetConfig() OnsetConfig {
	return OnsetConfig{MinFlux: 1, Ratio: 1.5, Smoothing: 0.1, Cooldown: 3}
}

// OnsetDetector is a Listener that compares the two most recent snapshots.
// The positive spectral flux (sum of increases in the unshaped band
// magnitudes, whatever the analyser's shaper) is checked against a
// running mean; onsets go to a Sender as {"type":"event","name":"onset"}
// messages and to an optional callback.
//
// OnsetDetector is driven by a single analyser and is not safe for use by
// several at once.
type OnsetDetector struct {
	cfg    OnsetConfig
	sender Sender
	notify func(Onset)
	logger log.Logger

	current  SpectrumInfo
	previous SpectrumInfo
	mean     float64
	cooldown int
	count    int
}

// NewOnsetDetector returns a detector sending to sender, which may be nil.
func NewOnsetDetector(cfg OnsetConfig, sender Sender) *OnsetDetector {
	d := &OnsetDetector{
		cfg:    cfg,
		sender: sender,
		logger: log.With("onset"),
	}
	d.logger.Infof("initialised (min flux %.2f, ratio %.2f, cooldown %d)", cfg.MinFlux, cfg.Ratio, cfg.Cooldown)
	return d
}

// OnOnset sets a callback run on the producer goroutine for every onset.
func (d *OnsetDetector) OnOnset(fn func(Onset)) {
	d.notify = fn
}

// Count returns the number of onsets detected so far.
func (d *OnsetDetector) Count() int {
	return d.count
}

// AnalysisUpdated implements Listener.
func (d *OnsetDetector) AnalysisUpdated(a *Analyser) {
	if !a.SpectrumInfoInto(0, &d.current) || !a.SpectrumInfoInto(1, &d.previous) {
		return
	}

	flux := spectralFlux(d.current.Magnitudes, d.previous.Magnitudes)
	threshold := d.mean * d.cfg.Ratio
	if threshold < d.cfg.MinFlux {
		threshold = d.cfg.MinFlux
	}
	d.mean += d.cfg.Smoothing * (flux - d.mean)

	if d.cooldown > 0 {
		d.cooldown--
		return
	}
	if flux <= threshold {
		return
	}

	d.cooldown = d.cfg.Cooldown
	d.count++
	onset := Onset{
		Flux:        flux,
		Threshold:   threshold,
		Position:    d.current.Position,
		HasPosition: d.current.HasPosition,
	}
	if d.notify != nil {
		d.notify(onset)
	}
	if d.sender == nil {
		return
	}
	event := map[string]any{
		"type":        "event",
		"name":        "onset",
		"flux":        flux,
		"position_ms": d.current.PositionMillis(),
	}
	if err := d.sender.Send(event); err != nil {
		d.logger.Errorf("sending onset event: %v", err)
	}
}

// spectralFlux sums the positive differences between two snapshots.
func spectralFlux(current, previous []float64) float64 {
	var flux float64
	n := min(len(current), len(previous))
	for i := 0; i < n; i++ {
		if d := current[i] - previous[i]; d > 0 {
			flux += d
		}
	}
	return flux
}
