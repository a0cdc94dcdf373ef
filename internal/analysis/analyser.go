// SPDX-License-Identifier: MIT
package analysis

import (
	"sync"
	"sync/atomic"
	"time"

	"spectrum/internal/errs"
	"spectrum/internal/fft"
	"spectrum/internal/log"
)

// Config holds the parameters that survive attach and detach cycles.
type Config struct {
	AnalysisFrequency  float64        // Analyses per second.
	MinFrequency       float64        // Lower edge of the first band in Hz.
	ReferenceFrequency float64        // Lowest frequency a window must hold; 0 means ReferenceFrequency.
	BandsPerOctave     int            // Logarithmic band resolution.
	HistorySize        int            // Number of retained snapshots.
	Window             fft.WindowFunc // Window applied before each transform.
	Shaper             Shaper         // Initial shaper; nil means Linear.
}

// DefaultConfig returns 30 analyses per second over 12 bands per octave from
// 55Hz, keeping 64 snapshots.
func DefaultConfig() Config {
	return Config{
		AnalysisFrequency:  30,
		MinFrequency:       55,
		ReferenceFrequency: ReferenceFrequency,
		BandsPerOctave:     12,
		HistorySize:        64,
		Window:             fft.Hann,
		Shaper:             Linear{},
	}
}

// Validate checks the source independent parameters.
func (c Config) Validate() error {
	if !(c.AnalysisFrequency > 0) {
		return errs.Config("analysis_frequency", c.AnalysisFrequency, "must be positive")
	}
	if !(c.MinFrequency > 0) {
		return errs.Config("min_frequency", c.MinFrequency, "must be positive")
	}
	if c.ReferenceFrequency < 0 {
		return errs.Config("reference_frequency", c.ReferenceFrequency, "must not be negative")
	}
	if c.BandsPerOctave <= 0 {
		return errs.Config("bands_per_octave", c.BandsPerOctave, "must be positive")
	}
	if c.HistorySize <= 0 {
		return errs.Config("history_size", c.HistorySize, "must be positive")
	}
	return nil
}

// Layout describes the sizing derived when a source was attached.
type Layout struct {
	SampleRate float64
	BlockSize  int
	WindowSize int
	BufferSize int
	Step       int
	Bands      int
	BandEdges  []float64 // Bands+1 edges in Hz, ascending.
}

// session is the state that only exists while attached.
type session struct {
	source    Source
	playable  Playable // nil when the source has no playback position.
	buffer    *SlidingBuffer
	transform *fft.Transform
	scratch   []float64
	shaped    []float64
	layout    *Layout
}

type shaperRef struct{ s Shaper }

// Analyser turns blocks of samples from an attached Source into a history
// of shaped logarithmic spectra, one per analysis step, and notifies its
// listeners after each step.
//
// Samples runs on the source's goroutine. Every query may be called from any
// goroutine at any time.
type Analyser struct {
	cfg    Config
	logger log.Logger
	window *fft.Window

	history *History
	shaper  atomic.Pointer[shaperRef]
	layout  atomic.Pointer[Layout]

	life    sync.Mutex // Serializes Samples with Attach and Detach.
	session *session

	raw    sync.RWMutex // Guards the contents of rawBuf.
	rawBuf *SlidingBuffer

	listenersMu sync.Mutex
	listeners   atomic.Pointer[[]Listener]
}

// NewAnalyser returns a detached analyser.
func NewAnalyser(cfg Config) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReferenceFrequency == 0 {
		cfg.ReferenceFrequency = ReferenceFrequency
	}
	if cfg.Shaper == nil {
		cfg.Shaper = Linear{}
	}

	a := &Analyser{
		cfg:     cfg,
		logger:  log.With("analyser"),
		window:  fft.NewWindow(cfg.Window),
		history: NewHistory(cfg.HistorySize),
	}
	a.shaper.Store(&shaperRef{cfg.Shaper})
	a.listeners.Store(&[]Listener{})
	return a, nil
}

// Attach sizes the analyser for src and registers it as a sample listener.
// A previously attached source is detached first. On error the analyser is
// left detached.
func (a *Analyser) Attach(src Source) error {
	if src == nil {
		return errs.Config("source", nil, "must not be nil")
	}

	a.life.Lock()
	defer a.life.Unlock()

	a.detachLocked(true)

	s, err := a.newSession(src)
	if err != nil {
		a.logger.Warnf("attach failed: %v", err)
		return err
	}

	a.history.Reset()
	a.raw.Lock()
	a.rawBuf = s.buffer
	a.raw.Unlock()
	a.session = s
	a.layout.Store(s.layout)
	src.AddListener(a)

	l := s.layout
	a.logger.Infof("attached: rate=%.0fHz block=%d window=%d buffer=%d step=%d bands=%d (%.1f-%.1fHz)",
		l.SampleRate, l.BlockSize, l.WindowSize, l.BufferSize, l.Step, l.Bands,
		l.BandEdges[0], l.BandEdges[len(l.BandEdges)-1])
	return nil
}

func (a *Analyser) newSession(src Source) (*session, error) {
	rate := src.SampleRate()
	block := src.BufferSize()

	buf, err := NewSlidingBuffer(rate, block, a.cfg.ReferenceFrequency, a.cfg.AnalysisFrequency)
	if err != nil {
		return nil, err
	}
	tf, err := fft.NewTransform(buf.WindowSize(), rate)
	if err != nil {
		return nil, err
	}
	if err := tf.LogAverages(a.cfg.MinFrequency, a.cfg.BandsPerOctave); err != nil {
		return nil, err
	}

	bands := tf.AverageSize()
	edges := make([]float64, bands+1)
	for k := 0; k < bands; k++ {
		edges[k], edges[k+1] = tf.BandRange(k)
	}

	s := &session{
		source:    src,
		buffer:    buf,
		transform: tf,
		scratch:   make([]float64, buf.WindowSize()),
		shaped:    make([]float64, bands),
		layout: &Layout{
			SampleRate: rate,
			BlockSize:  block,
			WindowSize: buf.WindowSize(),
			BufferSize: buf.Len(),
			Step:       buf.Step(),
			Bands:      bands,
			BandEdges:  edges,
		},
	}
	if p, ok := src.(Playable); ok {
		s.playable = p
	}
	// Warm the coefficient cache so the first step does not allocate.
	a.window.Coefficients(buf.WindowSize())
	return s, nil
}

// Detach unregisters from the current source and clears the history. It is
// a no-op when nothing is attached. Detach waits for an in-flight Samples
// call to finish, so it must not be called from a Listener.
func (a *Analyser) Detach() {
	a.life.Lock()
	a.detachLocked(true)
	a.life.Unlock()
}

// SourceRemoved detaches after the source has already dropped its listeners.
func (a *Analyser) SourceRemoved() {
	a.life.Lock()
	a.detachLocked(false)
	a.life.Unlock()
}

func (a *Analyser) detachLocked(unregister bool) {
	s := a.session
	if s == nil {
		return
	}
	if unregister {
		s.source.RemoveListener(a)
	}

	a.session = nil
	a.layout.Store(nil)
	a.raw.Lock()
	a.rawBuf = nil
	a.raw.Unlock()
	a.history.Reset()
	a.logger.Infof("detached")
}

// IsAttached reports whether a source is attached.
func (a *Analyser) IsAttached() bool {
	return a.layout.Load() != nil
}

// Samples consumes one block from the attached source. Blocks arriving while
// detached, or while a Playable source is paused, are dropped.
func (a *Analyser) Samples(left, right []float32) {
	a.life.Lock()
	defer a.life.Unlock()

	s := a.session
	if s == nil {
		return
	}
	if s.playable != nil && !s.playable.IsPlaying() {
		return
	}

	a.push(s.buffer, left, right)

	for s.buffer.HasWindow() {
		s.buffer.Extract(s.scratch)
		a.window.Apply(s.scratch)
		s.transform.Forward(s.scratch)

		averages := s.transform.Averages()
		a.shaper.Load().s.Shape(s.shaped, averages)

		position, relative, hasPosition := s.timing()
		a.history.Write(s.shaped, averages, position, relative, hasPosition)
		s.buffer.Advance()

		for _, l := range *a.listeners.Load() {
			l.AnalysisUpdated(a)
		}
	}
}

func (a *Analyser) push(buf *SlidingBuffer, left, right []float32) {
	a.raw.Lock()
	defer a.raw.Unlock()
	buf.Push(left, right)
}

// timing returns the playback position of the window at the cursor.
func (s *session) timing() (position time.Duration, relative float64, ok bool) {
	if s.playable == nil {
		return 0, 0, false
	}

	offset := samplesToDuration(s.buffer.Offset(), s.layout.SampleRate)
	position = s.playable.Position() - offset
	if length := s.playable.Length(); length > 0 {
		relative = float64(position) / float64(length)
	}
	return position, relative, true
}

func samplesToDuration(n int, sampleRate float64) time.Duration {
	return time.Duration(float64(n) / sampleRate * float64(time.Second))
}

// SpectrumBandCount returns the number of bands per snapshot, or 0 while
// detached.
func (a *Analyser) SpectrumBandCount() int {
	if l := a.layout.Load(); l != nil {
		return l.Bands
	}
	return 0
}

// HistorySize returns the number of snapshots retained.
func (a *Analyser) HistorySize() int {
	return a.history.Len()
}

// Layout returns the sizing of the current attachment. ok is false while
// detached. The returned Layout must not be modified.
func (a *Analyser) Layout() (layout *Layout, ok bool) {
	layout = a.layout.Load()
	return layout, layout != nil
}

// SpectrumInfo returns a copy of the snapshot idx steps back, 0 being the
// most recent.
func (a *Analyser) SpectrumInfo(idx int) (SpectrumInfo, bool) {
	return a.history.Read(idx)
}

// SpectrumInfoInto is SpectrumInfo without allocating once dst.Bands has
// grown to the band count.
func (a *Analyser) SpectrumInfoInto(idx int, dst *SpectrumInfo) bool {
	return a.history.ReadInto(idx, dst)
}

// AudioDataL returns a copy of the left channel buffer, or nil while
// detached.
func (a *Analyser) AudioDataL() []float32 {
	return a.audioData(func(b *SlidingBuffer) []float32 { return b.Left() })
}

// AudioDataR returns a copy of the right channel buffer, or nil while
// detached.
func (a *Analyser) AudioDataR() []float32 {
	return a.audioData(func(b *SlidingBuffer) []float32 { return b.Right() })
}

func (a *Analyser) audioData(channel func(*SlidingBuffer) []float32) []float32 {
	a.raw.RLock()
	defer a.raw.RUnlock()
	if a.rawBuf == nil {
		return nil
	}
	src := channel(a.rawBuf)
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

// Shaper returns the shaper applied to new snapshots.
func (a *Analyser) Shaper() Shaper {
	return a.shaper.Load().s
}

// SetShaper replaces the shaper from the next analysis step on. Snapshots
// already in the history keep their old shaping. A nil shaper selects
// Linear.
func (a *Analyser) SetShaper(s Shaper) {
	if s == nil {
		s = Linear{}
	}
	a.shaper.Store(&shaperRef{s})
	a.logger.Debugf("shaper set to %s", s.Name())
}

// RegisterListener adds l to the notification set. It returns false when l
// is nil or already registered. Listeners must be comparable.
func (a *Analyser) RegisterListener(l Listener) bool {
	if l == nil {
		return false
	}

	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()

	current := *a.listeners.Load()
	for _, existing := range current {
		if existing == l {
			return false
		}
	}
	next := make([]Listener, len(current), len(current)+1)
	copy(next, current)
	next = append(next, l)
	a.listeners.Store(&next)
	return true
}

// UnregisterListener removes l and reports whether it was registered. A
// notification already in progress may still reach l.
func (a *Analyser) UnregisterListener(l Listener) bool {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()

	current := *a.listeners.Load()
	for i, existing := range current {
		if existing == l {
			next := make([]Listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			a.listeners.Store(&next)
			return true
		}
	}
	return false
}
