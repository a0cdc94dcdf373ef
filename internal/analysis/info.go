// SPDX-License-Identifier: MIT
package analysis

import "time"

// SpectrumInfo is one analysis snapshot.
type SpectrumInfo struct {
	// Bands holds the shaped band magnitudes, lowest frequency first.
	Bands []float64

	// Magnitudes holds the same bands before shaping. Measurements that
	// need linear magnitudes (range energy, spectral flux) read these so
	// they do not depend on the active shaper.
	Magnitudes []float64

	// Position is the playback position the analysed window started at.
	// Only meaningful when HasPosition is set; it may be negative for the
	// first windows after playback starts.
	Position time.Duration

	// RelativePosition is Position divided by the source length, or 0 when
	// the length is unknown.
	RelativePosition float64

	// HasPosition is false when the source does not report positions.
	HasPosition bool

	defined bool
}

// Defined reports whether the snapshot has been written since the last reset.
func (s *SpectrumInfo) Defined() bool {
	return s.defined
}

// PositionMillis returns Position in whole milliseconds, or -1 when unknown.
func (s *SpectrumInfo) PositionMillis() int64 {
	if !s.HasPosition {
		return -1
	}
	return s.Position.Milliseconds()
}

// copyFrom overwrites s with src, reusing its slices when they are large
// enough.
func (s *SpectrumInfo) copyFrom(src *SpectrumInfo) {
	s.Bands = append(s.Bands[:0], src.Bands...)
	s.Magnitudes = append(s.Magnitudes[:0], src.Magnitudes...)
	s.Position = src.Position
	s.RelativePosition = src.RelativePosition
	s.HasPosition = src.HasPosition
	s.defined = src.defined
}

func (s *SpectrumInfo) reset() {
	s.Position = 0
	s.RelativePosition = 0
	s.HasPosition = false
	s.defined = false
}
