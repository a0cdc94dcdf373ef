// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Shaper maps band magnitudes to the values stored in the history. dst and
// src have the same length and may alias. Implementations must be pure and
// allocation-free.
type Shaper interface {
	Shape(dst, src []float64)
	Name() string
}

// Linear leaves magnitudes unchanged.
type Linear struct{}

func (Linear) Shape(dst, src []float64) {
	copy(dst, src)
}

func (Linear) Name() string { return "linear" }

// DefaultFloorDB is the level Logarithmic reports for silent bands.
const DefaultFloorDB = -120.0

// Logarithmic converts magnitudes to decibels, clamping at FloorDB.
type Logarithmic struct {
	FloorDB float64
}

func (s Logarithmic) Shape(dst, src []float64) {
	floor := s.FloorDB
	if floor == 0 {
		floor = DefaultFloorDB
	}
	minMag := math.Pow(10, floor/20)
	for i, m := range src {
		if m < minMag {
			dst[i] = floor
			continue
		}
		dst[i] = 20 * math.Log10(m)
	}
}

func (Logarithmic) Name() string { return "log" }

// ParseShaper returns the shaper registered under name.
func ParseShaper(name string) (Shaper, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "identity":
		return Linear{}, nil
	case "log", "db", "logarithmic":
		return Logarithmic{FloorDB: DefaultFloorDB}, nil
	default:
		return Linear{}, fmt.Errorf("unknown spectrum shaper: '%s'", name)
	}
}
