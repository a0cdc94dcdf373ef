// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyRange names a span of the spectrum, e.g. "bass".
type FrequencyRange struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultRanges splits the audible spectrum into six coarse ranges. The last
// range is open ended and absorbs everything up to Nyquist.
var DefaultRanges = []FrequencyRange{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// RangeEnergy reduces one snapshot to the RMS of the bands whose centre
// falls into each range and writes the results to dst (len(ranges)).
// Ranges without bands report 0. bands must be unshaped magnitudes
// (SpectrumInfo.Magnitudes) laid out as described by layout.
func RangeEnergy(layout *Layout, bands []float64, ranges []FrequencyRange, dst []float64) {
	for r := range ranges {
		var energy float64
		var n int
		for k, m := range bands {
			if k+1 >= len(layout.BandEdges) {
				break
			}
			// Geometric centre of a logarithmic band.
			centre := math.Sqrt(layout.BandEdges[k] * layout.BandEdges[k+1])
			if centre >= ranges[r].LowHz && centre < ranges[r].HighHz {
				energy += m * m
				n++
			}
		}
		if n == 0 {
			dst[r] = 0
			continue
		}
		dst[r] = math.Sqrt(energy / float64(n))
	}
}
