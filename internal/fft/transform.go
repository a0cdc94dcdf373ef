// SPDX-License-Identifier: MIT
// Package fft turns fixed-size windows of samples into a linear magnitude
// spectrum and groups that spectrum into logarithmically spaced bands.
package fft

import (
	"math"
	"math/cmplx"

	"spectrum/internal/errs"
	"spectrum/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// band is one logarithmic band, expressed both in Hz and as the half-open
// range of linear bins [lo, hi) whose centre frequency falls inside it.
type band struct {
	lowHz, highHz float64
	lo, hi        int
}

// Pre-allocated buffers for FFT calculations.
type workspace struct {
	coeffs    []complex128 // FFT output, size/2 + 1 values.
	magnitude []float64    // Linear magnitude spectrum, size/2 values.
	averages  []float64    // Band averages, one value per band.
}

// Transform computes magnitude spectra for windows of a fixed power-of-two
// size. A Transform is not safe for concurrent use; the analyser owns one
// per attached source and drives it from the producer goroutine only.
type Transform struct {
	size       int
	sampleRate float64
	fft        *fourier.FFT
	bands      []band
	workspace  workspace
}

// NewTransform creates a transform for windows of size samples recorded at
// sampleRate. size must be a power of 2.
func NewTransform(size int, sampleRate float64) (*Transform, error) {
	if !bitint.IsPowerOfTwo(size) || size < 2 {
		return nil, errs.Config("fft_size", size, "must be a power of 2 >= 2")
	}
	if !(sampleRate > 0) {
		return nil, errs.Config("sample_rate", sampleRate, "must be positive")
	}

	return &Transform{
		size:       size,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(size),
		workspace: workspace{
			coeffs:    make([]complex128, size/2+1),
			magnitude: make([]float64, size/2),
		},
	}, nil
}

// Size returns the number of samples per window.
func (t *Transform) Size() int { return t.size }

// SampleRate returns the sample rate the transform was built for.
func (t *Transform) SampleRate() float64 { return t.sampleRate }

// BinWidth returns the frequency distance between two linear bins in Hz.
func (t *Transform) BinWidth() float64 {
	return t.sampleRate / float64(t.size)
}

// BinFrequency returns the centre frequency in Hz of linear bin i.
func (t *Transform) BinFrequency(i int) float64 {
	return float64(i) * t.BinWidth()
}

// Forward transforms a windowed block of exactly Size() samples and returns
// its magnitude spectrum of Size()/2 bins. When banding is configured the
// band averages are refreshed as well. The returned slice is owned by the
// transform and overwritten by the next call.
func (t *Transform) Forward(windowed []float64) []float64 {
	if len(windowed) != t.size {
		errs.Precondition(false, "fft.Forward", "got %d samples, want %d", len(windowed), t.size)
	}

	t.fft.Coefficients(t.workspace.coeffs, windowed)
	for i := range t.workspace.magnitude {
		t.workspace.magnitude[i] = cmplx.Abs(t.workspace.coeffs[i])
	}
	t.average()

	return t.workspace.magnitude
}

// average refreshes the band averages from the current magnitude spectrum.
func (t *Transform) average() {
	for k, b := range t.bands {
		if b.hi <= b.lo {
			t.workspace.averages[k] = 0
			continue
		}
		var sum float64
		for _, m := range t.workspace.magnitude[b.lo:b.hi] {
			sum += m
		}
		t.workspace.averages[k] = sum / float64(b.hi-b.lo)
	}
}

// Spectrum returns the magnitude spectrum of the last Forward call.
func (t *Transform) Spectrum() []float64 {
	return t.workspace.magnitude
}

// LogAverages partitions the spectrum into bands that start at minFrequency
// and grow by a factor of 2^(1/bandsPerOctave) each, up to the Nyquist
// frequency. Band k covers [min*2^(k/bpo), min*2^((k+1)/bpo)).
func (t *Transform) LogAverages(minFrequency float64, bandsPerOctave int) error {
	nyquist := t.sampleRate / 2
	if bandsPerOctave <= 0 {
		return errs.Config("bands_per_octave", bandsPerOctave, "must be positive")
	}
	if !(minFrequency > 0) || minFrequency >= nyquist {
		return errs.Config("min_frequency", minFrequency, "must be within (0, %.1f) Hz", nyquist)
	}

	count := int(math.Floor(float64(bandsPerOctave) * math.Log2(nyquist/minFrequency)))
	if count < 1 {
		count = 1
	}

	bins := len(t.workspace.magnitude)
	width := t.BinWidth()
	bands := make([]band, count)
	for k := range bands {
		low := minFrequency * math.Pow(2, float64(k)/float64(bandsPerOctave))
		high := minFrequency * math.Pow(2, float64(k+1)/float64(bandsPerOctave))
		bands[k] = band{
			lowHz:  low,
			highHz: high,
			lo:     min(bins, int(math.Ceil(low/width))),
			hi:     min(bins, int(math.Ceil(high/width))),
		}
	}

	t.bands = bands
	t.workspace.averages = make([]float64, count)
	return nil
}

// AverageSize returns the number of bands, 0 before LogAverages.
func (t *Transform) AverageSize() int {
	return len(t.bands)
}

// Averages returns the band averages of the last Forward call. The slice is
// owned by the transform.
func (t *Transform) Averages() []float64 {
	return t.workspace.averages
}

// BandRange returns the [low, high) frequency range of band k in Hz.
func (t *Transform) BandRange(k int) (low, high float64) {
	if k < 0 || k >= len(t.bands) {
		return 0, 0
	}
	return t.bands[k].lowHz, t.bands[k].highHz
}

// BandBins returns the half-open range of linear bins averaged into band k.
func (t *Transform) BandBins(k int) (lo, hi int) {
	if k < 0 || k >= len(t.bands) {
		return 0, 0
	}
	return t.bands[k].lo, t.bands[k].hi
}
