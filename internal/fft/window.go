// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = [...]string{
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// fill writes the window coefficients of kind into coeffs.
func fill(coeffs []float64, kind WindowFunc) {
	// gonum multiplies in place, so start from a unit sequence.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch kind {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// Window hands out the coefficients of one window function. Coefficients
// are computed once per length and reused until a different length is
// requested.
type Window struct {
	kind WindowFunc

	mu     sync.Mutex
	coeffs []float64
}

// NewWindow returns a Window for kind.
func NewWindow(kind WindowFunc) *Window {
	return &Window{kind: kind}
}

// Kind returns the window function.
func (w *Window) Kind() WindowFunc {
	return w.kind
}

// Coefficients returns the n coefficients of the window. The returned slice
// is shared and must not be modified.
func (w *Window) Coefficients(n int) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.coefficientsLocked(n)
}

func (w *Window) coefficientsLocked(n int) []float64 {
	if len(w.coeffs) != n {
		w.coeffs = make([]float64, n)
		fill(w.coeffs, w.kind)
	}
	return w.coeffs
}

// Apply multiplies buf by the window coefficients in place.
func (w *Window) Apply(buf []float64) {
	w.mu.Lock()
	coeffs := w.coefficientsLocked(len(buf))
	for i, c := range coeffs {
		buf[i] *= c
	}
	w.mu.Unlock()
}
