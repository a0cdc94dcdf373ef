// SPDX-License-Identifier: MIT
package fft

import (
	"math"
	"testing"
)

func TestHannCoefficients(t *testing.T) {
	const n = 64
	coeffs := NewWindow(Hann).Coefficients(n)

	if len(coeffs) != n {
		t.Fatalf("len(coeffs) = %d, want %d", len(coeffs), n)
	}
	for i, c := range coeffs {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		if math.Abs(c-want) > 1e-12 {
			t.Fatalf("coeffs[%d] = %v, want %v", i, c, want)
		}
	}
}

func TestWindowCachesByLength(t *testing.T) {
	w := NewWindow(Blackman)

	first := w.Coefficients(256)
	again := w.Coefficients(256)
	if &first[0] != &again[0] {
		t.Errorf("coefficients recomputed for an unchanged length")
	}

	resized := w.Coefficients(512)
	if len(resized) != 512 {
		t.Errorf("len(resized) = %d, want 512", len(resized))
	}
}

func TestWindowApply(t *testing.T) {
	w := NewWindow(Hann)
	buf := make([]float64, 128)
	for i := range buf {
		buf[i] = 2
	}

	w.Apply(buf)
	coeffs := w.Coefficients(128)
	for i := range buf {
		if buf[i] != 2*coeffs[i] {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], 2*coeffs[i])
		}
	}

	allocs := testing.AllocsPerRun(100, func() {
		w.Apply(buf)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Apply, got %.1f", allocs)
	}
}

func TestRectangularIsIdentity(t *testing.T) {
	for i, c := range NewWindow(Rectangular).Coefficients(32) {
		if c != 1 {
			t.Fatalf("coeffs[%d] = %v, want 1", i, c)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.name)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("ParseWindowFunc(%q) = (%v, %v), want (%v, err=%v)", tt.name, got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestWindowFuncString(t *testing.T) {
	for w := Hann; w <= Rectangular; w++ {
		parsed, err := ParseWindowFunc(w.String())
		if err != nil || parsed != w {
			t.Errorf("round trip of %v gave (%v, %v)", w, parsed, err)
		}
	}
	if s := WindowFunc(99).String(); s != "WindowFunc(99)" {
		t.Errorf("String() of unknown = %q", s)
	}
}
