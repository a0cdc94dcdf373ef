// SPDX-License-Identifier: MIT
package analysis

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStartsUndefined(t *testing.T) {
	h := NewHistory(4)
	for idx := -1; idx <= 4; idx++ {
		_, ok := h.Read(idx)
		assert.False(t, ok, "Read(%d) on empty history", idx)
	}
}

func TestHistoryMostRecentFirst(t *testing.T) {
	h := NewHistory(4)
	for i := 1; i <= 3; i++ {
		h.Write([]float64{float64(i)}, nil, time.Duration(i)*time.Second, 0, true)
	}

	for idx, want := range []float64{3, 2, 1} {
		info, ok := h.Read(idx)
		require.True(t, ok, "Read(%d)", idx)
		assert.Equal(t, []float64{want}, info.Bands)
		assert.Equal(t, time.Duration(want)*time.Second, info.Position)
		assert.True(t, info.Defined())
	}
	_, ok := h.Read(3)
	assert.False(t, ok, "slot never written")
}

func TestHistoryWraps(t *testing.T) {
	const size, extra = 4, 3
	h := NewHistory(size)
	for i := 0; i < size+extra; i++ {
		h.Write([]float64{float64(i)}, nil, 0, 0, false)
	}

	// Only the newest size writes survive.
	for idx := 0; idx < size; idx++ {
		info, ok := h.Read(idx)
		require.True(t, ok)
		assert.Equal(t, float64(size+extra-1-idx), info.Bands[0], "Read(%d)", idx)
	}
	_, ok := h.Read(size)
	assert.False(t, ok)
}

func TestHistoryWriteCopiesInput(t *testing.T) {
	h := NewHistory(2)
	bands := []float64{1, 2}
	h.Write(bands, nil, 0, 0, false)
	bands[0] = 99

	info, _ := h.Read(0)
	assert.Equal(t, 1.0, info.Bands[0])

	info.Bands[1] = 99
	again, _ := h.Read(0)
	assert.Equal(t, 2.0, again.Bands[1], "Read returned shared storage")
}

func TestHistoryKeepsMagnitudesApart(t *testing.T) {
	h := NewHistory(2)
	h.Write([]float64{-120, 0}, []float64{0, 1}, 0, 0, false)

	info, ok := h.Read(0)
	require.True(t, ok)
	assert.Equal(t, []float64{-120, 0}, info.Bands)
	assert.Equal(t, []float64{0, 1}, info.Magnitudes)

	info.Magnitudes[1] = 99
	again, _ := h.Read(0)
	assert.Equal(t, 1.0, again.Magnitudes[1], "Read returned shared storage")
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(3)
	h.Write([]float64{1}, nil, 0, 0, false)
	h.Write([]float64{2}, nil, 0, 0, false)
	h.Reset()

	_, ok := h.Read(0)
	assert.False(t, ok)

	h.Write([]float64{3}, nil, 0, 0, false)
	info, ok := h.Read(0)
	require.True(t, ok)
	assert.Equal(t, 3.0, info.Bands[0])
	_, ok = h.Read(1)
	assert.False(t, ok, "reset slot came back")
}

func TestHistoryReadIntoDoesNotAllocate(t *testing.T) {
	h := NewHistory(8)
	bands := make([]float64, 100)
	for i := 0; i < 8; i++ {
		h.Write(bands, bands, 0, 0, false)
	}

	var dst SpectrumInfo
	h.ReadInto(0, &dst)
	allocs := testing.AllocsPerRun(100, func() {
		h.Write(bands, bands, 0, 0, false)
		h.ReadInto(3, &dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
}

func TestHistoryConcurrentReaders(t *testing.T) {
	const bands = 16
	h := NewHistory(8)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var info SpectrumInfo
			for {
				select {
				case <-done:
					return
				default:
				}
				if h.ReadInto(0, &info) {
					// Every band of a snapshot carries the same value.
					for _, v := range info.Bands {
						if v != info.Bands[0] {
							t.Errorf("torn snapshot: %v", info.Bands)
							return
						}
					}
				}
			}
		}()
	}

	values := make([]float64, bands)
	for i := 0; i < 2000; i++ {
		for j := range values {
			values[j] = float64(i)
		}
		h.Write(values, nil, 0, 0, false)
	}
	close(done)
	wg.Wait()
}
