// SPDX-License-Identifier: MIT
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Unicode block elements for partial cell heights, empty first.
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

var (
	specLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	specMidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	specHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
)

// Bars turns snapshots into normalised, smoothed column levels.
type Bars struct {
	levels []float64 // 0-1 per column, smoothed.
	peak   float64
	floor  float64
}

// peakDecay is applied to the running peak every frame so the scale
// recovers after loud passages.
const peakDecay = 0.995

// SetFloor sets the value rendered as an empty column: 0 for linear
// magnitudes, the dB floor for logarithmic ones. It resets the scale.
func (b *Bars) SetFloor(floor float64) {
	b.floor = floor
	b.peak = 0
	clear(b.levels)
}

// Levels returns the current column levels.
func (b *Bars) Levels() []float64 {
	return b.levels
}

// Update regroups bands into columns (the loudest band of each group wins)
// and smooths them: fast attack, slow decay.
func (b *Bars) Update(bands []float64, columns int) {
	if columns <= 0 || len(bands) == 0 {
		return
	}
	columns = min(columns, len(bands))
	if len(b.levels) != columns {
		b.levels = make([]float64, columns)
	}

	b.peak *= peakDecay
	for _, v := range bands {
		if v-b.floor > b.peak {
			b.peak = v - b.floor
		}
	}
	if b.peak <= 0 {
		clear(b.levels)
		return
	}

	for c := range b.levels {
		lo := c * len(bands) / columns
		hi := (c + 1) * len(bands) / columns
		loudest := b.floor
		for _, v := range bands[lo:hi] {
			loudest = max(loudest, v)
		}
		level := max(0, min(1, (loudest-b.floor)/b.peak))

		if prev := b.levels[c]; level > prev {
			b.levels[c] = level*0.6 + prev*0.4
		} else {
			b.levels[c] = level*0.25 + prev*0.75
		}
	}
}

// Render draws the columns height rows tall, each width cells wide.
func (b *Bars) Render(height, width int) string {
	if height <= 0 || len(b.levels) == 0 {
		return ""
	}
	width = max(width, 1)
	steps := len(barBlocks) - 1

	rows := make([]string, height)
	var sb strings.Builder
	for r := 0; r < height; r++ {
		sb.Reset()
		// Row 0 is the top of the graph.
		base := (height - 1 - r) * steps
		style := rowStyle(r, height)
		for _, level := range b.levels {
			fill := int(level*float64(height*steps)+0.5) - base
			fill = max(0, min(fill, steps))
			sb.WriteString(strings.Repeat(barBlocks[fill], width))
		}
		rows[r] = style.Render(sb.String())
	}
	return strings.Join(rows, "\n")
}

func rowStyle(row, height int) lipgloss.Style {
	switch level := 1 - float64(row)/float64(height); {
	case level > 0.75:
		return specHighStyle
	case level > 0.45:
		return specMidStyle
	default:
		return specLowStyle
	}
}
