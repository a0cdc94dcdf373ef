// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectrum/internal/analysis"
)

// Controls is implemented by sources the user can steer, such as
// audio.Player.
type Controls interface {
	TogglePause()
	Seek(position time.Duration)
	Position() time.Duration
	Length() time.Duration
	IsPlaying() bool
}

// seekStep is how far the arrow keys move playback.
const seekStep = 5 * time.Second

// displayFloorDB is the level drawn as an empty column with the log shaper.
const displayFloorDB = -90.0

type keyMap struct {
	Quit   key.Binding
	Shaper key.Binding
	Pause  key.Binding
	Back   key.Binding
	Ahead  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Back, k.Ahead, k.Shaper, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newKeyMap(controls bool) keyMap {
	k := keyMap{
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Shaper: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "linear/log")),
		Pause:  key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Back:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
		Ahead:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
	}
	if !controls {
		k.Pause.SetEnabled(false)
		k.Back.SetEnabled(false)
		k.Ahead.SetEnabled(false)
	}
	return k
}

type tickMsg time.Time

// SpectrumModel renders the newest snapshot of an analyser as bars,
// refreshed on its own clock.
type SpectrumModel struct {
	analyser *analysis.Analyser
	controls Controls
	title    string
	refresh  time.Duration
	height   int
	width    int

	keys     keyMap
	help     help.Model
	progress progress.Model
	bars     Bars
	info     analysis.SpectrumInfo
	hasData  bool
}

// NewSpectrumModel creates a model for a, drawing graphs height rows tall
// every refresh. controls may be nil for live input.
func NewSpectrumModel(a *analysis.Analyser, controls Controls, title string, refresh time.Duration, height int) SpectrumModel {
	m := SpectrumModel{
		analyser: a,
		controls: controls,
		title:    title,
		refresh:  refresh,
		height:   height,
		width:    80,
		keys:     newKeyMap(controls != nil),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.bars.SetFloor(floorFor(a.Shaper()))
	return m
}

func floorFor(s analysis.Shaper) float64 {
	if _, ok := s.(analysis.Logarithmic); ok {
		return displayFloorDB
	}
	return 0
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh clock.
func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = max(10, msg.Width-24)

	case tickMsg:
		m.hasData = m.analyser.SpectrumInfoInto(0, &m.info)
		if m.hasData {
			m.bars.Update(m.info.Bands, m.width)
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Shaper):
			next := analysis.Shaper(analysis.Logarithmic{FloorDB: analysis.DefaultFloorDB})
			if _, ok := m.analyser.Shaper().(analysis.Logarithmic); ok {
				next = analysis.Linear{}
			}
			m.analyser.SetShaper(next)
			m.bars.SetFloor(floorFor(next))
		case key.Matches(msg, m.keys.Pause):
			m.controls.TogglePause()
		case key.Matches(msg, m.keys.Back):
			m.controls.Seek(m.controls.Position() - seekStep)
		case key.Matches(msg, m.keys.Ahead):
			m.controls.Seek(m.controls.Position() + seekStep)
		}
	}
	return m, nil
}

// View renders the title, the graph, the playback line and the key help.
func (m SpectrumModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("  ")
	sb.WriteString(infoStyle.Render(m.status()))
	sb.WriteString("\n\n")

	if columns := len(m.bars.Levels()); m.hasData && columns > 0 {
		sb.WriteString(m.bars.Render(m.height, max(1, m.width/columns)))
	} else {
		sb.WriteString(dimStyle.Render("waiting for audio..."))
		sb.WriteString(strings.Repeat("\n", max(0, m.height-1)))
	}
	sb.WriteString("\n\n")

	if m.controls != nil {
		sb.WriteString(m.playback())
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m SpectrumModel) status() string {
	bands := m.analyser.SpectrumBandCount()
	if layout, ok := m.analyser.Layout(); ok {
		return fmt.Sprintf("%d bands • %.0f Hz • window %d • %s",
			bands, layout.SampleRate, layout.WindowSize, m.analyser.Shaper().Name())
	}
	return "detached • " + m.analyser.Shaper().Name()
}

func (m SpectrumModel) playback() string {
	state := "▶"
	if !m.controls.IsPlaying() {
		state = "⏸"
	}
	var relative float64
	if length := m.controls.Length(); length > 0 {
		relative = float64(m.controls.Position()) / float64(length)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		state+" ",
		m.progress.ViewAs(relative),
		fmt.Sprintf(" %s / %s", clock(m.controls.Position()), clock(m.controls.Length())),
	)
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// RunSpectrum runs the spectrum view until the user quits or done closes.
func RunSpectrum(m SpectrumModel, done <-chan struct{}) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-done:
			p.Quit()
		case <-exited:
		}
	}()
	_, err := p.Run()
	return err
}
