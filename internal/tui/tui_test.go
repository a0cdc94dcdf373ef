// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrum/internal/analysis"
	"spectrum/internal/audio"
	"spectrum/pkg/utils"
)

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 1, Name: "Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	}, nil
}

func update(t *testing.T, m tea.Model, msgs ...tea.Msg) tea.Model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestDeviceListSelection(t *testing.T) {
	m := NewDeviceListModel(testDevices)
	msg := m.Init()()

	var model tea.Model = m
	model = update(t, model, tea.WindowSizeMsg{Width: 100, Height: 40}, msg)
	assert.Contains(t, model.View(), "Microphone")
	assert.Contains(t, model.View(), "Audio Device List")

	// Output-only devices cannot be configured.
	model = update(t, model, keyPress("enter"))
	assert.Equal(t, ListScreen, model.(DeviceListModel).activeScreen)

	model = update(t, model, keyPress("down"), keyPress("enter"))
	require.Equal(t, ConfigScreen, model.(DeviceListModel).activeScreen)
	assert.Contains(t, model.View(), "Configure Device: Microphone")

	model, cmd := model.Update(keyPress("enter"))
	require.NotNil(t, cmd)
	sel, ok := model.(DeviceListModel).Selection()
	require.True(t, ok)
	assert.Equal(t, Selection{DeviceID: 1, SampleRate: 48000}, sel)
}

func TestDeviceListBackAndQuit(t *testing.T) {
	var model tea.Model = NewDeviceListModel(testDevices)
	model = update(t, model, tea.WindowSizeMsg{Width: 80, Height: 30}, devicesMsg{devices: mustDevices(t)})
	model = update(t, model, keyPress("down"), keyPress("enter"), keyPress("esc"))
	assert.Equal(t, ListScreen, model.(DeviceListModel).activeScreen)

	_, cmd := model.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	_, ok := model.(DeviceListModel).Selection()
	assert.False(t, ok)
}

func mustDevices(t *testing.T) []audio.Device {
	d, err := testDevices()
	require.NoError(t, err)
	return d
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	model := update(t, m, m.Init()())
	assert.Contains(t, model.View(), "no host")
}

func TestClosestRate(t *testing.T) {
	assert.Equal(t, 0, closestRate(44100))
	assert.Equal(t, 1, closestRate(47999))
	assert.Equal(t, 3, closestRate(192000))
}

// toneSource feeds a fixed tone to whatever analyser attaches.
type toneSource struct {
	listener analysis.SampleListener
}

func (s *toneSource) SampleRate() float64 { return 44100 }
func (s *toneSource) BufferSize() int { return 1024 }
func (s *toneSource) AddListener(l analysis.SampleListener) { s.listener = l }
func (s *toneSource) RemoveListener(analysis.SampleListener) { s.listener = nil }

func analysedTone(t *testing.T) *analysis.Analyser {
	t.Helper()
	a, err := analysis.NewAnalyser(analysis.DefaultConfig())
	require.NoError(t, err)
	src := &toneSource{}
	require.NoError(t, a.Attach(src))
	tone := utils.GenerateSineWave(8192, 44100, 1000)
	for i := 0; i < len(tone); i += 1024 {
		src.listener.Samples(tone[i:i+1024], tone[i:i+1024])
	}
	return a
}

type fakeControls struct {
	playing  bool
	position time.Duration
}

func (c *fakeControls) TogglePause() { c.playing = !c.playing }
func (c *fakeControls) Seek(p time.Duration) { c.position = max(0, p) }
func (c *fakeControls) Position() time.Duration { return c.position }
func (c *fakeControls) Length() time.Duration { return time.Minute }
func (c *fakeControls) IsPlaying() bool { return c.playing }

func TestSpectrumModelView(t *testing.T) {
	a := analysedTone(t)
	m := NewSpectrumModel(a, nil, "live", 30*time.Millisecond, 8)
	require.NotNil(t, m.Init())

	var model tea.Model = m
	assert.Contains(t, model.View(), "waiting for audio")

	model, cmd := model.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd, "tick reschedules itself")

	view := model.View()
	assert.Contains(t, view, "live")
	assert.Contains(t, view, "103 bands")
	assert.Contains(t, view, "window 2048")
	assert.Contains(t, view, "█")
	assert.NotContains(t, view, "play/pause", "live input has no playback keys")
}

func TestSpectrumModelShaperToggle(t *testing.T) {
	a := analysedTone(t)
	var model tea.Model = NewSpectrumModel(a, nil, "live", 30*time.Millisecond, 8)

	model = update(t, model, keyPress("s"))
	assert.Equal(t, "log", a.Shaper().Name())
	assert.Equal(t, displayFloorDB, model.(SpectrumModel).bars.floor)

	update(t, model, keyPress("s"))
	assert.Equal(t, "linear", a.Shaper().Name())
}

func TestSpectrumModelControls(t *testing.T) {
	a := analysedTone(t)
	c := &fakeControls{}
	var model tea.Model = NewSpectrumModel(a, c, "tone.wav", 30*time.Millisecond, 8)

	model = update(t, model, keyPress("p"))
	assert.True(t, c.playing)
	model = update(t, model, keyPress("right"), keyPress("right"))
	assert.Equal(t, 10*time.Second, c.position)
	model = update(t, model, keyPress("h"))
	assert.Equal(t, 5*time.Second, c.position)

	view := model.View()
	assert.Contains(t, view, "0:05 / 1:00")
	assert.Contains(t, view, "play/pause")

	_, cmd := model.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBars(t *testing.T) {
	var b Bars
	bands := []float64{0, 1, 0, 4}

	b.Update(bands, 2)
	require.Len(t, b.Levels(), 2)
	assert.InDelta(t, 0.15, b.Levels()[0], 1e-9) // 0.25 after a 0.6 attack.
	assert.InDelta(t, 0.6, b.Levels()[1], 1e-9)

	out := b.Render(4, 3)
	rows := strings.Split(out, "\n")
	require.Len(t, rows, 4)
	assert.Contains(t, rows[3], "███")

	b.Update(make([]float64, 4), 2)
	assert.Less(t, b.Levels()[1], 0.6, "levels decay on silence")

	b.SetFloor(-90)
	assert.Zero(t, b.Levels()[1])
	assert.Empty(t, (&Bars{}).Render(4, 1))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", clock(0))
	assert.Equal(t, "1:05", clock(65*time.Second))
	assert.Equal(t, "2:00", clock(119600*time.Millisecond))
}
