// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"spectrum/internal/analysis"
	"spectrum/internal/errs"
	"spectrum/internal/fft"
	"spectrum/internal/log"
)

// Boundaries and defaults for the capture and analysis settings.
const (
	MinDeviceID     = -1     // -1 represents the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer.

	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultInputChannels   = 2
	DefaultGateThreshold   = 0.001
)

// Config represents the main application configuration, loaded from YAML.
type Config struct {
	LogLevel  string           `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig      `yaml:"audio"`
	Analysis  AnalysisSettings `yaml:"analysis"`
	Playback  PlaybackConfig   `yaml:"playback"`
	Recording RecordingConfig  `yaml:"recording"`
	Transport TransportConfig  `yaml:"transport"`
	UI        UIConfig         `yaml:"ui"`
}

// AudioConfig holds settings for live capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback; the analyser's block size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	InputChannels   int     `yaml:"input_channels"`    // 1 (mono, duplicated to both channels) or 2.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Silence blocks below GateThreshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Peak level 0.0-1.0.
}

// AnalysisSettings mirrors analysis.Config in file form.
type AnalysisSettings struct {
	Frequency          float64 `yaml:"analysis_frequency"`  // Analyses per second.
	MinFrequency       float64 `yaml:"min_frequency"`       // Lower edge of the first band (Hz).
	ReferenceFrequency float64 `yaml:"reference_frequency"` // Sizes the window (Hz).
	BandsPerOctave     int     `yaml:"bands_per_octave"`
	HistorySize        int     `yaml:"history_size"`
	Window             string  `yaml:"fft_window"` // e.g. "hann", "blackman".
	Shaper             string  `yaml:"shaper"`     // "linear" or "log".
}

// PlaybackConfig holds settings for analysing WAV files.
type PlaybackConfig struct {
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
	Monitor         bool `yaml:"monitor"` // Play the file through the default output.
	Loop            bool `yaml:"loop"`
}

// RecordingConfig holds settings related to audio recording.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	BitDepth    int    `yaml:"bit_depth"`            // 16 or 24.
	MaxDuration int    `yaml:"max_duration_seconds"` // 0 for unlimited.
}

// TransportConfig holds settings for publishing spectra.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"` // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	LogFrames        bool          `yaml:"log_frames"` // Log every published frame at debug level.
	Onsets           bool          `yaml:"onsets"`     // Publish onset events.
}

// UIConfig holds settings for the terminal view.
type UIConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Height          int           `yaml:"height"` // Rows of the spectrum bars.
}

// Default returns the built-in configuration.
func Default() *Config {
	defaults := analysis.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			GateEnabled:     false,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisSettings{
			Frequency:          defaults.AnalysisFrequency,
			MinFrequency:       defaults.MinFrequency,
			ReferenceFrequency: defaults.ReferenceFrequency,
			BandsPerOctave:     defaults.BandsPerOctave,
			HistorySize:        defaults.HistorySize,
			Window:             "hann",
			Shaper:             "linear",
		},
		Playback: PlaybackConfig{
			FramesPerBuffer: 1024,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			WebSocketAddress: ":8080",
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
		},
		UI: UIConfig{
			RefreshInterval: 33 * time.Millisecond,
			Height:          16,
		},
	}
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errs.Config("log_level", c.LogLevel, "unknown level")
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return errs.Config("audio.sample_rate", a.SampleRate, "must be within %d-%d Hz", MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return errs.Config("audio.frames_per_buffer", a.FramesPerBuffer, "must be within 1-%d", MaxBufferFrames)
	}
	if a.InputDevice < MinDeviceID {
		return errs.Config("audio.input_device", a.InputDevice, "must be %d (default) or a device index", MinDeviceID)
	}
	if a.InputChannels != 1 && a.InputChannels != 2 {
		return errs.Config("audio.input_channels", a.InputChannels, "must be 1 or 2")
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return errs.Config("audio.gate_threshold", a.GateThreshold, "must be within 0.0-1.0")
	}

	if _, err := c.AnalysisConfig(); err != nil {
		return err
	}

	if p := c.Playback.FramesPerBuffer; p <= 0 || p > MaxBufferFrames {
		return errs.Config("playback.frames_per_buffer", p, "must be within 1-%d", MaxBufferFrames)
	}

	if c.Recording.Enabled {
		if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
			return errs.Config("recording.bit_depth", c.Recording.BitDepth, "must be 16 or 24")
		}
		if c.Recording.MaxDuration < 0 {
			return errs.Config("recording.max_duration_seconds", c.Recording.MaxDuration, "must not be negative")
		}
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return errs.Config("transport.websocket_address", t.WebSocketAddress, "must be set when websocket is enabled")
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return errs.Config("transport.udp_target_address", t.UDPTargetAddress, "must be set when UDP is enabled")
		}
		if t.UDPSendInterval <= 0 {
			return errs.Config("transport.udp_send_interval", t.UDPSendInterval, "must be positive when UDP is enabled")
		}
	}

	if c.UI.RefreshInterval <= 0 {
		return errs.Config("ui.refresh_interval", c.UI.RefreshInterval, "must be positive")
	}
	return nil
}

// AnalysisConfig converts the analysis section into an analysis.Config.
func (c *Config) AnalysisConfig() (analysis.Config, error) {
	s := c.Analysis
	window, err := fft.ParseWindowFunc(s.Window)
	if err != nil {
		return analysis.Config{}, errs.Config("analysis.fft_window", s.Window, "%v", err)
	}
	shaper, err := analysis.ParseShaper(s.Shaper)
	if err != nil {
		return analysis.Config{}, errs.Config("analysis.shaper", s.Shaper, "%v", err)
	}

	cfg := analysis.Config{
		AnalysisFrequency:  s.Frequency,
		MinFrequency:       s.MinFrequency,
		ReferenceFrequency: s.ReferenceFrequency,
		BandsPerOctave:     s.BandsPerOctave,
		HistorySize:        s.HistorySize,
		Window:             window,
		Shaper:             shaper,
	}
	if err := cfg.Validate(); err != nil {
		return analysis.Config{}, err
	}
	return cfg, nil
}
