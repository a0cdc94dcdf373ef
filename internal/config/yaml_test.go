// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrum/internal/analysis"
	"spectrum/internal/errs"
	"spectrum/internal/fft"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempFile(t, "config.yaml", ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempFile(t, "config.yaml", `
log_level: debug
audio:
  sample_rate: 48000
  frames_per_buffer: 256
analysis:
  analysis_frequency: 60
  bands_per_octave: 6
  fft_window: blackman
  shaper: log
transport:
  udp_enabled: true
  udp_send_interval: 50ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 48000.0, cfg.Audio.SampleRate)
	assert.Equal(t, 256, cfg.Audio.FramesPerBuffer)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultInputChannels, cfg.Audio.InputChannels)
	assert.Equal(t, 64, cfg.Analysis.HistorySize)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.UDPSendInterval)

	ac, err := cfg.AnalysisConfig()
	require.NoError(t, err)
	assert.Equal(t, 60.0, ac.AnalysisFrequency)
	assert.Equal(t, 6, ac.BandsPerOctave)
	assert.Equal(t, fft.Blackman, ac.Window)
	assert.Equal(t, "log", ac.Shaper.Name())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		param string
	}{
		{"sample rate", "audio:\n  sample_rate: 100\n", "audio.sample_rate"},
		{"channels", "audio:\n  input_channels: 6\n", "audio.input_channels"},
		{"bands", "analysis:\n  bands_per_octave: 0\n", "bands_per_octave"},
		{"history", "analysis:\n  history_size: -1\n", "history_size"},
		{"window", "analysis:\n  fft_window: kaiser\n", "analysis.fft_window"},
		{"shaper", "analysis:\n  shaper: cubic\n", "analysis.shaper"},
		{"log level", "log_level: loud\n", "log_level"},
		{"udp interval", "transport:\n  udp_enabled: true\n  udp_send_interval: 0s\n", "transport.udp_send_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempFile(t, "config.yaml", tt.yaml))
			require.ErrorIs(t, err, errs.ErrConfiguration)

			var cfgErr *errs.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.param, cfgErr.Param)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPECTRUM_SAMPLE_RATE", "96000")
	t.Setenv("SPECTRUM_UDP_ENABLED", "true")
	t.Setenv("SPECTRUM_UDP_SEND_INTERVAL", "10ms")
	t.Setenv("SPECTRUM_SHAPER", "log")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 96000.0, cfg.Audio.SampleRate)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, 10*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.Equal(t, "log", cfg.Analysis.Shaper)
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("SPECTRUM_BANDS_PER_OCTAVE", "twelve")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPECTRUM_BANDS_PER_OCTAVE")
}

func TestLoadEnvFile(t *testing.T) {
	path := writeTempFile(t, ".env", "SPECTRUM_TEST_ONLY_VALUE=from-file\n")
	t.Setenv("SPECTRUM_TEST_ONLY_VALUE", "")
	os.Unsetenv("SPECTRUM_TEST_ONLY_VALUE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SPECTRUM_TEST_ONLY_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestDefaultAnalysisConfigMatchesAnalyser(t *testing.T) {
	ac, err := Default().AnalysisConfig()
	require.NoError(t, err)

	want := analysis.DefaultConfig()
	assert.Equal(t, want.AnalysisFrequency, ac.AnalysisFrequency)
	assert.Equal(t, want.MinFrequency, ac.MinFrequency)
	assert.Equal(t, want.BandsPerOctave, ac.BandsPerOctave)
	assert.Equal(t, want.HistorySize, ac.HistorySize)
	assert.Equal(t, want.Window, ac.Window)
}
