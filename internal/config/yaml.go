// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"spectrum/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPECTRUM_"

// DefaultEnvFile is read, when present, before overrides are applied.
const DefaultEnvFile = ".env"

// LoadConfig loads configuration from the YAML file at path. If path is
// empty it looks for "config.yaml" in the working directory and falls back
// to built-in defaults. Variables from a .env file and SPECTRUM_* environment
// overrides are applied afterwards, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile adds the variables of a dotenv file to the process
// environment without overwriting existing ones. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

type override struct {
	name  string
	apply func(cfg *Config, val string) error
}

func stringVar(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		set(cfg, val)
		return nil
	}
}

func boolVar(set func(*Config, bool)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}
}

func intVar(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		set(cfg, n)
		return nil
	}
}

func floatVar(set func(*Config, float64)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		set(cfg, f)
		return nil
	}
}

func durationVar(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

var overrides = []override{
	{"LOG_LEVEL", stringVar(func(c *Config, v string) { c.LogLevel = v })},
	{"INPUT_DEVICE", intVar(func(c *Config, v int) { c.Audio.InputDevice = v })},
	{"SAMPLE_RATE", floatVar(func(c *Config, v float64) { c.Audio.SampleRate = v })},
	{"FRAMES_PER_BUFFER", intVar(func(c *Config, v int) { c.Audio.FramesPerBuffer = v })},
	{"GATE_ENABLED", boolVar(func(c *Config, v bool) { c.Audio.GateEnabled = v })},
	{"GATE_THRESHOLD", floatVar(func(c *Config, v float64) { c.Audio.GateThreshold = v })},
	{"ANALYSIS_FREQUENCY", floatVar(func(c *Config, v float64) { c.Analysis.Frequency = v })},
	{"MIN_FREQUENCY", floatVar(func(c *Config, v float64) { c.Analysis.MinFrequency = v })},
	{"BANDS_PER_OCTAVE", intVar(func(c *Config, v int) { c.Analysis.BandsPerOctave = v })},
	{"HISTORY_SIZE", intVar(func(c *Config, v int) { c.Analysis.HistorySize = v })},
	{"FFT_WINDOW", stringVar(func(c *Config, v string) { c.Analysis.Window = v })},
	{"SHAPER", stringVar(func(c *Config, v string) { c.Analysis.Shaper = v })},
	{"WS_ENABLED", boolVar(func(c *Config, v bool) { c.Transport.WebSocketEnabled = v })},
	{"WS_ADDRESS", stringVar(func(c *Config, v string) { c.Transport.WebSocketAddress = v })},
	{"UDP_ENABLED", boolVar(func(c *Config, v bool) { c.Transport.UDPEnabled = v })},
	{"UDP_TARGET_ADDRESS", stringVar(func(c *Config, v string) { c.Transport.UDPTargetAddress = v })},
	{"UDP_SEND_INTERVAL", durationVar(func(c *Config, v time.Duration) { c.Transport.UDPSendInterval = v })},
}

// applyEnvOverrides applies every SPECTRUM_* variable that is set. A value
// that does not parse is an error rather than being silently ignored.
func (cfg *Config) applyEnvOverrides() error {
	for _, o := range overrides {
		key := EnvPrefix + o.name
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := o.apply(cfg, val); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, val, err)
		}
		log.Debugf("configuration: %s overridden from environment", key)
	}
	return nil
}
