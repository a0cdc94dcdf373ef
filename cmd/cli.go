// SPDX-License-Identifier: MIT
// Package cmd implements the spectrum command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spectrum/internal/audio"
	"spectrum/internal/config"
	"spectrum/internal/log"
	"spectrum/internal/tui"
	"spectrum/pkg/build"
)

// monitorLatency bounds the audio buffered for the output device.
const monitorLatency = 200 * time.Millisecond

// options holds flag values. Flags only override the configuration file when
// set explicitly.
type options struct {
	configPath string
	logLevel   string
	headless   bool

	// Analysis.
	shaper         string
	window         string
	bandsPerOctave int
	historySize    int

	// Publishing.
	websocket string
	udpTarget string
	logFrames bool
	onsets    bool

	// Capture.
	device          int
	sampleRate      float64
	framesPerBuffer int
	channels        int
	lowLatency      bool
	gate            float64
	record          bool
	output          string

	// Playback.
	loop    bool
	monitor bool
}

// Execute runs the command line with os.Args.
func Execute() error {
	return newRootCommand(&options{}).Execute()
}

func newRootCommand(opts *options) *cobra.Command {
	info := build.Get()
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Real-time logarithmic spectrum analyser",
		Long:          "Analyses live input (default) or WAV files into logarithmic spectra,\nshown in the terminal and published over WebSocket and UDP.",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, opts)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd.Context(), cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "f", "", "Configuration file (default ./config.yaml when present)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolVar(&opts.headless, "headless", false, "Run without the terminal view")
	pf.StringVar(&opts.shaper, "shaper", "linear", "Spectrum shaping: linear or log")
	pf.StringVar(&opts.window, "window", "hann", "FFT window: hann, hamming, blackman, rectangular, ...")
	pf.IntVar(&opts.bandsPerOctave, "bands-per-octave", 12, "Logarithmic bands per octave")
	pf.IntVar(&opts.historySize, "history", 64, "Number of spectra retained")
	pf.StringVar(&opts.websocket, "websocket", "", "Publish frames over WebSocket on this address, e.g. :8080")
	pf.StringVar(&opts.udpTarget, "udp", "", "Publish binary packets to this UDP address, e.g. 127.0.0.1:9090")
	pf.BoolVar(&opts.logFrames, "log-frames", false, "Log published frames at debug level")
	pf.BoolVar(&opts.onsets, "onsets", false, "Detect onsets and publish them as events")

	// Audio Device Configuration
	f := rootCmd.Flags()
	f.IntVarP(&opts.device, "device", "d", config.MinDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	f.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.IntVarP(&opts.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	f.BoolVarP(&opts.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	f.Float64Var(&opts.gate, "gate", 0,
		"Enable the noise gate with this peak threshold (0.0-1.0)")

	// Recording Configuration
	f.BoolVarP(&opts.record, "record", "r", false,
		"Record the captured audio to a WAV file")
	f.StringVarP(&opts.output, "output", "o", "",
		"Recording file name. Default is capture-YYYYMMDD-HHMMSS.wav in the recording directory")

	rootCmd.AddCommand(
		newPlayCommand(opts, func() *config.Config { return cfg }),
		newListCommand(),
		newDevicesCommand(opts, func() *config.Config { return cfg }),
		newVersionCommand(),
	)
	return rootCmd
}

func newPlayCommand(opts *options, cfg func() *config.Config) *cobra.Command {
	playCmd := &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Analyse a WAV file while it plays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), cfg(), opts, args[0])
		},
	}
	playCmd.Flags().BoolVar(&opts.loop, "loop", false, "Restart at the end of the file")
	playCmd.Flags().BoolVarP(&opts.monitor, "monitor", "m", false, "Play the file through the default output device")
	playCmd.Flags().IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", 1024, "Frames delivered per block")
	return playCmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(cmd.OutOrStdout())
		},
	}
}

func newDevicesCommand(opts *options, cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Pick an input device interactively and analyse it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			sel, ok, err := tui.RunDeviceList(audio.HostDevices)
			audio.Terminate()
			if err != nil || !ok {
				return err
			}

			c := cfg()
			c.Audio.InputDevice = sel.DeviceID
			c.Audio.SampleRate = sel.SampleRate
			return runLive(cmd.Context(), c, opts)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.Get().Summary())
		},
	}
}

// loadConfig reads the configuration, applies explicitly set flags on top
// and configures logging.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("shaper") {
		cfg.Analysis.Shaper = opts.shaper
	}
	if changed("window") {
		cfg.Analysis.Window = opts.window
	}
	if changed("bands-per-octave") {
		cfg.Analysis.BandsPerOctave = opts.bandsPerOctave
	}
	if changed("history") {
		cfg.Analysis.HistorySize = opts.historySize
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = opts.websocket != ""
		cfg.Transport.WebSocketAddress = opts.websocket
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = opts.udpTarget != ""
		cfg.Transport.UDPTargetAddress = opts.udpTarget
	}
	if changed("log-frames") {
		cfg.Transport.LogFrames = opts.logFrames
	}
	if changed("onsets") {
		cfg.Transport.Onsets = opts.onsets
	}

	if changed("device") {
		cfg.Audio.InputDevice = opts.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if changed("channels") {
		cfg.Audio.InputChannels = opts.channels
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateEnabled = opts.gate > 0
		cfg.Audio.GateThreshold = opts.gate
	}
	if changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if changed("frames-per-buffer") {
		// The flag is defined per command; play sizes file blocks, the
		// root command sizes capture callbacks.
		if cmd.Name() == "play" {
			cfg.Playback.FramesPerBuffer = opts.framesPerBuffer
		} else {
			cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
		}
	}
	if changed("loop") {
		cfg.Playback.Loop = opts.loop
	}
	if changed("monitor") {
		cfg.Playback.Monitor = opts.monitor
	}
}

// runLive analyses the configured input device until interrupted.
func runLive(ctx context.Context, cfg *config.Config, opts *options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg.Audio)
	if err != nil {
		return err
	}
	defer engine.Close()

	s, err := newSession(cfg, engine)
	if err != nil {
		return err
	}
	defer s.Close()

	// Start of real-time audio processing.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	defer engine.StopInputStream()

	if cfg.Recording.Enabled {
		filename := opts.output
		if filename == "" {
			if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
				return fmt.Errorf("creating recording directory: %w", err)
			}
			filename = audio.RecordingName(cfg.Recording.OutputDir, time.Now())
		}
		maxDuration := time.Duration(cfg.Recording.MaxDuration) * time.Second
		if err := engine.StartRecording(filename, cfg.Recording.BitDepth, maxDuration); err != nil {
			return err
		}
		defer func() {
			if err := engine.StopRecording(); err != nil {
				log.Errorf("stopping recording: %v", err)
				return
			}
			log.Infof("recording saved to %s", filename)
		}()
	}

	title := fmt.Sprintf("live input %d", cfg.Audio.InputDevice)
	if cfg.Audio.InputDevice == config.MinDeviceID {
		title = "live input (default device)"
	}
	return s.run(ctx, title, nil, opts.headless, nil)
}

// runPlay analyses a WAV file while it plays.
func runPlay(ctx context.Context, cfg *config.Config, opts *options, path string) error {
	player, err := audio.OpenPlayer(path, cfg.Playback.FramesPerBuffer)
	if err != nil {
		return err
	}
	defer player.Close()
	player.SetLoop(cfg.Playback.Loop)

	s, err := newSession(cfg, player)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Playback.Monitor {
		monitor, err := audio.NewMonitor(int(player.SampleRate()), monitorLatency)
		if err != nil {
			log.Warnf("monitoring disabled: %v", err)
		} else {
			defer monitor.Close()
			player.AddListener(monitor)
		}
	}

	player.Start()
	player.Play()

	var done <-chan struct{}
	if !cfg.Playback.Loop {
		done = player.Ended()
	}
	return s.run(ctx, player.Metadata().String(), player, opts.headless, done)
}
