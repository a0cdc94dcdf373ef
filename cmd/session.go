// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spectrum/internal/analysis"
	"spectrum/internal/config"
	"spectrum/internal/log"
	"spectrum/internal/transport"
	"spectrum/internal/transport/udp"
	"spectrum/internal/tui"
)

// session owns the analyser attached to one source and everything consuming
// it: publishers, the onset detector and the terminal view.
type session struct {
	cfg      *config.Config
	logger   log.Logger
	analyser *analysis.Analyser

	transport transport.Transport
	publisher *transport.Publisher
	onsets    *analysis.OnsetDetector
	udpSender *udp.Sender
	udpPub    *udp.Publisher
	websocket *transport.WebSocketTransport
}

// newSession attaches a new analyser to src and starts the configured
// publishers. On error everything already started is closed again.
func newSession(cfg *config.Config, src analysis.Source) (_ *session, err error) {
	acfg, err := cfg.AnalysisConfig()
	if err != nil {
		return nil, err
	}
	a, err := analysis.NewAnalyser(acfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: log.With("session"), analyser: a}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var transports transport.Multi
	if cfg.Transport.LogFrames {
		transports = append(transports, transport.NewLoggingTransport(int(acfg.AnalysisFrequency)))
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return nil, err
		}
		s.websocket = ws
		transports = append(transports, ws)
	}
	if len(transports) > 0 {
		s.transport = transports
		s.publisher = transport.NewPublisher(transports, 0).WithRanges(analysis.DefaultRanges)
		a.RegisterListener(s.publisher)
	}
	if cfg.Transport.Onsets {
		var sender analysis.Sender
		if s.transport != nil {
			sender = s.transport
		}
		s.onsets = analysis.NewOnsetDetector(analysis.DefaultOnsetConfig(), sender)
		a.RegisterListener(s.onsets)
	}

	if err := a.Attach(src); err != nil {
		return nil, err
	}

	if cfg.Transport.UDPEnabled {
		s.udpSender, err = udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		s.udpPub, err = udp.NewPublisher(cfg.Transport.UDPSendInterval, s.udpSender, a)
		if err != nil {
			return nil, err
		}
		s.udpPub.Start()
	}
	return s, nil
}

// run shows the spectrum view, or waits headless, until the user quits, a
// termination signal arrives or done closes. done may be nil.
func (s *session) run(ctx context.Context, title string, controls tui.Controls, headless bool, done <-chan struct{}) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if headless {
		s.logger.Infof("analysing %s, press Ctrl+C to stop", title)
		<-ctx.Done()
		return nil
	}

	model := tui.NewSpectrumModel(s.analyser, controls, title, s.cfg.UI.RefreshInterval, s.cfg.UI.Height)
	if err := tui.RunSpectrum(model, ctx.Done()); err != nil {
		return fmt.Errorf("terminal view: %w", err)
	}
	return nil
}

// Close detaches the analyser and shuts the publishers down.
func (s *session) Close() error {
	var errList []error
	if s.udpPub != nil {
		errList = append(errList, s.udpPub.Close())
	}
	if s.udpSender != nil {
		errList = append(errList, s.udpSender.Close())
	}

	s.analyser.Detach()
	if s.publisher != nil {
		s.analyser.UnregisterListener(s.publisher)
		s.logger.Infof("published %d frames (%d failed)", s.publisher.Sent(), s.publisher.Failed())
	}
	if s.onsets != nil {
		s.analyser.UnregisterListener(s.onsets)
		s.logger.Infof("detected %d onsets", s.onsets.Count())
	}

	if s.transport != nil {
		errList = append(errList, s.transport.Close())
	}
	return errors.Join(errList...)
}
