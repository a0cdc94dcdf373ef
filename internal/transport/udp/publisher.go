// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"spectrum/internal/analysis"
	"spectrum/internal/log"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 16 * time.Millisecond

/*
Packet layout (big endian):

	| field       | type      | bytes | notes                          |
	|-------------|-----------|-------|--------------------------------|
	| sequence    | uint32    | 4     | increments per packet          |
	| timestamp   | int64     | 8     | send time, ns since epoch      |
	| position    | int64     | 8     | ms into the source, -1 unknown |
	| relative    | float32   | 4     | position / length, 0 unknown   |
	| band count  | uint16    | 2     | N                              |
	| bands       | []float32 | N*4   | shaped magnitudes, low first   |
*/

// HeaderSize is the number of bytes before the bands.
const HeaderSize = 4 + 8 + 8 + 4 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("short spectrum packet")

// Packet is a decoded spectrum datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	PositionMs int64
	Relative   float32
	Bands      []float32
}

// AppendPacket encodes one datagram onto dst.
func AppendPacket(dst []byte, seq uint32, ts time.Time, info *analysis.SpectrumInfo) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint64(dst, uint64(info.PositionMillis()))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(info.RelativePosition)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(info.Bands)))
	for _, v := range info.Bands {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Sequence:   binary.BigEndian.Uint32(b[0:]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		PositionMs: int64(binary.BigEndian.Uint64(b[12:])),
		Relative:   math.Float32frombits(binary.BigEndian.Uint32(b[20:])),
	}
	n := int(binary.BigEndian.Uint16(b[24:]))
	if len(b) < HeaderSize+4*n {
		return Packet{}, fmt.Errorf("%w: %d bands need %d bytes, have %d", ErrShortPacket, n, HeaderSize+4*n, len(b))
	}
	p.Bands = make([]float32, n)
	for i := range p.Bands {
		p.Bands[i] = math.Float32frombits(binary.BigEndian.Uint32(b[HeaderSize+4*i:]))
	}
	return p, nil
}

// SpectrumReader is the part of analysis.Analyser the publisher reads.
type SpectrumReader interface {
	SpectrumInfoInto(idx int, dst *analysis.SpectrumInfo) bool
}

// PacketSender sends one datagram. *Sender implements it.
type PacketSender interface {
	Send(packet []byte) error
}

// Publisher periodically reads the newest snapshot from an analyser, packs
// it into the binary layout above and sends it. Unlike transport.Publisher
// it runs on its own clock, decoupled from the analysis cadence.
type Publisher struct {
	sender   PacketSender
	reader   SpectrumReader
	interval time.Duration
	logger   log.Logger

	mu       sync.Mutex // Protects ticker and done during Start/Stop.
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	sequence uint32

	// Reused on every tick.
	info   analysis.SpectrumInfo
	packet []byte
}

// NewPublisher creates a publisher reading from reader every interval.
func NewPublisher(interval time.Duration, sender PacketSender, reader SpectrumReader) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if reader == nil {
		return nil, errors.New("udp publisher: reader cannot be nil")
	}
	logger := log.With("transport/udp")
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}
	return &Publisher{
		sender:   sender,
		reader:   reader,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is
// a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		p.logger.Warnf("Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	ticker, done := p.ticker, p.done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Infof("publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish(time.Now())
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit. It is
// safe to call Stop when not running.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.done)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Infof("stopped after %d packets", p.sequence)
	return nil
}

// publish sends the newest snapshot, if any. It reports whether a packet
// was sent.
func (p *Publisher) publish(now time.Time) bool {
	if !p.reader.SpectrumInfoInto(0, &p.info) {
		return false
	}
	p.sequence++
	p.packet = AppendPacket(p.packet[:0], p.sequence, now, &p.info)
	if err := p.sender.Send(p.packet); err != nil {
		p.logger.Debugf("packet %d: %v", p.sequence, err)
		return false
	}
	return true
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}
