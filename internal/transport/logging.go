// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"spectrum/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level. Only every Nth message is logged to keep the output readable.
type LoggingTransport struct {
	logger log.Logger
	every  uint64
	count  atomic.Uint64
	mu     sync.Mutex
	closed bool
}

// NewLoggingTransport creates a LoggingTransport logging one message out of
// every. Values below 1 log every message.
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	lt := &LoggingTransport{logger: log.With("transport/log"), every: uint64(every)}
	lt.logger.Infof("logging one message in %d", every)
	return lt
}

// Send logs the received data as JSON.
func (lt *LoggingTransport) Send(data any) error {
	lt.mu.Lock()
	closed := lt.closed
	lt.mu.Unlock()
	if closed {
		return ErrClosed
	}

	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 || log.GetLevel() > log.LevelDebug {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		lt.logger.Debugf("#%d (%T): %+v", n, data, data)
		return nil
	}
	lt.logger.Debugf("#%d %s", n, encoded)
	return nil
}

// Count returns the number of messages received.
func (lt *LoggingTransport) Count() uint64 {
	return lt.count.Load()
}

// Close stops accepting messages.
func (lt *LoggingTransport) Close() error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if !lt.closed {
		lt.closed = true
		lt.logger.Infof("closed after %d messages", lt.count.Load())
	}
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
