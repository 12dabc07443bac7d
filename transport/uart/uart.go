// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uart implements skad3.Channel over an RS-232 serial port.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-skad3"
	"github.com/ZaparooProject/go-skad3/internal/syncutil"
	"go.bug.st/serial"
)

// Line defaults of the SK-AD3
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 2 * time.Second
)

const readChunk = 256

// Opener opens a serial port. serial.Open is used by default.
type Opener func(portName string, mode *serial.Mode) (serial.Port, error)

// Option configures a Channel
type Option func(*Channel) error

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) Option {
	return func(c *Channel) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", skad3.ErrInvalidParameter, baud)
		}
		c.baud = baud
		return nil
	}
}

// WithReadTimeout bounds how long Read waits for the requested bytes.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Channel) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: read timeout %v", skad3.ErrInvalidParameter, timeout)
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithOpener replaces serial.Open, mainly for tests.
func WithOpener(open Opener) Option {
	return func(c *Channel) error {
		if open == nil {
			return fmt.Errorf("%w: nil opener", skad3.ErrInvalidParameter)
		}
		c.open = open
		return nil
	}
}

// Channel is a serial link to a dispenser. The port is opened and closed
// around every device operation; bytes left unread at Close are discarded.
type Channel struct {
	port        serial.Port
	open        Opener
	portName    string
	pending     []byte
	readTimeout time.Duration
	baud        int
	mu          syncutil.Mutex
}

// New creates a channel on portName without opening it.
func New(portName string, opts ...Option) (*Channel, error) {
	if portName == "" {
		return nil, fmt.Errorf("%w: empty port name", skad3.ErrInvalidParameter)
	}
	c := &Channel{
		portName:    portName,
		open:        serial.Open,
		baud:        DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// pollTimeout is the per-read timeout of the port. USB serial drivers on
// Windows return early reads less reliably, so they get a longer slice.
func pollTimeout() time.Duration {
	if isWindows() {
		return 20 * time.Millisecond
	}
	return 10 * time.Millisecond
}

// Open opens the port 8N1 and discards stale input.
func (c *Channel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return nil
	}
	port, err := c.open(c.portName, &serial.Mode{
		BaudRate: c.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return skad3.NewTransportError("open", c.portName, err, skad3.ErrorTypePermanent)
	}
	if err := port.SetReadTimeout(pollTimeout()); err != nil {
		_ = port.Close()
		return skad3.NewTransportError("set read timeout", c.portName, err, skad3.ErrorTypePermanent)
	}
	if err := port.ResetInputBuffer(); err != nil {
		skad3.Debugf("uart %s: reset input buffer: %v", c.portName, err)
	}
	c.port = port
	c.pending = c.pending[:0]
	return nil
}

// Close closes the port. Closing a closed channel is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}
	port := c.port
	c.port = nil
	c.pending = c.pending[:0]
	if err := port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Write sends data and waits for it to leave the output buffer.
func (c *Channel) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return skad3.NewTransportClosedError("write", c.portName)
	}
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		if err != nil {
			return skad3.NewTransportWriteError("write", c.portName, err)
		}
		if n == 0 {
			return skad3.NewTransportWriteError("write", c.portName, errors.New("port accepted no bytes"))
		}
		written += n
	}
	return c.drainWithRetry()
}

// Read blocks until n bytes have arrived or the read timeout passes.
func (c *Channel) Read(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil, skad3.NewTransportClosedError("read", c.portName)
	}
	deadline := time.Now().Add(c.readTimeout)
	for len(c.pending) < n {
		if !time.Now().Before(deadline) {
			return nil, skad3.NewTimeoutError("read", c.portName)
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	copy(out, c.pending)
	c.pending = append(c.pending[:0], c.pending[n:]...)
	return out, nil
}

// Buffered polls the port once and reports the bytes received so far.
func (c *Channel) Buffered() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return 0, skad3.NewTransportClosedError("buffered", c.portName)
	}
	if err := c.fill(); err != nil {
		return 0, err
	}
	return len(c.pending), nil
}

// Type returns the channel type
func (*Channel) Type() skad3.ChannelType {
	return skad3.ChannelUART
}

// Port returns the serial port name
func (c *Channel) Port() string {
	return c.portName
}

// fill performs one bounded read into the pending buffer. A read cut short
// by a signal is treated as an empty poll.
func (c *Channel) fill() error {
	var buf [readChunk]byte
	n, err := c.port.Read(buf[:])
	if err != nil {
		if isInterruptedSystemCall(err) {
			return nil
		}
		return skad3.NewTransportReadError("read", c.portName, err)
	}
	c.pending = append(c.pending, buf[:n]...)
	return nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (c *Channel) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := c.port.Drain()
		if err == nil {
			return nil
		}
		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
			continue
		}
		return skad3.NewTransportWriteError("drain", c.portName, err)
	}
	return skad3.NewTransportWriteError("drain", c.portName, fmt.Errorf("failed after %d retries", maxRetries))
}

var _ skad3.Channel = (*Channel)(nil)
