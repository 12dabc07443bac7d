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

package skad3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-skad3/internal/frame"
	"github.com/ZaparooProject/go-skad3/internal/syncutil"
)

// DefaultAddress is the RS-232 address of a dispenser with factory settings.
const DefaultAddress byte = 0x00

// Device drives one SK-AD3 dispenser over a Channel.
//
// Every top-level method locks the device, opens the channel, performs its
// exchanges and closes the channel again before unlocking, so a Device may be
// shared between goroutines but only one command is ever in flight.
type Device struct {
	channel    Channel
	decodeOpts frame.DecodeOptions
	traceSize  int
	mu         syncutil.Mutex
	address    byte
}

// Option configures a Device
type Option func(*Device) error

// WithAddress sets the dispenser address placed in every outbound frame.
func WithAddress(addr byte) Option {
	return func(d *Device) error {
		d.address = addr
		return nil
	}
}

// WithChecksumValidation enables or disables BCC validation of replies.
// Validation is on by default.
func WithChecksumValidation(enabled bool) Option {
	return func(d *Device) error {
		d.decodeOpts.ValidateChecksum = enabled
		return nil
	}
}

// WithSettle tunes how long the decoder waits for the receive buffer to stop
// growing before reading a reply. polls of 0 disables settling.
func WithSettle(interval time.Duration, polls int) Option {
	return func(d *Device) error {
		if interval < 0 || polls < 0 {
			return fmt.Errorf("%w: settle interval %v, polls %d", ErrInvalidParameter, interval, polls)
		}
		d.decodeOpts.SettleInterval = interval
		d.decodeOpts.SettlePolls = polls
		return nil
	}
}

// WithTraceSize sets how many frames are kept for TraceableError.
func WithTraceSize(entries int) Option {
	return func(d *Device) error {
		if entries <= 0 {
			return fmt.Errorf("%w: trace size %d", ErrInvalidParameter, entries)
		}
		d.traceSize = entries
		return nil
	}
}

// New creates a device on the given channel. The channel is not opened until
// the first command.
func New(channel Channel, opts ...Option) (*Device, error) {
	if channel == nil {
		return nil, ErrNoChannel
	}
	device := &Device{
		channel:    channel,
		address:    DefaultAddress,
		decodeOpts: frame.DefaultDecodeOptions(),
		traceSize:  defaultTraceEntries,
	}
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	return device, nil
}

// Channel returns the underlying channel
func (d *Device) Channel() Channel {
	return d.channel
}

// Address returns the dispenser address
func (d *Device) Address() byte {
	return d.address
}

// session is one scoped acquisition of the channel.
type session struct {
	device *Device
	trace  *TraceBuffer
}

// withSession locks the device and opens the channel for the duration of fn.
// The channel is closed and the lock released on every path.
func (d *Device) withSession(ctx context.Context, fn func(*session) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("device session: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.channel.Open(); err != nil {
		return fmt.Errorf("failed to open %s channel %s: %w", d.channel.Type(), d.channel.Port(), err)
	}
	defer func() {
		if closeErr := d.channel.Close(); closeErr != nil {
			Debugf("close %s: %v", d.channel.Port(), closeErr)
			if err == nil {
				err = fmt.Errorf("failed to close channel: %w", closeErr)
			}
		}
	}()

	s := &session{
		device: d,
		trace:  NewTraceBuffer(d.channel.Type(), d.channel.Port(), d.traceSize),
	}
	return fn(s)
}

// exchange writes one frame and decodes the reply. Errors carry the wire
// trace of the session so far.
func (s *session) exchange(ctx context.Context, out []byte, note string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.trace.WrapError(fmt.Errorf("%s: %w", note, err))
	}

	ch := s.device.channel
	Debugf("TX %s: %X", note, out)
	s.trace.RecordTX(out, note)
	if err := ch.Write(out); err != nil {
		return nil, s.trace.WrapError(fmt.Errorf("%s: %w", note, err))
	}

	in, err := frame.Decode(ch, s.device.decodeOpts)
	if err != nil {
		var desync *frame.DesyncError
		if errors.As(err, &desync) {
			s.trace.RecordRX(desync.Header, "desync: "+desync.Reason)
		}
		var sum *frame.ChecksumError
		if errors.As(err, &sum) {
			s.trace.RecordRX(sum.Frame, "bad checksum")
		}
		return nil, s.trace.WrapError(fmt.Errorf("%s: %w", note, err))
	}
	Debugf("RX %s: %X", note, in)
	s.trace.RecordRX(in, note)
	return in, nil
}

// basic sends one basic command in its own session.
func (d *Device) basic(ctx context.Context, note string, cmd, param byte, data ...byte) (*Response, error) {
	out, err := frame.EncodeBasic(d.address, cmd, param, data...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", note, err)
	}

	var resp *Response
	err = d.withSession(ctx, func(s *session) error {
		raw, err := s.exchange(ctx, out, note)
		if err != nil {
			return err
		}
		resp = NewResponse(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
