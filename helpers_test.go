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
	"bytes"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-skad3/internal/frame"
	testutil "github.com/ZaparooProject/go-skad3/internal/testing"
	"github.com/stretchr/testify/require"
)

// simChannel adapts the wire simulator to Channel.
type simChannel struct {
	*testutil.VirtualSKAD3
}

func (simChannel) Type() ChannelType {
	return ChannelMock
}

func (c simChannel) Read(n int) ([]byte, error) {
	data, err := c.VirtualSKAD3.Read(n)
	if errors.Is(err, testutil.ErrNoData) {
		return nil, NewTimeoutError("read", c.Port())
	}
	return data, err //nolint:wrapcheck // Pass-through adapter
}

// newSimDevice creates a device backed by a simulator holding card.
func newSimDevice(t *testing.T, card *testutil.VirtualDESFire, opts ...Option) (*Device, *testutil.VirtualSKAD3) {
	t.Helper()
	sim := testutil.NewVirtualSKAD3(card)
	opts = append([]Option{WithSettle(0, 2)}, opts...)
	device, err := New(simChannel{sim}, opts...)
	require.NoError(t, err)
	return device, sim
}

// scriptedChannel answers each write with the next canned reply.
type scriptedChannel struct {
	openErr  error
	closeErr error
	writeErr error
	replies  [][]byte
	writes   [][]byte
	pending  bytes.Buffer
	opens    int
	closes   int
}

func newScriptedChannel(replies ...[]byte) *scriptedChannel {
	return &scriptedChannel{replies: replies}
}

func (c *scriptedChannel) Open() error {
	c.opens++
	return c.openErr
}

func (c *scriptedChannel) Close() error {
	c.closes++
	c.pending.Reset()
	return c.closeErr
}

func (c *scriptedChannel) Write(data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, bytes.Clone(data))
	if len(c.replies) > 0 {
		c.pending.Write(c.replies[0])
		c.replies = c.replies[1:]
	}
	return nil
}

func (c *scriptedChannel) Read(n int) ([]byte, error) {
	if c.pending.Len() == 0 {
		return nil, NewTimeoutError("read", c.Port())
	}
	return bytes.Clone(c.pending.Next(n)), nil
}

func (c *scriptedChannel) Buffered() (int, error) {
	return c.pending.Len(), nil
}

func (*scriptedChannel) Type() ChannelType {
	return ChannelMock
}

func (*scriptedChannel) Port() string {
	return "scripted"
}

func newScriptedDevice(t *testing.T, replies ...[]byte) (*Device, *scriptedChannel) {
	t.Helper()
	ch := newScriptedChannel(replies...)
	device, err := New(ch, WithSettle(0, 0))
	require.NoError(t, err)
	return device, ch
}

func mustEncodeBasic(t *testing.T, cm, pm byte, data ...byte) []byte {
	t.Helper()
	out, err := frame.EncodeBasic(DefaultAddress, cm, pm, data...)
	require.NoError(t, err)
	return out
}
