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

package desfire

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-skad3"
	testutil "github.com/ZaparooProject/go-skad3/internal/testing"
	"github.com/stretchr/testify/require"
)

var testUID = [7]byte{0x04, 0x52, 0x1A, 0x2B, 0x3C, 0x4D, 0x80}

// patternReader is an endless source of b, b+1, b+2, ...
type patternReader byte

func (p *patternReader) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = byte(*p)
		*p++
	}
	return len(buf), nil
}

func newPattern(start byte) *patternReader {
	p := patternReader(start)
	return &p
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

// tunnel answers APDUs with respond, wrapping each card response in a
// dispenser reply frame.
type tunnel struct {
	respond      func(apdu []byte) []byte
	err          error
	apdus        [][]byte
	transactions int
}

func (t *tunnel) Transact(ctx context.Context, fn func(skad3.Exchanger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.transactions++
	return fn(t)
}

func (t *tunnel) Exchange(_ context.Context, apdu []byte) (*skad3.APDUResponse, error) {
	t.apdus = append(t.apdus, bytes.Clone(apdu))
	if t.err != nil {
		return nil, t.err
	}
	reply := testutil.BuildAPDUReply(skad3.DefaultAddress, testutil.StatusCardAtRF, t.respond(apdu))
	return skad3.NewAPDUResponse(reply), nil
}

// newCardTunnel connects a Card straight to a simulated card.
func newCardTunnel() (*Card, *testutil.VirtualDESFire, *tunnel) {
	vc := testutil.NewVirtualDESFire(testUID)
	tn := &tunnel{respond: vc.Process}
	return NewCard(tn), vc, tn
}

// newScriptedTunnel answers each APDU with the next card response.
func newScriptedTunnel(responses ...[]byte) (*Card, *tunnel) {
	tn := &tunnel{}
	tn.respond = func([]byte) []byte {
		if len(responses) == 0 {
			return testutil.SW(skad3.SWIllegalCommand)
		}
		next := responses[0]
		responses = responses[1:]
		return next
	}
	return NewCard(tn), tn
}

// linkChannel adapts a simulated link to skad3.Channel.
type linkChannel struct {
	testutil.Link
}

func (linkChannel) Type() skad3.ChannelType {
	return skad3.ChannelMock
}

func (c linkChannel) Read(n int) ([]byte, error) {
	data, err := c.Link.Read(n)
	if errors.Is(err, testutil.ErrNoData) {
		return nil, skad3.NewTimeoutError("read", c.Port())
	}
	return data, err //nolint:wrapcheck // Pass-through adapter
}

// newDispenserCard creates a card behind a simulated dispenser with the RF
// field already active. wrap, if set, decorates the link.
func newDispenserCard(t *testing.T, wrap func(testutil.Link) testutil.Link) (*Card, *testutil.VirtualDESFire, *testutil.VirtualSKAD3) {
	t.Helper()
	vc := testutil.NewVirtualDESFire(testUID)
	sim := testutil.NewVirtualSKAD3(vc)
	var link testutil.Link = sim
	if wrap != nil {
		link = wrap(sim)
	}
	device, err := skad3.New(linkChannel{link}, skad3.WithSettle(0, 2))
	require.NoError(t, err)
	resp, err := device.ActivateRFCard(context.Background(), skad3.RFTypeA)
	require.NoError(t, err)
	require.True(t, resp.IsSuccessful(), "activate RF card")
	return NewCard(device), vc, sim
}

func requireCardError(t *testing.T, err error, sw uint16) {
	t.Helper()
	var ce *CardError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, sw, ce.SW, "status word")
}
