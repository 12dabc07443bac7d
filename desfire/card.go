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
	"context"
	"io"

	"github.com/ZaparooProject/go-skad3"
	"github.com/ZaparooProject/go-skad3/internal/syncutil"
)

// Card issues DESFire commands through a dispenser's APDU tunnel.
//
// Card remembers the algorithm of the last successful authentication so it
// can strip the CMAC the card appends to plain replies after an AES
// handshake. Selecting an application, changing a key or a failed handshake
// forgets it.
type Card struct {
	tunnel   skad3.Transactor
	random   io.Reader
	mu       syncutil.Mutex
	authAlg  Algorithm
	authKey  byte
	authDone bool
}

// CardOption configures a Card
type CardOption func(*Card)

// WithAuthRandom sets the randomA source for every handshake of the card.
func WithAuthRandom(r io.Reader) CardOption {
	return func(c *Card) {
		c.random = r
	}
}

// NewCard creates a card handle on tunnel, typically a *skad3.Device.
func NewCard(tunnel skad3.Transactor, opts ...CardOption) *Card {
	c := &Card{tunnel: tunnel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether the last handshake succeeded and has not
// been invalidated, and with which key number.
func (c *Card) Authenticated() (keyNo byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authKey, c.authDone
}

func (c *Card) setAuthenticated(alg Algorithm, keyNo byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authAlg, c.authKey, c.authDone = alg, keyNo, true
}

func (c *Card) resetAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authDone = false
}

// macked reports whether plain replies currently carry a trailing CMAC.
func (c *Card) macked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authDone && c.authAlg == AlgorithmAES128
}

// payload returns the reply data with the CMAC removed when one is present.
func (c *Card) payload(resp *skad3.APDUResponse) []byte {
	data := resp.Data()
	if c.macked() && len(data) >= cmacSize {
		return data[:len(data)-cmacSize]
	}
	return data
}

// command sends one wrapped native command. A status word outside the
// success set becomes a *CardError; the response is returned either way.
func command(ctx context.Context, ex skad3.Exchanger, ins byte, data ...byte) (*skad3.APDUResponse, error) {
	resp, err := ex.Exchange(ctx, WrapCommand(ins, data...))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return resp, &CardError{Cmd: ins, SW: resp.StatusWord()}
	}
	return resp, nil
}

// commandAll sends a command and follows 0x91AF continuations, returning the
// concatenated payload and the final response.
func commandAll(ctx context.Context, ex skad3.Exchanger, ins byte, data ...byte) ([]byte, *skad3.APDUResponse, error) {
	resp, err := command(ctx, ex, ins, data...)
	if err != nil {
		return nil, resp, err
	}
	out := append([]byte(nil), resp.Data()...)
	for resp.HasMoreFrames() {
		resp, err = command(ctx, ex, CmdAdditionalFrame)
		if err != nil {
			return nil, resp, err
		}
		out = append(out, resp.Data()...)
	}
	return out, resp, nil
}

// run sends one command in its own transaction.
func (c *Card) run(ctx context.Context, ins byte, data ...byte) (*skad3.APDUResponse, error) {
	var resp *skad3.APDUResponse
	err := c.tunnel.Transact(ctx, func(ex skad3.Exchanger) error {
		var err error
		resp, err = command(ctx, ex, ins, data...)
		return err
	})
	return resp, err
}

// runAll is run with continuation frames.
func (c *Card) runAll(ctx context.Context, ins byte, data ...byte) ([]byte, error) {
	var out []byte
	err := c.tunnel.Transact(ctx, func(ex skad3.Exchanger) error {
		var err error
		out, _, err = commandAll(ctx, ex, ins, data...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c.macked() && len(out) >= cmacSize {
		out = out[:len(out)-cmacSize]
	}
	return out, nil
}
