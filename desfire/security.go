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
	"fmt"

	"github.com/ZaparooProject/go-skad3"
)

// Authenticate runs the three-pass handshake for keyNo under one channel
// acquisition. A rejected handshake returns a result with Authenticated
// false and a nil error; errors are reserved for channel and framing faults
// and malformed replies.
func (c *Card) Authenticate(ctx context.Context, alg Algorithm, keyNo byte, key []byte) (*AuthResult, error) {
	var opts []AuthOption
	if c.random != nil {
		opts = append(opts, WithRandom(c.random))
	}
	session, err := NewAuthSession(alg, key, opts...)
	if err != nil {
		return nil, err
	}
	c.resetAuth()

	var sw uint16
	err = c.tunnel.Transact(ctx, func(ex skad3.Exchanger) error {
		resp, err := ex.Exchange(ctx, WrapCommand(alg.AuthCommand(), keyNo))
		if err != nil {
			return err
		}
		sw = resp.StatusWord()
		if !resp.IsSuccessful() {
			skad3.Debugf("%s auth key %d: challenge refused, SW=%04X", alg, keyNo, sw)
			session.Fail()
			return nil
		}
		if err := session.Challenge(resp.Data()); err != nil {
			return err
		}

		submission, err := session.FirstPass()
		if err != nil {
			return err
		}
		resp, err = ex.Exchange(ctx, WrapCommand(CmdAdditionalFrame, submission...))
		if err != nil {
			return err
		}
		sw = resp.StatusWord()
		if !resp.IsSuccessful() {
			skad3.Debugf("%s auth key %d: first pass refused, SW=%04X", alg, keyNo, sw)
			session.Fail()
			return nil
		}
		if !session.SecondPass(resp.Data()) {
			skad3.Debugf("%s auth key %d: card proof does not match randomA", alg, keyNo)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s authenticate key %d: %w", alg, keyNo, err)
	}

	result := session.Result()
	result.SW = sw
	if result.Authenticated {
		c.setAuthenticated(alg, keyNo)
	}
	return result, nil
}

// AuthenticateAES authenticates keyNo with a 16-byte AES key.
func (c *Card) AuthenticateAES(ctx context.Context, keyNo byte, key []byte) (*AuthResult, error) {
	return c.Authenticate(ctx, AlgorithmAES128, keyNo, key)
}

// AuthenticateDES authenticates keyNo with a legacy DES or 2K3DES key.
func (c *Card) AuthenticateDES(ctx context.Context, keyNo byte, key []byte) (*AuthResult, error) {
	return c.Authenticate(ctx, AlgorithmDES, keyNo, key)
}

// ChangeKey replaces the key in keySlot. sessionKey is the key of the
// authentication that authorizes the change.
func (c *Card) ChangeKey(ctx context.Context, keySlot byte, newKey, sessionKey []byte, keyVersion byte) error {
	payload, err := BuildKeyUpdate(sessionKey, keySlot, newKey, keyVersion)
	if err != nil {
		return err
	}
	data := make([]byte, 0, 1+len(payload))
	data = append(data, keySlot)
	data = append(data, payload...)
	if len(data) > MaxCommandData {
		return fmt.Errorf("%w: change key data is %d bytes", ErrInvalidParameter, len(data))
	}

	if _, err := c.run(ctx, CmdChangeKey, data...); err != nil {
		return fmt.Errorf("change key 0x%02X: %w", keySlot, err)
	}
	c.resetAuth()
	return nil
}

// ChangePICCMasterKey replaces the card master key with a new AES key.
// The PICC application must be selected and authenticated.
func (c *Card) ChangePICCMasterKey(ctx context.Context, newKey, sessionKey []byte, keyVersion byte) error {
	return c.ChangeKey(ctx, PICCMasterKeySlot, newKey, sessionKey, keyVersion)
}

// ChangeApplicationKey replaces key keyNo of the selected application.
func (c *Card) ChangeApplicationKey(ctx context.Context, keyNo byte, newKey, sessionKey []byte, keyVersion byte) error {
	return c.ChangeKey(ctx, keyNo, newKey, sessionKey, keyVersion)
}

// GetKeyVersion returns the version byte of keyNo. It does not require
// authentication.
func (c *Card) GetKeyVersion(ctx context.Context, keyNo byte) (byte, error) {
	resp, err := c.run(ctx, CmdGetKeyVersion, keyNo)
	if err != nil {
		return 0, fmt.Errorf("get key version %d: %w", keyNo, err)
	}
	data := resp.Data()
	if len(data) < 1 {
		return 0, fmt.Errorf("get key version %d: %w: empty reply", keyNo, ErrInvalidResponse)
	}
	return data[0], nil
}
