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
	"fmt"

	"github.com/ZaparooProject/go-skad3/internal/frame"
)

// Exchanger sends APDUs through an open channel.
type Exchanger interface {
	// Exchange sends one APDU and returns the tunnelled reply. A card status
	// word outside the success set is not an error.
	Exchange(ctx context.Context, apdu []byte) (*APDUResponse, error)
}

// Transactor runs a sequence of APDU exchanges under a single channel
// acquisition.
type Transactor interface {
	Transact(ctx context.Context, fn func(Exchanger) error) error
}

// SendAPDU sends one APDU in its own session.
func (d *Device) SendAPDU(ctx context.Context, apdu []byte) (*APDUResponse, error) {
	var resp *APDUResponse
	err := d.Transact(ctx, func(ex Exchanger) error {
		var err error
		resp, err = ex.Exchange(ctx, apdu)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Transact locks the device and holds the channel open while fn runs, so
// multi-frame operations such as authentication are never interleaved with
// other commands. The Exchanger must not be used after fn returns.
func (d *Device) Transact(ctx context.Context, fn func(Exchanger) error) error {
	return d.withSession(ctx, func(s *session) error {
		return fn(s)
	})
}

// Exchange implements Exchanger.
func (s *session) Exchange(ctx context.Context, apdu []byte) (*APDUResponse, error) {
	out, err := frame.EncodeAPDU(s.device.address, apdu)
	if err != nil {
		return nil, fmt.Errorf("apdu: %w", err)
	}
	note := "apdu"
	if len(apdu) > 1 {
		note = fmt.Sprintf("apdu %02X", apdu[1])
	}
	raw, err := s.exchange(ctx, out, note)
	if err != nil {
		return nil, err
	}
	resp := NewAPDUResponse(raw)
	if !resp.IsSuccessful() {
		Debugf("%s: SW=%04X", note, resp.StatusWord())
	}
	return resp, nil
}
