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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-skad3"
)

// UIDSize is the length of a DESFire EV1 UID.
const UIDSize = 7

// Version is the reply to GetVersion, spread over three frames.
type Version struct {
	Hardware       []byte // vendor, type, subtype, major, minor, storage, protocol
	Software       []byte
	UID            []byte
	BatchNo        []byte
	ProductionWeek byte
	ProductionYear byte
}

// UIDString returns the UID as upper-case hex.
func (v *Version) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(v.UID))
}

// GetVersion reads the hardware, software and production information.
func (c *Card) GetVersion(ctx context.Context) (*Version, error) {
	var frames [3][]byte
	err := c.tunnel.Transact(ctx, func(ex skad3.Exchanger) error {
		ins := byte(CmdGetVersion)
		for i := range frames {
			resp, err := command(ctx, ex, ins)
			if err != nil {
				return err
			}
			frames[i] = append([]byte(nil), resp.Data()...)
			ins = CmdAdditionalFrame
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}

	last := frames[2]
	if len(last) < UIDSize {
		return nil, fmt.Errorf("get version: %w: third frame is %d bytes", ErrInvalidResponse, len(last))
	}
	v := &Version{
		Hardware: frames[0],
		Software: frames[1],
		UID:      last[:UIDSize],
	}
	if len(last) >= 14 {
		v.BatchNo = last[7:12]
		v.ProductionWeek = last[12]
		v.ProductionYear = last[13]
	}
	return v, nil
}

// GetCardUID returns the 7-byte UID as 14 upper-case hex digits. It does
// not require authentication.
func (c *Card) GetCardUID(ctx context.Context) (string, error) {
	v, err := c.GetVersion(ctx)
	if err != nil {
		return "", err
	}
	return v.UIDString(), nil
}

// GetApplicationIDs lists the applications on the card. A card without
// applications returns an empty list.
func (c *Card) GetApplicationIDs(ctx context.Context) ([]AID, error) {
	var data []byte
	err := c.tunnel.Transact(ctx, func(ex skad3.Exchanger) error {
		var err error
		data, _, err = commandAll(ctx, ex, CmdGetApplicationIDs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get application IDs: %w", err)
	}
	return splitAIDs(data)
}

// splitAIDs chunks an ID list into AIDs. While authenticated the card
// appends an 8-byte CMAC, which leaves the list short of a multiple of three
// and is stripped.
func splitAIDs(data []byte) ([]AID, error) {
	if len(data)%len(AID{}) != 0 && len(data) >= cmacSize {
		data = data[:len(data)-cmacSize]
	}
	if len(data)%len(AID{}) != 0 {
		return nil, fmt.Errorf("%w: application ID list of %d bytes", ErrInvalidResponse, len(data))
	}
	aids := make([]AID, 0, len(data)/3)
	for i := 0; i < len(data); i += 3 {
		aids = append(aids, AID{data[i], data[i+1], data[i+2]})
	}
	return aids, nil
}

// SelectApplication selects aid; 000000 is the PICC itself. Selecting drops
// any authentication.
func (c *Card) SelectApplication(ctx context.Context, aid AID) error {
	c.resetAuth()
	if _, err := c.run(ctx, CmdSelectApplication, aid[:]...); err != nil {
		return fmt.Errorf("select application %s: %w", aid, err)
	}
	return nil
}

// CreateApplication creates app on the card.
func (c *Card) CreateApplication(ctx context.Context, app Application) error {
	if _, err := c.run(ctx, CmdCreateApplication, app.bytes()...); err != nil {
		return fmt.Errorf("create application %s: %w", app.AID, err)
	}
	return nil
}

// DeleteApplication deletes aid and all its files.
func (c *Card) DeleteApplication(ctx context.Context, aid AID) error {
	if _, err := c.run(ctx, CmdDeleteApplication, aid[:]...); err != nil {
		return fmt.Errorf("delete application %s: %w", aid, err)
	}
	return nil
}

// FormatPICC erases every application. It requires PICC master key
// authentication.
func (c *Card) FormatPICC(ctx context.Context) error {
	if _, err := c.run(ctx, CmdFormatPICC); err != nil {
		return fmt.Errorf("format PICC: %w", err)
	}
	return nil
}
