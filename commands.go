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
	"sort"
	"strings"

	"github.com/ZaparooProject/go-skad3/internal/frame"
)

// Basic command codes (CM)
const (
	cmdInit          = 0x30
	cmdStatusSense   = 0x31
	cmdMoveCard      = 0x32
	cmdSetInsertion  = 0x33
	cmdAutoTestCard  = 0x50
	cmdRFCardOperate = frame.APDUCommand
)

// Basic command parameters (PM)
const (
	paramProvideStatus  = 0x30
	paramAllowInsertion = 0x30
	paramDenyInsertion  = 0x31
	paramTestRFCard     = 0x31
	paramActivateRF     = 0x30
	paramDeactivateRF   = 0x31
)

// InitPosition selects where a card left in the transport is moved during
// initialization, and whether the capture counter is used.
type InitPosition byte

// Initialization positions
const (
	InitFront              InitPosition = 0x30
	InitCapture            InitPosition = 0x31
	InitNoMove             InitPosition = 0x33
	InitFrontWithCounter   InitPosition = 0x34
	InitCaptureWithCounter InitPosition = 0x35
	InitNoMoveWithCounter  InitPosition = 0x37
)

var initPositionNames = map[string]InitPosition{
	"front":                InitFront,
	"capture":              InitCapture,
	"no_move":              InitNoMove,
	"front_with_counter":   InitFrontWithCounter,
	"capture_with_counter": InitCaptureWithCounter,
	"no_move_with_counter": InitNoMoveWithCounter,
}

// ParseInitPosition parses a position name such as "capture" or
// "front_with_counter".
func ParseInitPosition(name string) (InitPosition, error) {
	p, ok := initPositionNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: init position %q, must be one of %s",
			ErrInvalidParameter, name, strings.Join(sortedKeys(initPositionNames), ", "))
	}
	return p, nil
}

func (p InitPosition) String() string {
	for name, v := range initPositionNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("InitPosition(0x%02X)", byte(p))
}

// CardPosition is a MoveCard target.
type CardPosition byte

// Card positions
const (
	PositionFront   CardPosition = 0x30
	PositionIC      CardPosition = 0x31
	PositionRF      CardPosition = 0x32
	PositionCapture CardPosition = 0x33
	PositionGate    CardPosition = 0x39
)

var cardPositionNames = map[string]CardPosition{
	"front":   PositionFront,
	"ic":      PositionIC,
	"rf":      PositionRF,
	"capture": PositionCapture,
	"gate":    PositionGate,
}

// ParseCardPosition parses a position name, case-insensitively.
func ParseCardPosition(name string) (CardPosition, error) {
	p, ok := cardPositionNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: card position %q, must be one of %s",
			ErrInvalidParameter, name, strings.Join(sortedKeys(cardPositionNames), ", "))
	}
	return p, nil
}

func (p CardPosition) String() string {
	for name, v := range cardPositionNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("CardPosition(0x%02X)", byte(p))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RFCardKind selects the modulation used by ActivateRFCard.
type RFCardKind int

// RF card kinds
const (
	RFTypeA RFCardKind = iota
	RFTypeB
)

// RFCardType is the result of AutoTestRFCardType.
type RFCardType struct {
	Name string
	Code [2]byte // two ASCII digits
}

func (t RFCardType) String() string {
	return t.Name
}

var rfCardTypes = map[[2]byte]string{
	{'0', '0'}: "Unknown RF card type",
	{'1', '0'}: "Mifare one S50 card",
	{'1', '1'}: "Mifare one S70 card",
	{'1', '2'}: "Mifare one UL card",
	{'2', '0'}: "Type A CPU card",
	{'3', '0'}: "Type B CPU card",
}

// Init initializes the dispenser. It must be sent after power-up before any
// other command is accepted.
func (d *Device) Init(ctx context.Context, position InitPosition) (*Response, error) {
	return d.basic(ctx, "init", cmdInit, byte(position))
}

// MoveCard moves the card in the transport to position.
func (d *Device) MoveCard(ctx context.Context, position CardPosition) (*Response, error) {
	return d.basic(ctx, "move card", cmdMoveCard, byte(position))
}

// GetStatus queries the dispenser, stacker and capture box sensors.
// A negative reply returns a zero DeviceStatus with the response.
func (d *Device) GetStatus(ctx context.Context) (DeviceStatus, *Response, error) {
	resp, err := d.basic(ctx, "status", cmdStatusSense, paramProvideStatus)
	if err != nil {
		return DeviceStatus{}, nil, err
	}
	if !resp.IsSuccessful() {
		return DeviceStatus{}, resp, nil
	}
	status, err := resp.Status()
	if err != nil {
		return DeviceStatus{}, resp, fmt.Errorf("status: %w", err)
	}
	return status, resp, nil
}

// SetInsertion allows or denies card insertion from the front.
func (d *Device) SetInsertion(ctx context.Context, allow bool) (*Response, error) {
	param := byte(paramDenyInsertion)
	if allow {
		param = paramAllowInsertion
	}
	return d.basic(ctx, "set insertion", cmdSetInsertion, param)
}

// AutoTestRFCardType identifies the card currently at the RF position.
func (d *Device) AutoTestRFCardType(ctx context.Context) (RFCardType, *Response, error) {
	resp, err := d.basic(ctx, "auto test card type", cmdAutoTestCard, paramTestRFCard)
	if err != nil {
		return RFCardType{}, nil, err
	}
	if !resp.IsSuccessful() {
		return RFCardType{}, resp, nil
	}
	raw := resp.Raw
	if len(raw) < frame.OffsetData+frame.TrailerSize {
		return RFCardType{}, resp, fmt.Errorf("auto test card type: %w: %d bytes", ErrInvalidResponse, len(raw))
	}
	code := [2]byte{raw[len(raw)-4], raw[len(raw)-3]}
	name, ok := rfCardTypes[code]
	if !ok {
		return RFCardType{}, resp, fmt.Errorf("auto test card type %q: %w", code[:], ErrUnknownCode)
	}
	return RFCardType{Code: code, Name: name}, resp, nil
}

// ActivateRFCard powers the antenna and activates the card at the RF
// position.
func (d *Device) ActivateRFCard(ctx context.Context, kind RFCardKind) (*Response, error) {
	var sets []byte
	switch kind {
	case RFTypeA:
		sets = []byte{0x41, 0x30}
	case RFTypeB:
		sets = []byte{0x30, 0x41}
	default:
		return nil, fmt.Errorf("%w: RF card kind %d", ErrInvalidParameter, kind)
	}
	return d.basic(ctx, "activate RF card", cmdRFCardOperate, paramActivateRF, sets...)
}

// DeactivateRFCard closes all antenna output signals.
func (d *Device) DeactivateRFCard(ctx context.Context) (*Response, error) {
	return d.basic(ctx, "deactivate RF card", cmdRFCardOperate, paramDeactivateRF)
}
