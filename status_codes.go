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

import "fmt"

var dispenserStatusCodes = map[byte]string{
	0x30: "No Card Inside Card Dispenser",
	0x31: "One Card Inside Card Dispenser",
	0x32: "Card in RF/IC Position",
}

var stackerStatusCodes = map[byte]string{
	0x30: "No Card Inside Stacker",
	0x31: "A Few Cards Inside Stacker",
	0x32: "Sufficient Cards Inside Stacker",
}

var captureBoxStatusCodes = map[byte]string{
	0x30: "Capture Box Capacity NOT Full",
	0x31: "Capture Box Capacity Full",
}

var deviceErrorCodes = map[uint16]string{
	0x3030: "Undefined command",
	0x3031: "Command parameter error",
	0x3032: "Command execution sequence error",
	0x3033: "Hardware does not support command",
	0x3034: "Command data error in communication package",
	0x3035: "IC card contact deactivates",
	0x3130: "Card jam",
	0x3132: "sensor error",
	0x3133: "Too long card",
	0x3134: "Too short card",
	0x3430: "Card is withdrawn when retracting",
	0x3431: "IC card solenoid error",
	0x3433: "Disable to move to IC position",
	0x3435: "Card is moved by outer force",
	0x3530: "Counter overflow",
	0x3531: "Motor error",
	0x3630: "IC card power failure",
	0x3631: "IC card activation failure",
	0x3632: "IC card does not support current command",
	0x3635: "IC card deactivates",
	0x3636: "Current IC card does not support any command",
	0x3637: "IC card data transmission error",
	0x3638: "IC card data transmission timeout",
	0x3639: "CPU/SAM card does not conform to EMV standard",
	0x4130: "Stacker empty or no card inside stacker",
	0x4131: "Capture box capacity full",
	0x4230: "Card dispenser not reset",
}

// Status tables, as named in UnknownStatusCodeError.
const (
	TableDispenser  = "dispenser"
	TableStacker    = "stacker"
	TableCaptureBox = "capture box"
)

// StatusCode is one status byte with its description.
type StatusCode struct {
	Message string
	Code    byte
}

func (s StatusCode) String() string {
	return fmt.Sprintf("0x%02X (%s)", s.Code, s.Message)
}

// DeviceStatus is the st0/st1/st2 block carried by positive replies.
type DeviceStatus struct {
	Dispenser  StatusCode
	Stacker    StatusCode
	CaptureBox StatusCode
}

// CardInPosition reports whether a card sits at the RF/IC position.
func (s DeviceStatus) CardInPosition() bool {
	return s.Dispenser.Code == 0x32
}

// StackerEmpty reports whether the stacker holds no cards.
func (s DeviceStatus) StackerEmpty() bool {
	return s.Stacker.Code == 0x30
}

// CaptureBoxFull reports whether the capture box cannot take more cards.
func (s DeviceStatus) CaptureBoxFull() bool {
	return s.CaptureBox.Code == 0x31
}

func (s DeviceStatus) String() string {
	return fmt.Sprintf("dispenser=%s stacker=%s capture_box=%s", s.Dispenser, s.Stacker, s.CaptureBox)
}

// DeviceError is the error code carried by negative replies.
type DeviceError struct {
	Message string
	Code    uint16
}

func (e DeviceError) String() string {
	return fmt.Sprintf("0x%04X (%s)", e.Code, e.Message)
}

// LookupStatus resolves the three status bytes of a reply.
func LookupStatus(st0, st1, st2 byte) (DeviceStatus, error) {
	var status DeviceStatus
	var err error
	if status.Dispenser, err = lookupStatusCode(TableDispenser, dispenserStatusCodes, st0); err != nil {
		return DeviceStatus{}, err
	}
	if status.Stacker, err = lookupStatusCode(TableStacker, stackerStatusCodes, st1); err != nil {
		return DeviceStatus{}, err
	}
	if status.CaptureBox, err = lookupStatusCode(TableCaptureBox, captureBoxStatusCodes, st2); err != nil {
		return DeviceStatus{}, err
	}
	return status, nil
}

func lookupStatusCode(table string, codes map[byte]string, code byte) (StatusCode, error) {
	msg, ok := codes[code]
	if !ok {
		return StatusCode{}, &UnknownStatusCodeError{Table: table, Code: code}
	}
	return StatusCode{Code: code, Message: msg}, nil
}

// LookupError resolves a two-byte device error code.
func LookupError(code uint16) (DeviceError, error) {
	msg, ok := deviceErrorCodes[code]
	if !ok {
		return DeviceError{}, &UnknownErrorCodeError{Code: code}
	}
	return DeviceError{Code: code, Message: msg}, nil
}
