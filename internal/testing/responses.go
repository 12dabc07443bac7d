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

package testing

import (
	"github.com/ZaparooProject/go-skad3/internal/frame"
)

// Status is the st0 st1 st2 block of a positive reply.
type Status [3]byte

// Common status blocks
var (
	// StatusIdle: dispenser empty, stacker well stocked, capture box has room
	StatusIdle = Status{0x30, 0x32, 0x30}
	// StatusCardAtRF: a card sits at the RF/IC position
	StatusCardAtRF = Status{0x32, 0x32, 0x30}
)

// BuildReply builds a complete reply frame without the leading ACK.
func BuildReply(addr, msgType, cm, pm byte, body ...byte) []byte {
	text := 3 + len(body)
	out := make([]byte, 0, frame.PrefixSize+text+frame.TrailerSize)
	out = append(out, frame.STX, addr, byte(text>>8), byte(text), msgType, cm, pm)
	out = append(out, body...)
	out = append(out, frame.ETX)
	return append(out, frame.BCC(out))
}

// BuildPositiveReply builds a PMT reply carrying status and data.
func BuildPositiveReply(addr, cm, pm byte, status Status, data ...byte) []byte {
	body := make([]byte, 0, len(status)+len(data))
	body = append(body, status[:]...)
	body = append(body, data...)
	return BuildReply(addr, frame.PMT, cm, pm, body...)
}

// BuildNegativeReply builds an EMT reply carrying a two-byte error code.
func BuildNegativeReply(addr, cm, pm byte, code uint16) []byte {
	return BuildReply(addr, frame.EMT, cm, pm, byte(code>>8), byte(code))
}

// BuildAPDUReply builds a positive APDU tunnel reply. cardResp is the card
// response including SW1 SW2.
func BuildAPDUReply(addr byte, status Status, cardResp []byte) []byte {
	return BuildPositiveReply(addr, frame.APDUCommand, frame.APDUParameter, status, cardResp...)
}

// WithACK prepends the 0x06 the dispenser usually sends ahead of a reply.
func WithACK(reply []byte) []byte {
	return append([]byte{frame.ACK}, reply...)
}

// SW appends a status word to data.
func SW(sw uint16, data ...byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	return append(out, byte(sw>>8), byte(sw))
}
