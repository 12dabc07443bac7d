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

package frame

// Command Package markers
const (
	STX = 0xF2 // Start of text
	ETX = 0x03 // End of text
	ACK = 0x06 // Acknowledge, frequently prepended to inbound frames
	NAK = 0x15 // Negative acknowledge
	EOT = 0x04 // Clear the line
)

// Message type markers
const (
	CMT = 0x43 // 'C' command from host
	PMT = 0x50 // 'P' positive reply
	EMT = 0x4E // 'N' negative reply
)

// APDU tunnel control bytes. CM 0x60 is the RF card operation command and
// PM 0x34 selects Type A T=CL APDU exchange.
const (
	APDUCommand   = 0x60
	APDUParameter = 0x34
)

// Fixed offsets into a Command Package
const (
	OffsetAddress   = 1
	OffsetLength    = 2 // LEN_HI, LEN_LO follows
	OffsetMsgType   = 4
	OffsetCommand   = 5
	OffsetParameter = 6
	OffsetStatus    = 7  // st0 st1 st2 on positive replies, E1 E2 on negative ones
	OffsetData      = 10 // first byte after the three status bytes
)

// Frame size limits
const (
	HeaderSize    = 5    // bytes read before the length is known
	PrefixSize    = 4    // STX ADDR LEN_HI LEN_LO
	TrailerSize   = 2    // ETX BCC
	MinTextLength = 3    // MSG_TYPE CM PM
	MaxTextLength = 1024 // device receive buffer
	// APDUOverhead is the CMT CM PM prefix counted by the length field of
	// APDU-wrapping frames on top of the APDU itself.
	APDUOverhead = 3
)
