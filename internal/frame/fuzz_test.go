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

import (
	"testing"
)

// =============================================================================
// Fuzz Tests for Frame Parsing
// =============================================================================
// Malformed input from the dispenser (line noise, a missed ACK, a reply
// truncated by a power glitch) must never panic the decoder.
//
// Run with: go test -fuzz=FuzzDecode -fuzztime=30s ./internal/frame/

// FuzzDecode feeds arbitrary streams to the decoder.
func FuzzDecode(f *testing.F) {
	f.Add(append([]byte{ACK}, reply(PMT, 0x31, 0x30, 0x30, 0x31, 0x30)...))
	f.Add(reply(EMT, 0x30, 0x31, 0x42, 0x30))
	f.Add([]byte{})
	f.Add([]byte{ACK})
	f.Add([]byte{ACK, ACK, ACK, ACK, ACK, ACK})
	f.Add([]byte{STX, 0x00, 0x00, 0x00, 0x00})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, stream []byte) {
		frm, err := Decode(&streamReader{data: stream}, testOptions())
		if err != nil {
			return
		}
		// Anything accepted must be a structurally valid frame
		if frm[0] != STX || frm[len(frm)-2] != ETX {
			t.Fatalf("accepted malformed frame % X", frm)
		}
		if TextLength(frm) != len(frm)-PrefixSize-TrailerSize {
			t.Fatalf("length field %d disagrees with frame % X", TextLength(frm), frm)
		}
		if BCC(frm[:len(frm)-1]) != frm[len(frm)-1] {
			t.Fatalf("accepted frame with bad checksum % X", frm)
		}
	})
}

// FuzzEncodeDecode checks that every encoded APDU frame decodes back to itself.
func FuzzEncodeDecode(f *testing.F) {
	f.Add(byte(0x00), []byte{0x90, 0x60, 0x00, 0x00, 0x00})
	f.Add(byte(0x0F), []byte{})
	f.Add(byte(0x06), []byte{ACK, ACK})

	f.Fuzz(func(t *testing.T, addr byte, apdu []byte) {
		frm, err := EncodeAPDU(addr, apdu)
		if err != nil {
			return
		}
		for _, stream := range [][]byte{frm, append([]byte{ACK}, frm...)} {
			got, err := Decode(&streamReader{data: stream}, testOptions())
			if err != nil {
				t.Fatalf("Decode(% X) error: %v", stream, err)
			}
			if string(got) != string(frm) {
				t.Fatalf("Decode(% X) = % X", stream, got)
			}
		}
	})
}

// FuzzBCC checks checksum determinism and self-inverse behavior.
func FuzzBCC(f *testing.F) {
	f.Add([]byte{0xF2, 0x00})
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		sum := BCC(data)
		if BCC(append(append([]byte(nil), data...), sum)) != 0 {
			t.Errorf("BCC(data || BCC(data)) != 0 for % X", data)
		}
	})
}
