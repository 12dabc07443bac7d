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

// ValidateChecksum verifies that the final byte of a frame equals the BCC of
// everything before it.
func ValidateChecksum(frm []byte) error {
	if len(frm) < 2 {
		return newDesyncError("frame too short for checksum", frm, -1)
	}
	n := len(frm) - 1
	computed := BCC(frm[:n])
	if computed != frm[n] {
		cp := make([]byte, len(frm))
		copy(cp, frm)
		return &ChecksumError{Frame: cp, Computed: computed, Received: frm[n]}
	}
	return nil
}

// TextLength returns the big-endian length field of a frame prefix.
func TextLength(prefix []byte) int {
	return int(prefix[OffsetLength])<<8 | int(prefix[OffsetLength+1])
}

// validatePrefix checks the STX marker and the declared text length of an
// ACK-corrected header.
func validatePrefix(header []byte) (int, error) {
	if len(header) < PrefixSize {
		return -1, newDesyncError("header truncated", header, -1)
	}
	if header[0] != STX {
		return -1, newDesyncError("missing STX", header, -1)
	}
	length := TextLength(header)
	if length < MinTextLength || length > MaxTextLength {
		return length, newDesyncError("implausible length", header, length)
	}
	return length, nil
}

// validateTrailer checks that the byte before the checksum is ETX, which
// confirms that the length field was read from the right offset.
func validateTrailer(frm []byte, header []byte, length int) error {
	if len(frm) < TrailerSize || frm[len(frm)-TrailerSize] != ETX {
		return newDesyncError("ETX not at declared length", header, length)
	}
	return nil
}
