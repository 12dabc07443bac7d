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

const crcPoly = 0xEDB88320

// CRC32 is the reflected CRC-32 used by ChangeKey: polynomial 0xEDB88320,
// initial value 0xFFFFFFFF and no final complement. It is therefore the
// bitwise inverse of crc32.ChecksumIEEE.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b)
		for range 8 {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPoly
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// ByteReverse returns the minimal big-endian encoding of v in reverse
// (least significant byte first). Leading zero bytes are not emitted, so a
// CRC below 0x01000000 yields fewer than four bytes; 0 yields a single zero
// byte.
func ByteReverse(v uint32) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	out := make([]byte, 0, 4)
	for v != 0 {
		out = append(out, byte(v))
		v >>= 8
	}
	return out
}
