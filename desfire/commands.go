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

// Native command codes
const (
	CmdAuthenticateLegacy = 0x0A
	CmdAuthenticateAES    = 0xAA

	CmdCreateApplication = 0xCA
	CmdDeleteApplication = 0xDA
	CmdGetApplicationIDs = 0x6A
	CmdSelectApplication = 0x5A
	CmdFormatPICC        = 0xFC
	CmdGetVersion        = 0x60
	CmdGetKeyVersion     = 0x64
	CmdChangeKey         = 0xC4

	CmdCreateStdDataFile      = 0xCD
	CmdCreateValueFile        = 0xCC
	CmdCreateCyclicRecordFile = 0xC0
	CmdDeleteFile             = 0xDF
	CmdGetFileIDs             = 0x6F
	CmdGetFileSettings        = 0xF5

	CmdReadData          = 0xBD
	CmdWriteData         = 0x3D
	CmdGetValue          = 0x6C
	CmdCredit            = 0x0C
	CmdDebit             = 0xDC
	CmdReadRecords       = 0xBB
	CmdWriteRecord       = 0x3B
	CmdCommitTransaction = 0xC7

	CmdAdditionalFrame = 0xAF
)

// ISO 7816-4 wrapping
const (
	wrapCLA = 0x90
	// MaxCommandData is the largest data field of a short APDU.
	MaxCommandData = 0xFF
)

// PICCMasterKeySlot is the key number sent by ChangePICCMasterKey. The
// 0x80 flag marks the new PICC master key as an AES key.
const PICCMasterKeySlot = 0x80

// cmacSize is the MAC appended to plain replies while authenticated.
const cmacSize = 8

// WrapCommand wraps a native command as 90 INS 00 00 [Lc data] 00.
func WrapCommand(ins byte, data ...byte) []byte {
	apdu := make([]byte, 0, 6+len(data))
	apdu = append(apdu, wrapCLA, ins, 0x00, 0x00)
	if len(data) > 0 {
		apdu = append(apdu, byte(len(data)))
		apdu = append(apdu, data...)
	}
	return append(apdu, 0x00)
}

// Uint24 encodes v as the 3-byte little-endian field used for offsets,
// lengths and sizes.
func Uint24(v uint32) [3]byte {
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// ParseUint24 decodes a 3-byte little-endian field.
func ParseUint24(b [3]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
