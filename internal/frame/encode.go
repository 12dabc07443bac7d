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

// EncodeBasic builds a device command frame:
//
//	[STX ADDR LENH LENL] [CMT CM PM (DATA) ETX] [BCC]
func EncodeBasic(addr, cmd, param byte, data ...byte) ([]byte, error) {
	text := make([]byte, 0, MinTextLength+len(data))
	text = append(text, CMT, cmd, param)
	text = append(text, data...)
	return encode(addr, text)
}

// EncodeAPDU wraps an APDU in an RF card exchange frame. CMT, CM and PM are
// part of the text field, so the length is len(apdu) + APDUOverhead.
func EncodeAPDU(addr byte, apdu []byte) ([]byte, error) {
	text := make([]byte, 0, APDUOverhead+len(apdu))
	text = append(text, CMT, APDUCommand, APDUParameter)
	text = append(text, apdu...)
	return encode(addr, text)
}

func encode(addr byte, text []byte) ([]byte, error) {
	if len(text) > MaxTextLength {
		return nil, ErrDataTooLarge
	}

	frm := make([]byte, 0, PrefixSize+len(text)+TrailerSize)
	frm = append(frm, STX, addr, byte(len(text)>>8), byte(len(text)))
	frm = append(frm, text...)
	frm = append(frm, ETX)
	frm = append(frm, BCC(frm))
	return frm, nil
}
