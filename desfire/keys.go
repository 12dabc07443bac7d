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
	"fmt"
)

// BuildKeyUpdate assembles the enciphered ChangeKey payload for keySlot:
//
//	newKey || keyVersion || reversed CRC32(C4 || keySlot || newKey || keyVersion) || zero padding
//
// enciphered CBC with a zero IV under the session key. An 8-byte session key
// selects DES, a 16-byte one AES. Padding fills the last cipher block, which
// is 3 bytes for DES and 11 for AES with a 16-byte key and a 4-byte CRC. A
// CRC with a zero high byte gains its missing fourth byte from the padding.
func BuildKeyUpdate(sessionKey []byte, keySlot byte, newKey []byte, keyVersion byte) ([]byte, error) {
	var alg Algorithm
	switch len(sessionKey) {
	case 8:
		alg = AlgorithmDES
	case 16:
		alg = AlgorithmAES128
	default:
		return nil, fmt.Errorf("%w: session key must be 8 or 16 bytes, got %d", ErrInvalidParameter, len(sessionKey))
	}
	if len(newKey) == 0 {
		return nil, fmt.Errorf("%w: empty new key", ErrInvalidParameter)
	}

	crcInput := make([]byte, 0, 3+len(newKey))
	crcInput = append(crcInput, CmdChangeKey, keySlot)
	crcInput = append(crcInput, newKey...)
	crcInput = append(crcInput, keyVersion)
	crc := ByteReverse(CRC32(crcInput))

	bs := alg.BlockSize()
	used := len(newKey) + 1 + len(crc)
	if used%bs == 0 {
		return nil, fmt.Errorf("%w: key update of %d bytes leaves no room for padding", ErrInvalidParameter, used)
	}
	padding := bs - used%bs

	plain := make([]byte, 0, used+padding)
	plain = append(plain, newKey...)
	plain = append(plain, keyVersion)
	plain = append(plain, crc...)
	plain = append(plain, make([]byte, padding)...)

	block, err := alg.newCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	out, err := cbcEncrypt(block, make([]byte, block.BlockSize()), plain)
	if err != nil {
		return nil, fmt.Errorf("key update for slot 0x%02X: %w", keySlot, err)
	}
	return out, nil
}
