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
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyUpdate(t *testing.T) {
	t.Parallel()

	newKey := bytes.Repeat([]byte{0x11}, 16)

	tests := []struct {
		name       string
		sessionKey []byte
		alg        Algorithm
		wantLen    int
		padding    int
	}{
		{name: "DES session", sessionKey: []byte{1, 2, 3, 4, 5, 6, 7, 8}, alg: AlgorithmDES, wantLen: 24, padding: 3},
		{name: "AES session", sessionKey: bytes.Repeat([]byte{0x5A}, 16), alg: AlgorithmAES128, wantLen: 32, padding: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := BuildKeyUpdate(tt.sessionKey, PICCMasterKeySlot, newKey, 0x01)
			require.NoError(t, err)
			require.Len(t, out, tt.wantLen)

			block, err := tt.alg.newCipher(tt.sessionKey)
			require.NoError(t, err)
			plain, err := cbcDecrypt(block, make([]byte, block.BlockSize()), out)
			require.NoError(t, err)

			crcInput := append([]byte{CmdChangeKey, PICCMasterKeySlot}, newKey...)
			crcInput = append(crcInput, 0x01)
			want := append(bytes.Clone(newKey), 0x01)
			want = append(want, ByteReverse(CRC32(crcInput))...)
			want = append(want, make([]byte, tt.padding)...)
			if diff := cmp.Diff(want, plain); diff != "" {
				t.Errorf("key update plaintext mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildKeyUpdate_DependsOnSlotAndVersion(t *testing.T) {
	t.Parallel()

	session := make([]byte, 16)
	newKey := bytes.Repeat([]byte{0x22}, 16)
	a, err := BuildKeyUpdate(session, 0x80, newKey, 0x02)
	require.NoError(t, err)
	b, err := BuildKeyUpdate(session, 0x00, newKey, 0x02)
	require.NoError(t, err)
	c, err := BuildKeyUpdate(session, 0x80, newKey, 0x03)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBuildKeyUpdate_ShortCRC(t *testing.T) {
	t.Parallel()

	// CRC32(C4 80 00..00 0D 00) is 0x004397C6, which reverses to three bytes
	newKey := append(make([]byte, 15), 0x0D)
	crcInput := append([]byte{CmdChangeKey, PICCMasterKeySlot}, newKey...)
	crcInput = append(crcInput, 0x00)
	crc := CRC32(crcInput)
	require.Equal(t, uint32(0x004397C6), crc)
	require.Len(t, ByteReverse(crc), 3)

	tests := []struct {
		name       string
		sessionKey []byte
		alg        Algorithm
		wantLen    int
	}{
		{name: "DES session", sessionKey: make([]byte, 8), alg: AlgorithmDES, wantLen: 24},
		{name: "AES session", sessionKey: make([]byte, 16), alg: AlgorithmAES128, wantLen: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := BuildKeyUpdate(tt.sessionKey, PICCMasterKeySlot, newKey, 0x00)
			require.NoError(t, err)
			require.Len(t, out, tt.wantLen)

			block, err := tt.alg.newCipher(tt.sessionKey)
			require.NoError(t, err)
			plain, err := cbcDecrypt(block, make([]byte, block.BlockSize()), out)
			require.NoError(t, err)

			want := append(bytes.Clone(newKey), 0x00)
			want = binary.LittleEndian.AppendUint32(want, crc)
			want = append(want, make([]byte, tt.wantLen-len(want))...)
			if diff := cmp.Diff(want, plain); diff != "" {
				t.Errorf("key update plaintext mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildKeyUpdate_Errors(t *testing.T) {
	t.Parallel()

	// 11 key bytes, the version and a full CRC fill a block exactly
	alignedKey := bytes.Repeat([]byte{0x11}, 11)

	tests := []struct {
		name       string
		sessionKey []byte
		newKey     []byte
	}{
		{name: "session key too short", sessionKey: make([]byte, 4), newKey: make([]byte, 16)},
		{name: "session key 24 bytes", sessionKey: make([]byte, 24), newKey: make([]byte, 16)},
		{name: "empty new key", sessionKey: make([]byte, 16), newKey: nil},
		{name: "no room for AES padding", sessionKey: make([]byte, 16), newKey: alignedKey},
		{name: "no room for DES padding", sessionKey: make([]byte, 8), newKey: alignedKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildKeyUpdate(tt.sessionKey, PICCMasterKeySlot, tt.newKey, 0x00)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}
