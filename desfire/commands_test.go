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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want []byte
		ins  byte
	}{
		{name: "no data", ins: CmdGetVersion, want: []byte{0x90, 0x60, 0x00, 0x00, 0x00}},
		{name: "one byte", ins: CmdAuthenticateAES, data: []byte{0x00}, want: []byte{0x90, 0xAA, 0x00, 0x00, 0x01, 0x00, 0x00}},
		{
			name: "select application",
			ins:  CmdSelectApplication,
			data: []byte{0xF0, 0x01, 0xA1},
			want: []byte{0x90, 0x5A, 0x00, 0x00, 0x03, 0xF0, 0x01, 0xA1, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, WrapCommand(tt.ins, tt.data...))
		})
	}
}

func TestUint24(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    uint32
		want [3]byte
	}{
		{v: 0, want: [3]byte{0, 0, 0}},
		{v: 0x10, want: [3]byte{0x10, 0, 0}},
		{v: 0x123456, want: [3]byte{0x56, 0x34, 0x12}},
		{v: 0xFFFFFF, want: [3]byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Uint24(tt.v))
		assert.Equal(t, tt.v, ParseUint24(tt.want))
	}

	// bits above 24 are dropped
	assert.Equal(t, [3]byte{0x01, 0x00, 0x00}, Uint24(0x01000001))
}
