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
	"github.com/stretchr/testify/require"
)

func TestParseAID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    AID
		wantErr bool
	}{
		{name: "upper case", input: "F001A1", want: AID{0xF0, 0x01, 0xA1}},
		{name: "lower case with prefix", input: "0xf001a1", want: AID{0xF0, 0x01, 0xA1}},
		{name: "picc", input: "000000", want: AID{}},
		{name: "too short", input: "F001", wantErr: true},
		{name: "too long", input: "F001A1B2", wantErr: true},
		{name: "not hex", input: "F0Z1A1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAID_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "F001A1", AID{0xF0, 0x01, 0xA1}.String())
	assert.Equal(t, "000000", AID{}.String())
}

func TestPermissiveApplication(t *testing.T) {
	t.Parallel()

	app := PermissiveApplication(AID{0xF0, 0x01, 0xA1})
	assert.Equal(t, 1, app.KeyCount())
	assert.Equal(t, []byte{0xF0, 0x01, 0xA1, 0x0F, 0x81}, app.bytes())
}

func TestFileBlueprints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{
			name: "std data file",
			got:  PermissiveStdDataFile(0x01, 0x20).bytes(),
			want: []byte{0x01, 0x00, 0xEE, 0xEE, 0x20, 0x00, 0x00},
		},
		{
			name: "value file",
			got:  PermissiveValueFile(0x02).bytes(),
			want: []byte{
				0x02, 0x00, 0xEE, 0xEE,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x7F,
				0x00, 0x00, 0x00, 0x00,
				0x00,
			},
		},
		{
			name: "cyclic record file",
			got:  PermissiveCyclicRecordFile(0x03).bytes(),
			want: []byte{0x03, 0x00, 0xEE, 0xEE, 0x10, 0x00, 0x00, 0x03, 0x00, 0x00},
		},
		{
			name: "enciphered data file",
			got: StdDataFile{
				FileNo:       0x04,
				Comms:        EncipheredComms,
				AccessRights: [2]byte{0x10, 0x00},
				Size:         0x0200,
			}.bytes(),
			want: []byte{0x04, 0x03, 0x10, 0x00, 0x00, 0x02, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFileSettings_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings FileSettings
		want     uint32
		ok       bool
	}{
		{name: "data file", settings: FileSettings{FileType: FileTypeStdData, Details: []byte{0x20, 0x01, 0x00}}, want: 0x0120, ok: true},
		{name: "record file", settings: FileSettings{FileType: FileTypeCyclicRecord, Details: []byte{0x10, 0, 0, 0x03, 0, 0}}, want: 0x10, ok: true},
		{name: "value file", settings: FileSettings{FileType: FileTypeValue, Details: make([]byte, 13)}},
		{name: "truncated", settings: FileSettings{FileType: FileTypeStdData, Details: []byte{0x20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.settings.Size()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
