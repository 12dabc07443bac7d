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
	"encoding/hex"
	"fmt"
	"strings"
)

// Key settings bits of CreateApplication
const (
	AllowChangeMasterKey    = 0x01
	AllowListApplications   = 0x02
	AllowCreateApplications = 0x04
	AllowChangeConfig       = 0x08
)

// Application settings: key type in the high bits, key count in the low
// nibble.
const (
	UseDES    = 0x00
	Use3K3DES = 0x20
	UseAES    = 0x80
)

// File communication settings and access rights
const (
	PlainComms       = 0x00
	MACComms         = 0x01
	EncipheredComms  = 0x03
	PermissiveAccess = 0xEE // free access for every right
)

// AID is a 3-byte application identifier, sent as stored.
type AID [3]byte

// ParseAID parses six hex digits.
func ParseAID(s string) (AID, error) {
	var aid AID
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil || len(b) != len(aid) {
		return aid, fmt.Errorf("%w: AID %q must be 6 hex digits", ErrInvalidParameter, s)
	}
	copy(aid[:], b)
	return aid, nil
}

func (a AID) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

// Application is the blueprint for CreateApplication.
type Application struct {
	AID         AID
	KeySettings byte
	AppSettings byte
}

// PermissiveApplication returns an application with all key settings
// allowed and a single AES key.
func PermissiveApplication(aid AID) Application {
	return Application{
		AID:         aid,
		KeySettings: AllowChangeMasterKey | AllowListApplications | AllowCreateApplications | AllowChangeConfig,
		AppSettings: UseAES | 0x01,
	}
}

// KeyCount returns the number of keys encoded in AppSettings.
func (a Application) KeyCount() int {
	return int(a.AppSettings & 0x0F)
}

func (a Application) bytes() []byte {
	return []byte{a.AID[0], a.AID[1], a.AID[2], a.KeySettings, a.AppSettings}
}

// StdDataFile is the blueprint for CreateStdDataFile.
type StdDataFile struct {
	AccessRights [2]byte
	Size         uint32
	FileNo       byte
	Comms        byte
}

// PermissiveStdDataFile returns a plain free-access data file of size bytes.
func PermissiveStdDataFile(fileNo byte, size uint32) StdDataFile {
	return StdDataFile{
		FileNo:       fileNo,
		Comms:        PlainComms,
		AccessRights: [2]byte{PermissiveAccess, PermissiveAccess},
		Size:         size,
	}
}

func (f StdDataFile) bytes() []byte {
	size := Uint24(f.Size)
	return []byte{f.FileNo, f.Comms, f.AccessRights[0], f.AccessRights[1], size[0], size[1], size[2]}
}

// ValueFile is the blueprint for CreateValueFile. Limits and the initial
// value are sent as the four bytes given.
type ValueFile struct {
	AccessRights  [2]byte
	LowerLimit    [4]byte
	UpperLimit    [4]byte
	InitialValue  [4]byte
	FileNo        byte
	Comms         byte
	LimitedCredit byte
}

// PermissiveValueFile returns a plain free-access value file with limits
// 0 and 00 00 00 7F.
func PermissiveValueFile(fileNo byte) ValueFile {
	return ValueFile{
		FileNo:       fileNo,
		Comms:        PlainComms,
		AccessRights: [2]byte{PermissiveAccess, PermissiveAccess},
		UpperLimit:   [4]byte{0x00, 0x00, 0x00, 0x7F},
	}
}

func (f ValueFile) bytes() []byte {
	out := make([]byte, 0, 17)
	out = append(out, f.FileNo, f.Comms, f.AccessRights[0], f.AccessRights[1])
	out = append(out, f.LowerLimit[:]...)
	out = append(out, f.UpperLimit[:]...)
	out = append(out, f.InitialValue[:]...)
	return append(out, f.LimitedCredit)
}

// CyclicRecordFile is the blueprint for CreateCyclicRecordFile.
type CyclicRecordFile struct {
	AccessRights [2]byte
	RecordSize   uint32
	MaxRecords   uint32
	FileNo       byte
	Comms        byte
}

// PermissiveCyclicRecordFile returns a plain free-access cyclic file of
// three 16-byte records.
func PermissiveCyclicRecordFile(fileNo byte) CyclicRecordFile {
	return CyclicRecordFile{
		FileNo:       fileNo,
		Comms:        PlainComms,
		AccessRights: [2]byte{PermissiveAccess, PermissiveAccess},
		RecordSize:   0x10,
		MaxRecords:   0x03,
	}
}

func (f CyclicRecordFile) bytes() []byte {
	size := Uint24(f.RecordSize)
	count := Uint24(f.MaxRecords)
	return []byte{
		f.FileNo, f.Comms, f.AccessRights[0], f.AccessRights[1],
		size[0], size[1], size[2],
		count[0], count[1], count[2],
	}
}
