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

//nolint:varnamelen // Test file - short vars acceptable
package desfire

import (
	"bytes"
	"context"
	"testing"

	"github.com/ZaparooProject/go-skad3"
	testutil "github.com/ZaparooProject/go-skad3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAppCard returns a card with testAID created and selected.
func newAppCard(t *testing.T, kt testutil.KeyType) (*Card, *testutil.VirtualDESFire, *tunnel) {
	t.Helper()
	card, vc, tn := newCardTunnel()
	vc.AddApplication(testAID, kt, 1)
	require.NoError(t, card.SelectApplication(context.Background(), testAID))
	return card, vc, tn
}

func TestCard_StdDataFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, vc, _ := newAppCard(t, testutil.KeyDES)

	require.NoError(t, card.CreateStdDataFile(ctx, PermissiveStdDataFile(0x01, 0x20)))
	require.NoError(t, card.WriteData(ctx, 0x01, 4, []byte("hello")))

	want := make([]byte, 0x20)
	copy(want[4:], "hello")
	stored, ok := vc.FileData(testAID, 0x01)
	require.True(t, ok)
	assert.Equal(t, want, stored)

	got, err := card.ReadData(ctx, 0x01, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = card.ReadData(ctx, 0x01, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	ids, err := card.GetFileIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, ids)

	settings, err := card.GetFileSettings(ctx, 0x01)
	require.NoError(t, err)
	assert.Equal(t, byte(FileTypeStdData), settings.FileType)
	assert.Equal(t, byte(PlainComms), settings.Comms)
	assert.Equal(t, [2]byte{PermissiveAccess, PermissiveAccess}, settings.AccessRights)
	size, ok := settings.Size()
	assert.True(t, ok)
	assert.Equal(t, uint32(0x20), size)

	_, err = card.ReadData(ctx, 0x01, 0x1E, 5)
	requireCardError(t, err, skad3.SWBoundaryError)

	err = card.CreateStdDataFile(ctx, PermissiveStdDataFile(0x01, 0x20))
	requireCardError(t, err, skad3.SWDuplicateError)

	require.NoError(t, card.DeleteFile(ctx, 0x01))
	_, err = card.GetFileSettings(ctx, 0x01)
	assert.True(t, IsNotFound(err))
}

func TestCard_ReadDataContinuation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, tn := newAppCard(t, testutil.KeyDES)

	content := make([]byte, 100)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, card.CreateStdDataFile(ctx, PermissiveStdDataFile(0x01, uint32(len(content)))))
	require.NoError(t, card.WriteData(ctx, 0x01, 0, content))

	before := len(tn.apdus)
	got, err := card.ReadData(ctx, 0x01, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Len(t, tn.apdus[before:], 2, "read and one additional frame")
}

func TestCard_WriteValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, tn := newAppCard(t, testutil.KeyDES)
	before := len(tn.apdus)

	require.ErrorIs(t, card.WriteData(ctx, 0x01, 0, nil), ErrInvalidParameter)
	require.ErrorIs(t, card.WriteData(ctx, 0x01, 0, make([]byte, MaxCommandData-6)), ErrInvalidParameter)
	require.ErrorIs(t, card.WriteRecord(ctx, 0x01, 0, nil), ErrInvalidParameter)
	assert.Len(t, tn.apdus, before, "nothing sent")
}

func TestCard_ProtectedFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, _ := newAppCard(t, testutil.KeyDES)

	f := StdDataFile{FileNo: 0x02, Comms: PlainComms, AccessRights: [2]byte{0x00, 0x00}, Size: 0x10}
	require.NoError(t, card.CreateStdDataFile(ctx, f))

	_, err := card.ReadData(ctx, 0x02, 0, 0)
	assert.True(t, IsPermissionDenied(err))

	res, err := card.AuthenticateDES(ctx, 0x00, make([]byte, 8))
	require.NoError(t, err)
	require.True(t, res.Authenticated)

	got, err := card.ReadData(ctx, 0x02, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 0x10, "DES sessions carry no CMAC")
}

func TestCard_ValueFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, _ := newAppCard(t, testutil.KeyDES)
	require.NoError(t, card.CreateValueFile(ctx, PermissiveValueFile(0x02)))

	require.NoError(t, card.Credit(ctx, 0x02, 5))
	v, err := card.GetValue(ctx, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v, "credit is pending until commit")

	require.NoError(t, card.CommitTransaction(ctx))
	v, err = card.GetValue(ctx, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)

	require.NoError(t, card.Debit(ctx, 0x02, 2))
	require.NoError(t, card.CommitTransaction(ctx))
	v, err = card.GetValue(ctx, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	err = card.Debit(ctx, 0x02, 10)
	requireCardError(t, err, skad3.SWBoundaryError)

	err = card.CommitTransaction(ctx)
	requireCardError(t, err, skad3.SWNoChanges)
}

func TestCard_CyclicRecordFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, _ := newAppCard(t, testutil.KeyDES)
	require.NoError(t, card.CreateCyclicRecordFile(ctx, PermissiveCyclicRecordFile(0x03)))

	for _, fill := range []byte{0x01, 0x02, 0x03} {
		require.NoError(t, card.WriteRecord(ctx, 0x03, 0, bytes.Repeat([]byte{fill}, 0x10)))
		require.NoError(t, card.CommitTransaction(ctx))
	}

	// three record slots keep two committed records, newest first
	got, err := card.ReadRecords(ctx, 0x03, 0, 0)
	require.NoError(t, err)
	want := append(bytes.Repeat([]byte{0x03}, 0x10), bytes.Repeat([]byte{0x02}, 0x10)...)
	assert.Equal(t, want, got)

	got, err = card.ReadRecords(ctx, 0x03, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x03}, 0x10), got)

	settings, err := card.GetFileSettings(ctx, 0x03)
	require.NoError(t, err)
	assert.Equal(t, byte(FileTypeCyclicRecord), settings.FileType)
	size, ok := settings.Size()
	assert.True(t, ok)
	assert.Equal(t, uint32(0x10), size)
}

func TestCard_AESSessionStripsCMAC(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, _, _ := newAppCard(t, testutil.KeyAES)

	res, err := card.AuthenticateAES(ctx, 0x00, make([]byte, 16))
	require.NoError(t, err)
	require.True(t, res.Authenticated)

	require.NoError(t, card.CreateStdDataFile(ctx, PermissiveStdDataFile(0x01, 0x10)))
	require.NoError(t, card.CreateValueFile(ctx, PermissiveValueFile(0x02)))
	require.NoError(t, card.WriteData(ctx, 0x01, 0, []byte("0123456789abcdef")))

	got, err := card.ReadData(ctx, 0x01, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), got)

	ids, err := card.GetFileIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, ids)

	settings, err := card.GetFileSettings(ctx, 0x01)
	require.NoError(t, err)
	assert.Len(t, settings.Details, 3)

	require.NoError(t, card.Credit(ctx, 0x02, 7))
	require.NoError(t, card.CommitTransaction(ctx))
	v, err := card.GetValue(ctx, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)
}

func TestCard_GetValueShortReply(t *testing.T) {
	t.Parallel()

	card, _ := newScriptedTunnel(testutil.SW(skad3.SWOperationOK, 0x01, 0x02))
	_, err := card.GetValue(context.Background(), 0x02)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCard_ValueWireEncoding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, tn := newScriptedTunnel(
		testutil.SW(skad3.SWOperationOK),
		testutil.SW(skad3.SWOperationOK),
		testutil.SW(skad3.SWOperationOK, 0x00, 0x00, 0x01, 0x2C),
	)

	require.NoError(t, card.Credit(ctx, 0x02, 100))
	require.NoError(t, card.Debit(ctx, 0x02, 0x01020304))
	v, err := card.GetValue(ctx, 0x02)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), v)

	// amounts travel most significant byte first
	require.Len(t, tn.apdus, 3)
	assert.Equal(t, WrapCommand(CmdCredit, 0x02, 0x00, 0x00, 0x00, 0x64), tn.apdus[0])
	assert.Equal(t, WrapCommand(CmdDebit, 0x02, 0x01, 0x02, 0x03, 0x04), tn.apdus[1])
	assert.Equal(t, WrapCommand(CmdGetValue, 0x02), tn.apdus[2])
}
