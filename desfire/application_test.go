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
	"context"
	"testing"

	"github.com/ZaparooProject/go-skad3"
	testutil "github.com/ZaparooProject/go-skad3/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAID = AID{0xF0, 0x01, 0xA1}

func TestCard_ApplicationLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, vc, _ := newCardTunnel()

	aids, err := card.GetApplicationIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, aids)

	require.NoError(t, card.CreateApplication(ctx, PermissiveApplication(testAID)))
	assert.True(t, vc.HasApplication(testAID))
	key, ok := vc.AppKey(testAID, 0)
	require.True(t, ok)
	assert.Equal(t, testutil.KeyAES, key.Type)

	err = card.CreateApplication(ctx, PermissiveApplication(testAID))
	requireCardError(t, err, skad3.SWDuplicateError)

	aids, err = card.GetApplicationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []AID{testAID}, aids)

	require.NoError(t, card.DeleteApplication(ctx, testAID))
	assert.False(t, vc.HasApplication(testAID))

	err = card.DeleteApplication(ctx, testAID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestCard_SelectApplication(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, vc, _ := newCardTunnel()
	vc.AddApplication(testAID, testutil.KeyDES, 1)

	res, err := card.AuthenticateDES(ctx, 0x00, make([]byte, 8))
	require.NoError(t, err)
	require.True(t, res.Authenticated)

	require.NoError(t, card.SelectApplication(ctx, testAID))
	_, ok := card.Authenticated()
	assert.False(t, ok, "selecting drops authentication")

	_, err = card.GetApplicationIDs(ctx)
	assert.True(t, IsPermissionDenied(err), "listing is a PICC level command: %v", err)

	err = card.SelectApplication(ctx, AID{0x12, 0x34, 0x56})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "select application 123456")

	require.NoError(t, card.SelectApplication(ctx, AID{}))
	aids, err := card.GetApplicationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []AID{testAID}, aids)
}

func TestCard_GetApplicationIDsContinuation(t *testing.T) {
	t.Parallel()

	card, vc, tn := newCardTunnel()
	want := make([]AID, 0, 25)
	for i := range 25 {
		aid := AID{0x10, 0x00, byte(i + 1)}
		vc.AddApplication(aid, testutil.KeyAES, 1)
		want = append(want, aid)
	}

	aids, err := card.GetApplicationIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, aids)
	require.Len(t, tn.apdus, 2)
	assert.Equal(t, WrapCommand(CmdAdditionalFrame), tn.apdus[1])
}

func TestCard_GetApplicationIDsStripsCMAC(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, vc, _ := newCardTunnel()
	piccKey := make([]byte, 16)
	vc.SetPICCKey(testutil.KeyAES, piccKey, 0x00)
	vc.AddApplication(testAID, testutil.KeyAES, 1)
	vc.AddApplication(AID{0xF0, 0x01, 0xA2}, testutil.KeyAES, 1)

	res, err := card.AuthenticateAES(ctx, 0x00, piccKey)
	require.NoError(t, err)
	require.True(t, res.Authenticated)

	aids, err := card.GetApplicationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []AID{testAID, {0xF0, 0x01, 0xA2}}, aids)
}

func TestSplitAIDs(t *testing.T) {
	t.Parallel()

	mac := []byte{0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, 0xA8}

	tests := []struct {
		name    string
		data    []byte
		want    []AID
		wantErr bool
	}{
		{name: "empty", data: nil, want: []AID{}},
		{name: "two", data: []byte{1, 2, 3, 4, 5, 6}, want: []AID{{1, 2, 3}, {4, 5, 6}}},
		{name: "mac only", data: mac, want: []AID{}},
		{name: "one with mac", data: append([]byte{1, 2, 3}, mac...), want: []AID{{1, 2, 3}}},
		{name: "ragged short", data: []byte{1, 2, 3, 4}, wantErr: true},
		{name: "ragged after mac", data: make([]byte, 10), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := splitAIDs(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCard_FormatPICC(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	card, vc, _ := newCardTunnel()
	vc.AddApplication(testAID, testutil.KeyDES, 1)

	err := card.FormatPICC(ctx)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.True(t, vc.HasApplication(testAID))

	res, err := card.AuthenticateDES(ctx, 0x00, make([]byte, 8))
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	require.NoError(t, card.FormatPICC(ctx))
	assert.False(t, vc.HasApplication(testAID))
}
