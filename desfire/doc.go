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

// Package desfire implements MIFARE DESFire EV1 card operations over the
// APDU tunnel of an SK-AD3 dispenser.
//
// Native DESFire commands are wrapped ISO 7816-4 style (CLA 0x90) and sent
// through a skad3.Transactor, so every operation, including the three
// frames of an authentication, runs under one channel acquisition:
//
//	dev, _ := skad3.New(ch)
//	card := desfire.NewCard(dev)
//	res, err := card.AuthenticateAES(ctx, 0x00, key)
//	if err == nil && res.Authenticated {
//	    _, err = card.ChangePICCMasterKey(ctx, newKey, res.SessionKey, 0x01)
//	}
//
// A failed authentication is reported through AuthResult, not as an error.
package desfire
