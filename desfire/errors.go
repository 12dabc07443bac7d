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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-skad3"
)

// Errors
var (
	ErrInvalidParameter = skad3.ErrInvalidParameter
	ErrInvalidResponse  = skad3.ErrInvalidResponse
	ErrAuthState        = errors.New("authentication step out of order")
)

// CardError is returned when the card answers a command with a status word
// outside the success set.
type CardError struct {
	Cmd byte   // native command code
	SW  uint16 // status word
}

func (e *CardError) Error() string {
	desc, err := skad3.DescribeStatusWord(e.SW)
	if err != nil {
		desc = "undocumented"
	}
	return fmt.Sprintf("card command 0x%02X failed with SW=0x%04X (%s)", e.Cmd, e.SW, desc)
}

// IsAuthError reports whether err is a card authentication error.
func IsAuthError(err error) bool {
	var ce *CardError
	if errors.As(err, &ce) {
		return ce.SW == skad3.SWAuthenticationError
	}
	return false
}

// IsPermissionDenied reports whether err is a permission denied error.
func IsPermissionDenied(err error) bool {
	var ce *CardError
	if errors.As(err, &ce) {
		return ce.SW == skad3.SWPermissionDenied
	}
	return false
}

// IsNotFound reports whether err names a missing application or file.
func IsNotFound(err error) bool {
	var ce *CardError
	if errors.As(err, &ce) {
		return ce.SW == skad3.SWApplicationNotFound || ce.SW == skad3.SWFileNotFound
	}
	return false
}
