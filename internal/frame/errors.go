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

import (
	"errors"
	"fmt"
)

// Frame errors
var (
	ErrDesync       = errors.New("frame desynchronized")
	ErrChecksum     = errors.New("checksum mismatch")
	ErrDataTooLarge = errors.New("frame text too large")
)

// DesyncError reports an inbound frame whose structure could not be
// recovered, typically because the leading ACK heuristic picked the wrong
// offset for the length field.
type DesyncError struct {
	Reason string
	Header []byte // header bytes after ACK correction
	Length int    // declared text length, -1 if never parsed
}

func (e *DesyncError) Error() string {
	if e.Length >= 0 {
		return fmt.Sprintf("frame desync: %s (header % X, length %d)", e.Reason, e.Header, e.Length)
	}
	return fmt.Sprintf("frame desync: %s (header % X)", e.Reason, e.Header)
}

func (*DesyncError) Unwrap() error {
	return ErrDesync
}

// ChecksumError reports a frame whose trailing BCC does not match the XOR of
// the preceding bytes.
type ChecksumError struct {
	Frame    []byte
	Computed byte
	Received byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("frame checksum mismatch: computed 0x%02X, received 0x%02X", e.Computed, e.Received)
}

func (*ChecksumError) Unwrap() error {
	return ErrChecksum
}

func newDesyncError(reason string, header []byte, length int) *DesyncError {
	h := make([]byte, len(header))
	copy(h, header)
	return &DesyncError{Reason: reason, Header: h, Length: length}
}
