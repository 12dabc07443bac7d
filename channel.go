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

package skad3

// Channel is the byte link to an SK-AD3 dispenser. Implementations need not
// be safe for concurrent use; Device serializes access.
//
// A Channel is opened and closed around every top-level Device operation, so
// Open must succeed again after Close.
type Channel interface {
	// Open acquires the underlying link
	Open() error

	// Close releases the underlying link
	Close() error

	// Write sends the full buffer
	Write(data []byte) error

	// Read blocks until exactly n bytes are available or the link fails
	Read(n int) ([]byte, error)

	// Buffered reports how many received bytes can be read without blocking
	Buffered() (int, error)

	// Type returns the channel type
	Type() ChannelType

	// Port returns the port or device identifier
	Port() string
}

// ChannelType represents the kind of link behind a Channel
type ChannelType string

const (
	// ChannelUART represents an RS-232 serial port.
	ChannelUART ChannelType = "uart"
	// ChannelMock represents a simulated dispenser for testing
	ChannelMock ChannelType = "mock"
)
