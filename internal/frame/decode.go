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
	"fmt"
	"time"
)

// Reader is the inbound half of a byte channel. Read blocks until n bytes
// arrive or the link fails; Buffered reports bytes available without blocking.
type Reader interface {
	Read(n int) ([]byte, error)
	Buffered() (int, error)
}

// DecodeOptions tunes inbound frame decoding.
type DecodeOptions struct {
	// SettleInterval is the pause between Buffered polls while waiting for
	// the local receive buffer to stop changing.
	SettleInterval time.Duration
	// SettlePolls bounds the number of Buffered polls (0 disables settling).
	SettlePolls int
	// ValidateChecksum rejects frames whose BCC does not match.
	ValidateChecksum bool
}

// DefaultDecodeOptions returns the options used by the device driver.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		SettleInterval:   2 * time.Millisecond,
		SettlePolls:      50,
		ValidateChecksum: true,
	}
}

// Decode reads one Command Package from r.
//
// The SK-AD3 prepends a 0x06 to most, but not all, replies. Decode strips a
// single leading 0x06 if present and otherwise uses the header as read.
// Any inconsistency between the header and the bytes that follow is
// reported as a *DesyncError rather than returned as a partial buffer.
func Decode(r Reader, opts DecodeOptions) ([]byte, error) {
	if err := settle(r, opts); err != nil {
		return nil, err
	}

	header, err := readExactly(r, HeaderSize, nil)
	if err != nil {
		return nil, err
	}
	header = StripACK(header)

	length, err := validatePrefix(header)
	if err != nil {
		return nil, err
	}

	// Bytes of the text field already consumed with the header
	consumed := len(header) - PrefixSize
	rest, err := readExactly(r, length+TrailerSize-consumed, header)
	if err != nil {
		return nil, err
	}

	frm := make([]byte, 0, len(header)+len(rest))
	frm = append(frm, header...)
	frm = append(frm, rest...)

	if err := validateTrailer(frm, header, length); err != nil {
		return nil, err
	}
	if opts.ValidateChecksum {
		if err := ValidateChecksum(frm); err != nil {
			return nil, err
		}
	}
	return frm, nil
}

// StripACK removes exactly one ACK byte from the start of a header.
// Only offset 0 is considered: a 0x06 elsewhere is part of the frame (for
// example a length of six).
func StripACK(header []byte) []byte {
	if len(header) > 0 && header[0] == ACK {
		return header[1:]
	}
	return header
}

func settle(r Reader, opts DecodeOptions) error {
	prev := -1
	for range opts.SettlePolls {
		n, err := r.Buffered()
		if err != nil {
			return fmt.Errorf("frame settle: %w", err)
		}
		if n == prev {
			return nil
		}
		prev = n
		if opts.SettleInterval > 0 {
			time.Sleep(opts.SettleInterval)
		}
	}
	return nil
}

func readExactly(r Reader, n int, header []byte) ([]byte, error) {
	buf, err := r.Read(n)
	if err != nil {
		return nil, fmt.Errorf("frame read %d bytes: %w", n, err)
	}
	if len(buf) != n {
		return nil, newDesyncError(fmt.Sprintf("short read (%d of %d bytes)", len(buf), n), header, -1)
	}
	return buf, nil
}
