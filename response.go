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

import (
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-skad3/internal/frame"
)

// swSize is the SW1 SW2 pair before the ETX BCC trailer of an APDU reply.
const swSize = 2

// Response is one decoded reply frame of a basic command.
//
// A negative reply is not an error: IsSuccessful reports false and Error
// resolves the device error code.
type Response struct {
	Raw []byte
}

// NewResponse wraps a decoded frame.
func NewResponse(raw []byte) *Response {
	return &Response{Raw: raw}
}

// IsSuccessful reports whether the reply is a positive (PMT) message.
func (r *Response) IsSuccessful() bool {
	return len(r.Raw) > frame.OffsetMsgType && r.Raw[frame.OffsetMsgType] == frame.PMT
}

// IsNegative reports whether the reply is a negative (EMT) message.
func (r *Response) IsNegative() bool {
	return len(r.Raw) > frame.OffsetMsgType && r.Raw[frame.OffsetMsgType] == frame.EMT
}

// Command returns the echoed CM byte.
func (r *Response) Command() byte {
	if len(r.Raw) <= frame.OffsetCommand {
		return 0
	}
	return r.Raw[frame.OffsetCommand]
}

// Parameter returns the echoed PM byte.
func (r *Response) Parameter() byte {
	if len(r.Raw) <= frame.OffsetParameter {
		return 0
	}
	return r.Raw[frame.OffsetParameter]
}

// Status resolves the st0 st1 st2 bytes at offsets 7..9.
func (r *Response) Status() (DeviceStatus, error) {
	if len(r.Raw) < frame.OffsetData {
		return DeviceStatus{}, fmt.Errorf("%w: %d bytes, no status block", ErrInvalidResponse, len(r.Raw))
	}
	st := r.Raw[frame.OffsetStatus:frame.OffsetData]
	return LookupStatus(st[0], st[1], st[2])
}

// Error resolves the big-endian error code at offsets 7..8 of a negative
// reply.
func (r *Response) Error() (DeviceError, error) {
	if len(r.Raw) < frame.OffsetStatus+2 {
		return DeviceError{}, fmt.Errorf("%w: %d bytes, no error code", ErrInvalidResponse, len(r.Raw))
	}
	return LookupError(binary.BigEndian.Uint16(r.Raw[frame.OffsetStatus:]))
}

// Payload returns the bytes between the status block and the trailer.
func (r *Response) Payload() []byte {
	end := len(r.Raw) - frame.TrailerSize
	if end <= frame.OffsetData {
		return nil
	}
	return r.Raw[frame.OffsetData:end]
}

// APDUResponse is a reply frame tunnelling a card response.
type APDUResponse struct {
	Response
}

// NewAPDUResponse wraps a decoded APDU reply frame.
func NewAPDUResponse(raw []byte) *APDUResponse {
	return &APDUResponse{Response{Raw: raw}}
}

func (r *APDUResponse) hasStatusWord() bool {
	return len(r.Raw) >= frame.OffsetData+swSize+frame.TrailerSize
}

// StatusWord returns SW1 SW2, the final two bytes before ETX BCC.
// It returns 0 when the frame is too short to carry one.
func (r *APDUResponse) StatusWord() uint16 {
	if !r.hasStatusWord() {
		return 0
	}
	return binary.BigEndian.Uint16(r.Raw[len(r.Raw)-frame.TrailerSize-swSize:])
}

// IsSuccessful reports transport success and a whitelisted status word.
func (r *APDUResponse) IsSuccessful() bool {
	return r.Response.IsSuccessful() && r.hasStatusWord() && IsSuccessStatusWord(r.StatusWord())
}

// IsComplete reports success without a pending additional frame.
func (r *APDUResponse) IsComplete() bool {
	return r.IsSuccessful() && r.StatusWord() != SWAdditionalFrame
}

// HasMoreFrames reports a 0x91AF continuation.
func (r *APDUResponse) HasMoreFrames() bool {
	return r.IsSuccessful() && r.StatusWord() == SWAdditionalFrame
}

// Description returns the documented meaning of the status word.
func (r *APDUResponse) Description() (string, error) {
	return DescribeStatusWord(r.StatusWord())
}

// Data returns the card payload between the status block and SW1 SW2.
func (r *APDUResponse) Data() []byte {
	if !r.hasStatusWord() {
		return nil
	}
	return r.Raw[frame.OffsetData : len(r.Raw)-frame.TrailerSize-swSize]
}
