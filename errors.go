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
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-skad3/internal/frame"
)

// Error categories for retry logic and caller classification
var (
	// Channel errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Framing errors - retryable once the line has been drained
	ErrFrameDesync      = frame.ErrDesync
	ErrChecksumMismatch = frame.ErrChecksum

	// Lookup errors - not retryable
	ErrUnknownCode      = errors.New("unknown code")
	ErrInvalidResponse  = errors.New("invalid response format")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = frame.ErrDataTooLarge

	// Device errors
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoChannel      = errors.New("device has no channel")
)

// FrameDesyncError reports an inbound frame whose header or trailer does not
// line up with the declared length.
type FrameDesyncError = frame.DesyncError

// ChecksumMismatchError reports an inbound frame whose trailing BCC does not
// match the XOR of the frame.
type ChecksumMismatchError = frame.ChecksumError

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps channel-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnknownStatusCodeError is returned when a status byte of a reply has no
// entry in the dispenser, stacker or capture box table.
type UnknownStatusCodeError struct {
	Table string
	Code  byte
}

func (e *UnknownStatusCodeError) Error() string {
	return fmt.Sprintf("unknown %s status code 0x%02X", e.Table, e.Code)
}

func (*UnknownStatusCodeError) Unwrap() error {
	return ErrUnknownCode
}

// UnknownErrorCodeError is returned when a negative reply carries an error
// code missing from the device error table.
type UnknownErrorCodeError struct {
	Code uint16
}

func (e *UnknownErrorCodeError) Error() string {
	return fmt.Sprintf("unknown device error code 0x%04X", e.Code)
}

func (*UnknownErrorCodeError) Unwrap() error {
	return ErrUnknownCode
}

// UndocumentedStatusWordError is returned when a card status word has no
// description.
type UndocumentedStatusWordError struct {
	SW uint16
}

func (e *UndocumentedStatusWordError) Error() string {
	return fmt.Sprintf("undocumented response: SW=0x%04X", e.SW)
}

func (*UndocumentedStatusWordError) Unwrap() error {
	return ErrUnknownCode
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrFrameDesync),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the serial device is gone and
// further commands cannot succeed. This is distinct from IsRetryable which
// indicates whether a single exchange can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when a USB serial
// adapter is unplugged mid-exchange.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for channel operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, cause), ErrorTypeTransient)
}

// NewTransportClosedError creates an error for use of a channel that is not open
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}
