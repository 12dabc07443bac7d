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

package testing

import (
	"math/rand/v2"
	"time"
)

// Link is the byte link wrapped by JitteryChannel. VirtualSKAD3 is a Link.
type Link interface {
	Open() error
	Close() error
	Write(data []byte) error
	Read(n int) ([]byte, error)
	Buffered() (int, error)
	Port() string
}

// JitterConfig configures the behavior of JitteryChannel.
type JitterConfig struct {
	MaxLatencyMs      int
	FragmentMinBytes  int
	StallAfterBytes   int
	StallDuration     time.Duration
	Seed              uint64
	FragmentReads     bool
	USBBoundaryStress bool
}

// DefaultJitterConfig returns a sensible default configuration for testing.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatencyMs:     2,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryChannel wraps a Link to simulate an RS-232 line behind a USB
// serial adapter: reply bytes arrive in fragments with random latency, so
// Buffered grows between polls and may stall mid-frame.
//
// Bytes move from the backend into an arrival buffer a fragment at a time.
// Buffered reports the arrival buffer only. Read(n) keeps pulling fragments
// until n bytes have arrived or the backend runs dry.
type JitteryChannel struct {
	backend        Link
	rng            *rand.Rand
	arrived        []byte
	config         JitterConfig
	delivered      int
	stallTriggered bool
}

// NewJitteryChannel wraps a backend Link with jitter simulation.
func NewJitteryChannel(backend Link, config JitterConfig) *JitteryChannel {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}

	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryChannel{
		backend: backend,
		config:  config,
		rng:     rng,
		arrived: make([]byte, 0, 64),
	}
}

// Open opens the backend.
func (j *JitteryChannel) Open() error {
	return j.backend.Open() //nolint:wrapcheck // Pass-through wrapper
}

// Close discards undelivered bytes and closes the backend.
func (j *JitteryChannel) Close() error {
	j.arrived = j.arrived[:0]
	return j.backend.Close() //nolint:wrapcheck // Pass-through wrapper
}

// Port returns the backend port.
func (j *JitteryChannel) Port() string {
	return j.backend.Port()
}

// Write passes writes through to the backend without modification.
func (j *JitteryChannel) Write(data []byte) error {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Buffered lets one more fragment arrive and reports the arrived bytes.
// After StallAfterBytes have been delivered, one poll sees no growth.
func (j *JitteryChannel) Buffered() (int, error) {
	j.sleep()

	if j.config.StallAfterBytes > 0 && !j.stallTriggered && j.delivered >= j.config.StallAfterBytes {
		j.stallTriggered = true
		if j.config.StallDuration > 0 {
			time.Sleep(j.config.StallDuration)
		}
		return len(j.arrived), nil
	}

	if _, err := j.pull(); err != nil {
		return len(j.arrived), err
	}
	return len(j.arrived), nil
}

// Read returns n bytes, pulling fragments until enough have arrived. A
// short slice is returned when the backend has no more data.
func (j *JitteryChannel) Read(n int) ([]byte, error) {
	j.sleep()

	for len(j.arrived) < n {
		got, err := j.pull()
		if err != nil {
			return nil, err
		}
		if got == 0 {
			break
		}
	}

	if len(j.arrived) == 0 {
		// Surface the backend's own empty-read error
		return j.backend.Read(n) //nolint:wrapcheck // Pass-through wrapper
	}

	count := min(n, len(j.arrived))
	out := make([]byte, count)
	copy(out, j.arrived[:count])
	j.arrived = j.arrived[count:]
	return out, nil
}

// ResetStallState resets the stall tracking state.
func (j *JitteryChannel) ResetStallState() {
	j.delivered = 0
	j.stallTriggered = false
}

func (j *JitteryChannel) sleep() {
	if j.config.MaxLatencyMs <= 0 {
		return
	}
	if delay := time.Duration(j.rng.IntN(j.config.MaxLatencyMs+1)) * time.Millisecond; delay > 0 {
		time.Sleep(delay)
	}
}

// pull moves one fragment from the backend into the arrival buffer.
func (j *JitteryChannel) pull() (int, error) {
	available, err := j.backend.Buffered()
	if err != nil {
		return 0, err //nolint:wrapcheck // Pass-through wrapper
	}
	if available == 0 {
		return 0, nil
	}

	toPull := available

	// USB boundary stress: fragment at 64-byte boundaries
	if j.config.USBBoundaryStress {
		untilBoundary := ((j.delivered/64)+1)*64 - j.delivered
		toPull = min(toPull, untilBoundary)
	}

	if j.config.FragmentReads && toPull > j.config.FragmentMinBytes {
		toPull = j.config.FragmentMinBytes + j.rng.IntN(toPull-j.config.FragmentMinBytes+1)
	}

	data, err := j.backend.Read(toPull)
	if err != nil {
		return 0, err //nolint:wrapcheck // Pass-through wrapper
	}
	j.arrived = append(j.arrived, data...)
	j.delivered += len(data)
	return len(data), nil
}
