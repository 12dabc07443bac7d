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

package syncutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMutexSerializes(t *testing.T) {
	t.Parallel()

	var mu Mutex
	counter := 0
	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 100 {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	for range 8 {
		<-done
	}
	assert.Equal(t, 800, counter)
}

func TestRWMutexAllowsConcurrentReaders(t *testing.T) {
	t.Parallel()

	var mu RWMutex
	mu.RLock()
	locked := make(chan struct{})
	go func() {
		mu.RLock()
		defer mu.RUnlock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}
	mu.RUnlock()
}

func TestSetLockTimeout(t *testing.T) {
	SetLockTimeout(DefaultLockTimeout)
	if !DetectionEnabled() {
		t.Skip("built without -tags=deadlock")
	}
	assert.True(t, DetectionEnabled())
}
