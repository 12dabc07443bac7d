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

// Package syncutil provides the mutex types used by the dispenser driver
// and its simulators.
//
// A normal build uses sync.Mutex and sync.RWMutex. Building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock, which reports
// lock-order inversions and locks held longer than the lock timeout. Device
// operations hold their lock across whole serial exchanges, so the timeout
// must exceed the slowest card movement.
package syncutil

import "time"

// DefaultLockTimeout bounds how long a Device lock may be held before a
// deadlock build reports it. A capture followed by an init can take
// several seconds on real hardware.
const DefaultLockTimeout = 30 * time.Second
