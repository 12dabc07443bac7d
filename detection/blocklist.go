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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB devices that misbehave when a status
// request is written to them. Entries are VID:PID in hexadecimal.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets when the port opens
		"2341:0001", // Arduino Uno (early firmware)
	}
}

// IsBlocked reports whether vidpid is in the blocklist. The comparison is
// case-insensitive.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	for _, blocked := range blocklist {
		if strings.EqualFold(vidpid, strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a port path should be ignored. Paths are
// compared cleaned and case-insensitively, since COM port names on Windows
// are case-insensitive.
func IsPathIgnored(portPath string, ignorePaths []string) bool {
	if portPath == "" {
		return false
	}
	normalized := normalizedPath(portPath)
	for _, ignored := range ignorePaths {
		if ignored != "" && normalizedPath(ignored) == normalized {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
