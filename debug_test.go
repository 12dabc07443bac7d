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
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Debug tests mutate package state and do not run in parallel.

func saveDebugState(t *testing.T) {
	t.Helper()
	origEnabled, origWriter, origLogger := debugEnabled, sessionLogWriter, logger
	t.Cleanup(func() {
		debugEnabled = origEnabled
		sessionLogWriter = origWriter
		logger = origLogger
	})
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	saveDebugState(t)

	var buf bytes.Buffer
	sessionLogWriter = &buf
	debugEnabled = false

	Debugf("test message %d", 42)

	content := buf.String()
	assert.Contains(t, content, "DEBUG: test message 42")
	assert.Contains(t, content, "\n")
}

func TestDebugf_IncludesTimestamp(t *testing.T) {
	saveDebugState(t)

	var buf bytes.Buffer
	sessionLogWriter = &buf
	debugEnabled = false

	Debugf("test message")

	// Verify timestamp format: HH:MM:SS.mmm
	matched, err := regexp.MatchString(`\d{2}:\d{2}:\d{2}\.\d{3} DEBUG:`, buf.String())
	require.NoError(t, err)
	assert.True(t, matched, "Should include timestamp in format HH:MM:SS.mmm, got: %s", buf.String())
}

func TestDebugf_NilSessionWriter(t *testing.T) {
	saveDebugState(t)

	sessionLogWriter = nil
	debugEnabled = false

	// Should not panic when sessionLogWriter is nil
	Debugf("test message %d", 42)
}

func TestDebugln_WritesToSessionLog(t *testing.T) {
	saveDebugState(t)

	var buf bytes.Buffer
	sessionLogWriter = &buf
	debugEnabled = false

	Debugln("apdu ", 0x5A)

	assert.Contains(t, buf.String(), "DEBUG: apdu 90")
}

func TestDebug_RoutesToLoggerWhenEnabled(t *testing.T) {
	saveDebugState(t)

	var out bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))
	sessionLogWriter = nil

	SetDebugEnabled(false)
	Debugf("hidden")
	assert.Empty(t, out.String())

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
	Debugf("TX %s: %X", "status", []byte{0xF2, 0x00})
	assert.Contains(t, out.String(), "level=DEBUG")
	assert.Contains(t, out.String(), `msg="TX status: F200"`)
}

func TestSetLogger_NilRestoresDefault(t *testing.T) {
	saveDebugState(t)

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	assert.Same(t, custom, Logger())

	SetLogger(nil)
	assert.NotSame(t, custom, Logger())
	assert.NotNil(t, Logger())
}
