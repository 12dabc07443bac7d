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
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanupSessionLog(t *testing.T) {
	t.Helper()
	if activeSessionLog != nil {
		_ = activeSessionLog.file.Close()
	}
	activeSessionLog = nil
	sessionLogWriter = nil
}

func chdirTemp(t *testing.T) {
	t.Helper()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		cleanupSessionLog(t)
		_ = os.Chdir(origDir)
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	chdirTemp(t)

	path, err := InitSessionLog()
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")

	matched, err := regexp.MatchString(`^skad3_\d{8}_\d{6}\.log$`, path)
	require.NoError(t, err)
	assert.True(t, matched, "Filename should match skad3_YYYYMMDD_HHMMSS.log pattern, got: %s", path)
}

func TestInitSessionLog_WritesHeaderAndMessages(t *testing.T) {
	chdirTemp(t)
	origEnabled := debugEnabled
	t.Cleanup(func() { debugEnabled = origEnabled })
	debugEnabled = false

	path, err := InitSessionLog()
	require.NoError(t, err)
	Debugf("RX status: %X", []byte{0x06, 0xF2})
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	contentStr := string(content)
	assert.Contains(t, contentStr, "=== SK-AD3 Debug Session Log ===")
	assert.Contains(t, contentStr, "Started:")
	assert.Contains(t, contentStr, "PID")
	assert.Contains(t, contentStr, "Command Line:")
	assert.Contains(t, contentStr, "default address 0x00")
	assert.Contains(t, contentStr, "DEBUG: RX status: 06F2")
	assert.Contains(t, contentStr, "=== Session ended after 1 debug lines ===")
}

func TestLogSessionDevice(t *testing.T) {
	chdirTemp(t)

	device, err := New(newScriptedChannel(), WithAddress(0x07))
	require.NoError(t, err)

	// no log open: nothing to write to
	LogSessionDevice(device)

	path, err := InitSessionLog()
	require.NoError(t, err)
	LogSessionDevice(device)
	LogSessionDevice(nil)
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "--- Dispenser"))
	assert.Contains(t, string(content), "--- Dispenser mock on scripted, address 0x07 ---")
	assert.Contains(t, string(content), "after 0 debug lines")
}

func TestInitSessionLog_Reopen(t *testing.T) {
	chdirTemp(t)

	first, err := InitSessionLog()
	require.NoError(t, err)
	second, err := InitSessionLog()
	require.NoError(t, err)
	assert.Equal(t, first, second, "an open log is reused")
	require.NoError(t, CloseSessionLog())
	require.NoError(t, CloseSessionLog())
}

func TestCloseSessionLog_NilFile(t *testing.T) {
	t.Cleanup(func() {
		cleanupSessionLog(t)
	})
	cleanupSessionLog(t)

	assert.NoError(t, CloseSessionLog())
}

func TestGetSessionLogPath_ReturnsCorrectPath(t *testing.T) {
	chdirTemp(t)

	assert.Empty(t, GetSessionLogPath())

	path, err := InitSessionLog()
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())

	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())
}
