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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// debugEnabled controls whether debug messages reach the logger.
// The session log, when open, receives every message regardless.
var debugEnabled = false

var logger = defaultLogger()

func init() {
	if os.Getenv("SKAD3_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetLogger replaces the logger that debug messages are written to.
// Passing nil restores the default stderr text logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = defaultLogger()
	}
	logger = l
}

// Logger returns the logger debug messages are written to.
func Logger() *slog.Logger {
	return logger
}

// Debugf logs a formatted debug message.
// Always writes to the session log file (if initialized) with timestamp.
// Only reaches the logger when debug mode is enabled.
func Debugf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Debugln logs its operands as a debug message, like fmt.Sprint.
func Debugln(args ...any) {
	emit(fmt.Sprint(args...))
}

func emit(message string) {
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	if debugEnabled {
		logger.Log(context.Background(), slog.LevelDebug, message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugEnabled reports whether debug logging is active
func DebugEnabled() bool {
	return debugEnabled
}
