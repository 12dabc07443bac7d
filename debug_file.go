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
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// sessionLog is a file receiving every debug line of one CLI run, framed by
// a header naming the host and the dispensers that were opened.
type sessionLog struct {
	file  *os.File
	path  string
	lines int
}

var activeSessionLog *sessionLog

// sessionLogWriter is the destination of emit; nil while no log is open.
var sessionLogWriter io.Writer

// InitSessionLog creates skad3_<date>_<time>.log in the current directory
// and returns its name.
func InitSessionLog() (string, error) {
	if activeSessionLog != nil {
		return activeSessionLog.path, nil
	}
	filename := fmt.Sprintf("skad3_%s.log", time.Now().Format("20060102_150405"))

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	activeSessionLog = &sessionLog{file: logFile, path: filename}
	sessionLogWriter = activeSessionLog
	writeSessionHeader(logFile)
	return filename, nil
}

// Write counts debug lines on their way to the file.
func (l *sessionLog) Write(p []byte) (int, error) {
	l.lines++
	n, err := l.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("session log write: %w", err)
	}
	return n, nil
}

// LogSessionDevice records the dispenser d talks to. It does nothing while
// no session log is open.
func LogSessionDevice(d *Device) {
	if activeSessionLog == nil || d == nil {
		return
	}
	ch := d.Channel()
	_, _ = fmt.Fprintf(activeSessionLog.file, "%s --- Dispenser %s on %s, address 0x%02X ---\n",
		time.Now().Format("15:04:05.000"), ch.Type(), ch.Port(), d.Address())
}

// CloseSessionLog writes the footer and closes the log. It is a no-op when
// no log is open.
func CloseSessionLog() error {
	if activeSessionLog == nil {
		return nil
	}
	l := activeSessionLog
	activeSessionLog = nil
	sessionLogWriter = nil

	_, _ = fmt.Fprintf(l.file, "\n%s === Session ended after %d debug lines ===\n",
		time.Now().Format("15:04:05.000"), l.lines)
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log file, or "" when none is.
func GetSessionLogPath() string {
	if activeSessionLog == nil {
		return ""
	}
	return activeSessionLog.path
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== SK-AD3 Debug Session Log ===\n")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Host: %s (%s/%s, %s), PID %d\n",
		hostname(), runtime.GOOS, runtime.GOARCH, runtime.Version(), os.Getpid())
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprintf(w, "Frame: [STX ADDR LENH LENL] [CMT CM PM (DATA) ETX] [BCC], default address 0x%02X\n",
		DefaultAddress)
	_, _ = fmt.Fprint(w, "================================\n\n")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
