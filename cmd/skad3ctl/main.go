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

// Command skad3ctl drives an SK-AD3 card dispenser and the DESFire card at
// its RF position over a serial port.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-skad3"
	"github.com/ZaparooProject/go-skad3/detection"
	"github.com/ZaparooProject/go-skad3/internal/config"
	"github.com/ZaparooProject/go-skad3/internal/syncutil"
	"github.com/ZaparooProject/go-skad3/transport/uart"
	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

type options struct {
	configPath  string
	port        string
	keyAlg      string
	lockTimeout time.Duration
	retries     int
	debug       bool
	listPorts   bool
	promptKey   bool
	sessionLog  bool
}

// Package-level flag variables
var (
	flagConfig      string
	flagPort        string
	flagKeyAlg      string
	flagLockTimeout time.Duration
	flagRetries     int
	flagDebug       bool
	flagListPorts   bool
	flagPromptKey   bool
	flagSessionLog  bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "YAML configuration file")
	flag.StringVar(&flagPort, "port", "", "Serial port (overrides the config, auto-detect if both are empty)")
	flag.StringVar(&flagKeyAlg, "key-alg", "aes", "Algorithm of prompted keys not named in the config (aes or des)")
	flag.DurationVar(&flagLockTimeout, "lock-timeout", 0, "Deadlock detector timeout (deadlock builds only)")
	flag.IntVar(&flagRetries, "retries", 3, "Attempts for read-only commands after a corrupted reply")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagListPorts, "list-ports", false, "List serial ports and exit")
	flag.BoolVar(&flagPromptKey, "prompt-key", false, "Prompt for key values instead of reading them from the config")
	flag.BoolVar(&flagSessionLog, "session-log", false, "Write a wire-level session log file")
	flag.Usage = usage
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, name := range commandNames() {
		_, _ = fmt.Fprintf(out, "  %-34s %s\n", name+" "+commands[name].args, commands[name].help)
	}
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func parseOptions() *options {
	return &options{
		configPath:  flagConfig,
		port:        flagPort,
		keyAlg:      flagKeyAlg,
		lockTimeout: flagLockTimeout,
		retries:     flagRetries,
		debug:       flagDebug,
		listPorts:   flagListPorts,
		promptKey:   flagPromptKey,
		sessionLog:  flagSessionLog,
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return conf, nil
}

// resolvePort picks the serial port: the flag, then the config, then the
// first dispenser found by probing.
func resolvePort(ctx context.Context, opts *options, conf *config.Config) (string, error) {
	if opts.port != "" {
		return opts.port, nil
	}
	if conf.Device.Port != "" {
		return conf.Device.Port, nil
	}
	detectOpts := detection.DefaultOptions()
	detectOpts.Address = conf.Device.AddressByte()
	detectOpts.Baud = conf.Device.Baud
	devices, err := detection.Detect(ctx, &detectOpts)
	if err != nil {
		return "", fmt.Errorf("no port given and auto-detection failed: %w", err)
	}
	slog.Info("dispenser detected", "port", devices[0].Path, "status", devices[0].Status)
	return devices[0].Path, nil
}

func openDevice(ctx context.Context, opts *options, conf *config.Config) (*skad3.Device, error) {
	port, err := resolvePort(ctx, opts, conf)
	if err != nil {
		return nil, err
	}
	channel, err := uart.New(port,
		uart.WithBaudRate(conf.Device.Baud),
		uart.WithReadTimeout(conf.Device.ReadTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create serial channel for %s: %w", port, err)
	}
	device, err := skad3.New(channel,
		skad3.WithAddress(conf.Device.AddressByte()),
		skad3.WithChecksumValidation(conf.Device.ChecksumValidation()))
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	return device, nil
}

// terminalKeyPrompt reads key hex digits from the terminal without echo.
func terminalKeyPrompt(name string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("-prompt-key needs an interactive terminal")
	}
	_, _ = fmt.Fprintf(os.Stderr, "Key %s (hex): ", name)
	digits, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	value, err := hex.DecodeString(strings.TrimSpace(string(digits)))
	if err != nil {
		return nil, fmt.Errorf("key %s is not valid hex: %w", name, err)
	}
	return value, nil
}

func listPorts(w io.Writer) error {
	ports, err := uart.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, port := range ports {
		_, _ = fmt.Fprintln(w, port)
	}
	return nil
}

func run(ctx context.Context, opts *options, args []string) error {
	if opts.listPorts {
		return listPorts(os.Stdout)
	}
	if len(args) == 0 {
		flag.Usage()
		return errors.New("no command given")
	}
	conf, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	device, err := openDevice(ctx, opts, conf)
	if err != nil {
		return err
	}
	skad3.LogSessionDevice(device)

	a := &app{
		device: device,
		conf:   conf,
		out:    os.Stdout,
		keyAlg: opts.keyAlg,
		retry:  retryConfig(opts.retries),
	}
	if opts.promptKey {
		a.prompt = terminalKeyPrompt
	}
	return a.dispatch(ctx, args)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts := parseOptions()

	logger := newLogger(os.Stderr, opts.debug)
	slog.SetDefault(logger)
	skad3.SetLogger(logger)
	if opts.debug {
		skad3.SetDebugEnabled(true)
	}
	if opts.lockTimeout > 0 {
		syncutil.SetLockTimeout(opts.lockTimeout)
	}
	if opts.sessionLog {
		path, err := skad3.InitSessionLog()
		if err != nil {
			slog.Warn("session log unavailable", "err", err)
		} else {
			slog.Info("writing session log", "path", path)
			defer func() { _ = skad3.CloseSessionLog() }()
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, flag.Args()); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		slog.Error("command failed", "err", err)
		return 1
	}
	return 0
}
