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

// Package detection finds SK-AD3 dispensers on the serial ports of the
// system. Ports are enumerated with their USB descriptors, filtered, and
// optionally probed with a status request.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-skad3"
	"github.com/ZaparooProject/go-skad3/transport/uart"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only checks port descriptors without any communication
	Passive Mode = iota
	// Probe mode sends a status request to every candidate port
	Probe
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Probe:
		return "probe"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - a serial port with nothing pointing at a dispenser
	Low Confidence = iota
	// Medium confidence - a USB-serial bridge commonly wired to dispensers
	Medium
	// High confidence - the port answered a status request
	High
)

// String returns the confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo represents a detected dispenser
type DeviceInfo struct {
	// Additional metadata (e.g., VID:PID for USB devices)
	Metadata map[string]string
	// Status holds the sensor reading of a probed device
	Status *skad3.DeviceStatus
	// Serial port path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// Human-readable port description
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("dispenser at %s (confidence: %s)", d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// Enumerate lists candidate ports. The system enumerator is used when nil.
	Enumerate func() ([]Port, error)
	// Opener opens probed ports. serial.Open is used when nil.
	Opener uart.Opener
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Port paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// ProbeTimeout bounds the status request on one port
	ProbeTimeout time.Duration
	// Baud is the line speed used when probing
	Baud int
	// Detection invasiveness level
	Mode Mode
	// Address is the dispenser address used when probing
	Address byte
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:         Probe,
		ProbeTimeout: 500 * time.Millisecond,
		Baud:         uart.DefaultBaudRate,
		Address:      skad3.DefaultAddress,
		Blocklist:    DefaultBlocklist(),
		EnableCache:  true,
		CacheTTL:     30 * time.Second,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no dispensers were detected
	ErrNoDevicesFound = errors.New("no SK-AD3 devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

type probeResult struct {
	status *skad3.DeviceStatus
	err    error
}

// Detect searches the serial ports for dispensers. Devices are returned in
// enumeration order.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	key := cacheKey{mode: opts.Mode, address: opts.Address}
	if opts.EnableCache {
		if cached, found := getCached(key, opts.CacheTTL); found {
			// Cached results bypass enumeration, so filter them again
			filtered := filterDevices(cached, opts)
			if len(filtered) == 0 {
				return nil, ErrNoDevicesFound
			}
			return filtered, nil
		}
	}

	devices, err := detect(ctx, opts)
	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(key, devices)
		} else {
			// A stale entry would point callers at a disconnected port
			clearCacheFor(key)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

func detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	enumerate := opts.Enumerate
	if enumerate == nil {
		enumerate = systemPorts
	}
	ports, err := enumerate()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	candidates := filterPorts(ports, opts)
	if opts.Mode == Passive {
		var devices []DeviceInfo
		for i := range candidates {
			if isLikelyDispenser(&candidates[i]) {
				devices = append(devices, newDeviceInfo(&candidates[i], Medium))
			}
		}
		return devices, nil
	}
	return probePorts(ctx, candidates, opts)
}

// probePorts probes every candidate concurrently. Each port is a separate
// link, so probes do not contend.
func probePorts(ctx context.Context, ports []Port, opts *Options) ([]DeviceInfo, error) {
	results := make([]probeResult, len(ports))
	var wg sync.WaitGroup
	for i := range ports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, err := probePort(ctx, ports[i].Path, opts)
			results[i] = probeResult{status: status, err: err}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ErrDetectionTimeout
	}

	var devices []DeviceInfo
	for i, res := range results {
		if res.err != nil {
			skad3.Debugf("probe %s: %v", ports[i].Path, res.err)
			continue
		}
		device := newDeviceInfo(&ports[i], High)
		device.Status = res.status
		devices = append(devices, device)
	}
	return devices, nil
}

// probePort sends one status request. Any well-formed reply, positive or
// negative, identifies a dispenser.
//
// A probe is never retried: the port may belong to an unrelated device.
func probePort(ctx context.Context, path string, opts *Options) (*skad3.DeviceStatus, error) {
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().ProbeTimeout
	}
	channelOpts := []uart.Option{uart.WithReadTimeout(timeout)}
	if opts.Baud > 0 {
		channelOpts = append(channelOpts, uart.WithBaudRate(opts.Baud))
	}
	if opts.Opener != nil {
		channelOpts = append(channelOpts, uart.WithOpener(opts.Opener))
	}
	channel, err := uart.New(path, channelOpts...)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	device, err := skad3.New(channel, skad3.WithAddress(opts.Address))
	if err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*timeout)
	defer cancel()
	status, _, err := device.GetStatus(probeCtx)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	return &status, nil
}

func newDeviceInfo(port *Port, confidence Confidence) DeviceInfo {
	device := DeviceInfo{
		Path:       port.Path,
		Name:       port.Name,
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// filterPorts removes blocked and ignored ports
func filterPorts(ports []Port, opts *Options) []Port {
	var filtered []Port
	for _, port := range ports {
		if port.VIDPID != "" && IsBlocked(port.VIDPID, opts.Blocklist) {
			continue
		}
		if IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		filtered = append(filtered, port)
	}
	return filtered
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}
