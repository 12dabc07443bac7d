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
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Port is a serial port with its USB descriptor, when it has one.
type Port struct {
	Path         string
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// systemPorts lists the serial ports of the system.
func systemPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	return portsFromDetails(details), nil
}

func portsFromDetails(details []*enumerator.PortDetails) []Port {
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		port := Port{
			Path:         d.Name,
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		if d.Product != "" {
			port.Name = d.Product
		}
		ports = append(ports, port)
	}
	return ports
}

// knownBridges are USB-serial converters found in dispenser installations.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

// isLikelyDispenser checks if a port is likely to be wired to a dispenser
func isLikelyDispenser(port *Port) bool {
	upperVIDPID := strings.ToUpper(port.VIDPID)
	for _, known := range knownBridges {
		if upperVIDPID == known {
			return true
		}
	}

	lowerProduct := strings.ToLower(port.Product)
	for _, keyword := range []string{"sk-ad3", "dispenser", "rs232"} {
		if strings.Contains(lowerProduct, keyword) {
			return true
		}
	}
	return false
}
