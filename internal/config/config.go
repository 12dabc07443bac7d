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

// Package config loads the skad3ctl YAML configuration: the serial link of
// the dispenser and the named DESFire keys used by the card commands.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZaparooProject/go-skad3/desfire"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left out of the file
const (
	DefaultBaud        = 9600
	DefaultReadTimeout = 2 * time.Second
)

// ErrUnknownKey is returned by Key for a name missing from the keys section.
var ErrUnknownKey = errors.New("unknown key")

type Config struct {
	Keys   map[string]KeyConfig `yaml:"keys"`
	Device DeviceConfig         `yaml:"device"`
}

type DeviceConfig struct {
	Address          *int          `yaml:"address"`
	ValidateChecksum *bool         `yaml:"validate_checksum"`
	Port             string        `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	Baud             int           `yaml:"baud"`
}

type KeyConfig struct {
	Algorithm string `yaml:"algorithm"`
	Hex       string `yaml:"hex"`
	HexFile   string `yaml:"hex_file"`
	KeyNo     int    `yaml:"key_no"`
	Version   int    `yaml:"version"`
}

// Key is a resolved key entry.
type Key struct {
	Value     []byte
	Algorithm desfire.Algorithm
	KeyNo     byte
	Version   byte
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, validates and completes the configuration at path. Unknown
// fields are rejected. Relative hex_file paths are resolved against the
// directory of path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(path)
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(content []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.Baud == 0 {
		c.Device.Baud = DefaultBaud
	}
	if c.Device.ReadTimeout == 0 {
		c.Device.ReadTimeout = DefaultReadTimeout
	}
	if c.Keys == nil {
		c.Keys = make(map[string]KeyConfig)
	}
}

// Validate checks field ranges and that every key is well formed.
func (c *Config) Validate() error {
	if c.Device.Address != nil && (*c.Device.Address < 0 || *c.Device.Address > 0xFF) {
		return errors.New("config.device.address must be 0..255")
	}
	if c.Device.Baud < 0 {
		return errors.New("config.device.baud must be positive")
	}
	if c.Device.ReadTimeout < 0 {
		return errors.New("config.device.read_timeout must not be negative")
	}
	for _, name := range c.KeyNames() {
		if err := c.Keys[name].validate(); err != nil {
			return fmt.Errorf("config.keys.%s: %w", name, err)
		}
	}
	return nil
}

func (k KeyConfig) validate() error {
	if _, err := ParseAlgorithm(k.Algorithm); err != nil {
		return err
	}
	hasHex := strings.TrimSpace(k.Hex) != ""
	hasFile := strings.TrimSpace(k.HexFile) != ""
	switch {
	case hasHex && hasFile:
		return errors.New("hex and hex_file are mutually exclusive")
	case !hasHex && !hasFile:
		return errors.New("hex or hex_file is required")
	}
	if hasHex {
		if _, err := k.decode(k.Hex); err != nil {
			return err
		}
	}
	if k.KeyNo < 0 || k.KeyNo > 0x0D {
		return errors.New("key_no must be 0..13")
	}
	if k.Version < 0 || k.Version > 0xFF {
		return errors.New("version must be 0..255")
	}
	return nil
}

// ParseAlgorithm maps an algorithm name of the keys section to a
// desfire.Algorithm. Names are case-insensitive.
func ParseAlgorithm(name string) (desfire.Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "aes", "aes128":
		return desfire.AlgorithmAES128, nil
	case "des", "3des", "2k3des":
		return desfire.AlgorithmDES, nil
	default:
		return 0, fmt.Errorf("algorithm %q must be aes or des", name)
	}
}

// decode parses hex digits and checks the length against the algorithm.
func (k KeyConfig) decode(digits string) ([]byte, error) {
	alg, err := ParseAlgorithm(k.Algorithm)
	if err != nil {
		return nil, err
	}
	value, err := hex.DecodeString(strings.TrimSpace(digits))
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	switch {
	case alg == desfire.AlgorithmAES128 && len(value) != 16:
		return nil, fmt.Errorf("AES key must be 16 bytes, got %d", len(value))
	case alg == desfire.AlgorithmDES && len(value) != 8 && len(value) != 16:
		return nil, fmt.Errorf("DES key must be 8 or 16 bytes, got %d", len(value))
	}
	return value, nil
}

// KeyNames returns the configured key names in sorted order.
func (c *Config) KeyNames() []string {
	names := make([]string, 0, len(c.Keys))
	for name := range c.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key resolves the named key, reading its hex_file if it has one.
func (c *Config) Key(name string) (*Key, error) {
	kc, ok := c.Keys[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKey, name)
	}
	digits := kc.Hex
	if kc.HexFile != "" {
		content, err := os.ReadFile(kc.HexFile)
		if err != nil {
			return nil, fmt.Errorf("config.keys.%s.hex_file: %w", name, err)
		}
		digits = string(content)
	}
	value, err := kc.decode(digits)
	if err != nil {
		return nil, fmt.Errorf("config.keys.%s: %w", name, err)
	}
	alg, _ := ParseAlgorithm(kc.Algorithm)
	return &Key{
		Value:     value,
		Algorithm: alg,
		KeyNo:     byte(kc.KeyNo),
		Version:   byte(kc.Version),
	}, nil
}

// AddressByte returns the dispenser address, 0 when unset.
func (d DeviceConfig) AddressByte() byte {
	if d.Address == nil {
		return 0
	}
	return byte(*d.Address)
}

// ChecksumValidation reports whether inbound checksums are checked. It
// defaults to true.
func (d DeviceConfig) ChecksumValidation() bool {
	return d.ValidateChecksum == nil || *d.ValidateChecksum
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	for name, kc := range c.Keys {
		kc.HexFile = resolvePath(configDir, kc.HexFile)
		c.Keys[name] = kc
	}
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
