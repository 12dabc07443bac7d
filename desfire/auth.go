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

package desfire

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// AuthState is the position of an AuthSession in the handshake.
type AuthState int

// Handshake states
const (
	StateIdle AuthState = iota
	StateChallengeIssued
	StateFirstPassSubmitted
	StateAuthenticated
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallengeIssued:
		return "challenge issued"
	case StateFirstPassSubmitted:
		return "first pass submitted"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// AuthResult is the outcome of an authentication. A handshake the card or
// the reader rejects is reported with Authenticated false and State
// StateFailed.
type AuthResult struct {
	SessionKey    []byte
	State         AuthState
	SW            uint16 // status word of the last exchange
	Authenticated bool
}

// AuthOption configures an AuthSession
type AuthOption func(*AuthSession)

// WithRandom sets the source of randomA. crypto/rand is used by default.
func WithRandom(r io.Reader) AuthOption {
	return func(s *AuthSession) {
		s.random = r
	}
}

// AuthSession is the reader side of one three-pass mutual authentication.
// It is not reusable: create a new session per handshake.
//
// The card sends ek(randomB). The reader answers ek(randomA || rotl(randomB))
// and the card proves knowledge of the key with ek(rotl(randomA)).
type AuthSession struct {
	block      cipher.Block
	random     io.Reader
	iv         []byte
	challenge  []byte
	randomA    []byte
	randomB    []byte
	sessionKey []byte
	alg        Algorithm
	state      AuthState
}

// NewAuthSession creates a handshake for alg with the long-term key.
func NewAuthSession(alg Algorithm, key []byte, opts ...AuthOption) (*AuthSession, error) {
	block, err := alg.newCipher(key)
	if err != nil {
		return nil, err
	}
	s := &AuthSession{
		alg:    alg,
		block:  block,
		random: rand.Reader,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the handshake algorithm.
func (s *AuthSession) Algorithm() Algorithm {
	return s.alg
}

// State returns the current handshake state.
func (s *AuthSession) State() AuthState {
	return s.state
}

// Authenticated reports whether the card proved knowledge of the key.
func (s *AuthSession) Authenticated() bool {
	return s.state == StateAuthenticated
}

// SessionKey returns the derived session key, or nil before a successful
// second pass.
func (s *AuthSession) SessionKey() []byte {
	if s.sessionKey == nil {
		return nil
	}
	return append([]byte(nil), s.sessionKey...)
}

// Challenge records the card's encrypted randomB. It must be exactly one
// block.
func (s *AuthSession) Challenge(ciphertext []byte) error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: challenge in state %s", ErrAuthState, s.state)
	}
	if len(ciphertext) != s.alg.BlockSize() {
		return fmt.Errorf("%w: challenge is %d bytes, want %d", ErrInvalidResponse, len(ciphertext), s.alg.BlockSize())
	}
	s.challenge = append([]byte(nil), ciphertext...)
	s.state = StateChallengeIssued
	return nil
}

// FirstPass solves the challenge and returns ek(randomA || rotl(randomB)).
func (s *AuthSession) FirstPass() ([]byte, error) {
	if s.state != StateChallengeIssued {
		return nil, fmt.Errorf("%w: first pass in state %s", ErrAuthState, s.state)
	}
	bs := s.alg.BlockSize()

	randomB, err := cbcDecrypt(s.block, make([]byte, bs), s.challenge)
	if err != nil {
		return nil, err
	}
	randomA := make([]byte, bs)
	if _, err := io.ReadFull(s.random, randomA); err != nil {
		return nil, fmt.Errorf("failed to generate randomA: %w", err)
	}

	plain := make([]byte, 0, 2*bs)
	plain = append(plain, randomA...)
	plain = append(plain, RotateLeft(randomB)...)
	out, err := cbcEncrypt(s.block, s.challenge, plain)
	if err != nil {
		return nil, err
	}

	s.randomA = randomA
	s.randomB = randomB
	s.iv = append([]byte(nil), out[len(out)-bs:]...)
	s.state = StateFirstPassSubmitted
	return out, nil
}

// SecondPass checks the card's ek(rotl(randomA)). A mismatch moves the
// session to StateFailed and returns false; it is not an error.
func (s *AuthSession) SecondPass(ciphertext []byte) bool {
	if s.state != StateFirstPassSubmitted {
		s.state = StateFailed
		return false
	}
	if len(ciphertext) == 0 || len(ciphertext)%s.alg.BlockSize() != 0 {
		s.state = StateFailed
		return false
	}
	plain, err := cbcDecrypt(s.block, s.iv, ciphertext)
	if err != nil || !bytes.Equal(plain, RotateLeft(s.randomA)) {
		s.state = StateFailed
		return false
	}

	s.sessionKey = deriveSessionKey(s.alg, s.randomA, s.randomB)
	s.state = StateAuthenticated
	return true
}

// Fail marks the handshake as rejected by the card.
func (s *AuthSession) Fail() {
	s.state = StateFailed
}

// Result returns the handshake outcome.
func (s *AuthSession) Result() *AuthResult {
	return &AuthResult{
		Authenticated: s.Authenticated(),
		State:         s.state,
		SessionKey:    s.SessionKey(),
	}
}

func deriveSessionKey(alg Algorithm, a, b []byte) []byte {
	key := make([]byte, 0, alg.BlockSize())
	key = append(key, a[:4]...)
	key = append(key, b[:4]...)
	if alg == AlgorithmAES128 {
		key = append(key, a[12:16]...)
		key = append(key, b[12:16]...)
	}
	return key
}
