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
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// Algorithm selects the cipher of an authentication handshake.
type Algorithm int

// Supported algorithms
const (
	// AlgorithmDES is single DES with 8-byte keys. 16-byte keys are run as
	// two-key triple DES.
	AlgorithmDES Algorithm = iota
	// AlgorithmAES128 is AES with 16-byte keys.
	AlgorithmAES128
)

// BlockSize returns the cipher block size in bytes.
func (a Algorithm) BlockSize() int {
	if a == AlgorithmAES128 {
		return aes.BlockSize
	}
	return des.BlockSize
}

// KeySize returns the canonical key length in bytes.
func (a Algorithm) KeySize() int {
	if a == AlgorithmAES128 {
		return 16
	}
	return 8
}

// AuthCommand returns the native authentication command code.
func (a Algorithm) AuthCommand() byte {
	if a == AlgorithmAES128 {
		return CmdAuthenticateAES
	}
	return CmdAuthenticateLegacy
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmDES:
		return "DES"
	case AlgorithmAES128:
		return "AES"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	return a == AlgorithmDES || a == AlgorithmAES128
}

func (a Algorithm) newCipher(key []byte) (cipher.Block, error) {
	switch a {
	case AlgorithmAES128:
		if len(key) != 16 {
			return nil, fmt.Errorf("%w: AES key must be 16 bytes, got %d", ErrInvalidParameter, len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes cipher: %w", err)
		}
		return block, nil
	case AlgorithmDES:
		var block cipher.Block
		var err error
		switch len(key) {
		case 8:
			block, err = des.NewCipher(key)
		case 16:
			k := make([]byte, 0, 24)
			k = append(k, key...)
			k = append(k, key[:8]...)
			block, err = des.NewTripleDESCipher(k)
		default:
			return nil, fmt.Errorf("%w: DES key must be 8 or 16 bytes, got %d", ErrInvalidParameter, len(key))
		}
		if err != nil {
			return nil, fmt.Errorf("des cipher: %w", err)
		}
		return block, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidParameter, int(a))
	}
}

func cbcEncrypt(block cipher.Block, iv, data []byte) ([]byte, error) {
	if len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: CBC encrypt: %d bytes not block aligned", ErrInvalidParameter, len(data))
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func cbcDecrypt(block cipher.Block, iv, data []byte) ([]byte, error) {
	if len(data)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: CBC decrypt: %d bytes not block aligned", ErrInvalidParameter, len(data))
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// RotateLeft returns in rotated one byte to the left.
func RotateLeft(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	copy(out, in[1:])
	out[len(in)-1] = in[0]
	return out
}

// RotateRight returns in rotated one byte to the right.
func RotateRight(in []byte) []byte {
	out := make([]byte, len(in))
	if len(in) == 0 {
		return out
	}
	out[0] = in[len(in)-1]
	copy(out[1:], in[:len(in)-1])
	return out
}
