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
	"context"
	"encoding/binary"
	"fmt"
)

// DefaultReadLength is the read length used by skad3ctl when none is given.
const DefaultReadLength = 0x10

// ReadData reads length bytes of fileNo from offset. A length of 0 reads to
// the end of the file.
func (c *Card) ReadData(ctx context.Context, fileNo byte, offset, length uint32) ([]byte, error) {
	off, n := Uint24(offset), Uint24(length)
	data, err := c.runAll(ctx, CmdReadData, fileNo, off[0], off[1], off[2], n[0], n[1], n[2])
	if err != nil {
		return nil, fmt.Errorf("read data file %d: %w", fileNo, err)
	}
	return data, nil
}

// WriteData writes data to fileNo at offset.
func (c *Card) WriteData(ctx context.Context, fileNo byte, offset uint32, data []byte) error {
	if err := c.write(ctx, CmdWriteData, fileNo, offset, data); err != nil {
		return fmt.Errorf("write data file %d: %w", fileNo, err)
	}
	return nil
}

// WriteRecord writes data into the current record of a record file at
// offset. The record becomes visible after CommitTransaction.
func (c *Card) WriteRecord(ctx context.Context, fileNo byte, offset uint32, data []byte) error {
	if err := c.write(ctx, CmdWriteRecord, fileNo, offset, data); err != nil {
		return fmt.Errorf("write record file %d: %w", fileNo, err)
	}
	return nil
}

func (c *Card) write(ctx context.Context, ins, fileNo byte, offset uint32, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: no data", ErrInvalidParameter)
	}
	if 7+len(data) > MaxCommandData {
		return fmt.Errorf("%w: %d bytes exceed a single frame", ErrInvalidParameter, len(data))
	}
	off, n := Uint24(offset), Uint24(uint32(len(data)))
	cmd := make([]byte, 0, 7+len(data))
	cmd = append(cmd, fileNo, off[0], off[1], off[2], n[0], n[1], n[2])
	cmd = append(cmd, data...)
	_, err := c.run(ctx, ins, cmd...)
	return err
}

// ReadRecords reads count records of fileNo starting at record number
// first, counted from the newest. A count of 0 reads all records.
func (c *Card) ReadRecords(ctx context.Context, fileNo byte, first, count uint32) ([]byte, error) {
	rec, n := Uint24(first), Uint24(count)
	data, err := c.runAll(ctx, CmdReadRecords, fileNo, rec[0], rec[1], rec[2], n[0], n[1], n[2])
	if err != nil {
		return nil, fmt.Errorf("read records file %d: %w", fileNo, err)
	}
	return data, nil
}

// Credit adds amount to a value file. Amounts are sent big-endian; GetValue
// decodes the same way, so values round-trip through this package.
func (c *Card) Credit(ctx context.Context, fileNo byte, amount uint32) error {
	if _, err := c.run(ctx, CmdCredit, valueCommand(fileNo, amount)...); err != nil {
		return fmt.Errorf("credit file %d: %w", fileNo, err)
	}
	return nil
}

// Debit subtracts amount from a value file.
func (c *Card) Debit(ctx context.Context, fileNo byte, amount uint32) error {
	if _, err := c.run(ctx, CmdDebit, valueCommand(fileNo, amount)...); err != nil {
		return fmt.Errorf("debit file %d: %w", fileNo, err)
	}
	return nil
}

func valueCommand(fileNo byte, amount uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = fileNo
	binary.BigEndian.PutUint32(cmd[1:], amount)
	return cmd
}

// GetValue reads the committed value of a value file.
func (c *Card) GetValue(ctx context.Context, fileNo byte) (uint32, error) {
	resp, err := c.run(ctx, CmdGetValue, fileNo)
	if err != nil {
		return 0, fmt.Errorf("get value file %d: %w", fileNo, err)
	}
	data := c.payload(resp)
	if len(data) < 4 {
		return 0, fmt.Errorf("get value file %d: %w: %d bytes", fileNo, ErrInvalidResponse, len(data))
	}
	return binary.BigEndian.Uint32(data[:4]), nil
}

// CommitTransaction makes pending value and record changes permanent.
func (c *Card) CommitTransaction(ctx context.Context) error {
	if _, err := c.run(ctx, CmdCommitTransaction); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
