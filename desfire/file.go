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
	"fmt"
)

// File types reported by GetFileSettings
const (
	FileTypeStdData      = 0x00
	FileTypeBackupData   = 0x01
	FileTypeValue        = 0x02
	FileTypeLinearRecord = 0x03
	FileTypeCyclicRecord = 0x04
)

// FileSettings is the reply to GetFileSettings. Details holds the
// type-specific remainder (size, limits or record layout).
type FileSettings struct {
	Details      []byte
	AccessRights [2]byte
	FileType     byte
	Comms        byte
}

// Size returns the file size of a data file, or the record size of a
// record file.
func (s *FileSettings) Size() (uint32, bool) {
	switch s.FileType {
	case FileTypeStdData, FileTypeBackupData, FileTypeLinearRecord, FileTypeCyclicRecord:
		if len(s.Details) >= 3 {
			return ParseUint24([3]byte{s.Details[0], s.Details[1], s.Details[2]}), true
		}
	}
	return 0, false
}

// GetFileIDs lists the file numbers of the selected application.
func (c *Card) GetFileIDs(ctx context.Context) ([]byte, error) {
	resp, err := c.run(ctx, CmdGetFileIDs)
	if err != nil {
		return nil, fmt.Errorf("get file IDs: %w", err)
	}
	return append([]byte(nil), c.payload(resp)...), nil
}

// CreateStdDataFile creates a standard data file in the selected
// application.
func (c *Card) CreateStdDataFile(ctx context.Context, f StdDataFile) error {
	if _, err := c.run(ctx, CmdCreateStdDataFile, f.bytes()...); err != nil {
		return fmt.Errorf("create data file %d: %w", f.FileNo, err)
	}
	return nil
}

// CreateValueFile creates a value file in the selected application.
func (c *Card) CreateValueFile(ctx context.Context, f ValueFile) error {
	if _, err := c.run(ctx, CmdCreateValueFile, f.bytes()...); err != nil {
		return fmt.Errorf("create value file %d: %w", f.FileNo, err)
	}
	return nil
}

// CreateCyclicRecordFile creates a cyclic record file in the selected
// application.
func (c *Card) CreateCyclicRecordFile(ctx context.Context, f CyclicRecordFile) error {
	if _, err := c.run(ctx, CmdCreateCyclicRecordFile, f.bytes()...); err != nil {
		return fmt.Errorf("create cyclic record file %d: %w", f.FileNo, err)
	}
	return nil
}

// DeleteFile deletes fileNo from the selected application.
func (c *Card) DeleteFile(ctx context.Context, fileNo byte) error {
	if _, err := c.run(ctx, CmdDeleteFile, fileNo); err != nil {
		return fmt.Errorf("delete file %d: %w", fileNo, err)
	}
	return nil
}

// GetFileSettings reads the settings of fileNo.
func (c *Card) GetFileSettings(ctx context.Context, fileNo byte) (*FileSettings, error) {
	resp, err := c.run(ctx, CmdGetFileSettings, fileNo)
	if err != nil {
		return nil, fmt.Errorf("get file settings %d: %w", fileNo, err)
	}
	data := c.payload(resp)
	if len(data) < 4 {
		return nil, fmt.Errorf("get file settings %d: %w: %d bytes", fileNo, ErrInvalidResponse, len(data))
	}
	return &FileSettings{
		FileType:     data[0],
		Comms:        data[1],
		AccessRights: [2]byte{data[2], data[3]},
		Details:      append([]byte(nil), data[4:]...),
	}, nil
}
