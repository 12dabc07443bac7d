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

// Card status words returned through the APDU tunnel
const (
	SWSuccess             uint16 = 0x9000 // ISO success
	SWOperationOK         uint16 = 0x9100 // DESFire operation complete
	SWNoChanges           uint16 = 0x910C
	SWOutOfEEPROM         uint16 = 0x910E
	SWIllegalCommand      uint16 = 0x911C
	SWIntegrityError      uint16 = 0x911E
	SWNoSuchKey           uint16 = 0x9140
	SWLengthError         uint16 = 0x917E
	SWPermissionDenied    uint16 = 0x919D
	SWParameterError      uint16 = 0x919E
	SWApplicationNotFound uint16 = 0x91A0
	SWApplIntegrityError  uint16 = 0x91A1
	SWAuthenticationError uint16 = 0x91AE
	SWAdditionalFrame     uint16 = 0x91AF // more frames follow
	SWBoundaryError       uint16 = 0x91BE
	SWPICCIntegrityError  uint16 = 0x91C1
	SWCommandAborted      uint16 = 0x91CA
	SWPICCDisabled        uint16 = 0x91CD
	SWCountError          uint16 = 0x91CE
	SWDuplicateError      uint16 = 0x91DE
	SWEEPROMError         uint16 = 0x91EE
	SWFileNotFound        uint16 = 0x91F0
	SWFileIntegrityError  uint16 = 0x91F1
)

var statusWordDescriptions = map[uint16]string{
	SWSuccess:             "success",
	SWOperationOK:         "successful operation",
	SWNoChanges:           "no changes done to backup files",
	SWOutOfEEPROM:         "insufficient NV-memory to complete command",
	SWIllegalCommand:      "command code not supported",
	SWIntegrityError:      "CRC or MAC does not match data",
	SWNoSuchKey:           "invalid key number specified",
	SWLengthError:         "length of command string invalid",
	SWPermissionDenied:    "current configuration or status does not allow the requested command",
	SWParameterError:      "value of the parameter(s) invalid",
	SWApplicationNotFound: "requested AID not present on PICC",
	SWApplIntegrityError:  "unrecoverable error within application",
	SWAuthenticationError: "current authentication status does not allow the requested command",
	SWAdditionalFrame:     "additional data frame is expected to be sent",
	SWBoundaryError:       "attempt to read or write data out of the file's or record's limits",
	SWPICCIntegrityError:  "unrecoverable error within PICC",
	SWCommandAborted:      "previous command was not fully completed",
	SWPICCDisabled:        "PICC was disabled by an unrecoverable error",
	SWCountError:          "number of applications limited to 28",
	SWDuplicateError:      "creation of file or application failed because it already exists",
	SWEEPROMError:         "could not complete NV-write operation due to loss of power",
	SWFileNotFound:        "specified file number does not exist",
	SWFileIntegrityError:  "unrecoverable error within file",
}

// successStatusWords are the status words that count as a successful exchange.
var successStatusWords = map[uint16]bool{
	SWOperationOK:     true,
	SWSuccess:         true,
	SWAdditionalFrame: true,
}

// DescribeStatusWord returns the description of a card status word, or an
// *UndocumentedStatusWordError if it has none.
func DescribeStatusWord(sw uint16) (string, error) {
	desc, ok := statusWordDescriptions[sw]
	if !ok {
		return "", &UndocumentedStatusWordError{SW: sw}
	}
	return desc, nil
}

// IsSuccessStatusWord reports whether sw is in the success set.
func IsSuccessStatusWord(sw uint16) bool {
	return successStatusWords[sw]
}
