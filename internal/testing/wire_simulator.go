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

// Package testing provides test utilities including a wire-level SK-AD3
// simulator.
//
// VirtualSKAD3 speaks the dispenser's Command Package protocol on a
// byte-oriented Read(n)/Buffered link and tunnels APDU exchanges to a
// VirtualDESFire. It covers the basic commands (init, status sense, move,
// insertion, RF card type test, RF activation) and can inject the line
// faults seen on real hardware: a missing or doubled ACK, a corrupted BCC,
// garbage before a reply or a reply cut short.
package testing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-skad3/internal/frame"
	"github.com/ZaparooProject/go-skad3/internal/syncutil"
)

// Simulator errors. Consumers translate them to their own transport errors.
var (
	ErrNotOpen = errors.New("virtual dispenser: channel not open")
	ErrNoData  = errors.New("virtual dispenser: no data to read")
)

// Basic command codes understood by the simulator
const (
	cmInit          = 0x30
	cmStatusSense   = 0x31
	cmMoveCard      = 0x32
	cmSetInsertion  = 0x33
	cmAutoTestCard  = 0x50
	cmRFCardOperate = frame.APDUCommand
)

// Device error codes produced by the simulator
const (
	errUndefinedCommand  = 0x3030
	errParameter         = 0x3031
	errCommunicationData = 0x3034
	errICActivation      = 0x3631
	errStackerEmpty      = 0x4130
	errCaptureFull       = 0x4131
	errNotReset          = 0x4230
)

// Sensor codes
const (
	dispenserEmpty    = 0x30
	dispenserOneCard  = 0x31
	dispenserCardAtRF = 0x32
	stackerEmpty      = 0x30
	stackerFew        = 0x31
	stackerSufficient = 0x32
	captureNotFull    = 0x30
	captureFull       = 0x31
)

// DispenserState is a snapshot of the simulated device.
type DispenserState struct {
	StackerCards  int
	CapturedCards int
	Initialized   bool
	CardAtRF      bool
	RFActive      bool
	Insertion     bool
}

// VirtualSKAD3 simulates an SK-AD3 dispenser at the wire protocol level.
// It satisfies the Channel contract of the driver apart from Type, so tests
// wrap it in a small adapter.
type VirtualSKAD3 struct {
	card           *VirtualDESFire
	garbage        []byte
	commandLog     [][]byte
	rxBuffer       bytes.Buffer
	txBuffer       bytes.Buffer
	state          DispenserState
	mu             syncutil.Mutex
	captureLimit   int
	truncateBy     int
	opens          int
	open           bool
	requireInit    bool
	omitACK        bool
	dropNextACK    bool
	doubleNextACK  bool
	corruptNextBCC bool
	failWrite      error
}

// NewVirtualSKAD3 creates a simulator with a stocked stacker, a card at the
// RF position and the dispenser already initialized.
func NewVirtualSKAD3(card *VirtualDESFire) *VirtualSKAD3 {
	return &VirtualSKAD3{
		card:         card,
		captureLimit: 50,
		state: DispenserState{
			StackerCards: 20,
			Initialized:  true,
			CardAtRF:     card != nil,
		},
	}
}

// Open marks the link open.
func (v *VirtualSKAD3) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = true
	v.opens++
	return nil
}

// Close marks the link closed and discards unread bytes.
func (v *VirtualSKAD3) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = false
	v.rxBuffer.Reset()
	v.txBuffer.Reset()
	return nil
}

// Port returns a fixed identifier.
func (*VirtualSKAD3) Port() string {
	return "virtual-skad3"
}

// Write receives a frame from the host and queues the reply.
func (v *VirtualSKAD3) Write(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.open {
		return ErrNotOpen
	}
	if v.failWrite != nil {
		err := v.failWrite
		v.failWrite = nil
		return err
	}
	v.rxBuffer.Write(data)
	v.processReceivedData()
	return nil
}

// Read returns up to n queued bytes. Fewer than n bytes are returned when
// the reply is shorter, as a serial port does on timeout.
func (v *VirtualSKAD3) Read(n int) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.open {
		return nil, ErrNotOpen
	}
	if v.txBuffer.Len() == 0 {
		return nil, ErrNoData
	}
	return bytes.Clone(v.txBuffer.Next(n)), nil
}

// Buffered reports the number of queued reply bytes.
func (v *VirtualSKAD3) Buffered() (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.open {
		return 0, ErrNotOpen
	}
	return v.txBuffer.Len(), nil
}

// Card returns the simulated card, or nil.
func (v *VirtualSKAD3) Card() *VirtualDESFire {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.card
}

// SetCard places a card at the RF position, or removes it when card is nil.
func (v *VirtualSKAD3) SetCard(card *VirtualDESFire) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = card
	v.state.CardAtRF = card != nil
	v.state.RFActive = false
}

// SetStackerCards sets the number of cards in the stacker.
func (v *VirtualSKAD3) SetStackerCards(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.StackerCards = n
}

// RequireInit resets the simulator to the power-up state, in which every
// command except Init and status sense is refused.
func (v *VirtualSKAD3) RequireInit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requireInit = true
	v.state.Initialized = false
}

// OmitACK stops the simulator from prefixing replies with 0x06.
func (v *VirtualSKAD3) OmitACK(omit bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.omitACK = omit
}

// DropNextACK sends the next reply without its leading 0x06.
func (v *VirtualSKAD3) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// DoubleNextACK sends the next reply with two leading 0x06 bytes.
func (v *VirtualSKAD3) DoubleNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doubleNextACK = true
}

// CorruptNextChecksum sends the next reply with an inverted BCC.
func (v *VirtualSKAD3) CorruptNextChecksum() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNextBCC = true
}

// InjectGarbage sends data ahead of the next reply.
func (v *VirtualSKAD3) InjectGarbage(data ...byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.garbage = append(v.garbage, data...)
}

// TruncateNextReply drops the last n bytes of the next reply.
func (v *VirtualSKAD3) TruncateNextReply(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.truncateBy = n
}

// FailNextWrite makes the next Write return err.
func (v *VirtualSKAD3) FailNextWrite(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failWrite = err
}

// GetState returns the current simulator state.
func (v *VirtualSKAD3) GetState() DispenserState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Opens returns how many times the link was opened.
func (v *VirtualSKAD3) Opens() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opens
}

// IsOpen reports whether the link is open.
func (v *VirtualSKAD3) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// Commands returns the frames received so far.
func (v *VirtualSKAD3) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.commandLog))
	for i, c := range v.commandLog {
		out[i] = bytes.Clone(c)
	}
	return out
}

// processReceivedData extracts complete frames from the receive buffer.
// Bytes before an STX are discarded.
func (v *VirtualSKAD3) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()
		start := bytes.IndexByte(data, frame.STX)
		if start < 0 {
			v.rxBuffer.Reset()
			return
		}
		v.rxBuffer.Next(start)
		data = v.rxBuffer.Bytes()
		if len(data) < frame.PrefixSize {
			return
		}
		length := frame.TextLength(data)
		total := frame.PrefixSize + length + frame.TrailerSize
		if length < frame.MinTextLength || length > frame.MaxTextLength {
			v.rxBuffer.Reset()
			v.reply(BuildNegativeReply(data[frame.OffsetAddress], 0, 0, errCommunicationData))
			return
		}
		if len(data) < total {
			return
		}
		frm := bytes.Clone(data[:total])
		v.rxBuffer.Next(total)
		v.commandLog = append(v.commandLog, frm)
		v.handleFrame(frm)
	}
}

func (v *VirtualSKAD3) handleFrame(frm []byte) {
	addr := frm[frame.OffsetAddress]
	if frm[len(frm)-2] != frame.ETX || frame.ValidateChecksum(frm) != nil ||
		frm[frame.OffsetMsgType] != frame.CMT {
		v.reply(BuildNegativeReply(addr, frm[frame.OffsetCommand], frm[frame.OffsetParameter], errCommunicationData))
		return
	}

	cm, pm := frm[frame.OffsetCommand], frm[frame.OffsetParameter]
	data := frm[frame.OffsetParameter+1 : len(frm)-frame.TrailerSize]

	if v.requireInit && !v.state.Initialized && cm != cmInit && cm != cmStatusSense {
		v.reply(BuildNegativeReply(addr, cm, pm, errNotReset))
		return
	}

	var code uint16
	var body []byte
	switch cm {
	case cmInit:
		code = v.initialize(pm)
	case cmStatusSense:
		code = v.paramCheck(pm == 0x30)
	case cmMoveCard:
		code = v.moveCard(pm)
	case cmSetInsertion:
		code = v.paramCheck(pm == 0x30 || pm == 0x31)
		if code == 0 {
			v.state.Insertion = pm == 0x30
		}
	case cmAutoTestCard:
		code = v.paramCheck(pm == 0x31)
		body = []byte{'0', '0'}
		if v.state.CardAtRF {
			body = []byte{'2', '0'}
		}
	case cmRFCardOperate:
		code, body = v.rfOperate(pm, data)
	default:
		code = errUndefinedCommand
	}

	if code != 0 {
		v.reply(BuildNegativeReply(addr, cm, pm, code))
		return
	}
	v.reply(BuildPositiveReply(addr, cm, pm, v.status(), body...))
}

func (*VirtualSKAD3) paramCheck(ok bool) uint16 {
	if ok {
		return 0
	}
	return errParameter
}

func (v *VirtualSKAD3) initialize(pm byte) uint16 {
	switch pm {
	case 0x30, 0x34:
	case 0x31, 0x35:
		if v.state.CardAtRF {
			v.capture()
		}
	case 0x33, 0x37:
	default:
		return errParameter
	}
	v.state.Initialized = true
	v.state.RFActive = false
	return 0
}

func (v *VirtualSKAD3) capture() {
	v.state.CardAtRF = false
	v.state.RFActive = false
	v.state.CapturedCards++
	v.card = nil
}

func (v *VirtualSKAD3) moveCard(pm byte) uint16 {
	switch pm {
	case 0x30, 0x39:
		v.state.CardAtRF = false
		v.state.RFActive = false
		v.card = nil
	case 0x31, 0x32:
		if !v.state.CardAtRF {
			if v.state.StackerCards == 0 {
				return errStackerEmpty
			}
			v.state.StackerCards--
			v.state.CardAtRF = true
			v.card = NewVirtualDESFire([7]byte{0x04, 0x52, 0x3A, 0x7A, 0x12, 0x5D, byte(v.state.StackerCards)})
		}
	case 0x33:
		if v.state.CapturedCards >= v.captureLimit {
			return errCaptureFull
		}
		v.capture()
	default:
		return errParameter
	}
	return 0
}

func (v *VirtualSKAD3) rfOperate(pm byte, data []byte) (uint16, []byte) {
	switch pm {
	case 0x30:
		if len(data) != 2 {
			return errParameter, nil
		}
		if !v.state.CardAtRF || v.card == nil {
			return errICActivation, nil
		}
		v.state.RFActive = true
		return 0, []byte{0x41, 0x44, 0x00}
	case 0x31:
		v.state.RFActive = false
		return 0, nil
	case frame.APDUParameter:
		if !v.state.RFActive || v.card == nil {
			return errICActivation, nil
		}
		return 0, v.card.Process(data)
	default:
		return errParameter, nil
	}
}

func (v *VirtualSKAD3) status() Status {
	st := Status{dispenserEmpty, stackerSufficient, captureNotFull}
	if v.state.CardAtRF {
		st[0] = dispenserCardAtRF
	}
	switch {
	case v.state.StackerCards == 0:
		st[1] = stackerEmpty
	case v.state.StackerCards < 5:
		st[1] = stackerFew
	}
	if v.state.CapturedCards >= v.captureLimit {
		st[2] = captureFull
	}
	return st
}

// reply queues a reply frame, applying pending fault injection.
func (v *VirtualSKAD3) reply(frm []byte) {
	if v.corruptNextBCC {
		v.corruptNextBCC = false
		frm[len(frm)-1] ^= 0xFF
	}
	if v.truncateBy > 0 {
		frm = frm[:max(0, len(frm)-v.truncateBy)]
		v.truncateBy = 0
	}

	if len(v.garbage) > 0 {
		v.txBuffer.Write(v.garbage)
		v.garbage = nil
	}
	switch {
	case v.dropNextACK:
		v.dropNextACK = false
	case v.doubleNextACK:
		v.doubleNextACK = false
		v.txBuffer.Write([]byte{frame.ACK, frame.ACK})
	case !v.omitACK:
		v.txBuffer.WriteByte(frame.ACK)
	}
	v.txBuffer.Write(frm)
}

// String describes the simulator for test failure messages.
func (v *VirtualSKAD3) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("VirtualSKAD3{%+v pending=%d}", v.state, v.txBuffer.Len())
}
