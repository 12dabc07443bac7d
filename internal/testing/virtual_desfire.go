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

package testing

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ZaparooProject/go-skad3/internal/syncutil"
)

// DESFire status words produced by the simulator
const (
	swOK               = 0x9100
	swNoChanges        = 0x910C
	swIllegalCommand   = 0x911C
	swIntegrityError   = 0x911E
	swNoSuchKey        = 0x9140
	swLengthError      = 0x917E
	swPermissionDenied = 0x919D
	swParameterError   = 0x919E
	swAppNotFound      = 0x91A0
	swAuthError        = 0x91AE
	swAdditionalFrame  = 0x91AF
	swBoundaryError    = 0x91BE
	swDuplicateError   = 0x91DE
	swFileNotFound     = 0x91F0
	swWrongCLA         = 0x6E00
)

// DESFire native commands understood by the simulator
const (
	insAuthLegacy     = 0x0A
	insAuthAES        = 0xAA
	insCreateApp      = 0xCA
	insDeleteApp      = 0xDA
	insGetAppIDs      = 0x6A
	insSelectApp      = 0x5A
	insFormat         = 0xFC
	insGetVersion     = 0x60
	insGetKeyVersion  = 0x64
	insChangeKey      = 0xC4
	insCreateStdFile  = 0xCD
	insCreateValue    = 0xCC
	insCreateCyclic   = 0xC0
	insDeleteFile     = 0xDF
	insGetFileIDs     = 0x6F
	insGetFileSetting = 0xF5
	insReadData       = 0xBD
	insWriteData      = 0x3D
	insGetValue       = 0x6C
	insCredit         = 0x0C
	insDebit          = 0xDC
	insReadRecords    = 0xBB
	insWriteRecord    = 0x3B
	insCommit         = 0xC7
	insAdditional     = 0xAF
)

// maxFrameData is the largest payload the card puts in one reply frame.
const maxFrameData = 59

const macSize = 8

// KeyType is the cipher of a simulated card key.
type KeyType int

// Key types
const (
	KeyDES KeyType = iota
	KeyAES
)

func (k KeyType) blockSize() int {
	if k == KeyAES {
		return aes.BlockSize
	}
	return des.BlockSize
}

// VirtualKey is one key slot of an application.
type VirtualKey struct {
	Value   []byte
	Type    KeyType
	Version byte
}

func newBlock(t KeyType, key []byte) (cipher.Block, error) {
	if t == KeyAES {
		return aes.NewCipher(key)
	}
	if len(key) == 16 {
		k := append(append([]byte(nil), key...), key[:8]...)
		return des.NewTripleDESCipher(k)
	}
	return des.NewCipher(key)
}

type fileKind byte

const (
	fileStd    fileKind = 0x00
	fileValue  fileKind = 0x02
	fileCyclic fileKind = 0x04
)

type virtualFile struct {
	data           []byte
	records        [][]byte
	pendingRecords [][]byte
	access         [2]byte
	lower          int32
	upper          int32
	value          int32
	pendingValue   int32
	recordSize     int
	maxRecords     int
	kind           fileKind
	comms          byte
	limitedCredit  byte
	pending        bool
}

func (f *virtualFile) free() bool {
	return f.access[0] == 0xEE && f.access[1] == 0xEE
}

type virtualApp struct {
	files       map[byte]*virtualFile
	keys        []VirtualKey
	keySettings byte
	appSettings byte
}

type authPending struct {
	block     cipher.Block
	randomB   []byte
	challenge []byte
	keyType   KeyType
	keyNo     byte
}

type authSession struct {
	sessionKey []byte
	keyType    KeyType
	keyNo      byte
}

// VirtualDESFire simulates a MIFARE DESFire EV1 card at the native command
// level: version frames, DES and AES three-pass authentication, ChangeKey,
// applications, standard, value and cyclic record files.
//
// Plain replies carry an 8-byte MAC after an AES authentication, as the
// real card does. The MAC is not a real CMAC.
type VirtualDESFire struct {
	random         io.Reader
	apps           map[[3]byte]*virtualApp
	pending        *authPending
	session        *authSession
	version        [3][]byte
	continuation   [][]byte
	piccKeys       []VirtualKey
	commandLog     []byte
	mu             syncutil.Mutex
	selected       [3]byte
	piccSettings   byte
	failSecondPass bool
}

// NewVirtualDESFire creates a factory-fresh card: the PICC master key is
// the all-zero DES key and there are no applications.
func NewVirtualDESFire(uid [7]byte) *VirtualDESFire {
	third := make([]byte, 0, 14)
	third = append(third, uid[:]...)
	third = append(third, 0xBA, 0x34, 0x49, 0x10, 0x80, 0x22, 0x19)
	return &VirtualDESFire{
		random:       rand.Reader,
		apps:         make(map[[3]byte]*virtualApp),
		piccKeys:     []VirtualKey{{Type: KeyDES, Value: make([]byte, 8)}},
		piccSettings: 0x0F,
		version: [3][]byte{
			{0x04, 0x01, 0x01, 0x01, 0x00, 0x18, 0x05},
			{0x04, 0x01, 0x01, 0x01, 0x04, 0x18, 0x05},
			third,
		},
	}
}

// SetRandom sets the source of randomB.
func (c *VirtualDESFire) SetRandom(r io.Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.random = r
}

// SetPICCKey replaces the PICC master key.
func (c *VirtualDESFire) SetPICCKey(t KeyType, key []byte, version byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.piccKeys[0] = VirtualKey{Type: t, Value: append([]byte(nil), key...), Version: version}
}

// PICCKey returns the PICC master key.
func (c *VirtualDESFire) PICCKey() VirtualKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.piccKeys[0]
}

// AddApplication creates an application with all-zero keys of type t.
func (c *VirtualDESFire) AddApplication(aid [3]byte, t KeyType, keys int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	settings := byte(keys & 0x0F)
	if t == KeyAES {
		settings |= 0x80
	}
	c.apps[aid] = newVirtualApp(0x0F, settings)
}

// AppKey returns key keyNo of application aid.
func (c *VirtualDESFire) AppKey(aid [3]byte, keyNo int) (VirtualKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	app, ok := c.apps[aid]
	if !ok || keyNo >= len(app.keys) {
		return VirtualKey{}, false
	}
	return app.keys[keyNo], true
}

// HasApplication reports whether aid exists.
func (c *VirtualDESFire) HasApplication(aid [3]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.apps[aid]
	return ok
}

// FileData returns the content of a standard data file.
func (c *VirtualDESFire) FileData(aid [3]byte, fileNo byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	app, ok := c.apps[aid]
	if !ok {
		return nil, false
	}
	f, ok := app.files[fileNo]
	if !ok || f.kind != fileStd {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

// FailNextSecondPass makes the next authentication return a proof that
// does not match randomA.
func (c *VirtualDESFire) FailNextSecondPass() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSecondPass = true
}

// Authenticated reports the key number of the current session.
func (c *VirtualDESFire) Authenticated() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, false
	}
	return c.session.keyNo, true
}

// SessionKey returns the key of the current session, or nil.
func (c *VirtualDESFire) SessionKey() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return append([]byte(nil), c.session.sessionKey...)
}

// Commands returns the native command codes received so far.
func (c *VirtualDESFire) Commands() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.commandLog...)
}

func newVirtualApp(keySettings, appSettings byte) *virtualApp {
	app := &virtualApp{
		files:       make(map[byte]*virtualFile),
		keySettings: keySettings,
		appSettings: appSettings,
	}
	t, size := KeyDES, 8
	if appSettings&0x80 != 0 {
		t, size = KeyAES, 16
	}
	for range int(appSettings & 0x0F) {
		app.keys = append(app.keys, VirtualKey{Type: t, Value: make([]byte, size)})
	}
	return app
}

// Process handles one ISO 7816-4 wrapped command and returns the response
// data followed by SW1 SW2.
func (c *VirtualDESFire) Process(apdu []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(apdu) < 5 || apdu[0] != 0x90 {
		return sw(swWrongCLA)
	}
	ins := apdu[1]
	var data []byte
	if len(apdu) > 5 {
		lc := int(apdu[4])
		if len(apdu) != 5+lc+1 {
			return sw(swLengthError)
		}
		data = apdu[5 : 5+lc]
	}
	c.commandLog = append(c.commandLog, ins)

	if ins != insAdditional {
		c.continuation = nil
		if c.pending != nil {
			c.pending = nil
		}
	}

	switch ins {
	case insAdditional:
		return c.additionalFrame(data)
	case insGetVersion:
		c.continuation = [][]byte{c.version[1], c.macked(c.version[2])}
		return sw(swAdditionalFrame, c.version[0]...)
	case insAuthLegacy, insAuthAES:
		return c.authenticate(ins, data)
	case insGetAppIDs:
		return c.getApplicationIDs()
	case insSelectApp:
		return c.selectApplication(data)
	case insCreateApp:
		return c.createApplication(data)
	case insDeleteApp:
		return c.deleteApplication(data)
	case insFormat:
		return c.format()
	case insGetKeyVersion:
		return c.getKeyVersion(data)
	case insChangeKey:
		return c.changeKey(data)
	case insCreateStdFile, insCreateValue, insCreateCyclic:
		return c.createFile(ins, data)
	case insDeleteFile:
		return c.deleteFile(data)
	case insGetFileIDs:
		return c.getFileIDs()
	case insGetFileSetting:
		return c.getFileSettings(data)
	case insReadData:
		return c.readData(data)
	case insWriteData, insWriteRecord:
		return c.write(ins, data)
	case insGetValue:
		return c.getValue(data)
	case insCredit, insDebit:
		return c.changeValue(ins, data)
	case insReadRecords:
		return c.readRecords(data)
	case insCommit:
		return c.commit()
	default:
		return sw(swIllegalCommand)
	}
}

func sw(code uint16, data ...byte) []byte {
	return SW(code, data...)
}

// macked appends the session MAC to a plain reply when an AES session is
// active.
func (c *VirtualDESFire) macked(data []byte) []byte {
	if c.session == nil || c.session.keyType != KeyAES {
		return data
	}
	block, err := aes.NewCipher(c.session.sessionKey)
	if err != nil {
		return data
	}
	padded := make([]byte, (len(data)/aes.BlockSize+1)*aes.BlockSize)
	copy(padded, data)
	padded[len(data)] = 0x80
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, padded)
	mac := out[len(out)-aes.BlockSize : len(out)-aes.BlockSize+macSize]
	return append(append([]byte(nil), data...), mac...)
}

// framed splits a reply into frames of maxFrameData, queueing all but the
// first as continuations.
func (c *VirtualDESFire) framed(data []byte) []byte {
	if len(data) <= maxFrameData {
		return sw(swOK, data...)
	}
	first := data[:maxFrameData]
	for rest := data[maxFrameData:]; len(rest) > 0; {
		n := min(len(rest), maxFrameData)
		c.continuation = append(c.continuation, rest[:n])
		rest = rest[n:]
	}
	return sw(swAdditionalFrame, first...)
}

func (c *VirtualDESFire) additionalFrame(data []byte) []byte {
	if c.pending != nil {
		return c.secondPass(data)
	}
	if len(c.continuation) == 0 {
		return sw(swIllegalCommand)
	}
	next := c.continuation[0]
	c.continuation = c.continuation[1:]
	if len(c.continuation) > 0 {
		return sw(swAdditionalFrame, next...)
	}
	return sw(swOK, next...)
}

func (c *VirtualDESFire) currentKeys() []VirtualKey {
	if c.selected == [3]byte{} {
		return c.piccKeys
	}
	return c.apps[c.selected].keys
}

func (c *VirtualDESFire) authenticate(ins byte, data []byte) []byte {
	c.session = nil
	if len(data) != 1 {
		return sw(swLengthError)
	}
	keyNo := data[0]
	keys := c.currentKeys()
	if int(keyNo) >= len(keys) {
		return sw(swNoSuchKey)
	}
	key := keys[keyNo]
	if (ins == insAuthAES) != (key.Type == KeyAES) {
		return sw(swAuthError)
	}

	block, err := newBlock(key.Type, key.Value)
	if err != nil {
		return sw(swIntegrityError)
	}
	bs := key.Type.blockSize()
	randomB := make([]byte, bs)
	if _, err := io.ReadFull(c.random, randomB); err != nil {
		return sw(swIntegrityError)
	}
	challenge := make([]byte, bs)
	cipher.NewCBCEncrypter(block, make([]byte, bs)).CryptBlocks(challenge, randomB)

	c.pending = &authPending{
		block:     block,
		randomB:   randomB,
		challenge: challenge,
		keyType:   key.Type,
		keyNo:     keyNo,
	}
	return sw(swAdditionalFrame, challenge...)
}

func (c *VirtualDESFire) secondPass(data []byte) []byte {
	p := c.pending
	c.pending = nil
	bs := p.keyType.blockSize()
	if len(data) != 2*bs {
		return sw(swLengthError)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(p.block, p.challenge).CryptBlocks(plain, data)
	randomA := plain[:bs]
	if !bytes.Equal(plain[bs:], rotl(p.randomB)) {
		return sw(swAuthError)
	}

	proof := rotl(randomA)
	if c.failSecondPass {
		c.failSecondPass = false
		proof[0] ^= 0xFF
	}
	out := make([]byte, bs)
	cipher.NewCBCEncrypter(p.block, data[len(data)-bs:]).CryptBlocks(out, proof)

	sessionKey := append(append([]byte(nil), randomA[:4]...), p.randomB[:4]...)
	if p.keyType == KeyAES {
		sessionKey = append(sessionKey, randomA[12:16]...)
		sessionKey = append(sessionKey, p.randomB[12:16]...)
	}
	c.session = &authSession{keyNo: p.keyNo, keyType: p.keyType, sessionKey: sessionKey}
	return sw(swOK, out...)
}

func rotl(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in[1:])
	out[len(in)-1] = in[0]
	return out
}

func (c *VirtualDESFire) getApplicationIDs() []byte {
	if c.selected != ([3]byte{}) {
		return sw(swPermissionDenied)
	}
	aids := make([][3]byte, 0, len(c.apps))
	for aid := range c.apps {
		aids = append(aids, aid)
	}
	sort.Slice(aids, func(i, j int) bool { return bytes.Compare(aids[i][:], aids[j][:]) < 0 })
	out := make([]byte, 0, 3*len(aids))
	for _, aid := range aids {
		out = append(out, aid[:]...)
	}
	return c.framed(c.macked(out))
}

func (c *VirtualDESFire) selectApplication(data []byte) []byte {
	c.session = nil
	if len(data) != 3 {
		return sw(swLengthError)
	}
	aid := [3]byte{data[0], data[1], data[2]}
	if aid != ([3]byte{}) {
		if _, ok := c.apps[aid]; !ok {
			return sw(swAppNotFound)
		}
	}
	c.selected = aid
	return sw(swOK)
}

func (c *VirtualDESFire) piccAuthenticated() bool {
	return c.selected == ([3]byte{}) && c.session != nil && c.session.keyNo == 0
}

func (c *VirtualDESFire) createApplication(data []byte) []byte {
	if c.selected != ([3]byte{}) {
		return sw(swPermissionDenied)
	}
	if len(data) != 5 {
		return sw(swLengthError)
	}
	if c.piccSettings&0x04 == 0 && !c.piccAuthenticated() {
		return sw(swAuthError)
	}
	aid := [3]byte{data[0], data[1], data[2]}
	if aid == ([3]byte{}) || data[4]&0x0F == 0 || data[4]&0x0F > 14 {
		return sw(swParameterError)
	}
	if _, ok := c.apps[aid]; ok {
		return sw(swDuplicateError)
	}
	c.apps[aid] = newVirtualApp(data[3], data[4])
	return sw(swOK)
}

func (c *VirtualDESFire) deleteApplication(data []byte) []byte {
	if len(data) != 3 {
		return sw(swLengthError)
	}
	aid := [3]byte{data[0], data[1], data[2]}
	if _, ok := c.apps[aid]; !ok {
		return sw(swAppNotFound)
	}
	delete(c.apps, aid)
	if c.selected == aid {
		c.selected = [3]byte{}
		c.session = nil
	}
	return sw(swOK)
}

func (c *VirtualDESFire) format() []byte {
	if !c.piccAuthenticated() {
		return sw(swAuthError)
	}
	c.apps = make(map[[3]byte]*virtualApp)
	return sw(swOK)
}

func (c *VirtualDESFire) getKeyVersion(data []byte) []byte {
	if len(data) != 1 {
		return sw(swLengthError)
	}
	keys := c.currentKeys()
	keyNo := int(data[0] & 0x0F)
	if keyNo >= len(keys) {
		return sw(swNoSuchKey)
	}
	return sw(swOK, c.macked([]byte{keys[keyNo].Version})...)
}

// changeKey deciphers newKey || version || crc || padding under the session
// key and checks the CRC for a 16- and then an 8-byte new key.
func (c *VirtualDESFire) changeKey(data []byte) []byte {
	if c.session == nil {
		return sw(swAuthError)
	}
	if len(data) < 2 {
		return sw(swLengthError)
	}
	slot := data[0]
	keyNo := int(slot & 0x0F)
	keys := c.currentKeys()
	if keyNo >= len(keys) {
		return sw(swNoSuchKey)
	}

	sessionType := KeyDES
	if len(c.session.sessionKey) == 16 {
		sessionType = KeyAES
	}
	block, err := newBlock(sessionType, c.session.sessionKey)
	if err != nil {
		return sw(swIntegrityError)
	}
	enc := data[1:]
	if len(enc)%block.BlockSize() != 0 {
		return sw(swLengthError)
	}
	plain := make([]byte, len(enc))
	cipher.NewCBCDecrypter(block, make([]byte, block.BlockSize())).CryptBlocks(plain, enc)

	newKey, version, err := matchKeyUpdate(slot, plain)
	if err != nil {
		return sw(swIntegrityError)
	}

	t := keys[keyNo].Type
	if c.selected == ([3]byte{}) && slot&0x80 != 0 {
		t = KeyAES
	}
	if t == KeyAES && len(newKey) != 16 {
		return sw(swIntegrityError)
	}
	keys[keyNo] = VirtualKey{Type: t, Value: newKey, Version: version}
	c.session = nil
	return sw(swOK)
}

var errKeyUpdate = errors.New("key update CRC mismatch")

func matchKeyUpdate(slot byte, plain []byte) (newKey []byte, version byte, err error) {
	for _, n := range []int{16, 8} {
		if len(plain) < n+2 {
			continue
		}
		cand := plain[:n]
		ver := plain[n]
		crcIn := append([]byte{insChangeKey, slot}, cand...)
		crcIn = append(crcIn, ver)
		want := binary.LittleEndian.AppendUint32(nil, crc32Desfire(crcIn))
		if bytes.HasPrefix(plain[n+1:], want) {
			return append([]byte(nil), cand...), ver, nil
		}
	}
	return nil, 0, errKeyUpdate
}

func crc32Desfire(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b)
		for range 8 {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xEDB88320
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func (c *VirtualDESFire) selectedApp() (*virtualApp, bool) {
	if c.selected == ([3]byte{}) {
		return nil, false
	}
	app, ok := c.apps[c.selected]
	return app, ok
}

func uint24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func (c *VirtualDESFire) createFile(ins byte, data []byte) []byte {
	app, ok := c.selectedApp()
	if !ok {
		return sw(swPermissionDenied)
	}
	lengths := map[byte]int{insCreateStdFile: 7, insCreateValue: 17, insCreateCyclic: 10}
	if len(data) != lengths[ins] {
		return sw(swLengthError)
	}
	fileNo := data[0]
	if fileNo > 0x1F {
		return sw(swParameterError)
	}
	if _, exists := app.files[fileNo]; exists {
		return sw(swDuplicateError)
	}
	f := &virtualFile{comms: data[1], access: [2]byte{data[2], data[3]}}
	switch ins {
	case insCreateStdFile:
		f.kind = fileStd
		f.data = make([]byte, uint24(data[4:7]))
	case insCreateValue:
		f.kind = fileValue
		f.lower = int32(binary.LittleEndian.Uint32(data[4:8]))
		f.upper = int32(binary.LittleEndian.Uint32(data[8:12]))
		f.value = int32(binary.LittleEndian.Uint32(data[12:16]))
		f.limitedCredit = data[16]
		if f.lower > f.upper || f.value < f.lower || f.value > f.upper {
			return sw(swBoundaryError)
		}
	case insCreateCyclic:
		f.kind = fileCyclic
		f.recordSize = uint24(data[4:7])
		f.maxRecords = uint24(data[7:10])
		if f.recordSize == 0 || f.maxRecords < 2 {
			return sw(swParameterError)
		}
	}
	app.files[fileNo] = f
	return sw(swOK)
}

func (c *VirtualDESFire) file(fileNo byte, kind fileKind) (*virtualFile, []byte) {
	app, ok := c.selectedApp()
	if !ok {
		return nil, sw(swPermissionDenied)
	}
	f, ok := app.files[fileNo]
	if !ok {
		return nil, sw(swFileNotFound)
	}
	if f.kind != kind {
		return nil, sw(swParameterError)
	}
	if !f.free() && c.session == nil {
		return nil, sw(swPermissionDenied)
	}
	return f, nil
}

func (c *VirtualDESFire) deleteFile(data []byte) []byte {
	app, ok := c.selectedApp()
	if !ok {
		return sw(swPermissionDenied)
	}
	if len(data) != 1 {
		return sw(swLengthError)
	}
	if _, ok := app.files[data[0]]; !ok {
		return sw(swFileNotFound)
	}
	delete(app.files, data[0])
	return sw(swOK)
}

func (c *VirtualDESFire) getFileIDs() []byte {
	app, ok := c.selectedApp()
	if !ok {
		return sw(swPermissionDenied)
	}
	ids := make([]byte, 0, len(app.files))
	for id := range app.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return sw(swOK, c.macked(ids)...)
}

func (c *VirtualDESFire) getFileSettings(data []byte) []byte {
	app, ok := c.selectedApp()
	if !ok {
		return sw(swPermissionDenied)
	}
	if len(data) != 1 {
		return sw(swLengthError)
	}
	f, ok := app.files[data[0]]
	if !ok {
		return sw(swFileNotFound)
	}
	out := []byte{byte(f.kind), f.comms, f.access[0], f.access[1]}
	switch f.kind {
	case fileStd:
		out = appendUint24(out, len(f.data))
	case fileValue:
		out = binary.LittleEndian.AppendUint32(out, uint32(f.lower))
		out = binary.LittleEndian.AppendUint32(out, uint32(f.upper))
		out = binary.LittleEndian.AppendUint32(out, 0)
		out = append(out, f.limitedCredit)
	case fileCyclic:
		out = appendUint24(out, f.recordSize)
		out = appendUint24(out, f.maxRecords)
		out = appendUint24(out, len(f.records))
	}
	return sw(swOK, c.macked(out)...)
}

func appendUint24(out []byte, v int) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16))
}

func (c *VirtualDESFire) readData(data []byte) []byte {
	if len(data) != 7 {
		return sw(swLengthError)
	}
	f, errResp := c.file(data[0], fileStd)
	if errResp != nil {
		return errResp
	}
	offset, length := uint24(data[1:4]), uint24(data[4:7])
	if length == 0 {
		length = len(f.data) - offset
	}
	if offset > len(f.data) || offset+length > len(f.data) {
		return sw(swBoundaryError)
	}
	return c.framed(c.macked(append([]byte(nil), f.data[offset:offset+length]...)))
}

func (c *VirtualDESFire) write(ins byte, data []byte) []byte {
	if len(data) < 7 {
		return sw(swLengthError)
	}
	kind := fileStd
	if ins == insWriteRecord {
		kind = fileCyclic
	}
	f, errResp := c.file(data[0], kind)
	if errResp != nil {
		return errResp
	}
	offset, length := uint24(data[1:4]), uint24(data[4:7])
	payload := data[7:]
	if len(payload) != length {
		return sw(swLengthError)
	}

	if kind == fileStd {
		if offset+length > len(f.data) {
			return sw(swBoundaryError)
		}
		copy(f.data[offset:], payload)
		return sw(swOK)
	}

	if offset+length > f.recordSize {
		return sw(swBoundaryError)
	}
	if len(f.pendingRecords) == 0 {
		f.pendingRecords = append(f.pendingRecords, make([]byte, f.recordSize))
	}
	copy(f.pendingRecords[0][offset:], payload)
	return sw(swOK)
}

func (c *VirtualDESFire) getValue(data []byte) []byte {
	if len(data) != 1 {
		return sw(swLengthError)
	}
	f, errResp := c.file(data[0], fileValue)
	if errResp != nil {
		return errResp
	}
	return sw(swOK, c.macked(binary.LittleEndian.AppendUint32(nil, uint32(f.value)))...)
}

func (c *VirtualDESFire) changeValue(ins byte, data []byte) []byte {
	if len(data) != 5 {
		return sw(swLengthError)
	}
	f, errResp := c.file(data[0], fileValue)
	if errResp != nil {
		return errResp
	}
	amount := int32(binary.LittleEndian.Uint32(data[1:5]))
	if amount < 0 {
		return sw(swParameterError)
	}
	current := f.value
	if f.pending {
		current = f.pendingValue
	}
	next := int64(current)
	if ins == insCredit {
		next += int64(amount)
	} else {
		next -= int64(amount)
	}
	if next > int64(f.upper) || next < int64(f.lower) {
		return sw(swBoundaryError)
	}
	f.pendingValue = int32(next)
	f.pending = true
	return sw(swOK)
}

func (c *VirtualDESFire) readRecords(data []byte) []byte {
	if len(data) != 7 {
		return sw(swLengthError)
	}
	f, errResp := c.file(data[0], fileCyclic)
	if errResp != nil {
		return errResp
	}
	first, count := uint24(data[1:4]), uint24(data[4:7])
	if count == 0 {
		count = len(f.records) - first
	}
	if len(f.records) == 0 || first+count > len(f.records) || count <= 0 {
		return sw(swBoundaryError)
	}
	var out []byte
	for i := first; i < first+count; i++ {
		out = append(out, f.records[len(f.records)-1-i]...)
	}
	return c.framed(c.macked(out))
}

// commit applies pending value changes and records. A cyclic file keeps
// maxRecords-1 records.
func (c *VirtualDESFire) commit() []byte {
	app, ok := c.selectedApp()
	if !ok {
		return sw(swPermissionDenied)
	}
	changed := false
	for _, f := range app.files {
		if f.pending {
			f.value, f.pending = f.pendingValue, false
			changed = true
		}
		if len(f.pendingRecords) > 0 {
			f.records = append(f.records, f.pendingRecords...)
			f.pendingRecords = nil
			if keep := f.maxRecords - 1; len(f.records) > keep {
				f.records = f.records[len(f.records)-keep:]
			}
			changed = true
		}
	}
	if !changed {
		return sw(swNoChanges)
	}
	return sw(swOK)
}

// String describes the card for test failure messages.
func (c *VirtualDESFire) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("VirtualDESFire{uid=%X apps=%d selected=%X}", c.version[2][:7], len(c.apps), c.selected)
}
