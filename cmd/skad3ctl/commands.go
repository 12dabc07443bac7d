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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-skad3"
	"github.com/ZaparooProject/go-skad3/desfire"
	"github.com/ZaparooProject/go-skad3/internal/config"
)

var errUsage = errors.New("usage")

// app is the state shared by the subcommands of one invocation.
type app struct {
	device *skad3.Device
	conf   *config.Config
	out    io.Writer
	prompt func(name string) ([]byte, error)
	retry  *skad3.RetryConfig
	card   *desfire.Card
	keyAlg string
}

type command struct {
	run  func(a *app, ctx context.Context, args []string) error
	args string
	help string
	// readOnly commands are resent after a desynchronized or corrupted reply
	readOnly bool
}

var commands = map[string]command{
	"status":      {run: (*app).status, help: "Show the dispenser, stacker and capture box sensors", readOnly: true},
	"init":        {run: (*app).initialize, args: "[position]", help: "Initialize the dispenser (default no_move)"},
	"move":        {run: (*app).move, args: "<position>", help: "Move the card to front, ic, rf, capture or gate"},
	"insertion":   {run: (*app).insertion, args: "allow|deny", help: "Allow or deny card insertion from the front"},
	"card-type":   {run: (*app).cardType, help: "Identify the card at the RF position", readOnly: true},
	"activate":    {run: (*app).activate, args: "[a|b]", help: "Activate the RF card (default type A)", readOnly: true},
	"deactivate":  {run: (*app).deactivate, help: "Switch the antenna off", readOnly: true},
	"uid":         {run: (*app).uid, help: "Read the DESFire UID", readOnly: true},
	"auth":        {run: (*app).auth, args: "<key>", help: "Authenticate with a configured key"},
	"apps":        {run: (*app).apps, args: "[key]", help: "List application IDs, authenticating first if a key is given"},
	"change-key":  {run: (*app).changeKey, args: "<current-key> <new-key>", help: "Replace the PICC master key"},
	"read":        {run: (*app).read, args: "<aid> <file-no> [key]", help: "Read the start of a standard data file as hex", readOnly: true},
	"key-version": {run: (*app).keyVersion, args: "[key-no]", help: "Show the version of a key (default 0)", readOnly: true},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// retryConfig retries framing faults only. Timeouts are not retried so an
// absent dispenser fails quickly.
func retryConfig(attempts int) *skad3.RetryConfig {
	rc := skad3.DefaultRetryConfig()
	rc.MaxAttempts = attempts
	rc.ShouldRetry = func(err error) bool {
		return errors.Is(err, skad3.ErrFrameDesync) || errors.Is(err, skad3.ErrChecksumMismatch)
	}
	rc.OnRetry = func(next int, err error) {
		slog.Warn("corrupted reply, resending", "attempt", next, "err", err)
	}
	return rc
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, must be one of %s", name, strings.Join(commandNames(), ", "))
	}
	run := func() error {
		return cmd.run(a, ctx, args[1:])
	}
	var err error
	if cmd.readOnly && a.retry != nil {
		err = skad3.Retry(ctx, a.retry, run)
	} else {
		err = run()
	}
	if errors.Is(err, errUsage) {
		return fmt.Errorf("%w: %s %s", errUsage, name, cmd.args)
	}
	return err
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *app) desfire() *desfire.Card {
	if a.card == nil {
		a.card = desfire.NewCard(a.device)
	}
	return a.card
}

// rejected converts a negative reply into an error.
func rejected(op string, resp *skad3.Response) error {
	if resp.IsSuccessful() {
		return nil
	}
	code, err := resp.Error()
	if err != nil {
		return fmt.Errorf("%s rejected: %w", op, err)
	}
	return fmt.Errorf("%s rejected: %s", op, code)
}

func (a *app) status(ctx context.Context, _ []string) error {
	status, resp, err := a.device.GetStatus(ctx)
	if err != nil {
		return err
	}
	if err := rejected("status", resp); err != nil {
		return err
	}
	a.printf("dispenser:   %s\n", status.Dispenser)
	a.printf("stacker:     %s\n", status.Stacker)
	a.printf("capture box: %s\n", status.CaptureBox)
	if status.StackerEmpty() {
		a.printf("warning: stacker is empty\n")
	}
	if status.CaptureBoxFull() {
		a.printf("warning: capture box is full\n")
	}
	return nil
}

func (a *app) initialize(ctx context.Context, args []string) error {
	name := "no_move"
	switch len(args) {
	case 0:
	case 1:
		name = args[0]
	default:
		return errUsage
	}
	position, err := skad3.ParseInitPosition(name)
	if err != nil {
		return err
	}
	resp, err := a.device.Init(ctx, position)
	if err != nil {
		return err
	}
	if err := rejected("init", resp); err != nil {
		return err
	}
	a.printf("initialized (%s)\n", position)
	return nil
}

func (a *app) move(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	position, err := skad3.ParseCardPosition(args[0])
	if err != nil {
		return err
	}
	resp, err := a.device.MoveCard(ctx, position)
	if err != nil {
		return err
	}
	if err := rejected("move card", resp); err != nil {
		return err
	}
	a.printf("card moved to %s\n", position)
	return nil
}

func (a *app) insertion(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	var allow bool
	switch strings.ToLower(args[0]) {
	case "allow":
		allow = true
	case "deny":
	default:
		return errUsage
	}
	resp, err := a.device.SetInsertion(ctx, allow)
	if err != nil {
		return err
	}
	if err := rejected("set insertion", resp); err != nil {
		return err
	}
	a.printf("insertion %s\n", strings.ToLower(args[0]))
	return nil
}

func (a *app) cardType(ctx context.Context, _ []string) error {
	cardType, resp, err := a.device.AutoTestRFCardType(ctx)
	if err != nil {
		return err
	}
	if err := rejected("auto test card type", resp); err != nil {
		return err
	}
	a.printf("%s (%s)\n", cardType, cardType.Code[:])
	return nil
}

func (a *app) activate(ctx context.Context, args []string) error {
	kind := skad3.RFTypeA
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "a":
		case "b":
			kind = skad3.RFTypeB
		default:
			return errUsage
		}
	}
	resp, err := a.device.ActivateRFCard(ctx, kind)
	if err != nil {
		return err
	}
	if err := rejected("activate RF card", resp); err != nil {
		return err
	}
	a.printf("RF card activated\n")
	return nil
}

func (a *app) deactivate(ctx context.Context, _ []string) error {
	resp, err := a.device.DeactivateRFCard(ctx)
	if err != nil {
		return err
	}
	if err := rejected("deactivate RF card", resp); err != nil {
		return err
	}
	a.printf("RF card deactivated\n")
	return nil
}

func (a *app) uid(ctx context.Context, _ []string) error {
	uid, err := a.desfire().GetCardUID(ctx)
	if err != nil {
		return err
	}
	a.printf("%s\n", uid)
	return nil
}

// key resolves a key by name. With a prompt, the value comes from the
// terminal and the rest of the entry, if any, from the config.
func (a *app) key(name string) (*config.Key, error) {
	if a.prompt == nil {
		return a.conf.Key(name)
	}
	algName := a.keyAlg
	key := &config.Key{}
	if kc, ok := a.conf.Keys[name]; ok {
		algName = kc.Algorithm
		key.KeyNo = byte(kc.KeyNo)
		key.Version = byte(kc.Version)
	}
	alg, err := config.ParseAlgorithm(algName)
	if err != nil {
		return nil, err
	}
	value, err := a.prompt(name)
	if err != nil {
		return nil, err
	}
	key.Algorithm = alg
	key.Value = value
	return key, nil
}

func (a *app) authenticate(ctx context.Context, name string) (*desfire.AuthResult, error) {
	key, err := a.key(name)
	if err != nil {
		return nil, err
	}
	result, err := a.desfire().Authenticate(ctx, key.Algorithm, key.KeyNo, key.Value)
	if err != nil {
		return nil, err
	}
	if !result.Authenticated {
		desc, descErr := skad3.DescribeStatusWord(result.SW)
		if descErr != nil {
			desc = "undocumented"
		}
		return result, fmt.Errorf("authentication with %s rejected: SW %04X (%s)", name, result.SW, desc)
	}
	return result, nil
}

func (a *app) auth(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	result, err := a.authenticate(ctx, args[0])
	if err != nil {
		return err
	}
	a.printf("authenticated with %s (%d byte session key)\n", args[0], len(result.SessionKey))
	return nil
}

func (a *app) apps(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		if _, err := a.authenticate(ctx, args[0]); err != nil {
			return err
		}
	}
	aids, err := a.desfire().GetApplicationIDs(ctx)
	if err != nil {
		return err
	}
	if len(aids) == 0 {
		a.printf("no applications\n")
		return nil
	}
	for _, aid := range aids {
		a.printf("%s\n", aid)
	}
	return nil
}

func (a *app) changeKey(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	current, next := args[0], args[1]
	newKey, err := a.key(next)
	if err != nil {
		return err
	}
	result, err := a.authenticate(ctx, current)
	if err != nil {
		return err
	}
	if err := a.desfire().ChangePICCMasterKey(ctx, newKey.Value, result.SessionKey, newKey.Version); err != nil {
		return fmt.Errorf("change PICC master key: %w", err)
	}
	a.printf("PICC master key changed to %s (version %d)\n", next, newKey.Version)
	return nil
}

func parseByte(what, s string) (byte, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", skad3.ErrInvalidParameter, what, s)
	}
	return byte(n), nil
}

func (a *app) read(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	aid, err := desfire.ParseAID(args[0])
	if err != nil {
		return err
	}
	fileNo, err := parseByte("file number", args[1])
	if err != nil {
		return err
	}
	card := a.desfire()
	if err := card.SelectApplication(ctx, aid); err != nil {
		return err
	}
	if len(args) == 3 {
		if _, err := a.authenticate(ctx, args[2]); err != nil {
			return err
		}
	}
	data, err := card.ReadData(ctx, fileNo, 0, desfire.DefaultReadLength)
	if err != nil {
		return err
	}
	a.printf("%s\n", strings.ToUpper(hex.EncodeToString(data)))
	return nil
}

func (a *app) keyVersion(ctx context.Context, args []string) error {
	var keyNo byte
	switch len(args) {
	case 0:
	case 1:
		n, err := parseByte("key number", args[0])
		if err != nil {
			return err
		}
		keyNo = n
	default:
		return errUsage
	}
	version, err := a.desfire().GetKeyVersion(ctx, keyNo)
	if err != nil {
		return err
	}
	a.printf("key %d version %d\n", keyNo, version)
	return nil
}
