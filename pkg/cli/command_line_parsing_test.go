// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package cli

import (
	"bytes"
	"errors"
	"testing"
)

func newTestCommandList() *CommandList {
	commands := NewCommandList("sgpassthru", "test tool")
	commands.AddCommand("execute", "Execute one command.").AddParameter(
		"-d", "device", "device name", "device", true,
	).AddParameter(
		"-c", "command", "command bytes in hex", "hex", true,
	).AddParameter(
		"-t", "timeout", "timeout in seconds", "seconds", false,
	).AddFlag(
		"-r", "read_only", "open read only",
	)
	commands.AddCommand("list", "List open devices.")
	return commands
}

func TestParseCommand(t *testing.T) {
	commands := newTestCommandList()
	err := commands.Parse([]string{"sgpassthru", "execute", "-d", "PD0", "--command=12 00 00 00 24 00", "-r"})
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	name, command := commands.GetCurrentCommand()
	if name != "execute" || command == nil {
		t.Fatalf("unexpected current command '%s'", name)
	}
	device, err := command.GetParameter("device")
	if err != nil || device != "PD0" {
		t.Errorf("unexpected device '%s' (%v)", device, err)
	}
	cdb, err := command.GetBytesParameter("command")
	if err != nil || !bytes.Equal(cdb, []byte{0x12, 0, 0, 0, 0x24, 0}) {
		t.Errorf("unexpected command %#v (%v)", cdb, err)
	}
	if !command.GetFlag("read_only") {
		t.Errorf("expected read_only flag to be set")
	}
	timeout, err := command.GetIntParameter("timeout", 60)
	if err != nil || timeout != 60 {
		t.Errorf("expected default timeout 60, received %d (%v)", timeout, err)
	}
}

func TestParseErrors(t *testing.T) {
	commands := newTestCommandList()
	var notFound *ErrCommandNotFound
	if err := commands.Parse([]string{"sgpassthru", "format"}); !errors.As(err, &notFound) {
		t.Errorf("expected ErrCommandNotFound, received %v", err)
	}
	var invalid *ErrInvalidOption
	if err := commands.Parse([]string{"sgpassthru", "list", "--all"}); !errors.As(err, &invalid) {
		t.Errorf("expected ErrInvalidOption, received %v", err)
	}
	var help *ErrHelpPageRequested
	if err := commands.Parse([]string{"sgpassthru", "--help"}); !errors.As(err, &help) {
		t.Errorf("expected ErrHelpPageRequested, received %v", err)
	}
	if err := commands.Parse([]string{"sgpassthru", "execute", "-d", "PD0"}); err == nil {
		t.Errorf("expected missing command parameter to fail")
	}
}

func TestParseValues(t *testing.T) {
	commands := newTestCommandList()
	err := commands.Parse([]string{"sgpassthru", "execute", "-d", "PD0", "-c", "zz", "--timeout", "0x10"})
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	_, command := commands.GetCurrentCommand()
	timeout, err := command.GetIntParameter("timeout", 60)
	if err != nil || timeout != 16 {
		t.Errorf("expected timeout 16, received %d (%v)", timeout, err)
	}
	var invalidValue *ErrInvalidValue
	if _, err := command.GetBytesParameter("command"); !errors.As(err, &invalidValue) {
		t.Errorf("expected ErrInvalidValue, received %v", err)
	}
	if command.GetFlag("read_only") {
		t.Errorf("expected read_only flag to be clear")
	}
}
