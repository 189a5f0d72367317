// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestFromVerbosity(t *testing.T) {
	verbosities := []int{-1, 0, 1, 2, 3, 4, 7}
	expectedLevels := []LogLevel{Error, Error, Warning, Info, Info, Debug, Debug}
	for index, verbose := range verbosities {
		if level := FromVerbosity(verbose); level != expectedLevels[index] {
			t.Errorf(
				"for verbosity %d expected level %s, received %s",
				verbose,
				expectedLevels[index],
				level,
			)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	output := &bytes.Buffer{}
	SetOutput(output)
	SetLoggingConfig(Warning)
	defer func() {
		SetOutput(os.Stderr)
		SetLoggingConfig(Warning)
	}()
	log := GetLogger()
	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warnf("shown %d", 3)
	log.DebugHex("hidden dump", []byte{1, 2, 3}, 0)
	text := output.String()
	if strings.Contains(text, "hidden") {
		t.Errorf("messages below warning level were written: %q", text)
	}
	if !strings.Contains(text, "WARNING: ") || !strings.Contains(text, "shown 3") {
		t.Errorf("warning message is missing: %q", text)
	}
}

func TestDebugHexLimit(t *testing.T) {
	output := &bytes.Buffer{}
	SetOutput(output)
	SetLoggingConfig(Debug)
	defer func() {
		SetOutput(os.Stderr)
		SetLoggingConfig(Warning)
	}()
	GetLogger().DebugHex("payload", make([]byte, 64), 16)
	if !strings.Contains(output.String(), "first 16 of 64 bytes") {
		t.Errorf("expected truncated dump title, received %q", output.String())
	}
}
