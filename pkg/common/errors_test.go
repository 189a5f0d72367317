// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package common

import (
	"errors"
	"strings"
	"syscall"
	"testing"
)

type errTestFailure struct{}

func (err errTestFailure) Error() string {
	return "test failure"
}

func TestRaiseFromKeepsBothMessages(t *testing.T) {
	err := RaiseFrom(syscall.EIO, errTestFailure{})
	message := err.Error()
	if !strings.HasPrefix(message, syscall.EIO.Error()) {
		t.Errorf("expected message to start with base error, received '%s'", message)
	}
	if !strings.Contains(message, "test failure") {
		t.Errorf("expected message to contain current error, received '%s'", message)
	}
	if !errors.As(err, &errTestFailure{}) {
		t.Errorf("expected current error to be reachable through errors.As")
	}
}

func TestErrnoSearchesBaseChain(t *testing.T) {
	err := RaiseFrom(RaiseFrom(syscall.ENODEV, errTestFailure{}), errTestFailure{})
	errno, ok := Errno(err)
	if !ok {
		t.Fatalf("expected errno to be found")
	}
	if errno != syscall.ENODEV {
		t.Errorf("expected ENODEV, received %v", errno)
	}
	if _, ok := Errno(errTestFailure{}); ok {
		t.Errorf("expected no errno for plain error")
	}
}

func TestAlignedBuffer(t *testing.T) {
	for _, alignment := range []int{1, 8, 512, 4096} {
		buffer := AlignedBuffer(100, alignment)
		if len(buffer) != 100 {
			t.Errorf("expected length 100, received %d", len(buffer))
		}
		if !IsAligned(buffer, alignment) {
			t.Errorf("buffer is not aligned to %d", alignment)
		}
	}
	if !IsAligned(nil, 4096) {
		t.Errorf("empty buffer must be reported as aligned")
	}
}
