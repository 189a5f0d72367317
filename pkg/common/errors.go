// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package common

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
)

// ReRaisableError keeps the error that caused a failure next to the error
// reported by the layer that noticed it.
type ReRaisableError struct {
	message      string
	currentError error
	base         error
}

func (err *ReRaisableError) Error() string {
	if err.base == nil {
		return err.message
	}
	return err.base.Error() + "\n" + err.message
}

// Unwrap returns the error raised by the current layer, so errors.As
// finds the typed errors of this module before the OS ones.
func (err *ReRaisableError) Unwrap() error {
	return err.currentError
}

// Base is the error the current one was raised from.
func (err *ReRaisableError) Base() error {
	return err.base
}

type LineNumberedError interface {
	Error() string
	TraceInfo() string
}

func RaiseFrom(base error, current error) *ReRaisableError {
	var message string
	if lineNumberedError, ok := current.(LineNumberedError); ok {
		message = lineNumberedError.Error() + " " + lineNumberedError.TraceInfo()
	} else {
		message = current.Error() + " " + GetTraceInfo()
	}
	return &ReRaisableError{
		base:         base,
		message:      message,
		currentError: current,
	}
}

func GetTraceInfo() string {
	pc, fileName, fileLine, ok := runtime.Caller(2)
	details := runtime.FuncForPC(pc)
	if ok && details != nil {
		return fmt.Sprintf("func %s() at %s:%d", details.Name(), fileName, fileLine)
	}
	return ""
}

// Errno digs an OS error number out of err. Both the current and the base
// chain of a ReRaisableError are searched.
func Errno(err error) (syscall.Errno, bool) {
	for err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return errno, true
		}
		var reRaisable *ReRaisableError
		if !errors.As(err, &reRaisable) {
			return 0, false
		}
		err = reRaisable.base
	}
	return 0, false
}
