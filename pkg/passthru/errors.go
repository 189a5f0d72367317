// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package passthru

import (
	"fmt"
	"sgpassthru/pkg/common"
	"syscall"
)

type ErrFieldAlreadySet struct {
	Field     string
	traceInfo string
}

func (err ErrFieldAlreadySet) Error() string {
	return fmt.Sprintf("%s is already set, the first value is kept", err.Field)
}

func (err ErrFieldAlreadySet) TraceInfo() string {
	return err.traceInfo
}

func newErrFieldAlreadySet(field string) error {
	return &ErrFieldAlreadySet{Field: field, traceInfo: common.GetTraceInfo()}
}

// ErrUnsupportedCapability is returned by setters of features the
// pass-through has no way to deliver: tags, task management and task
// attributes.
type ErrUnsupportedCapability struct {
	Capability string
	traceInfo  string
}

func (err ErrUnsupportedCapability) Error() string {
	return fmt.Sprintf("%s is not supported", err.Capability)
}

func (err ErrUnsupportedCapability) TraceInfo() string {
	return err.traceInfo
}

func newErrUnsupportedCapability(capability string) error {
	return &ErrUnsupportedCapability{Capability: capability, traceInfo: common.GetTraceInfo()}
}

type ErrInvalidCommandLength struct {
	Length    int
	traceInfo string
}

func (err ErrInvalidCommandLength) Error() string {
	return fmt.Sprintf(
		"command of %d bytes is neither a CDB (1 to %d bytes) nor an NVMe command (%d bytes)",
		err.Length, maxCDBLength, nvmeCommandLength,
	)
}

func (err ErrInvalidCommandLength) TraceInfo() string {
	return err.traceInfo
}

func newErrInvalidCommandLength(length int) error {
	return &ErrInvalidCommandLength{Length: length, traceInfo: common.GetTraceInfo()}
}

// ErrBadParameters is a command that cannot be executed as configured.
// Nothing reached the device.
type ErrBadParameters struct {
	Reason    string
	traceInfo string
}

func (err ErrBadParameters) Error() string {
	return fmt.Sprintf("bad parameters: %s", err.Reason)
}

func (err ErrBadParameters) TraceInfo() string {
	return err.traceInfo
}

func newErrBadParameters(reason string) error {
	return &ErrBadParameters{Reason: reason, traceInfo: common.GetTraceInfo()}
}

// ErrOS is an OS level failure of Execute. Code is the negated errno.
type ErrOS struct {
	Errno     syscall.Errno
	traceInfo string
}

func (err ErrOS) Error() string {
	return fmt.Sprintf("OS error: %s [%d]", err.Errno.Error(), int(err.Errno))
}

func (err ErrOS) TraceInfo() string {
	return err.traceInfo
}

func (err ErrOS) Code() int {
	return -int(err.Errno)
}

func (err ErrOS) Unwrap() error {
	return err.Errno
}

func newErrOS(errno syscall.Errno) error {
	return &ErrOS{Errno: errno, traceInfo: common.GetTraceInfo()}
}
