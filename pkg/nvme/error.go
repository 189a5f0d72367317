// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package nvme

import (
	"fmt"
	"sgpassthru/pkg/common"
)

type ErrInvalidLength struct {
	what      string
	length    int
	expected  int
	traceInfo string
}

func (err ErrInvalidLength) Error() string {
	return fmt.Sprintf("%s of %d bytes, expected %d", err.what, err.length, err.expected)
}

func (err ErrInvalidLength) TraceInfo() string {
	return err.traceInfo
}

func newErrInvalidLength(what string, length int, expected int) error {
	return &ErrInvalidLength{what: what, length: length, expected: expected, traceInfo: common.GetTraceInfo()}
}

// ErrStatus is a command the controller completed with a nonzero status.
type ErrStatus struct {
	Opcode    uint8
	Status    uint16
	traceInfo string
}

func (err ErrStatus) Error() string {
	return fmt.Sprintf("opcode 0x%02x failed: NVMe status: %s [0x%x]", err.Opcode, StatusString(err.Status), err.Status)
}

func (err ErrStatus) TraceInfo() string {
	return err.traceInfo
}

func NewErrStatus(opcode uint8, status uint16) error {
	return &ErrStatus{Opcode: opcode, Status: status, traceInfo: common.GetTraceInfo()}
}
