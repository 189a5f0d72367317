// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package transport
// Ways of getting a command to a storage device and its completion back
package transport

import (
	"context"
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/nvme"
	"time"
)

type Class int

const (
	ClassUnknown Class = iota
	ClassSCSI
	ClassNVMe
)

func (class Class) String() string {
	switch class {
	case ClassSCSI:
		return "SCSI"
	case ClassNVMe:
		return "NVMe"
	default:
		return "unknown"
	}
}

// Classification is what probing an open device tells about it.
type Classification struct {
	Class Class
	// namespace the device node is bound to, NVMe only
	NamespaceID uint32
}

type Direction int

const (
	DirectionNone Direction = iota
	DirectionToDevice
	DirectionFromDevice
)

// Address locates a logical unit behind an adapter.
type Address struct {
	Bus    uint8
	Target uint8
	Lun    uint8
}

type SCSIRequest struct {
	Address   Address
	CDB       []byte
	Data      []byte
	Direction Direction
	// filled by the transport, len is the maximum sense length
	Sense   []byte
	Timeout time.Duration
}

type SCSIResult struct {
	Status      byte
	SenseLength int
	Transferred int
}

type AdminRequest struct {
	Command  []byte
	Data     []byte
	Metadata []byte
	DataIn   bool
	Timeout  time.Duration
}

type Device interface {
	Name() string
	Classify() (Classification, error)
	Close() error
}

type SCSITransport interface {
	// Alignment is the address alignment a data buffer handed over
	// without staging must have.
	Alignment() int
	SubmitSCSI(ctx context.Context, request *SCSIRequest) (SCSIResult, error)
}

// NVMeTransport passes admin commands through. A nonzero status in the
// returned completion is not an error of the transport.
type NVMeTransport interface {
	SubmitAdmin(ctx context.Context, request *AdminRequest) (nvme.Completion, error)
}

type Transport interface {
	Device
	SCSITransport
	NVMeTransport
}

// Error is a failure of the transport itself. Code is transport specific.
type Error struct {
	Operation string
	Code      uint32
	traceInfo string
}

func (err Error) Error() string {
	return fmt.Sprintf("%s failed with transport error 0x%x", err.Operation, err.Code)
}

func (err Error) TraceInfo() string {
	return err.traceInfo
}

func NewError(operation string, code uint32) error {
	return &Error{Operation: operation, Code: code, traceInfo: common.GetTraceInfo()}
}

type ErrTimeout struct {
	Operation string
	Timeout   time.Duration
	traceInfo string
}

func (err ErrTimeout) Error() string {
	return fmt.Sprintf("%s timed out after %s", err.Operation, err.Timeout)
}

func (err ErrTimeout) TraceInfo() string {
	return err.traceInfo
}

func NewErrTimeout(operation string, timeout time.Duration) error {
	return &ErrTimeout{Operation: operation, Timeout: timeout, traceInfo: common.GetTraceInfo()}
}

type ErrNotSupported struct {
	Device    string
	Operation string
	traceInfo string
}

func (err ErrNotSupported) Error() string {
	return fmt.Sprintf("%s is not supported by %s", err.Operation, err.Device)
}

func (err ErrNotSupported) TraceInfo() string {
	return err.traceInfo
}

func newErrNotSupported(device string, operation string) error {
	return &ErrNotSupported{Device: device, Operation: operation, traceInfo: common.GetTraceInfo()}
}

// TimeoutMilliseconds converts timeout for interfaces counting in
// milliseconds, zero stays zero.
func TimeoutMilliseconds(timeout time.Duration) uint32 {
	if timeout <= 0 {
		return 0
	}
	milliseconds := timeout.Milliseconds()
	if milliseconds > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(milliseconds)
}
