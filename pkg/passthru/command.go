// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package passthru
// Single use SCSI and NVMe pass-through command objects
package passthru

import (
	"fmt"
	"sgpassthru/pkg/device"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
	"sgpassthru/pkg/transport"
	"syscall"
	"time"
)

const (
	maxCDBLength      = scsi.MaxCDBLength
	nvmeCommandLength = nvme.CommandLength
	// sense the transport is asked to return
	MaxSenseLength = 64
	DefaultTimeout = 60 * time.Second
)

type Option func(command *Command)

// WithStrategy overrides the SCSI strategy of the session.
func WithStrategy(strategy device.Strategy) Option {
	return func(command *Command) {
		command.strategy = &strategy
	}
}

// WithRejectOnMisuse makes Execute refuse a command any setter complained
// about.
func WithRejectOnMisuse() Option {
	return func(command *Command) {
		command.rejectOnMisuse = true
	}
}

// WithDescriptorSense makes translated commands return descriptor format
// sense.
func WithDescriptorSense() Option {
	return func(command *Command) {
		command.descriptorSense = true
	}
}

type Command struct {
	session         *device.Session
	strategy        *device.Strategy
	rejectOnMisuse  bool
	descriptorSense bool

	cdb         []byte
	nvmeCommand []byte
	sense       []byte
	senseSet    bool
	data        []byte
	dataSet     bool
	direction   transport.Direction
	metadata    []byte
	metadataSet bool
	metadataOut bool
	misuseCount int

	// staging request of the indirect strategy, grown on demand
	indirect *indirectRequest

	executed       bool
	nvmeDirect     bool
	status         byte
	senseLength    int
	residual       int
	osError        syscall.Errno
	transportError uint32
	nvmeResult     uint32
	nvmeStatus     uint16
}

func NewCommand(options ...Option) *Command {
	command := &Command{}
	for _, option := range options {
		option(command)
	}
	return command
}

// NewCommandWithSession binds the command to session for good.
func NewCommandWithSession(session *device.Session, options ...Option) *Command {
	command := NewCommand(options...)
	command.session = session
	return command
}

func (command *Command) misuse(err error) error {
	command.misuseCount++
	logger.GetLogger().Infof("pass-through misuse #%d: %s", command.misuseCount, err)
	return err
}

// SetCommand takes a SCSI CDB of 1 to 16 bytes or a 64 byte NVMe command.
func (command *Command) SetCommand(raw []byte) error {
	if command.cdb != nil || command.nvmeCommand != nil {
		return command.misuse(newErrFieldAlreadySet("command"))
	}
	switch {
	case len(raw) == nvmeCommandLength:
		command.nvmeCommand = append([]byte{}, raw...)
	case len(raw) > 0 && len(raw) <= maxCDBLength:
		command.cdb = append([]byte{}, raw...)
	default:
		return command.misuse(newErrInvalidCommandLength(len(raw)))
	}
	return nil
}

// SetSenseBuffer zeroes sense and uses it for sense data, its length is
// the maximum sense length.
func (command *Command) SetSenseBuffer(sense []byte) error {
	if command.senseSet {
		return command.misuse(newErrFieldAlreadySet("sense buffer"))
	}
	for i := range sense {
		sense[i] = 0
	}
	command.sense = sense
	command.senseSet = true
	return nil
}

func (command *Command) setData(data []byte, direction transport.Direction) error {
	if command.dataSet {
		return command.misuse(newErrFieldAlreadySet("data buffer"))
	}
	if len(data) == 0 {
		return nil
	}
	command.data = data
	command.direction = direction
	command.dataSet = true
	return nil
}

// SetDataIn sets the buffer data is read from the device into.
func (command *Command) SetDataIn(data []byte) error {
	return command.setData(data, transport.DirectionFromDevice)
}

// SetDataOut sets the buffer written to the device.
func (command *Command) SetDataOut(data []byte) error {
	return command.setData(data, transport.DirectionToDevice)
}

// SetMetadata sets the metadata buffer of a raw NVMe command.
func (command *Command) SetMetadata(metadata []byte, toDevice bool) error {
	if command.metadataSet {
		return command.misuse(newErrFieldAlreadySet("metadata buffer"))
	}
	if len(metadata) == 0 {
		return nil
	}
	command.metadata = metadata
	command.metadataOut = toDevice
	command.metadataSet = true
	return nil
}

func (command *Command) SetTag(tag uint64) error {
	return command.misuse(newErrUnsupportedCapability(fmt.Sprintf("tag 0x%x", tag)))
}

func (command *Command) SetTaskManagement(function int) error {
	return command.misuse(newErrUnsupportedCapability(fmt.Sprintf("task management function %d", function)))
}

func (command *Command) SetTaskAttribute(attribute int, priority int) error {
	return command.misuse(newErrUnsupportedCapability(fmt.Sprintf("task attribute %d (priority %d)", attribute, priority)))
}

// SetPacketID is accepted and ignored.
func (command *Command) SetPacketID(int) {}

// Clear forgets everything set or returned but keeps the session binding.
func (command *Command) Clear() {
	*command = Command{
		session:         command.session,
		strategy:        command.strategy,
		rejectOnMisuse:  command.rejectOnMisuse,
		descriptorSense: command.descriptorSense,
	}
}

func (command *Command) resetResults() {
	command.executed = false
	command.nvmeDirect = false
	command.status = 0
	command.senseLength = 0
	command.residual = 0
	command.osError = 0
	command.transportError = 0
	command.nvmeResult = 0
	command.nvmeStatus = 0
}

// ResultCategory ranks the outcome: transport error first, then OS error,
// sense, other non good status and good.
func (command *Command) ResultCategory() ResultCategory {
	switch {
	case command.transportError != 0:
		return ResultTransportError
	case command.osError != 0:
		return ResultOSError
	case command.nvmeDirect && command.nvmeStatus != 0:
		return ResultStatus
	case scsi.StatusCarriesSense(command.status):
		return ResultSense
	case command.status != 0:
		return ResultStatus
	default:
		return ResultGood
	}
}

func (command *Command) Residual() int {
	return command.residual
}

// Status is the SCSI status, or the NVMe status of a raw NVMe command.
func (command *Command) Status() int {
	if command.nvmeDirect {
		return int(command.nvmeStatus)
	}
	return int(command.status)
}

func (command *Command) SenseLength() int {
	if command.senseLength < 0 {
		return 0
	}
	return command.senseLength
}

func (command *Command) OSError() syscall.Errno {
	return command.osError
}

func (command *Command) TransportError() uint32 {
	return command.transportError
}

// NVMeResult is dword 0 of the last completion.
func (command *Command) NVMeResult() uint32 {
	return command.nvmeResult
}

func (command *Command) NVMeStatus() uint16 {
	return command.nvmeStatus
}

// DurationMs is always unknown.
func (command *Command) DurationMs() int {
	return -1
}

func (command *Command) MisuseCount() int {
	return command.misuseCount
}

func (command *Command) OSErrorString() string {
	if command.osError == 0 {
		return ""
	}
	return command.osError.Error()
}

func (command *Command) TransportErrorString() string {
	if command.transportError == 0 {
		return ""
	}
	return fmt.Sprintf("transport error 0x%x", command.transportError)
}

func (command *Command) IsNVMe() bool {
	return command.session != nil && command.session.IsNVMe()
}

func (command *Command) NVMeNamespaceID() uint32 {
	if command.session == nil {
		return 0
	}
	return command.session.NamespaceID()
}

func (command *Command) Executed() bool {
	return command.executed
}
