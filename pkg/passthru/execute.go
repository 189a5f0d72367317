// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package passthru

import (
	"context"
	"errors"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/device"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
	"sgpassthru/pkg/sntl"
	"sgpassthru/pkg/transport"
	"syscall"
	"time"
)

// Execute runs the command on session, or on the session the command is
// bound to when session is nil. A session given here binds the command
// the same way the constructor does.
//
// Problems with the command itself come back as ExecBadParams before
// anything is sent. OS failures return the negated errno with an *ErrOS.
// Transport failures of SCSI commands are only recorded, see
// TransportError.
func (command *Command) Execute(ctx context.Context, session *device.Session, timeout time.Duration) (ExecResult, error) {
	if command == nil {
		return ExecBadParams, newErrBadParameters("no command object")
	}
	switch {
	case session == nil && command.session == nil:
		return ExecBadParams, newErrBadParameters("missing device")
	case session != nil && command.session != nil && session != command.session:
		return ExecBadParams, newErrBadParameters("device given here and at construction differ")
	case session != nil:
		command.session = session
	}
	session = command.session
	if command.rejectOnMisuse && command.misuseCount > 0 {
		return ExecBadParams, newErrBadParameters("command was misused")
	}
	if command.cdb == nil && command.nvmeCommand == nil {
		return ExecBadParams, newErrBadParameters("missing command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	command.resetResults()
	log := logger.GetLogger()
	classification, err := session.Classify()
	if err != nil {
		return command.osFailure(err)
	}
	command.executed = true
	if classification.Class == transport.ClassNVMe {
		return command.executeNVMe(ctx, session, timeout)
	}
	if command.cdb == nil {
		log.Infof("%s: NVMe command for a SCSI device", session.Name())
		return ExecBadParams, newErrBadParameters("NVMe command for a SCSI device")
	}
	return command.executeSCSI(ctx, session, timeout)
}

func (command *Command) strategyFor(session *device.Session) device.Strategy {
	if command.strategy != nil {
		return *command.strategy
	}
	return session.Strategy()
}

func (command *Command) executeSCSI(ctx context.Context, session *device.Session, timeout time.Duration) (ExecResult, error) {
	log := logger.GetLogger()
	target := session.Transport()
	header := requestHeader{
		address:   session.Address(),
		cdb:       command.cdb,
		direction: command.direction,
		data:      command.data,
		timeout:   timeout,
	}
	if command.direction == transport.DirectionNone {
		header.data = nil
	}
	log.DebugHex("CDB", command.cdb, 0)
	var submitter scsiSubmitter
	switch command.strategyFor(session) {
	case device.StrategyIndirect:
		request := command.indirect
		if request == nil {
			request = newIndirectRequest()
		}
		migrated, err := request.resizeAndMigrate(len(header.data))
		if err != nil {
			log.Warnf("unable to enlarge data buffer to %d bytes: %s", len(header.data), err)
			command.indirect = request
			return command.osFailure(err)
		}
		migrated.requestHeader = header
		command.indirect = migrated
		submitter = migrated
	default:
		if !common.IsAligned(header.data, target.Alignment()) {
			return ExecBadParams, newErrBadParameters("data buffer does not meet the alignment of the transport")
		}
		submitter = &directRequest{requestHeader: header}
	}
	result, err := submitter.submit(ctx, target)
	if err != nil {
		return command.transportFailure(err)
	}
	command.status = result.Status
	if scsi.StatusCarriesSense(result.Status) {
		senseLength := result.SenseLength
		if senseLength > MaxSenseLength {
			senseLength = MaxSenseLength
		}
		command.senseLength = copy(command.sense, submitter.senseData()[:senseLength])
	}
	requested := len(header.data)
	if requested > 0 {
		command.residual = requested - result.Transferred
		if command.residual < 0 {
			command.residual = 0
		}
	}
	log.Debugf("SCSI status %s, residual %d", scsi.StatusToString(command.status), command.residual)
	return ExecOK, nil
}

// sntlIssuer sends the admin commands of a translated SCSI command.
type sntlIssuer struct {
	command *Command
	device  transport.NVMeTransport
	timeout time.Duration
}

func (issuer sntlIssuer) IssueAdmin(ctx context.Context, command *nvme.Command, data []byte, dataIn bool) (nvme.Completion, error) {
	raw, err := command.Bytes()
	if err != nil {
		return nvme.Completion{}, err
	}
	return issuer.command.issueAdmin(ctx, issuer.device, raw, data, dataIn, nil, issuer.timeout)
}

func (command *Command) executeNVMe(ctx context.Context, session *device.Session, timeout time.Duration) (ExecResult, error) {
	target := session.Transport()
	if command.nvmeCommand != nil {
		command.nvmeDirect = true
		var metadata []byte
		if command.metadataSet {
			metadata = command.metadata
		}
		_, err := command.issueAdmin(
			ctx,
			target,
			command.nvmeCommand,
			command.data,
			command.direction == transport.DirectionFromDevice,
			metadata,
			timeout,
		)
		var statusError *nvme.ErrStatus
		if errors.As(err, &statusError) {
			return ExecNVMeStatus, err
		}
		if err != nil {
			return command.transportFailureNVMe(err)
		}
		return ExecOK, nil
	}
	dispatcher := sntl.NewDispatcher(sntlIssuer{command: command, device: target, timeout: timeout}, session)
	dispatcher.ReportLowPower = session.LowPowerPolicy() == device.LowPowerReport
	response, err := dispatcher.Dispatch(ctx, &sntl.Request{
		CDB:             command.cdb,
		Data:            command.data,
		Sense:           command.sense,
		DescriptorSense: command.descriptorSense,
	})
	var badParameters *sntl.ErrBadParameters
	if errors.As(err, &badParameters) {
		return ExecBadParams, err
	}
	if err != nil {
		return command.transportFailureNVMe(err)
	}
	command.status = response.Status
	command.senseLength = response.SenseLength
	command.residual = response.Residual
	command.nvmeResult = response.NVMeResult
	command.nvmeStatus = response.NVMeStatus
	return ExecOK, nil
}

// issueAdmin sends one admin command through a staging buffer. Data-in
// reaches data only when the command completed with status zero.
func (command *Command) issueAdmin(
	ctx context.Context,
	target transport.NVMeTransport,
	raw []byte,
	data []byte,
	dataIn bool,
	metadata []byte,
	timeout time.Duration,
) (nvme.Completion, error) {
	log := logger.GetLogger()
	command.osError = 0
	command.transportError = 0
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	staging := common.PageAlignedBuffer(len(data))
	if !dataIn {
		copy(staging, data)
	}
	log.DebugHex("NVMe command", raw, 0)
	if !dataIn && len(data) > 0 {
		log.DebugHex("data-out", data, 512)
	}
	completion, err := target.SubmitAdmin(ctx, &transport.AdminRequest{
		Command:  raw,
		Data:     staging,
		Metadata: metadata,
		DataIn:   dataIn,
		Timeout:  timeout,
	})
	if err != nil {
		command.recordFailure(err)
		return completion, err
	}
	command.nvmeStatus = completion.Status()
	command.nvmeResult = completion.Result()
	if command.nvmeDirect && len(command.sense) > 3 {
		// completion record in place of sense
		record := completion.Bytes()
		for i := range command.sense {
			command.sense[i] = 0
		}
		command.senseLength = copy(command.sense, record)
	}
	if status := command.nvmeStatus; status != nvme.StatusSuccess {
		log.Infof("opcode 0x%x failed: NVMe status: %s [0x%x]", raw[0], nvme.StatusString(status), status)
		return completion, nvme.NewErrStatus(raw[0], status)
	}
	if dataIn && len(data) > 0 {
		copy(data, staging)
		log.DebugHex("data-in", data, 1024)
	}
	return completion, nil
}

// recordFailure sets the OS and transport error fields for err.
func (command *Command) recordFailure(err error) {
	var transportError *transport.Error
	var timeoutError *transport.ErrTimeout
	switch {
	case errors.As(err, &timeoutError), errors.Is(err, context.DeadlineExceeded):
		return
	case errors.As(err, &transportError):
		logger.GetLogger().Warnf("%s", transportError)
		command.transportError = transportError.Code
		command.osError = syscall.EIO
	default:
		if errno, ok := common.Errno(err); ok {
			command.osError = errno
		} else {
			command.osError = syscall.EIO
		}
	}
}

func isTimeout(err error) bool {
	var timeoutError *transport.ErrTimeout
	return errors.As(err, &timeoutError) || errors.Is(err, context.DeadlineExceeded)
}

// transportFailure handles a failed SCSI submission. A transport error is
// left for the caller to find in the result fields.
func (command *Command) transportFailure(err error) (ExecResult, error) {
	if isTimeout(err) {
		return ExecTimeout, err
	}
	command.recordFailure(err)
	if command.transportError != 0 {
		return ExecOK, nil
	}
	return execResultFromErrno(command.osError), common.RaiseFrom(err, newErrOS(command.osError))
}

// transportFailureNVMe handles a failed admin command. Unlike SCSI, a
// transport error fails Execute with EIO.
func (command *Command) transportFailureNVMe(err error) (ExecResult, error) {
	if isTimeout(err) {
		return ExecTimeout, err
	}
	if command.osError == 0 {
		command.recordFailure(err)
	}
	return execResultFromErrno(command.osError), common.RaiseFrom(err, newErrOS(command.osError))
}

func (command *Command) osFailure(err error) (ExecResult, error) {
	errno, ok := common.Errno(err)
	if !ok {
		errno = syscall.EIO
	}
	command.osError = errno
	return execResultFromErrno(errno), common.RaiseFrom(err, newErrOS(errno))
}
