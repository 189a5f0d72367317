// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package sntl
// SCSI to NVMe translation: SCSI commands answered with NVMe admin commands
package sntl

import (
	"context"
	"errors"
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
)

// AdminIssuer sends one admin command. A completion with nonzero status
// comes back together with an *nvme.ErrStatus; any other error is a
// failure of the OS or the transport. Data-in is only filled on success.
type AdminIssuer interface {
	IssueAdmin(ctx context.Context, command *nvme.Command, data []byte, dataIn bool) (nvme.Completion, error)
}

// IdentityCache keeps the Identify Controller payload of a device between
// commands.
type IdentityCache interface {
	CachedIdentity() []byte
	StoreIdentity(data []byte)
	NamespaceID() uint32
}

type Request struct {
	CDB []byte
	// data-in or data-out buffer, depending on the command
	Data            []byte
	Sense           []byte
	DescriptorSense bool
}

type Response struct {
	Status        byte
	SenseLength   int
	SenseResidual int
	Residual      int
	NVMeResult    uint32
	NVMeStatus    uint16
}

type ErrBadParameters struct {
	reason    string
	traceInfo string
}

func (err ErrBadParameters) Error() string {
	return fmt.Sprintf("bad parameters: %s", err.reason)
}

func (err ErrBadParameters) TraceInfo() string {
	return err.traceInfo
}

func newErrBadParameters(reason string) error {
	return &ErrBadParameters{reason: reason, traceInfo: common.GetTraceInfo()}
}

type Dispatcher struct {
	issuer AdminIssuer
	cache  IdentityCache
	// fail TEST UNIT READY while the controller is in a low power state
	ReportLowPower bool
}

func NewDispatcher(issuer AdminIssuer, cache IdentityCache) *Dispatcher {
	return &Dispatcher{issuer: issuer, cache: cache}
}

type translation struct {
	dispatcher *Dispatcher
	ctx        context.Context
	request    *Request
	response   Response
	log        *logger.Logger
}

// Dispatch answers the SCSI command in request. Errors are either
// *ErrBadParameters or failures of the OS or transport, passed on
// unchanged; SCSI level failures come back as status and sense.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, request *Request) (Response, error) {
	if len(request.CDB) == 0 {
		return Response{}, newErrBadParameters("missing command")
	}
	log := logger.GetLogger()
	current := &translation{dispatcher: dispatcher, ctx: ctx, request: request, log: log}
	opcode := scsi.CommandType(request.CDB[0])
	if required := scsi.CDBLengthForOpcode(request.CDB[0]); required > len(request.CDB) {
		return Response{}, newErrBadParameters(
			fmt.Sprintf("%d byte CDB of %s, %d expected", len(request.CDB), scsi.OperationCodeToString(opcode), required),
		)
	}
	log.Debugf("translating %s", scsi.OperationCodeToString(opcode))
	var err error
	switch opcode {
	case scsi.Inquiry:
		err = current.inquiry()
	case scsi.ReportLuns:
		err = current.reportLuns()
	case scsi.TestUnitReady:
		err = current.testUnitReady()
	case scsi.RequestSense:
		err = current.requestSense()
	case scsi.SendDiagnostic:
		err = current.sendDiagnostic()
	case scsi.ReceiveDiagnosticResults:
		err = current.receiveDiagnosticResults()
	case scsi.OperationCodeMaintenanceIn:
		switch request.CDB[1] & scsi.ServiceActionMask {
		case scsi.ServiceActionReportSupportedOperationCodes:
			err = current.reportSupportedOperationCodes()
		case scsi.ServiceActionReportSupportedTaskManagementFunctions:
			err = current.reportSupportedTaskManagementFunctions()
		default:
			current.unsupported()
		}
	default:
		current.unsupported()
	}
	return current.response, err
}

func (current *translation) unsupported() {
	current.log.Infof("no translation to NVMe for SCSI %s", scsi.OperationCodeToString(scsi.CommandType(current.request.CDB[0])))
	current.setSense(scsi.SamStatCheckCondition, scsi.BuildSenseData(current.request.DescriptorSense, scsi.IllegalRequest, scsi.AscInvalidOpCode))
}

// setSense sets status and writes record into the caller sense buffer
// when the buffer can take it.
func (current *translation) setSense(status byte, record []byte) {
	current.response.Status = status
	written, residual, ok := scsi.WriteSense(current.request.Sense, record)
	if !ok {
		current.log.Infof("sense buffer of %d bytes too short", len(current.request.Sense))
		return
	}
	current.response.SenseLength = written
	current.response.SenseResidual = residual
}

func (current *translation) invalidField(err error) bool {
	var invalid *scsi.ErrInvalidField
	if !errors.As(err, &invalid) {
		return false
	}
	current.log.Infof("%s", invalid)
	current.setSense(scsi.SamStatCheckCondition, invalid.SenseData(current.request.DescriptorSense))
	return true
}

func (current *translation) invalidCDBField(byteIndex int, bit int) {
	current.setSense(
		scsi.SamStatCheckCondition,
		scsi.BuildInvalidFieldSenseData(current.request.DescriptorSense, true, byteIndex, bit),
	)
}

// senseFromStatus maps the NVMe status err carries onto SCSI status and
// sense. Other errors are returned.
func (current *translation) senseFromStatus(err error) error {
	var statusError *nvme.ErrStatus
	if !errors.As(err, &statusError) {
		return err
	}
	mapping, ok := nvme.StatusToSCSI(statusError.Status)
	if !ok {
		current.log.Infof("no SCSI equivalent of NVMe status 0x%x", statusError.Status)
	}
	current.response.NVMeStatus = statusError.Status
	current.response.Status = mapping.Status
	if mapping.Status == scsi.SamStatGood {
		return nil
	}
	current.setSense(mapping.Status, scsi.BuildSenseData(current.request.DescriptorSense, mapping.Key, mapping.Code))
	return nil
}

func (current *translation) issue(command *nvme.Command, data []byte, dataIn bool) (nvme.Completion, error) {
	completion, err := current.dispatcher.issuer.IssueAdmin(current.ctx, command, data, dataIn)
	current.response.NVMeResult = completion.Result()
	current.response.NVMeStatus = completion.Status()
	return completion, err
}

// identity returns the Identify Controller data, fetching it on first use.
func (current *translation) identity() ([]byte, *nvme.IdentifyControllerData, error) {
	raw := current.dispatcher.cache.CachedIdentity()
	if raw == nil {
		buffer := common.PageAlignedBuffer(nvme.IdentifyDataLength)
		if _, err := current.issue(nvme.IdentifyController(), buffer, true); err != nil {
			return nil, nil, err
		}
		current.dispatcher.cache.StoreIdentity(buffer)
		raw = buffer
	}
	controller, err := nvme.DecodeIdentifyController(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, controller, nil
}

// copyResponse copies data clipped to the allocation length and the data
// buffer, and sets the residual. Nothing is copied when allocation is 0.
func (current *translation) copyResponse(data []byte, allocationLength int) {
	if allocationLength <= 0 {
		return
	}
	transferred := scsi.CopyResponse(current.request.Data, data, allocationLength)
	current.response.Residual = len(current.request.Data) - transferred
}
