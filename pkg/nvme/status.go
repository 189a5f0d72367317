// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package nvme

import (
	"fmt"
	"sgpassthru/pkg/scsi"
)

/*
 * Status field of a completion: SCT in bits 10:8, SC in bits 7:0
 *
 * SCT 0 - generic command status
 * SCT 1 - command specific status
 * SCT 2 - media and data integrity errors
 */
const (
	StatusSuccess                  = uint16(0x000)
	StatusInvalidOpcode            = uint16(0x001)
	StatusInvalidField             = uint16(0x002)
	StatusCommandIDConflict        = uint16(0x003)
	StatusDataTransferError        = uint16(0x004)
	StatusAbortedPowerLoss         = uint16(0x005)
	StatusInternalError            = uint16(0x006)
	StatusAbortRequested           = uint16(0x007)
	StatusAbortedSQDeletion        = uint16(0x008)
	StatusAbortedFailedFuse        = uint16(0x009)
	StatusAbortedMissingFuse       = uint16(0x00a)
	StatusInvalidNamespace         = uint16(0x00b)
	StatusCommandSequenceError     = uint16(0x00c)
	StatusLBAOutOfRange            = uint16(0x080)
	StatusCapacityExceeded         = uint16(0x081)
	StatusNamespaceNotReady        = uint16(0x082)
	StatusReservationConflict      = uint16(0x083)
	StatusFormatInProgress         = uint16(0x084)
	StatusCompletionQueueInvalid   = uint16(0x100)
	StatusInvalidFormat            = uint16(0x10a)
	StatusConflictingAttributes    = uint16(0x180)
	StatusAttemptedWriteToReadOnly = uint16(0x182)
	StatusWriteFault               = uint16(0x280)
	StatusUnrecoveredReadError     = uint16(0x281)
	StatusEndToEndGuardCheck       = uint16(0x282)
	StatusEndToEndApplicationTag   = uint16(0x283)
	StatusEndToEndReferenceTag     = uint16(0x284)
	StatusCompareFailure           = uint16(0x285)
	StatusAccessDenied             = uint16(0x286)
)

// SCSIMapping is how a SCSI initiator sees an NVMe completion status.
type SCSIMapping struct {
	Status byte
	Key    byte
	Code   scsi.AdditionalSenseCode
}

func checkCondition(key byte, code scsi.AdditionalSenseCode) SCSIMapping {
	return SCSIMapping{Status: scsi.SamStatCheckCondition, Key: key, Code: code}
}

var statusToSCSI = map[uint16]SCSIMapping{
	StatusSuccess:                  {Status: scsi.SamStatGood},
	StatusInvalidOpcode:            checkCondition(scsi.IllegalRequest, scsi.AscInvalidOpCode),
	StatusInvalidField:             checkCondition(scsi.IllegalRequest, scsi.AscInvalidFieldInCdb),
	StatusDataTransferError:        checkCondition(scsi.MediumError, scsi.NoAdditionalSense),
	StatusAbortedPowerLoss:         {scsi.SamStatTaskAborted, scsi.AbortedCommand, scsi.NoAdditionalSense},
	StatusInternalError:            checkCondition(scsi.HardwareError, scsi.AscInternalTargetFailure),
	StatusAbortRequested:           {scsi.SamStatTaskAborted, scsi.AbortedCommand, scsi.NoAdditionalSense},
	StatusAbortedSQDeletion:        {scsi.SamStatTaskAborted, scsi.AbortedCommand, scsi.NoAdditionalSense},
	StatusAbortedFailedFuse:        {scsi.SamStatTaskAborted, scsi.AbortedCommand, scsi.NoAdditionalSense},
	StatusAbortedMissingFuse:       {scsi.SamStatTaskAborted, scsi.AbortedCommand, scsi.NoAdditionalSense},
	StatusInvalidNamespace:         checkCondition(scsi.IllegalRequest, scsi.AscLogicalUnitNotSupported),
	StatusCommandSequenceError:     checkCondition(scsi.IllegalRequest, scsi.AscCommandSequenceError),
	StatusLBAOutOfRange:            checkCondition(scsi.IllegalRequest, scsi.AscLbaOutOfRange),
	StatusCapacityExceeded:         checkCondition(scsi.MediumError, scsi.NoAdditionalSense),
	StatusNamespaceNotReady:        checkCondition(scsi.NotReady, scsi.AscNotReady),
	StatusReservationConflict:      {Status: scsi.SamStatReservationConflict},
	StatusFormatInProgress:         checkCondition(scsi.NotReady, scsi.AscFormatInProgress),
	StatusConflictingAttributes:    checkCondition(scsi.IllegalRequest, scsi.AscInvalidFieldInCdb),
	StatusAttemptedWriteToReadOnly: checkCondition(scsi.DataProtect, scsi.AscWriteProtected),
	StatusWriteFault:               checkCondition(scsi.MediumError, scsi.AscWriteError),
	StatusUnrecoveredReadError:     checkCondition(scsi.MediumError, scsi.AscReadError),
	StatusEndToEndGuardCheck:       checkCondition(scsi.MediumError, scsi.AscGuardCheckFailed),
	StatusEndToEndApplicationTag:   checkCondition(scsi.MediumError, scsi.AscApplicationTagCheck),
	StatusEndToEndReferenceTag:     checkCondition(scsi.MediumError, scsi.AscReferenceTagCheck),
	StatusCompareFailure:           checkCondition(scsi.Miscompare, scsi.AscMiscompareDuringVerify),
	StatusAccessDenied:             checkCondition(scsi.DataProtect, scsi.AscAccessDenied),
}

// fallback for statuses SCSI has no equivalent of, WARNING is purposely vague
var unmappedStatus = checkCondition(scsi.IllegalRequest, scsi.AscWarning)

// StatusToSCSI maps SCT|SC onto SCSI status and sense. ok is false when
// the status is unknown and the generic fallback was returned.
func StatusToSCSI(status uint16) (SCSIMapping, bool) {
	mapping, ok := statusToSCSI[status&0x3ff]
	if !ok {
		return unmappedStatus, false
	}
	return mapping, true
}

func StatusString(status uint16) string {
	names := map[uint16]string{
		StatusSuccess:                  "Successful Completion",
		StatusInvalidOpcode:            "Invalid Command Opcode",
		StatusInvalidField:             "Invalid Field in Command",
		StatusCommandIDConflict:        "Command ID Conflict",
		StatusDataTransferError:        "Data Transfer Error",
		StatusAbortedPowerLoss:         "Commands Aborted due to Power Loss Notification",
		StatusInternalError:            "Internal Error",
		StatusAbortRequested:           "Command Abort Requested",
		StatusAbortedSQDeletion:        "Command Aborted due to SQ Deletion",
		StatusAbortedFailedFuse:        "Command Aborted due to Failed Fused Command",
		StatusAbortedMissingFuse:       "Command Aborted due to Missing Fused Command",
		StatusInvalidNamespace:         "Invalid Namespace or Format",
		StatusCommandSequenceError:     "Command Sequence Error",
		StatusLBAOutOfRange:            "LBA Out of Range",
		StatusCapacityExceeded:         "Capacity Exceeded",
		StatusNamespaceNotReady:        "Namespace Not Ready",
		StatusReservationConflict:      "Reservation Conflict",
		StatusFormatInProgress:         "Format In Progress",
		StatusCompletionQueueInvalid:   "Completion Queue Invalid",
		StatusInvalidFormat:            "Invalid Format",
		StatusConflictingAttributes:    "Conflicting Attributes",
		StatusAttemptedWriteToReadOnly: "Attempted Write to Read Only Range",
		StatusWriteFault:               "Write Fault",
		StatusUnrecoveredReadError:     "Unrecovered Read Error",
		StatusEndToEndGuardCheck:       "End-to-end Guard Check Error",
		StatusEndToEndApplicationTag:   "End-to-end Application Tag Check Error",
		StatusEndToEndReferenceTag:     "End-to-end Reference Tag Check Error",
		StatusCompareFailure:           "Compare Failure",
		StatusAccessDenied:             "Access Denied",
	}
	result, ok := names[status&0x3ff]
	if !ok {
		return fmt.Sprintf("Unknown status 0x%03x", status)
	}
	return result
}
