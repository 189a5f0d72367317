// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"fmt"
)

type CommandType byte

const (
	TestUnitReady            CommandType = 0x00
	RequestSense             CommandType = 0x03
	Inquiry                  CommandType = 0x12
	ModeSense6               CommandType = 0x1a
	StartStop                CommandType = 0x1b
	ReceiveDiagnosticResults CommandType = 0x1c
	SendDiagnostic           CommandType = 0x1d
	ReadCapacity10           CommandType = 0x25
	Read10                   CommandType = 0x28
	Write10                  CommandType = 0x2a
	SynchronizeCache10       CommandType = 0x35
	ModeSense10              CommandType = 0x5a
	Read16                   CommandType = 0x88
	Write16                  CommandType = 0x8a
	ServiceActionIn          CommandType = 0x9e
	ReportLuns               CommandType = 0xa0
	// REPORT SUPPORTED OPERATION CODES and
	// REPORT SUPPORTED TASK MANAGEMENT FUNCTIONS share this opcode
	OperationCodeMaintenanceIn CommandType = 0xa3
)

const (
	ServiceActionReportSupportedOperationCodes          byte = 0x0c
	ServiceActionReportSupportedTaskManagementFunctions byte = 0x0d
)

// service action lives in the low five bits of CDB byte 1
const ServiceActionMask = byte(0x1f)

const MaxCDBLength = 16

const (
	SamStatGood                byte = 0x00
	SamStatCheckCondition      byte = 0x02
	SamStatConditionMet        byte = 0x04
	SamStatBusy                byte = 0x08
	SamStatReservationConflict byte = 0x18
	SamStatCommandTerminated   byte = 0x22
	SamStatTaskSetFull         byte = 0x28
	SamStatACAActive           byte = 0x30
	SamStatTaskAborted         byte = 0x40
)

// StatusCarriesSense reports whether the device returns sense data
// together with the status.
func StatusCarriesSense(status byte) bool {
	return status == SamStatCheckCondition || status == SamStatCommandTerminated
}

func StatusToString(status byte) string {
	statuses := map[byte]string{
		SamStatGood:                "Good",
		SamStatCheckCondition:      "Check Condition",
		SamStatConditionMet:        "Condition Met",
		SamStatBusy:                "Busy",
		SamStatReservationConflict: "Reservation Conflict",
		SamStatCommandTerminated:   "Command Terminated",
		SamStatTaskSetFull:         "Task Set Full",
		SamStatACAActive:           "ACA Active",
		SamStatTaskAborted:         "Task Aborted",
	}
	result, ok := statuses[status]
	if !ok {
		return fmt.Sprintf("0x%02x", status)
	}
	return result
}

type SCSIDeviceType byte

const (
	TypeDisk      SCSIDeviceType = 0x00
	TypeEnclosure SCSIDeviceType = 0x0d
	TypeUnknown   SCSIDeviceType = 0x1f
)

func OperationCodeToString(commandType CommandType) string {
	types := map[CommandType]string{
		TestUnitReady:              "TestUnitReady",
		RequestSense:               "RequestSense",
		Inquiry:                    "Inquiry",
		ModeSense6:                 "ModeSense6",
		StartStop:                  "StartStop",
		ReceiveDiagnosticResults:   "ReceiveDiagnosticResults",
		SendDiagnostic:             "SendDiagnostic",
		ReadCapacity10:             "ReadCapacity10",
		Read10:                     "Read10",
		Write10:                    "Write10",
		SynchronizeCache10:         "SynchronizeCache10",
		ModeSense10:                "ModeSense10",
		Read16:                     "Read16",
		Write16:                    "Write16",
		ServiceActionIn:            "ServiceActionIn",
		ReportLuns:                 "ReportLuns",
		OperationCodeMaintenanceIn: "OperationCodeMaintenanceIn",
	}
	result, ok := types[commandType]
	if !ok {
		return fmt.Sprintf("0x%x", int(commandType))
	}
	return result
}

// CDBLengthForOpcode returns the CDB length implied by the group code of
// the opcode, or 0 when the group does not fix a length.
func CDBLengthForOpcode(opcode byte) int {
	switch opcode >> 5 {
	case 0:
		return 6
	case 1, 2:
		return 10
	case 4:
		return 16
	case 5:
		return 12
	default:
		return 0
	}
}

// IsCDB tells a SCSI command descriptor block apart from other command
// encodings, a 64 byte NVMe command in particular.
func IsCDB(cdb []byte) bool {
	length := len(cdb)
	if length < 6 || length > MaxCDBLength {
		return false
	}
	expected := CDBLengthForOpcode(cdb[0])
	if expected != 0 {
		return expected == length
	}
	// group 3 is reserved or variable length, groups 6 and 7 are vendor specific
	switch length {
	case 6, 10, 12, 16:
		return true
	}
	return cdb[0]>>5 == 3 && length >= 8
}
