// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"encoding/binary"
)

const (
	ReportAllReportingOption                 = byte(0x00)
	ReportSingleReportingOption              = byte(0x01)
	ReportSingleServiceActionReportingOption = byte(0x02)
	ReportSingleReportingOptionAllowBoth     = byte(0x03)
)

const (
	supportNotAvailable = byte(0x01)
	supportStandard     = byte(0x03)
)

var timeoutsDescriptor = []byte{
	// Descriptor length
	0x00, 0x0a,
	// Reserved
	0x00,
	// Command specific
	0x00,
	// Nominal command processing timeout
	0x00, 0x00, 0x00, 0x00,
	// Recommended command timeout
	0x00, 0x00, 0x00, 0x00,
}

// CommandDescription is one entry of the opcode descriptor table. Usage
// holds the opcode followed by the mask of CDB bits the command looks at,
// its length is the CDB length.
type CommandDescription struct {
	OperationCode    CommandType
	ServiceAction    uint16
	HasServiceAction bool
	Usage            []byte
}

func (description CommandDescription) length() uint16 {
	return uint16(len(description.Usage))
}

// SupportedOperationCodes lists, in reporting order, the commands a
// translated NVMe device answers.
var SupportedOperationCodes = []CommandDescription{
	{TestUnitReady, 0, false, testUnitReadyUsage()},
	{RequestSense, 0, false, requestSenseUsage()},
	{Inquiry, 0, false, inquiryUsage()},
	{ReceiveDiagnosticResults, 0, false, receiveDiagnosticResultsUsage()},
	{SendDiagnostic, 0, false, sendDiagnosticUsage()},
	{ReportLuns, 0, false, reportLunsUsage()},
	{
		OperationCodeMaintenanceIn,
		uint16(ServiceActionReportSupportedOperationCodes),
		true,
		reportSupportedOperationCodesUsage(),
	},
	{
		OperationCodeMaintenanceIn,
		uint16(ServiceActionReportSupportedTaskManagementFunctions),
		true,
		reportSupportedTaskManagementFunctionsUsage(),
	},
}

func findCommandDescription(operationCode byte, serviceAction uint16) (CommandDescription, bool) {
	for _, description := range SupportedOperationCodes {
		if byte(description.OperationCode) == operationCode && description.ServiceAction == serviceAction {
			return description, true
		}
	}
	return CommandDescription{}, false
}

// ReportAllOperationCodes builds the "all commands" parameter data of
// REPORT SUPPORTED OPERATION CODES.
func ReportAllOperationCodes(returnCommandsTimeoutsDescriptor bool) []byte {
	data := make([]byte, 4, 4+len(SupportedOperationCodes)*20)
	flags := byte(0x00)
	if returnCommandsTimeoutsDescriptor {
		flags = byte(0x02) // command timeouts' descriptor present bitmask
	}
	for _, description := range SupportedOperationCodes {
		currentFlags := flags
		if description.HasServiceAction {
			// Has service action
			currentFlags |= 0x01
		}
		data = append(data, byte(description.OperationCode), 0x00)
		data = append(data, MarshalUint16(description.ServiceAction)...)
		data = append(
			data,
			// reserved
			0x00,
			currentFlags,
		)
		data = append(data, MarshalUint16(description.length())...)
		if returnCommandsTimeoutsDescriptor {
			data = append(data, timeoutsDescriptor...)
		}
	}
	binary.BigEndian.PutUint32(data[0:4], uint32(len(data)-4))
	return data
}

// ReportOneOperationCode builds the "one command" parameter data for
// reporting options 1, 2 and 3.
func ReportOneOperationCode(
	reportingOption byte,
	operationCode byte,
	serviceAction uint16,
	returnCommandsTimeoutsDescriptor bool,
) ([]byte, error) {
	data := make([]byte, 4, 64)
	support := supportNotAvailable
	description, ok := findCommandDescription(operationCode, serviceAction)
	if ok {
		if reportingOption == ReportSingleReportingOption && description.HasServiceAction {
			// service action given for an opcode reported on its own
			return nil, newErrInvalidField(true, 2, 2)
		}
		if reportingOption == ReportSingleServiceActionReportingOption && !description.HasServiceAction {
			// points at the requested service action field
			return nil, newErrInvalidField(true, 4, -1)
		}
		support = supportStandard
		binary.BigEndian.PutUint16(data[2:4], description.length())
		data = append(data, description.Usage...)
	}
	data[1] = support
	if returnCommandsTimeoutsDescriptor {
		data[1] |= 0x80 // CTDP
		data = append(data, timeoutsDescriptor...)
	}
	return data, nil
}

// ReportSupportedTaskManagementFunctionsData answers REPORT SUPPORTED TASK
// MANAGEMENT FUNCTIONS: ABORT TASK SET, CLEAR TASK SET, LOGICAL UNIT
// RESET and I_T NEXUS RESET.
func ReportSupportedTaskManagementFunctionsData(extended bool) []byte {
	if !extended {
		return []byte{0xc8, 0x01, 0x00, 0x00}
	}
	return []byte{
		0xc8, 0x01, 0x00,
		// additional data length
		0x0c,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

func testUnitReadyUsage() []byte {
	return []byte{
		byte(TestUnitReady),
		// Reserved
		0x00, 0x00, 0x00, 0x00,
		// Control: NACA and vendor bits
		0xc7,
	}
}

func requestSenseUsage() []byte {
	return []byte{
		byte(RequestSense),
		// DESC
		0xe1,
		0x00, 0x00,
		// allocation length
		0xff,
		0xc7,
	}
}

func inquiryUsage() []byte {
	return []byte{
		byte(Inquiry),
		// EVPD and obsolete CMDDT
		0xe3,
		// page code
		0xff,
		// allocation length
		0xff, 0xff,
		0xc7,
	}
}

func receiveDiagnosticResultsUsage() []byte {
	return []byte{
		byte(ReceiveDiagnosticResults),
		// PCV
		0x01,
		// page code
		0xff,
		// allocation length
		0xff, 0xff,
		0xc7,
	}
}

func sendDiagnosticUsage() []byte {
	return []byte{
		byte(SendDiagnostic),
		// SELF-TEST CODE, PF, SELFTEST, DEVOFFL, UNITOFFL
		0xf7,
		0x00,
		// parameter list length
		0xff, 0xff,
		0xc7,
	}
}

func reportLunsUsage() []byte {
	return []byte{
		byte(ReportLuns),
		0xe3,
		// Select report
		0xff,
		// Reserved
		0x00, 0x00, 0x00,
		// Allocation length
		0xff, 0xff, 0xff, 0xff,
		// Reserved
		0x00,
		// Control
		0xc7,
	}
}

func reportSupportedOperationCodesUsage() []byte {
	return []byte{
		byte(OperationCodeMaintenanceIn),
		ServiceActionReportSupportedOperationCodes,
		// RCTD and reporting options
		0x87,
		// requested operation code
		0xff,
		// requested service action
		0xff, 0xff,
		// allocation length
		0xff, 0xff, 0xff, 0xff,
		0x00,
		0xc7,
	}
}

func reportSupportedTaskManagementFunctionsUsage() []byte {
	return []byte{
		byte(OperationCodeMaintenanceIn),
		ServiceActionReportSupportedTaskManagementFunctions,
		// REPD
		0x80,
		0x00, 0x00, 0x00,
		// allocation length
		0xff, 0xff, 0xff, 0xff,
		0x00,
		0xc7,
	}
}
