// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"encoding/binary"
	"sgpassthru/pkg/scsi"
)

func (current *translation) reportSupportedOperationCodes() error {
	cdb := current.request.CDB
	returnTimeouts := cdb[2]&0x80 != 0
	reportingOption := cdb[2] & 0x07
	requestedOperationCode := cdb[3]
	requestedServiceAction := binary.BigEndian.Uint16(cdb[4:6])
	allocationLength := binary.BigEndian.Uint32(cdb[6:10])
	if allocationLength < 4 || allocationLength > 0xffff {
		current.invalidCDBField(6, -1)
		return nil
	}
	var data []byte
	switch reportingOption {
	case scsi.ReportAllReportingOption:
		data = scsi.ReportAllOperationCodes(returnTimeouts)
	case scsi.ReportSingleReportingOption,
		scsi.ReportSingleServiceActionReportingOption,
		scsi.ReportSingleReportingOptionAllowBoth:
		var err error
		data, err = scsi.ReportOneOperationCode(reportingOption, requestedOperationCode, requestedServiceAction, returnTimeouts)
		if err != nil {
			current.invalidField(err)
			return nil
		}
	default:
		current.invalidCDBField(2, 2)
		return nil
	}
	current.copyResponse(data, int(allocationLength))
	return nil
}

func (current *translation) reportSupportedTaskManagementFunctions() error {
	cdb := current.request.CDB
	extended := cdb[2]&0x80 != 0
	allocationLength := binary.BigEndian.Uint32(cdb[6:10])
	if allocationLength < 4 {
		current.invalidCDBField(6, -1)
		return nil
	}
	current.copyResponse(scsi.ReportSupportedTaskManagementFunctionsData(extended), clampAllocation(allocationLength))
	return nil
}
