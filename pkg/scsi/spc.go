// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package scsi
// SCSI primary command data formats
package scsi

import (
	"encoding/binary"
)

/*
 * SELECT REPORT field of REPORT LUNS
 *
 * 0x00 - logical units with a LUN, excluding well known ones
 * 0x01 - well known logical units only
 * 0x02 - all logical units
 * 0x10 - administrative logical units
 * 0x11 - administrative logical units and their subsidiaries
 * 0x12 - subsidiary logical units of the addressed one
 */
const (
	SelectReportDefault          = byte(0x00)
	SelectReportWellKnown        = byte(0x01)
	SelectReportAll              = byte(0x02)
	SelectReportAdministrative   = byte(0x10)
	SelectReportAdministrativeEx = byte(0x11)
	SelectReportSubsidiary       = byte(0x12)
)

const (
	reportLunsHeaderLength = 8
	lunEntryLength         = 8
)

// ReportLunsData builds REPORT LUNS parameter data for count logical units
// numbered from zero, keeping at most maxLength bytes of it. Every entry
// uses the single level peripheral device addressing method.
//
// Reference : SPC4r11
// 6.33 - REPORT LUNS
func ReportLunsData(count uint32, maxLength int) []byte {
	length := uint64(reportLunsHeaderLength) + uint64(count)*lunEntryLength
	if maxLength >= 0 && uint64(maxLength) < length {
		length = uint64(maxLength)
	}
	// LUN list length, big endian, saturated
	listLength := uint64(count) * lunEntryLength
	if listLength > 0xffffffff {
		listLength = 0xffffffff
	}
	header := make([]byte, reportLunsHeaderLength)
	binary.BigEndian.PutUint32(header[0:4], uint32(listLength))
	response := make([]byte, length)
	copy(response, header)
	for lun := uint32(0); lun < count; lun++ {
		offset := uint64(reportLunsHeaderLength) + uint64(lun)*lunEntryLength
		if offset+2 > length {
			break
		}
		binary.BigEndian.PutUint16(response[offset:offset+2], uint16(lun))
	}
	return response
}

// LunCountForSelectReport returns how many of namespaceCount namespaces a
// REPORT LUNS with selectReport lists for the session bound to namespace.
func LunCountForSelectReport(selectReport byte, namespaceCount uint32, namespace uint32) (uint32, error) {
	switch selectReport {
	case SelectReportDefault, SelectReportAll:
		return namespaceCount, nil
	case SelectReportWellKnown, SelectReportAdministrative, SelectReportSubsidiary:
		return 0, nil
	case SelectReportAdministrativeEx:
		if namespace == 1 {
			return namespaceCount, nil
		}
		return 0, nil
	default:
		return 0, newErrInvalidField(true, 2, 7)
	}
}

// RequestSenseData is what REQUEST SENSE returns when no deferred error is
// pending: NO SENSE, with LOW POWER CONDITION ON when the device sits in a
// non operational power state.
func RequestSenseData(descriptor bool, lowPower bool) []byte {
	code := NoAdditionalSense
	if lowPower {
		code = AscLowPowerCondition
	}
	return BuildSenseData(descriptor, NoSense, code)
}
