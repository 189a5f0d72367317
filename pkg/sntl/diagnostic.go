// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"encoding/binary"
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/nvme"
)

/*
 * SELF-TEST CODE of SEND DIAGNOSTIC
 *
 * 0 - default self-test (with SELFTEST set)
 * 1 - background short, 2 - background extended
 * 4 - abort background self-test
 * 5 - foreground short, 6 - foreground extended
 */
func selfTestCode(code byte) (uint32, bool) {
	switch code {
	case 0, 1, 5:
		return nvme.SelfTestShort, true
	case 2, 6:
		return nvme.SelfTestExtended, true
	case 4:
		return nvme.SelfTestAbort, true
	default:
		return 0, false
	}
}

// sendDiagnostic starts a device self-test and tunnels a diagnostic page
// to the enclosure through NVMe-MI SES Send.
func (current *translation) sendDiagnostic() error {
	cdb := current.request.CDB
	code := 0x07 & (cdb[1] >> 5)
	selfTest := cdb[1]&0x04 != 0
	pageFormat := cdb[1]&0x10 != 0
	current.log.Debugf("page format %v, self-test %v (code %d)", pageFormat, selfTest, code)
	if selfTest || code != 0 {
		testCode, ok := selfTestCode(code)
		if !ok {
			current.log.Warnf("bad self-test code 0x%x", code)
			current.invalidCDBField(1, 7)
			return nil
		}
		namespaceID := current.dispatcher.cache.NamespaceID()
		if _, err := current.issue(nvme.DeviceSelfTest(namespaceID, testCode), nil, false); err != nil {
			return current.senseFromStatus(err)
		}
	}
	parameterListLength := int(binary.BigEndian.Uint16(cdb[3:5]))
	if pageFormat != (parameterListLength != 0) {
		// PF set with nothing to send, or a parameter list without PF
		current.invalidCDBField(3, 7)
		return nil
	}
	if !pageFormat {
		return nil
	}
	data := current.request.Data
	if len(data) < 4 {
		return newErrBadParameters(fmt.Sprintf("data-out of %d bytes too short", len(data)))
	}
	if !common.IsAligned(data, common.PageSize()) {
		return newErrBadParameters("data-out buffer not page aligned")
	}
	length := len(data)
	if parameterListLength < length {
		length = parameterListLength
	}
	if pageLength := int(binary.BigEndian.Uint16(data[2:4])) + 4; pageLength < length {
		length = pageLength
	}
	current.log.Infof("passing diagnostic page 0x%x, %d bytes to NVMe-MI SES send", data[0], length)
	if _, err := current.issue(nvme.MISend(uint32(length)), data[:length], false); err != nil {
		return current.senseFromStatus(err)
	}
	return nil
}

// receiveDiagnosticResults reads a diagnostic page back through NVMe-MI
// SES Receive.
func (current *translation) receiveDiagnosticResults() error {
	cdb := current.request.CDB
	pageCode := cdb[2]
	allocationLength := int(binary.BigEndian.Uint16(cdb[3:5]))
	data := current.request.Data
	length := len(data)
	if allocationLength < length {
		length = allocationLength
	}
	if !common.IsAligned(data, common.PageSize()) {
		return newErrBadParameters("data-in buffer not page aligned")
	}
	current.log.Infof("expecting diagnostic page 0x%x from NVMe-MI SES receive", pageCode)
	if _, err := current.issue(nvme.MIReceive(pageCode, uint32(length)), data[:length], true); err != nil {
		return current.senseFromStatus(err)
	}
	current.response.Residual = len(data) - length
	return nil
}
