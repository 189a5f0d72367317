// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestStandardInquiryData(t *testing.T) {
	data := StandardInquiryData(TypeDisk, NVMeVendorIdentification, []byte("TESTDRIVE0000000XYZ"), []byte("1.0"))
	if len(data) != StandardInquiryLength {
		t.Fatalf("expected %d bytes, received %d", StandardInquiryLength, len(data))
	}
	if data[2] != VersionSpc4 || data[4] != 31 {
		t.Errorf("unexpected version or additional length %#v", data[:8])
	}
	if string(data[8:16]) != "NVMe    " {
		t.Errorf("unexpected vendor '%s'", data[8:16])
	}
	if string(data[16:32]) != "TESTDRIVE0000000" {
		t.Errorf("unexpected product '%s'", data[16:32])
	}
	if string(data[32:36]) != "1.0 " {
		t.Errorf("unexpected revision '%s'", data[32:36])
	}
}

func TestSupportedVpdPages(t *testing.T) {
	pages := []byte{0x00, 0x80, 0x83, 0xde}
	data := SupportedVpdPagesVpdPage(TypeDisk, pages)
	expected := []byte{0x00, 0x00, 0x00, 0x04, 0x00, 0x80, 0x83, 0xde}
	if !bytes.Equal(data, expected) {
		t.Errorf("expected %#v, received %#v", expected, data)
	}
}

func TestT10VendorDesignator(t *testing.T) {
	value := T10VendorDesignator(NVMeVendorIdentification, []byte("MODEL   "), []byte("SN1   "))
	if value[0] != InqCodeAscii || value[1] != 0x21 {
		t.Errorf("unexpected designator header %#v", value[:4])
	}
	body := value[4:]
	if int(value[3]) != len(body) || len(body)%4 != 0 {
		t.Errorf("designator length %d does not match body of %d", value[3], len(body))
	}
	if !bytes.HasPrefix(body, []byte("NVMe    MODEL_SN1")) {
		t.Errorf("unexpected designator body '%s'", body)
	}
}

func TestNamespaceDesignatorsPreferNguid(t *testing.T) {
	nguid := bytes.Repeat([]byte{0xab}, 16)
	eui64 := bytes.Repeat([]byte{0x01}, 8)
	value := NamespaceDesignators(nguid, eui64)
	if value[1] != DesignatorTypeEui64 || value[3] != 16 {
		t.Fatalf("expected 16 byte EUI designator, received %#v", value[:4])
	}
	name := value[4+16:]
	if name[1]&0x0f != DesignatorTypeScsiName {
		t.Errorf("expected SCSI name string designator, received %#v", name[:4])
	}
	if !bytes.HasPrefix(name[4:], []byte("eui.ABABABAB")) {
		t.Errorf("unexpected SCSI name '%s'", name[4:])
	}
	if value := NamespaceDesignators(make([]byte, 16), eui64); value[3] != 8 {
		t.Errorf("expected EUI-64 fallback, received %#v", value[:4])
	}
	if value := NamespaceDesignators(make([]byte, 16), make([]byte, 8)); value != nil {
		t.Errorf("expected no designators, received %#v", value)
	}
}

func TestVendorSpecificVpdPage(t *testing.T) {
	data := VendorSpecificVpdPage(TypeDisk, NVMeIdentifyVpdPageCode, make([]byte, 4096))
	if len(data) != 4112 {
		t.Fatalf("expected 4112 bytes, received %d", len(data))
	}
	if length := binary.BigEndian.Uint16(data[2:4]); length != 4108 {
		t.Errorf("expected page length 4108, received %d", length)
	}
}

func TestReportLunsData(t *testing.T) {
	data := ReportLunsData(3, -1)
	if len(data) != 32 {
		t.Fatalf("expected 32 bytes, received %d", len(data))
	}
	if length := binary.BigEndian.Uint32(data[0:4]); length != 24 {
		t.Errorf("expected list length 24, received %d", length)
	}
	for lun := 0; lun < 3; lun++ {
		entry := data[8+lun*8 : 16+lun*8]
		if binary.BigEndian.Uint16(entry[0:2]) != uint16(lun) || !allZeros(entry[2:]) {
			t.Errorf("unexpected entry %d: %#v", lun, entry)
		}
	}
	clipped := ReportLunsData(1<<30, 20)
	if len(clipped) != 20 || binary.BigEndian.Uint32(clipped[0:4]) != 0xffffffff {
		t.Errorf("unexpected clipped list %#v", clipped)
	}
	if binary.BigEndian.Uint16(clipped[16:18]) != 1 {
		t.Errorf("expected second entry to be LUN 1, received %#v", clipped[16:20])
	}
}

func TestLunCountForSelectReport(t *testing.T) {
	cases := []struct {
		selectReport byte
		namespace    uint32
		expected     uint32
	}{
		{0x00, 2, 5},
		{0x02, 2, 5},
		{0x01, 1, 0},
		{0x10, 1, 0},
		{0x12, 1, 0},
		{0x11, 1, 5},
		{0x11, 2, 0},
	}
	for _, testCase := range cases {
		count, err := LunCountForSelectReport(testCase.selectReport, 5, testCase.namespace)
		if err != nil || count != testCase.expected {
			t.Errorf(
				"select report 0x%02x namespace %d: expected %d, received %d (%v)",
				testCase.selectReport, testCase.namespace, testCase.expected, count, err,
			)
		}
	}
	_, err := LunCountForSelectReport(0x03, 5, 1)
	var invalid *ErrInvalidField
	if !errors.As(err, &invalid) || invalid.Byte != 2 || invalid.Bit != 7 {
		t.Errorf("expected invalid field at byte 2 bit 7, received %v", err)
	}
}

func TestReportAllOperationCodes(t *testing.T) {
	data := ReportAllOperationCodes(false)
	count := len(SupportedOperationCodes)
	if length := binary.BigEndian.Uint32(data[0:4]); int(length) != count*8 {
		t.Fatalf("expected length %d, received %d", count*8, length)
	}
	inquiry := data[4+2*8 : 4+3*8]
	expected := []byte{0x12, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x06}
	if !bytes.Equal(inquiry, expected) {
		t.Errorf("expected INQUIRY descriptor %#v, received %#v", expected, inquiry)
	}
	maintenance := data[4+6*8 : 4+7*8]
	if maintenance[0] != 0xa3 || maintenance[3] != 0x0c || maintenance[5] != 0x01 || maintenance[7] != 12 {
		t.Errorf("unexpected maintenance in descriptor %#v", maintenance)
	}
	withTimeouts := ReportAllOperationCodes(true)
	if length := binary.BigEndian.Uint32(withTimeouts[0:4]); int(length) != count*20 {
		t.Errorf("expected length %d, received %d", count*20, length)
	}
	if withTimeouts[4+5] != 0x02 || binary.BigEndian.Uint16(withTimeouts[4+8:4+10]) != 0x0a {
		t.Errorf("unexpected timeouts descriptor %#v", withTimeouts[4:24])
	}
}

func TestReportOneOperationCode(t *testing.T) {
	data, err := ReportOneOperationCode(ReportSingleReportingOption, byte(Inquiry), 0, false)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if data[1] != supportStandard || binary.BigEndian.Uint16(data[2:4]) != 6 {
		t.Errorf("unexpected one command header %#v", data[:4])
	}
	if !bytes.Equal(data[4:], inquiryUsage()) {
		t.Errorf("unexpected usage data %#v", data[4:])
	}

	data, err = ReportOneOperationCode(ReportSingleReportingOption, 0x28, 0, true)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if data[1] != 0x80|supportNotAvailable || len(data) != 4+12 {
		t.Errorf("unexpected not supported response %#v", data)
	}

	_, err = ReportOneOperationCode(ReportSingleReportingOption, 0xa3, 0x0c, false)
	var invalid *ErrInvalidField
	if !errors.As(err, &invalid) || invalid.Byte != 2 || invalid.Bit != 2 {
		t.Errorf("expected invalid field at byte 2 bit 2, received %v", err)
	}
	_, err = ReportOneOperationCode(ReportSingleServiceActionReportingOption, byte(Inquiry), 0, false)
	if !errors.As(err, &invalid) || invalid.Byte != 4 || invalid.Bit != -1 {
		t.Errorf("expected invalid field at byte 4, received %v", err)
	}
	data, err = ReportOneOperationCode(ReportSingleServiceActionReportingOption, 0xa3, 0x0d, false)
	if err != nil || data[1] != supportStandard {
		t.Errorf("expected supported service action, received %#v %v", data, err)
	}
}

func TestReportSupportedTaskManagementFunctionsData(t *testing.T) {
	if data := ReportSupportedTaskManagementFunctionsData(false); len(data) != 4 || data[0] != 0xc8 || data[1] != 0x01 {
		t.Errorf("unexpected short response %#v", data)
	}
	if data := ReportSupportedTaskManagementFunctionsData(true); len(data) != 16 || data[3] != 0x0c {
		t.Errorf("unexpected extended response %#v", data)
	}
}

func TestRequestSenseData(t *testing.T) {
	data := RequestSenseData(false, true)
	if data[2] != NoSense || data[12] != 0x5e {
		t.Errorf("unexpected low power sense %#v", data)
	}
	if data := RequestSenseData(true, false); len(data) != 8 || data[2] != 0 {
		t.Errorf("unexpected descriptor sense %#v", data)
	}
}

func TestIsCDB(t *testing.T) {
	if !IsCDB(make([]byte, 6)) {
		t.Errorf("expected TEST UNIT READY CDB to be recognised")
	}
	if IsCDB(make([]byte, 64)) {
		t.Errorf("expected NVMe command not to be a CDB")
	}
	if IsCDB([]byte{0x12, 0, 0, 0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("expected 10 byte INQUIRY to be refused")
	}
}
