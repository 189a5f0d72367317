// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
	"sgpassthru/pkg/transport"
	"testing"
)

type simulatedIssuer struct {
	device *transport.SimulatedNVMe
}

func (issuer simulatedIssuer) IssueAdmin(ctx context.Context, command *nvme.Command, data []byte, dataIn bool) (nvme.Completion, error) {
	raw, err := command.Bytes()
	if err != nil {
		return nvme.Completion{}, err
	}
	completion, err := issuer.device.SubmitAdmin(ctx, &transport.AdminRequest{Command: raw, Data: data, DataIn: dataIn})
	if err != nil {
		return completion, err
	}
	if status := completion.Status(); status != nvme.StatusSuccess {
		return completion, nvme.NewErrStatus(command.Opcode, status)
	}
	return completion, nil
}

type memoryCache struct {
	identity    []byte
	namespaceID uint32
}

func (cache *memoryCache) CachedIdentity() []byte {
	return cache.identity
}

func (cache *memoryCache) StoreIdentity(data []byte) {
	cache.identity = data
}

func (cache *memoryCache) NamespaceID() uint32 {
	return cache.namespaceID
}

func newTestDispatcher(namespaceCount uint32) (*Dispatcher, *transport.SimulatedNVMe) {
	device := transport.NewSimulatedNVMe("sim0", "TESTDRIVE0000000", "SN0001", "1.0", namespaceCount)
	return NewDispatcher(simulatedIssuer{device: device}, &memoryCache{namespaceID: 1}), device
}

func dispatch(t *testing.T, dispatcher *Dispatcher, cdb []byte, data []byte) (Response, []byte) {
	t.Helper()
	sense := make([]byte, 32)
	response, err := dispatcher.Dispatch(context.Background(), &Request{CDB: cdb, Data: data, Sense: sense})
	if err != nil {
		t.Fatalf("dispatch of %#v failed: %s", cdb, err)
	}
	return response, sense
}

func expectInvalidField(t *testing.T, response Response, sense []byte, byteIndex int, bit int) {
	t.Helper()
	if response.Status != scsi.SamStatCheckCondition {
		t.Fatalf("expected CHECK CONDITION, received 0x%02x", response.Status)
	}
	parsed, err := scsi.ParseSenseData(sense[:response.SenseLength])
	if err != nil {
		t.Fatalf("bad sense %#v: %s", sense, err)
	}
	if parsed.Key != scsi.IllegalRequest {
		t.Errorf("expected ILLEGAL REQUEST, received key 0x%x", parsed.Key)
	}
	_, receivedByte, receivedBit, ok := parsed.FieldPointer()
	if !ok || receivedByte != byteIndex || receivedBit != bit {
		t.Errorf("expected field pointer %d/%d, received %d/%d (%v)", byteIndex, bit, receivedByte, receivedBit, ok)
	}
}

func TestStandardInquiry(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	data := make([]byte, 96)
	response, _ := dispatch(t, dispatcher, []byte{0x12, 0x00, 0x00, 0x00, 0x60, 0x00}, data)
	if response.Status != scsi.SamStatGood {
		t.Fatalf("expected GOOD, received 0x%02x", response.Status)
	}
	if string(data[16:32]) != "TESTDRIVE0000000" || data[2] != 0x06 {
		t.Errorf("unexpected inquiry data %#v", data[:36])
	}
	if response.Residual != 96-36 {
		t.Errorf("expected residual %d, received %d", 96-36, response.Residual)
	}
}

func TestInquiryZeroAllocationCopiesNothing(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	data := bytes.Repeat([]byte{0xff}, 36)
	response, _ := dispatch(t, dispatcher, []byte{0x12, 0x00, 0x00, 0x00, 0x00, 0x00}, data)
	if response.Status != scsi.SamStatGood || data[0] != 0xff || response.Residual != 0 {
		t.Errorf("expected untouched buffer, received %#v %+v", data[:4], response)
	}
}

func TestInquirySupportedPages(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	data := make([]byte, 64)
	response, _ := dispatch(t, dispatcher, []byte{0x12, 0x01, 0x00, 0x00, 0x40, 0x00}, data)
	expected := []byte{0x00, 0x00, 0x00, 0x04, 0x00, 0x80, 0x83, 0xde}
	if !bytes.Equal(data[:8], expected) || response.Residual != 56 {
		t.Errorf("expected %#v, received %#v (residual %d)", expected, data[:8], response.Residual)
	}
}

func TestInquiryDeviceIdentification(t *testing.T) {
	dispatcher, device := newTestDispatcher(2)
	data := make([]byte, 256)
	response, _ := dispatch(t, dispatcher, []byte{0x12, 0x01, 0x83, 0x01, 0x00, 0x00}, data)
	if response.Status != scsi.SamStatGood || data[1] != 0x83 {
		t.Fatalf("unexpected page %#v", data[:8])
	}
	if !bytes.Contains(data, []byte("NVMe    TESTDRIVE0000000_SN0001")) {
		t.Errorf("T10 designator missing from %#v", data)
	}
	if !bytes.Contains(data, []byte("eui.01000000000000000000000000000001")) {
		t.Errorf("namespace name missing from %#v", data)
	}
	issued := device.IssuedCommands()
	last := issued[len(issued)-1]
	if last.Opcode != uint8(nvme.AdminIdentify) || last.NamespaceID != 1 {
		t.Errorf("expected Identify Namespace 1, received %+v", last)
	}
}

func TestInquiryUnknownPage(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	response, sense := dispatch(t, dispatcher, []byte{0x12, 0x01, 0xb0, 0x00, 0xff, 0x00}, make([]byte, 255))
	expectInvalidField(t, response, sense, 2, 7)
}

func TestInquiryCmdDt(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	response, sense := dispatch(t, dispatcher, []byte{0x12, 0x02, 0x00, 0x00, 0xff, 0x00}, make([]byte, 255))
	expectInvalidField(t, response, sense, 1, 1)
	if len(device.IssuedCommands()) != 0 {
		t.Errorf("expected no command to reach the device")
	}
}

func TestIdentifyFailureBecomesSense(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	device.FailStatus[uint8(nvme.AdminIdentify)] = nvme.StatusInternalError
	response, sense := dispatch(t, dispatcher, []byte{0x12, 0x00, 0x00, 0x00, 0x24, 0x00}, make([]byte, 36))
	if response.Status != scsi.SamStatCheckCondition || response.NVMeStatus != nvme.StatusInternalError {
		t.Fatalf("unexpected response %+v", response)
	}
	if sense[2] != scsi.HardwareError || sense[12] != 0x44 {
		t.Errorf("unexpected sense %#v", sense[:18])
	}
}

func TestTransportFailurePassedOn(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	device.TransportFailure = 0x79
	_, err := dispatcher.Dispatch(context.Background(), &Request{CDB: make([]byte, 6), Sense: make([]byte, 32)})
	var transportError *transport.Error
	if !errors.As(err, &transportError) || transportError.Code != 0x79 {
		t.Errorf("expected transport error 0x79, received %v", err)
	}
}

func TestIdentityIsCached(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	for i := 0; i < 2; i++ {
		dispatch(t, dispatcher, []byte{0x12, 0x00, 0x00, 0x00, 0x24, 0x00}, make([]byte, 36))
	}
	if issued := len(device.IssuedCommands()); issued != 1 {
		t.Errorf("expected one Identify, received %d commands", issued)
	}
}

func TestReportLuns(t *testing.T) {
	dispatcher, _ := newTestDispatcher(3)
	data := make([]byte, 64)
	cdb := []byte{0xa0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00}
	response, _ := dispatch(t, dispatcher, cdb, data)
	if length := binary.BigEndian.Uint32(data[0:4]); length != 24 {
		t.Errorf("expected LUN list length 24, received %d", length)
	}
	if binary.BigEndian.Uint16(data[24:26]) != 2 {
		t.Errorf("expected LUN 2 in the last entry, received %#v", data[24:32])
	}
	if response.Residual != 32 {
		t.Errorf("expected residual 32, received %d", response.Residual)
	}
}

func TestReportLunsBadSelectReport(t *testing.T) {
	dispatcher, _ := newTestDispatcher(3)
	cdb := []byte{0xa0, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00}
	response, sense := dispatch(t, dispatcher, cdb, make([]byte, 64))
	expectInvalidField(t, response, sense, 2, 7)
}

func TestTestUnitReadyLowPower(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	device.PowerState = 3
	response, _ := dispatch(t, dispatcher, make([]byte, 6), nil)
	if response.Status != scsi.SamStatGood {
		t.Errorf("expected low power to be ignored, received 0x%02x", response.Status)
	}
	if response.NVMeResult != 3 {
		t.Errorf("expected Get Features result 3, received %d", response.NVMeResult)
	}
	dispatcher.ReportLowPower = true
	response, sense := dispatch(t, dispatcher, make([]byte, 6), nil)
	if response.Status != scsi.SamStatCheckCondition || sense[2] != scsi.NotReady || sense[12] != 0x5e {
		t.Errorf("expected NOT READY low power, received %+v %#v", response, sense[:18])
	}
}

func TestRequestSense(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	device.PowerState = 1
	data := make([]byte, 32)
	response, _ := dispatch(t, dispatcher, []byte{0x03, 0x00, 0x00, 0x00, 0x12, 0x00}, data)
	if data[0] != 0x70 || data[2] != scsi.NoSense || data[12] != 0x5e {
		t.Errorf("unexpected sense data %#v", data[:18])
	}
	if response.SenseLength != 0 || response.Residual != 32-18 {
		t.Errorf("unexpected response %+v", response)
	}
	data = make([]byte, 32)
	response, _ = dispatch(t, dispatcher, []byte{0x03, 0x01, 0x00, 0x00, 0x04, 0x00}, data)
	if data[0] != 0x72 || data[4] != 0 || response.Residual != 28 {
		t.Errorf("unexpected clipped descriptor sense %#v %+v", data[:8], response)
	}
}

func TestSendDiagnosticSelfTest(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	// SELF-TEST CODE 6: foreground extended
	response, _ := dispatch(t, dispatcher, []byte{0x1d, 0xc0, 0x00, 0x00, 0x00, 0x00}, nil)
	if response.Status != scsi.SamStatGood {
		t.Fatalf("unexpected response %+v", response)
	}
	if len(device.SelfTests) != 1 || device.SelfTests[0] != nvme.SelfTestExtended {
		t.Errorf("expected extended self-test, received %v", device.SelfTests)
	}
	response, sense := dispatch(t, dispatcher, []byte{0x1d, 0x60, 0x00, 0x00, 0x00, 0x00}, nil)
	expectInvalidField(t, response, sense, 1, 7)
}

func TestSendDiagnosticParameterListWithoutPageFormat(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	data := common.PageAlignedBuffer(64)
	data[0] = 0xaa
	response, sense := dispatch(t, dispatcher, []byte{0x1d, 0x00, 0x00, 0x00, 0x10, 0x00}, data)
	expectInvalidField(t, response, sense, 3, 7)
	if data[0] != 0xaa || device.SentDiagnostic != nil {
		t.Errorf("expected nothing to be sent")
	}
	response, sense = dispatch(t, dispatcher, []byte{0x1d, 0x10, 0x00, 0x00, 0x00, 0x00}, data)
	expectInvalidField(t, response, sense, 3, 7)
}

func TestSendDiagnosticPage(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	data := common.PageAlignedBuffer(64)
	data[0] = 0x02
	binary.BigEndian.PutUint16(data[2:4], 8)
	response, _ := dispatch(t, dispatcher, []byte{0x1d, 0x10, 0x00, 0x00, 0x40, 0x00}, data)
	if response.Status != scsi.SamStatGood {
		t.Fatalf("unexpected response %+v", response)
	}
	if len(device.SentDiagnostic) != 12 || device.SentDiagnostic[0] != 0x02 {
		t.Errorf("expected 12 byte page, received %#v", device.SentDiagnostic)
	}
	issued := device.IssuedCommands()
	last := issued[len(issued)-1]
	if last.Opcode != uint8(nvme.AdminMISend) || last.Cdw13 != 12 {
		t.Errorf("unexpected MI Send %+v", last)
	}
}

func TestSendDiagnosticBadBuffers(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	cdb := []byte{0x1d, 0x10, 0x00, 0x00, 0x40, 0x00}
	_, err := dispatcher.Dispatch(context.Background(), &Request{CDB: cdb, Data: make([]byte, 2)})
	var badParameters *ErrBadParameters
	if !errors.As(err, &badParameters) {
		t.Errorf("expected bad parameters for short data-out, received %v", err)
	}
	misaligned := common.PageAlignedBuffer(128)[1:]
	_, err = dispatcher.Dispatch(context.Background(), &Request{CDB: cdb, Data: misaligned})
	if !errors.As(err, &badParameters) {
		t.Errorf("expected bad parameters for misaligned data-out, received %v", err)
	}
}

func TestReceiveDiagnosticResults(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	device.DiagnosticPages[0x02] = []byte{0x02, 0x00, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04}
	data := common.PageAlignedBuffer(64)
	response, _ := dispatch(t, dispatcher, []byte{0x1c, 0x01, 0x02, 0x00, 0x08, 0x00}, data)
	if response.Status != scsi.SamStatGood || response.Residual != 56 {
		t.Fatalf("unexpected response %+v", response)
	}
	if !bytes.Equal(data[:8], device.DiagnosticPages[0x02]) {
		t.Errorf("unexpected page %#v", data[:8])
	}
	response, sense := dispatch(t, dispatcher, []byte{0x1c, 0x01, 0x07, 0x00, 0x08, 0x00}, data)
	if response.Status != scsi.SamStatCheckCondition || sense[12] != 0x24 {
		t.Errorf("expected INVALID FIELD IN CDB, received %+v %#v", response, sense[:18])
	}
}

func TestReportSupportedOperationCodes(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	data := make([]byte, 512)
	cdb := []byte{0xa3, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	response, _ := dispatch(t, dispatcher, cdb, data)
	length := 4 + 8*len(scsi.SupportedOperationCodes)
	if int(binary.BigEndian.Uint32(data[0:4])) != length-4 || response.Residual != 512-length {
		t.Errorf("unexpected report %#v, residual %d", data[:8], response.Residual)
	}

	cdb = []byte{0xa3, 0x0c, 0x01, 0x12, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	dispatch(t, dispatcher, cdb, data)
	if data[1] != 0x03 || data[4] != 0x12 {
		t.Errorf("unexpected one command report %#v", data[:10])
	}

	cdb = []byte{0xa3, 0x0c, 0x01, 0xa3, 0x00, 0x0c, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	response, sense := dispatch(t, dispatcher, cdb, data)
	expectInvalidField(t, response, sense, 2, 2)

	cdb = []byte{0xa3, 0x0c, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	response, sense = dispatch(t, dispatcher, cdb, data)
	expectInvalidField(t, response, sense, 2, 2)

	cdb = []byte{0xa3, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	response, sense = dispatch(t, dispatcher, cdb, data)
	expectInvalidField(t, response, sense, 6, -1)
}

func TestReportSupportedTaskManagementFunctions(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	data := make([]byte, 16)
	cdb := []byte{0xa3, 0x0d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00}
	response, _ := dispatch(t, dispatcher, cdb, data)
	if data[0] != 0xc8 || response.Residual != 12 {
		t.Errorf("unexpected response %#v %+v", data[:4], response)
	}
	cdb[9] = 0x02
	response, sense := dispatch(t, dispatcher, cdb, data)
	expectInvalidField(t, response, sense, 6, -1)
}

func TestUnsupportedCommands(t *testing.T) {
	dispatcher, device := newTestDispatcher(1)
	for _, cdb := range [][]byte{
		{0x28, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0xa3, 0x05, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	} {
		response, sense := dispatch(t, dispatcher, cdb, nil)
		if response.Status != scsi.SamStatCheckCondition || sense[2] != scsi.IllegalRequest || sense[12] != 0x20 {
			t.Errorf("expected INVALID COMMAND OPERATION CODE for %#v, received %#v", cdb, sense[:18])
		}
		if response.SenseLength != scsi.FixedSenseLength || response.SenseResidual != 32-scsi.FixedSenseLength {
			t.Errorf("expected %d bytes of sense and residual %d, received %d and %d",
				scsi.FixedSenseLength, 32-scsi.FixedSenseLength, response.SenseLength, response.SenseResidual)
		}
	}
	if len(device.IssuedCommands()) != 0 {
		t.Errorf("expected no command to reach the device")
	}
}

func TestShortCDB(t *testing.T) {
	dispatcher, _ := newTestDispatcher(1)
	_, err := dispatcher.Dispatch(context.Background(), &Request{CDB: []byte{0xa0, 0x00, 0x00}})
	var badParameters *ErrBadParameters
	if !errors.As(err, &badParameters) {
		t.Errorf("expected bad parameters, received %v", err)
	}
}
