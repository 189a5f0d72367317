// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package transport

import (
	"context"
	"errors"
	"sgpassthru/pkg/nvme"
	"testing"
	"time"
)

func adminRequest(t *testing.T, command *nvme.Command, data []byte) *AdminRequest {
	encoded, err := command.Bytes()
	if err != nil {
		t.Fatalf("encode failed: %s", err)
	}
	return &AdminRequest{Command: encoded, Data: data, DataIn: command.IsDataIn()}
}

func TestSimulatedNVMeIdentify(t *testing.T) {
	device := NewSimulatedNVMe("sim0", "TESTDRIVE0000000", "SN1", "1.0", 3)
	data := make([]byte, nvme.IdentifyDataLength)
	completion, err := device.SubmitAdmin(context.Background(), adminRequest(t, nvme.IdentifyController(), data))
	if err != nil || completion.Status() != 0 {
		t.Fatalf("identify failed: %v status 0x%x", err, completion.Status())
	}
	controller, err := nvme.DecodeIdentifyController(data)
	if err != nil {
		t.Fatalf("decode failed: %s", err)
	}
	if controller.NumberOfNamespaces != 3 || controller.Model() != "TESTDRIVE0000000" {
		t.Errorf("unexpected controller %s", controller)
	}
	completion, _ = device.SubmitAdmin(context.Background(), adminRequest(t, nvme.IdentifyNamespace(9), data))
	if completion.Status() != nvme.StatusInvalidNamespace {
		t.Errorf("expected invalid namespace, received 0x%x", completion.Status())
	}
}

func TestSimulatedNVMeFailures(t *testing.T) {
	device := NewSimulatedNVMe("sim0", "M", "S", "F", 1)
	device.PowerState = 3
	completion, err := device.SubmitAdmin(
		context.Background(),
		adminRequest(t, nvme.GetFeatures(nvme.BroadcastNamespaceID, nvme.FeaturePowerManagement), nil),
	)
	if err != nil || completion.Result() != 3 {
		t.Errorf("expected power state 3, received %d (%v)", completion.Result(), err)
	}
	device.FailStatus[uint8(nvme.AdminGetFeatures)] = nvme.StatusInternalError
	completion, _ = device.SubmitAdmin(
		context.Background(),
		adminRequest(t, nvme.GetFeatures(nvme.BroadcastNamespaceID, nvme.FeaturePowerManagement), nil),
	)
	if completion.Status() != nvme.StatusInternalError {
		t.Errorf("expected forced status, received 0x%x", completion.Status())
	}
	device.TransportFailure = 0x1234
	_, err = device.SubmitAdmin(context.Background(), adminRequest(t, nvme.IdentifyController(), make([]byte, 4096)))
	var transportError *Error
	if !errors.As(err, &transportError) || transportError.Code != 0x1234 {
		t.Errorf("expected transport error 0x1234, received %v", err)
	}
	if len(device.IssuedCommands()) != 3 {
		t.Errorf("expected 3 issued commands, received %d", len(device.IssuedCommands()))
	}
}

func TestSimulatedSCSI(t *testing.T) {
	device := NewSimulatedSCSI("sim1")
	device.Responses[0x12] = SimulatedSCSIResponse{Data: []byte{0x00, 0x00, 0x06, 0x02}, Residual: 1}
	data := make([]byte, 8)
	result, err := device.SubmitSCSI(context.Background(), &SCSIRequest{
		CDB:       []byte{0x12, 0, 0, 0, 8, 0},
		Data:      data,
		Direction: DirectionFromDevice,
		Sense:     make([]byte, 32),
	})
	if err != nil {
		t.Fatalf("submit failed: %s", err)
	}
	if result.Status != 0 || result.Transferred != 3 || data[2] != 0x06 {
		t.Errorf("unexpected result %#v data %#v", result, data)
	}
	result, _ = device.SubmitSCSI(context.Background(), &SCSIRequest{
		CDB:   []byte{0x25, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		Sense: make([]byte, 32),
	})
	if result.Status != 0x02 || result.SenseLength != 18 {
		t.Errorf("expected CHECK CONDITION with 18 bytes of sense, received %#v", result)
	}
	device.Timeout = true
	_, err = device.SubmitSCSI(context.Background(), &SCSIRequest{CDB: []byte{0, 0, 0, 0, 0, 0}, Timeout: time.Second})
	var timeout *ErrTimeout
	if !errors.As(err, &timeout) {
		t.Errorf("expected timeout, received %v", err)
	}
}

func TestTimeoutMilliseconds(t *testing.T) {
	if value := TimeoutMilliseconds(0); value != 0 {
		t.Errorf("expected 0, received %d", value)
	}
	if value := TimeoutMilliseconds(60 * time.Second); value != 60000 {
		t.Errorf("expected 60000, received %d", value)
	}
	if value := TimeoutMilliseconds(time.Duration(1) << 62); value != ^uint32(0) {
		t.Errorf("expected saturation, received %d", value)
	}
}
