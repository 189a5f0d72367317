// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package transport

import (
	"context"
	"sgpassthru/pkg/nvme"
	"sync"
)

// SimulatedNVMe is an in-memory NVMe controller answering the admin
// commands the translation layer issues.
type SimulatedNVMe struct {
	lock       sync.Mutex
	name       string
	Controller nvme.IdentifyControllerData
	Namespaces map[uint32]nvme.IdentifyNamespaceData
	// namespace the device node is bound to
	NamespaceID uint32
	PowerState  uint32
	// enclosure services pages returned by MI Receive, by page code
	DiagnosticPages map[byte][]byte
	// last page MI Send delivered
	SentDiagnostic []byte
	SelfTests      []uint32
	// completion status forced per opcode
	FailStatus map[uint8]uint16
	// when nonzero every submission fails with this transport code
	TransportFailure uint32
	Timeout          bool
	ClassifyFailure  bool
	Issued           []nvme.Command
	closed           bool
}

func NewSimulatedNVMe(name string, model, serial, firmware string, namespaceCount uint32) *SimulatedNVMe {
	device := &SimulatedNVMe{
		name:            name,
		Namespaces:      map[uint32]nvme.IdentifyNamespaceData{},
		NamespaceID:     1,
		DiagnosticPages: map[byte][]byte{},
		FailStatus:      map[uint8]uint16{},
	}
	device.Controller.VendorID = 0x1b36
	device.Controller.NumberOfNamespaces = namespaceCount
	device.Controller.SetIdentity(model, serial, firmware)
	for namespaceID := uint32(1); namespaceID <= namespaceCount; namespaceID++ {
		namespace := nvme.IdentifyNamespaceData{Size: 0x100000, Capacity: 0x100000}
		namespace.NGUID[0] = 0x01
		namespace.NGUID[15] = byte(namespaceID)
		device.Namespaces[namespaceID] = namespace
	}
	return device
}

func (device *SimulatedNVMe) Name() string {
	return device.name
}

func (device *SimulatedNVMe) Classify() (Classification, error) {
	if device.ClassifyFailure {
		return Classification{}, NewError("classify", 0x1f)
	}
	return Classification{Class: ClassNVMe, NamespaceID: device.NamespaceID}, nil
}

func (device *SimulatedNVMe) Close() error {
	device.lock.Lock()
	defer device.lock.Unlock()
	device.closed = true
	return nil
}

func (device *SimulatedNVMe) Alignment() int {
	return 1
}

func (device *SimulatedNVMe) SubmitSCSI(ctx context.Context, request *SCSIRequest) (SCSIResult, error) {
	return SCSIResult{}, newErrNotSupported(device.name, "SCSI pass-through")
}

func (device *SimulatedNVMe) SubmitAdmin(ctx context.Context, request *AdminRequest) (nvme.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nvme.Completion{}, err
	}
	command, err := nvme.DecodeCommand(request.Command)
	if err != nil {
		return nvme.Completion{}, err
	}
	device.lock.Lock()
	defer device.lock.Unlock()
	device.Issued = append(device.Issued, *command)
	if device.Timeout {
		return nvme.Completion{}, NewErrTimeout("admin command", request.Timeout)
	}
	if device.TransportFailure != 0 {
		return nvme.Completion{}, NewError("admin command", device.TransportFailure)
	}
	if status, ok := device.FailStatus[command.Opcode]; ok {
		return nvme.CompletionWithStatus(0, status), nil
	}
	switch nvme.AdminOpcode(command.Opcode) {
	case nvme.AdminIdentify:
		return device.identify(command, request.Data)
	case nvme.AdminGetFeatures:
		if command.Cdw10&0xff != nvme.FeaturePowerManagement {
			return nvme.CompletionWithStatus(0, nvme.StatusInvalidField), nil
		}
		return nvme.CompletionWithStatus(device.PowerState, nvme.StatusSuccess), nil
	case nvme.AdminDeviceSelfTest:
		device.SelfTests = append(device.SelfTests, command.Cdw10)
		return nvme.CompletionWithStatus(0, nvme.StatusSuccess), nil
	case nvme.AdminMISend:
		length := int(command.Cdw13)
		if length > len(request.Data) {
			length = len(request.Data)
		}
		device.SentDiagnostic = append([]byte{}, request.Data[:length]...)
		return nvme.CompletionWithStatus(0, nvme.StatusSuccess), nil
	case nvme.AdminMIReceive:
		page, ok := device.DiagnosticPages[byte(command.Cdw12)]
		if !ok {
			return nvme.CompletionWithStatus(0, nvme.StatusInvalidField), nil
		}
		length := int(command.Cdw13)
		if length > len(request.Data) {
			length = len(request.Data)
		}
		copy(request.Data[:length], page)
		return nvme.CompletionWithStatus(0, nvme.StatusSuccess), nil
	default:
		return nvme.CompletionWithStatus(0, nvme.StatusInvalidOpcode), nil
	}
}

func (device *SimulatedNVMe) identify(command *nvme.Command, data []byte) (nvme.Completion, error) {
	var payload []byte
	var err error
	switch command.Cdw10 & 0xff {
	case nvme.IdentifyControllerCNS:
		payload, err = nvme.EncodeIdentifyController(&device.Controller)
	case nvme.IdentifyNamespaceCNS:
		namespace, ok := device.Namespaces[command.NamespaceID]
		if !ok {
			return nvme.CompletionWithStatus(0, nvme.StatusInvalidNamespace), nil
		}
		payload, err = nvme.EncodeIdentifyNamespace(&namespace)
	default:
		return nvme.CompletionWithStatus(0, nvme.StatusInvalidField), nil
	}
	if err != nil {
		return nvme.Completion{}, err
	}
	copy(data, payload)
	return nvme.CompletionWithStatus(0, nvme.StatusSuccess), nil
}

func (device *SimulatedNVMe) IssuedCommands() []nvme.Command {
	device.lock.Lock()
	defer device.lock.Unlock()
	return append([]nvme.Command{}, device.Issued...)
}

// SimulatedSCSIResponse is what a SimulatedSCSI answers to one opcode.
type SimulatedSCSIResponse struct {
	Status byte
	Sense  []byte
	Data   []byte
	// bytes of the transfer reported as not done
	Residual int
}

// SimulatedSCSI is a SCSI logical unit replaying canned responses.
type SimulatedSCSI struct {
	lock             sync.Mutex
	name             string
	Responses        map[byte]SimulatedSCSIResponse
	BufferAlignment  int
	TransportFailure uint32
	Timeout          bool
	Requests         []SCSIRequest
	// last data-out payload received
	Received []byte
}

func NewSimulatedSCSI(name string) *SimulatedSCSI {
	return &SimulatedSCSI{
		name:            name,
		Responses:       map[byte]SimulatedSCSIResponse{},
		BufferAlignment: 1,
	}
}

func (device *SimulatedSCSI) Name() string {
	return device.name
}

func (device *SimulatedSCSI) Classify() (Classification, error) {
	return Classification{Class: ClassSCSI}, nil
}

func (device *SimulatedSCSI) Close() error {
	return nil
}

func (device *SimulatedSCSI) Alignment() int {
	return device.BufferAlignment
}

func (device *SimulatedSCSI) SubmitAdmin(ctx context.Context, request *AdminRequest) (nvme.Completion, error) {
	return nvme.Completion{}, newErrNotSupported(device.name, "NVMe pass-through")
}

func (device *SimulatedSCSI) SubmitSCSI(ctx context.Context, request *SCSIRequest) (SCSIResult, error) {
	if err := ctx.Err(); err != nil {
		return SCSIResult{}, err
	}
	device.lock.Lock()
	defer device.lock.Unlock()
	device.Requests = append(device.Requests, *request)
	if device.Timeout {
		return SCSIResult{}, NewErrTimeout("SCSI command", request.Timeout)
	}
	if device.TransportFailure != 0 {
		return SCSIResult{}, NewError("SCSI command", device.TransportFailure)
	}
	if len(request.CDB) == 0 {
		return SCSIResult{}, NewError("SCSI command", 0x57)
	}
	response, ok := device.Responses[request.CDB[0]]
	if !ok {
		// INVALID COMMAND OPERATION CODE
		response = SimulatedSCSIResponse{
			Status: 0x02,
			Sense:  []byte{0x70, 0x00, 0x05, 0, 0, 0, 0, 0x0a, 0, 0, 0, 0, 0x20, 0x00, 0, 0, 0, 0},
		}
	}
	transferred := 0
	switch request.Direction {
	case DirectionFromDevice:
		transferred = copy(request.Data, response.Data)
	case DirectionToDevice:
		device.Received = append([]byte{}, request.Data...)
		transferred = len(request.Data)
	}
	transferred -= response.Residual
	if transferred < 0 {
		transferred = 0
	}
	return SCSIResult{
		Status:      response.Status,
		SenseLength: copy(request.Sense, response.Sense),
		Transferred: transferred,
	}, nil
}
