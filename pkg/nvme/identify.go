// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package nvme

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/HewlettPackard/structex"
)

// IdentifyControllerData holds the leading part of the Identify Controller
// data structure, up to and including the number of namespaces.
type IdentifyControllerData struct {
	VendorID                uint16
	SubsystemVendorID       uint16
	SerialNumber            [20]byte
	ModelNumber             [40]byte
	FirmwareRevision        [8]byte
	RecommendedArbitration  uint8
	IEEE                    [3]byte
	MultiPathCapabilities   uint8
	MaximumDataTransferSize uint8
	ControllerID            uint16
	Version                 uint32
	Reserved84              [432]byte
	NumberOfNamespaces      uint32
}

const (
	controllerNumberOfNamespacesOffset = 516
	namespaceNGUIDOffset               = 104
)

func DecodeIdentifyController(data []byte) (*IdentifyControllerData, error) {
	if len(data) < controllerNumberOfNamespacesOffset+4 {
		return nil, newErrInvalidLength("identify controller data", len(data), IdentifyDataLength)
	}
	controller := &IdentifyControllerData{}
	if err := structex.Decode(bytes.NewReader(data), controller); err != nil {
		return nil, err
	}
	return controller, nil
}

// EncodeIdentifyController lays controller out in a 4096 byte Identify
// payload, the rest of the structure zeroed.
func EncodeIdentifyController(controller *IdentifyControllerData) ([]byte, error) {
	buffer := bytes.NewBuffer(make([]byte, 0, IdentifyDataLength))
	if err := structex.Encode(buffer, controller); err != nil {
		return nil, err
	}
	data := make([]byte, IdentifyDataLength)
	copy(data, buffer.Bytes())
	return data, nil
}

func (controller *IdentifyControllerData) Serial() string {
	return strings.TrimRight(string(controller.SerialNumber[:]), " \x00")
}

func (controller *IdentifyControllerData) Model() string {
	return strings.TrimRight(string(controller.ModelNumber[:]), " \x00")
}

func (controller *IdentifyControllerData) Firmware() string {
	return strings.TrimRight(string(controller.FirmwareRevision[:]), " \x00")
}

func (controller *IdentifyControllerData) String() string {
	return fmt.Sprintf(
		"model '%s' serial '%s' firmware '%s' namespaces %d",
		controller.Model(),
		controller.Serial(),
		controller.Firmware(),
		controller.NumberOfNamespaces,
	)
}

// SetIdentity fills the space padded ASCII fields.
func (controller *IdentifyControllerData) SetIdentity(model, serial, firmware string) {
	fill := func(field []byte, value string) {
		for index := range field {
			field[index] = ' '
		}
		copy(field, value)
	}
	fill(controller.ModelNumber[:], model)
	fill(controller.SerialNumber[:], serial)
	fill(controller.FirmwareRevision[:], firmware)
}

// IdentifyNamespaceData is the leading part of Identify Namespace, up to
// the namespace identifiers SCSI can report.
type IdentifyNamespaceData struct {
	Size                    uint64
	Capacity                uint64
	Utilization             uint64
	Features                uint8
	NumberOfLBAFormats      uint8
	FormattedLBASize        uint8
	MetadataCapabilities    uint8
	DataProtectionCapable   uint8
	DataProtectionSettings  uint8
	MultiPathCapabilities   uint8
	ReservationCapabilities uint8
	Reserved32              [72]byte
	NGUID                   [16]byte
	EUI64                   [8]byte
}

func DecodeIdentifyNamespace(data []byte) (*IdentifyNamespaceData, error) {
	if len(data) < namespaceNGUIDOffset+24 {
		return nil, newErrInvalidLength("identify namespace data", len(data), IdentifyDataLength)
	}
	namespace := &IdentifyNamespaceData{}
	if err := structex.Decode(bytes.NewReader(data), namespace); err != nil {
		return nil, err
	}
	return namespace, nil
}

func EncodeIdentifyNamespace(namespace *IdentifyNamespaceData) ([]byte, error) {
	buffer := bytes.NewBuffer(make([]byte, 0, IdentifyDataLength))
	if err := structex.Encode(buffer, namespace); err != nil {
		return nil, err
	}
	data := make([]byte, IdentifyDataLength)
	copy(data, buffer.Bytes())
	return data, nil
}
