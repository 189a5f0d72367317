// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
// Package nvme
// NVMe admin command and completion layouts
package nvme

import (
	"bytes"

	"github.com/HewlettPackard/structex"
)

const (
	CommandLength    = 64
	CompletionLength = 16
	// all namespaces of the controller
	BroadcastNamespaceID = uint32(0xffffffff)
)

type AdminOpcode uint8

const (
	AdminGetLogPage     AdminOpcode = 0x02
	AdminIdentify       AdminOpcode = 0x06
	AdminGetFeatures    AdminOpcode = 0x0a
	AdminDeviceSelfTest AdminOpcode = 0x14
	AdminMISend         AdminOpcode = 0x1d
	AdminMIReceive      AdminOpcode = 0x1e
)

const (
	IdentifyNamespaceCNS  = uint32(0x00)
	IdentifyControllerCNS = uint32(0x01)
	IdentifyDataLength    = 4096
)

const FeaturePowerManagement = uint32(0x02)

/*
 * Device self-test codes (CDW10)
 *
 * 0x1 - short self-test
 * 0x2 - extended self-test
 * 0xf - abort self-test
 */
const (
	SelfTestShort    = uint32(0x1)
	SelfTestExtended = uint32(0x2)
	SelfTestAbort    = uint32(0xf)
)

const (
	// NVMe-MI tunnel: message type 4 (NVMe-MI), command slot 8 in CDW10
	miTunnelCdw10 = uint32(0x0804)
	miSESReceive  = uint32(0x08)
	miSESSend     = uint32(0x09)
	// fixed transfer length of the MI tunnel commands
	MITransferLength = uint32(0x1000)
)

// Command is the 64 byte submission queue entry, little endian.
type Command struct {
	Opcode         uint8
	Flags          uint8
	CommandID      uint16
	NamespaceID    uint32
	Cdw2           uint32
	Cdw3           uint32
	Metadata       uint64
	Address        uint64
	MetadataLength uint32
	DataLength     uint32
	Cdw10          uint32
	Cdw11          uint32
	Cdw12          uint32
	Cdw13          uint32
	Cdw14          uint32
	Cdw15          uint32
}

func (command *Command) Bytes() ([]byte, error) {
	buffer := bytes.NewBuffer(make([]byte, 0, CommandLength))
	if err := structex.Encode(buffer, command); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DecodeCommand reads a command from its 64 byte wire form.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) != CommandLength {
		return nil, newErrInvalidLength("command", len(data), CommandLength)
	}
	command := &Command{}
	if err := structex.Decode(bytes.NewReader(data), command); err != nil {
		return nil, err
	}
	return command, nil
}

func (command *Command) IsDataIn() bool {
	// bits 1:0 of the opcode give the data direction, 10b is controller to host
	return command.Opcode&0x03 == 0x02
}

func (command *Command) IsDataOut() bool {
	return command.Opcode&0x01 == 0x01
}

func IdentifyController() *Command {
	return &Command{
		Opcode:     uint8(AdminIdentify),
		DataLength: IdentifyDataLength,
		Cdw10:      IdentifyControllerCNS,
	}
}

func IdentifyNamespace(namespaceID uint32) *Command {
	return &Command{
		Opcode:      uint8(AdminIdentify),
		NamespaceID: namespaceID,
		DataLength:  IdentifyDataLength,
		Cdw10:       IdentifyNamespaceCNS,
	}
}

// GetFeatures asks for the current value (SEL=0) of feature.
func GetFeatures(namespaceID uint32, feature uint32) *Command {
	return &Command{
		Opcode:      uint8(AdminGetFeatures),
		NamespaceID: namespaceID,
		Cdw10:       feature & 0xff,
	}
}

func DeviceSelfTest(namespaceID uint32, code uint32) *Command {
	return &Command{
		Opcode:      uint8(AdminDeviceSelfTest),
		NamespaceID: namespaceID,
		Cdw10:       code & 0x0f,
	}
}

// MISend tunnels length bytes of a SCSI enclosure services page to the
// management endpoint.
func MISend(length uint32) *Command {
	return &Command{
		Opcode:     uint8(AdminMISend),
		DataLength: MITransferLength,
		Cdw10:      miTunnelCdw10,
		Cdw11:      miSESSend,
		Cdw13:      length,
	}
}

// MIReceive fetches up to length bytes of enclosure services page.
func MIReceive(page byte, length uint32) *Command {
	return &Command{
		Opcode:     uint8(AdminMIReceive),
		DataLength: MITransferLength,
		Cdw10:      miTunnelCdw10,
		Cdw11:      miSESReceive,
		Cdw12:      uint32(page),
		Cdw13:      length,
	}
}
