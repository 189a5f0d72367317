// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package device

import (
	"fmt"
	"sgpassthru/pkg/transport"
	"strconv"
)

// Opener turns a parsed device name into a transport.
type Opener interface {
	Open(name Name, readOnly bool) (transport.Transport, error)
}

// SystemOpener opens OS device nodes and builds simulated devices.
type SystemOpener struct{}

// DevicePath is the device node behind name. Adapter addresses map onto
// sg nodes, physical drives onto the first namespace of an NVMe
// controller.
func DevicePath(name Name) string {
	switch name.Kind {
	case KindAdapter:
		return fmt.Sprintf("/dev/sg%d", name.Adapter)
	case KindPhysicalDrive:
		return fmt.Sprintf("/dev/nvme%dn1", name.Drive)
	default:
		return name.Path
	}
}

func (opener SystemOpener) Open(name Name, readOnly bool) (transport.Transport, error) {
	if name.Kind == KindSimulated {
		return NewSimulatedDevice(name)
	}
	return transport.OpenLinuxDevice(DevicePath(name), readOnly)
}

func uintParameter(name Name, key string, defaultValue uint64, bitSize int) (uint64, error) {
	value, ok := name.Parameters[key]
	if !ok {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 0, bitSize)
	if err != nil {
		return 0, newErrInvalidName(name.Raw, fmt.Sprintf("bad value of %s: %s", key, err))
	}
	return result, nil
}

func stringParameter(name Name, key string, defaultValue string) string {
	if value, ok := name.Parameters[key]; ok {
		return value
	}
	return defaultValue
}

// NewSimulatedDevice builds the in-memory device a sim: name describes.
// NVMe parameters: namespaces, nsid, model, serial, firmware, power and
// classify=fail.
func NewSimulatedDevice(name Name) (transport.Transport, error) {
	if name.Simulated == "scsi" {
		device := transport.NewSimulatedSCSI(name.Raw)
		alignment, err := uintParameter(name, "align", 1, 16)
		if err != nil {
			return nil, err
		}
		device.BufferAlignment = int(alignment)
		return device, nil
	}
	namespaces, err := uintParameter(name, "namespaces", 1, 32)
	if err != nil {
		return nil, err
	}
	namespaceID, err := uintParameter(name, "nsid", 1, 32)
	if err != nil {
		return nil, err
	}
	power, err := uintParameter(name, "power", 0, 5)
	if err != nil {
		return nil, err
	}
	device := transport.NewSimulatedNVMe(
		name.Raw,
		stringParameter(name, "model", "SIMULATED NVME"),
		stringParameter(name, "serial", "SIM0000000001"),
		stringParameter(name, "firmware", "1.0"),
		uint32(namespaces),
	)
	device.NamespaceID = uint32(namespaceID)
	device.PowerState = uint32(power)
	device.ClassifyFailure = stringParameter(name, "classify", "") == "fail"
	return device, nil
}
