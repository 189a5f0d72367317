// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package device

import (
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/transport"
	"strconv"
	"strings"
)

type NameKind int

const (
	KindPath NameKind = iota
	// SCSI<adapter>:<bus>,<target>[,<lun>]
	KindAdapter
	// PD<drive>
	KindPhysicalDrive
	// sim:<nvme|scsi>[:key=value,...]
	KindSimulated
)

const (
	devicePrefix    = `\\.\`
	adapterPrefix   = "SCSI"
	drivePrefix     = "PD"
	simulatedPrefix = "sim:"
)

type Name struct {
	Raw     string
	Kind    NameKind
	Adapter int
	Address transport.Address
	Drive   int
	Path    string
	// simulated device model, "nvme" or "scsi"
	Simulated  string
	Parameters map[string]string
}

func (name Name) String() string {
	return name.Raw
}

type ErrInvalidName struct {
	name      string
	reason    string
	traceInfo string
}

func (err ErrInvalidName) Error() string {
	return fmt.Sprintf("invalid device name '%s': %s", err.name, err.reason)
}

func (err ErrInvalidName) TraceInfo() string {
	return err.traceInfo
}

func newErrInvalidName(name string, reason string) error {
	return &ErrInvalidName{name: name, reason: reason, traceInfo: common.GetTraceInfo()}
}

// ParseName recognises adapter addresses, physical drive numbers and
// simulated devices; anything else is taken as a path of a device node.
func ParseName(raw string) (Name, error) {
	name := Name{Raw: raw, Kind: KindPath, Path: raw}
	if raw == "" {
		return name, newErrInvalidName(raw, "empty")
	}
	if strings.HasPrefix(raw, simulatedPrefix) {
		return parseSimulatedName(name)
	}
	trimmed := strings.TrimPrefix(raw, devicePrefix)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, adapterPrefix) && strings.Contains(upper, ":"):
		return parseAdapterName(name, trimmed[len(adapterPrefix):])
	case strings.HasPrefix(upper, drivePrefix) && isDecimal(trimmed[len(drivePrefix):]):
		drive, _ := strconv.Atoi(trimmed[len(drivePrefix):])
		name.Kind = KindPhysicalDrive
		name.Drive = drive
		name.Path = ""
		return name, nil
	}
	return name, nil
}

func isDecimal(value string) bool {
	if value == "" {
		return false
	}
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}

func parseAdapterName(name Name, rest string) (Name, error) {
	adapter, address, _ := strings.Cut(rest, ":")
	if !isDecimal(adapter) {
		return name, newErrInvalidName(name.Raw, "adapter number expected after SCSI")
	}
	fields := strings.Split(address, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return name, newErrInvalidName(name.Raw, "expected <bus>,<target>[,<lun>]")
	}
	values := make([]uint8, 3)
	for index, field := range fields {
		value, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			return name, newErrInvalidName(name.Raw, fmt.Sprintf("bad address field '%s'", field))
		}
		values[index] = uint8(value)
	}
	name.Kind = KindAdapter
	name.Adapter, _ = strconv.Atoi(adapter)
	name.Address = transport.Address{Bus: values[0], Target: values[1], Lun: values[2]}
	name.Path = ""
	return name, nil
}

func parseSimulatedName(name Name) (Name, error) {
	rest := strings.TrimPrefix(name.Raw, simulatedPrefix)
	model, parameters, _ := strings.Cut(rest, ":")
	if model != "nvme" && model != "scsi" {
		return name, newErrInvalidName(name.Raw, "simulated device is either nvme or scsi")
	}
	name.Kind = KindSimulated
	name.Simulated = model
	name.Path = ""
	name.Parameters = map[string]string{}
	if parameters == "" {
		return name, nil
	}
	for _, parameter := range strings.Split(parameters, ",") {
		key, value, ok := strings.Cut(parameter, "=")
		if !ok || key == "" {
			return name, newErrInvalidName(name.Raw, fmt.Sprintf("bad parameter '%s'", parameter))
		}
		name.Parameters[key] = value
	}
	return name, nil
}
