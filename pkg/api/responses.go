// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sgpassthru/pkg/device"
	"strings"
)

type Response struct {
	Type   string
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

type OpenResponse struct {
	Handle    device.Handle `json:"handle"`
	SessionID string        `json:"session_id"`
}

func (response OpenResponse) ToCmdlineOutput() string {
	return fmt.Sprintf("Opened device as handle %s, session %s", response.Handle, response.SessionID)
}

type CheckResponse struct {
	HandleType int `json:"handle_type"`
}

func (response CheckResponse) ToCmdlineOutput() string {
	switch response.HandleType {
	case device.HandleTypeNVMe:
		return "NVMe device"
	case device.HandleTypeSCSIGeneric:
		return "SCSI generic device"
	default:
		return fmt.Sprintf("unknown device type %d", response.HandleType)
	}
}

// ExecuteResponse mirrors the result accessors of a pass-through
// command. Error holds the failure that came with Result, if any.
type ExecuteResponse struct {
	Result         int    `json:"result"`
	ResultName     string `json:"result_name"`
	Error          string `json:"error"`
	Category       string `json:"category"`
	Status         int    `json:"status"`
	Sense          []byte `json:"sense"`
	DataIn         []byte `json:"data_in"`
	Residual       int    `json:"residual"`
	NVMe           bool   `json:"nvme"`
	NVMeResult     uint32 `json:"nvme_result"`
	NVMeStatus     uint16 `json:"nvme_status"`
	OSError        int    `json:"os_error"`
	TransportError uint32 `json:"transport_error"`
}

func (response ExecuteResponse) ToCmdlineOutput() string {
	result := fmt.Sprintf("Result: %d (%s), category: %s\n", response.Result, response.ResultName, response.Category)
	if response.Error != "" {
		result += fmt.Sprintf("  Error: %s\n", response.Error)
	}
	result += fmt.Sprintf("  Status: 0x%x\n", response.Status)
	if response.NVMe {
		result += fmt.Sprintf("  NVMe result: 0x%x, NVMe status: 0x%x\n", response.NVMeResult, response.NVMeStatus)
	}
	if response.TransportError != 0 {
		result += fmt.Sprintf("  Transport error: 0x%x\n", response.TransportError)
	}
	if response.OSError != 0 {
		result += fmt.Sprintf("  OS error: %d\n", response.OSError)
	}
	result += fmt.Sprintf("  Residual: %d\n", response.Residual)
	if len(response.Sense) > 0 {
		result += "  Sense:\n" + indent(hex.Dump(response.Sense))
	}
	if len(response.DataIn) > 0 {
		result += "  Data in:\n" + indent(hex.Dump(response.DataIn))
	}
	return strings.TrimRight(result, "\n")
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for index, line := range lines {
		lines[index] = "    " + line
	}
	return strings.Join(lines, "\n") + "\n"
}

type SessionRepresentation struct {
	Handle    device.Handle `json:"handle"`
	SessionID string        `json:"session_id"`
	Device    string        `json:"device"`
	Class     string        `json:"class"`
	Strategy  string        `json:"strategy"`
	ReadOnly  bool          `json:"read_only"`
	// zero for SCSI devices
	NamespaceID uint32 `json:"namespace_id"`
}

type ListResponse []SessionRepresentation

func (response ListResponse) ToCmdlineOutput() string {
	result := ""
	result += "Open devices: \n"
	for _, session := range response {
		result += fmt.Sprintf("  Handle: %s\n", session.Handle)
		result += fmt.Sprintf("  Device: %s\n", session.Device)
		result += fmt.Sprintf("  Session ID: %s\n", session.SessionID)
		result += fmt.Sprintf("  Class: %s\n", session.Class)
		result += fmt.Sprintf("  Strategy: %s\n", session.Strategy)
		result += fmt.Sprintf("  Read only: %t\n", session.ReadOnly)
		if session.NamespaceID != 0 {
			result += fmt.Sprintf("  Namespace ID: %d\n", session.NamespaceID)
		}
	}
	return result
}
