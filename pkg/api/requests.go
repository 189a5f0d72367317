// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import (
	"encoding/json"
	"sgpassthru/pkg/device"
)

const (
	TypeEmptyResponse = "EMPTY"
	TypeOpen          = "OPEN"
	TypeClose         = "CLOSE"
	TypeCheck         = "CHECK"
	TypeExecute       = "EXECUTE"
	TypeList          = "LIST"
)

type Request struct {
	Type    string          `json:"type"`
	Command json.RawMessage `json:"command"`
}

type OpenRequest struct {
	Device   string `json:"device"`
	ReadOnly bool   `json:"read_only"`
	// "direct" or "indirect", direct when empty
	Strategy       string `json:"strategy"`
	ReportLowPower bool   `json:"report_low_power"`
	NamespaceID    uint32 `json:"namespace_id"`
	Verbose        int    `json:"verbose"`
}

type CloseRequest struct {
	Handle device.Handle `json:"handle"`
}

type CheckRequest struct {
	Handle device.Handle `json:"handle"`
}

// ExecuteRequest carries one CDB or one 64 byte NVMe admin command. At
// most one of DataOut and DataInLength is used, DataOut wins.
type ExecuteRequest struct {
	Handle         device.Handle `json:"handle"`
	Command        []byte        `json:"command"`
	DataOut        []byte        `json:"data_out"`
	DataInLength   int           `json:"data_in_length"`
	SenseLength    int           `json:"sense_length"`
	TimeoutSeconds int           `json:"timeout_seconds"`
}

func ParseRequest(data []byte) (*Request, error) {
	request := &Request{}
	err := json.Unmarshal(data, request)
	if err != nil {
		return nil, err
	}
	return request, nil
}
