// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/device"
	"sgpassthru/pkg/passthru"
	"sync"
	"time"
)

type DaemonApiHandler struct {
	registry *device.Registry
	apiLock  sync.Mutex
}

func NewApiHandler(registry *device.Registry) *DaemonApiHandler {
	return &DaemonApiHandler{registry: registry}
}

func parseStrategy(value string) (device.Strategy, error) {
	switch value {
	case "", "direct":
		return device.StrategyDirect, nil
	case "indirect":
		return device.StrategyIndirect, nil
	default:
		return device.StrategyDirect, &ErrUnknownStrategy{strategy: value}
	}
}

func (handler *DaemonApiHandler) Open(request OpenRequest) (*OpenResponse, error) {
	handler.apiLock.Lock()
	defer handler.apiLock.Unlock()
	strategy, err := parseStrategy(request.Strategy)
	if err != nil {
		return nil, err
	}
	options := device.Options{
		ReadOnly:    request.ReadOnly,
		Strategy:    strategy,
		NamespaceID: request.NamespaceID,
		Verbose:     request.Verbose,
	}
	if request.ReportLowPower {
		options.LowPower = device.LowPowerReport
	}
	handle, session, err := handler.registry.Open(request.Device, options)
	if err != nil {
		return nil, err
	}
	return &OpenResponse{
		Handle:    handle,
		SessionID: session.ID().String(),
	}, nil
}

func (handler *DaemonApiHandler) Close(request CloseRequest) error {
	handler.apiLock.Lock()
	defer handler.apiLock.Unlock()
	return handler.registry.Close(request.Handle)
}

func (handler *DaemonApiHandler) Check(request CheckRequest) (*CheckResponse, error) {
	handler.apiLock.Lock()
	defer handler.apiLock.Unlock()
	handleType, err := handler.registry.CheckHandle(request.Handle)
	if err != nil {
		return nil, err
	}
	return &CheckResponse{HandleType: handleType}, nil
}

// Execute runs one command on an open session. Outcomes of the command
// itself, bad parameters included, come back in the response rather
// than as an error.
func (handler *DaemonApiHandler) Execute(ctx context.Context, request ExecuteRequest) (*ExecuteResponse, error) {
	handler.apiLock.Lock()
	defer handler.apiLock.Unlock()
	if request.DataInLength < 0 || request.SenseLength < 0 || request.TimeoutSeconds < 0 {
		return nil, &ErrInconsistentRequestParameters{reason: "negative length or timeout"}
	}
	if request.SenseLength > passthru.MaxSenseLength {
		return nil, &ErrInconsistentRequestParameters{
			reason: fmt.Sprintf("sense length above %d", passthru.MaxSenseLength),
		}
	}
	if request.DataInLength > passthru.MaxIndirectTransferLength || len(request.DataOut) > passthru.MaxIndirectTransferLength {
		return nil, &ErrInconsistentRequestParameters{
			reason: fmt.Sprintf("data transfer above %d bytes", passthru.MaxIndirectTransferLength),
		}
	}
	session, err := handler.registry.Lookup(request.Handle)
	if err != nil {
		return nil, err
	}
	command := passthru.NewCommandWithSession(session)
	if err := command.SetCommand(request.Command); err != nil {
		return nil, err
	}
	sense := make([]byte, request.SenseLength)
	if err := command.SetSenseBuffer(sense); err != nil {
		return nil, err
	}
	alignment := session.Transport().Alignment()
	var data []byte
	dataIn := false
	switch {
	case len(request.DataOut) > 0:
		data = common.AlignedBuffer(len(request.DataOut), alignment)
		copy(data, request.DataOut)
		err = command.SetDataOut(data)
	case request.DataInLength > 0:
		data = common.AlignedBuffer(request.DataInLength, alignment)
		dataIn = true
		err = command.SetDataIn(data)
	}
	if err != nil {
		return nil, err
	}
	result, executeErr := command.Execute(ctx, nil, time.Duration(request.TimeoutSeconds)*time.Second)
	response := &ExecuteResponse{
		Result:         int(result),
		ResultName:     result.String(),
		Category:       command.ResultCategory().String(),
		Status:         command.Status(),
		Sense:          sense[:min(command.SenseLength(), len(sense))],
		Residual:       command.Residual(),
		NVMe:           command.IsNVMe(),
		NVMeResult:     command.NVMeResult(),
		NVMeStatus:     command.NVMeStatus(),
		OSError:        int(command.OSError()),
		TransportError: command.TransportError(),
	}
	if executeErr != nil {
		response.Error = executeErr.Error()
	}
	if dataIn && result == passthru.ExecOK {
		response.DataIn = data[:len(data)-min(command.Residual(), len(data))]
	}
	return response, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (handler *DaemonApiHandler) List() ListResponse {
	handler.apiLock.Lock()
	defer handler.apiLock.Unlock()
	entries := handler.registry.List()
	response := make(ListResponse, 0, len(entries))
	for _, entry := range entries {
		session := entry.Session
		representation := SessionRepresentation{
			Handle:    entry.Handle,
			SessionID: session.ID().String(),
			Device:    session.Name().String(),
			Class:     "unknown",
			Strategy:  session.Strategy().String(),
			ReadOnly:  session.ReadOnly(),
		}
		if classification, err := session.Classify(); err == nil {
			representation.Class = classification.Class.String()
		}
		if session.IsNVMe() {
			representation.NamespaceID = session.NamespaceID()
		}
		response = append(response, representation)
	}
	return response
}

func decodeCommand[T any](request *Request) (*T, error) {
	command := new(T)
	if err := json.Unmarshal(request.Command, command); err != nil {
		return nil, err
	}
	return command, nil
}

func resultResponse(response Response, result any) Response {
	var err error
	response.Result, err = json.Marshal(result)
	if err != nil {
		return ErrorResponse(err)
	}
	return response
}

func (handler *DaemonApiHandler) HandleRequest(ctx context.Context, request *Request) Response {
	response := Response{Type: request.Type}
	switch request.Type {
	case TypeOpen:
		command, err := decodeCommand[OpenRequest](request)
		if err != nil {
			return ErrorResponse(err)
		}
		result, err := handler.Open(*command)
		if err != nil {
			return ErrorResponse(err)
		}
		return resultResponse(response, result)
	case TypeClose:
		command, err := decodeCommand[CloseRequest](request)
		if err != nil {
			return ErrorResponse(err)
		}
		if err = handler.Close(*command); err != nil {
			return ErrorResponse(err)
		}
		return emptyResponse()
	case TypeCheck:
		command, err := decodeCommand[CheckRequest](request)
		if err != nil {
			return ErrorResponse(err)
		}
		result, err := handler.Check(*command)
		if err != nil {
			return ErrorResponse(err)
		}
		return resultResponse(response, result)
	case TypeExecute:
		command, err := decodeCommand[ExecuteRequest](request)
		if err != nil {
			return ErrorResponse(err)
		}
		result, err := handler.Execute(ctx, *command)
		if err != nil {
			return ErrorResponse(err)
		}
		return resultResponse(response, result)
	case TypeList:
		return resultResponse(response, handler.List())
	default:
		return ErrorResponse(fmt.Errorf("unknown request type %s", request.Type))
	}
}

func emptyResponse() Response {
	return Response{Error: "", Result: json.RawMessage{'{', '}'}, Type: TypeEmptyResponse}
}

func ErrorResponse(err error) Response {
	return Response{Error: err.Error(), Result: json.RawMessage{'{', '}'}, Type: TypeEmptyResponse}
}
