// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sgpassthru/pkg/device"
	"strings"
)

type ErrApiRequestFailed struct {
	errorMessage string
}

func (apiErr ErrApiRequestFailed) Error() string {
	return strings.Replace(
		apiErr.errorMessage, `\n`, "\n", -1)
}

type ErrUnxpectedResponseType struct {
	responseType string
}

func (err ErrUnxpectedResponseType) Error() string {
	return fmt.Sprintf("Unknown response type %s", err.responseType)
}

func unmarshal[T any](response *Response) (*T, error) {
	result := new(T)
	err := json.Unmarshal(response.Result, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type ClientRequester struct {
	socketPath string
}

func NewApiRequester(socketPath string) ClientRequester {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return ClientRequester{
		socketPath: socketPath,
	}
}

func (api ClientRequester) performUnixSocketRequest(data []byte) ([]byte, error) {
	connection, err := net.Dial("unix", api.socketPath)
	if err != nil {
		return nil, err
	}
	defer connection.Close()
	_, err = connection.Write(data)
	if err != nil {
		return nil, err
	}
	_, err = connection.Write([]byte("\n"))
	if err != nil {
		return nil, err
	}
	reader := bufio.NewReader(connection)
	delimiter := byte('\n')
	responseBytes, err := reader.ReadBytes(delimiter)
	return responseBytes, err
}

func (api ClientRequester) request(request Request) (*Response, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	responseBytes, err := api.performUnixSocketRequest(data)
	if err != nil {
		return nil, err
	}
	response := &Response{}
	err = json.Unmarshal(responseBytes, response)
	if err != nil {
		return nil, err
	}
	if response.Error != "" {
		return nil, &ErrApiRequestFailed{errorMessage: response.Error}
	}
	return response, nil
}

func specificRequest[ReqType, RespType any](
	api ClientRequester,
	command ReqType,
	typeName string,
) (*RespType, error) {
	jsonCommand, err := json.Marshal(command)
	if err != nil {
		return nil, err
	}
	request := Request{Type: typeName, Command: jsonCommand}
	response, err := api.request(request)
	if err != nil {
		return nil, err
	}
	if response.Type != typeName {
		return nil, &ErrUnxpectedResponseType{responseType: response.Type}
	}
	return unmarshal[RespType](response)
}

func emptyResponseRequest[ReqType any](
	api ClientRequester,
	command ReqType,
	typeName string,
) error {
	jsonCommand, err := json.Marshal(command)
	if err != nil {
		return err
	}
	request := Request{Type: typeName, Command: jsonCommand}
	response, err := api.request(request)
	if err != nil {
		return err
	}
	if response.Type != TypeEmptyResponse {
		return &ErrUnxpectedResponseType{responseType: response.Type}
	}
	return nil
}

func (api ClientRequester) PerformOpen(request OpenRequest) (*OpenResponse, error) {
	return specificRequest[OpenRequest, OpenResponse](api, request, TypeOpen)
}

func (api ClientRequester) PerformClose(handle device.Handle) error {
	return emptyResponseRequest[CloseRequest](
		api,
		CloseRequest{Handle: handle},
		TypeClose,
	)
}

func (api ClientRequester) PerformCheck(handle device.Handle) (*CheckResponse, error) {
	return specificRequest[CheckRequest, CheckResponse](
		api,
		CheckRequest{Handle: handle},
		TypeCheck,
	)
}

func (api ClientRequester) PerformExecute(request ExecuteRequest) (*ExecuteResponse, error) {
	return specificRequest[ExecuteRequest, ExecuteResponse](api, request, TypeExecute)
}

func (api ClientRequester) PerformList() (*ListResponse, error) {
	request := Request{Type: TypeList, Command: json.RawMessage{'{', '}'}}
	response, err := api.request(request)
	if err != nil {
		return nil, err
	}
	if response.Type != TypeList {
		return nil, &ErrUnxpectedResponseType{responseType: response.Type}
	}
	return unmarshal[ListResponse](response)
}
