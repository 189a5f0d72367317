// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sgpassthru/pkg/device"
	"sgpassthru/pkg/logger"
	"strings"
	"sync"
)

const DefaultSocketPath = "/tmp/sgpassthru.sock"

type DaemonApiServer struct {
	handler       *DaemonApiHandler
	socketAddress string
	lock          sync.Mutex
	listener      net.Listener
	closing       bool
}

func NewApiServer(registry *device.Registry, socketAddress string) *DaemonApiServer {
	if socketAddress == "" {
		socketAddress = DefaultSocketPath
	}
	return &DaemonApiServer{
		handler:       NewApiHandler(registry),
		socketAddress: socketAddress,
	}
}

func (server *DaemonApiServer) SocketAddress() string {
	return server.socketAddress
}

func (server *DaemonApiServer) HandleConnection(connection net.Conn) {
	log := logger.GetLogger()
	defer func() {
		err := connection.Close()
		if err != nil {
			log.Warn(err)
		}
	}()
	reader := bufio.NewReader(connection)
	delimiter := byte('\n')
	requestBytes, err := reader.ReadBytes(delimiter)
	if err != nil {
		log.Warn(err)
		return
	}
	request, err := ParseRequest(requestBytes[:len(requestBytes)-1])
	if err != nil {
		log.Warn(err)
		server.sendResponse(connection, ErrorResponse(err), delimiter)
		return
	}
	log.Debugf("api request %s", request.Type)
	response := server.handler.HandleRequest(context.Background(), request)
	server.sendResponse(connection, response, delimiter)
}

func (server *DaemonApiServer) sendResponse(connection net.Conn, response Response, delimiter byte) {
	log := logger.GetLogger()
	response.Error = strings.Replace(response.Error, "\n", `\n`, -1)
	result, err := json.Marshal(response)
	if err != nil {
		log.Error(err)
		return
	}
	_, err = connection.Write(result)
	if err != nil {
		log.Warn(err)
		return
	}
	_, err = connection.Write([]byte{delimiter})
	if err != nil {
		log.Warn(err)
		return
	}
}

// Listen removes a stale socket and binds a new one.
func (server *DaemonApiServer) Listen() error {
	if err := os.RemoveAll(server.socketAddress); err != nil {
		return err
	}
	listener, err := net.Listen("unix", server.socketAddress)
	if err != nil {
		return err
	}
	server.lock.Lock()
	server.listener = listener
	server.lock.Unlock()
	return nil
}

// Serve accepts connections until Shutdown.
func (server *DaemonApiServer) Serve() error {
	server.lock.Lock()
	listener := server.listener
	server.lock.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}
	log := logger.GetLogger()
	log.Infof("serving on %s", server.socketAddress)
	for {
		connection, err := listener.Accept()
		if err != nil {
			server.lock.Lock()
			closing := server.closing
			server.lock.Unlock()
			if closing {
				return nil
			}
			return err
		}
		go server.HandleConnection(connection)
	}
}

func (server *DaemonApiServer) Run() error {
	if err := server.Listen(); err != nil {
		return err
	}
	return server.Serve()
}

// Shutdown stops accepting connections and closes every open session.
func (server *DaemonApiServer) Shutdown() error {
	server.lock.Lock()
	server.closing = true
	listener := server.listener
	server.lock.Unlock()
	var result error
	if listener != nil {
		result = listener.Close()
	}
	if err := server.handler.registry.CloseAll(); err != nil && result == nil {
		result = err
	}
	return result
}
