// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package main

import (
	"fmt"
	"sgpassthru/pkg/api"
	"sgpassthru/pkg/cli"
	"sgpassthru/pkg/device"
)

// Client runs the commands served by a "serve" daemon.
type Client struct{}

const (
	CommandOpen   = "open"
	CommandClose  = "close"
	CommandType   = "type"
	CommandSubmit = "submit"
	CommandList   = "list"
)

func addSocketParameter(command *cli.Command) *cli.Command {
	return command.AddParameter(
		"-S",
		"socket",
		"Unix socket of the daemon, "+api.DefaultSocketPath+" when not given.",
		"path",
		false,
	)
}

func addHandleParameter(command *cli.Command) *cli.Command {
	return command.AddParameter(
		"-H",
		"handle",
		"Handle the daemon returned on open, <index>.<generation>.",
		"handle",
		true,
	)
}

func addRemoteCli(commands *cli.CommandList) {
	addSocketParameter(addOpenParameters(commands.AddCommand(
		CommandOpen,
		"Ask the daemon to open a device and keep it open.",
	)))
	addSocketParameter(addHandleParameter(commands.AddCommand(
		CommandClose,
		"Close a device the daemon keeps open.",
	)))
	addSocketParameter(addHandleParameter(commands.AddCommand(
		CommandType,
		"Tell whether a device the daemon keeps open is SCSI generic or NVMe.",
	)))
	addSocketParameter(addTransferParameters(addHandleParameter(commands.AddCommand(
		CommandSubmit,
		"Execute one command on a device the daemon keeps open.",
	))))
	addSocketParameter(commands.AddCommand(CommandList, "List devices the daemon keeps open."))
}

func requester(command *cli.Command) api.ClientRequester {
	socketPath, err := command.GetParameter("socket")
	if err != nil {
		socketPath = ""
	}
	return api.NewApiRequester(socketPath)
}

func handleParameter(command *cli.Command) (device.Handle, error) {
	value, err := command.GetParameter("handle")
	if err != nil {
		return device.Handle{}, err
	}
	return device.ParseHandle(value)
}

func (client Client) PerformOpen(command *cli.Command) error {
	request, err := openRequest(command)
	if err != nil {
		return err
	}
	response, err := requester(command).PerformOpen(request)
	if err != nil {
		return err
	}
	fmt.Println(response.ToCmdlineOutput())
	return nil
}

func (client Client) PerformClose(command *cli.Command) error {
	handle, err := handleParameter(command)
	if err != nil {
		return err
	}
	return requester(command).PerformClose(handle)
}

func (client Client) PerformType(command *cli.Command) error {
	handle, err := handleParameter(command)
	if err != nil {
		return err
	}
	response, err := requester(command).PerformCheck(handle)
	if err != nil {
		return err
	}
	fmt.Println(response.ToCmdlineOutput())
	return nil
}

func (client Client) PerformSubmit(command *cli.Command) error {
	handle, err := handleParameter(command)
	if err != nil {
		return err
	}
	request, err := executeRequest(command, handle)
	if err != nil {
		return err
	}
	response, err := requester(command).PerformExecute(request)
	if err != nil {
		return err
	}
	fmt.Println(response.ToCmdlineOutput())
	return nil
}

func (client Client) PerformList(command *cli.Command) error {
	response, err := requester(command).PerformList()
	if err != nil {
		return err
	}
	fmt.Println(response.ToCmdlineOutput())
	return nil
}

func (client Client) PerformCommand(commandName string, command *cli.Command) error {
	switch commandName {
	case CommandOpen:
		return client.PerformOpen(command)
	case CommandClose:
		return client.PerformClose(command)
	case CommandType:
		return client.PerformType(command)
	case CommandSubmit:
		return client.PerformSubmit(command)
	case CommandList:
		return client.PerformList(command)
	default:
		return fmt.Errorf("unknown command name %s", commandName)
	}
}
