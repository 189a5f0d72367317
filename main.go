// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sgpassthru/pkg/api"
	"sgpassthru/pkg/cli"
	"sgpassthru/pkg/device"
	"sgpassthru/pkg/logger"
	"syscall"
)
import _ "net/http/pprof"

const (
	CommandExecute = "execute"
	CommandCheck   = "check"
	CommandServe   = "serve"
)

const deviceNameHelp = "Device name: a device node such as /dev/sg0 or /dev/nvme0n1," +
	" SCSI<adapter>:<bus>,<target>[,<lun>], PD<drive>" +
	" or sim:<nvme|scsi>[:key=value,...]."

type Tool struct {
	commands *cli.CommandList
	client   Client
}

func addVerboseParameter(command *cli.Command) *cli.Command {
	return command.AddParameter(
		"-v",
		"verbose",
		"0 errors only, 1 warnings, 2-3 info, 4 and more debug.",
		"level",
		false,
	)
}

func addOpenParameters(command *cli.Command) *cli.Command {
	return command.AddParameter(
		"-d",
		"device",
		deviceNameHelp,
		"device",
		true,
	).AddFlag(
		"-r",
		"read_only",
		"Open the device read only.",
	).AddFlag(
		"-i",
		"indirect",
		"Stage SCSI data through a buffer owned by the request.",
	).AddFlag(
		"-p",
		"low_power",
		"Fail TEST UNIT READY while an NVMe device is in a non operational power state.",
	).AddParameter(
		"-n",
		"namespace_id",
		"NVMe namespace id used instead of the one the device reports.",
		"nsid",
		false,
	)
}

func addTransferParameters(command *cli.Command) *cli.Command {
	return command.AddParameter(
		"-c",
		"command",
		"SCSI CDB of 1 to 16 bytes or 64 byte NVMe admin command, in hex.",
		"hex",
		true,
	).AddParameter(
		"-o",
		"data_out",
		"Data written to the device, in hex.",
		"hex",
		false,
	).AddParameter(
		"-l",
		"data_in_length",
		"Number of bytes read from the device.",
		"length",
		false,
	).AddParameter(
		"-s",
		"sense_length",
		"Size of the sense buffer.",
		"length",
		false,
	).AddParameter(
		"-t",
		"timeout",
		"Timeout in seconds, 60 when not given.",
		"seconds",
		false,
	)
}

func addExecuteCli(commands *cli.CommandList) {
	command := commands.AddCommand(
		CommandExecute,
		"Open a device, execute one command on it and close it.",
	)
	addVerboseParameter(addTransferParameters(addOpenParameters(command)))
}

func addCheckCli(commands *cli.CommandList) {
	command := commands.AddCommand(
		CommandCheck,
		"Tell whether a device is SCSI generic or NVMe.",
	)
	addVerboseParameter(addOpenParameters(command))
}

func addServeCli(commands *cli.CommandList) {
	command := commands.AddCommand(
		CommandServe,
		"Keep devices open on behalf of clients connecting to a unix socket.",
	).AddParameter(
		"-S",
		"socket",
		"Unix socket path, "+api.DefaultSocketPath+" when not given.",
		"path",
		false,
	).AddParameter(
		"-m",
		"max_open",
		fmt.Sprintf("Devices open at once, %d when not given.", device.MaxOpenSimultaneous),
		"count",
		false,
	).AddParameter(
		"-P",
		"pprof",
		"Address to serve profiling data on, e.g. localhost:6060.",
		"address",
		false,
	)
	addVerboseParameter(command)
}

func NewTool() Tool {
	commands := cli.NewCommandList(
		"sgpassthru",
		"a tool to pass SCSI and NVMe commands through to devices\n",
	)
	addExecuteCli(commands)
	addCheckCli(commands)
	addServeCli(commands)
	addRemoteCli(commands)
	return Tool{
		commands: commands,
		client:   Client{},
	}
}

func configureLogging(command *cli.Command) error {
	verbose, err := command.GetIntParameter("verbose", 0)
	if err != nil {
		return err
	}
	logger.SetLoggingConfig(logger.FromVerbosity(verbose))
	return nil
}

func openRequest(command *cli.Command) (api.OpenRequest, error) {
	name, err := command.GetParameter("device")
	if err != nil {
		return api.OpenRequest{}, err
	}
	namespaceID, err := command.GetIntParameter("namespace_id", 0)
	if err != nil {
		return api.OpenRequest{}, err
	}
	verbose, err := command.GetIntParameter("verbose", 0)
	if err != nil {
		return api.OpenRequest{}, err
	}
	request := api.OpenRequest{
		Device:         name,
		ReadOnly:       command.GetFlag("read_only"),
		ReportLowPower: command.GetFlag("low_power"),
		NamespaceID:    uint32(namespaceID),
		Verbose:        verbose,
	}
	if command.GetFlag("indirect") {
		request.Strategy = device.StrategyIndirect.String()
	}
	return request, nil
}

func executeRequest(command *cli.Command, handle device.Handle) (api.ExecuteRequest, error) {
	request := api.ExecuteRequest{Handle: handle}
	var err error
	if request.Command, err = command.GetBytesParameter("command"); err != nil {
		return request, err
	}
	if _, err = command.GetParameter("data_out"); err == nil {
		if request.DataOut, err = command.GetBytesParameter("data_out"); err != nil {
			return request, err
		}
	}
	if request.DataInLength, err = command.GetIntParameter("data_in_length", 0); err != nil {
		return request, err
	}
	if request.SenseLength, err = command.GetIntParameter("sense_length", 32); err != nil {
		return request, err
	}
	if request.TimeoutSeconds, err = command.GetIntParameter("timeout", 0); err != nil {
		return request, err
	}
	return request, nil
}

// withLocalDevice opens the device of command in a private registry for
// the duration of perform.
func withLocalDevice(command *cli.Command, perform func(*api.DaemonApiHandler, device.Handle) error) error {
	request, err := openRequest(command)
	if err != nil {
		return err
	}
	handler := api.NewApiHandler(device.NewRegistry(1, nil))
	opened, err := handler.Open(request)
	if err != nil {
		return err
	}
	defer func() {
		if err := handler.Close(api.CloseRequest{Handle: opened.Handle}); err != nil {
			logger.GetLogger().Warnf("close %s: %s", request.Device, err)
		}
	}()
	return perform(handler, opened.Handle)
}

func (tool Tool) PerformExecute(command *cli.Command) error {
	return withLocalDevice(command, func(handler *api.DaemonApiHandler, handle device.Handle) error {
		request, err := executeRequest(command, handle)
		if err != nil {
			return err
		}
		response, err := handler.Execute(context.Background(), request)
		if err != nil {
			return err
		}
		fmt.Println(response.ToCmdlineOutput())
		return nil
	})
}

func (tool Tool) PerformCheck(command *cli.Command) error {
	return withLocalDevice(command, func(handler *api.DaemonApiHandler, handle device.Handle) error {
		response, err := handler.Check(api.CheckRequest{Handle: handle})
		if err != nil {
			return err
		}
		fmt.Println(response.ToCmdlineOutput())
		return nil
	})
}

func (tool Tool) PerformServe(command *cli.Command) error {
	log := logger.GetLogger()
	socketPath, err := command.GetParameter("socket")
	if err != nil {
		socketPath = api.DefaultSocketPath
	}
	capacity, err := command.GetIntParameter("max_open", device.MaxOpenSimultaneous)
	if err != nil {
		return err
	}
	if address, err := command.GetParameter("pprof"); err == nil {
		go func() {
			err := http.ListenAndServe(address, nil)
			log.Errorf("Error: %v", err)
		}()
	}
	server := api.NewApiServer(device.NewRegistry(capacity, nil), socketPath)
	if err := server.Listen(); err != nil {
		return err
	}
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		received := <-signals
		log.Infof("received %s, shutting down", received)
		if err := server.Shutdown(); err != nil {
			log.Error(err)
		}
	}()
	return server.Serve()
}

func (tool Tool) PerformCommand() error {
	commandName, command := tool.commands.GetCurrentCommand()
	if command == nil {
		return fmt.Errorf(
			"command is nil, probably an" +
				" implementation issue of command line arguments parsing",
		)
	}
	if err := configureLogging(command); err != nil {
		return err
	}
	switch commandName {
	case CommandExecute:
		return tool.PerformExecute(command)
	case CommandCheck:
		return tool.PerformCheck(command)
	case CommandServe:
		return tool.PerformServe(command)
	case "":
		return fmt.Errorf("received empty command type name")
	default:
		return tool.client.PerformCommand(commandName, command)
	}
}

func main() {
	tool := NewTool()
	err := tool.commands.Parse(os.Args)
	if err != nil {
		if helpCmd, ok := err.(*cli.ErrHelpPageRequested); ok {
			fmt.Println(helpCmd)
			os.Exit(0)
		}
		_, err := fmt.Fprintf(os.Stderr, "%s\n", err)
		if err != nil {
			panic(err)
		}
		os.Exit(1)
	}
	err = tool.PerformCommand()
	if err != nil {
		_, err := fmt.Fprintln(os.Stderr, err)
		if err != nil {
			panic(err)
		}
		os.Exit(1)
	}
}
