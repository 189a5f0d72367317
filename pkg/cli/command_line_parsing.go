// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type ErrHelpPageRequested struct {
	helpMessage string
}

func (err ErrHelpPageRequested) Error() string {
	return err.helpMessage
}

type ErrCommandNotFound struct {
	commandName string
}

func (err ErrCommandNotFound) Error() string {
	return fmt.Sprintf("unknown command '%s'", err.commandName)
}

type ErrInvalidOption struct {
	option string
}

func (err ErrInvalidOption) Error() string {
	return fmt.Sprintf("invalid option -- '%s'", err.option)
}

type ErrMissingParameter struct {
	name string
}

func (err ErrMissingParameter) Error() string {
	return fmt.Sprintf("missing parameter %s", err.name)
}

type ErrInvalidValue struct {
	name   string
	value  string
	reason string
}

func (err ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value '%s' of %s: %s", err.value, err.name, err.reason)
}

type parameter struct {
	target           string
	shortFlag        string
	name             string
	description      string
	shortDescription string
	required         bool
	// a flag takes no value, its presence sets it
	flag bool
	set  bool
}

func (param parameter) getFullCmdlineArgument() string {
	return "--" + param.name
}

func (param parameter) found(argument string) bool {
	for _, spelling := range []string{param.getFullCmdlineArgument(), param.shortFlag} {
		if spelling == "" {
			continue
		}
		if argument == spelling || (!param.flag && strings.HasPrefix(argument, spelling+"=")) {
			return true
		}
	}
	return false
}

func (param parameter) valueInNextCmd(argument string) bool {
	return argument == param.getFullCmdlineArgument() || argument == param.shortFlag
}

func (param parameter) help() string {
	return fmt.Sprintf(
		"    %s/--%s - %s",
		param.shortFlag,
		param.name,
		param.description,
	)
}

func (param parameter) usage() string {
	if param.flag {
		return fmt.Sprintf("[%s|--%s]", param.shortFlag, param.name)
	}
	return fmt.Sprintf(
		"[%s|--%s %s]",
		param.shortFlag,
		param.name,
		param.shortDescription,
	)
}

func (param *parameter) extract(value string) {
	param.target = value
	param.set = true
}

type Command struct {
	name        string
	parameters  map[string]*parameter
	description string
}

func newCommand(name, description string) *Command {
	return &Command{
		name:        name,
		parameters:  make(map[string]*parameter),
		description: description,
	}
}

func (command *Command) sortedParameters() []*parameter {
	result := make([]*parameter, 0, len(command.parameters))
	for _, param := range command.parameters {
		result = append(result, param)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

func (command *Command) findParameter(commandLineArgument string) *parameter {
	for _, argument := range command.parameters {
		if argument.set {
			continue
		}
		if argument.found(commandLineArgument) {
			return argument
		}
	}
	return nil
}

func (command Command) usage() string {
	eachCommandUsages := make([]string, 0, len(command.parameters))
	for _, arg := range command.sortedParameters() {
		eachCommandUsages = append(eachCommandUsages, arg.usage())
	}
	if len(eachCommandUsages) > 0 {
		return fmt.Sprintf(
			"%s %s",
			command.name,
			strings.Join(eachCommandUsages, " "),
		)
	}
	return command.name
}

func (command Command) Help() string {
	eachCommandsDescriptions := make([]string, 0, len(command.parameters))
	for _, arg := range command.sortedParameters() {
		eachCommandsDescriptions = append(eachCommandsDescriptions, arg.help())
	}
	if len(eachCommandsDescriptions) > 0 {
		return fmt.Sprintf(
			"%s\n  Options:\n%s",
			command.description,
			strings.Join(eachCommandsDescriptions, "\n"),
		)
	} else {
		return command.description + "\n"
	}
}

func (command *Command) ParseArgs(args []string) error {
	var currentArgument *parameter
	for index, commandLineArgument := range args {
		if index == 0 {
			if commandLineArgument == "--help" || commandLineArgument == "-h" {
				return &ErrHelpPageRequested{helpMessage: command.Help()}
			}
		}
		// the previous argument was a parameter name, this one is its
		// value, as in "--timeout 10"
		if currentArgument != nil {
			currentArgument.extract(commandLineArgument)
			currentArgument = nil
			continue
		}
		parameter := command.findParameter(commandLineArgument)
		if parameter == nil {
			return &ErrInvalidOption{option: commandLineArgument}
		}
		if parameter.flag {
			parameter.extract("true")
			continue
		}
		if parameter.valueInNextCmd(commandLineArgument) {
			currentArgument = parameter
			continue
		}
		// name and value joined with "=", e.g. --timeout=10
		_, value, _ := strings.Cut(commandLineArgument, "=")
		parameter.extract(value)
	}
	if currentArgument != nil {
		return &ErrInvalidValue{name: currentArgument.name, reason: "value expected"}
	}
	missingParametersErrorString := ""
	for _, parameter := range command.sortedParameters() {
		if !parameter.set && parameter.required {
			missingParametersErrorString += "Missing parameter:\n" + parameter.help() + "\n"
		}
	}
	if missingParametersErrorString != "" {
		return errors.New(missingParametersErrorString)
	}
	return nil
}

func (command *Command) AddParameter(
	short string,
	name string,
	description string,
	shortDescription string,
	required bool,
) *Command {
	command.parameters[name] = &parameter{
		shortFlag:        short,
		name:             name,
		description:      description,
		required:         required,
		shortDescription: shortDescription,
	}
	return command
}

// AddFlag adds an optional parameter that takes no value.
func (command *Command) AddFlag(short string, name string, description string) *Command {
	command.parameters[name] = &parameter{
		shortFlag:   short,
		name:        name,
		description: description,
		flag:        true,
	}
	return command
}

func (command Command) GetParameter(parameterName string) (string, error) {
	value, ok := command.parameters[parameterName]
	if !ok || !value.set {
		return "", &ErrMissingParameter{name: parameterName}
	}
	return value.target, nil
}

func (command Command) GetFlag(parameterName string) bool {
	value, ok := command.parameters[parameterName]
	return ok && value.set
}

// GetIntParameter accepts decimal, 0x hex and 0 octal values and
// returns defaultValue when the parameter was not given.
func (command Command) GetIntParameter(parameterName string, defaultValue int) (int, error) {
	value, err := command.GetParameter(parameterName)
	if err != nil {
		return defaultValue, nil
	}
	result, err := strconv.ParseInt(value, 0, 32)
	if err != nil {
		return 0, &ErrInvalidValue{name: parameterName, value: value, reason: "integer expected"}
	}
	return int(result), nil
}

// GetBytesParameter decodes hex bytes, optionally separated by spaces,
// commas or colons: "12 00 00 00 24 00" or "120000002400".
func (command Command) GetBytesParameter(parameterName string) ([]byte, error) {
	value, err := command.GetParameter(parameterName)
	if err != nil {
		return nil, err
	}
	return ParseHexBytes(parameterName, value)
}

func ParseHexBytes(parameterName string, value string) ([]byte, error) {
	cleaned := strings.Map(func(character rune) rune {
		switch character {
		case ' ', ',', ':', '\t':
			return -1
		}
		return character
	}, value)
	result, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, &ErrInvalidValue{name: parameterName, value: value, reason: err.Error()}
	}
	return result, nil
}

type CommandList struct {
	name        string
	description string
	commands    map[string]*Command
	// this field is set after parsing
	// command line arguments
	currentCommandName string
}

func (cmdList CommandList) sortedNames() []string {
	names := make([]string, 0, len(cmdList.commands))
	for name := range cmdList.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cmdList CommandList) usages() string {
	commandUsages := make([]string, 0, len(cmdList.commands))
	for _, name := range cmdList.sortedNames() {
		commandUsages = append(commandUsages, fmt.Sprintf("%s %s", cmdList.name, cmdList.commands[name].usage()))
	}
	return strings.Join(commandUsages, "\n") + "\n"
}

func (cmdList CommandList) Help() string {
	commandDescriptions := make([]string, 0, len(cmdList.commands))
	for _, name := range cmdList.sortedNames() {
		commandDescriptions = append(commandDescriptions, fmt.Sprintf("* '%s': %s", name, cmdList.commands[name].Help()))
	}
	return fmt.Sprintf(
		"%s - %s",
		cmdList.name,
		cmdList.description,
	) +
		"\nUsage:\n" +
		cmdList.usages() +
		"\nSupported commands:\n" +
		strings.Join(commandDescriptions, "\n\n")
}

func (cmdList *CommandList) AddCommand(name, description string) *Command {
	command := newCommand(name, description)
	cmdList.commands[name] = command
	return command
}

func (cmdList CommandList) GetCommand(name string) (*Command, bool) {
	value, ok := cmdList.commands[name]
	return value, ok
}

func (cmdList *CommandList) Parse(args []string) error {
	if len(args) < 2 {
		return &ErrHelpPageRequested{helpMessage: cmdList.Help()}
	}
	commandName := args[1]
	commandArgs := args[2:]
	command, ok := cmdList.GetCommand(commandName)
	if !ok {
		if commandName == "--help" || commandName == "help" || commandName == "-h" {
			return &ErrHelpPageRequested{helpMessage: cmdList.Help()}
		}
		return &ErrCommandNotFound{commandName: commandName}
	}
	err := command.ParseArgs(commandArgs)
	if err != nil {
		return err
	}
	cmdList.currentCommandName = commandName
	return nil
}

func (cmdList CommandList) GetCurrentCommand() (commandName string, command *Command) {
	if cmdList.currentCommandName == "" {
		return "", nil
	}
	cmd, ok := cmdList.GetCommand(cmdList.currentCommandName)
	if !ok {
		return "", nil
	}
	commandName = cmdList.currentCommandName
	command = cmd
	return
}

func NewCommandList(name, description string) *CommandList {
	return &CommandList{
		name:        name,
		description: description,
		commands:    make(map[string]*Command),
	}
}
