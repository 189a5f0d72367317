// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package passthru

import (
	"fmt"
	"syscall"
)

// ExecResult is what Execute returns. Negative values are negated
// errno values of OS failures.
type ExecResult int

const (
	ExecOK        ExecResult = 0
	ExecBadParams ExecResult = 1
	ExecTimeout   ExecResult = 2
	// raw NVMe command completed with a nonzero status
	ExecNVMeStatus ExecResult = 48
)

func execResultFromErrno(errno syscall.Errno) ExecResult {
	return ExecResult(-int(errno))
}

func (result ExecResult) String() string {
	switch {
	case result == ExecOK:
		return "ok"
	case result == ExecBadParams:
		return "bad parameters"
	case result == ExecTimeout:
		return "timeout"
	case result == ExecNVMeStatus:
		return "NVMe status"
	case result < 0:
		return fmt.Sprintf("OS error: %s", syscall.Errno(-result).Error())
	default:
		return fmt.Sprintf("unknown result %d", int(result))
	}
}

type ResultCategory int

const (
	ResultGood ResultCategory = iota
	ResultStatus
	ResultSense
	ResultTransportError
	ResultOSError
)

func (category ResultCategory) String() string {
	names := map[ResultCategory]string{
		ResultGood:           "good",
		ResultStatus:         "status",
		ResultSense:          "sense",
		ResultTransportError: "transport error",
		ResultOSError:        "OS error",
	}
	name, ok := names[category]
	if !ok {
		return fmt.Sprintf("category %d", int(category))
	}
	return name
}
