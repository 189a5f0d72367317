// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package api

import "fmt"

type ErrUnknownStrategy struct {
	strategy string
}

func (err ErrUnknownStrategy) Error() string {
	return fmt.Sprintf("unknown strategy '%s', expected direct or indirect", err.strategy)
}

type ErrInconsistentRequestParameters struct {
	reason string
}

func (err ErrInconsistentRequestParameters) Error() string {
	return "inconsistent request parameters: " + err.reason
}
