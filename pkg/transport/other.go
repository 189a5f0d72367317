// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/

//go:build !linux

package transport

import (
	"context"
	"sgpassthru/pkg/nvme"
)

// LinuxDevice is only usable on Linux; elsewhere opening one fails.
type LinuxDevice struct {
	path string
}

func OpenLinuxDevice(path string, readOnly bool) (*LinuxDevice, error) {
	return nil, newErrNotSupported(path, "opening an OS device")
}

func (device *LinuxDevice) Name() string {
	return device.path
}

func (device *LinuxDevice) Close() error {
	return nil
}

func (device *LinuxDevice) Classify() (Classification, error) {
	return Classification{}, newErrNotSupported(device.path, "classification")
}

func (device *LinuxDevice) Alignment() int {
	return 1
}

func (device *LinuxDevice) SubmitSCSI(ctx context.Context, request *SCSIRequest) (SCSIResult, error) {
	return SCSIResult{}, newErrNotSupported(device.path, "SCSI pass-through")
}

func (device *LinuxDevice) SubmitAdmin(ctx context.Context, request *AdminRequest) (nvme.Completion, error) {
	return nvme.Completion{}, newErrNotSupported(device.path, "NVMe pass-through")
}
