// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/

//go:build linux

package transport

import (
	"context"
	"runtime"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/logger"
	"sgpassthru/pkg/nvme"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	sgIO            = 0x2285
	sgGetVersionNum = 0x2282
	// _IO('N', 0x40)
	nvmeIoctlID = 0x4e40
	// _IOWR('N', 0x41, struct nvme_passthru_cmd)
	nvmeIoctlAdminCmd = 0xc0484e41
)

const (
	sgDxferNone    = -1
	sgDxferToDev   = -2
	sgDxferFromDev = -3
)

const (
	// host_status reported when the command timed out
	didTimeOut = 0x03
	// driver_status bits other than DRIVER_SENSE mean the command failed
	driverStatusMask  = 0x0f
	driverStatusSense = 0x08
)

const linuxDefaultTimeout = 60 * time.Second

// analogous to sg_io_hdr_t
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// Defined in <linux/nvme_ioctl.h>
type nvmePassthruCmd struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
}

// LinuxDevice talks to an sg or NVMe character device node.
type LinuxDevice struct {
	path string
	fd   int
}

func OpenLinuxDevice(path string, readOnly bool) (*LinuxDevice, error) {
	flags := unix.O_RDWR
	if readOnly {
		flags = unix.O_RDONLY
	}
	fd, err := unix.Open(path, flags|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &LinuxDevice{path: path, fd: fd}, nil
}

func (device *LinuxDevice) Name() string {
	return device.path
}

func (device *LinuxDevice) Close() error {
	if err := unix.Close(device.fd); err != nil {
		return errors.Wrapf(err, "close %s", device.path)
	}
	return nil
}

func ioctl(fd int, request uintptr, argument unsafe.Pointer) (uintptr, error) {
	result, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(argument))
	if errno != 0 {
		return 0, errno
	}
	return result, nil
}

// Classify asks the NVMe driver for the namespace id first, a device the
// sg driver reports a version for is SCSI.
func (device *LinuxDevice) Classify() (Classification, error) {
	log := logger.GetLogger()
	namespaceID, err := ioctl(device.fd, nvmeIoctlID, nil)
	if err == nil {
		return Classification{Class: ClassNVMe, NamespaceID: uint32(namespaceID)}, nil
	}
	log.Debugf("%s: NVME_IOCTL_ID failed: %s", device.path, err)
	var version int32
	_, err = ioctl(device.fd, sgGetVersionNum, unsafe.Pointer(&version))
	if err == nil {
		log.Debugf("%s: sg driver version %d", device.path, version)
		return Classification{Class: ClassSCSI}, nil
	}
	return Classification{}, errors.Wrapf(err, "classify %s", device.path)
}

func (device *LinuxDevice) Alignment() int {
	return common.PageSize()
}

func bufferPointer(buffer []byte) uintptr {
	if len(buffer) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buffer[0]))
}

func (device *LinuxDevice) SubmitSCSI(ctx context.Context, request *SCSIRequest) (SCSIResult, error) {
	if err := ctx.Err(); err != nil {
		return SCSIResult{}, err
	}
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = linuxDefaultTimeout
	}
	header := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: sgDxferNone,
		cmdLen:         uint8(len(request.CDB)),
		mxSbLen:        uint8(len(request.Sense)),
		dxferLen:       uint32(len(request.Data)),
		dxferp:         bufferPointer(request.Data),
		cmdp:           bufferPointer(request.CDB),
		sbp:            bufferPointer(request.Sense),
		timeout:        TimeoutMilliseconds(timeout),
	}
	switch request.Direction {
	case DirectionToDevice:
		header.dxferDirection = sgDxferToDev
	case DirectionFromDevice:
		header.dxferDirection = sgDxferFromDev
	}
	_, err := ioctl(device.fd, sgIO, unsafe.Pointer(&header))
	runtime.KeepAlive(request)
	if err != nil {
		errno := err.(unix.Errno)
		return SCSIResult{}, common.RaiseFrom(errors.Wrapf(err, "SG_IO on %s", device.path), NewError("SG_IO", uint32(errno)))
	}
	if header.hostStatus == didTimeOut {
		return SCSIResult{}, NewErrTimeout("SG_IO", timeout)
	}
	if header.hostStatus != 0 || header.driverStatus&driverStatusMask&^driverStatusSense != 0 {
		return SCSIResult{}, NewError("SG_IO", uint32(header.hostStatus)<<16|uint32(header.driverStatus))
	}
	transferred := int(header.dxferLen) - int(header.resid)
	if transferred < 0 {
		transferred = 0
	}
	return SCSIResult{
		Status:      header.status,
		SenseLength: int(header.sbLenWr),
		Transferred: transferred,
	}, nil
}

func (device *LinuxDevice) SubmitAdmin(ctx context.Context, request *AdminRequest) (nvme.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nvme.Completion{}, err
	}
	command, err := nvme.DecodeCommand(request.Command)
	if err != nil {
		return nvme.Completion{}, err
	}
	passthru := nvmePassthruCmd{
		opcode:      command.Opcode,
		flags:       command.Flags,
		nsid:        command.NamespaceID,
		cdw2:        command.Cdw2,
		cdw3:        command.Cdw3,
		metadata:    uint64(bufferPointer(request.Metadata)),
		addr:        uint64(bufferPointer(request.Data)),
		metadataLen: uint32(len(request.Metadata)),
		dataLen:     uint32(len(request.Data)),
		cdw10:       command.Cdw10,
		cdw11:       command.Cdw11,
		cdw12:       command.Cdw12,
		cdw13:       command.Cdw13,
		cdw14:       command.Cdw14,
		cdw15:       command.Cdw15,
		timeoutMs:   TimeoutMilliseconds(request.Timeout),
	}
	status, err := ioctl(device.fd, nvmeIoctlAdminCmd, unsafe.Pointer(&passthru))
	runtime.KeepAlive(request)
	if err != nil {
		errno := err.(unix.Errno)
		if errno == unix.ETIMEDOUT || errno == unix.EINTR {
			return nvme.Completion{}, NewErrTimeout("NVME_IOCTL_ADMIN_CMD", request.Timeout)
		}
		return nvme.Completion{}, common.RaiseFrom(
			errors.Wrapf(err, "NVME_IOCTL_ADMIN_CMD on %s", device.path),
			NewError("NVME_IOCTL_ADMIN_CMD", uint32(errno)),
		)
	}
	// a positive return value is the completion status, DNR and More included
	return nvme.CompletionWithStatus(passthru.result, uint16(status&0x3ff)), nil
}
