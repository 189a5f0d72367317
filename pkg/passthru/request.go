// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package passthru

import (
	"context"
	"sgpassthru/pkg/transport"
	"syscall"
	"time"
)

const (
	// data buffer embedded in a fresh indirect request
	IndirectBufferSize = 512
	// largest transfer an indirect request grows to
	MaxIndirectTransferLength = 16 << 20
)

// scsiSubmitter is one way of handing a SCSI command to the transport.
// Data is the caller buffer either way.
type scsiSubmitter interface {
	submit(ctx context.Context, device transport.SCSITransport) (transport.SCSIResult, error)
	senseData() []byte
}

type requestHeader struct {
	address   transport.Address
	cdb       []byte
	direction transport.Direction
	data      []byte
	timeout   time.Duration
	sense     [MaxSenseLength]byte
}

func (header *requestHeader) senseData() []byte {
	return header.sense[:]
}

func (header *requestHeader) transportRequest(data []byte) *transport.SCSIRequest {
	return &transport.SCSIRequest{
		Address:   header.address,
		CDB:       header.cdb,
		Data:      data,
		Direction: header.direction,
		Sense:     header.sense[:],
		Timeout:   header.timeout,
	}
}

// directRequest passes the caller buffer to the transport, which must
// accept its alignment.
type directRequest struct {
	requestHeader
}

func (request *directRequest) submit(ctx context.Context, device transport.SCSITransport) (transport.SCSIResult, error) {
	return device.SubmitSCSI(ctx, request.transportRequest(request.data))
}

// indirectRequest stages data through a buffer of its own.
type indirectRequest struct {
	requestHeader
	buffer []byte
}

func newIndirectRequest() *indirectRequest {
	return &indirectRequest{buffer: make([]byte, IndirectBufferSize)}
}

// resizeAndMigrate returns a request with room for size bytes of data
// carrying every field of this one. On failure this request is returned
// unchanged together with the error.
func (request *indirectRequest) resizeAndMigrate(size int) (*indirectRequest, error) {
	if size <= len(request.buffer) {
		return request, nil
	}
	if size > MaxIndirectTransferLength {
		return request, newErrOS(syscall.ENOMEM)
	}
	migrated := *request
	migrated.buffer = make([]byte, size)
	copy(migrated.buffer, request.buffer)
	return &migrated, nil
}

func (request *indirectRequest) submit(ctx context.Context, device transport.SCSITransport) (transport.SCSIResult, error) {
	staging := request.buffer[:len(request.data)]
	if request.direction == transport.DirectionToDevice {
		copy(staging, request.data)
	}
	result, err := device.SubmitSCSI(ctx, request.transportRequest(staging))
	if err != nil {
		return result, err
	}
	if request.direction == transport.DirectionFromDevice {
		copy(request.data, staging)
	}
	return result, nil
}
