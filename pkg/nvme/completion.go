// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package nvme

import (
	"encoding/binary"
)

// Completion is the 16 byte completion queue entry.
type Completion struct {
	Dw0 uint32
	Dw1 uint32
	Dw2 uint32
	Dw3 uint32
}

// CompletionWithStatus builds the entry a controller posts for status.
func CompletionWithStatus(result uint32, status uint16) Completion {
	return Completion{Dw0: result, Dw3: uint32(status&0x3ff) << 17}
}

// Status is SCT|SC, DNR and More bits excluded.
func (completion Completion) Status() uint16 {
	return uint16(0x3ff & (completion.Dw3 >> 17))
}

func (completion Completion) Result() uint32 {
	return completion.Dw0
}

func (completion Completion) Bytes() []byte {
	result := make([]byte, CompletionLength)
	binary.LittleEndian.PutUint32(result[0:4], completion.Dw0)
	binary.LittleEndian.PutUint32(result[4:8], completion.Dw1)
	binary.LittleEndian.PutUint32(result[8:12], completion.Dw2)
	binary.LittleEndian.PutUint32(result[12:16], completion.Dw3)
	return result
}
