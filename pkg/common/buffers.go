// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package common

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func PageSize() int {
	return unix.Getpagesize()
}

// IsAligned reports whether the first byte of buffer sits on an
// alignment boundary. Empty buffers are always aligned.
func IsAligned(buffer []byte, alignment int) bool {
	if len(buffer) == 0 || alignment <= 1 {
		return true
	}
	return uintptr(unsafe.Pointer(&buffer[0]))%uintptr(alignment) == 0
}

// AlignedBuffer allocates size bytes starting on an alignment boundary.
func AlignedBuffer(size int, alignment int) []byte {
	if alignment <= 1 {
		return make([]byte, size)
	}
	raw := make([]byte, size+alignment)
	offset := 0
	if remainder := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(alignment)); remainder != 0 {
		offset = alignment - remainder
	}
	return raw[offset : offset+size : offset+size]
}

func PageAlignedBuffer(size int) []byte {
	return AlignedBuffer(size, PageSize())
}
