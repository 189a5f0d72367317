// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"bytes"
	"encoding/binary"
)

func MarshalUint16(value uint16) []byte {
	result := make([]byte, 2)
	binary.BigEndian.PutUint16(result, value)
	return result
}

func MarshalUint32(value uint32) []byte {
	result := make([]byte, 4)
	binary.BigEndian.PutUint32(result, value)
	return result
}

// StringToByte returns line followed by at least one NUL byte, padded up
// to a multiple of align and cut at maxlength.
func StringToByte(line string, align int, maxlength int) []byte {
	lineBytes := []byte(line)
	length := len(lineBytes)
	paddingSize := align - (length % align)

	if (length + paddingSize) > maxlength {
		return lineBytes[0:maxlength]
	}
	result := make([]byte, length+paddingSize)
	copy(result, lineBytes)
	return result
}

// padToMultiple appends zero bytes until the length is a multiple of align.
func padToMultiple(data []byte, align int) []byte {
	if remainder := len(data) % align; remainder != 0 {
		data = append(data, make([]byte, align-remainder)...)
	}
	return data
}

// FixedField left-aligns value in a field of size bytes padded with spaces,
// the way T10 ASCII fields are filled.
func FixedField(value []byte, size int) []byte {
	result := bytes.Repeat([]byte{' '}, size)
	copy(result, value)
	return result
}

func allZeros(data []byte) bool {
	for _, value := range data {
		if value != 0 {
			return false
		}
	}
	return true
}

// CopyResponse copies up to allocationLength bytes of response into
// buffer and returns the number of bytes copied.
func CopyResponse(buffer []byte, response []byte, allocationLength int) int {
	length := len(response)
	if allocationLength < length {
		length = allocationLength
	}
	if len(buffer) < length {
		length = len(buffer)
	}
	if length <= 0 {
		return 0
	}
	return copy(buffer, response[:length])
}
