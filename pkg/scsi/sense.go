// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"encoding/binary"
)

const (
	ResponseCodeFixedCurrent       = byte(0x70)
	ResponseCodeFixedDeferred      = byte(0x71)
	ResponseCodeDescriptorCurrent  = byte(0x72)
	ResponseCodeDescriptorDeferred = byte(0x73)
)

const (
	FixedSenseLength      = 18
	DescriptorSenseLength = 8
	// sense buffer size of the pass-through request wrappers
	MaxSenseLength = 64
	// shortest caller buffer a fixed format record is written into
	minFixedSenseBuffer = 14
)

const senseKeySpecificDescriptorType = byte(0x02)

// BuildSenseData returns a sense record of its natural length:
// 18 bytes in fixed format, 8 bytes in descriptor format.
func BuildSenseData(descriptor bool, key byte, code AdditionalSenseCode) []byte {
	if descriptor {
		return []byte{
			ResponseCodeDescriptorCurrent,
			key & 0x0f,
			code.ASC(),
			code.ASCQ(),
			// reserved
			0x00, 0x00, 0x00,
			// additional sense length, no descriptors
			0x00,
		}
	}
	return []byte{
		// current, not deferred
		ResponseCodeFixedCurrent,
		// obsolete
		0x00,
		key & 0x0f,
		// information
		0x00, 0x00, 0x00, 0x00,
		// additional sense length, 18 byte record
		0x0a,
		// command specific information
		0x00, 0x00, 0x00, 0x00,
		code.ASC(),
		code.ASCQ(),
		// field replaceable unit code
		0x00,
		// sense key specific
		0x00, 0x00, 0x00,
	}
}

// SenseKeySpecificField points at the byte (and optionally the bit) that
// made a CDB or a parameter list invalid. Bit < 0 means no bit pointer.
func SenseKeySpecificField(inCDB bool, byteIndex int, bit int) [3]byte {
	var field [3]byte
	field[0] = 0x80 // SKSV
	if inCDB {
		field[0] |= 0x40 // C/D
	}
	if bit >= 0 {
		field[0] |= 0x08 | byte(bit&0x07) // BPV and bit pointer
	}
	binary.BigEndian.PutUint16(field[1:3], uint16(byteIndex))
	return field
}

// BuildInvalidFieldSenseData returns ILLEGAL REQUEST sense with INVALID
// FIELD IN CDB or INVALID FIELD IN PARAMETER LIST and a sense key
// specific field pointing at the offending byte.
func BuildInvalidFieldSenseData(descriptor bool, inCDB bool, byteIndex int, bit int) []byte {
	code := AscInvalidFieldInParameters
	if inCDB {
		code = AscInvalidFieldInCdb
	}
	sense := BuildSenseData(descriptor, IllegalRequest, code)
	field := SenseKeySpecificField(inCDB, byteIndex, bit)
	if !descriptor {
		copy(sense[15:18], field[:])
		return sense
	}
	sense = append(
		sense,
		senseKeySpecificDescriptorType,
		// additional length
		0x06,
		// reserved
		0x00, 0x00,
		field[0], field[1], field[2],
		// reserved
		0x00,
	)
	sense[7] += 8
	return sense
}

// WriteSense zeroes buffer and copies as much of the record as fits,
// residual is what is left of the buffer. Buffers shorter than 8 bytes,
// or than 14 bytes for fixed format, are left untouched and ok is false.
func WriteSense(buffer []byte, record []byte) (written int, residual int, ok bool) {
	if len(record) == 0 {
		return 0, len(buffer), false
	}
	descriptor := isDescriptorResponseCode(record[0] & 0x7f)
	if len(buffer) < DescriptorSenseLength || (!descriptor && len(buffer) < minFixedSenseBuffer) {
		return 0, len(buffer), false
	}
	for index := range buffer {
		buffer[index] = 0
	}
	written = copy(buffer, record)
	return written, len(buffer) - written, true
}

func isDescriptorResponseCode(responseCode byte) bool {
	return responseCode == ResponseCodeDescriptorCurrent || responseCode == ResponseCodeDescriptorDeferred
}

type SenseData struct {
	ResponseCode byte
	Descriptor   bool
	Key          byte
	Code         AdditionalSenseCode
	// valid only when SenseKeySpecificValid is set
	SenseKeySpecific      [3]byte
	SenseKeySpecificValid bool
}

func (sense SenseData) ASC() byte {
	return sense.Code.ASC()
}

func (sense SenseData) ASCQ() byte {
	return sense.Code.ASCQ()
}

// FieldPointer decodes the sense key specific field of ILLEGAL REQUEST
// sense. Bit is -1 when the bit pointer is not valid.
func (sense SenseData) FieldPointer() (inCDB bool, byteIndex int, bit int, ok bool) {
	if !sense.SenseKeySpecificValid {
		return false, 0, -1, false
	}
	inCDB = sense.SenseKeySpecific[0]&0x40 != 0
	byteIndex = int(binary.BigEndian.Uint16(sense.SenseKeySpecific[1:3]))
	bit = -1
	if sense.SenseKeySpecific[0]&0x08 != 0 {
		bit = int(sense.SenseKeySpecific[0] & 0x07)
	}
	return inCDB, byteIndex, bit, true
}

func ParseSenseData(buffer []byte) (*SenseData, error) {
	if len(buffer) < 4 {
		return nil, newErrSenseTooShort(len(buffer))
	}
	responseCode := buffer[0] & 0x7f
	sense := &SenseData{ResponseCode: responseCode}
	switch responseCode {
	case ResponseCodeDescriptorCurrent, ResponseCodeDescriptorDeferred:
		sense.Descriptor = true
		sense.Key = buffer[1] & 0x0f
		sense.Code = NewAdditionalSenseCode(buffer[2], buffer[3])
		if len(buffer) >= DescriptorSenseLength {
			parseSenseDescriptors(sense, buffer)
		}
	case ResponseCodeFixedCurrent, ResponseCodeFixedDeferred:
		if len(buffer) < minFixedSenseBuffer {
			return nil, newErrSenseTooShort(len(buffer))
		}
		sense.Key = buffer[2] & 0x0f
		sense.Code = NewAdditionalSenseCode(buffer[12], buffer[13])
		if len(buffer) >= FixedSenseLength && buffer[15]&0x80 != 0 {
			copy(sense.SenseKeySpecific[:], buffer[15:18])
			sense.SenseKeySpecificValid = true
		}
	default:
		return nil, newErrUnknownResponseCode(buffer[0])
	}
	return sense, nil
}

func parseSenseDescriptors(sense *SenseData, buffer []byte) {
	end := DescriptorSenseLength + int(buffer[7])
	if end > len(buffer) {
		end = len(buffer)
	}
	for offset := DescriptorSenseLength; offset+2 <= end; {
		descriptorType := buffer[offset]
		descriptorEnd := offset + 2 + int(buffer[offset+1])
		if descriptorType == senseKeySpecificDescriptorType && descriptorEnd <= end && descriptorEnd-offset >= 7 {
			if buffer[offset+4]&0x80 != 0 {
				copy(sense.SenseKeySpecific[:], buffer[offset+4:offset+7])
				sense.SenseKeySpecificValid = true
			}
		}
		offset = descriptorEnd
	}
}
