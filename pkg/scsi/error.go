// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"fmt"
	"sgpassthru/pkg/common"
)

const (
	NoSense        byte = 0x00
	RecoveredError byte = 0x01
	NotReady       byte = 0x02
	MediumError    byte = 0x03
	HardwareError  byte = 0x04
	IllegalRequest byte = 0x05
	UnitAttention  byte = 0x06
	DataProtect    byte = 0x07
	BlankCheck     byte = 0x08
	AbortedCommand byte = 0x0b
	Miscompare     byte = 0x0e
)

func SenseKeyToString(key byte) string {
	keys := map[byte]string{
		NoSense:        "No Sense",
		RecoveredError: "Recovered Error",
		NotReady:       "Not Ready",
		MediumError:    "Medium Error",
		HardwareError:  "Hardware Error",
		IllegalRequest: "Illegal Request",
		UnitAttention:  "Unit Attention",
		DataProtect:    "Data Protect",
		BlankCheck:     "Blank Check",
		AbortedCommand: "Aborted Command",
		Miscompare:     "Miscompare",
	}
	result, ok := keys[key]
	if !ok {
		return fmt.Sprintf("0x%x", key)
	}
	return result
}

// AdditionalSenseCode packs ASC in the high byte and ASCQ in the low one.
type AdditionalSenseCode uint16

func NewAdditionalSenseCode(asc, ascq byte) AdditionalSenseCode {
	return AdditionalSenseCode(uint16(asc)<<8 | uint16(ascq))
}

func (code AdditionalSenseCode) ASC() byte {
	return byte(code >> 8)
}

func (code AdditionalSenseCode) ASCQ() byte {
	return byte(code)
}

var (
	// Key 0: No Sense Errors
	NoAdditionalSense    AdditionalSenseCode = 0x0000
	AscLowPowerCondition AdditionalSenseCode = 0x5e00

	// Key 2: Not ready
	AscNotReady         AdditionalSenseCode = 0x0400
	AscBecomingReady    AdditionalSenseCode = 0x0401
	AscFormatInProgress AdditionalSenseCode = 0x0404
	AscMediumNotPresent AdditionalSenseCode = 0x3a00

	// Key 3: Medium errors
	AscWriteError          AdditionalSenseCode = 0x0c00
	AscGuardCheckFailed    AdditionalSenseCode = 0x1001
	AscApplicationTagCheck AdditionalSenseCode = 0x1002
	AscReferenceTagCheck   AdditionalSenseCode = 0x1003
	AscReadError           AdditionalSenseCode = 0x1100

	// Key 4: Hardware errors
	AscInternalTargetFailure AdditionalSenseCode = 0x4400

	// Key 5: Illegal Request
	AscWarning                  AdditionalSenseCode = 0x0b00
	AscInvalidOpCode            AdditionalSenseCode = 0x2000
	AscLbaOutOfRange            AdditionalSenseCode = 0x2100
	AscInvalidFieldInCdb        AdditionalSenseCode = 0x2400
	AscLogicalUnitNotSupported  AdditionalSenseCode = 0x2500
	AscInvalidFieldInParameters AdditionalSenseCode = 0x2600
	AscCommandSequenceError     AdditionalSenseCode = 0x2c00

	// Key 7: Data protect
	AscAccessDenied   AdditionalSenseCode = 0x2002
	AscWriteProtected AdditionalSenseCode = 0x2700

	// Key 0xe: Miscompare
	AscMiscompareDuringVerify AdditionalSenseCode = 0x1d00
)

type ErrSenseTooShort struct {
	length    int
	traceInfo string
}

func (err ErrSenseTooShort) Error() string {
	return fmt.Sprintf("sense data of %d bytes is too short", err.length)
}

func (err ErrSenseTooShort) TraceInfo() string {
	return err.traceInfo
}

func newErrSenseTooShort(length int) error {
	return &ErrSenseTooShort{length: length, traceInfo: common.GetTraceInfo()}
}

type ErrUnknownResponseCode struct {
	responseCode byte
	traceInfo    string
}

func (err ErrUnknownResponseCode) Error() string {
	return fmt.Sprintf("unknown sense response code 0x%02x", err.responseCode)
}

func (err ErrUnknownResponseCode) TraceInfo() string {
	return err.traceInfo
}

func newErrUnknownResponseCode(responseCode byte) error {
	return &ErrUnknownResponseCode{responseCode: responseCode, traceInfo: common.GetTraceInfo()}
}

// ErrInvalidField reports a CDB or parameter list field a command
// translator refused. Bit is -1 when no bit is pointed at.
type ErrInvalidField struct {
	InCDB     bool
	Byte      int
	Bit       int
	traceInfo string
}

func (err ErrInvalidField) Error() string {
	where := "parameter list"
	if err.InCDB {
		where = "CDB"
	}
	if err.Bit < 0 {
		return fmt.Sprintf("invalid field in %s at byte %d", where, err.Byte)
	}
	return fmt.Sprintf("invalid field in %s at byte %d bit %d", where, err.Byte, err.Bit)
}

func (err ErrInvalidField) TraceInfo() string {
	return err.traceInfo
}

// SenseData renders the refusal as ILLEGAL REQUEST sense.
func (err ErrInvalidField) SenseData(descriptor bool) []byte {
	return BuildInvalidFieldSenseData(descriptor, err.InCDB, err.Byte, err.Bit)
}

func newErrInvalidField(inCDB bool, byteIndex int, bit int) error {
	return &ErrInvalidField{InCDB: inCDB, Byte: byteIndex, Bit: bit, traceInfo: common.GetTraceInfo()}
}
