// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package scsi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	VersionSpc4 = byte(0x06)
)

/*
 * Code Set
 *
 *  1 - Designator fild contains binary values
 *  2 - Designator field contains ASCII printable chars
 *  3 - Designaotor field contains UTF-8
 */
const (
	InqCodeBin   = byte(1)
	InqCodeAscii = byte(2)
	InqCodeUtf8  = byte(3)
)

/*
 * Association field
 *
 * 00b - Associated with Logical Unit
 * 01b - Associated with target port
 * 10b - Associated with SCSI Target device
 * 11b - Reserved
 */
const (
	AssociatedLogicalUnit = byte(0x00)
	AssociatedTgtPort     = byte(0x01)
	AssociatedTgtDevice   = byte(0x02)
)

const (
	InquiryStandardFormat = byte(0x02)
	InquiryEncserv        = byte(0x40)
	InquiryCmdque         = byte(0x02)
)

/*
 * Designator type - SPC-4 Reference
 *
 * 0 - Vendor specific - 7.6.3.3
 * 1 - T10 vendor ID - 7.6.3.4
 * 2 - EUI-64 - 7.6.3.5
 * 3 - NAA - 7.6.3.6
 * 8 - SCSI name string - 7.6.3.11
 */
const (
	DesignatorTypeVendor   = byte(0)
	DesignatorTypeT10      = byte(1)
	DesignatorTypeEui64    = byte(2)
	DesignatorTypeNaa      = byte(3)
	DesignatorTypeScsiName = byte(8)
)

const (
	SupportedVpdPagesVpdPageCode    = byte(0x00)
	UnitSerialNumberVpdPageCode     = byte(0x80)
	DeviceIdentificationVpdPageCode = byte(0x83)
	// raw NVMe Identify Controller data behind a 16 byte header
	NVMeIdentifyVpdPageCode = byte(0xde)
)

const (
	StandardInquiryLength    = 36
	vendorSpecificPageHeader = 16
)

// NVMeVendorIdentification is reported as the T10 vendor of every
// translated NVMe device.
var NVMeVendorIdentification = []byte("NVMe    ")

const (
	PeripheralQualifierDeviceConnected = byte(0x00)
)

func peripheralByte(deviceType SCSIDeviceType) byte {
	return PeripheralQualifierDeviceConnected | byte(deviceType)&0x1f
}

// StandardInquiryData builds the 36 byte standard INQUIRY response.
func StandardInquiryData(deviceType SCSIDeviceType, vendor, product, revision []byte) []byte {
	result := []byte{
		peripheralByte(deviceType),
		// Removable Media Bit (RMB = 0)
		//  Logical Unit Conglomerate(LU_CONG = 0)
		0x00,
		VersionSpc4,
		// NORMACA = 0, HISUP = 0, RESPONSE DATA FORMAT = 2
		InquiryStandardFormat,
		// additional length, 36 byte response
		byte(StandardInquiryLength - 5),
		// SCCS(0) ACC(0) TPGS(0) 3PC(0) PROTECT(0)
		0x00,
		// ENCSERV(1) VS(0) MULTIP(0)
		// ENCSERV - Enclosure Services
		// indicates that the SCSI target device contains an embedded
		// enclosure services component that is addressable
		// through this logical unit
		InquiryEncserv,
		// CMDQUE(1)
		InquiryCmdque,
	}
	// 8 bytes of left aligned ASCII
	result = append(result, FixedField(vendor, 8)[:8]...)
	result = append(result, FixedField(product, 16)[:16]...)
	result = append(result, FixedField(revision, 4)[:4]...)
	return result
}

func SupportedVpdPagesVpdPage(deviceType SCSIDeviceType, pages []byte) []byte {
	result := []byte{
		peripheralByte(deviceType),
		SupportedVpdPagesVpdPageCode,
	}
	result = append(result, MarshalUint16(uint16(len(pages)))...) // page length in big endian
	return append(result, pages...)
}

func UnitSerialNumberVpdPage(deviceType SCSIDeviceType, serialNumber []byte) []byte {
	result := []byte{
		peripheralByte(deviceType),
		UnitSerialNumberVpdPageCode,
	}
	result = append(result, MarshalUint16(uint16(len(serialNumber)))...) // page length 2 bytes big endian
	return append(result, serialNumber...)
}

func protocolIdentifierAndCodeSet(codeSet byte) byte {
	// no protocol identifier, PIV stays zero as well
	return codeSet & 0x0f
}

func associationAndDesignatorType(association, designatorType byte) byte {
	return (association&0x03)<<4 | designatorType&0x0f
}

func designator(codeSet, association, designatorType byte, value []byte) []byte {
	result := []byte{
		protocolIdentifierAndCodeSet(codeSet),
		associationAndDesignatorType(association, designatorType),
		// reserved
		0x00,
		byte(len(value)),
	}
	return append(result, value...)
}

// T10VendorDesignator identifies the target device by vendor, model and
// serial number. Trailing spaces of the model are cut and replaced with a
// single '_' separator, trailing spaces of the serial number are cut.
func T10VendorDesignator(vendor, model, serialNumber []byte) []byte {
	value := append([]byte{}, FixedField(vendor, 8)[:8]...)
	trimmedModel := bytes.TrimRight(model, " \x00")
	if len(trimmedModel) == 0 && len(model) > 0 {
		trimmedModel = model[:1]
	}
	value = append(value, trimmedModel...)
	value = append(value, '_')
	value = append(value, bytes.TrimRight(serialNumber, " \x00")...)
	value = padToMultiple(value, 4)
	return designator(InqCodeAscii, AssociatedTgtDevice, DesignatorTypeT10, value)
}

// EuiDesignators returns the binary EUI-64 based designator of a logical
// unit followed by its "eui." SCSI name string form.
func EuiDesignators(identifier []byte) []byte {
	result := designator(InqCodeBin, AssociatedLogicalUnit, DesignatorTypeEui64, identifier)
	name := "eui."
	for _, value := range identifier {
		name += fmt.Sprintf("%02X", value)
	}
	return append(
		result,
		designator(InqCodeUtf8, AssociatedLogicalUnit, DesignatorTypeScsiName, StringToByte(name, 4, 252))...,
	)
}

// DeviceIdentificationVpdPage wraps designators into VPD page 0x83.
func DeviceIdentificationVpdPage(deviceType SCSIDeviceType, designators ...[]byte) []byte {
	result := []byte{
		peripheralByte(deviceType),
		DeviceIdentificationVpdPageCode,
		0x00, 0x00,
	}
	for _, value := range designators {
		result = append(result, value...)
	}
	binary.BigEndian.PutUint16(result[2:4], uint16(len(result)-4))
	return result
}

// NamespaceDesignators picks the namespace identifier SCSI can report:
// NGUID when set, otherwise EUI64, otherwise nothing.
func NamespaceDesignators(nguid []byte, eui64 []byte) []byte {
	switch {
	case len(nguid) > 0 && !allZeros(nguid):
		return EuiDesignators(nguid)
	case len(eui64) > 0 && !allZeros(eui64):
		return EuiDesignators(eui64)
	default:
		return nil
	}
}

// VendorSpecificVpdPage places payload behind a 16 byte page header.
func VendorSpecificVpdPage(deviceType SCSIDeviceType, pageCode byte, payload []byte) []byte {
	result := make([]byte, vendorSpecificPageHeader, vendorSpecificPageHeader+len(payload))
	result[0] = peripheralByte(deviceType)
	result[1] = pageCode
	binary.BigEndian.PutUint16(result[2:4], uint16(vendorSpecificPageHeader+len(payload)-4))
	return append(result, payload...)
}
