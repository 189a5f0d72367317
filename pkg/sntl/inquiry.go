// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"encoding/binary"
	"sgpassthru/pkg/common"
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
)

var supportedVpdPages = []byte{
	scsi.SupportedVpdPagesVpdPageCode,
	scsi.UnitSerialNumberVpdPageCode,
	scsi.DeviceIdentificationVpdPageCode,
	scsi.NVMeIdentifyVpdPageCode,
}

// inquiry answers standard INQUIRY and VPD pages 0x00, 0x80, 0x83 and
// 0xde from Identify data.
func (current *translation) inquiry() error {
	cdb := current.request.CDB
	if cdb[1]&0x02 != 0 {
		// CmdDt is obsolete
		current.invalidCDBField(1, 1)
		return nil
	}
	raw, controller, err := current.identity()
	if err != nil {
		return current.senseFromStatus(err)
	}
	allocationLength := int(binary.BigEndian.Uint16(cdb[3:5]))
	if cdb[1]&0x01 == 0 {
		current.copyResponse(
			scsi.StandardInquiryData(
				scsi.TypeDisk,
				scsi.NVMeVendorIdentification,
				controller.ModelNumber[:16],
				controller.FirmwareRevision[:4],
			),
			allocationLength,
		)
		return nil
	}
	var page []byte
	switch pageCode := cdb[2]; pageCode {
	case scsi.SupportedVpdPagesVpdPageCode:
		page = scsi.SupportedVpdPagesVpdPage(scsi.TypeDisk, supportedVpdPages)
	case scsi.UnitSerialNumberVpdPageCode:
		page = scsi.UnitSerialNumberVpdPage(scsi.TypeDisk, controller.SerialNumber[:])
	case scsi.DeviceIdentificationVpdPageCode:
		page = current.deviceIdentification(controller)
	case scsi.NVMeIdentifyVpdPageCode:
		page = scsi.VendorSpecificVpdPage(scsi.TypeDisk, pageCode, raw[:nvme.IdentifyDataLength])
	default:
		current.invalidCDBField(2, 7)
		return nil
	}
	current.copyResponse(page, allocationLength)
	return nil
}

// deviceIdentification builds VPD page 0x83. Namespace identifiers are
// only reported when Identify Namespace of the bound namespace succeeds.
func (current *translation) deviceIdentification(controller *nvme.IdentifyControllerData) []byte {
	designators := [][]byte{
		scsi.T10VendorDesignator(scsi.NVMeVendorIdentification, controller.ModelNumber[:], controller.SerialNumber[:]),
	}
	namespaceID := current.dispatcher.cache.NamespaceID()
	if namespaceID > 0 && namespaceID < nvme.BroadcastNamespaceID {
		buffer := common.PageAlignedBuffer(nvme.IdentifyDataLength)
		_, err := current.issue(nvme.IdentifyNamespace(namespaceID), buffer, true)
		if err != nil {
			current.log.Infof("identify namespace %d failed: %s", namespaceID, err)
		} else if namespace, err := nvme.DecodeIdentifyNamespace(buffer); err == nil {
			if value := scsi.NamespaceDesignators(namespace.NGUID[:], namespace.EUI64[:]); value != nil {
				designators = append(designators, value)
			}
		}
	}
	return scsi.DeviceIdentificationVpdPage(scsi.TypeDisk, designators...)
}
