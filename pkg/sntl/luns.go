// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"encoding/binary"
	"sgpassthru/pkg/scsi"
)

// reportLuns lists one logical unit per namespace of the controller.
func (current *translation) reportLuns() error {
	cdb := current.request.CDB
	selectReport := cdb[2]
	allocationLength := binary.BigEndian.Uint32(cdb[6:10])
	_, controller, err := current.identity()
	if err != nil {
		return current.senseFromStatus(err)
	}
	count, err := scsi.LunCountForSelectReport(
		selectReport,
		controller.NumberOfNamespaces,
		current.dispatcher.cache.NamespaceID(),
	)
	if err != nil {
		current.invalidField(err)
		return nil
	}
	allocation := clampAllocation(allocationLength)
	limit := allocation
	if len(current.request.Data) < limit {
		limit = len(current.request.Data)
	}
	current.copyResponse(scsi.ReportLunsData(count, limit), allocation)
	return nil
}

func clampAllocation(allocationLength uint32) int {
	const maxInt = int(^uint(0) >> 1)
	if uint64(allocationLength) > uint64(maxInt) {
		return maxInt
	}
	return int(allocationLength)
}
