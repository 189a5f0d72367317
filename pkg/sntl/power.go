// Copyright 2018-present Network Optix, Inc. Licensed under MPL 2.0: www.mozilla.org/MPL/2.0/
package sntl

import (
	"sgpassthru/pkg/nvme"
	"sgpassthru/pkg/scsi"
)

// powerState reads the current power state of the controller with Get
// Features (Power Management).
func (current *translation) powerState() (uint32, error) {
	completion, err := current.issue(nvme.GetFeatures(nvme.BroadcastNamespaceID, nvme.FeaturePowerManagement), nil, false)
	if err != nil {
		return 0, err
	}
	state := completion.Result() & 0x1f
	current.log.Debugf("power state %d", state)
	return state, nil
}

func (current *translation) testUnitReady() error {
	if _, _, err := current.identity(); err != nil {
		return current.senseFromStatus(err)
	}
	state, err := current.powerState()
	if err != nil {
		return current.senseFromStatus(err)
	}
	if state != 0 && current.dispatcher.ReportLowPower {
		current.setSense(
			scsi.SamStatCheckCondition,
			scsi.BuildSenseData(current.request.DescriptorSense, scsi.NotReady, scsi.AscLowPowerCondition),
		)
	}
	return nil
}

// requestSense returns the sense data in the data-in buffer, the sense
// buffer stays empty.
func (current *translation) requestSense() error {
	cdb := current.request.CDB
	if _, _, err := current.identity(); err != nil {
		return current.senseFromStatus(err)
	}
	descriptor := cdb[1]&0x01 != 0
	allocationLength := int(cdb[4])
	state, err := current.powerState()
	if err != nil {
		return current.senseFromStatus(err)
	}
	data := scsi.RequestSenseData(descriptor, state != 0)
	transferred := scsi.CopyResponse(current.request.Data, data, allocationLength)
	current.response.Residual = len(current.request.Data) - transferred
	return nil
}
