package main

import (
	"time"

	"github.com/kramelec/imcsnap/smbus"
	"github.com/kramelec/imcsnap/snapshot"
)

const maxDIMMSlots = 4
const spdBaseAddr uint8 = 0x50

func probeSMBus(hc *snapshot.HardwareContext, inUseTimeout time.Duration) (*smbus.Controller, error) {
	return smbus.Discover(hc.Dev, hc.Dev, hc.Dev, inUseTimeout)
}

// probeDIMMSlots reports which slots answer the SPD5 hub's presence
// check, without locking the SMBus mutex or decoding anything -- probe
// is meant as a quick "is hardware reachable" check, not a full read.
func probeDIMMSlots(ctrl *smbus.Controller) ([]uint8, error) {
	var slots []uint8

	for slot := uint8(0); slot < maxDIMMSlots; slot++ {
		hub := smbus.NewSPD5Hub(ctrl.Transport, spdBaseAddr+slot)
		if hub.Present() {
			slots = append(slots, slot)
		}
	}

	return slots, nil
}
