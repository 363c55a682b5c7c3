package snapshot

import (
	"encoding/hex"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/smbus"
)

const maxDIMMSlots = 4 // two controllers x two channels, one DIMM each, matching the platform walk

var (
	spdBaseAddr uint8 = 0x50 // SPD5 hub: 0x50..0x53
	pmicPrimary uint8 = 0x18 // PMIC, primary address range: 0x18..0x1B
	pmicAlt     uint8 = 0x48 // PMIC, alternate address range: 0x48..0x4B
)

// PMICRecord is the Memory.DIMM[k].PMIC sub-record of spec.md §3.
type PMICRecord struct {
	VendorID  bitfield.JEP106
	Revision  uint8
	IsRichtek bool
	Readings  smbus.PMICReadings
}

// DIMM is one Memory.DIMM[k] record: spec.md §3's "for each populated
// slot" bullet.
type DIMM struct {
	Slot uint8

	SPDVendorID     bitfield.JEP106
	SPDEEPROMHex    string
	SPD             smbus.DecodedSPD
	IsPageProtected bool

	HasTemperature bool
	Temperature    float64

	PMIC *PMICRecord
}

// readDIMMs probes every slot address spec.md §4.4/§6 names and returns
// one DIMM record per populated slot (spec.md §8 scenario 5: an empty
// slot -- SPD5 MR3 returns no response -- is simply omitted).
func readDIMMs(transport smbus.Transport) []DIMM {
	var dimms []DIMM

	for slot := uint8(0); slot < maxDIMMSlots; slot++ {
		hub := smbus.NewSPD5Hub(transport, spdBaseAddr+slot)
		if !hub.Present() {
			continue
		}

		d := DIMM{Slot: slot}

		if vendor, err := hub.VendorID(); err == nil {
			d.SPDVendorID = vendor
		} else {
			Logger.Printf("dimm %d: spd vendor id: %v", slot, err)
		}

		dump := hub.Dump()
		d.SPDEEPROMHex = hex.EncodeToString(dump)
		d.SPD = smbus.DecodeSPD(dump)
		d.IsPageProtected = hub.IsPageProtected

		if temp, err := hub.Temperature(); err == nil {
			d.HasTemperature = true
			d.Temperature = round(temp, 4)
		} else {
			Logger.Printf("dimm %d: temperature: %v", slot, err)
		}

		if pmic := probeDIMMPMIC(transport, slot); pmic != nil {
			d.PMIC = pmic
		}

		dimms = append(dimms, d)
	}

	return dimms
}

// probeDIMMPMIC tries the primary, then alternate, Richtek PMIC address
// for one slot, matching spec.md §6's two named address ranges.
func probeDIMMPMIC(transport smbus.Transport, slot uint8) *PMICRecord {
	for _, base := range []uint8{pmicPrimary, pmicAlt} {
		p, err := smbus.ProbePMIC(transport, base+slot)
		if err != nil {
			continue
		}

		if !p.IsRichtek {
			return &PMICRecord{VendorID: p.VendorID, Revision: p.Revision, IsRichtek: false}
		}

		readings, err := p.ReadAll()
		if err != nil {
			Logger.Printf("dimm %d pmic: read_all: %v", slot, err)
		}

		return &PMICRecord{
			VendorID:  p.VendorID,
			Revision:  p.Revision,
			IsRichtek: true,
			Readings:  roundPMICReadings(readings),
		}
	}

	return nil
}

func roundPMICReadings(r smbus.PMICReadings) smbus.PMICReadings {
	r.SWA = round(r.SWA, 4)
	r.SWB = round(r.SWB, 4)
	r.SWC = round(r.SWC, 4)
	r.SWD = round(r.SWD, 4)
	r.V1_8 = round(r.V1_8, 4)
	r.V1_0 = round(r.V1_0, 4)
	r.VIN = round(r.VIN, 4)

	return r
}
