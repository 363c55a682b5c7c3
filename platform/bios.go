package platform

import (
	"time"

	"github.com/kramelec/imcsnap/mailbox"
)

// BiosMailboxReport is one Memory.BIOS_REQUEST or Memory.BIOS_DATA
// record (spec.md §3): the last MC PLL settings requested of, or
// applied by, firmware through the BIOS mailbox. original_source/
// biosbox.py's MAILBOX_TYPE_PCODE is the same MCHBAR 0x5DA0/0x5DA4 pair
// already wired as c.PCODE, so no new carrier is needed here.
type BiosMailboxReport struct {
	Ratio         uint64
	Reference     uint64
	Gear          uint64
	VDDQTXVoltage float64 // volts, 1/100V steps (Capabilities.MaxVDDQTx convention)
	IccMaxAmps    float64 // quarter-amp steps, matching the VR IccMax convention
}

// readBiosMailboxReport reads one BIOS-mailbox response word and
// unpacks it into ratio/reference/gear/VDDQ_TX/IccMax: cmd selects
// request (CmdBIOSRequest) vs applied (CmdBIOSData).
func readBiosMailboxReport(carrier mailbox.Carrier, cmd uint8, timeout time.Duration) BiosMailboxReport {
	var r BiosMailboxReport

	v, err := mailbox.Request(carrier, mailbox.PCODEVariant, cmd, 0, 0, 0, timeout)
	if err != nil {
		Logger.Printf("bios mailbox cmd=0x%02X: %v", cmd, err)

		return r
	}

	raw := uint64(v)
	r.Ratio = raw & 0xFF
	r.Reference = (raw >> 8) & 0x3
	r.Gear = (raw >> 10) & 0x3
	r.VDDQTXVoltage = float64((raw>>12)&0xFFF) / 100
	r.IccMaxAmps = float64((raw>>24)&0xFF) / 4

	return r
}
