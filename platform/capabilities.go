package platform

import (
	"time"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/mailbox"
)

const (
	pciOffsetCap0 = 0xE4
	pciOffsetCap1 = 0xE8
	pciOffsetCap2 = 0xEC
	pciOffsetCap3 = 0xF0
)

// Capabilities is the "flat record of ~60 booleans, small enums and
// numeric limits" spec.md §3 describes. Only the fields actually named
// in spec.md §3's CAP bullet are decoded; the rest of the ~60-field
// surface is platform- and BIOS-specific and is deliberately left to
// collaborators reading Capabilities.Raw.
type Capabilities struct {
	Raw [4]uint32

	DDROverclockAllowed bool
	MaxDDR4Rate         uint64 // MT/s
	MaxDDR5Rate         uint64
	MaxLPDDR4Rate       uint64
	MaxLPDDR5Rate       uint64
	MaxVDDQTx           float64 // volts, 1/100V steps
	BCLKOCRangeMHz      uint64
	ECCPresent          bool
	VTdPresent          bool
	IGPUPresent         bool
	SMTPresent          bool

	// OCCapabilityRaw is the raw CmdOCCapability mailbox response (PCODE
	// mailbox), read once the mailbox carriers exist (see
	// readOCCapability/WalkVR) rather than alongside the PCI-config bits
	// above: it is not reachable until after bars.MCHBAR is known.
	OCCapabilityRaw uint32
}

// readOCCapability fills in Capabilities.OCCapabilityRaw from the PCODE
// mailbox; called from WalkVR, since Capabilities itself is otherwise
// populated purely from PCI config space during Walk.
func readOCCapability(carrier mailbox.Carrier, timeout time.Duration) (uint32, error) {
	return mailbox.Request(carrier, mailbox.PCODEVariant, mailbox.CmdOCCapability, 0, 0, 0, timeout)
}

func readCapabilities(cfg pciConfig) (Capabilities, error) {
	var caps Capabilities

	offsets := [4]uint16{pciOffsetCap0, pciOffsetCap1, pciOffsetCap2, pciOffsetCap3}

	for i, off := range offsets {
		data, err := cfg.PCIConfigRead(0, 0, 0, off, 4)
		if err != nil || len(data) != 4 {
			return Capabilities{}, err
		}

		caps.Raw[i] = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	}

	r0 := bitfield.NewReader(u32Bytes(caps.Raw[0]))
	r1 := bitfield.NewReader(u32Bytes(caps.Raw[1]))
	r2 := bitfield.NewReader(u32Bytes(caps.Raw[2]))
	// caps.Raw[3] (0xF0) carries no field spec.md §3 names; exposed via Raw only.

	caps.DDROverclockAllowed = r0.GetBits(0, 0, 0) != 0
	caps.MaxDDR4Rate = r0.GetBits(0, 1, 12) * 200 // encoded in 200 MT/s steps
	caps.MaxDDR5Rate = r0.GetBits(0, 13, 24) * 200
	caps.ECCPresent = r0.GetBits(0, 25, 25) != 0
	caps.VTdPresent = r0.GetBits(0, 26, 26) != 0
	caps.IGPUPresent = r0.GetBits(0, 27, 27) != 0
	caps.SMTPresent = r0.GetBits(0, 28, 28) != 0

	caps.MaxLPDDR4Rate = r1.GetBits(0, 0, 11) * 200
	caps.MaxLPDDR5Rate = r1.GetBits(0, 12, 23) * 200
	caps.BCLKOCRangeMHz = r1.GetBits(0, 24, 31)

	caps.MaxVDDQTx = float64(r2.GetBits(0, 0, 9)) / 100

	return caps, nil
}

func u32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
