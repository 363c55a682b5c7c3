package platform

import (
	"time"

	"github.com/kramelec/imcsnap/mailbox"
)

const maxVFPoints = 15

// VFDomain identifies one of the four V/F curve domains spec.md §3
// names: IA core, ring, SA, and a reserved fourth domain.
type VFDomain uint8

const (
	VFDomainIACore VFDomain = iota
	VFDomainRing
	VFDomainSA
	VFDomainReserved
)

// VFPoint is one voltage/frequency pair from the OC V/F curve.
type VFPoint struct {
	FrequencyMHz uint32
	VoltageMilli uint32
}

// SVIDTopology is the IA/GT/SA SVID addressing record read through the
// OC mailbox's SVID-register command.
type SVIDTopology struct {
	IAAddr, GTAddr, SAAddr uint8
	ProtocolFlags          uint32
}

// VRReport is the Memory.VR-and-OC record of spec.md §3.
type VRReport struct {
	VCCIOVoltageMilli uint32
	SVID              SVIDTopology
	VRTopologyRaw     uint32
	IccMaxAmps        float64
	VccInAuxIccMax    float64
	VRVoltageLimit    uint32
	ACLoadLine        uint32
	DCLoadLine        uint32
	VFCurves          map[VFDomain][]VFPoint
}

func readVRReport(c MailboxCarriers, timeout time.Duration) VRReport {
	var vr VRReport

	vr.VFCurves = make(map[VFDomain][]VFPoint)

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdVCCIOVoltage, 0, 0, 0, timeout); err == nil {
		vr.VCCIOVoltageMilli = v
	} else {
		Logger.Printf("vr: VCCIO voltage: %v", err)
	}

	if raw, err := mailbox.Request(c.OC, mailbox.OCVariant, mailbox.CmdSVIDRegisterRead, 0, 0, 0, timeout); err == nil {
		vr.SVID = SVIDTopology{
			IAAddr:        byte(raw),
			GTAddr:        byte(raw >> 8),
			SAAddr:        byte(raw >> 16),
			ProtocolFlags: raw >> 24,
		}
	} else {
		Logger.Printf("vr: SVID topology: %v", err)
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdVRTopology, 0, 0, 0, timeout); err == nil {
		vr.VRTopologyRaw = v
	} else {
		Logger.Printf("vr: VR topology: %v", err)
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdVRIccMax, 0, 0, 0, timeout); err == nil {
		vr.IccMaxAmps = float64(v) / 4 // quarter-amp steps, matching the PCODE IccMax convention
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdVccInAuxIccMax, 0, 0, 0, timeout); err == nil {
		vr.VccInAuxIccMax = float64(v) / 4
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdVRVoltageLimit, 0, 0, 0, timeout); err == nil {
		vr.VRVoltageLimit = v
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdACLoadLine, 0, 0, 0, timeout); err == nil {
		vr.ACLoadLine = v
	}

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdDCLoadLine, 0, 0, 0, timeout); err == nil {
		vr.DCLoadLine = v
	}

	for _, domain := range []VFDomain{VFDomainIACore, VFDomainRing, VFDomainSA, VFDomainReserved} {
		vr.VFCurves[domain] = readVFCurve(c.PCODE, domain, timeout)
	}

	return vr
}

// readVFCurve walks up to maxVFPoints indices for one domain, stopping
// at the first point the mailbox reports absent (an unpopulated curve
// does not fill all 15 entries).
func readVFCurve(carrier mailbox.Carrier, domain VFDomain, timeout time.Duration) []VFPoint {
	var points []VFPoint

	for idx := uint32(0); idx < maxVFPoints; idx++ {
		raw, err := mailbox.Request(carrier, mailbox.PCODEVariant, mailbox.CmdOCVFPoint, uint8(domain), idx, 0, timeout)
		if err != nil {
			break
		}

		points = append(points, VFPoint{FrequencyMHz: raw & 0xFFFF, VoltageMilli: raw >> 16})
	}

	return points
}
