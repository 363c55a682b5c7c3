package mailbox

import "time"

// DefaultTimeout is mailbox_wait_timeout from spec.md §5: how long a
// caller polls RunBusy before giving up.
const DefaultTimeout = 50 * time.Millisecond

// PCODE/MRC mailbox command codes (MCHBAR carrier), spec.md §4.6.
const (
	CmdVCCIOVoltage    uint8 = 0x10
	CmdOCCapability    uint8 = 0x11
	CmdOCVFPoint       uint8 = 0x12
	CmdVRTopology      uint8 = 0x13
	CmdVRIccMax        uint8 = 0x14
	CmdBCLKFrequency   uint8 = 0x15
	CmdDDRCapabilities uint8 = 0x16
	CmdVccInAuxIccMax  uint8 = 0x17
	CmdVRVoltageLimit  uint8 = 0x18
	CmdACLoadLine      uint8 = 0x19
	CmdDCLoadLine      uint8 = 0x1A

	// CmdBIOSRequest/CmdBIOSData read the BIOS mailbox's last-requested
	// and last-applied MC PLL settings (ratio/ref/gear/VDDQ_TX/IccMax),
	// spec.md §3's Memory.BIOS_REQUEST/BIOS_DATA. They share the same
	// MCHBAR carrier as the rest of this block (original_source/biosbox.py
	// names MAILBOX_TYPE_PCODE as exactly this 0x5DA0/0x5DA4 pair) and
	// differ only in the command byte (0x1B requested, 0x1C applied);
	// both are issued with param1 0.
	CmdBIOSRequest uint8 = 0x1B
	CmdBIOSData    uint8 = 0x1C
)

// OC mailbox command codes (MSR 0x150 carrier).
const (
	CmdSVIDRegisterRead uint8 = 0x21
)

// MSR addresses read directly (no mailbox framing needed): spec.md §4.6
// lists these alongside the mailbox commands because they share the
// same K transport (kdrv.MSRRead) and the same snapshot consumers.
const (
	MSRPL4CurrentConfig uint32 = 0x601 // PL4 / current config
	MSRDDRRAPL          uint32 = 0x618 // DDR RAPL power limit
	MSRPlatformInfo     uint32 = 0xCE
	MSRIA32PerfStatus   uint32 = 0x198

	// MSRRAPLPowerUnit and MSRPkgEnergyStatus are the standard Intel RAPL
	// unit/energy-counter MSRs (Intel SDM vol.3B §14.9, the same manual
	// original_source/msrbox.py cites), read alongside MSRDDRRAPL for
	// Memory.POWER's "Package RAPL units" and "PKG energy counters".
	MSRRAPLPowerUnit   uint32 = 0x606
	MSRPkgEnergyStatus uint32 = 0x611

	// MSRIA32ThermStatus is the per-core digital thermal sensor register;
	// core 0's reading stands in for Memory.POWER's PP0 temperature, since
	// the PP0 RAPL domain itself carries only energy counters, not a
	// temperature field.
	MSRIA32ThermStatus uint32 = 0x19C

	// MSRUncoreRatioLimit's low byte is the current/max uncore (UCLK)
	// ratio, used by Memory.SA alongside the QCLK ratio from
	// CmdDDRCapabilities.
	MSRUncoreRatioLimit uint32 = 0x620

	// MSRSAVoltage, MSRPSF0Ratio, MSRIPURatio and MSROPISpeed back the
	// remaining Memory.SA fields spec.md §3 names (SA voltage, PSF0
	// ratio, IPU ratios, OPI speed). original_source only confirms these
	// fields exist (meminfo.py's SA table) and not their exact MSR
	// addresses, so these four are placeholders documented in DESIGN.md
	// rather than silicon-verified numbers.
	MSRSAVoltage uint32 = 0x632
	MSRPSF0Ratio uint32 = 0x633
	MSRIPURatio  uint32 = 0x634
	MSROPISpeed  uint32 = 0x635
)

// Command bundles the (carrier, variant, cmd) triple a named mailbox
// command uses, so callers in platform/snapshot don't repeat the
// layout choice at every call site.
type Command struct {
	Carrier Carrier
	Variant Variant
	Cmd     uint8
}

func (c Command) Do(param1 uint8, param2 uint32, dataValue uint32, timeout time.Duration) (uint32, error) {
	return Request(c.Carrier, c.Variant, c.Cmd, param1, param2, dataValue, timeout)
}
