package platform

import (
	"time"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/mailbox"
)

// SAReport is the Memory.SA record of spec.md §3: system-agent clocks
// and voltage, derived from the GET_BCLK_FREQUENCY and DDR-capabilities
// (QCLK ratio) mailbox commands and the UCLK ratio and other SA MSRs.
type SAReport struct {
	BCLKMHz       float64
	QCLKRatio     uint64
	QCLKReference uint64 // reference-clock select bit, from CmdDDRCapabilities
	QCLKFreqMHz   float64
	UCLKRatio     uint64
	UCLKFreqMHz   float64
	PSF0Ratio     uint64
	VoltageVolts  float64 // U3.13 fixed point
	IPURatio      uint64
	OPISpeedMHz   float64
}

// readSAReport reads the BCLK frequency and DDR capabilities through
// the PCODE mailbox (c.PCODE) and the remaining ratios/voltage directly
// via MSR, then derives QCLK/UCLK frequency from BCLK x ratio.
func readSAReport(c MailboxCarriers, timeout time.Duration) SAReport {
	var sa SAReport

	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdBCLKFrequency, 0, 0, 0, timeout); err == nil {
		sa.BCLKMHz = float64(v) / 10 // 100 kHz steps, per PCU_CR_BCLK_FREQ_MCHBAR's convention
	} else {
		Logger.Printf("sa: bclk frequency: %v", err)
	}

	// bits[7:0] QCLK ratio, bit[8] MC reference-clock select --
	// original_source/msrbox.py's QCLK_RATIO_MASK and MC_REF_CLK_MASK sit
	// on the same response word as NUM_DDR_CHANNELS_MASK, so both come
	// from this one DDR-capabilities command rather than a bare MSR.
	if v, err := mailbox.Request(c.PCODE, mailbox.PCODEVariant, mailbox.CmdDDRCapabilities, 0, 0, 0, timeout); err == nil {
		sa.QCLKRatio = uint64(v) & 0xFF
		sa.QCLKReference = (uint64(v) >> 8) & 0x1
	} else {
		Logger.Printf("sa: ddr capabilities: %v", err)
	}

	if c.MSR != nil {
		if _, lo, err := c.MSR.MSRRead(mailbox.MSRUncoreRatioLimit); err == nil {
			sa.UCLKRatio = uint64(lo) & 0xFF
		}

		if _, lo, err := c.MSR.MSRRead(mailbox.MSRPSF0Ratio); err == nil {
			sa.PSF0Ratio = uint64(lo) & 0xFF
		}

		if _, lo, err := c.MSR.MSRRead(mailbox.MSRIPURatio); err == nil {
			sa.IPURatio = uint64(lo) & 0xFF
		}

		if _, lo, err := c.MSR.MSRRead(mailbox.MSROPISpeed); err == nil {
			sa.OPISpeedMHz = float64(lo&0xFFFF) / 10
		}

		if _, lo, err := c.MSR.MSRRead(mailbox.MSRSAVoltage); err == nil {
			sa.VoltageVolts = bitfield.Fixed(uint64(lo&0xFFFF), 13, 0) // U3.13: unsigned, 13 fraction bits
		}
	}

	sa.QCLKFreqMHz = sa.BCLKMHz * float64(sa.QCLKRatio)
	sa.UCLKFreqMHz = sa.BCLKMHz * float64(sa.UCLKRatio)

	return sa
}
