package platform

import (
	"math"

	"github.com/kramelec/imcsnap/bitfield"
)

// Timings is the fully derived timing set spec.md §4.5's bank-group and
// turnaround formulas produce from the raw per-channel MC fields.
type Timings struct {
	CL, RCD, RP, RAS, FAW uint64
	RFC                   uint64
	RFCIsRFC2             bool // true when MR4.RefreshTrfcMode selected Fine Granularity Refresh
	RRDL, RRDS            uint64
	WTRL, WTRS            uint64
	RTP                   uint64
	WR                    uint64
	Gear                  bitfield.Gear
	CommandRate           string

	CMIRatio uint64 // MC-to-CMI clock ratio, raw; consumed by applyMemorySpeeds
	SpeedMTs uint64 // effective data rate in MT/s, filled in once Memory.SA is known (spec.md §8 scenario 2)
}

// deriveTimings implements spec.md §4.5's formula block. ddrType selects
// burst length and the LPDDR adjustments; fgRefresh comes from the MR4
// decode in mrstorage.go, not from the register table.
func deriveTimings(b perChannelBlock, t registerTable, gen Generation, ddrType bitfield.DDRType, fgRefresh bool) (Timings, error) {
	cl, err := b.field(t, "tCL")
	if err != nil {
		return Timings{}, err
	}

	rcd, _ := b.field(t, "tRCD")
	rp, _ := b.field(t, "tRP")
	ras, _ := b.field(t, "tRAS")
	rfc, _ := b.field(t, "tRFC")
	faw, _ := b.field(t, "tFAW")
	rrdSg, _ := b.field(t, "tRRDsg")
	rrdDg, _ := b.field(t, "tRRDdg")
	wrrdSg, _ := b.field(t, "tWRRDsg")
	wrrdDg, _ := b.field(t, "tWRRDdg")
	cwl, _ := b.field(t, "tCWL")
	rdpre, _ := b.field(t, "tRDPRE")
	wrpre, _ := b.field(t, "tWRPRE")
	cmiRatio, _ := b.field(t, "CMIRatio")

	isLPDDR := ddrType == bitfield.LPDDR4 || ddrType == bitfield.LPDDR5

	gear, cmdRate := deriveGearAndCommandRate(b, t, gen)
	is2N := cmdRate == "2N"

	bl := uint64(ddrType.BurstLength())

	rrdL, rrdS := rrdSg, rrdDg
	if isLPDDR {
		rrdS = 0 // "LPDDR has only tRRD_L" per spec.md §4.5
	}

	wtrL := sub(wrrdSg, cwl+bl+2)
	wtrS := sub(wrrdDg, cwl+bl+2)

	rtp := rdpre
	if is2N {
		rtp++
	}

	wr := sub(wrpre, cwl+bl)

	switch {
	case isLPDDR && ddrType == bitfield.LPDDR5:
		wr *= 4
	case isLPDDR:
		wr++
	}

	if ddrType == bitfield.DDR5 && cmdRate == "2N" {
		wr = sub(wr, 1)
	}

	return Timings{
		CL: cl, RCD: rcd, RP: rp, RAS: ras, FAW: faw,
		RFC: rfc, RFCIsRFC2: fgRefresh,
		RRDL: rrdL, RRDS: rrdS,
		WTRL: wtrL, WTRS: wtrS,
		RTP: rtp, WR: wr,
		Gear: gear, CommandRate: cmdRate,
		CMIRatio: cmiRatio,
	}, nil
}

// deriveSpeedMTs implements spec.md §8 scenario 2: the memory clock
// (MCLK) runs at QCLK_FREQ / CMIRatio, and the effective data rate is
// twice that, rounded up to the nearest 10 MT/s once it reaches 990.
func deriveSpeedMTs(qclkFreqMHz float64, cmiRatio uint64) uint64 {
	if cmiRatio == 0 {
		return 0
	}

	mclkFreq := qclkFreqMHz / float64(cmiRatio)
	speed := 2 * mclkFreq

	if speed >= 990 {
		const step = 10

		speed = math.Ceil(speed/step) * step
	}

	return uint64(speed)
}

// sub is unsigned-safe subtraction: the teacher's packed-register code
// never carries a field below zero; clamp instead of wrapping.
func sub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}

	return a - b
}

func deriveGearAndCommandRate(b perChannelBlock, t registerTable, gen Generation) (bitfield.Gear, string) {
	if gen == Generation15th {
		bit, _ := b.field(t, "GEAR2")
		stretch, _ := b.field(t, "CmdStretch")

		return bitfield.GearFrom15thGen(bit != 0), bitfield.CommandRate15thGen(stretch != 0)
	}

	gear2, _ := b.field(t, "GEAR2")
	gear4, _ := b.field(t, "GEAR4")
	stretch, _ := b.field(t, "CmdStretch")

	return bitfield.GearFrom12thGen(gear2 != 0, gear4 != 0), bitfield.CommandRate12thGen(stretch)
}
