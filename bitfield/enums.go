package bitfield

// Enum represents a tagged numeric code: a human name when the code is
// recognised, or "" (rendered as a JSON null by snapshot) when it is
// not. Per spec.md invariant (d), unrecognised codes are preserved as
// raw integers rather than dropped.
type Enum struct {
	Code uint64
	Name string
}

func (e Enum) Known() bool { return e.Name != "" }

// DDRType enumerates the memory technologies this platform walker can
// report per controller.
type DDRType uint8

const (
	DDRUnknown DDRType = iota
	DDR4
	DDR5
	LPDDR4
	LPDDR5
)

func (t DDRType) String() string {
	switch t {
	case DDR4:
		return "DDR4"
	case DDR5:
		return "DDR5"
	case LPDDR4:
		return "LPDDR4"
	case LPDDR5:
		return "LPDDR5"
	default:
		return ""
	}
}

// BurstLength returns the JEDEC burst length used by the tWTR_L/tWTR_S
// and tWR derivations of spec.md §4.5.
func (t DDRType) BurstLength() int {
	switch t {
	case DDR4:
		return 4
	case DDR5:
		return 8
	case LPDDR4:
		return 16
	case LPDDR5:
		return 4
	default:
		return 0
	}
}

// Gear is the ratio between the MC command clock and the DRAM clock.
type Gear uint8

const (
	Gear1 Gear = 1
	Gear2 Gear = 2
	Gear4 Gear = 4
)

// GearFrom12thGen decodes the 12th-generation GEAR2/GEAR4 bit pair: gear 4
// if GEAR4 is set, else gear 2 if GEAR2 is set, else gear 1. GEAR4 wins
// when both bits are set.
func GearFrom12thGen(gear2, gear4 bool) Gear {
	switch {
	case gear4:
		return Gear4
	case gear2:
		return Gear2
	default:
		return Gear1
	}
}

// GearFrom15thGen implements the single-bit SC_GS_CFG decode on the
// 15th-generation family: the bit picks between gear 2 and gear 4 only.
func GearFrom15thGen(bit bool) Gear {
	if bit {
		return Gear4
	}

	return Gear2
}

// CommandRate decodes CMD_STRETCH. On 12th-gen it is a 2-bit field with
// four values; on 15th-gen it collapses to a single bit (1N or 2N).
func CommandRate12thGen(code uint64) string {
	switch code {
	case 0:
		return "1N"
	case 1:
		return "2N"
	case 2:
		return "3N"
	case 3:
		return "N:1"
	default:
		return ""
	}
}

func CommandRate15thGen(bit bool) string {
	if bit {
		return "2N"
	}

	return "1N"
}

// rttOhmTable maps the 3-bit Rtt code families (RttWr, RttPark, RttNomWr,
// RttNomRd, RttLoopback) to ohms. JEDEC DDR5 MRS tables share this shape;
// 0 always means "disabled" and is reported as Absent by callers, not 0
// ohms, per spec.md invariant (c).
var rttOhmTable = map[uint64]int{
	1: 240,
	2: 120,
	3: 80,
	4: 60,
	5: 48,
	6: 40,
	7: 34,
}

// RttOhms decodes a 3-bit Rtt code into ohms. ok is false for code 0
// (disabled) or any code outside the JEDEC table.
func RttOhms(code uint64) (ohms int, ok bool) {
	ohms, ok = rttOhmTable[code]

	return ohms, ok
}

// cccOdtTable maps the DDR5 CA/CS/CK on-die termination code to ohms.
var cccOdtTable = map[uint64]int{
	0: 0,
	1: 240,
	2: 120,
	3: 80,
	4: 60,
	5: 48,
	6: 40,
	7: 34,
}

func CccOdtOhms(code uint64) (ohms int, ok bool) {
	ohms, ok = cccOdtTable[code]

	return ohms, ok
}

// VrefPercent decodes a DDR5 Vref Dq/Ca/Cs 7-bit range+step encoding
// into a percentage of VDDQ. The JEDEC MR10/11/12 encoding is a 1-bit
// range selector (bit 6) plus a 6-bit step count of 0.5% starting at a
// range-dependent floor; a raw 7-bit code is accepted here directly.
func VrefPercent(code uint64) (percent float64, ok bool) {
	const (
		rangeAFloor = 60.0
		rangeBFloor = 45.0
		step        = 0.5
	)

	rangeSel := (code >> 6) & 1
	steps := float64(code & 0x3F)

	var percentVal float64
	if rangeSel == 0 {
		percentVal = rangeAFloor + steps*step
	} else {
		percentVal = rangeBFloor + steps*step
	}

	if percentVal < 48.0 || percentVal > 97.5 {
		return 0, false
	}

	return percentVal, true
}

// mr6RTPTable maps the DDR5 MR6 read-preamble-training-pattern code to
// clocks, per spec.md §4.3.
var mr6RTPTable = map[uint64]int{
	0: 1,
	1: 2,
	2: 3,
	3: 4,
}

func MR6RTPClocks(code uint64) (clocks int, ok bool) {
	clocks, ok = mr6RTPTable[code]

	return clocks, ok
}

// MR13Entry captures the (tCCD_L, tCCD_L_WR, tCCD_L_WR2, tDDLK, data
// rate range) tuple that DDR5 MR13 encodes.
type MR13Entry struct {
	TCCDL     int
	TCCDLWR   int
	TCCDLWR2  int
	TDDLK     int
	RateLowMT int
	RateHiMT  int
}

// mr13Table is indexed by the 3-bit "operating speed" code; MR13Decode
// looks up the low three bits of the value it is given.
var mr13Table = map[uint64]MR13Entry{
	0: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 100, RateLowMT: 3200, RateHiMT: 3600},
	1: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 100, RateLowMT: 3600, RateHiMT: 4000},
	2: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 100, RateLowMT: 4000, RateHiMT: 4400},
	3: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 100, RateLowMT: 4400, RateHiMT: 4800},
	4: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 200, RateLowMT: 4800, RateHiMT: 5200},
	5: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 200, RateLowMT: 5200, RateHiMT: 5600},
	6: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 200, RateLowMT: 5600, RateHiMT: 6000},
	7: {TCCDL: 8, TCCDLWR: 32, TCCDLWR2: 16, TDDLK: 200, RateLowMT: 6000, RateHiMT: 6400},
}

func MR13Decode(code uint64) (MR13Entry, bool) {
	e, ok := mr13Table[code&0x7]

	return e, ok
}

// DieLayout enumerates SPD5 die-per-package topologies.
type DieLayout uint8

const (
	DieUnknown DieLayout = iota
	DieMono
	DieDDP
	Die2H3DS
	Die4H3DS
	Die8H3DS
	Die16H3DS
)

func (d DieLayout) String() string {
	switch d {
	case DieMono:
		return "MONO"
	case DieDDP:
		return "DDP"
	case Die2H3DS:
		return "2H_3DS"
	case Die4H3DS:
		return "4H_3DS"
	case Die8H3DS:
		return "8H_3DS"
	case Die16H3DS:
		return "16H_3DS"
	default:
		return ""
	}
}

// dieLayoutTable maps the SPD5 byte-234 "die per package" 3-bit field.
var dieLayoutTable = map[uint64]DieLayout{
	0: DieMono,
	1: DieDDP,
	2: Die2H3DS,
	3: Die4H3DS,
	4: Die8H3DS,
	5: Die16H3DS,
}

func DieLayoutFromCode(code uint64) DieLayout {
	if d, ok := dieLayoutTable[code]; ok {
		return d
	}

	return DieUnknown
}

// ADC scale factors used by the Richtek PMIC driver (spec.md §4.4).
const (
	PMICVoltageScale = 0.015 // V, SWA/B/C/D, 1.8V, 1.0V rails
	PMICVinScale     = 0.070 // V, VIN rail
	PMICCurrentScale = 0.25  // A
	PMICMilliVolt    = 0.005 // V, 5 mV steps used by some ADC channels
)

// TemperatureFromRaw decodes a 13-bit signed value (quarter-degree
// steps), the SPD5 hub MR49/50 thermal register shape.
func TemperatureFromRaw(raw uint64) float64 {
	return float64(Sint(raw, 13)) / 4.0
}
