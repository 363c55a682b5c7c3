package platform

import "github.com/kramelec/imcsnap/mailbox"

// RAPLUnits decodes MSR_RAPL_POWER_UNIT (0x606): the power/energy/time
// unit exponents every other RAPL register's raw value is scaled by
// (Intel SDM vol.3B §14.9), spec.md §3's "Package RAPL units".
type RAPLUnits struct {
	PowerUnitWatts   float64
	EnergyUnitJoules float64
	TimeUnitSeconds  float64
}

// PowerReport is the Memory.POWER record of spec.md §3. RAPL units come
// from MSR 0x606; DDR RAPL limits from MSR 0x618; PL4/current-config
// from MSR 0x601; platform info from MSR 0xCE; the package energy
// counter from MSR 0x611; PP0 temperature from the per-core digital
// thermal sensor (IA32_THERM_STATUS, 0x19C) -- the PP0 RAPL domain only
// carries energy counters, not a temperature field, so the per-core
// sensor is the closest named register to a PP0-plane reading.
type PowerReport struct {
	RAPLUnits           RAPLUnits
	DDRRAPLUnitsRaw     uint32
	PL1Watts            float64
	PL1Enabled          bool
	PL1TimeWindowUs     uint32
	PL2Watts            float64
	PL2Enabled          bool
	PL2TimeWindowUs     uint32
	PL4CurrentConfig    uint32
	PlatformInfoRaw     uint32
	PackageEnergyJoules float64
	PP0TemperatureC     int64
	PP0TemperatureValid bool
}

func readPowerReport(msr msrAccess) PowerReport {
	var p PowerReport

	if msr == nil {
		return p
	}

	if _, lo, err := msr.MSRRead(mailbox.MSRRAPLPowerUnit); err == nil {
		p.RAPLUnits = RAPLUnits{
			PowerUnitWatts:   1 / float64(uint64(1)<<(lo&0xF)),
			EnergyUnitJoules: 1 / float64(uint64(1)<<((lo>>8)&0x1F)),
			TimeUnitSeconds:  1 / float64(uint64(1)<<((lo>>16)&0xF)),
		}
	}

	// MSRDDRRAPL is one 64-bit register: PL1 lives in the low DWORD (lo),
	// PL2 in the high DWORD (hi), each with the same bit layout.
	if hi, lo, err := msr.MSRRead(mailbox.MSRDDRRAPL); err == nil {
		p.DDRRAPLUnitsRaw = hi
		p.PL1Watts = powerUnits(lo & 0x7FFF)
		p.PL1Enabled = lo&(1<<15) != 0
		p.PL1TimeWindowUs = (lo >> 17) & 0x7F
		p.PL2Watts = powerUnits(hi & 0x7FFF)
		p.PL2Enabled = hi&(1<<15) != 0
		p.PL2TimeWindowUs = (hi >> 17) & 0x7F
	}

	if _, lo, err := msr.MSRRead(mailbox.MSRPL4CurrentConfig); err == nil {
		p.PL4CurrentConfig = lo
	}

	if _, lo, err := msr.MSRRead(mailbox.MSRPlatformInfo); err == nil {
		p.PlatformInfoRaw = lo
	}

	if _, lo, err := msr.MSRRead(mailbox.MSRPkgEnergyStatus); err == nil {
		unit := p.RAPLUnits.EnergyUnitJoules
		if unit == 0 {
			unit = 1.0 / 65536 // Intel SDM default when the units MSR itself could not be read
		}

		p.PackageEnergyJoules = float64(lo) * unit
	}

	if _, lo, err := msr.MSRRead(mailbox.MSRIA32ThermStatus); err == nil && lo&(1<<31) != 0 {
		const tjMax = 100 // nominal TjMax; the exact per-SKU value needs MSR_TEMPERATURE_TARGET, not read here

		readout := int64((lo >> 16) & 0x7F)
		p.PP0TemperatureC = tjMax - readout
		p.PP0TemperatureValid = true
	}

	return p
}

// powerUnits converts a raw RAPL power field to watts using the default
// 1/8 W resolution most Intel RAPL power-unit MSRs report.
func powerUnits(raw uint32) float64 {
	return float64(raw) / 8
}
