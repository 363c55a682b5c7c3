package bitfield

// JEP106 decodes a JEDEC manufacturer id: a continuation-byte count (the
// high byte, counting parity-stripped 0x7F continuation bytes) and a
// vendor code (the low byte, with its odd-parity bit in position 7
// stripped before lookup). This mirrors spec.md §4.3's two-byte id
// decode and the SPD "spd_vendorid" field of §3.
type JEP106 struct {
	ContinuationBytes int
	VendorCode        uint8
	Name              string
}

// jep106Bank1 names a representative subset of bank-1 (continuation
// count 0) vendor codes relevant to DRAM/DIMM components: JEDEC member
// manufacturers of DRAM, SPD EEPROMs and DIMM PMICs.
var jep106Bank1 = map[uint8]string{
	0x01: "AMD",
	0x04: "Fujitsu",
	0x07: "Hitachi",
	0x08: "Inmos",
	0x0B: "AMI",
	0x13: "Cypress",
	0x15: "NEC",
	0x1C: "Mitsubishi",
	0x1F: "Toshiba",
	0x20: "Crucial/Micron",
	0x2C: "Micron",
	0x34: "Cirrus Logic",
	0x4F: "Analog Devices",
	0x51: "Qualcomm",
	0x62: "Sanyo",
	0x63: "ICSI",
	0x6D: "UTC",
	0x03: "Siliconware",
	0x09: "Intel",
	0x18: "Kingston",
	0x2D: "SK Hynix",
	0x33: "Nanya",
	0x3A: "Spansion",
	0x41: "Infineon",
	0x4E: "Samsung",
	0x5A: "GSI Technology",
	0x7E: "Elpida",
}

// jep106Bank2 covers continuation count 1, including several DIMM PMIC
// and thermal-sensor vendors seen on DDR5 modules.
var jep106Bank2 = map[uint8]string{
	0x3E: "STMicroelectronics",
	0x4A: "Montage Technology",
	0x05: "ADATA Technology",
	0x1E: "SMART Modular",
	0x18: "Kingston",
}

// jep106Bank11 covers continuation count 10: Richtek, the DDR5 DIMM PMIC
// vendor, lives here rather than in bank 2.
var jep106Bank11 = map[uint8]string{
	0x0C: "Richtek",
}

// jep106Banks indexes every known bank by its continuation count (the
// JEP106 "bank number" minus one).
var jep106Banks = map[int]map[uint8]string{
	0:  jep106Bank1,
	1:  jep106Bank2,
	10: jep106Bank11,
}

// DecodeJEP106 accepts a raw two-byte id as read from an SPD5 MR3-family
// vendor register or an SMBus PMIC vendor register: the high byte
// directly encodes the continuation-byte count (bank number minus one,
// e.g. 0x0A for bank 11), and the low byte is the vendor code with its
// bit-7 odd-parity bit stripped before table lookup.
func DecodeJEP106(hiByte, loByte uint8) JEP106 {
	cont := int(hiByte)
	vendorCode := loByte &^ 0x80 // strip parity bit 7

	return JEP106{
		ContinuationBytes: cont,
		VendorCode:        vendorCode,
		Name:              jep106Banks[cont][vendorCode],
	}
}
