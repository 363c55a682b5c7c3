package smbus

import (
	"strings"

	"github.com/kramelec/imcsnap/bitfield"
)

// SPD5 byte offsets within the full 1024-byte dump: base-configuration
// bytes (0..235) and the module-specific block (bytes 512..639, per the
// DDR5 SPD annex). The decoded fields are: revision, module type, DRAM
// type, die size/organisation, ranks, part number, serial, and module
// and die vendor. Die stepping is not decoded.
const (
	spdOffsetDRAMType     = 2
	spdOffsetModuleType   = 3
	spdOffsetDensityBanks = 4
	spdOffsetRevision     = 1
	spdOffsetRanks        = 235
	spdOffsetDieLayout    = 234

	spdOffsetModuleMfgIDLo = 512
	spdOffsetModuleMfgIDHi = 513
	spdOffsetSerialStart   = 515
	spdOffsetSerialLen     = 4
	spdOffsetPartNumber    = 521
	spdOffsetPartNumberLen = 30

	spdOffsetDieVendorLo = 6
	spdOffsetDieVendorHi = 7
)

// DecodedSPD is the parsed subset of the 1024-byte SPD5 dump spec.md §3
// names on each DIMM record.
type DecodedSPD struct {
	Revision     uint8
	ModuleType   uint8
	DRAMType     uint8
	DieSizeGb    int
	DieLayout    bitfield.DieLayout
	Ranks        int
	PartNumber   string
	SerialNumber string
	ModuleVendor bitfield.JEP106
	DieVendor    bitfield.JEP106
}

// DecodeSPD parses a (possibly short, per spec.md §8 scenario 3) SPD
// dump. Fields whose offset falls past the dump's length are left zero.
func DecodeSPD(dump []byte) DecodedSPD {
	b := func(off int) byte {
		if off < 0 || off >= len(dump) {
			return 0
		}

		return dump[off]
	}

	out := DecodedSPD{
		Revision:   b(spdOffsetRevision),
		ModuleType: b(spdOffsetModuleType) & 0x0F,
		DRAMType:   b(spdOffsetDRAMType),
		Ranks:      int(b(spdOffsetRanks)&0x7) + 1,
		DieSizeGb:  densityCodeToGb(b(spdOffsetDensityBanks) & 0x1F),
		DieLayout:  bitfield.DieLayoutFromCode(uint64(b(spdOffsetDieLayout) & 0x7)),
	}

	out.ModuleVendor = bitfield.DecodeJEP106(b(spdOffsetModuleMfgIDHi), b(spdOffsetModuleMfgIDLo))
	out.DieVendor = bitfield.DecodeJEP106(b(spdOffsetDieVendorHi), b(spdOffsetDieVendorLo))

	out.SerialNumber = hexBytes(dump, spdOffsetSerialStart, spdOffsetSerialLen)
	out.PartNumber = asciiField(dump, spdOffsetPartNumber, spdOffsetPartNumberLen)

	return out
}

func densityCodeToGb(code byte) int {
	// JEDEC DDR5 per-die density codes: 0=4Gb .. doubling per step.
	if code > 6 {
		return 0
	}

	return 4 << code
}

func asciiField(dump []byte, start, length int) string {
	end := start + length
	if end > len(dump) {
		end = len(dump)
	}

	if start >= end {
		return ""
	}

	return strings.TrimRight(string(dump[start:end]), "\x00 ")
}

func hexBytes(dump []byte, start, length int) string {
	end := start + length
	if end > len(dump) {
		end = len(dump)
	}

	if start >= end {
		return ""
	}

	const hexDigits = "0123456789abcdef"

	var b strings.Builder

	for _, c := range dump[start:end] {
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xF])
	}

	return b.String()
}
